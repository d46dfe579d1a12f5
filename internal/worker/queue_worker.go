package worker

import (
	"context"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"careercompass/internal/platform/rabbitmq"
)

// Handler processes one delivery body. A returned error drops the delivery.
type Handler func(ctx context.Context, body []byte) error

// QueueWorker consumes one durable queue and hands each delivery to a Handler.
type QueueWorker struct {
	conn      *amqp.Connection
	queueName string
	handle    Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueueWorker(conn *amqp.Connection, queueName string, handle Handler) *QueueWorker {
	return &QueueWorker{
		conn:      conn,
		queueName: queueName,
		handle:    handle,
	}
}

func (w *QueueWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue %s failed: %w", w.queueName, err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					log.Printf("worker %s handle delivery failed: %v", w.queueName, err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *QueueWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
