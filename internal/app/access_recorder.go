package app

import (
	"context"
	"log"
	"time"
)

// AccessEvent is the queue payload announcing records surfaced to a user.
type AccessEvent struct {
	IDs []uint    `json:"ids"`
	At  time.Time `json:"at"`
}

// Publisher hands a JSON-encodable payload to a queue.
type Publisher interface {
	Publish(ctx context.Context, v interface{}) error
}

// AccessRecorder reports surfaced records. With a publisher the update happens
// in the access worker; without one it is applied inline.
type AccessRecorder struct {
	embeddings *EmbeddingService
	publisher  Publisher
}

func NewAccessRecorder(embeddings *EmbeddingService, publisher Publisher) *AccessRecorder {
	return &AccessRecorder{embeddings: embeddings, publisher: publisher}
}

func (r *AccessRecorder) RecordAccess(ctx context.Context, ids []uint) {
	if len(ids) == 0 {
		return
	}
	if r.publisher != nil {
		event := AccessEvent{IDs: ids, At: time.Now().UTC()}
		err := r.publisher.Publish(ctx, event)
		if err == nil {
			return
		}
		log.Printf("publish access event failed, tracking inline: %v", err)
	}
	if _, err := r.embeddings.TrackAccess(ctx, ids...); err != nil {
		log.Printf("track access failed: %v", err)
	}
}
