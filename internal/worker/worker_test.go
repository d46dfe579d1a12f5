package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careercompass/internal/app"
)

type fakeTracker struct {
	ids []uint
	err error
}

func (f *fakeTracker) TrackAccess(ctx context.Context, ids ...uint) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.ids = append(f.ids, ids...)
	return int64(len(ids)), nil
}

func TestAccessHandler(t *testing.T) {
	tracker := &fakeTracker{}
	handle := NewAccessHandler(tracker)

	require.NoError(t, handle(context.Background(), []byte(`{"ids":[3,5],"at":"2026-01-02T03:04:05Z"}`)))
	assert.Equal(t, []uint{3, 5}, tracker.ids)

	assert.Error(t, handle(context.Background(), []byte(`not json`)))

	tracker.err = errors.New("db down")
	assert.Error(t, handle(context.Background(), []byte(`{"ids":[1]}`)))
}

type fakeIngester struct {
	got app.IngestInput
	err error
}

func (f *fakeIngester) IngestText(ctx context.Context, input app.IngestInput) (*app.IngestResult, error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return &app.IngestResult{ContentID: input.ContentID, ChunkCount: 1, Batch: &app.BatchResult{Succeeded: 1}}, nil
}

func TestIngestHandler(t *testing.T) {
	ingester := &fakeIngester{}
	handle := NewIngestHandler(ingester)

	require.NoError(t, handle(context.Background(), []byte(`{"content_id":"cv-1","content_type":"resume","user_id":2,"text":"Go"}`)))
	assert.Equal(t, "cv-1", ingester.got.ContentID)
	assert.Equal(t, uint(2), ingester.got.UserID)

	ingester.err = app.ErrValidation
	err := handle(context.Background(), []byte(`{"content_id":"cv-2"}`))
	assert.ErrorIs(t, err, app.ErrValidation)
}

type countingSweeper struct {
	calls atomic.Int64
}

func (c *countingSweeper) SweepExpired(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	return 2, nil
}

func TestExpirySweeper(t *testing.T) {
	store := &countingSweeper{}
	sweeper := NewExpirySweeper(store, 10*time.Millisecond)

	assert.Equal(t, int64(2), sweeper.RunOnce(context.Background()))

	sweeper.Start(context.Background())
	assert.Eventually(t, func() bool { return store.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	sweeper.Close()

	after := store.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, store.calls.Load())
}
