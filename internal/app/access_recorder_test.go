package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careercompass/internal/app"
)

type recordingPublisher struct {
	events []interface{}
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, v interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, v)
	return nil
}

func TestAccessRecorder_PublishesWhenQueueAvailable(t *testing.T) {
	svc, _, _ := newEmbeddingService(t)
	ctx := context.Background()
	rec, err := svc.Create(ctx, createInput("a", 1, 0))
	require.NoError(t, err)

	pub := &recordingPublisher{}
	app.NewAccessRecorder(svc, pub).RecordAccess(ctx, []uint{rec.ID})

	require.Len(t, pub.events, 1)
	event, ok := pub.events[0].(app.AccessEvent)
	require.True(t, ok)
	assert.Equal(t, []uint{rec.ID}, event.IDs)

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Search.AccessCount)
}

func TestAccessRecorder_FallsBackToInline(t *testing.T) {
	svc, _, _ := newEmbeddingService(t)
	ctx := context.Background()
	rec, err := svc.Create(ctx, createInput("a", 1, 0))
	require.NoError(t, err)

	app.NewAccessRecorder(svc, nil).RecordAccess(ctx, []uint{rec.ID})
	app.NewAccessRecorder(svc, &recordingPublisher{err: errors.New("closed")}).RecordAccess(ctx, []uint{rec.ID})

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Search.AccessCount)
}
