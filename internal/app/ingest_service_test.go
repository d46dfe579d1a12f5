package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careercompass/internal/ai"
	"careercompass/internal/app"
	"careercompass/internal/model"
	"careercompass/internal/repository"
)

type batchEmbedder struct {
	calls [][]string
	err   error
}

func (e *batchEmbedder) EmbedBatch(ctx context.Context, cfg ai.EmbeddingConfig, texts []string) ([][]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.calls = append(e.calls, append([]string(nil), texts...))
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{float64(len([]rune(text))), 1}
	}
	return out, nil
}

func newIngestService(t *testing.T, client app.EmbeddingClient, cfg app.IngestConfig) (*app.IngestService, *repository.EmbeddingRepository) {
	t.Helper()
	db := newTestDB(t)
	repo := repository.NewEmbeddingRepository(db)
	store := app.NewEmbeddingService(repo, nil)
	return app.NewIngestService(store, client, ai.EmbeddingConfig{Model: "text-embedding-3-small"}, cfg), repo
}

func TestIngestService_SplitsEmbedsAndStores(t *testing.T) {
	client := &batchEmbedder{}
	svc, repo := newIngestService(t, client, app.IngestConfig{ChunkSize: 10, ChunkOverlap: 2, BatchSize: 2})

	text := strings.Repeat("abcdefgh", 4) // 32 runes
	res, err := svc.IngestText(context.Background(), app.IngestInput{
		ContentID:   "resume-42",
		ContentType: model.ContentResume,
		UserID:      3,
		Title:       "Resume",
		Text:        "  " + text + "\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "resume-42", res.ContentID)
	assert.Equal(t, 4, res.ChunkCount)
	assert.Equal(t, 4, res.Batch.Succeeded)
	assert.Len(t, client.calls, 2)

	records, err := repo.FindCandidates(context.Background(), repository.CandidateFilter{UserID: 3}, 0)
	require.NoError(t, err)
	require.Len(t, records, 4)

	wantStarts := []int{0, 8, 16, 24}
	wantEnds := []int{10, 18, 26, 32}
	for i, rec := range records {
		assert.Equal(t, "resume-42#"+string(rune('0'+i)), rec.ContentID)
		assert.Equal(t, i, rec.Chunk.Index)
		assert.Equal(t, 4, rec.Chunk.Total)
		assert.Equal(t, wantStarts[i], rec.Chunk.StartPosition)
		assert.Equal(t, wantEnds[i], rec.Chunk.EndPosition)
		assert.Equal(t, "text-embedding-3-small", rec.Model)
		assert.Equal(t, 2, rec.Dimensions)
	}
	assert.Equal(t, 0, records[0].Chunk.Overlap)
	assert.Equal(t, 2, records[1].Chunk.Overlap)
}

func TestIngestService_SingleChunkKeepsID(t *testing.T) {
	svc, repo := newIngestService(t, &batchEmbedder{}, app.IngestConfig{})

	res, err := svc.IngestText(context.Background(), app.IngestInput{
		ContentType: model.ContentSkill,
		UserID:      5,
		Text:        "Kubernetes operators",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ContentID)

	records, err := repo.FindCandidates(context.Background(), repository.CandidateFilter{UserID: 5}, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, res.ContentID, records[0].ContentID)
}

func TestIngestService_Errors(t *testing.T) {
	ctx := context.Background()

	svc, _ := newIngestService(t, &batchEmbedder{}, app.IngestConfig{})
	_, err := svc.IngestText(ctx, app.IngestInput{ContentType: model.ContentProfile, Text: "   "})
	assert.ErrorIs(t, err, app.ErrInvalidInput)

	_, err = svc.IngestText(ctx, app.IngestInput{ContentType: "hobby", Text: "text"})
	assert.ErrorIs(t, err, app.ErrValidation)

	boom := errors.New("provider down")
	failing, _ := newIngestService(t, &batchEmbedder{err: boom}, app.IngestConfig{})
	_, err = failing.IngestText(ctx, app.IngestInput{ContentType: model.ContentProfile, Text: "text"})
	assert.ErrorIs(t, err, boom)

	disabled := app.NewIngestService(nil, nil, ai.EmbeddingConfig{}, app.IngestConfig{})
	_, err = disabled.IngestText(ctx, app.IngestInput{ContentType: model.ContentProfile, Text: "text"})
	assert.ErrorIs(t, err, app.ErrInvalidInput)
}
