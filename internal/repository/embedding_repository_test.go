package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"careercompass/internal/model"
	"careercompass/internal/platform/sqlite"
	"careercompass/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, model.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newRecord(contentID string, contentType model.ContentType, vec ...float64) *model.EmbeddingRecord {
	rec := &model.EmbeddingRecord{
		ContentID:   contentID,
		ContentType: contentType,
		UserID:      1,
		Language:    model.DefaultLanguage,
		Model:       model.DefaultModel,
		Chunk:       model.ChunkInfo{Index: 0, Total: 1},
		Search:      model.SearchMetadata{Boost: model.DefaultBoost, Priority: model.PriorityMedium},
		Version:     1,
		Status:      model.StatusActive,
	}
	rec.SetText("text for " + contentID)
	rec.SetVector(vec)
	return rec
}

func TestEmbeddingRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewEmbeddingRepository(newTestDB(t))

	rec := newRecord("p-1", model.ContentProfile, 0.1, 0.2, 0.3)
	rec.Keywords = []string{"go", "backend"}
	require.NoError(t, repo.Create(ctx, rec))
	require.NotZero(t, rec.ID)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "p-1", got.ContentID)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, []float64(got.Vector))
	assert.Equal(t, 3, got.Dimensions)
	assert.Equal(t, []string{"go", "backend"}, []string(got.Keywords))
	assert.Equal(t, model.PriorityMedium, got.Search.Priority)
	assert.Equal(t, 1, got.Chunk.Total)

	missing, err := repo.GetByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEmbeddingRepository_DuplicateContent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewEmbeddingRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, newRecord("r-1", model.ContentResume, 1, 0)))
	err := repo.Create(ctx, newRecord("r-1", model.ContentResume, 0, 1))
	assert.ErrorIs(t, err, repository.ErrDuplicateContent)

	// same content id under another type is a different identity
	require.NoError(t, repo.Create(ctx, newRecord("r-1", model.ContentProject, 0, 1)))
}

func TestEmbeddingRepository_SaveRefreshesDerivedFields(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewEmbeddingRepository(newTestDB(t))

	rec := newRecord("s-1", model.ContentSkill, 1, 0)
	require.NoError(t, repo.Create(ctx, rec))

	rec.Text = "kubernetes kubernetes helm"
	rec.Vector = []float64{1, 2, 3, 4}
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Dimensions)
	assert.Equal(t, 26, got.Quality.TextLength)
	assert.Equal(t, 2, got.Quality.UniqueWords)
	assert.InDelta(t, 2.0/26.0, got.Quality.InformationDensity, 1e-12)
}

func TestEmbeddingRepository_FindCandidates(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewEmbeddingRepository(newTestDB(t))

	a := newRecord("a", model.ContentProfile, 1, 0)
	b := newRecord("b", model.ContentResume, 0, 1)
	c := newRecord("c", model.ContentResume, 1, 1)
	c.UserID = 2
	d := newRecord("d", model.ContentResume, 1, 1)
	d.Status = model.StatusOutdated
	for _, rec := range []*model.EmbeddingRecord{a, b, c, d} {
		require.NoError(t, repo.Create(ctx, rec))
	}

	all, err := repo.FindCandidates(ctx, repository.CandidateFilter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, contentIDs(all))

	resumes, err := repo.FindCandidates(ctx, repository.CandidateFilter{ContentTypes: []model.ContentType{model.ContentResume}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, contentIDs(resumes))

	owned, err := repo.FindCandidates(ctx, repository.CandidateFilter{UserID: 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, contentIDs(owned))

	excluded, err := repo.FindCandidates(ctx, repository.CandidateFilter{ExcludeIDs: []uint{a.ID}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, contentIDs(excluded))

	limited, err := repo.FindCandidates(ctx, repository.CandidateFilter{}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, contentIDs(limited))
}

func TestEmbeddingRepository_TouchAccess(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewEmbeddingRepository(newTestDB(t))

	rec := newRecord("t-1", model.ContentTechUpdate, 1)
	require.NoError(t, repo.Create(ctx, rec))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n, err := repo.TouchAccess(ctx, []uint{rec.ID}, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.TouchAccess(ctx, []uint{rec.ID}, at.Add(time.Hour))
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Search.AccessCount)
	require.NotNil(t, got.Search.LastAccessed)
	assert.True(t, got.Search.LastAccessed.Equal(at.Add(time.Hour)))

	n, err = repo.TouchAccess(ctx, nil, at)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEmbeddingRepository_StaleAndExpired(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := repository.NewEmbeddingRepository(db)
	now := time.Now().UTC()

	old := newRecord("old", model.ContentChatMessage, 1)
	old.Status = model.StatusOutdated
	fresh := newRecord("fresh", model.ContentChatMessage, 1)
	fresh.Status = model.StatusOutdated
	expired := newRecord("expired", model.ContentChatMessage, 1)
	past := now.Add(-time.Minute)
	expired.ExpiresAt = &past
	future := now.Add(time.Hour)
	live := newRecord("live", model.ContentChatMessage, 1)
	live.ExpiresAt = &future
	for _, rec := range []*model.EmbeddingRecord{old, fresh, expired, live} {
		require.NoError(t, repo.Create(ctx, rec))
	}
	require.NoError(t, db.Model(&model.EmbeddingRecord{}).Where("id = ?", old.ID).
		UpdateColumn("updated_at", now.AddDate(0, 0, -120)).Error)

	cutoff := now.AddDate(0, 0, -90)
	filter := repository.StaleFilter{Status: model.StatusOutdated, Before: cutoff}
	count, err := repo.CountStale(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountStale(ctx, repository.StaleFilter{Status: model.StatusOutdated, Before: cutoff, UserID: 2})
	require.NoError(t, err)
	assert.Zero(t, count)

	deleted, err := repo.DeleteStale(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	removed, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := repo.FindCandidates(ctx, repository.CandidateFilter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, contentIDs(remaining))
}

func TestEmbeddingRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewEmbeddingRepository(newTestDB(t))

	rec := newRecord("u-1", model.ContentProject, 1)
	require.NoError(t, repo.Create(ctx, rec))

	n, err := repo.UpdateStatus(ctx, rec.ID, model.StatusOutdated, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOutdated, got.Status)

	n, err = repo.UpdateStatus(ctx, 4242, model.StatusOutdated, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func contentIDs(records []model.EmbeddingRecord) []string {
	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ContentID
	}
	return ids
}
