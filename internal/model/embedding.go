package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"careercompass/internal/pkg/textstats"
)

const (
	MaxTextLength   = 10000
	MaxDimensions   = 1536
	DefaultModel    = "text-embedding-ada-002"
	DefaultLanguage = "en"
	DefaultBoost    = 1.0
	MaxBoost        = 10.0
)

type ContentType string

const (
	ContentProfile          ContentType = "profile"
	ContentResume           ContentType = "resume"
	ContentProject          ContentType = "project"
	ContentChatMessage      ContentType = "chat_message"
	ContentTechUpdate       ContentType = "tech_update"
	ContentPsychotestResult ContentType = "psychotest_result"
	ContentSkill            ContentType = "skill"
	ContentJobDescription   ContentType = "job_description"
)

var ContentTypes = []ContentType{
	ContentProfile,
	ContentResume,
	ContentProject,
	ContentChatMessage,
	ContentTechUpdate,
	ContentPsychotestResult,
	ContentSkill,
	ContentJobDescription,
}

func (t ContentType) Valid() bool {
	for _, known := range ContentTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

func (s Sentiment) Valid() bool {
	switch s {
	case "", SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Status string

const (
	StatusActive   Status = "active"
	StatusOutdated Status = "outdated"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusOutdated, StatusArchived, StatusDeleted:
		return true
	}
	return false
}

// DocumentRef points at the externally owned content a record was built from.
// The content type selects which store resolves the id.
type DocumentRef struct {
	Type ContentType `json:"type"`
	ID   uint        `json:"id"`
}

type ChunkInfo struct {
	Index         int `gorm:"not null;default:0" json:"index"`
	Total         int `gorm:"not null;default:1" json:"total"`
	StartPosition int `json:"start_position"`
	EndPosition   int `json:"end_position"`
	Overlap       int `json:"overlap"`
}

type Semantics struct {
	Topics     datatypes.JSONSlice[string] `json:"topics"`
	Entities   datatypes.JSONSlice[string] `json:"entities"`
	Sentiment  Sentiment                   `gorm:"size:16" json:"sentiment,omitempty"`
	Confidence float64                     `json:"confidence"`
	Categories datatypes.JSONSlice[string] `json:"categories"`
}

type SearchMetadata struct {
	Boost        float64                     `gorm:"not null" json:"boost"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	Priority     Priority                    `gorm:"size:16;not null;default:medium" json:"priority"`
	LastAccessed *time.Time                  `json:"last_accessed,omitempty"`
	AccessCount  int64                       `gorm:"not null;default:0" json:"access_count"`
}

type Quality struct {
	TextLength         int     `json:"text_length"`
	UniqueWords        int     `json:"unique_words"`
	ReadabilityScore   float64 `json:"readability_score"`
	InformationDensity float64 `json:"information_density"`
}

// EmbeddingRecord is one vector-indexed chunk of content.
type EmbeddingRecord struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ContentID   string      `gorm:"size:128;not null;uniqueIndex:idx_embedding_content" json:"content_id"`
	ContentType ContentType `gorm:"size:32;not null;uniqueIndex:idx_embedding_content;index" json:"content_type"`

	DocumentRefID uint `gorm:"index" json:"document_ref_id"`
	UserID        uint `gorm:"index" json:"user_id"`

	Text     string                      `gorm:"type:text;not null" json:"text"`
	Title    string                      `gorm:"size:256" json:"title,omitempty"`
	Summary  string                      `gorm:"type:text" json:"summary,omitempty"`
	Keywords datatypes.JSONSlice[string] `json:"keywords"`
	Language string                      `gorm:"size:16;not null;default:en" json:"language"`

	Vector     datatypes.JSONSlice[float64] `gorm:"not null" json:"vector"`
	Model      string                       `gorm:"size:64;not null" json:"model"`
	Dimensions int                          `gorm:"not null" json:"dimensions"`
	EmbeddedAt time.Time                    `json:"embedded_at"`

	Chunk     ChunkInfo      `gorm:"embedded;embeddedPrefix:chunk_" json:"chunk"`
	Semantics Semantics      `gorm:"embedded;embeddedPrefix:semantic_" json:"semantics"`
	Search    SearchMetadata `gorm:"embedded;embeddedPrefix:search_" json:"search"`
	Quality   Quality        `gorm:"embedded;embeddedPrefix:quality_" json:"quality"`

	Version   int        `gorm:"not null;default:1" json:"version"`
	Status    Status     `gorm:"size:16;not null;default:active;index" json:"status"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `gorm:"index" json:"updated_at"`
}

func (EmbeddingRecord) TableName() string {
	return "embedding_records"
}

func (r *EmbeddingRecord) DocumentRef() DocumentRef {
	return DocumentRef{Type: r.ContentType, ID: r.DocumentRefID}
}

// SetText replaces the content snapshot and recomputes quality metrics.
func (r *EmbeddingRecord) SetText(text string) {
	r.Text = text
	r.refreshQuality()
}

// SetVector replaces the vector and keeps Dimensions in step with it.
func (r *EmbeddingRecord) SetVector(vec []float64) {
	r.Vector = datatypes.JSONSlice[float64](vec)
	r.Dimensions = len(vec)
}

func (r *EmbeddingRecord) refreshQuality() {
	stats := textstats.Compute(r.Text)
	r.Quality.TextLength = stats.TextLength
	r.Quality.UniqueWords = stats.UniqueWords
	r.Quality.InformationDensity = stats.InformationDensity
}

// BeforeSave keeps derived fields consistent on every full save.
func (r *EmbeddingRecord) BeforeSave(tx *gorm.DB) error {
	r.Dimensions = len(r.Vector)
	r.refreshQuality()
	return nil
}
