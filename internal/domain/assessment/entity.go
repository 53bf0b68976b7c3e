package assessment

import (
	"time"
)

// RecordID identifier type
type RecordID string

// Category enum for damage classification
type Category string

const (
	CategoryWater      Category = "water"
	CategoryFire       Category = "fire"
	CategoryMold       Category = "mold"
	CategoryStructural Category = "structural"
	CategoryGeneral    Category = "general"
)

// Status enum
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ImageAsset is the per-request image value. It is built from the inbound
// data-URI payload and discarded once the pipeline completes; raw bytes are
// never persisted.
type ImageAsset struct {
	Data         []byte
	DeclaredType string
	DetectedType string
	Width        int
	Height       int
	Hash         string
}

// VisionResult is what the vision classifier reports for one image.
type VisionResult struct {
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// Source is a single retrieved knowledge snippet.
type Source struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// KnowledgeResult is the retrieval service output for one query.
type KnowledgeResult struct {
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
}

// Performance reports per-request timing.
type Performance struct {
	TotalTimeMS int64 `json:"total_time_ms"`
	Cached      bool  `json:"cached"`
}

// Result is the unit returned to the caller for one assessment.
// Success=false implies Error is set and the content fields are empty
// defaults, never partially populated from a failed stage.
type Result struct {
	Success            bool        `json:"success"`
	VisionAnalysis     string      `json:"vision_analysis"`
	IndustrySources    []Source    `json:"industry_sources"`
	EnhancedAssessment string      `json:"enhanced_assessment"`
	ConfidenceScore    float64     `json:"confidence_score"`
	Timestamp          time.Time   `json:"timestamp"`
	Performance        Performance `json:"performance"`
	Error              string      `json:"error,omitempty"`
	Details            string      `json:"details,omitempty"`
}

// Message is one chat turn sent to the text generator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationTurn is one entry of the rolling follow-up history.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationContext carries optional prior state into a follow-up turn.
type ConversationContext struct {
	Assessment *Result            `json:"assessment,omitempty"`
	RagContext string             `json:"rag_context,omitempty"`
	History    []ConversationTurn `json:"history,omitempty"`
}

// ConversationResult is the reply for one follow-up question.
type ConversationResult struct {
	Success            bool     `json:"success"`
	Response           string   `json:"response"`
	ConfidenceScore    float64  `json:"confidence_score"`
	IndustrySources    []Source `json:"industry_sources"`
	SuggestedQuestions []string `json:"suggested_questions"`
}

// Record is the persisted audit row for one completed or failed pipeline
// run. It carries derived metadata only, never image bytes.
type Record struct {
	ID         RecordID  `json:"id"`
	ImageHash  string    `json:"image_hash"`
	Category   Category  `json:"category"`
	Status     Status    `json:"status"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Confidence float64   `json:"confidence"`
	Summary    string    `json:"summary,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// ClampConfidence bounds a confidence score to [0,1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
