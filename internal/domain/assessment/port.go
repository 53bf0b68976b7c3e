package assessment

import "context"

// VisionClassifier port: describes an image and reports confidence.
type VisionClassifier interface {
	Classify(ctx context.Context, image []byte, mimeType, prompt string) (*VisionResult, error)
}

// KnowledgeSearcher port: retrieval over the restoration knowledge base.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string) (*KnowledgeResult, error)
}

// TextGenerator port: chat-style text generation.
type TextGenerator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Embedder port: text to vector, used by the knowledge index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Recorder port for the assessment history store.
type Recorder interface {
	Save(ctx context.Context, r *Record) error
	Latest(ctx context.Context, limit int) ([]*Record, error)
	Get(ctx context.Context, id RecordID) (*Record, error)
}
