package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/claimsight/assess-gateway/internal/domain/assessment"
)

// Document is one knowledge-base entry before indexing.
type Document struct {
	Source  string
	Content string
}

// Store is the Qdrant-backed knowledge searcher: queries are embedded and
// matched against the indexed restoration corpus.
type Store struct {
	client     *qdrant.Client
	collection string
	embedder   assessment.Embedder
	threshold  float32
	limit      uint64
}

func NewStore(client *qdrant.Client, collection string, embedder assessment.Embedder, threshold float32, limit int) *Store {
	if limit <= 0 {
		limit = 5
	}
	return &Store{
		client:     client,
		collection: collection,
		embedder:   embedder,
		threshold:  threshold,
		limit:      uint64(limit),
	}
}

// InitCollection creates the collection if it does not exist yet.
func (s *Store) InitCollection(ctx context.Context, dim uint64) error {
	_, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.NotFound {
		return err
	}
	if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Search implements the KnowledgeSearcher port.
func (s *Store) Search(ctx context.Context, query string) (*assessment.KnowledgeResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(s.limit),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: &s.threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge query failed: %w", err)
	}

	kr := &assessment.KnowledgeResult{Sources: make([]assessment.Source, 0, len(res))}
	var snippets []string
	for _, hit := range res {
		payload := hit.Payload
		src := assessment.Source{
			Source:  payload["source"].GetStringValue(),
			Content: payload["content"].GetStringValue(),
			Score:   float64(hit.Score),
		}
		kr.Sources = append(kr.Sources, src)
		if src.Content != "" {
			snippets = append(snippets, src.Content)
		}
	}
	kr.Response = strings.Join(snippets, "\n\n")
	return kr, nil
}

// Index embeds and upserts documents into the collection.
func (s *Store) Index(ctx context.Context, docs []Document) error {
	for _, doc := range docs {
		vector, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("embedding %s failed: %w", doc.Source, err)
		}
		_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points: []*qdrant.PointStruct{
				{
					Id:      qdrant.NewIDUUID(uuid.NewString()),
					Vectors: qdrant.NewVectors(vector...),
					Payload: qdrant.NewValueMap(map[string]any{
						"source":     doc.Source,
						"content":    doc.Content,
						"indexed_at": time.Now().Unix(),
					}),
				},
			},
		})
		if err != nil {
			return fmt.Errorf("upsert %s failed: %w", doc.Source, err)
		}
	}
	return nil
}
