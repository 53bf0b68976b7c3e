package assess

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/claimsight/assess-gateway/internal/batch"
	"github.com/claimsight/assess-gateway/internal/cache"
	"github.com/claimsight/assess-gateway/internal/domain/assessment"
)

// lookupKnowledge is the shared retrieval path for the assessment pipeline,
// the conversation pipeline and the search endpoint: normalized-query cache
// probe, batched provider call under a deadline, write-through on success.
// Returns whether the result came from cache.
func lookupKnowledge(ctx context.Context, store cache.Store, batcher *batch.Batcher, searcher assessment.KnowledgeSearcher, timeout time.Duration, query string) (*assessment.KnowledgeResult, bool, error) {
	if searcher == nil {
		return nil, false, assessment.Unavailable("knowledge search not configured")
	}
	if store == nil {
		store = cache.Disabled{}
	}

	key := cache.HashQuery(query)
	if raw, ok := store.Get(ctx, cache.DomainRAG, key); ok {
		var kr assessment.KnowledgeResult
		if err := json.Unmarshal(raw, &kr); err == nil {
			return &kr, true, nil
		}
		log.Printf("[KNOWLEDGE] dropping undecodable cache entry key=%s", key)
	}

	call := func() (any, error) {
		return runStage(ctx, "knowledge-search", timeout, func(sctx context.Context) (any, error) {
			return searcher.Search(sctx, query)
		})
	}

	var v any
	var err error
	if batcher != nil {
		v, err = batcher.Do("rag:"+key, call)
	} else {
		v, err = call()
	}
	if err != nil {
		return nil, false, err
	}

	kr := v.(*assessment.KnowledgeResult)
	if ctx.Err() == nil {
		if raw, err := json.Marshal(kr); err == nil {
			store.Set(ctx, cache.DomainRAG, key, raw)
		}
	}
	return kr, false, nil
}
