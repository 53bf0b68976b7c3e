package assess

import (
	"context"
	"log"
	"strings"

	"github.com/claimsight/assess-gateway/internal/batch"
	"github.com/claimsight/assess-gateway/internal/cache"
	"github.com/claimsight/assess-gateway/internal/domain/assessment"
)

// historyWindow: how many trailing turns feed the contextual query.
const historyWindow = 3

// ConfidenceWeights shape the heuristic conversation confidence. Product
// data, not engineering contract; defaults match the original heuristic.
type ConfidenceWeights struct {
	Base        float64
	SourceBonus float64
	Max         float64
}

func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{Base: 0.7, SourceBonus: 0.1, Max: 0.95}
}

// Conversation is the lighter-weight sibling of the assessment pipeline: it
// reuses the retrieval cache and batching but never touches the image
// validator.
type Conversation struct {
	Knowledge assessment.KnowledgeSearcher
	Generator assessment.TextGenerator

	Cache   cache.Store
	Batcher *batch.Batcher

	Timeouts   Timeouts
	Confidence ConfidenceWeights
	Suggested  map[assessment.Category][]string
}

// Converse answers a follow-up question against the prior assessment and
// rolling history.
func (c *Conversation) Converse(ctx context.Context, question string, cctx *assessment.ConversationContext) (*assessment.ConversationResult, error) {
	if c.Generator == nil {
		return nil, assessment.Unavailable("text generator not configured")
	}

	query := c.buildContextualQuery(question, cctx)

	// Retrieval degrades the same way it does in the main pipeline.
	var sources []assessment.Source
	ragText := ""
	if cctx != nil {
		ragText = cctx.RagContext
	}
	if kr, _, err := lookupKnowledge(ctx, c.Cache, c.Batcher, c.Knowledge, c.Timeouts.Search, query); err != nil {
		log.Printf("[CONVERSATION] knowledge search degraded: %v", err)
	} else {
		sources = kr.Sources
		if ragText == "" {
			ragText = kr.Response
		}
	}

	msgs := buildConversationMessages(question, cctx, ragText)
	v, err := runStage(ctx, "generation", c.Timeouts.Generation, func(sctx context.Context) (any, error) {
		return c.Generator.Generate(sctx, msgs)
	})
	if err != nil {
		return nil, assessment.AsError(err)
	}

	category := c.classifyTurn(question, cctx)
	if sources == nil {
		sources = []assessment.Source{}
	}

	return &assessment.ConversationResult{
		Success:            true,
		Response:           v.(string),
		ConfidenceScore:    c.confidence(sources, cctx),
		IndustrySources:    sources,
		SuggestedQuestions: c.suggestedFor(category),
	}, nil
}

// buildContextualQuery prefixes the vision description and the trailing
// history turns so retrieval sees the whole exchange, not just the latest
// question.
func (c *Conversation) buildContextualQuery(question string, cctx *assessment.ConversationContext) string {
	var parts []string
	if cctx != nil {
		if cctx.Assessment != nil && cctx.Assessment.VisionAnalysis != "" {
			parts = append(parts, cctx.Assessment.VisionAnalysis)
		}
		for _, turn := range lastTurns(cctx.History, historyWindow) {
			parts = append(parts, turn.Content)
		}
	}
	parts = append(parts, question)
	return strings.Join(parts, "\n")
}

// classifyTurn prefers the vision description; the raw question is the
// fallback signal.
func (c *Conversation) classifyTurn(question string, cctx *assessment.ConversationContext) assessment.Category {
	if cctx != nil && cctx.Assessment != nil && cctx.Assessment.VisionAnalysis != "" {
		if cat := ClassifyCategory(cctx.Assessment.VisionAnalysis); cat != assessment.CategoryGeneral {
			return cat
		}
	}
	return ClassifyCategory(question)
}

// confidence: base, plus a bonus when retrieval returned sources, blended
// toward the prior assessment's confidence when one exists, capped.
func (c *Conversation) confidence(sources []assessment.Source, cctx *assessment.ConversationContext) float64 {
	w := c.Confidence
	if w.Max == 0 {
		w = DefaultConfidenceWeights()
	}

	conf := w.Base
	if len(sources) > 0 {
		conf += w.SourceBonus
	}
	if cctx != nil && cctx.Assessment != nil && cctx.Assessment.ConfidenceScore > 0 {
		conf = (conf+cctx.Assessment.ConfidenceScore)/2 + w.SourceBonus
	}
	if conf > w.Max {
		conf = w.Max
	}
	return assessment.ClampConfidence(conf)
}

func (c *Conversation) suggestedFor(cat assessment.Category) []string {
	table := c.Suggested
	if table == nil {
		table = DefaultSuggestedQuestions
	}
	if qs, ok := table[cat]; ok && len(qs) > 0 {
		return qs
	}
	return DefaultSuggestedQuestions[assessment.CategoryGeneral]
}
