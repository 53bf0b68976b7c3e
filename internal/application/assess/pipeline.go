package assess

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/claimsight/assess-gateway/internal/batch"
	"github.com/claimsight/assess-gateway/internal/cache"
	"github.com/claimsight/assess-gateway/internal/domain/assessment"
	"github.com/claimsight/assess-gateway/internal/imaging"
)

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Limits are the request-level ceilings, enforced before any expensive work.
type Limits struct {
	MaxEncodedBytes int
	MaxDecodedBytes int
	MaxWidth        int
	MaxHeight       int
	AllowedTypes    []string
	MaxQueryLen     int
}

// Timeouts are the per-stage deadlines.
type Timeouts struct {
	Vision     time.Duration
	Search     time.Duration
	Generation time.Duration
}

var dataURIRe = regexp.MustCompile(`^data:(image/[^;]+);base64,`)

// Pipeline orchestrates one assessment: validate, probe the cache, then the
// sequential vision -> retrieval -> generation flow with per-stage
// deadlines. Retrieval failure degrades to an empty result; vision and
// generation failures abort the request. All dependencies are injected so
// tests run against an isolated store and fake providers.
//
// Pipeline is safe for concurrent use.
type Pipeline struct {
	Vision    assessment.VisionClassifier
	Knowledge assessment.KnowledgeSearcher
	Generator assessment.TextGenerator

	Cache   cache.Store
	Batcher *batch.Batcher
	History assessment.Recorder
	Clock   Clock

	Limits            Limits
	Timeouts          Timeouts
	DefaultConfidence float64
}

// Assess runs the full flow for one data-URI image payload.
func (p *Pipeline) Assess(ctx context.Context, image string) (*assessment.Result, error) {
	start := time.Now()

	asset, err := p.decodeAndValidate(image)
	if err != nil {
		return nil, err
	}

	// Full-assessment cache probe: repeated uploads of the same photo skip
	// every AI stage. This is the dominant latency optimization.
	if raw, ok := p.store().Get(ctx, cache.DomainAssessment, asset.Hash); ok {
		var res assessment.Result
		if err := json.Unmarshal(raw, &res); err == nil {
			res.Performance = assessment.Performance{
				TotalTimeMS: time.Since(start).Milliseconds(),
				Cached:      true,
			}
			return &res, nil
		}
	}

	vision, err := p.classify(ctx, asset)
	if err != nil {
		ae := assessment.AsError(err)
		p.recordFailure(asset, ae, time.Since(start))
		return nil, ae
	}

	// Retrieval is an enrichment, not a correctness-critical stage: catch,
	// log, continue with an empty result.
	query := buildKnowledgeQuery(vision.Description)
	knowledge, _, err := lookupKnowledge(ctx, p.Cache, p.Batcher, p.Knowledge, p.Timeouts.Search, query)
	if err != nil {
		log.Printf("[PIPELINE] knowledge search degraded, continuing without sources: %v", err)
		knowledge = &assessment.KnowledgeResult{}
	}

	enhanced, err := p.generate(ctx, vision, knowledge)
	if err != nil {
		ae := assessment.AsError(err)
		p.recordFailure(asset, ae, time.Since(start))
		return nil, ae
	}

	confidence := vision.Confidence
	if confidence == 0 {
		confidence = p.DefaultConfidence
	}
	sources := knowledge.Sources
	if sources == nil {
		sources = []assessment.Source{}
	}

	res := &assessment.Result{
		Success:            true,
		VisionAnalysis:     vision.Description,
		IndustrySources:    sources,
		EnhancedAssessment: enhanced,
		ConfidenceScore:    assessment.ClampConfidence(confidence),
		Timestamp:          p.now(),
		Performance: assessment.Performance{
			TotalTimeMS: time.Since(start).Milliseconds(),
			Cached:      false,
		},
	}

	// Never cache or record a cancelled operation.
	if ctx.Err() == nil {
		if raw, err := json.Marshal(res); err == nil {
			p.store().Set(ctx, cache.DomainAssessment, asset.Hash, raw)
		}
		p.recordSuccess(asset, res)
	}

	return res, nil
}

// SearchKnowledge serves the knowledge-search endpoint: same cache domain
// and batching as the pipeline's retrieval stage, but failures here are
// fatal to the request.
func (p *Pipeline) SearchKnowledge(ctx context.Context, query string) (*assessment.KnowledgeResult, bool, error) {
	kr, cached, err := lookupKnowledge(ctx, p.Cache, p.Batcher, p.Knowledge, p.Timeouts.Search, query)
	if err != nil {
		return nil, false, assessment.AsError(err)
	}
	return kr, cached, nil
}

// CacheStats exposes the store's diagnostic counters.
func (p *Pipeline) CacheStats() cache.Stats {
	return p.store().Stats()
}

//
// ==== STAGES ====
//

// decodeAndValidate walks the Validating state: envelope prefix, allow-list,
// encoded ceiling, base64 decode, decoded ceiling, then the byte-level
// image validator. Ceilings are checked before decoding so an oversized
// payload never costs a decode.
func (p *Pipeline) decodeAndValidate(image string) (*assessment.ImageAsset, error) {
	m := dataURIRe.FindStringSubmatch(image)
	if m == nil {
		return nil, assessment.Invalid(assessment.KindInvalidFormat,
			"Invalid image format", "image must be a data:image/...;base64 URI")
	}
	declared := m[1]
	if !p.typeAllowed(declared) {
		return nil, assessment.Invalid(assessment.KindInvalidFormat,
			"Unsupported image type", fmt.Sprintf("%s is not an accepted image type", declared))
	}
	if len(image) > p.Limits.MaxEncodedBytes {
		return nil, assessment.TooLarge(fmt.Sprintf("encoded payload exceeds %d bytes", p.Limits.MaxEncodedBytes))
	}

	raw, err := base64.StdEncoding.DecodeString(image[len(m[0]):])
	if err != nil {
		return nil, assessment.Invalid(assessment.KindInvalidBase64,
			"Invalid base64 encoding", "image payload could not be decoded")
	}
	if len(raw) > p.Limits.MaxDecodedBytes {
		return nil, assessment.TooLarge(fmt.Sprintf("decoded payload exceeds %d bytes", p.Limits.MaxDecodedBytes))
	}

	validator := imaging.NewValidator(p.Limits.MaxWidth, p.Limits.MaxHeight)
	sanitized, w, h, err := validator.Validate(raw, declared)
	if err != nil {
		return nil, err
	}

	return &assessment.ImageAsset{
		Data:         sanitized,
		DeclaredType: declared,
		DetectedType: declared,
		Width:        w,
		Height:       h,
		Hash:         cache.HashImage(sanitized),
	}, nil
}

func (p *Pipeline) classify(ctx context.Context, asset *assessment.ImageAsset) (*assessment.VisionResult, error) {
	if p.Vision == nil {
		return nil, assessment.Unavailable("vision classifier not configured")
	}

	if raw, ok := p.store().Get(ctx, cache.DomainVision, asset.Hash); ok {
		var vr assessment.VisionResult
		if err := json.Unmarshal(raw, &vr); err == nil {
			return &vr, nil
		}
	}

	call := func() (any, error) {
		return runStage(ctx, "vision", p.Timeouts.Vision, func(sctx context.Context) (any, error) {
			return p.Vision.Classify(sctx, asset.Data, asset.DeclaredType, visionPrompt())
		})
	}

	var v any
	var err error
	if p.Batcher != nil {
		v, err = p.Batcher.Do("vision:"+asset.Hash, call)
	} else {
		v, err = call()
	}
	if err != nil {
		return nil, err
	}

	vr := v.(*assessment.VisionResult)
	if ctx.Err() == nil {
		if raw, err := json.Marshal(vr); err == nil {
			p.store().Set(ctx, cache.DomainVision, asset.Hash, raw)
		}
	}
	return vr, nil
}

func (p *Pipeline) generate(ctx context.Context, vision *assessment.VisionResult, knowledge *assessment.KnowledgeResult) (string, error) {
	if p.Generator == nil {
		return "", assessment.Unavailable("text generator not configured")
	}

	msgs := buildAssessmentMessages(vision.Description, knowledge)
	v, err := runStage(ctx, "generation", p.Timeouts.Generation, func(sctx context.Context) (any, error) {
		return p.Generator.Generate(sctx, msgs)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

//
// ==== HELPERS ====
//

func (p *Pipeline) typeAllowed(mime string) bool {
	for _, t := range p.Limits.AllowedTypes {
		if t == mime {
			return true
		}
	}
	return false
}

func (p *Pipeline) store() cache.Store {
	if p.Cache == nil {
		return cache.Disabled{}
	}
	return p.Cache
}

func (p *Pipeline) now() time.Time {
	if p.Clock == nil {
		return time.Now()
	}
	return p.Clock.Now()
}

// recordSuccess writes the history row in the background; the request
// context may already be gone by the time the insert lands.
func (p *Pipeline) recordSuccess(asset *assessment.ImageAsset, res *assessment.Result) {
	if p.History == nil {
		return
	}
	rec := &assessment.Record{
		ID:         assessment.RecordID(uuid.NewString()),
		ImageHash:  asset.Hash,
		Category:   ClassifyCategory(res.VisionAnalysis),
		Status:     assessment.StatusSuccess,
		Confidence: res.ConfidenceScore,
		Summary:    res.VisionAnalysis,
		DurationMS: res.Performance.TotalTimeMS,
		CreatedAt:  p.now(),
	}
	go p.saveRecord(rec)
}

func (p *Pipeline) recordFailure(asset *assessment.ImageAsset, ae *assessment.Error, elapsed time.Duration) {
	if p.History == nil {
		return
	}
	rec := &assessment.Record{
		ID:         assessment.RecordID(uuid.NewString()),
		ImageHash:  asset.Hash,
		Category:   assessment.CategoryGeneral,
		Status:     assessment.StatusFailed,
		ErrorCode:  string(ae.Kind),
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  p.now(),
	}
	go p.saveRecord(rec)
}

func (p *Pipeline) saveRecord(rec *assessment.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.History.Save(ctx, rec); err != nil {
		log.Printf("[PIPELINE] history save failed id=%s: %v", rec.ID, err)
	}
}
