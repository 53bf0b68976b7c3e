package assess

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/claimsight/assess-gateway/internal/batch"
	"github.com/claimsight/assess-gateway/internal/cache"
	"github.com/claimsight/assess-gateway/internal/domain/assessment"
)

func newTestConversation(t *testing.T) (*Conversation, *fakeKnowledge, *fakeGenerator) {
	t.Helper()
	k := &fakeKnowledge{}
	g := &fakeGenerator{}
	g.fn = func(ctx context.Context, msgs []assessment.Message) (string, error) {
		return "That sounds stressful, but it is fixable. Have you contacted your insurer yet?", nil
	}
	c := &Conversation{
		Knowledge: k,
		Generator: g,
		Cache:     cache.NewMemory(time.Minute, nil),
		Batcher:   batch.New(),
		Timeouts:  testTimeouts(),
	}
	return c, k, g
}

func TestClassifyCategory(t *testing.T) {
	cases := []struct {
		text string
		want assessment.Category
	}{
		{"water stain spreading across the ceiling", assessment.CategoryWater},
		{"smoke and soot on the kitchen wall", assessment.CategoryFire},
		{"black mildew behind the bathroom tiles", assessment.CategoryMold},
		{"a long crack in the foundation", assessment.CategoryStructural},
		{"my house looks fine but smells odd", assessment.CategoryGeneral},
		{"", assessment.CategoryGeneral},
	}
	for _, tc := range cases {
		if got := ClassifyCategory(tc.text); got != tc.want {
			t.Errorf("ClassifyCategory(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestConverse_SuggestedQuestionsFollowCategory(t *testing.T) {
	c, _, _ := newTestConversation(t)

	res, err := c.Converse(context.Background(), "How do I deal with this flood damage?", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	want := DefaultSuggestedQuestions[assessment.CategoryWater]
	if len(res.SuggestedQuestions) != 3 {
		t.Fatalf("suggested = %d questions, want 3", len(res.SuggestedQuestions))
	}
	for i := range want {
		if res.SuggestedQuestions[i] != want[i] {
			t.Errorf("suggested[%d] = %q, want water-category question", i, res.SuggestedQuestions[i])
		}
	}
}

func TestConverse_VisionDescriptionWinsClassification(t *testing.T) {
	c, _, _ := newTestConversation(t)
	cctx := &assessment.ConversationContext{
		Assessment: &assessment.Result{VisionAnalysis: "charred joists and heavy soot"},
	}

	// The question alone would classify as water; the prior vision
	// description takes precedence.
	res, err := c.Converse(context.Background(), "should I worry about the water from the hoses?", cctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.SuggestedQuestions[0] != DefaultSuggestedQuestions[assessment.CategoryFire][0] {
		t.Errorf("expected fire-category suggestions, got %q", res.SuggestedQuestions[0])
	}
}

func TestConverse_Confidence(t *testing.T) {
	ctx := context.Background()

	t.Run("base without sources", func(t *testing.T) {
		c, k, _ := newTestConversation(t)
		k.fn = func(ctx context.Context, q string) (*assessment.KnowledgeResult, error) {
			return &assessment.KnowledgeResult{}, nil
		}
		res, err := c.Converse(ctx, "what now?", nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.ConfidenceScore != 0.7 {
			t.Errorf("confidence = %f, want base 0.7", res.ConfidenceScore)
		}
	})

	t.Run("source bonus", func(t *testing.T) {
		c, _, _ := newTestConversation(t)
		res, err := c.Converse(ctx, "what now?", nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.ConfidenceScore < 0.79 || res.ConfidenceScore > 0.81 {
			t.Errorf("confidence = %f, want 0.8 with sources", res.ConfidenceScore)
		}
	})

	t.Run("blended with prior and capped", func(t *testing.T) {
		c, _, _ := newTestConversation(t)
		cctx := &assessment.ConversationContext{
			Assessment: &assessment.Result{VisionAnalysis: "mold", ConfidenceScore: 1.0},
		}
		res, err := c.Converse(ctx, "is it bad?", cctx)
		if err != nil {
			t.Fatal(err)
		}
		if res.ConfidenceScore != 0.95 {
			t.Errorf("confidence = %f, want capped 0.95", res.ConfidenceScore)
		}
	})
}

func TestConverse_HistoryWindow(t *testing.T) {
	c, _, g := newTestConversation(t)

	var captured []assessment.Message
	g.fn = func(ctx context.Context, msgs []assessment.Message) (string, error) {
		captured = msgs
		return "ok. What else can I help with?", nil
	}

	history := []assessment.ConversationTurn{
		{Role: "user", Content: "turn-one"},
		{Role: "assistant", Content: "turn-two"},
		{Role: "user", Content: "turn-three"},
		{Role: "assistant", Content: "turn-four"},
		{Role: "user", Content: "turn-five"},
	}
	_, err := c.Converse(context.Background(), "and now?", &assessment.ConversationContext{History: history})
	if err != nil {
		t.Fatal(err)
	}

	var user string
	for _, m := range captured {
		if m.Role == "user" {
			user = m.Content
		}
	}
	if strings.Contains(user, "turn-one") || strings.Contains(user, "turn-two") {
		t.Error("prompt must only carry the last 3 history turns")
	}
	for _, want := range []string{"turn-three", "turn-four", "turn-five", "and now?"} {
		if !strings.Contains(user, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestConverse_RagDegradation(t *testing.T) {
	c, k, _ := newTestConversation(t)
	k.fn = func(ctx context.Context, q string) (*assessment.KnowledgeResult, error) {
		return nil, errors.New("retrieval down")
	}

	res, err := c.Converse(context.Background(), "help?", nil)
	if err != nil {
		t.Fatalf("rag failure must not abort conversation: %v", err)
	}
	if len(res.IndustrySources) != 0 {
		t.Errorf("sources = %v, want empty", res.IndustrySources)
	}
	if res.Response == "" {
		t.Error("reply must still be generated")
	}
}

func TestConverse_ProvidedRagContextUsed(t *testing.T) {
	c, _, g := newTestConversation(t)

	var captured []assessment.Message
	g.fn = func(ctx context.Context, msgs []assessment.Message) (string, error) {
		captured = msgs
		return "noted. Anything else on your mind?", nil
	}

	cctx := &assessment.ConversationContext{RagContext: "pre-supplied guidance text"}
	if _, err := c.Converse(context.Background(), "ok?", cctx); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, m := range captured {
		if strings.Contains(m.Content, "pre-supplied guidance text") {
			found = true
		}
	}
	if !found {
		t.Error("caller-provided rag context must reach the generation prompt")
	}
}

func TestConverse_GenerationFailure(t *testing.T) {
	c, _, g := newTestConversation(t)
	g.fn = func(ctx context.Context, msgs []assessment.Message) (string, error) {
		return "", errors.New("model down")
	}

	_, err := c.Converse(context.Background(), "help?", nil)
	assertKind(t, err, assessment.KindUnexpected, 500)
}
