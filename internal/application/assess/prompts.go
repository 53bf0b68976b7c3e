package assess

import (
	"fmt"
	"strings"

	"github.com/claimsight/assess-gateway/internal/domain/assessment"
)

// visionPrompt directs the classifier to emit strict JSON so confidence can
// be parsed instead of guessed.
func visionPrompt() string {
	return `You are a property damage inspector. Describe the damage visible in this photo: affected materials, severity, and likely cause. Respond with one valid JSON object only (no markdown, no commentary):
{"description": "<string>", "confidence": <number between 0 and 1>}`
}

// knowledgeKeywords ground retrieval in the restoration domain regardless of
// what the classifier said.
const knowledgeKeywords = "property damage repair restoration insurance claim"

// buildKnowledgeQuery embeds the vision description so retrieval is grounded
// in what was actually seen, not just the raw user image.
func buildKnowledgeQuery(visionDescription string) string {
	return strings.TrimSpace(visionDescription) + " " + knowledgeKeywords
}

func buildAssessmentMessages(visionDescription string, knowledge *assessment.KnowledgeResult) []assessment.Message {
	system := `You are a senior property damage assessor. Produce a clear, structured assessment for a homeowner: what the damage is, how severe it is, immediate mitigation steps, and what a professional repair typically involves. Be specific and avoid speculation beyond the evidence given.`

	var b strings.Builder
	fmt.Fprintf(&b, "Damage observed in the photo:\n%s\n\n", visionDescription)
	if knowledge != nil && strings.TrimSpace(knowledge.Response) != "" {
		fmt.Fprintf(&b, "Relevant industry guidance:\n%s\n\n", knowledge.Response)
		b.WriteString("Ground your assessment in the guidance above.")
	} else {
		b.WriteString("No industry guidance was retrieved; base the assessment on standard industry practices.")
	}

	return []assessment.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: b.String()},
	}
}

// buildConversationMessages produces the follow-up chat. The trailing
// question is a prompt-construction contract, not something validated on
// the way out.
func buildConversationMessages(question string, cctx *assessment.ConversationContext, ragText string) []assessment.Message {
	system := `You are a compassionate property damage advisor helping someone deal with damage to their home. Answer in an empathetic, reassuring tone, give practical next steps, and always end your reply with one helpful follow-up question.`

	var b strings.Builder
	if cctx != nil {
		if cctx.Assessment != nil && cctx.Assessment.VisionAnalysis != "" {
			fmt.Fprintf(&b, "Earlier assessment of their photo:\n%s\n\n", cctx.Assessment.VisionAnalysis)
		}
		for _, turn := range lastTurns(cctx.History, historyWindow) {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
	}
	if strings.TrimSpace(ragText) != "" {
		fmt.Fprintf(&b, "Relevant industry guidance:\n%s\n\n", ragText)
	}
	fmt.Fprintf(&b, "Their question: %s", question)

	return []assessment.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: b.String()},
	}
}

func lastTurns(history []assessment.ConversationTurn, n int) []assessment.ConversationTurn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
