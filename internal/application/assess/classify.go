package assess

import (
	"strings"

	"github.com/claimsight/assess-gateway/internal/domain/assessment"
)

// categoryKeywords maps each damage category to its trigger words. Checked
// in a fixed order; first match wins.
var categoryOrder = []assessment.Category{
	assessment.CategoryWater,
	assessment.CategoryFire,
	assessment.CategoryMold,
	assessment.CategoryStructural,
}

var categoryKeywords = map[assessment.Category][]string{
	assessment.CategoryWater:      {"water", "flood", "leak", "moisture", "damp"},
	assessment.CategoryFire:       {"fire", "smoke", "burn", "char", "soot"},
	assessment.CategoryMold:       {"mold", "mildew", "fungus", "spore"},
	assessment.CategoryStructural: {"structural", "foundation", "crack", "beam", "collapse", "sag"},
}

// ClassifyCategory picks a damage category by keyword matching over free
// text (vision description or user question). Falls back to general.
func ClassifyCategory(text string) assessment.Category {
	lower := strings.ToLower(text)
	for _, cat := range categoryOrder {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(lower, kw) {
				return cat
			}
		}
	}
	return assessment.CategoryGeneral
}

// DefaultSuggestedQuestions is the built-in follow-up table; config may
// override it per category.
var DefaultSuggestedQuestions = map[assessment.Category][]string{
	assessment.CategoryWater: {
		"How quickly does water damage need to be dried out?",
		"Will my homeowner's insurance cover this water damage?",
		"Should I be worried about mold after this?",
	},
	assessment.CategoryFire: {
		"Is it safe to stay in my home after this fire damage?",
		"How is smoke odor removed from walls and furniture?",
		"What does fire restoration usually cost?",
	},
	assessment.CategoryMold: {
		"Is this mold dangerous to my family's health?",
		"Can I remove this mold myself or do I need a professional?",
		"How do I stop the mold from coming back?",
	},
	assessment.CategoryStructural: {
		"Is this structural damage an immediate safety risk?",
		"Do I need an engineer's inspection before repairs?",
		"Could this affect my home's resale value?",
	},
	assessment.CategoryGeneral: {
		"What should I do first to limit further damage?",
		"Should I file an insurance claim for this?",
		"How do I find a reputable restoration contractor?",
	},
}
