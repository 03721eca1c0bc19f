package services

import "strings"

// Advisor personas. The client usually sends an assembled prompt; these are
// the server-side defaults used when it does not.
const (
	ModeProfessional = "professional"
	ModeBalanced     = "balanced"
	ModeHype         = "hype"
	ModeRoast        = "roast"
)

var modeMaxTokens = map[string]int{
	ModeProfessional: 1000,
	ModeBalanced:     800,
	ModeHype:         700,
	ModeRoast:        700,
}

const defaultMaxTokens = 800

// MaxTokensForMode bounds the outbound request cost per advisor persona.
// Unknown modes resolve to the default budget.
func MaxTokensForMode(mode string) int {
	if budget, ok := modeMaxTokens[mode]; ok {
		return budget
	}
	return defaultMaxTokens
}

const (
	streamConciseMaxTokens  = 600
	streamDetailedMaxTokens = 1500
)

func StreamMaxTokens(detailed bool) int {
	if detailed {
		return streamDetailedMaxTokens
	}
	return streamConciseMaxTokens
}

var modePrompts = map[string]string{
	ModeProfessional: "You are a professional fashion stylist. Review this outfit photo and give precise, constructive styling feedback in markdown: fit, color coordination, occasion suitability and two concrete improvements.",
	ModeBalanced:     "You are a friendly style advisor. Review this outfit photo and give balanced, encouraging feedback in markdown: what works, what could be better, and one suggestion to try.",
	ModeHype:         "You are the user's biggest fan. React to this outfit photo with maximum enthusiasm in markdown, celebrating the strongest elements of the look.",
	ModeRoast:        "You are a sharp-tongued fashion critic. Playfully roast this outfit photo in markdown. Keep it funny, never cruel, and end with one genuinely useful tip.",
}

// PromptForMode returns the default persona prompt for a mode, falling back
// to the balanced persona.
func PromptForMode(mode string) string {
	if prompt, ok := modePrompts[mode]; ok {
		return prompt
	}
	return modePrompts[ModeBalanced]
}

const analysisMaxTokens = 2000

const analysisInstruction = `Analyze this outfit photo. Respond with ONLY a JSON object, no markdown, no commentary, matching exactly this schema:
{
  "colors": {"primary": string, "secondary": string, "accent": string, "neutrals": [string], "palette_type": string},
  "style_tags": [string],
  "garments": [{"type": string, "description": string, "color": string, "fit": string}],
  "style_analysis": {"current_aesthetic": string, "proportion_score": integer 1-10, "color_harmony_score": integer 1-10, "occasion_versatility": [string]},
  "improvement_gaps": [{"category": string, "issue": string, "suggestion": string, "search_terms": [string]}],
  "recommended_additions": [{"item_type": string, "reason": string, "color_recommendation": string, "style_recommendation": string, "search_query": string}],
  "color_theory_notes": string
}`

// AnalysisMaxTokens is the fixed budget for the structured analysis call.
func AnalysisMaxTokens() int {
	return analysisMaxTokens
}

// UserPreferences are optional hints appended to the analysis prompt.
type UserPreferences struct {
	FavoriteColors  []string `json:"favoriteColors"`
	PreferredStyles []string `json:"preferredStyles"`
	FavoriteBrands  []string `json:"favoriteBrands"`
}

func BuildAnalysisPrompt(prefs *UserPreferences) string {
	var b strings.Builder
	b.WriteString(analysisInstruction)
	if prefs == nil {
		return b.String()
	}
	if len(prefs.FavoriteColors) > 0 {
		b.WriteString("\nUser's favorite colors: " + strings.Join(prefs.FavoriteColors, ", "))
	}
	if len(prefs.PreferredStyles) > 0 {
		b.WriteString("\nUser's preferred styles: " + strings.Join(prefs.PreferredStyles, ", "))
	}
	if len(prefs.FavoriteBrands) > 0 {
		b.WriteString("\nUser's favorite brands: " + strings.Join(prefs.FavoriteBrands, ", "))
	}
	return b.String()
}

// StripMarkdownFences removes a leading ```json / ``` fence and a trailing
// ``` fence. Models wrap JSON in fences often enough that the analysis
// parser must tolerate it.
func StripMarkdownFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}
