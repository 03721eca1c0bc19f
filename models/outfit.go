package models

// SavedOutfit is a photo the user kept in their closet. ImageURL is the file
// **key** in storage, not a public URL.
type SavedOutfit struct {
	JsonModel
	Name                 string      `json:"name"`
	Description          *string     `gorm:"type:text" json:"description"`
	Owner                UserAccount `json:"-"`
	OwnerID              uint        `gorm:"index" json:"-"`
	ImageURL             *string     `json:"image_url"`
	ImageStatus          string      `json:"image_status"`    // draft, uploaded
	AnalysisStatus       string      `json:"analysis_status"` // idle, pending, completed, failed
	AnalysisJSON         *string     `gorm:"type:text" json:"-"`
	AnalysisRetryTimes   int         `json:"-"`
	AnalysisErrorMessage *string     `json:"analysis_error_message"`

	LLMModel            *string `json:"llm_model"`
	LLMInputTokenCount  *int32  `json:"llm_input_token_count"`
	LLMOutputTokenCount *int32  `json:"llm_output_token_count"`
	AlertWhenProcessed  bool    `json:"alert_when_processed"`
}

// OutfitAnalysis is the structured object the analysis endpoint must return.
// Scores are integers 1-10.
type OutfitAnalysis struct {
	Colors               AnalysisColors        `json:"colors"`
	StyleTags            []string              `json:"style_tags"`
	Garments             []Garment             `json:"garments"`
	StyleAnalysis        StyleAnalysis         `json:"style_analysis"`
	ImprovementGaps      []ImprovementGap      `json:"improvement_gaps"`
	RecommendedAdditions []RecommendedAddition `json:"recommended_additions"`
	ColorTheoryNotes     string                `json:"color_theory_notes"`
}

type AnalysisColors struct {
	Primary     string   `json:"primary"`
	Secondary   string   `json:"secondary"`
	Accent      string   `json:"accent"`
	Neutrals    []string `json:"neutrals"`
	PaletteType string   `json:"palette_type"`
}

type Garment struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Fit         string `json:"fit"`
}

type StyleAnalysis struct {
	CurrentAesthetic    string   `json:"current_aesthetic"`
	ProportionScore     int      `json:"proportion_score"`
	ColorHarmonyScore   int      `json:"color_harmony_score"`
	OccasionVersatility []string `json:"occasion_versatility"`
}

type ImprovementGap struct {
	Category    string   `json:"category"`
	Issue       string   `json:"issue"`
	Suggestion  string   `json:"suggestion"`
	SearchTerms []string `json:"search_terms"`
}

type RecommendedAddition struct {
	ItemType            string `json:"item_type"`
	Reason              string `json:"reason"`
	ColorRecommendation string `json:"color_recommendation"`
	StyleRecommendation string `json:"style_recommendation"`
	SearchQuery         string `json:"search_query"`
}

// Valid checks the invariants the analysis contract promises to callers.
func (a *OutfitAnalysis) Valid() bool {
	if a.StyleAnalysis.ProportionScore < 1 || a.StyleAnalysis.ProportionScore > 10 {
		return false
	}
	if a.StyleAnalysis.ColorHarmonyScore < 1 || a.StyleAnalysis.ColorHarmonyScore > 10 {
		return false
	}
	return true
}
