package models

// StyleAnalysis is the structured result of analyzing a dog photo.
// Field names match the JSON the model is instructed to return.
type StyleAnalysis struct {
	Breed         string          `json:"breed"`
	DominantColor string          `json:"dominantColor"`
	Description   string          `json:"description"`
	Concepts      []StyleConcept  `json:"concepts"`
	Items         []SuggestedItem `json:"items"`
}

// StyleConcept is one proposed look for the dog
type StyleConcept struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Mood        string   `json:"mood"`
	ItemNames   []string `json:"itemNames"`
}

// SuggestedItem is a garment or accessory proposed by the analysis.
// SearchKeyword feeds the shopping search and should describe the same
// object as VisualDescription.
type SuggestedItem struct {
	Name              string `json:"name"`
	Category          string `json:"category"`
	VisualDescription string `json:"visualDescription"`
	SearchKeyword     string `json:"searchKeyword"`
	Color             string `json:"color"`
}

// FindConcept returns the concept with the given id or title
func (a *StyleAnalysis) FindConcept(key string) *StyleConcept {
	for i := range a.Concepts {
		if a.Concepts[i].ID == key || a.Concepts[i].Title == key {
			return &a.Concepts[i]
		}
	}
	return nil
}

// SynthesisMode selects the synthesis instruction template
type SynthesisMode string

const (
	// ModeFitting keeps the dog's identity locked and fits reference garments on it
	ModeFitting SynthesisMode = "fitting"
	// ModePictorial allows a stylistic scene change and uses no reference images
	ModePictorial SynthesisMode = "pictorial"
)

// Valid reports whether m is a known mode
func (m SynthesisMode) Valid() bool {
	return m == ModeFitting || m == ModePictorial
}

// StyledImage is one successfully generated variant
type StyledImage struct {
	Variant  string        `json:"variant"`
	Mode     SynthesisMode `json:"mode"`
	ImageURL string        `json:"imageUrl"`
	MIMEType string        `json:"mimeType"`
	Caption  string        `json:"caption,omitempty"`
}

// VariantError describes a variant that failed to generate
type VariantError struct {
	Variant string `json:"variant"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GeneratedStyleResult is returned from a synthesis request. Only sessions keep it.
// StyledImages holds whatever variants succeeded; VariantErrors the rest.
type GeneratedStyleResult struct {
	OriginalImage string         `json:"originalImage"`
	StyledImages  []StyledImage  `json:"styledImages"`
	Analysis      *StyleAnalysis `json:"analysis,omitempty"`
	Description   string         `json:"description"`
	VariantErrors []VariantError `json:"variantErrors,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}
