package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/pawtrip/backend/internal/models"
)

const sampleAnalysisJSON = `{
  "breed": "Toy Poodle",
  "dominantColor": "apricot",
  "description": "A fluffy apricot poodle with a playful look.",
  "concepts": [
    {"id": "concept-1", "title": "Beach Picnic", "description": "Sunny seaside", "mood": "bright", "itemNames": ["red bucket hat"]},
    {"title": "Winter Cabin", "description": "Cozy knitwear", "mood": "warm", "itemNames": ["ivory knit sweater"]}
  ],
  "items": [
    {"name": "red bucket hat", "category": "hat", "visualDescription": "red cotton bucket hat with a short brim", "searchKeyword": "강아지 빨간 버킷햇", "color": "빨간색"},
    {"name": "ivory knit sweater", "category": "clothing", "visualDescription": "ivory cable knit sweater", "searchKeyword": "ivory cable knit dog sweater", "color": "ivory"}
  ]
}`

func TestParseStyleAnalysis(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"plain JSON", sampleAnalysisJSON, false},
		{"code fence", "```json\n" + sampleAnalysisJSON + "\n```", false},
		{"prose around JSON", "Sure! Here is the analysis:\n" + sampleAnalysisJSON + "\nHope this helps.", false},
		{"raw newline inside string", `{"breed":"Poodle","concepts":[{"title":"Line` + "\n" + `Break"}]}`, false},
		{"no braces", "I cannot analyze this image.", true},
		{"closing brace before opening", "} nothing {", true},
		{"truncated JSON", `{"breed": "Poodle", "concepts": [`, true},
		{"no concepts or items", `{"breed": "Poodle"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStyleAnalysis(tt.raw)
			if tt.wantErr {
				var parseErr *ParseError
				require.True(t, errors.As(err, &parseErr), "want ParseError, got %v", err)
				assert.Equal(t, tt.raw, parseErr.Raw)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got.Concepts)
		})
	}
}

func TestParseStyleAnalysisFillsConceptIDs(t *testing.T) {
	a, err := ParseStyleAnalysis(sampleAnalysisJSON)
	require.NoError(t, err)
	assert.Equal(t, "concept-1", a.Concepts[0].ID)
	assert.Equal(t, "concept-2", a.Concepts[1].ID)
	assert.Equal(t, "Toy Poodle", a.Breed)
	assert.Equal(t, "apricot", a.DominantColor)
	require.Len(t, a.Items, 2)
}

func TestCheckKeywordConsistency(t *testing.T) {
	tests := []struct {
		name     string
		item     models.SuggestedItem
		wantWarn bool
	}{
		{
			name:     "consistent english",
			item:     models.SuggestedItem{Name: "blue raincoat", Category: "clothing", VisualDescription: "blue waterproof raincoat", SearchKeyword: "blue dog raincoat", Color: "blue"},
			wantWarn: false,
		},
		{
			name:     "consistent korean with suffix",
			item:     models.SuggestedItem{Name: "빨간 모자", Category: "hat", VisualDescription: "빨간 면 모자", SearchKeyword: "강아지 빨간색 모자", Color: "빨간색"},
			wantWarn: false,
		},
		{
			name:     "empty keyword",
			item:     models.SuggestedItem{Name: "scarf", VisualDescription: "green scarf"},
			wantWarn: true,
		},
		{
			name:     "unrelated keyword",
			item:     models.SuggestedItem{Name: "bandana", Category: "bandana", VisualDescription: "yellow cotton bandana", SearchKeyword: "leather boots", Color: "yellow"},
			wantWarn: true,
		},
		{
			name:     "color conflict",
			item:     models.SuggestedItem{Name: "knit sweater", Category: "clothing", VisualDescription: "ivory cable knit sweater", SearchKeyword: "black knit sweater", Color: "ivory"},
			wantWarn: true,
		},
		{
			name:     "korean keyword for english description",
			item:     models.SuggestedItem{Name: "Red knit beanie", Category: "hat", VisualDescription: "red chunky knit beanie with a white pompom", SearchKeyword: "강아지 빨간 니트 비니", Color: "red"},
			wantWarn: false,
		},
		{
			name:     "korean garment with particle",
			item:     models.SuggestedItem{Name: "Yellow raincoat", Category: "clothing", VisualDescription: "glossy yellow hooded raincoat", SearchKeyword: "강아지 우비를", Color: "yellow"},
			wantWarn: false,
		},
		{
			name:     "korean keyword with conflicting color",
			item:     models.SuggestedItem{Name: "Red knit beanie", Category: "hat", VisualDescription: "red knit beanie", SearchKeyword: "파란 니트 비니", Color: "red"},
			wantWarn: true,
		},
		{
			name:     "korean keyword for a different item",
			item:     models.SuggestedItem{Name: "bandana", Category: "bandana", VisualDescription: "yellow cotton bandana", SearchKeyword: "강아지 가죽 부츠", Color: "yellow"},
			wantWarn: true,
		},
		{
			name:     "tailored is not red",
			item:     models.SuggestedItem{Name: "tailored vest", Category: "clothing", VisualDescription: "navy tailored vest", SearchKeyword: "tailored dog vest", Color: "navy"},
			wantWarn: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := CheckKeywordConsistency(&models.StyleAnalysis{Items: []models.SuggestedItem{tt.item}})
			if tt.wantWarn {
				assert.Len(t, warnings, 1)
			} else {
				assert.Empty(t, warnings)
			}
		})
	}
}

func TestAnalyzeDog(t *testing.T) {
	gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse("```json\n" + sampleAnalysisJSON + "\n```"), nil
	}}
	svc := NewGeminiService(gen, GeminiOptions{AnalysisModel: "analysis-model"})

	analysis, warnings, err := svc.AnalyzeDog(context.Background(), testSubject)
	require.NoError(t, err)
	assert.Equal(t, "Toy Poodle", analysis.Breed)
	assert.Empty(t, warnings)

	require.Equal(t, 1, gen.callCount())
	call := gen.calls[0]
	assert.Equal(t, "analysis-model", call.model)
	assert.Equal(t, "application/json", call.config.ResponseMIMEType)
	assert.Equal(t, 1, inlineParts(call))
	assert.Contains(t, promptText(call), "Never name brands")
}

func TestAnalyzeDogParseError(t *testing.T) {
	gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse("Sorry, I can't help with that."), nil
	}}
	svc := NewGeminiService(gen, GeminiOptions{})

	_, _, err := svc.AnalyzeDog(context.Background(), testSubject)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, CodeParseError, CodeOf(err))
}

func TestAnalyzeDogProviderError(t *testing.T) {
	gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
		return nil, errors.New("connection reset")
	}}
	svc := NewGeminiService(gen, GeminiOptions{})

	_, _, err := svc.AnalyzeDog(context.Background(), testSubject)
	var fetchErr *ProviderFetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "gemini", fetchErr.Provider)
}

func TestAnalyzeDogDisabled(t *testing.T) {
	svc := NewGeminiService(nil, GeminiOptions{})
	_, _, err := svc.AnalyzeDog(context.Background(), testSubject)
	assert.ErrorIs(t, err, ErrServiceDisabled)
}
