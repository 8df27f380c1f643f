package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"google.golang.org/genai"

	"github.com/pawtrip/backend/internal/models"
)

const analysisPrompt = `You are a pet fashion stylist. Look at the dog in this photo and propose outfits for it.

Return ONLY a JSON object, with no prose and no code fences, matching this schema:
{
  "breed": string,                 // best guess, e.g. "Toy Poodle"
  "dominantColor": string,         // main coat color, e.g. "apricot"
  "description": string,           // one or two sentences about the dog's look and personality
  "concepts": [                    // 3 styling concepts
    {
      "id": string,                // "concept-1", "concept-2", ...
      "title": string,
      "description": string,       // scene and mood of the look
      "mood": string,
      "itemNames": [string]        // names of items below that belong to this concept
    }
  ],
  "items": [                       // 3 to 6 garments or accessories
    {
      "name": string,
      "category": string,          // one of: hat, clothing, harness, collar, bandana, shoes, bag, accessory
      "visualDescription": string, // what the item looks like: color, material, pattern, shape
      "searchKeyword": string,     // short shopping query for this exact item
      "color": string
    }
  ]
}

RULES:
- Never name brands, designers or trademarks anywhere in the output.
- Choose colors that suit the dog's coat; contrast with the dominant color is welcome.
- Each searchKeyword must describe the same item as its visualDescription:
  same color, same item type, same material or pattern. Do not introduce anything the description does not show.
- searchKeyword is 2 to 5 words, written for a Korean pet shopping search (Korean is preferred).
- Sizes and cuts must be realistic for the dog's breed and body.`

// AnalyzeDog asks the model to analyze a dog photo and propose styling concepts and items.
// Warnings lists item keywords that do not match their descriptions; they do not fail the call.
func (s *GeminiService) AnalyzeDog(ctx context.Context, img ImageInput) (*models.StyleAnalysis, []string, error) {
	parts := []*genai.Part{
		imagePart(img),
		genai.NewPartFromText(analysisPrompt),
	}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(s.opts.AnalysisTemp),
		ResponseMIMEType: "application/json",
	}

	candidate, err := s.generate(ctx, "analysis", s.opts.AnalysisModel, parts, config)
	if err != nil {
		return nil, nil, err
	}

	raw := candidateText(candidate)
	debugLog("Analysis raw response (%d chars): %s", len(raw), truncate(raw, 500))

	analysis, err := ParseStyleAnalysis(raw)
	if err != nil {
		infoLog("Analysis parse failed: %v; raw=%s", err, truncate(raw, 1000))
		return nil, nil, err
	}

	warnings := CheckKeywordConsistency(analysis)
	for _, w := range warnings {
		infoLog("Analysis consistency warning: %s", w)
	}
	return analysis, warnings, nil
}

// ParseStyleAnalysis extracts the JSON object from model output. It takes the
// text between the first '{' and the last '}' so that surrounding prose or code
// fences are ignored, and blanks out control characters before decoding.
func ParseStyleAnalysis(raw string) (*models.StyleAnalysis, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("no JSON object in response")}
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, raw[start:end+1])

	var analysis models.StyleAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if len(analysis.Concepts) == 0 && len(analysis.Items) == 0 {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("response has no concepts or items")}
	}

	for i := range analysis.Concepts {
		if analysis.Concepts[i].ID == "" {
			analysis.Concepts[i].ID = fmt.Sprintf("concept-%d", i+1)
		}
	}
	for i := range analysis.Items {
		analysis.Items[i].Name = strings.TrimSpace(analysis.Items[i].Name)
		analysis.Items[i].SearchKeyword = strings.TrimSpace(analysis.Items[i].SearchKeyword)
	}
	return &analysis, nil
}

// colorWords maps color terms to a canonical color so English and Korean spellings compare equal
var colorWords = map[string]string{
	"red": "red", "빨간": "red", "빨강": "red", "레드": "red",
	"blue": "blue", "파란": "blue", "파랑": "blue", "블루": "blue",
	"navy": "navy", "네이비": "navy", "남색": "navy",
	"green": "green", "초록": "green", "그린": "green",
	"yellow": "yellow", "노란": "yellow", "노랑": "yellow", "옐로우": "yellow",
	"pink": "pink", "분홍": "pink", "핑크": "pink",
	"purple": "purple", "보라": "purple", "퍼플": "purple",
	"black": "black", "검정": "black", "검은": "black", "블랙": "black",
	"white": "white", "흰": "white", "하얀": "white", "화이트": "white",
	"brown": "brown", "갈색": "brown", "브라운": "brown",
	"beige": "beige", "베이지": "beige",
	"gray": "gray", "grey": "gray", "회색": "gray", "그레이": "gray",
	"orange": "orange", "주황": "orange", "오렌지": "orange",
	"ivory": "ivory", "아이보리": "ivory",
}

// garmentWords maps Korean shopping terms for garments, materials and patterns to
// the English word the analysis uses, so a Korean keyword can match an English description
var garmentWords = map[string]string{
	"모자": "hat", "버킷": "bucket", "볼캡": "cap", "비니": "beanie",
	"니트": "knit", "스웨터": "sweater", "가디건": "cardigan", "후드": "hoodie", "후디": "hoodie",
	"티셔츠": "shirt", "셔츠": "shirt", "원피스": "dress", "드레스": "dress",
	"조끼": "vest", "베스트": "vest", "패딩": "padded", "자켓": "jacket", "재킷": "jacket",
	"우비": "raincoat", "레인코트": "raincoat", "코트": "coat", "점퍼": "jumper",
	"하네스": "harness", "목걸이": "collar", "카라": "collar", "칼라": "collar", "목줄": "leash", "리드줄": "leash",
	"반다나": "bandana", "스카프": "scarf", "머플러": "scarf", "넥워머": "scarf",
	"신발": "shoes", "슈즈": "shoes", "부츠": "boots", "양말": "socks",
	"가방": "bag", "배낭": "backpack", "백팩": "backpack", "선글라스": "sunglasses", "리본": "ribbon", "나비넥타이": "bow",
	"데님": "denim", "가죽": "leather", "레더": "leather", "플리스": "fleece", "체크": "check",
	"스트라이프": "stripe", "줄무늬": "stripe", "도트": "dot", "방울": "pompom", "폼폼": "pompom", "꽃무늬": "floral",
}

// canonicalTerms returns the words of s plus the canonical English term for every
// color or garment word it contains. Korean words match by prefix to allow particles.
func canonicalTerms(s string) map[string]bool {
	terms := map[string]bool{}
	for _, w := range splitWords(strings.ToLower(s)) {
		if len([]rune(w)) >= 2 {
			terms[strings.TrimSuffix(w, "s")] = true
		}
		for _, table := range []map[string]string{colorWords, garmentWords} {
			if c, ok := table[w]; ok {
				terms[strings.TrimSuffix(c, "s")] = true
				continue
			}
			if isASCII(w) {
				continue
			}
			for word, canonical := range table {
				if !isASCII(word) && strings.HasPrefix(w, word) {
					terms[strings.TrimSuffix(canonical, "s")] = true
				}
			}
		}
	}
	return terms
}

// colorsIn returns the canonical colors mentioned in s. English words must match
// exactly; Korean words match by prefix so "빨간색" counts as red.
func colorsIn(s string) map[string]bool {
	found := map[string]bool{}
	for _, w := range splitWords(strings.ToLower(s)) {
		if c, ok := colorWords[w]; ok {
			found[c] = true
			continue
		}
		if isASCII(w) {
			continue
		}
		for word, canonical := range colorWords {
			if !isASCII(word) && strings.HasPrefix(w, word) {
				found[canonical] = true
			}
		}
	}
	return found
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// CheckKeywordConsistency flags suggested items whose search keyword does not
// describe the same thing as the item. It is advisory: a keyword is flagged when
// it is empty, shares no term with the item's name, category, color or visual
// description, or names a color the item does not have.
func CheckKeywordConsistency(a *models.StyleAnalysis) []string {
	var warnings []string
	for _, item := range a.Items {
		kw := strings.ToLower(item.SearchKeyword)
		if strings.TrimSpace(kw) == "" {
			warnings = append(warnings, fmt.Sprintf("item %q has no search keyword", item.Name))
			continue
		}

		reference := strings.ToLower(strings.Join([]string{item.Name, item.Category, item.Color, item.VisualDescription}, " "))
		if !sharesTerm(kw, reference) {
			warnings = append(warnings, fmt.Sprintf("item %q: keyword %q shares no term with its description", item.Name, item.SearchKeyword))
			continue
		}

		itemColors := colorsIn(reference)
		for c := range colorsIn(kw) {
			if !itemColors[c] {
				warnings = append(warnings, fmt.Sprintf("item %q: keyword %q mentions %s but the item is described as %q", item.Name, item.SearchKeyword, c, item.Color))
				break
			}
		}
	}
	return warnings
}

// sharesTerm reports whether kw and reference name a common color or garment,
// or any word of kw (two or more letters) appears in reference
func sharesTerm(kw, reference string) bool {
	refTerms := canonicalTerms(reference)
	for t := range canonicalTerms(kw) {
		if refTerms[t] {
			return true
		}
	}
	for _, w := range splitWords(kw) {
		if len([]rune(w)) < 2 {
			continue
		}
		if strings.Contains(reference, w) {
			return true
		}
		// Korean words often carry a suffix the description lacks ("모자를" vs "모자")
		if r := []rune(w); len(r) > 2 && strings.Contains(reference, string(r[:len(r)-1])) {
			return true
		}
	}
	return false
}
