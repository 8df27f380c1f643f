package services

import (
	"context"
	"sync"

	"google.golang.org/genai"
)

type generateCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

// fakeGenerator records calls and answers with respond
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []generateCall
	respond func(call generateCall) (*genai.GenerateContentResponse, error)
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	call := generateCall{model: model, contents: contents, config: config}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return f.respond(call)
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func imageResponse(data []byte, mimeType, caption string) *genai.GenerateContentResponse {
	parts := []*genai.Part{{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}}}
	if caption != "" {
		parts = append([]*genai.Part{{Text: caption}}, parts...)
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: parts},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

// inlineParts counts image parts in the first content of a call
func inlineParts(call generateCall) int {
	n := 0
	for _, p := range call.contents[0].Parts {
		if p.InlineData != nil {
			n++
		}
	}
	return n
}

func promptText(call generateCall) string {
	for _, p := range call.contents[0].Parts {
		if p.Text != "" {
			return p.Text
		}
	}
	return ""
}

var testSubject = ImageInput{Data: []byte("\x89PNG subject"), MIMEType: "image/png"}
