package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/pawtrip/backend/internal/metrics"
)

const defaultGeminiTimeout = 60 * time.Second

// ContentGenerator is the part of the genai SDK the service calls.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiModels creates a genai client for the Gemini API and returns its Models service
func NewGeminiModels(ctx context.Context, apiKey string) (ContentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client.Models, nil
}

// GeminiOptions configures a GeminiService
type GeminiOptions struct {
	AnalysisModel string
	ImageModel    string
	Timeout       time.Duration
	AnalysisTemp  float32
}

// GeminiService sends analysis and synthesis requests to Gemini.
// It never retries; failures are returned to the caller.
type GeminiService struct {
	models ContentGenerator
	opts   GeminiOptions
}

// NewGeminiService wraps a content generator. A nil generator yields a disabled service.
func NewGeminiService(models ContentGenerator, opts GeminiOptions) *GeminiService {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultGeminiTimeout
	}
	if opts.AnalysisModel == "" {
		opts.AnalysisModel = "gemini-2.5-flash"
	}
	if opts.ImageModel == "" {
		opts.ImageModel = "gemini-2.5-flash-image"
	}

	if models != nil {
		infoLog("Gemini service: enabled (analysis=%s, image=%s)", opts.AnalysisModel, opts.ImageModel)
	} else {
		infoLog("Gemini service: disabled (no GEMINI_API_KEY)")
	}
	return &GeminiService{models: models, opts: opts}
}

// IsEnabled returns whether Gemini is configured
func (s *GeminiService) IsEnabled() bool {
	return s != nil && s.models != nil
}

// ImageModel returns the model used for image generation
func (s *GeminiService) ImageModel() string {
	return s.opts.ImageModel
}

var defaultSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

// generate runs one request under the configured timeout and returns the first candidate.
// Transport errors and timeouts become ProviderFetchError.
func (s *GeminiService) generate(ctx context.Context, purpose, model string, parts []*genai.Part, config *genai.GenerateContentConfig) (*genai.Candidate, error) {
	if !s.IsEnabled() {
		return nil, ErrServiceDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if config.SafetySettings == nil {
		config.SafetySettings = defaultSafetySettings
	}

	start := time.Now()
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := s.models.GenerateContent(ctx, model, contents, config)
	metrics.GeminiRequestDuration.WithLabelValues(purpose).Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.GeminiRequestsTotal.WithLabelValues(purpose, outcome).Inc()
		return nil, &ProviderFetchError{Provider: "gemini", Err: err}
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		metrics.GeminiRequestsTotal.WithLabelValues(purpose, "empty").Inc()
		reason := "no candidates"
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + string(resp.PromptFeedback.BlockReason)
		}
		return nil, &GenerationFailure{Reason: reason}
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case "SAFETY", "IMAGE_SAFETY", "PROHIBITED_CONTENT":
		metrics.GeminiRequestsTotal.WithLabelValues(purpose, "blocked").Inc()
		return nil, &GenerationFailure{Reason: "blocked by safety filter"}
	case "RECITATION":
		metrics.GeminiRequestsTotal.WithLabelValues(purpose, "blocked").Inc()
		return nil, &GenerationFailure{Reason: "blocked for recitation"}
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		metrics.GeminiRequestsTotal.WithLabelValues(purpose, "empty").Inc()
		return nil, &GenerationFailure{Reason: fmt.Sprintf("empty response (finish reason %s)", candidate.FinishReason)}
	}

	metrics.GeminiRequestsTotal.WithLabelValues(purpose, "success").Inc()
	return candidate, nil
}

// candidateText joins the text parts of a candidate
func candidateText(c *genai.Candidate) string {
	var sb strings.Builder
	for _, part := range c.Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// candidateImage returns the first inline image part of a candidate, or nil
func candidateImage(c *genai.Candidate) *genai.Blob {
	for _, part := range c.Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 &&
			strings.HasPrefix(part.InlineData.MIMEType, "image/") {
			return part.InlineData
		}
	}
	return nil
}

func imagePart(img ImageInput) *genai.Part {
	return genai.NewPartFromBytes(img.Data, img.MIMEType)
}
