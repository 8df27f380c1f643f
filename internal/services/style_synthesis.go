package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pawtrip/backend/internal/models"
)

// SynthesisRequest is one image-editing call
type SynthesisRequest struct {
	Variant        string
	Subject        ImageInput
	References     []ImageInput
	ItemNames      []string
	Concept        string
	Instruction    string
	Mode           models.SynthesisMode
	KeepBackground bool
	Temperature    float32
}

// GeneratedImage is the raw output of a synthesis call
type GeneratedImage struct {
	Data     []byte
	MIMEType string
	Text     string
}

const fittingTemplate = `Edit this photo of a dog so it is wearing the outfit described below.

IDENTITY LOCK: the dog's face, eyes, gaze direction, fur color, fur texture, markings, body shape and pose must stay exactly as in the photo. Do not change the breed, age or expression.
FIT: garments must sit on the dog's real anatomy with believable size, folds, seams and shadows. Ears, tail and legs pass through openings naturally. Nothing floats or clips through fur.
%s
OUTFIT: %s
%s
Output one photorealistic image.`

const pictorialTemplate = `Create a styled editorial pictorial of the dog in this photo.

The dog must remain recognizable: same breed, same coat color and markings. Pose, framing and expression may change to suit the story.
Transform lighting, color grading, set and mood to tell the concept below as a single magazine-quality shot.
%s
CONCEPT: %s
%s
Output one image.`

const referenceNote = "The additional images show the exact items to put on the dog, in order: %s. Reproduce their color, material and pattern faithfully."

// BuildSynthesisPrompt renders the instruction text for a synthesis request
func BuildSynthesisPrompt(req SynthesisRequest) string {
	var background string
	if req.KeepBackground {
		background = "BACKGROUND: keep the original background, lighting direction and framing unchanged."
	} else {
		background = "BACKGROUND: replace the background with a scene that matches the concept, with lighting consistent on the dog."
	}

	concept := strings.TrimSpace(req.Concept)
	if concept == "" {
		concept = "a cute everyday look"
	}

	var extra []string
	if req.Instruction != "" {
		extra = append(extra, "USER REQUEST: "+strings.TrimSpace(req.Instruction))
	}

	switch req.Mode {
	case models.ModePictorial:
		return fmt.Sprintf(pictorialTemplate, background, concept, strings.Join(extra, "\n"))
	default:
		outfit := concept
		if len(req.ItemNames) > 0 {
			outfit = strings.Join(req.ItemNames, ", ") + " (" + concept + ")"
		}
		if len(req.References) > 0 {
			extra = append(extra, fmt.Sprintf(referenceNote, strings.Join(referenceLabels(req), ", ")))
		}
		return fmt.Sprintf(fittingTemplate, background, outfit, strings.Join(extra, "\n"))
	}
}

func referenceLabels(req SynthesisRequest) []string {
	labels := make([]string, len(req.References))
	for i := range req.References {
		if i < len(req.ItemNames) {
			labels[i] = req.ItemNames[i]
		} else {
			labels[i] = fmt.Sprintf("item %d", i+1)
		}
	}
	return labels
}

// Synthesize generates one styled image. Fitting mode attaches reference images
// after the subject; pictorial mode sends the subject alone. A response with no
// image part is a GenerationFailure.
func (s *GeminiService) Synthesize(ctx context.Context, req SynthesisRequest) (*GeneratedImage, error) {
	prompt := BuildSynthesisPrompt(req)
	debugLog("Synthesis %s (%s, temp=%.2f, refs=%d): %s", req.Variant, req.Mode, req.Temperature, len(req.References), truncate(prompt, 300))

	parts := []*genai.Part{imagePart(req.Subject)}
	if req.Mode != models.ModePictorial {
		for _, ref := range req.References {
			parts = append(parts, imagePart(ref))
		}
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	config := &genai.GenerateContentConfig{
		Temperature:        genai.Ptr(req.Temperature),
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	candidate, err := s.generate(ctx, "synthesis", s.opts.ImageModel, parts, config)
	if err != nil {
		var gf *GenerationFailure
		if errors.As(err, &gf) {
			gf.Variant = req.Variant
		}
		return nil, err
	}

	blob := candidateImage(candidate)
	if blob == nil {
		text := candidateText(candidate)
		infoLog("Synthesis %s returned no image; text=%s", req.Variant, truncate(text, 200))
		return nil, &GenerationFailure{Variant: req.Variant, Reason: "response contained no image"}
	}

	return &GeneratedImage{
		Data:     blob.Data,
		MIMEType: blob.MIMEType,
		Text:     strings.TrimSpace(candidateText(candidate)),
	}, nil
}

const itemImageTemplate = `Product photo of a single dog accessory: %s.
Plain light background, soft studio lighting, whole item visible, no dog, no people, no text, no logos or brand marks.`

// GenerateItemImage renders a standalone product image for a suggested item
func (s *GeminiService) GenerateItemImage(ctx context.Context, prompt string) (*GeneratedImage, error) {
	parts := []*genai.Part{genai.NewPartFromText(fmt.Sprintf(itemImageTemplate, prompt))}
	config := &genai.GenerateContentConfig{
		Temperature:        genai.Ptr[float32](0.4),
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	candidate, err := s.generate(ctx, "item", s.opts.ImageModel, parts, config)
	if err != nil {
		return nil, err
	}
	blob := candidateImage(candidate)
	if blob == nil {
		return nil, &GenerationFailure{Variant: "item", Reason: "response contained no image"}
	}
	return &GeneratedImage{Data: blob.Data, MIMEType: blob.MIMEType}, nil
}
