package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pawtrip/backend/internal/metrics"
	"github.com/pawtrip/backend/internal/models"
	"github.com/pawtrip/backend/internal/storage"
)

// ItemReference is a garment the user picked, optionally with a product image
type ItemReference struct {
	Name     string
	Image    *ImageInput
	ImageURL string
}

// StyleRequest asks for styled variants of a dog photo
type StyleRequest struct {
	Image          ImageInput
	Concept        string
	Instruction    string
	Items          []ItemReference
	Mode           models.SynthesisMode // empty means one fitting and one pictorial variant
	KeepBackground bool
	Analysis       *models.StyleAnalysis
}

// ItemImageResult is the outcome of GenerateItemImage
type ItemImageResult struct {
	ImageURL string `json:"imageUrl"`
	Cached   bool   `json:"cached"`
}

// StyleOptions configures a StyleService
type StyleOptions struct {
	FittingTemp    float32
	PictorialTemp  float32
	VariantTimeout time.Duration
	MaxReferences  int
}

// StyleService runs the styling pipeline: synthesis variants, the item image
// cache and persistence of generated images.
type StyleService struct {
	gemini *GeminiService
	cache  *GenerationCacheService
	store  storage.ObjectStore
	mirror *MirrorService
	opts   StyleOptions
}

// NewStyleService creates the pipeline. mirror is used to fetch item reference images by URL.
func NewStyleService(gemini *GeminiService, cache *GenerationCacheService, store storage.ObjectStore, mirror *MirrorService, opts StyleOptions) *StyleService {
	if opts.FittingTemp <= 0 {
		opts.FittingTemp = 0.4
	}
	if opts.PictorialTemp <= 0 {
		opts.PictorialTemp = 0.9
	}
	if opts.VariantTimeout <= 0 {
		opts.VariantTimeout = 90 * time.Second
	}
	if opts.MaxReferences <= 0 {
		opts.MaxReferences = 4
	}
	return &StyleService{gemini: gemini, cache: cache, store: store, mirror: mirror, opts: opts}
}

// Gemini exposes the underlying model service for analysis calls
func (s *StyleService) Gemini() *GeminiService {
	return s.gemini
}

type variantSpec struct {
	name string
	mode models.SynthesisMode
	temp float32
}

// variants returns the two calls issued per request: a low temperature one and a high temperature one
func (s *StyleService) variants(mode models.SynthesisMode) []variantSpec {
	if mode == "" {
		return []variantSpec{
			{name: "fitting", mode: models.ModeFitting, temp: s.opts.FittingTemp},
			{name: "pictorial", mode: models.ModePictorial, temp: s.opts.PictorialTemp},
		}
	}
	return []variantSpec{
		{name: string(mode) + "-a", mode: mode, temp: s.opts.FittingTemp},
		{name: string(mode) + "-b", mode: mode, temp: s.opts.PictorialTemp},
	}
}

// GenerateStyles issues both synthesis variants in parallel and waits for both.
// Variants that fail are reported in VariantErrors; the call only fails when
// every variant fails.
func (s *StyleService) GenerateStyles(ctx context.Context, req StyleRequest) (*models.GeneratedStyleResult, error) {
	if !s.gemini.IsEnabled() {
		return nil, ErrServiceDisabled
	}
	if req.Mode != "" && !req.Mode.Valid() {
		return nil, &ValidationError{Field: "mode", Reason: "must be fitting or pictorial"}
	}
	if strings.TrimSpace(req.Concept) == "" && len(req.Items) == 0 && strings.TrimSpace(req.Instruction) == "" {
		return nil, &ValidationError{Field: "concept", Reason: "a concept, items or an instruction is required"}
	}

	refs, itemNames, warnings := s.resolveReferences(ctx, req.Items)

	specs := s.variants(req.Mode)
	images := make([]*GeneratedImage, len(specs))
	errs := make([]error, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vctx, cancel := context.WithTimeout(ctx, s.opts.VariantTimeout)
			defer cancel()
			images[i], errs[i] = s.gemini.Synthesize(vctx, SynthesisRequest{
				Variant:        spec.name,
				Subject:        req.Image,
				References:     refs,
				ItemNames:      itemNames,
				Concept:        req.Concept,
				Instruction:    req.Instruction,
				Mode:           spec.mode,
				KeepBackground: req.KeepBackground,
				Temperature:    spec.temp,
			})
		}()
	}
	wg.Wait()

	result := &models.GeneratedStyleResult{
		OriginalImage: s.saveOriginal(ctx, req.Image),
		Analysis:      req.Analysis,
		Warnings:      warnings,
	}

	for i, spec := range specs {
		if errs[i] != nil {
			metrics.SynthesisVariantsTotal.WithLabelValues(string(spec.mode), "failed").Inc()
			infoLog("Variant %s failed: %v", spec.name, errs[i])
			result.VariantErrors = append(result.VariantErrors, models.VariantError{
				Variant: spec.name,
				Code:    string(CodeOf(errs[i])),
				Message: errs[i].Error(),
			})
			continue
		}
		metrics.SynthesisVariantsTotal.WithLabelValues(string(spec.mode), "success").Inc()
		result.StyledImages = append(result.StyledImages, models.StyledImage{
			Variant:  spec.name,
			Mode:     spec.mode,
			ImageURL: s.saveGenerated(ctx, images[i].Data, images[i].MIMEType),
			MIMEType: images[i].MIMEType,
			Caption:  images[i].Text,
		})
		if result.Description == "" {
			result.Description = images[i].Text
		}
	}

	if len(result.StyledImages) == 0 {
		return nil, s.allFailed(errs)
	}
	if len(result.VariantErrors) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d of %d variants failed", len(result.VariantErrors), len(specs)))
	}
	if result.Description == "" {
		result.Description = req.Concept
	}
	return result, nil
}

// allFailed builds the error for a request where no variant succeeded.
// A shared non-generation cause (disabled service, provider outage) is returned as is.
func (s *StyleService) allFailed(errs []error) error {
	var reasons []string
	for _, err := range errs {
		var gf *GenerationFailure
		if !errors.As(err, &gf) {
			return err
		}
		reasons = append(reasons, gf.Error())
	}
	return &GenerationFailure{Reason: strings.Join(reasons, "; ")}
}

// resolveReferences loads item images. The returned names list items with a
// reference image first, in reference order, so names[i] labels refs[i].
// Items whose image cannot be loaded are still named and produce a warning.
func (s *StyleService) resolveReferences(ctx context.Context, items []ItemReference) ([]ImageInput, []string, []string) {
	var refs []ImageInput
	var refNames, otherNames, warnings []string

	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		if len(refs) >= s.opts.MaxReferences {
			otherNames = append(otherNames, name)
			continue
		}

		switch {
		case item.Image != nil:
			refs = append(refs, *item.Image)
			refNames = append(refNames, name)
		case item.ImageURL != "" && s.mirror != nil:
			img, err := s.mirror.FetchImage(ctx, item.ImageURL)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("could not load image for %q", name))
				infoLog("Reference image for %s failed: %v", name, err)
				otherNames = append(otherNames, name)
				continue
			}
			refs = append(refs, img)
			refNames = append(refNames, name)
		default:
			otherNames = append(otherNames, name)
		}
	}
	return refs, append(refNames, otherNames...), warnings
}

// saveOriginal stores the uploaded photo under a content-addressed key
func (s *StyleService) saveOriginal(ctx context.Context, img ImageInput) string {
	key := "uploads/" + HashContent(string(img.Data)) + extensionFor(img.MIMEType)
	return s.save(ctx, key, img.Data, img.MIMEType)
}

// saveGenerated stores a generated image under a fresh key
func (s *StyleService) saveGenerated(ctx context.Context, data []byte, mimeType string) string {
	key := "generated/" + uuid.New().String() + extensionFor(mimeType)
	return s.save(ctx, key, data, mimeType)
}

// save uploads data and returns its public URL, or a data URL if storage is unavailable
func (s *StyleService) save(ctx context.Context, key string, data []byte, mimeType string) string {
	fallback := ImageInput{Data: data, MIMEType: mimeType}.DataURL()
	if s.store == nil {
		return fallback
	}
	if exists, err := s.store.Exists(ctx, key); err == nil && exists {
		return s.store.PublicURL(key)
	}
	if err := s.store.Put(ctx, key, data, mimeType); err != nil {
		infoLog("Storing %s failed, returning inline image: %v", key, err)
		return fallback
	}
	return s.store.PublicURL(key)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// GenerateItemImage returns a product image for an item, reusing a cached image
// for an identical prompt without calling the model.
func (s *StyleService) GenerateItemImage(ctx context.Context, itemName, prompt string) (*ItemImageResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, &ValidationError{Field: "prompt", Reason: "prompt is required"}
	}

	hash := HashContent(prompt)
	if asset, ok := s.cache.Lookup(ctx, hash); ok {
		return &ItemImageResult{ImageURL: asset.ImageURL, Cached: true}, nil
	}

	if !s.gemini.IsEnabled() {
		return nil, ErrServiceDisabled
	}

	img, err := s.gemini.GenerateItemImage(ctx, prompt)
	if err != nil {
		return nil, err
	}

	url := s.saveGenerated(ctx, img.Data, img.MIMEType)
	if strings.HasPrefix(url, "data:") {
		// Inline images are too large to cache
		return &ItemImageResult{ImageURL: url}, nil
	}

	if err := s.cache.Store(ctx, hash, prompt, url, AssetMeta{ItemName: itemName, Model: s.gemini.ImageModel()}); err != nil {
		infoLog("Generation cache store failed for %s (image still returned): %v", truncate(hash, 16), err)
	}
	return &ItemImageResult{ImageURL: url}, nil
}
