package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/pawtrip/backend/internal/models"
	"github.com/pawtrip/backend/internal/storage"
)

var fakePNG = []byte("\x89PNG\r\n\x1a\ngenerated")

func newTestStyleService(t *testing.T, gen ContentGenerator) (*StyleService, *storage.LocalStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "https://media.example.com")
	require.NoError(t, err)
	var gemini *GeminiService
	if gen != nil {
		gemini = NewGeminiService(gen, GeminiOptions{ImageModel: "image-model"})
	} else {
		gemini = NewGeminiService(nil, GeminiOptions{})
	}
	cache := NewGenerationCacheService(newTestDB(t), 0)
	return NewStyleService(gemini, cache, store, newTestMirror(store), StyleOptions{}), store
}

func temperatureOf(call generateCall) float32 {
	if call.config == nil || call.config.Temperature == nil {
		return -1
	}
	return *call.config.Temperature
}

func TestBuildSynthesisPrompt(t *testing.T) {
	base := SynthesisRequest{Concept: "beach picnic", ItemNames: []string{"red bucket hat"}}

	keep := base
	keep.KeepBackground = true
	assert.Contains(t, BuildSynthesisPrompt(keep), "keep the original background")

	replace := base
	assert.Contains(t, BuildSynthesisPrompt(replace), "replace the background")

	fitting := base
	fitting.References = []ImageInput{testSubject}
	prompt := BuildSynthesisPrompt(fitting)
	assert.Contains(t, prompt, "IDENTITY LOCK")
	assert.Contains(t, prompt, "in order: red bucket hat")

	pictorial := base
	pictorial.Mode = models.ModePictorial
	pictorial.Instruction = "golden hour"
	prompt = BuildSynthesisPrompt(pictorial)
	assert.Contains(t, prompt, "editorial pictorial")
	assert.Contains(t, prompt, "USER REQUEST: golden hour")
	assert.NotContains(t, prompt, "IDENTITY LOCK")
}

func TestSynthesizeAttachesReferencesOnlyForFitting(t *testing.T) {
	gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
		return imageResponse(fakePNG, "image/png", "done"), nil
	}}
	svc := NewGeminiService(gen, GeminiOptions{})
	refs := []ImageInput{{Data: []byte("hat"), MIMEType: "image/jpeg"}, {Data: []byte("coat"), MIMEType: "image/jpeg"}}

	img, err := svc.Synthesize(context.Background(), SynthesisRequest{
		Variant: "fitting", Subject: testSubject, References: refs, Mode: models.ModeFitting, Temperature: 0.4,
	})
	require.NoError(t, err)
	assert.Equal(t, fakePNG, img.Data)
	assert.Equal(t, "done", img.Text)

	_, err = svc.Synthesize(context.Background(), SynthesisRequest{
		Variant: "pictorial", Subject: testSubject, References: refs, Mode: models.ModePictorial, Temperature: 0.9,
	})
	require.NoError(t, err)

	require.Equal(t, 2, gen.callCount())
	assert.Equal(t, 3, inlineParts(gen.calls[0]), "subject plus two references")
	assert.Equal(t, 1, inlineParts(gen.calls[1]), "subject only")
	assert.Equal(t, []string{"TEXT", "IMAGE"}, gen.calls[0].config.ResponseModalities)
}

func TestSynthesizeFailures(t *testing.T) {
	tests := []struct {
		name     string
		resp     *genai.GenerateContentResponse
		err      error
		wantCode ErrorCode
	}{
		{
			name:     "text only",
			resp:     textResponse("I can't edit this photo."),
			wantCode: CodeGenerationFailed,
		},
		{
			name: "safety block",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonSafety,
			}}},
			wantCode: CodeGenerationFailed,
		},
		{
			name:     "no candidates",
			resp:     &genai.GenerateContentResponse{},
			wantCode: CodeGenerationFailed,
		},
		{
			name:     "transport error",
			err:      errors.New("503 unavailable"),
			wantCode: CodeProviderError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
				return tt.resp, tt.err
			}}
			svc := NewGeminiService(gen, GeminiOptions{})
			_, err := svc.Synthesize(context.Background(), SynthesisRequest{Variant: "fitting", Subject: testSubject})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, CodeOf(err))

			var gf *GenerationFailure
			if errors.As(err, &gf) {
				assert.Equal(t, "fitting", gf.Variant)
			}
		})
	}
}

func TestGenerateStylesBothVariants(t *testing.T) {
	gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
		return imageResponse(fakePNG, "image/png", "A sunny beach look"), nil
	}}
	svc, _ := newTestStyleService(t, gen)

	result, err := svc.GenerateStyles(context.Background(), StyleRequest{
		Image:   testSubject,
		Concept: "beach picnic",
		Items:   []ItemReference{{Name: "red bucket hat", Image: &ImageInput{Data: []byte("hat"), MIMEType: "image/jpeg"}}},
	})
	require.NoError(t, err)
	require.Len(t, result.StyledImages, 2)
	assert.Empty(t, result.VariantErrors)
	assert.Equal(t, "A sunny beach look", result.Description)
	assert.True(t, strings.HasPrefix(result.OriginalImage, "https://media.example.com/uploads/"))
	for _, img := range result.StyledImages {
		assert.True(t, strings.HasPrefix(img.ImageURL, "https://media.example.com/generated/"), img.ImageURL)
	}

	temps := map[float32]bool{}
	for _, call := range gen.calls {
		temps[temperatureOf(call)] = true
	}
	assert.Equal(t, map[float32]bool{0.4: true, 0.9: true}, temps)
}

func TestGenerateStylesPartialFailure(t *testing.T) {
	gen := &fakeGenerator{respond: func(call generateCall) (*genai.GenerateContentResponse, error) {
		if temperatureOf(call) > 0.5 {
			return textResponse("no image today"), nil
		}
		return imageResponse(fakePNG, "image/png", ""), nil
	}}
	svc, _ := newTestStyleService(t, gen)

	result, err := svc.GenerateStyles(context.Background(), StyleRequest{Image: testSubject, Concept: "winter cabin"})
	require.NoError(t, err)
	require.Len(t, result.StyledImages, 1)
	assert.Equal(t, "fitting", result.StyledImages[0].Variant)
	require.Len(t, result.VariantErrors, 1)
	assert.Equal(t, "pictorial", result.VariantErrors[0].Variant)
	assert.Equal(t, string(CodeGenerationFailed), result.VariantErrors[0].Code)
	assert.Contains(t, result.Warnings, "1 of 2 variants failed")
	assert.Equal(t, "winter cabin", result.Description)
}

func TestGenerateStylesAllFail(t *testing.T) {
	gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse("refused"), nil
	}}
	svc, _ := newTestStyleService(t, gen)

	_, err := svc.GenerateStyles(context.Background(), StyleRequest{Image: testSubject, Concept: "city walk"})
	var gf *GenerationFailure
	require.True(t, errors.As(err, &gf))
	assert.Contains(t, gf.Reason, "fitting")
	assert.Contains(t, gf.Reason, "pictorial")
	assert.Equal(t, 2, gen.callCount(), "both variants are attempted")
}

func TestGenerateStylesProviderOutage(t *testing.T) {
	gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
		return nil, errors.New("connection refused")
	}}
	svc, _ := newTestStyleService(t, gen)

	_, err := svc.GenerateStyles(context.Background(), StyleRequest{Image: testSubject, Concept: "city walk"})
	assert.Equal(t, CodeProviderError, CodeOf(err))
}

func TestGenerateStylesSingleMode(t *testing.T) {
	gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
		return imageResponse(fakePNG, "image/png", ""), nil
	}}
	svc, _ := newTestStyleService(t, gen)

	result, err := svc.GenerateStyles(context.Background(), StyleRequest{
		Image: testSubject, Concept: "studio", Mode: models.ModePictorial,
		Items: []ItemReference{{Name: "scarf", Image: &ImageInput{Data: []byte("scarf"), MIMEType: "image/png"}}},
	})
	require.NoError(t, err)
	require.Len(t, result.StyledImages, 2)
	assert.Equal(t, "pictorial-a", result.StyledImages[0].Variant)
	assert.Equal(t, "pictorial-b", result.StyledImages[1].Variant)
	for _, call := range gen.calls {
		assert.Equal(t, 1, inlineParts(call))
	}
}

func TestGenerateStylesValidation(t *testing.T) {
	gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
		t.Fatal("model must not be called")
		return nil, nil
	}}
	svc, _ := newTestStyleService(t, gen)

	_, err := svc.GenerateStyles(context.Background(), StyleRequest{Image: testSubject})
	assert.Equal(t, CodeValidation, CodeOf(err))

	_, err = svc.GenerateStyles(context.Background(), StyleRequest{Image: testSubject, Concept: "x", Mode: "cartoon"})
	assert.Equal(t, CodeValidation, CodeOf(err))
}

func TestGenerateStylesDisabled(t *testing.T) {
	svc, _ := newTestStyleService(t, nil)
	_, err := svc.GenerateStyles(context.Background(), StyleRequest{Image: testSubject, Concept: "x"})
	assert.ErrorIs(t, err, ErrServiceDisabled)
}

func TestResolveReferences(t *testing.T) {
	srv, _ := imageServer(t, http.StatusOK, testPNG(t, 40, 40))
	missing, _ := imageServer(t, http.StatusNotFound, nil)

	gen := &fakeGenerator{}
	svc, _ := newTestStyleService(t, gen)
	svc.opts.MaxReferences = 2

	refs, names, warnings := svc.resolveReferences(context.Background(), []ItemReference{
		{Name: "collar"},
		{Name: "hat", ImageURL: srv.URL + "/hat.png"},
		{Name: "boots", ImageURL: missing.URL + "/boots.png"},
		{Name: "  "},
		{Name: "coat", Image: &ImageInput{Data: []byte("coat"), MIMEType: "image/jpeg"}},
		{Name: "bag", Image: &ImageInput{Data: []byte("bag"), MIMEType: "image/jpeg"}},
	})

	require.Len(t, refs, 2)
	assert.Equal(t, "image/png", refs[0].MIMEType)
	assert.Equal(t, []byte("coat"), refs[1].Data)
	assert.Equal(t, []string{"hat", "coat", "collar", "boots", "bag"}, names)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "boots")
}

func TestGenerateItemImageCacheHitSkipsModel(t *testing.T) {
	var calls int32
	gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
		atomic.AddInt32(&calls, 1)
		return imageResponse(fakePNG, "image/png", ""), nil
	}}
	svc, _ := newTestStyleService(t, gen)
	ctx := context.Background()

	prompt := "red hat on a poodle"
	require.NoError(t, svc.cache.Store(ctx, HashContent(prompt), prompt, "https://media.example.com/generated/cached.png", AssetMeta{ItemName: "red hat"}))

	result, err := svc.GenerateItemImage(ctx, "red hat", prompt)
	require.NoError(t, err)
	assert.True(t, result.Cached)
	assert.Equal(t, "https://media.example.com/generated/cached.png", result.ImageURL)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestGenerateItemImageMissThenHit(t *testing.T) {
	gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
		return imageResponse(fakePNG, "image/png", ""), nil
	}}
	svc, store := newTestStyleService(t, gen)
	ctx := context.Background()

	first, err := svc.GenerateItemImage(ctx, "ivory sweater", "ivory cable knit sweater")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, store.IsOwnURL(first.ImageURL))

	// Surrounding whitespace hashes the same
	second, err := svc.GenerateItemImage(ctx, "ivory sweater", "  ivory cable knit sweater ")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ImageURL, second.ImageURL)
	assert.Equal(t, 1, gen.callCount())
}

func TestGenerateItemImageStoreFailureStillReturnsImage(t *testing.T) {
	gen := &fakeGenerator{respond: func(generateCall) (*genai.GenerateContentResponse, error) {
		return imageResponse(fakePNG, "image/png", ""), nil
	}}
	svc, _ := newTestStyleService(t, gen)
	require.NoError(t, svc.cache.db.Migrator().DropTable(&models.StyleAsset{}))

	result, err := svc.GenerateItemImage(context.Background(), "bandana", "yellow bandana")
	require.NoError(t, err)
	assert.NotEmpty(t, result.ImageURL)
	assert.False(t, result.Cached)
}

func TestGenerateItemImageRequiresPrompt(t *testing.T) {
	svc, _ := newTestStyleService(t, &fakeGenerator{})
	_, err := svc.GenerateItemImage(context.Background(), "hat", "   ")
	assert.Equal(t, CodeValidation, CodeOf(err))
}
