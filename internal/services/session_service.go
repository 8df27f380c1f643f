package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pawtrip/backend/internal/models"
	"github.com/pawtrip/backend/internal/storage"
)

// SessionService drives a persisted styling session through the
// upload → analyze → select → synthesize flow.
type SessionService struct {
	db    *gorm.DB
	style *StyleService
	store storage.ObjectStore
}

// NewSessionService creates a session service
func NewSessionService(db *gorm.DB, style *StyleService, store storage.ObjectStore) *SessionService {
	return &SessionService{db: db, style: style, store: store}
}

// SessionView is a session with its JSON columns decoded
type SessionView struct {
	ID               string                       `json:"id"`
	State            models.StyleState            `json:"state"`
	OriginalImageURL string                       `json:"originalImageUrl"`
	Analysis         *models.StyleAnalysis        `json:"analysis,omitempty"`
	Selection        *models.StyleSelection       `json:"selection,omitempty"`
	Result           *models.GeneratedStyleResult `json:"result,omitempty"`
	Warnings         []string                     `json:"warnings,omitempty"`
	RetryAvailable   bool                         `json:"retryAvailable"`
	LastError        string                       `json:"lastError,omitempty"`
}

// View decodes a stored session for API responses
func View(sess *models.StyleSession) *SessionView {
	v := &SessionView{
		ID:               sess.ID,
		State:            sess.State,
		OriginalImageURL: sess.OriginalImageURL,
		RetryAvailable:   sess.CanRetry() && len(sess.Analysis) > 0,
		LastError:        sess.LastError,
	}
	v.Analysis = decodeJSON[models.StyleAnalysis](sess.Analysis)
	v.Selection = decodeJSON[models.StyleSelection](sess.Selection)
	v.Result = decodeJSON[models.GeneratedStyleResult](sess.Result)
	return v
}

func decodeJSON[T any](raw datatypes.JSON) *T {
	if len(raw) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func encodeJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

// Create starts a session from an uploaded photo. The session begins in Uploaded.
func (s *SessionService) Create(ctx context.Context, img ImageInput) (*models.StyleSession, error) {
	sess := &models.StyleSession{
		ID:    uuid.New().String(),
		State: models.StateIdle,
	}
	if err := s.attachImage(ctx, sess, img); err != nil {
		return nil, err
	}
	if !sess.State.CanTransition(models.StateUploaded) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sess.State, models.StateUploaded)
	}
	sess.State = models.StateUploaded

	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	debugLog("Session %s created", sess.ID)
	return sess, nil
}

// Get loads a session by id
func (s *SessionService) Get(ctx context.Context, id string) (*models.StyleSession, error) {
	var sess models.StyleSession
	err := s.db.WithContext(ctx).First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &sess, nil
}

// Analyze runs the dog analysis for an uploaded session. A failed analysis
// moves the session to Failed and records the error.
func (s *SessionService) Analyze(ctx context.Context, id string) (*models.StyleSession, []string, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !sess.State.CanTransition(models.StateAnalyzed) {
		return nil, nil, fmt.Errorf("%w: cannot analyze from %s", ErrInvalidTransition, sess.State)
	}
	if !s.style.Gemini().IsEnabled() {
		return nil, nil, ErrServiceDisabled
	}

	img, err := s.loadImage(ctx, sess)
	if err != nil {
		return nil, nil, err
	}

	analysis, warnings, err := s.style.Gemini().AnalyzeDog(ctx, img)
	if err != nil {
		if ferr := s.fail(ctx, sess, err); ferr != nil {
			return nil, nil, ferr
		}
		return sess, nil, err
	}

	err = s.advance(ctx, sess, models.StateAnalyzed, map[string]any{
		"analysis":   encodeJSON(analysis),
		"last_error": "",
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, warnings, nil
}

// Select records the user's concept and item choice and moves to Selecting
func (s *SessionService) Select(ctx context.Context, id string, sel models.StyleSelection) (*models.StyleSession, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// Failed -> Selecting is only reachable through Retry
	if sess.State == models.StateFailed || !sess.State.CanTransition(models.StateSelecting) {
		return nil, fmt.Errorf("%w: cannot select from %s", ErrInvalidTransition, sess.State)
	}

	analysis := decodeJSON[models.StyleAnalysis](sess.Analysis)
	if analysis == nil {
		return nil, fmt.Errorf("%w: session has no analysis", ErrInvalidTransition)
	}
	if err := validateSelection(analysis, &sel); err != nil {
		return nil, err
	}

	err = s.advance(ctx, sess, models.StateSelecting, map[string]any{
		"selection": encodeJSON(sel),
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func validateSelection(analysis *models.StyleAnalysis, sel *models.StyleSelection) error {
	if sel.Mode != "" && !sel.Mode.Valid() {
		return &ValidationError{Field: "mode", Reason: "must be fitting or pictorial"}
	}
	if sel.ConceptID != "" && analysis.FindConcept(sel.ConceptID) == nil {
		return &ValidationError{Field: "conceptId", Reason: "unknown concept " + sel.ConceptID}
	}

	known := make(map[string]bool, len(analysis.Items))
	for _, item := range analysis.Items {
		known[item.Name] = true
	}
	var names []string
	for _, name := range sel.ItemNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !known[name] {
			return &ValidationError{Field: "itemNames", Reason: "unknown item " + name}
		}
		names = append(names, name)
	}
	sel.ItemNames = names

	if sel.ConceptID == "" && len(sel.ItemNames) == 0 {
		return &ValidationError{Field: "conceptId", Reason: "pick a concept or at least one item"}
	}
	return nil
}

// Generate synthesizes the selected look. The session is Synthesizing while
// the variants run and ends Completed or Failed.
func (s *SessionService) Generate(ctx context.Context, id string) (*models.StyleSession, *models.GeneratedStyleResult, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !s.style.Gemini().IsEnabled() {
		return nil, nil, ErrServiceDisabled
	}

	analysis := decodeJSON[models.StyleAnalysis](sess.Analysis)
	sel := decodeJSON[models.StyleSelection](sess.Selection)
	if analysis == nil || sel == nil {
		return nil, nil, fmt.Errorf("%w: nothing selected", ErrInvalidTransition)
	}

	img, err := s.loadImage(ctx, sess)
	if err != nil {
		return nil, nil, err
	}

	// Only one caller can claim Synthesizing
	if err := s.advance(ctx, sess, models.StateSynthesizing, nil); err != nil {
		return nil, nil, err
	}

	result, err := s.style.GenerateStyles(ctx, buildStyleRequest(img, analysis, sel))
	if err != nil {
		if ferr := s.fail(ctx, sess, err); ferr != nil {
			return nil, nil, ferr
		}
		return sess, nil, err
	}

	err = s.advance(context.WithoutCancel(ctx), sess, models.StateCompleted, map[string]any{
		"result":     encodeJSON(result),
		"last_error": "",
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, result, nil
}

func buildStyleRequest(img ImageInput, analysis *models.StyleAnalysis, sel *models.StyleSelection) StyleRequest {
	req := StyleRequest{
		Image:          img,
		Instruction:    sel.Instruction,
		Mode:           sel.Mode,
		KeepBackground: sel.KeepBackground,
		Analysis:       analysis,
	}

	itemNames := sel.ItemNames
	if concept := analysis.FindConcept(sel.ConceptID); concept != nil {
		req.Concept = strings.TrimSpace(concept.Title + ". " + concept.Description)
		if len(itemNames) == 0 {
			itemNames = concept.ItemNames
		}
	}
	for _, name := range itemNames {
		req.Items = append(req.Items, ItemReference{Name: describeItem(analysis, name)})
	}
	return req
}

// describeItem expands an item name with its visual description so the model
// draws the item the analysis proposed
func describeItem(analysis *models.StyleAnalysis, name string) string {
	for _, item := range analysis.Items {
		if item.Name == name && item.VisualDescription != "" {
			return item.VisualDescription
		}
	}
	return name
}

// Retry moves a failed session back to Selecting. It is allowed once per session.
func (s *SessionService) Retry(ctx context.Context, id string) (*models.StyleSession, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State != models.StateFailed {
		return nil, fmt.Errorf("%w: retry is only possible from %s", ErrInvalidTransition, models.StateFailed)
	}
	if sess.RetryUsed {
		return nil, ErrRetryExhausted
	}
	if len(sess.Analysis) == 0 {
		return nil, fmt.Errorf("%w: analysis failed, upload a new image", ErrInvalidTransition)
	}

	if err := s.advance(ctx, sess, models.StateSelecting, map[string]any{"retry_used": true}); err != nil {
		return nil, err
	}
	return sess, nil
}

// Reset replaces the photo and returns the session to Uploaded, clearing prior results.
// The retry allowance is not restored.
func (s *SessionService) Reset(ctx context.Context, id string, img ImageInput) (*models.StyleSession, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.State.CanTransition(models.StateUploaded) {
		return nil, fmt.Errorf("%w: cannot upload from %s", ErrInvalidTransition, sess.State)
	}
	if err := s.attachImage(ctx, sess, img); err != nil {
		return nil, err
	}

	err = s.advance(ctx, sess, models.StateUploaded, map[string]any{
		"original_image_path": sess.OriginalImagePath,
		"original_image_url":  sess.OriginalImageURL,
		"original_mime":       sess.OriginalMIME,
		"analysis":            nil,
		"selection":           nil,
		"result":              nil,
		"last_error":          "",
	})
	if err != nil {
		return nil, err
	}
	sess.Analysis, sess.Selection, sess.Result = nil, nil, nil
	return sess, nil
}

// attachImage uploads the session photo under a content-addressed key
func (s *SessionService) attachImage(ctx context.Context, sess *models.StyleSession, img ImageInput) error {
	if len(img.Data) == 0 {
		return &ValidationError{Field: "image", Reason: "image is required"}
	}
	key := "sessions/" + HashContent(string(img.Data)) + extensionFor(img.MIMEType)
	if err := s.store.Put(ctx, key, img.Data, img.MIMEType); err != nil {
		return &ProviderFetchError{Provider: "storage", Err: err}
	}
	sess.OriginalImagePath = key
	sess.OriginalImageURL = s.store.PublicURL(key)
	sess.OriginalMIME = img.MIMEType
	return nil
}

func (s *SessionService) loadImage(ctx context.Context, sess *models.StyleSession) (ImageInput, error) {
	data, contentType, err := s.store.Get(ctx, sess.OriginalImagePath)
	if err != nil {
		return ImageInput{}, &ProviderFetchError{Provider: "storage", Err: err}
	}
	mimeType := sess.OriginalMIME
	if mimeType == "" {
		mimeType = contentType
	}
	return ImageInput{Data: data, MIMEType: mimeType}, nil
}

// advance moves sess to next. The update is conditional on the state read
// earlier, so a concurrent change makes it fail with ErrInvalidTransition.
func (s *SessionService) advance(ctx context.Context, sess *models.StyleSession, next models.StyleState, updates map[string]any) error {
	if !sess.State.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sess.State, next)
	}
	if updates == nil {
		updates = map[string]any{}
	}
	updates["state"] = next

	res := s.db.WithContext(ctx).Model(&models.StyleSession{}).
		Where("id = ? AND state = ?", sess.ID, sess.State).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: session %s changed concurrently", ErrInvalidTransition, sess.ID)
	}

	debugLog("Session %s: %s -> %s", sess.ID, sess.State, next)
	prev := sess.State
	sess.State = next
	applyUpdates(sess, updates)
	if next == models.StateFailed || prev == models.StateSynthesizing {
		infoLog("Session %s: %s -> %s", sess.ID, prev, next)
	}
	return nil
}

func applyUpdates(sess *models.StyleSession, updates map[string]any) {
	for k, v := range updates {
		switch k {
		case "analysis":
			sess.Analysis, _ = v.(datatypes.JSON)
		case "selection":
			sess.Selection, _ = v.(datatypes.JSON)
		case "result":
			sess.Result, _ = v.(datatypes.JSON)
		case "last_error":
			sess.LastError, _ = v.(string)
		case "retry_used":
			sess.RetryUsed, _ = v.(bool)
		}
	}
}

// fail records cause on the session and moves it to Failed
func (s *SessionService) fail(ctx context.Context, sess *models.StyleSession, cause error) error {
	ctx = context.WithoutCancel(ctx)
	return s.advance(ctx, sess, models.StateFailed, map[string]any{
		"last_error": cause.Error(),
	})
}
