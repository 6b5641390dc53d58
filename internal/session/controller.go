// Package session owns the state of one signed-in visit to the study
// assistant and mediates between user actions and the external
// collaborators: auth provider, document store, chat model and summarizer.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"knowledgegpt-backend/internal/models"
	"knowledgegpt-backend/internal/study"
)

const (
	SummaryMinLength = 50
	SummaryMaxLength = 500

	defaultUserName = "User"
)

var (
	feedbackPolicy = bluemonday.UGCPolicy()
	plainText      = bluemonday.StrictPolicy()
)

// Controller holds everything a session accumulates. All operations are
// serialized by mu and, apart from Authenticate and Register, fail with
// ErrNotAuthenticated until one of those has succeeded.
type Controller struct {
	id   uuid.UUID
	deps Deps
	log  *zap.Logger

	mu           sync.Mutex
	identity     *models.UserIdentity
	messages     []models.Message
	archive      map[string][]models.Message
	archiveOrder []string
	flashcards   []models.Flashcard
	cardIndex    int
	features     map[Feature]bool
	feedback     string
	lastSafety   *study.SafetyReport
}

type RegisterResult struct {
	Identity models.UserIdentity
	Warning  *PersistenceError
}

type SaveResult struct {
	ChatName     string
	MessageCount int
	Persisted    bool
	RetryQueued  bool
	Warning      *PersistenceError
}

type FlashcardResult struct {
	Cards   []models.Flashcard
	Current *models.FlashcardView
	Warning *ModelError
}

// Snapshot is a read-only copy of a controller's state.
type Snapshot struct {
	SessionID       uuid.UUID             `json:"session_id"`
	User            models.UserIdentity   `json:"user"`
	Messages        []models.Message      `json:"messages"`
	Chats           []string              `json:"chats"`
	Flashcard       *models.FlashcardView `json:"flashcard"`
	Features        []Feature             `json:"features"`
	Feedback        string                `json:"feedback"`
	LastSafetyScore *int                  `json:"last_safety_score"`
}

func NewController(deps Deps) *Controller {
	deps = deps.withDefaults()
	id := uuid.New()
	return &Controller{
		id:       id,
		deps:     deps,
		log:      deps.Logger.With(zap.String("session_id", id.String())),
		features: make(map[Feature]bool),
	}
}

func (c *Controller) ID() uuid.UUID { return c.id }

// Identity returns the signed-in user, if any.
func (c *Controller) Identity() (models.UserIdentity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return models.UserIdentity{}, false
	}
	return *c.identity, true
}

func (c *Controller) Authenticate(ctx context.Context, email, password string) (models.UserIdentity, error) {
	email = strings.TrimSpace(email)
	fields := make(map[string]string)
	if email == "" {
		fields["email"] = "is required"
	}
	if password == "" {
		fields["password"] = "is required"
	}
	if len(fields) > 0 {
		return models.UserIdentity{}, &ValidationError{Fields: fields}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil {
		return models.UserIdentity{}, ErrAlreadyAuthenticated
	}

	uid, err := c.deps.Auth.SignIn(ctx, email, password)
	if err != nil {
		return models.UserIdentity{}, &AuthError{Message: "login failed", Err: err}
	}

	profile, err := c.deps.Store.GetUserProfile(ctx, uid)
	switch {
	case errors.Is(err, models.ErrNotFound):
		profile = models.Profile{}
	case err != nil:
		return models.UserIdentity{}, &AuthError{Message: "could not load user profile", Err: err}
	}
	name := profile.Name
	if name == "" {
		name = defaultUserName
	}

	identity := models.UserIdentity{UID: uid, Name: name, Email: email}
	c.start(identity)
	c.log.Info("user logged in", zap.String("uid", uid))
	return identity, nil
}

func (c *Controller) Register(ctx context.Context, name, email, password, confirmPassword string) (RegisterResult, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	fields := make(map[string]string)
	if name == "" {
		fields["name"] = "is required"
	}
	if email == "" {
		fields["email"] = "is required"
	}
	if password == "" {
		fields["password"] = "is required"
	}
	if confirmPassword == "" {
		fields["confirm_password"] = "is required"
	} else if password != confirmPassword {
		fields["confirm_password"] = "passwords do not match"
	}
	if len(fields) > 0 {
		return RegisterResult{}, &ValidationError{Fields: fields}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil {
		return RegisterResult{}, ErrAlreadyAuthenticated
	}

	uid, err := c.deps.Auth.CreateUser(ctx, email, password)
	if err != nil {
		return RegisterResult{}, &AuthError{Message: "sign up failed", Err: err}
	}

	var result RegisterResult
	if err := c.deps.Store.PutUserProfile(ctx, uid, models.Profile{Name: name, Email: email}); err != nil {
		c.log.Warn("profile write failed after account creation", zap.String("uid", uid), zap.Error(err))
		result.Warning = &PersistenceError{Op: "user profile", Err: err}
	}

	result.Identity = models.UserIdentity{UID: uid, Name: name, Email: email}
	c.start(result.Identity)
	c.log.Info("user registered", zap.String("uid", uid))
	return result, nil
}

func (c *Controller) start(identity models.UserIdentity) {
	c.identity = &identity
	c.messages = []models.Message{}
	c.archive = make(map[string][]models.Message)
	c.archiveOrder = nil
}

func (c *Controller) guard() error {
	if c.identity == nil {
		return ErrNotAuthenticated
	}
	return nil
}

// PostMessage appends the user's message and the model's reply. A model
// failure becomes an assistant message describing the error, so every user
// turn is followed by exactly one assistant turn.
func (c *Controller) PostMessage(ctx context.Context, text string) (models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return models.Message{}, err
	}
	if strings.TrimSpace(text) == "" {
		return models.Message{}, newValidationError("text", "is required")
	}

	history := make([]models.Message, len(c.messages))
	copy(history, c.messages)

	userMsg := models.Message{Role: models.RoleUser, Content: text}
	c.messages = append(c.messages, userMsg)

	content, err := c.deps.Chat.Converse(ctx, history, text)
	if err != nil {
		c.log.Warn("chat model failed", zap.Error(err))
		content = "⚠️ Error: " + err.Error()
	}
	reply := models.Message{Role: models.RoleAssistant, Content: content}
	c.messages = append(c.messages, reply)

	c.publish(ctx, models.EventMessageAppended, map[string]interface{}{
		"messages": []models.Message{userMsg, reply},
	})
	return reply, nil
}

// Messages returns a copy of the live conversation.
func (c *Controller) Messages(ctx context.Context) ([]models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return nil, err
	}
	return cloneMessages(c.messages), nil
}

// SaveChat moves the live conversation into the archive under name and
// starts a new one. The archive is updated before the record is written to
// the document store; a failed write is reported in the result, never undone.
func (c *Controller) SaveChat(ctx context.Context, name string) (SaveResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return SaveResult{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return SaveResult{}, newValidationError("name", "is required")
	}

	snapshot := c.messages
	if _, exists := c.archive[name]; !exists {
		c.archiveOrder = append(c.archiveOrder, name)
	}
	c.archive[name] = snapshot
	c.messages = []models.Message{}

	result := SaveResult{ChatName: name, MessageCount: len(snapshot)}
	record := models.ChatRecord{
		ID:        uuid.NewString(),
		UID:       c.identity.UID,
		User:      c.identity.Name,
		UserEmail: c.identity.Email,
		ChatName:  name,
		Timestamp: c.deps.Now().UTC(),
		Messages:  cloneMessages(snapshot),
	}

	if err := c.deps.Store.PutChatRecord(ctx, record); err != nil {
		c.log.Warn("chat record write failed", zap.String("chat", name), zap.Error(err))
		result.Warning = &PersistenceError{Op: "chat record", Err: err}
		if c.deps.Retrier != nil {
			if qerr := c.deps.Retrier.Enqueue(ctx, record); qerr != nil {
				c.log.Error("failed to queue chat record for retry", zap.String("record_id", record.ID), zap.Error(qerr))
			} else {
				result.RetryQueued = true
			}
		}
		c.publish(ctx, models.EventPersistenceWarning, map[string]interface{}{
			"op":      result.Warning.Op,
			"message": result.Warning.Error(),
		})
	} else {
		result.Persisted = true
	}

	c.publish(ctx, models.EventChatSaved, map[string]interface{}{
		"chat_name":     name,
		"message_count": result.MessageCount,
		"persisted":     result.Persisted,
	})
	return result, nil
}

// Archive lists saved chat names, most recently created first.
func (c *Controller) Archive(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return nil, err
	}
	return c.archiveNames(), nil
}

func (c *Controller) archiveNames() []string {
	names := make([]string, 0, len(c.archiveOrder))
	for i := len(c.archiveOrder) - 1; i >= 0; i-- {
		names = append(names, c.archiveOrder[i])
	}
	return names
}

func (c *Controller) ArchivedChat(ctx context.Context, name string) ([]models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return nil, err
	}
	msgs, ok := c.archive[name]
	if !ok {
		return nil, ErrChatNotFound
	}
	return cloneMessages(msgs), nil
}

// GenerateFlashcards replaces the flashcard set with cards generated for
// topic. A model failure, or output without a single usable card, leaves an
// empty set and is returned as the result's warning.
func (c *Controller) GenerateFlashcards(ctx context.Context, topic string) (FlashcardResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return FlashcardResult{}, err
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return FlashcardResult{}, newValidationError("topic", "is required")
	}

	var result FlashcardResult
	raw, err := c.deps.Chat.Converse(ctx, nil, study.FlashcardPrompt(topic))
	if err != nil {
		c.log.Warn("flashcard generation failed", zap.String("topic", topic), zap.Error(err))
		result.Warning = &ModelError{Op: "flashcard generation", Err: err}
		result.Cards = []models.Flashcard{}
	} else {
		result.Cards = study.ParseFlashcards(raw)
		if len(result.Cards) == 0 {
			result.Warning = &ModelError{Op: "flashcard generation", Err: errEmptyModelOutput}
		}
	}

	c.flashcards = result.Cards
	c.cardIndex = 0
	result.Cards = append([]models.Flashcard(nil), c.flashcards...)
	if view, ok := c.currentCard(); ok {
		result.Current = &view
	}

	c.publish(ctx, models.EventFlashcardsGenerated, map[string]interface{}{
		"topic": topic,
		"count": len(c.flashcards),
	})
	return result, nil
}

func (c *Controller) CurrentFlashcard(ctx context.Context) (models.FlashcardView, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return models.FlashcardView{}, false, err
	}
	view, ok := c.currentCard()
	return view, ok, nil
}

// NextFlashcard advances the cursor, wrapping after the last card. It is a
// no-op on an empty set.
func (c *Controller) NextFlashcard(ctx context.Context) (models.FlashcardView, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return models.FlashcardView{}, false, err
	}
	if len(c.flashcards) == 0 {
		return models.FlashcardView{}, false, nil
	}
	c.cardIndex = (c.cardIndex + 1) % len(c.flashcards)
	view, _ := c.currentCard()
	return view, true, nil
}

func (c *Controller) currentCard() (models.FlashcardView, bool) {
	if len(c.flashcards) == 0 {
		return models.FlashcardView{}, false
	}
	return models.FlashcardView{
		Card:     c.flashcards[c.cardIndex],
		Position: c.cardIndex,
		Total:    len(c.flashcards),
	}, true
}

func (c *Controller) ComputeSafety(ctx context.Context) (study.SafetyReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return study.SafetyReport{}, err
	}
	report := c.deps.Scorer.Score(c.messages)
	c.lastSafety = &report
	return report, nil
}

func (c *Controller) Summarize(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return "", err
	}
	return c.summarize(ctx, "text", text)
}

// SummarizeDocument extracts the text of an uploaded file and summarizes it.
func (c *Controller) SummarizeDocument(ctx context.Context, filename string, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return "", err
	}
	if c.deps.Extractor == nil {
		return "", newValidationError("file", "document summaries are not enabled")
	}
	if len(data) == 0 {
		return "", newValidationError("file", "is required")
	}

	text, err := c.deps.Extractor.ExtractText(filename, data)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			return "", newValidationError("file", err.Error())
		}
		return "", err
	}
	return c.summarize(ctx, "file", text)
}

// SummarizeVideo fetches the transcript of a YouTube video and summarizes it.
func (c *Controller) SummarizeVideo(ctx context.Context, videoURL string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return "", err
	}
	if c.deps.Transcripts == nil {
		return "", newValidationError("url", "video summaries are not enabled")
	}
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return "", newValidationError("url", "is required")
	}

	text, err := c.deps.Transcripts.Transcript(ctx, videoURL)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			return "", newValidationError("url", err.Error())
		}
		return "", &ModelError{Op: "transcript fetch", Err: err}
	}
	return c.summarize(ctx, "url", text)
}

func (c *Controller) summarize(ctx context.Context, field, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", newValidationError(field, "no text to summarize")
	}
	summary, err := c.deps.Summarizer.Summarize(ctx, text, SummaryMinLength, SummaryMaxLength)
	if err != nil {
		c.log.Warn("summarization failed", zap.Error(err))
		return "", &ModelError{Op: "summarization", Err: err}
	}
	if strings.TrimSpace(summary) == "" {
		return "", &ModelError{Op: "summarization", Err: errEmptyModelOutput}
	}
	return summary, nil
}

// Toggle flips the visibility of a feature and returns its new state.
func (c *Controller) Toggle(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return false, err
	}
	feature, ok := ParseFeature(name)
	if !ok {
		return false, newValidationError("feature", "unknown feature "+name)
	}

	enabled := !c.features[feature]
	if enabled {
		c.features[feature] = true
	} else {
		delete(c.features, feature)
	}

	c.publish(ctx, models.EventFeatureToggled, models.FeatureState{Feature: string(feature), Enabled: enabled})
	return enabled, nil
}

// Features returns the enabled features in display order.
func (c *Controller) Features(ctx context.Context) ([]Feature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return nil, err
	}
	return c.enabledFeatures(), nil
}

func (c *Controller) enabledFeatures() []Feature {
	enabled := make([]Feature, 0, len(c.features))
	for _, f := range AllFeatures {
		if c.features[f] {
			enabled = append(enabled, f)
		}
	}
	return enabled
}

// RecordFeedback stores sanitized feedback, replacing any earlier value.
// Text that is empty once markup is removed is rejected.
func (c *Controller) RecordFeedback(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return "", err
	}
	if strings.TrimSpace(plainText.Sanitize(text)) == "" {
		return "", newValidationError("text", "is required")
	}

	c.feedback = strings.TrimSpace(feedbackPolicy.Sanitize(text))
	c.log.Info("feedback recorded", zap.Int("length", len(c.feedback)))
	c.publish(ctx, models.EventFeedbackRecorded, models.FeedbackResponse{Feedback: c.feedback})
	return c.feedback, nil
}

func (c *Controller) Feedback(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return "", err
	}
	return c.feedback, nil
}

func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		SessionID: c.id,
		User:      *c.identity,
		Messages:  cloneMessages(c.messages),
		Chats:     c.archiveNames(),
		Features:  c.enabledFeatures(),
		Feedback:  c.feedback,
	}
	if view, ok := c.currentCard(); ok {
		snap.Flashcard = &view
	}
	if c.lastSafety != nil {
		score := c.lastSafety.Score
		snap.LastSafetyScore = &score
	}
	return snap, nil
}

func (c *Controller) publish(ctx context.Context, eventType string, payload interface{}) {
	if c.deps.Events == nil {
		return
	}
	event := models.Event{Type: eventType, SessionID: c.id, Payload: payload}
	if err := c.deps.Events.Publish(ctx, event); err != nil {
		c.log.Warn("failed to publish session event", zap.String("type", eventType), zap.Error(err))
	}
}

func cloneMessages(in []models.Message) []models.Message {
	out := make([]models.Message, len(in))
	copy(out, in)
	return out
}
