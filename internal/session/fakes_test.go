package session

import (
	"context"
	"errors"
	"sync"

	"knowledgegpt-backend/internal/models"
)

type fakeAuth struct {
	mu        sync.Mutex
	passwords map[string]string
	createErr error
	calls     int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{passwords: map[string]string{}}
}

func (f *fakeAuth) CreateUser(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return "", f.createErr
	}
	if _, exists := f.passwords[email]; exists {
		return "", errors.New("EMAIL_EXISTS")
	}
	f.passwords[email] = password
	return "uid-" + email, nil
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if pw, ok := f.passwords[email]; !ok || pw != password {
		return "", errors.New("INVALID_LOGIN_CREDENTIALS")
	}
	return "uid-" + email, nil
}

type fakeStore struct {
	mu            sync.Mutex
	profiles      map[string]models.Profile
	records       []models.ChatRecord
	getErr        error
	putProfileErr error
	putChatErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: map[string]models.Profile{}}
}

func (f *fakeStore) PutUserProfile(_ context.Context, uid string, p models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putProfileErr != nil {
		return f.putProfileErr
	}
	f.profiles[uid] = p
	return nil
}

func (f *fakeStore) GetUserProfile(_ context.Context, uid string) (models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return models.Profile{}, f.getErr
	}
	p, ok := f.profiles[uid]
	if !ok {
		return models.Profile{}, models.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) PutChatRecord(_ context.Context, rec models.ChatRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putChatErr != nil {
		return f.putChatErr
	}
	f.records = append(f.records, rec)
	return nil
}

type chatCall struct {
	history []models.Message
	prompt  string
}

type fakeChat struct {
	reply string
	err   error
	calls []chatCall
}

func (f *fakeChat) Converse(_ context.Context, history []models.Message, prompt string) (string, error) {
	f.calls = append(f.calls, chatCall{history: history, prompt: prompt})
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeSummarizer struct {
	out       string
	err       error
	text      string
	minLength int
	maxLength int
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string, minLength, maxLength int) (string, error) {
	f.text, f.minLength, f.maxLength = text, minLength, maxLength
	return f.out, f.err
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(string, []byte) (string, error) { return f.text, f.err }

type fakeTranscripts struct {
	text string
	err  error
}

func (f *fakeTranscripts) Transcript(context.Context, string) (string, error) { return f.text, f.err }

type fakeEvents struct {
	mu     sync.Mutex
	events []models.Event
}

func (f *fakeEvents) Publish(_ context.Context, e models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeRetrier struct {
	records []models.ChatRecord
	err     error
}

func (f *fakeRetrier) Enqueue(_ context.Context, rec models.ChatRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fixture struct {
	auth    *fakeAuth
	store   *fakeStore
	chat    *fakeChat
	sum     *fakeSummarizer
	events  *fakeEvents
	retrier *fakeRetrier
}

func newFixture() *fixture {
	return &fixture{
		auth:    newFakeAuth(),
		store:   newFakeStore(),
		chat:    &fakeChat{reply: "hello from the model"},
		sum:     &fakeSummarizer{out: "a short summary"},
		events:  &fakeEvents{},
		retrier: &fakeRetrier{},
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Auth:       f.auth,
		Store:      f.store,
		Chat:       f.chat,
		Summarizer: f.sum,
		Events:     f.events,
		Retrier:    f.retrier,
	}
}
