package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FirebaseAuth talks to the Firebase Identity Toolkit REST API. baseURL is
// normally https://identitytoolkit.googleapis.com/v1 and can point at the
// auth emulator instead.
type FirebaseAuth struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// FirebaseError is an error reported by Identity Toolkit, e.g. EMAIL_EXISTS.
type FirebaseError struct {
	Code   string
	Status int
}

var firebaseMessages = map[string]string{
	"EMAIL_EXISTS":                "an account with this email already exists",
	"INVALID_EMAIL":               "the email address is invalid",
	"WEAK_PASSWORD":               "password should be at least 6 characters",
	"EMAIL_NOT_FOUND":             "invalid email or password",
	"INVALID_PASSWORD":            "invalid email or password",
	"INVALID_LOGIN_CREDENTIALS":   "invalid email or password",
	"USER_DISABLED":               "this account has been disabled",
	"TOO_MANY_ATTEMPTS_TRY_LATER": "too many attempts, try again later",
}

func (e *FirebaseError) Error() string {
	// Codes can carry detail after a colon: "WEAK_PASSWORD : Password should be ..."
	code := strings.TrimSpace(strings.SplitN(e.Code, ":", 2)[0])
	if msg, ok := firebaseMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("auth provider error %s (status %d)", e.Code, e.Status)
}

func NewFirebaseAuth(apiKey, baseURL string) *FirebaseAuth {
	return &FirebaseAuth{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *FirebaseAuth) CreateUser(ctx context.Context, email, password string) (string, error) {
	return a.call(ctx, "accounts:signUp", email, password)
}

func (a *FirebaseAuth) SignIn(ctx context.Context, email, password string) (string, error) {
	return a.call(ctx, "accounts:signInWithPassword", email, password)
}

type firebaseAuthResponse struct {
	LocalID string `json:"localId"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *FirebaseAuth) call(ctx context.Context, method, email, password string) (string, error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})

	url := fmt.Sprintf("%s/%s?key=%s", a.baseURL, method, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read auth provider response: %w", err)
	}

	var result firebaseAuthResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("invalid auth provider response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || result.Error != nil {
		code := "UNKNOWN"
		if result.Error != nil {
			code = result.Error.Message
		}
		return "", &FirebaseError{Code: code, Status: resp.StatusCode}
	}
	if result.LocalID == "" {
		return "", fmt.Errorf("auth provider response missing localId")
	}
	return result.LocalID, nil
}
