package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-errors"
)

// Refresher is the part of the server API the token manager needs
type Refresher interface {
	Refresh(ctx context.Context, accessToken, sessionToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, accessToken, sessionToken string) error
}

// API is the server surface used by the login flow
type API interface {
	Refresher
	DevLogin(ctx context.Context, phone, password string) (*auth.TokenPair, error)
	VerifyIdentity(ctx context.Context, assertion string) (*auth.VerifiedIdentity, error)
	VerifyAdminQR(ctx context.Context, assertion string, image []byte) (*auth.TokenPair, error)
}

const defaultAPITimeout = 15 * time.Second

// HTTPAPI talks to the auth routes over HTTP. Error bodies are mapped
// back to the auth sentinels by text code; anything the client cannot
// make sense of becomes auth.ErrNetworkFailure.
type HTTPAPI struct {
	BaseURL       string
	SessionHeader string
	Client        *http.Client
	Logger        auth.Logger
}

// NewHTTPAPI returns an HTTPAPI rooted at baseURL
func NewHTTPAPI(baseURL string) *HTTPAPI {
	return &HTTPAPI{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		SessionHeader: auth.DefaultSessionHeader,
		Client:        &http.Client{Timeout: defaultAPITimeout},
		Logger:        auth.NewLogrusLogger(nil),
	}
}

func (a *HTTPAPI) DevLogin(ctx context.Context, phone, password string) (*auth.TokenPair, error) {
	body, err := json.Marshal(auth.DevLoginRequest{Phone: phone, Password: password})
	if err != nil {
		return nil, auth.ErrInvalidPayload
	}
	pair := &auth.TokenPair{}
	if err := a.do(ctx, http.MethodPost, "/auth/dev-login", "application/json", bytes.NewReader(body), nil, pair); err != nil {
		return nil, err
	}
	return pair, nil
}

func (a *HTTPAPI) VerifyIdentity(ctx context.Context, assertion string) (*auth.VerifiedIdentity, error) {
	body, err := json.Marshal(auth.IdentityRequest{Assertion: assertion})
	if err != nil {
		return nil, auth.ErrInvalidPayload
	}
	identity := &auth.VerifiedIdentity{}
	if err := a.do(ctx, http.MethodPost, "/auth/verify-identity", "application/json", bytes.NewReader(body), nil, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func (a *HTTPAPI) VerifyAdminQR(ctx context.Context, assertion string, image []byte) (*auth.TokenPair, error) {
	if len(image) == 0 {
		return nil, auth.ErrMissingArtifact
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if err := w.WriteField("assertion", assertion); err != nil {
		return nil, auth.ErrInvalidPayload
	}
	part, err := w.CreateFormFile("qr", "qr.png")
	if err != nil {
		return nil, auth.ErrInvalidPayload
	}
	if _, err := part.Write(image); err != nil {
		return nil, auth.ErrInvalidPayload
	}
	if err := w.Close(); err != nil {
		return nil, auth.ErrInvalidPayload
	}

	pair := &auth.TokenPair{}
	if err := a.do(ctx, http.MethodPost, "/auth/verify-admin-qr", w.FormDataContentType(), buf, nil, pair); err != nil {
		return nil, err
	}
	return pair, nil
}

func (a *HTTPAPI) Refresh(ctx context.Context, accessToken, sessionToken string) (*auth.TokenPair, error) {
	pair := &auth.TokenPair{}
	if err := a.do(ctx, http.MethodPost, "/auth/refresh", "", nil, a.tokenHeaders(accessToken, sessionToken), pair); err != nil {
		return nil, err
	}
	return pair, nil
}

func (a *HTTPAPI) Logout(ctx context.Context, accessToken, sessionToken string) error {
	return a.do(ctx, http.MethodPost, "/auth/logout", "", nil, a.tokenHeaders(accessToken, sessionToken), nil)
}

// Validate asks the server whether the pair is still accepted
func (a *HTTPAPI) Validate(ctx context.Context, accessToken, sessionToken string) (*auth.Session, error) {
	session := &auth.Session{}
	if err := a.do(ctx, http.MethodGet, "/auth/validate", "", nil, a.tokenHeaders(accessToken, sessionToken), session); err != nil {
		return nil, err
	}
	return session, nil
}

func (a *HTTPAPI) tokenHeaders(accessToken, sessionToken string) map[string]string {
	header := a.SessionHeader
	if header == "" {
		header = auth.DefaultSessionHeader
	}
	return map[string]string{
		"Authorization": "Bearer " + accessToken,
		header:          sessionToken,
	}
}

func (a *HTTPAPI) do(ctx context.Context, method, path, contentType string, body io.Reader, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, body)
	if err != nil {
		return auth.ErrNetworkFailure
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		a.logger().Warn("auth request failed", "path", path, "error", err)
		return auth.ErrNetworkFailure
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return auth.ErrNetworkFailure
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			a.logger().Warn("auth response not decodable", "path", path, "error", err)
			return auth.ErrNetworkFailure
		}
		return nil
	}

	return a.decodeError(path, res.StatusCode, raw)
}

func (a *HTTPAPI) decodeError(path string, status int, raw []byte) error {
	var body auth.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		if sentinel, ok := auth.ErrorFromTextCode(body.Code); ok {
			return sentinel
		}
	}

	a.logger().Warn("auth request rejected", "path", path, "status", status)

	switch {
	case status == http.StatusUnauthorized:
		return auth.ErrSessionInvalid
	case status == http.StatusTooManyRequests:
		return auth.ErrTooManyAttempts
	case status >= http.StatusInternalServerError:
		return auth.ErrNetworkFailure
	}

	return errors.New(strings.TrimSpace(body.Error), errors.CategoryOperation).
		WithTextCode(body.Code).
		WithCode(status)
}

func (a *HTTPAPI) logger() auth.Logger {
	if a.Logger == nil {
		return auth.NewLogrusLogger(nil)
	}
	return a.Logger
}
