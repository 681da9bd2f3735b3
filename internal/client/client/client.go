package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// User mirrors the sanitized user returned by the server.
type User struct {
	ID            string    `json:"id"`
	UserName      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullname"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL string    `json:"coverImageUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RegisterRequest carries the registration form. AvatarPath is required by
// the server; CoverImagePath may be empty.
type RegisterRequest struct {
	Username       string
	Email          string
	FullName       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// Client is the API contract used by the CLI.
type Client interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, identifier, password string) (*User, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	CurrentUser(ctx context.Context) (*User, error)
	LoggedIn() bool
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

type tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginData struct {
	User *User `json:"user"`
	tokens
}

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a client for the API rooted at baseURL,
// e.g. http://127.0.0.1:8080/api/v1/users.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != ""
}

func (c *HTTPClient) setTokens(t tokens) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken, c.refreshToken = t.AccessToken, t.RefreshToken
}

func (c *HTTPClient) snapshot() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	body, contentType, err := registerForm(req)
	if err != nil {
		return nil, err
	}

	var u User
	if err := c.do(ctx, http.MethodPost, "/register", contentType, body, "", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login accepts either a username or an email as identifier.
func (c *HTTPClient) Login(ctx context.Context, identifier, password string) (*User, error) {
	payload := map[string]string{"password": password}
	if strings.Contains(identifier, "@") {
		payload["email"] = identifier
	} else {
		payload["username"] = identifier
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var out loginData
	if err := c.do(ctx, http.MethodPost, "/login", "application/json", body, "", &out); err != nil {
		return nil, err
	}
	c.setTokens(out.tokens)
	return out.User, nil
}

func (c *HTTPClient) Refresh(ctx context.Context) error {
	_, refresh := c.snapshot()
	if refresh == "" {
		return ErrNotLoggedIn
	}

	body, err := json.Marshal(tokens{RefreshToken: refresh})
	if err != nil {
		return err
	}

	var out tokens
	if err := c.do(ctx, http.MethodPost, "/refresh", "application/json", body, "", &out); err != nil {
		return err
	}
	c.setTokens(out)
	return nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	if err := c.authorized(ctx, http.MethodPost, "/logout", nil); err != nil {
		return err
	}
	c.setTokens(tokens{})
	return nil
}

func (c *HTTPClient) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.authorized(ctx, http.MethodGet, "/current-user", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// authorized performs a protected call, refreshing the token pair once when
// the access token is rejected.
func (c *HTTPClient) authorized(ctx context.Context, method, path string, out any) error {
	access, _ := c.snapshot()
	if access == "" {
		return ErrNotLoggedIn
	}

	err := c.do(ctx, method, path, "", nil, access, out)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	if rerr := c.Refresh(ctx); rerr != nil {
		return err
	}

	access, _ = c.snapshot()
	return c.do(ctx, method, path, "", nil, access, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body []byte, access string, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func registerForm(req RegisterRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"username", req.Username},
		{"email", req.Email},
		{"fullname", req.FullName},
		{"password", req.Password},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if err := attach(w, "avatar", req.AvatarPath); err != nil {
		return nil, "", err
	}
	if err := attach(w, "coverImage", req.CoverImagePath); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func attach(w *multipart.Writer, field, path string) error {
	if path == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
