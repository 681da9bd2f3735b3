package httpserver

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/dmitrijs2005/userauth/internal/filex"
	"github.com/dmitrijs2005/userauth/internal/logging"
	"github.com/dmitrijs2005/userauth/internal/server/models"
	"github.com/dmitrijs2005/userauth/internal/server/services"
	"github.com/labstack/echo/v4"
)

// UserService is the business logic behind the HTTP routes.
// *services.UserService satisfies it.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, username, email, password string) (*services.Session, error)
	Logout(ctx context.Context, userID string) error
	RefreshAccessToken(ctx context.Context, presented string) (*services.Session, error)
	Authenticate(ctx context.Context, accessToken string) (string, error)
	CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error)
}

type registerRequest struct {
	Username string `form:"username" validate:"max=64"`
	Email    string `form:"email" validate:"max=254"`
	FullName string `form:"fullname" validate:"max=128"`
	Password string `form:"password" validate:"max=1024"`
}

type loginRequest struct {
	Username string `json:"username" form:"username" validate:"max=64"`
	Email    string `json:"email" form:"email" validate:"max=254"`
	Password string `json:"password" form:"password" validate:"max=1024"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

type loginResponse struct {
	User         *models.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

type tokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Handler struct {
	svc          UserService
	tempDir      string
	cookieSecure bool
	logger       logging.Logger
}

func NewHandler(svc UserService, tempDir string, cookieSecure bool, logger logging.Logger) *Handler {
	return &Handler{svc: svc, tempDir: tempDir, cookieSecure: cookieSecure, logger: logger}
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return common.Validation("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()

	avatarPath, err := h.stage(c, "avatar")
	defer h.cleanup(ctx, avatarPath)
	if err != nil {
		return err
	}
	coverPath, err := h.stage(c, "coverImage")
	defer h.cleanup(ctx, coverPath)
	if err != nil {
		return err
	}

	u, err := h.svc.Register(ctx, services.RegisterInput{
		Username:       req.Username,
		Email:          req.Email,
		FullName:       req.FullName,
		Password:       req.Password,
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, u, "User registered Successfully")
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return common.Validation("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	s, err := h.svc.Login(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return err
	}

	setTokenCookies(c, s)
	return respond(c, http.StatusOK, loginResponse{
		User:         s.User,
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
	}, "User logged In Successfully")
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.svc.Logout(c.Request().Context(), currentUserID(c)); err != nil {
		return err
	}

	clearTokenCookies(c, services.CookieOptions{HTTPOnly: true, Secure: h.cookieSecure})
	return respond(c, http.StatusOK, map[string]any{}, "User logged Out")
}

func (h *Handler) RefreshToken(c echo.Context) error {
	presented := ""
	if ck, err := c.Cookie(common.RefreshTokenCookieName); err == nil {
		presented = ck.Value
	}
	if presented == "" {
		var req refreshRequest
		if err := c.Bind(&req); err == nil {
			presented = req.RefreshToken
		}
	}

	s, err := h.svc.RefreshAccessToken(c.Request().Context(), presented)
	if err != nil {
		return err
	}

	setTokenCookies(c, s)
	return respond(c, http.StatusOK, tokensResponse{
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
	}, "Access token refreshed")
}

func (h *Handler) CurrentUser(c echo.Context) error {
	u, err := h.svc.CurrentUser(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, u, "User fetched successfully")
}

// stage copies the first file of the named form field into the temp dir.
// A missing field yields an empty path.
func (h *Handler) stage(c echo.Context, field string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", common.Validation("Invalid multipart form")
	}
	return h.save(fh)
}

func (h *Handler) save(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", common.Internal("Failed to read uploaded file", err)
	}
	defer src.Close()

	path, err := filex.SaveTemp(h.tempDir, filepath.Ext(fh.Filename), src)
	if err != nil {
		return "", common.Internal("Failed to store uploaded file", err)
	}
	return path, nil
}

// cleanup removes a staged file that the object store did not consume.
func (h *Handler) cleanup(ctx context.Context, path string) {
	if err := filex.Remove(path); err != nil {
		h.logger.Warn(ctx, "failed to remove staged file", "path", path, "error", err)
	}
}
