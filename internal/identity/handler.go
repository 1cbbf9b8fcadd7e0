package identity

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/confhub-io/confhub/internal/pkg/ctxlog"
	"github.com/confhub-io/confhub/internal/pkg/httputil"
	"github.com/confhub-io/confhub/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: users.ErrUserNotFound, Status: http.StatusNotFound},
	{Error: users.ErrEmailExists, Status: http.StatusConflict},
	{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized},
	{Error: ErrInvalidToken, Status: http.StatusUnauthorized},
}

// CookieSettings controls the auth cookie attributes.
type CookieSettings struct {
	Secure               bool
	Domain               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// Handler serves registration, login and token lifecycle endpoints.
type Handler struct {
	service   *Service
	validator *validator.Validate
	cookies   CookieSettings
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service, cookies CookieSettings) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
		cookies:   cookies,
	}
}

// RegisterRoutes registers the public credential endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
	})
}

// RegisterProtectedRoutes registers endpoints that need a valid session.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Put("/me/password", h.ChangePassword)
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
}

// Register handles POST /auth/register. New accounts start as visitors.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), RegisterInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, users.NewUserResponse(*user))
}

// LoginRequest is the payload for credential login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the authenticated user. Tokens travel only in
// cookies.
type LoginResponse struct {
	User users.UserResponse `json:"user"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, tokens, err := h.service.Login(r.Context(), LoginInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	h.setAuthCookies(w, tokens)
	httputil.Success(w, http.StatusOK, LoginResponse{User: users.NewUserResponse(*user)})
}

// Refresh handles POST /auth/refresh. The refresh token is rotated on
// every use.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.refreshTokenFromRequest(r)
	if refreshToken == "" {
		httputil.Error(w, http.StatusBadRequest, "missing refresh token")
		return
	}

	tokens, err := h.service.RefreshTokens(r.Context(), refreshToken)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	h.setAuthCookies(w, tokens)
	w.WriteHeader(http.StatusNoContent)
}

// Logout handles POST /auth/logout. Always succeeds so a client can
// drop a broken session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if refreshToken := h.refreshTokenFromRequest(r); refreshToken != "" {
		if err := h.service.Logout(r.Context(), refreshToken); err != nil {
			ctxlog.FromContext(r.Context()).Warn("logout error", "error", err)
		}
	}

	h.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// ChangePasswordRequest is the payload for a password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword handles PUT /me/password. Existing refresh tokens are
// revoked so stolen sessions die with the old password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == 0 {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, ChangePasswordInput(req)); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type cookieSpec struct {
	name     string
	value    string
	path     string
	maxAge   int
	httpOnly bool
	sameSite http.SameSite
}

func (h *Handler) writeCookie(w http.ResponseWriter, spec cookieSpec) {
	http.SetCookie(w, &http.Cookie{
		Name:     spec.name,
		Value:    spec.value,
		Path:     spec.path,
		Domain:   h.cookies.Domain,
		MaxAge:   spec.maxAge,
		HttpOnly: spec.httpOnly,
		Secure:   h.cookies.Secure,
		SameSite: spec.sameSite,
	})
}

// setAuthCookies issues the access, refresh and CSRF cookies. The
// refresh token is scoped to the auth endpoints; the CSRF token stays
// readable by the frontend so it can echo it in a header.
func (h *Handler) setAuthCookies(w http.ResponseWriter, tokens *TokenPair) {
	h.writeCookie(w, cookieSpec{
		name:     httputil.AccessTokenCookie,
		value:    tokens.AccessToken,
		path:     "/",
		maxAge:   int(h.cookies.AccessTokenDuration.Seconds()),
		httpOnly: true,
		sameSite: http.SameSiteLaxMode,
	})
	h.writeCookie(w, cookieSpec{
		name:     httputil.RefreshTokenCookie,
		value:    tokens.RefreshToken,
		path:     "/api/v1/auth",
		maxAge:   int(h.cookies.RefreshTokenDuration.Seconds()),
		httpOnly: true,
		sameSite: http.SameSiteStrictMode,
	})
	h.writeCookie(w, cookieSpec{
		name:     httputil.CSRFTokenCookie,
		value:    newCSRFToken(),
		path:     "/",
		maxAge:   int(h.cookies.AccessTokenDuration.Seconds()),
		httpOnly: false,
		sameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	h.writeCookie(w, cookieSpec{
		name:     httputil.AccessTokenCookie,
		path:     "/",
		maxAge:   -1,
		httpOnly: true,
		sameSite: http.SameSiteLaxMode,
	})
	h.writeCookie(w, cookieSpec{
		name:     httputil.RefreshTokenCookie,
		path:     "/api/v1/auth",
		maxAge:   -1,
		httpOnly: true,
		sameSite: http.SameSiteStrictMode,
	})
	h.writeCookie(w, cookieSpec{
		name:     httputil.CSRFTokenCookie,
		path:     "/",
		maxAge:   -1,
		httpOnly: false,
		sameSite: http.SameSiteLaxMode,
	})
}

// refreshTokenFromRequest reads the refresh token from its cookie,
// falling back to the request body for non-browser clients.
func (h *Handler) refreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(httputil.RefreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.RefreshToken != "" {
		return body.RefreshToken
	}
	return ""
}

func newCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
