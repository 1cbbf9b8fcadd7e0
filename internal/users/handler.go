package users

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/confhub-io/confhub/internal/domain"
	"github.com/confhub-io/confhub/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for user management, profiles and event
// registrations.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new users handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterAdminRoutes registers user management routes (admin only).
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Get("/all", h.ListAllUsers)
		r.Get("/{id}", h.GetUser)
		r.Put("/role", h.SetRole)
		r.Delete("/{id}", h.DeleteUser)
	})
}

// RegisterProfileRoutes registers routes for the authenticated user's
// own profile.
func (h *Handler) RegisterProfileRoutes(r chi.Router) {
	r.Get("/me", h.GetMe)
	r.Put("/me", h.UpdateMe)
}

// RegisterRegistrationRoutes registers event registration routes for
// the authenticated user.
func (h *Handler) RegisterRegistrationRoutes(r chi.Router) {
	r.Post("/events/{id}/registration", h.RegisterForEvent)
	r.Delete("/events/{id}/registration", h.CancelRegistration)
	r.Get("/events/{id}/registration", h.GetRegistration)
}

// RegisterParticipantRoutes registers participant listing routes
// (organizer only).
func (h *Handler) RegisterParticipantRoutes(r chi.Router) {
	r.Get("/events/{id}/participants", h.ListParticipants)
}

// UserResponse is the user representation returned by the API. The
// password hash never leaves the service.
type UserResponse struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Role    string `json:"role"`
}

func NewUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Surname: u.Surname,
		Role:    u.Role.String(),
	}
}

func NewUserResponses(list []domain.User) []UserResponse {
	result := make([]UserResponse, 0, len(list))
	for _, u := range list {
		result = append(result, NewUserResponse(u))
	}
	return result
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrUserNotFound, Status: http.StatusNotFound},
	{Error: ErrEventNotFound, Status: http.StatusNotFound},
	{Error: ErrEmailExists, Status: http.StatusConflict, Message: "email already in use"},
	{Error: ErrAlreadyRegistered, Status: http.StatusConflict, Message: "already registered for event"},
	{Error: ErrInvalidRole, Status: http.StatusBadRequest},
	{Error: ErrInvalidQuery, Status: http.StatusBadRequest},
}

// ListUsers handles GET /users request (paginated listing).
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := Query{
		SortBy:  SortField(r.URL.Query().Get("sort")),
		SortDir: SortDir(r.URL.Query().Get("order")),
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = parsed
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			httputil.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		q.Offset = parsed
	}

	if name := r.URL.Query().Get("role"); name != "" {
		role, ok := domain.ParseRole(name)
		if !ok {
			httputil.Error(w, http.StatusBadRequest, "unknown role")
			return
		}
		q.Role = &role
	}

	q.Search = r.URL.Query().Get("search")

	q = q.Normalize()
	items, total, err := h.service.List(r.Context(), q)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"users":  NewUserResponses(items),
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
	})
}

// ListAllUsers handles GET /users/all request (full dump).
func (h *Handler) ListAllUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListAll(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"users": NewUserResponses(items),
	})
}

// GetUser handles GET /users/{id} request.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, NewUserResponse(*user))
}

// SetRoleRequest is the payload for granting a role.
type SetRoleRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

// SetRole handles PUT /users/role request.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	role, ok := domain.ParseRole(req.Role)
	if !ok {
		httputil.Error(w, http.StatusBadRequest, "unknown role")
		return
	}

	if err := h.service.SetRole(r.Context(), req.Email, role); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]string{
		"email": req.Email,
		"role":  role.String(),
	})
}

// DeleteUser handles DELETE /users/{id} request.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusNoContent, nil)
}

// GetMe handles GET /me request.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByID(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, NewUserResponse(*user))
}

// UpdateProfileRequest is the payload for a profile update.
type UpdateProfileRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Name    string `json:"name" validate:"required,max=100"`
	Surname string `json:"surname" validate:"required,max=100"`
}

// UpdateMe handles PUT /me request.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), httputil.GetUserID(r.Context()), UpdateProfileInput{
		Email:   req.Email,
		Name:    req.Name,
		Surname: req.Surname,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, NewUserResponse(*user))
}

// RegisterForEvent handles POST /events/{id}/registration request.
func (h *Handler) RegisterForEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if err := h.service.RegisterForEvent(r.Context(), httputil.GetUserID(r.Context()), eventID); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, map[string]bool{"registered": true})
}

// CancelRegistration handles DELETE /events/{id}/registration request.
func (h *Handler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if err := h.service.CancelRegistration(r.Context(), httputil.GetUserID(r.Context()), eventID); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusNoContent, nil)
}

// GetRegistration handles GET /events/{id}/registration request.
func (h *Handler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid event id")
		return
	}

	registered, err := h.service.IsRegistered(r.Context(), httputil.GetUserID(r.Context()), eventID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]bool{"registered": registered})
}

// ListParticipants handles GET /events/{id}/participants request
// (organizer only). The role query parameter selects visitors (default)
// or speakers.
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid event id")
		return
	}

	role := domain.RoleVisitor
	if name := r.URL.Query().Get("role"); name != "" {
		parsed, ok := domain.ParseRole(name)
		if !ok {
			httputil.Error(w, http.StatusBadRequest, "unknown role")
			return
		}
		role = parsed
	}

	participants, err := h.service.ListParticipants(r.Context(), eventID, role)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"participants": NewUserResponses(participants),
		"role":         role.String(),
	})
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
