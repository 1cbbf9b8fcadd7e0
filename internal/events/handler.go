package events

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/confhub-io/confhub/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for events and reports.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new events handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers read-only event routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/events", h.ListEvents)
	r.Get("/events/{id}", h.GetEvent)
	r.Get("/events/{id}/reports", h.ListEventReports)
}

// RegisterOrganizerRoutes registers event management routes (organizer
// only).
func (h *Handler) RegisterOrganizerRoutes(r chi.Router) {
	r.Post("/events", h.CreateEvent)
	r.Put("/events/{id}", h.UpdateEvent)
	r.Delete("/events/{id}", h.DeleteEvent)
	r.Post("/events/{id}/reports", h.CreateReport)
}

// RegisterReportRoutes registers report management routes (organizer
// only).
func (h *Handler) RegisterReportRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Put("/{id}/speaker", h.AssignSpeaker)
		r.Delete("/{id}/speaker", h.RemoveSpeaker)
		r.Delete("/{id}", h.DeleteReport)
	})
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrEventNotFound, Status: http.StatusNotFound},
	{Error: ErrReportNotFound, Status: http.StatusNotFound},
	{Error: ErrSpeakerNotFound, Status: http.StatusNotFound},
	{Error: ErrTitleExists, Status: http.StatusConflict, Message: "event title already in use"},
	{Error: ErrNotSpeaker, Status: http.StatusConflict},
	{Error: ErrPastDate, Status: http.StatusBadRequest},
	{Error: ErrInvalidQuery, Status: http.StatusBadRequest},
}

// dateLayout is the wire format for event dates.
const dateLayout = "2006-01-02"

// ListEvents handles GET /events request.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := Query{
		SortBy:  SortField(r.URL.Query().Get("sort")),
		SortDir: SortDir(r.URL.Query().Get("order")),
		Filter: Filter{
			Search:   r.URL.Query().Get("search"),
			Upcoming: r.URL.Query().Get("upcoming") == "true",
		},
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

	q = q.Normalize()
	items, total, err := h.service.List(r.Context(), q)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"events": items,
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
	})
}

// GetEvent handles GET /events/{id} request.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := h.service.GetEventByID(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, event)
}

// EventRequest is the payload for creating or updating an event.
type EventRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Date        string `json:"date" validate:"required"`
	Location    string `json:"location" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
}

// CreateEvent handles POST /events request.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	event, err := h.service.CreateEvent(r.Context(), CreateEventInput{
		Title:       req.Title,
		Date:        date,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, event)
}

// UpdateEvent handles PUT /events/{id} request.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	event, err := h.service.UpdateEvent(r.Context(), id, UpdateEventInput{
		Title:       req.Title,
		Date:        date,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id} request.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if err := h.service.DeleteEvent(r.Context(), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusNoContent, nil)
}

// CreateReportRequest is the payload for scheduling a report.
type CreateReportRequest struct {
	Topic string `json:"topic" validate:"required,max=200"`
}

// CreateReport handles POST /events/{id}/reports request.
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	report, err := h.service.CreateReport(r.Context(), eventID, req.Topic)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, report)
}

// ListEventReports handles GET /events/{id}/reports request.
func (h *Handler) ListEventReports(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid event id")
		return
	}

	reports, err := h.service.ListEventReports(r.Context(), eventID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

// AssignSpeakerRequest is the payload for assigning a speaker.
type AssignSpeakerRequest struct {
	SpeakerID int64 `json:"speaker_id" validate:"required"`
}

// AssignSpeaker handles PUT /reports/{id}/speaker request.
func (h *Handler) AssignSpeaker(w http.ResponseWriter, r *http.Request) {
	reportID, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid report id")
		return
	}

	var req AssignSpeakerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.service.AssignSpeaker(r.Context(), reportID, req.SpeakerID); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int64{"speaker_id": req.SpeakerID})
}

// RemoveSpeaker handles DELETE /reports/{id}/speaker request.
func (h *Handler) RemoveSpeaker(w http.ResponseWriter, r *http.Request) {
	reportID, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid report id")
		return
	}

	if err := h.service.RemoveSpeaker(r.Context(), reportID); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusNoContent, nil)
}

// DeleteReport handles DELETE /reports/{id} request.
func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid report id")
		return
	}

	if err := h.service.DeleteReport(r.Context(), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusNoContent, nil)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
