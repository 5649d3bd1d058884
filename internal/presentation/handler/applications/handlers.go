package applications

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/json"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
	"github.com/hilthontt/cheahlytics/internal/presentation/utils"
	"github.com/hilthontt/cheahlytics/internal/usecases/applications"
)

// LiveFeed streams recorded events of one application over a websocket.
type LiveFeed interface {
	Serve(ctx context.Context, conn *websocket.Conn, applicationID int64)
}

type Handler struct {
	applications applications.ApplicationUseCase
	feed         LiveFeed
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

func NewHandler(applications applications.ApplicationUseCase, feed LiveFeed, logger logging.Logger) *Handler {
	return &Handler{
		applications: applications,
		feed:         feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// ListApplicationsHandler godoc
// @Summary      List applications
// @Description  Lists the applications registered by the signed-in user
// @Tags         applications
// @Produce      json
// @Success      200 {object} map[string]interface{} "Applications of the current user"
// @Failure      401 {object} map[string]interface{} "Not signed in"
// @Security     SessionAuth
// @Router       /applications [get]
func (h *Handler) ListApplicationsHandler(w http.ResponseWriter, r *http.Request) {
	apps, err := h.applications.List(r.Context(), utils.CurrentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, listResponse[domain.Application]{Applications: apps})
}

// CreateApplicationHandler godoc
// @Summary      Register an application
// @Description  Registers a website and assigns it a tracking code
// @Tags         applications
// @Accept       json
// @Produce      json
// @Param        request body applicationRequest true "Application attributes"
// @Success      201 {object} map[string]interface{} "Application registered"
// @Failure      400 {object} map[string]interface{} "Body is not valid JSON"
// @Failure      401 {object} map[string]interface{} "Not signed in"
// @Failure      422 {object} map[string]interface{} "Validation errors"
// @Security     SessionAuth
// @Router       /applications [post]
func (h *Handler) CreateApplicationHandler(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	app, err := h.applications.Create(r.Context(), utils.CurrentUser(r), req.RegisteredApplication.Name, req.RegisteredApplication.URL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusCreated, app)
}

// GetApplicationHandler godoc
// @Summary      Show an application
// @Description  Returns the application with its events grouped by name
// @Tags         applications
// @Produce      json
// @Param        id path int true "Application ID"
// @Success      200 {object} map[string]interface{} "Application dashboard"
// @Failure      401 {object} map[string]interface{} "Not signed in"
// @Failure      403 {object} map[string]interface{} "Not the owner"
// @Failure      404 {object} map[string]interface{} "Application not found"
// @Security     SessionAuth
// @Router       /applications/{id} [get]
func (h *Handler) GetApplicationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	dash, err := h.applications.Get(r.Context(), utils.CurrentUser(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, dash)
}

// UpdateApplicationHandler godoc
// @Summary      Edit an application
// @Description  Changes the name and URL. The tracking code stays the same.
// @Tags         applications
// @Accept       json
// @Produce      json
// @Param        id path int true "Application ID"
// @Param        request body applicationRequest true "Application attributes"
// @Success      200 {object} map[string]interface{} "Application updated"
// @Failure      403 {object} map[string]interface{} "Not the owner"
// @Failure      404 {object} map[string]interface{} "Application not found"
// @Failure      422 {object} map[string]interface{} "Validation errors"
// @Security     SessionAuth
// @Router       /applications/{id} [put]
func (h *Handler) UpdateApplicationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var req applicationRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	app, err := h.applications.Update(r.Context(), utils.CurrentUser(r), id, req.RegisteredApplication.Name, req.RegisteredApplication.URL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, app)
}

// DeleteApplicationHandler godoc
// @Summary      Delete an application
// @Description  Deletes the application and all of its events
// @Tags         applications
// @Param        id path int true "Application ID"
// @Success      204 "Deleted"
// @Failure      403 {object} map[string]interface{} "Not the owner"
// @Failure      404 {object} map[string]interface{} "Application not found"
// @Security     SessionAuth
// @Router       /applications/{id} [delete]
func (h *Handler) DeleteApplicationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	if err := h.applications.Delete(r.Context(), utils.CurrentUser(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetupApplicationHandler godoc
// @Summary      Tracking setup
// @Description  Returns the tracking code and the snippet to embed on the tracked site
// @Tags         applications
// @Produce      json
// @Param        id path int true "Application ID"
// @Success      200 {object} map[string]interface{} "Setup instructions"
// @Failure      403 {object} map[string]interface{} "Not the owner"
// @Failure      404 {object} map[string]interface{} "Application not found"
// @Security     SessionAuth
// @Router       /applications/{id}/setup [get]
func (h *Handler) SetupApplicationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	setup, err := h.applications.Setup(r.Context(), utils.CurrentUser(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, setup)
}

// AuditHandler godoc
// @Summary      Ingestion audit trail
// @Description  Lists recent submissions for the application, accepted or rejected
// @Tags         applications
// @Produce      json
// @Param        id path int true "Application ID"
// @Param        outcome query string false "Only entries with this outcome"
// @Param        from query string false "RFC 3339 lower bound, used with outcome"
// @Param        to query string false "RFC 3339 upper bound, used with outcome"
// @Param        limit query int false "Maximum entries without outcome"
// @Success      200 {object} map[string]interface{} "Audit entries"
// @Failure      400 {object} map[string]interface{} "Bad filter"
// @Failure      403 {object} map[string]interface{} "Not the owner"
// @Failure      404 {object} map[string]interface{} "Application not found"
// @Failure      503 {object} map[string]interface{} "Audit log disabled"
// @Security     SessionAuth
// @Router       /applications/{id}/audit [get]
func (h *Handler) AuditHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	query, err := parseAuditQuery(r)
	if err != nil {
		json.WriteBadRequestError(w, err.Error())
		return
	}

	logs, err := h.applications.Audit(r.Context(), utils.CurrentUser(r), id, query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, auditResponse{Audit: logs})
}

func parseAuditQuery(r *http.Request) (applications.AuditQuery, error) {
	var query applications.AuditQuery
	values := r.URL.Query()

	if raw := values.Get("outcome"); raw != "" {
		outcome, ok := domain.ParseIngestionOutcome(raw)
		if !ok {
			return query, errors.New("unknown outcome")
		}
		query.Outcome = outcome
	}

	for _, bound := range []struct {
		name string
		dst  *time.Time
	}{{"from", &query.From}, {"to", &query.To}} {
		raw := values.Get(bound.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, errors.New(bound.name + " must be an RFC 3339 time")
		}
		*bound.dst = t
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return query, errors.New("limit must be a positive integer")
		}
		query.Limit = limit
	}

	return query, nil
}

// LiveFeedHandler godoc
// @Summary      Live event feed
// @Description  Upgrades to a WebSocket that streams events as they are recorded
// @Tags         applications
// @Param        id path int true "Application ID"
// @Success      101 {object} map[string]interface{} "Switching Protocols"
// @Failure      403 {object} map[string]interface{} "Not the owner"
// @Failure      404 {object} map[string]interface{} "Application not found"
// @Security     SessionAuth
// @Router       /applications/{id}/live [get]
func (h *Handler) LiveFeedHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	app, err := h.applications.Authorize(r.Context(), utils.CurrentUser(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.Warn(logging.WebSocket, logging.Subscription, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.ApplicationID: app.ID,
			logging.ErrorMessage:  err.Error(),
		})
		return
	}

	h.feed.Serve(context.WithoutCancel(r.Context()), conn, app.ID)
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		json.WriteNotFoundError(w, "Application not found")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		json.WriteFieldErrors(w, verr.Fields)
	case errors.Is(err, domain.ErrForbidden):
		json.WriteForbiddenError(w)
	case errors.Is(err, domain.ErrApplicationNotFound):
		json.WriteNotFoundError(w, "Application not found")
	case errors.Is(err, applications.ErrAuditLogDisabled):
		json.WriteError(w, http.StatusServiceUnavailable, err, "Audit log is not enabled")
	default:
		h.logger.Error(logging.General, logging.Management, "application request failed", map[logging.ExtraKey]any{
			logging.Path:         r.URL.Path,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
	}
}
