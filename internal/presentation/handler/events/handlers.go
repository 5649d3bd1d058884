package events

import (
	"errors"
	"net/http"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/json"
	"github.com/hilthontt/cheahlytics/internal/usecases/ingestion"
)

const (
	msgUnregisteredApplication = "Unregistered Application"
	msgMalformedTrackingCode   = "Malformed Tracking Code"
	msgInvalidTrackingCode     = "Invalid Tracking Code"
)

type Handler struct {
	ingestion ingestion.IngestionUseCase
}

func NewHandler(ingestion ingestion.IngestionUseCase) *Handler {
	return &Handler{
		ingestion: ingestion,
	}
}

// RecordEventHandler godoc
// @Summary      Record an event
// @Description  Records a named event for the application identified by the tracking code. Callable from any origin.
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        request body recordEventRequest true "Event to record"
// @Success      201 {object} eventResponse "Event recorded"
// @Failure      400 {object} map[string]interface{} "Body is not valid JSON"
// @Failure      422 {object} map[string]interface{} "Unknown application, bad tracking code or invalid event"
// @Failure      500 {object} map[string]interface{} "Internal server error"
// @Router       /events [post]
func (h *Handler) RecordEventHandler(w http.ResponseWriter, r *http.Request) {
	var req recordEventRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteBadRequestError(w, "Request body must be a JSON event")
		return
	}

	event, err := h.ingestion.Record(r.Context(), req.Event.Name, req.Event.TrackingCode)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			json.WriteFieldErrors(w, verr.Fields)
		case errors.Is(err, domain.ErrApplicationNotFound):
			json.WriteUnprocessableMessage(w, msgUnregisteredApplication)
		case errors.Is(err, domain.ErrMalformedTrackingCode):
			json.WriteUnprocessableMessage(w, msgMalformedTrackingCode)
		case errors.Is(err, domain.ErrTrackingCodeMismatch):
			json.WriteUnprocessableMessage(w, msgInvalidTrackingCode)
		default:
			json.WriteInternalError(w, err)
		}
		return
	}

	json.Write(w, http.StatusCreated, eventResponse{
		ID:                      event.ID,
		Name:                    event.Name,
		RegisteredApplicationID: event.ApplicationID,
		CreatedAt:               event.CreatedAt,
	})
}

// PreflightHandler godoc
// @Summary      CORS preflight for event recording
// @Tags         events
// @Success      200 "Empty body"
// @Router       /events [options]
func (h *Handler) PreflightHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
