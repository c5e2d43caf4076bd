package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classbridge/frontdesk-backend/internal/domain/call"
	domainerrors "github.com/classbridge/frontdesk-backend/internal/domain/errors"
	"github.com/classbridge/frontdesk-backend/internal/service/agent"
	"github.com/classbridge/frontdesk-backend/internal/service/calltracker"
)

// Handler exposes the front-desk agent over telephony-provider webhooks.
type Handler struct {
	agent    *agent.Service
	tracker  *calltracker.Tracker
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates the webhook handler set.
func NewHandler(a *agent.Service, tracker *calltracker.Tracker, logger *zap.Logger) *Handler {
	return &Handler{
		agent:    a,
		tracker:  tracker,
		validate: validator.New(),
		logger:   logger,
	}
}

// Routes registers all webhook endpoints on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/calls/incoming", h.handleIncomingCall)
	mux.HandleFunc("POST /api/v1/calls/gather", h.handleGatherInput)
	mux.HandleFunc("POST /api/v1/calls/{id}/status", h.handleCallStatus)
	mux.HandleFunc("POST /api/v1/calls/outgoing", h.handleOutgoingCall)
	mux.HandleFunc("POST /api/v1/callbacks", h.handleScheduleCallback)
	mux.HandleFunc("GET /api/v1/calls/history", h.handleCallHistory)
}

func (h *Handler) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	var event agent.CallEvent
	if !h.decode(w, r, &event) {
		return
	}

	result, err := h.agent.HandleIncomingCall(r.Context(), event)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGatherInput(w http.ResponseWriter, r *http.Request) {
	var event agent.CallEvent
	if !h.decode(w, r, &event) {
		return
	}

	result, err := h.agent.HandleGatherInput(r.Context(), event)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

type callStatusRequest struct {
	Status       string  `json:"status" validate:"required"`
	Duration     *int    `json:"duration,omitempty"`
	RecordingURL *string `json:"recording_url,omitempty"`
}

func (h *Handler) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	var req callStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	status, err := call.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, domainerrors.NewValidationError("INVALID_STATUS", err.Error()))
		return
	}

	update := calltracker.StatusUpdate{Duration: req.Duration, RecordingURL: req.RecordingURL}
	if err := h.agent.UpdateCallStatus(r.Context(), r.PathValue("id"), status, update); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *Handler) handleOutgoingCall(w http.ResponseWriter, r *http.Request) {
	var req agent.OutgoingCallRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.agent.MakeOutgoingCall(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{
		"call_id": c.ID.String(),
		"status":  c.Status.String(),
	})
}

func (h *Handler) handleScheduleCallback(w http.ResponseWriter, r *http.Request) {
	var req calltracker.CallbackRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.agent.ScheduleCallback(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"callback_id": id})
}

func (h *Handler) handleCallHistory(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		h.writeError(w, domainerrors.NewValidationError("MISSING_PHONE", "phone query parameter is required"))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			h.writeError(w, domainerrors.NewValidationError("INVALID_LIMIT", "limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	history := h.tracker.GetHistory(r.Context(), phone, limit)
	if history == nil {
		history = []*call.Call{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"calls": history, "count": len(history)})
}

// decode parses and validates a JSON body. On failure it writes the error
// response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, domainerrors.NewValidationError("INVALID_BODY", "request body is not valid JSON"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			h.writeError(w, domainerrors.NewValidationError("MISSING_FIELD",
				"invalid value for field "+verrs[0].Field()))
			return false
		}
		h.writeError(w, domainerrors.NewValidationError("INVALID_BODY", err.Error()))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response encoding failed", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := domainerrors.GetStatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	var appErr *domainerrors.AppError
	if !errors.As(err, &appErr) {
		appErr = domainerrors.NewInternalError("An internal error occurred")
	}
	h.writeJSON(w, status, map[string]any{"error": appErr})
}
