package handler

import (
	"encoding/json"
	"net/http"

	"voltbook/internal/otp/service"
	httputil "voltbook/pkg/http"
	"voltbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type SendRequest struct {
	Email string `json:"email"`
}

type CheckRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type OTPHandler struct {
	service service.OTPService
	log     *logger.Logger
}

func NewOTPHandler(service service.OTPService, log *logger.Logger) *OTPHandler {
	return &OTPHandler{
		service: service,
		log:     log,
	}
}

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Send", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Send(r.Context(), req.Email); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Send", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]string{"status": "sent"}); err != nil {
		h.log.Error("failed to write success response", "handler", "Send", "operation", "WriteSuccess", "error", err)
	}
}

func (h *OTPHandler) Check(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Check", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Check(r.Context(), req.Email, req.Code); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Check", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]string{"status": "verified"}); err != nil {
		h.log.Error("failed to write success response", "handler", "Check", "operation", "WriteSuccess", "error", err)
	}
}

func (h *OTPHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/otp/send", h.Send)
	router.POST("/api/v1/otp/check", h.Check)
}
