package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/spherre/multisig-service/internal/service"
)

// Handler exposes the services over HTTP
type Handler struct {
	auth          *service.AuthService
	accounts      *service.AccountService
	txs           *service.TransactionService
	notifications *service.NotificationService
	locks         *service.SmartLockService
	log           *logrus.Logger
}

// NewHandler initializes a new handler
func NewHandler(auth *service.AuthService, accounts *service.AccountService, txs *service.TransactionService,
	notifications *service.NotificationService, locks *service.SmartLockService, log *logrus.Logger) *Handler {
	return &Handler{auth: auth, accounts: accounts, txs: txs, notifications: notifications, locks: locks, log: log}
}

// Health reports service liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondErrorMessage(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// respondError maps service errors onto the HTTP error envelope
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		respondErrorMessage(w, http.StatusBadRequest, "InvalidArgument", err.Error())
	case errors.Is(err, service.ErrNotFound):
		respondErrorMessage(w, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, service.ErrNotAMember):
		respondErrorMessage(w, http.StatusForbidden, "NotAMember", err.Error())
	case errors.Is(err, service.ErrSelfApproval):
		respondErrorMessage(w, http.StatusConflict, "SelfApproval", err.Error())
	case errors.Is(err, service.ErrAlreadyActed):
		respondErrorMessage(w, http.StatusConflict, "AlreadyActed", err.Error())
	case errors.Is(err, service.ErrInvalidState):
		respondErrorMessage(w, http.StatusConflict, "InvalidState", err.Error())
	case errors.Is(err, service.ErrQuorumNotMet):
		respondErrorMessage(w, http.StatusConflict, "QuorumNotMet", err.Error())
	case errors.Is(err, service.ErrAlreadyExists):
		respondErrorMessage(w, http.StatusConflict, "AlreadyExists", err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		h.log.Errorf("Store unavailable: %v", err)
		respondErrorMessage(w, http.StatusServiceUnavailable, "StoreUnavailable", "store unavailable")
	default:
		h.log.Errorf("Internal error: %v", err)
		respondErrorMessage(w, http.StatusInternalServerError, "InternalServerError", "server error")
	}
}
