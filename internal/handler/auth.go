package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spherre/multisig-service/internal/service"
)

type signInRequest struct {
	Address string `json:"address"`
}

// SignIn handles member sign-in and token issuance
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, fmt.Errorf("%w: invalid JSON body", service.ErrInvalidArgument))
		return
	}
	result, err := h.auth.SignIn(r.Context(), req.Address)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
