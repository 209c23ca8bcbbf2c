package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
)

type createAccountRequest struct {
	Address     string   `json:"address"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Threshold   int      `json:"threshold"`
	Members     []string `json:"members"`
}

// CreateAccount handles account registration
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, fmt.Errorf("%w: invalid JSON body", service.ErrInvalidArgument))
		return
	}
	account, err := h.accounts.CreateAccount(r.Context(), req.Address, req.Name, req.Description, req.Threshold, req.Members)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

// GetAccount retrieves an account with its members
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccountByAddress(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// GetMemberAccounts lists every account the member belongs to
func (h *Handler) GetMemberAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListMemberAccounts(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	respondJSON(w, http.StatusOK, accounts)
}
