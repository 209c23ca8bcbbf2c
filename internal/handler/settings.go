package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/gorilla/mux"

	"github.com/spherre/multisig-service/internal/middleware"
	"github.com/spherre/multisig-service/internal/service"
)

type emailRequest struct {
	Email string `json:"email"`
}

// SetMemberEmail sets the authenticated member's contact email. The first
// successful set enables the member's email notification preference for the
// account.
func (h *Handler) SetMemberEmail(w http.ResponseWriter, r *http.Request) {
	accountAddress := mux.Vars(r)["address"]
	memberAddress := middleware.MemberAddress(r.Context())

	isMember, err := h.accounts.IsMember(r.Context(), accountAddress, memberAddress)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !isMember {
		h.respondError(w, fmt.Errorf("%w: %s does not belong to account %s", service.ErrNotAMember, memberAddress, accountAddress))
		return
	}

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, fmt.Errorf("%w: invalid JSON body", service.ErrInvalidArgument))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		h.respondError(w, fmt.Errorf("%w: invalid email address", service.ErrInvalidArgument))
		return
	}

	member, err := h.accounts.GetMemberByAddress(r.Context(), memberAddress)
	if err != nil {
		h.respondError(w, err)
		return
	}
	firstEmail := member.Email == ""

	if _, err := h.accounts.UpdateMemberEmail(r.Context(), memberAddress, req.Email); err != nil {
		h.respondError(w, err)
		return
	}
	if firstEmail {
		enabled := true
		if _, err := h.notifications.TogglePreference(r.Context(), memberAddress, accountAddress, &enabled); err != nil {
			h.respondError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

type preferenceRequest struct {
	EmailEnabled *bool `json:"email_enabled"`
}

// ToggleNotificationPreference flips or sets the member's email preference
// for the account
func (h *Handler) ToggleNotificationPreference(w http.ResponseWriter, r *http.Request) {
	accountAddress := mux.Vars(r)["address"]
	memberAddress := middleware.MemberAddress(r.Context())

	var req preferenceRequest
	if r.Body != nil {
		// Body is optional; absence means "flip the stored value".
		json.NewDecoder(r.Body).Decode(&req)
	}
	pref, err := h.notifications.TogglePreference(r.Context(), memberAddress, accountAddress, req.EmailEnabled)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pref)
}
