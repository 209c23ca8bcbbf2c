package handler

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
)

type listLocksResponse struct {
	SmartLocks []*models.SmartLock `json:"smart_locks"`
	Pagination *service.Pagination `json:"pagination"`
}

// ListSmartLocks retrieves a page of the account's token locks
func (h *Handler) ListSmartLocks(w http.ResponseWriter, r *http.Request) {
	accountAddress := mux.Vars(r)["address"]
	q := r.URL.Query()

	page, err := queryInt(q.Get("page"), 1)
	if err != nil {
		h.respondError(w, fmt.Errorf("%w: page must be an integer", service.ErrInvalidArgument))
		return
	}
	perPage, err := queryInt(q.Get("per_page"), 20)
	if err != nil {
		h.respondError(w, fmt.Errorf("%w: per_page must be an integer", service.ErrInvalidArgument))
		return
	}

	locks, pagination, err := h.locks.List(r.Context(), accountAddress,
		models.LockStatus(q.Get("status")), page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if locks == nil {
		locks = []*models.SmartLock{}
	}
	respondJSON(w, http.StatusOK, listLocksResponse{SmartLocks: locks, Pagination: pagination})
}
