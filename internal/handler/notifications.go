package handler

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/spherre/multisig-service/internal/middleware"
	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
)

type listNotificationsResponse struct {
	Notifications []*models.Notification `json:"notifications"`
	Pagination    *service.Pagination    `json:"pagination"`
}

// ListNotifications retrieves a page of the account's notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
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
	unreadOnly := q.Get("unread_only") == "true"

	notifications, pagination, err := h.notifications.List(r.Context(), accountAddress,
		unreadOnly, q.Get("member"), page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	respondJSON(w, http.StatusOK, listNotificationsResponse{Notifications: notifications, Pagination: pagination})
}

// MarkNotificationRead records that the authenticated member read the
// notification; repeated calls are no-ops
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	notificationID := mux.Vars(r)["id"]
	err := h.notifications.MarkRead(r.Context(), notificationID, middleware.MemberAddress(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
