package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/spherre/multisig-service/internal/middleware"
	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
	"github.com/spherre/multisig-service/internal/utils"
)

type listTransactionsResponse struct {
	Transactions []*models.Transaction `json:"transactions"`
	Pagination   *service.Pagination   `json:"pagination"`
}

// ListTransactions retrieves a filtered page of the account's transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountAddress := mux.Vars(r)["address"]
	q := r.URL.Query()

	filter := service.TransactionFilter{
		Status:    models.TransactionStatus(q.Get("status")),
		Type:      models.TransactionType(q.Get("tx_type")),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	var err error
	if filter.Page, err = queryInt(q.Get("page"), 1); err != nil {
		h.respondError(w, fmt.Errorf("%w: page must be an integer", service.ErrInvalidArgument))
		return
	}
	if filter.PerPage, err = queryInt(q.Get("per_page"), 20); err != nil {
		h.respondError(w, fmt.Errorf("%w: per_page must be an integer", service.ErrInvalidArgument))
		return
	}
	if filter.Page < 1 || filter.PerPage < 1 || filter.PerPage > 100 {
		h.respondError(w, fmt.Errorf("%w: page and per_page must be between 1 and 100", service.ErrInvalidArgument))
		return
	}

	if filter.DateFrom, err = queryTime(q.Get("date_from")); err != nil {
		h.respondError(w, fmt.Errorf("%w: date_from must be ISO 8601", service.ErrInvalidArgument))
		return
	}
	if filter.DateTo, err = queryTime(q.Get("date_to")); err != nil {
		h.respondError(w, fmt.Errorf("%w: date_to must be ISO 8601", service.ErrInvalidArgument))
		return
	}

	if proposer := q.Get("proposer"); proposer != "" {
		if !utils.IsValidStarknetAddress(proposer) {
			h.respondError(w, fmt.Errorf("%w: proposer must be a valid address", service.ErrInvalidArgument))
			return
		}
		member, err := h.accounts.GetMemberByAddress(r.Context(), proposer)
		if errors.Is(err, service.ErrNotFound) {
			respondJSON(w, http.StatusOK, listTransactionsResponse{
				Transactions: []*models.Transaction{},
				Pagination:   &service.Pagination{CurrentPage: filter.Page, PerPage: filter.PerPage},
			})
			return
		}
		if err != nil {
			h.respondError(w, err)
			return
		}
		filter.ProposerID = member.ID
	}

	txs, pagination, err := h.txs.List(r.Context(), accountAddress, filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	respondJSON(w, http.StatusOK, listTransactionsResponse{Transactions: txs, Pagination: pagination})
}

// GetTransaction retrieves a single transaction
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	accountAddress, transactionID, err := txVars(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	tx, err := h.txs.Get(r.Context(), accountAddress, transactionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

type proposeTransactionRequest struct {
	TransactionID int64           `json:"transaction_id"`
	Type          string          `json:"tx_type"`
	Payload       json.RawMessage `json:"payload"`
}

// ProposeTransaction creates a new transaction proposed by the authenticated
// member
func (h *Handler) ProposeTransaction(w http.ResponseWriter, r *http.Request) {
	accountAddress := mux.Vars(r)["address"]
	var req proposeTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, fmt.Errorf("%w: invalid JSON body", service.ErrInvalidArgument))
		return
	}
	tx, err := h.txs.Propose(r.Context(), accountAddress, req.TransactionID,
		models.TransactionType(req.Type), middleware.MemberAddress(r.Context()), req.Payload, time.Now())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

// ApproveTransaction records an approval by the authenticated member and
// advances the status once the quorum is reached
func (h *Handler) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	accountAddress, transactionID, err := txVars(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	tx, err := h.txs.Approve(r.Context(), accountAddress, transactionID, middleware.MemberAddress(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	// A short quorum just means more votes are coming; InvalidState means a
	// concurrent caller already advanced (or terminally rejected) the
	// transaction between the two calls. Either way the vote above is
	// recorded, so neither is an error for this member.
	if promoted, err := h.txs.PromoteToApproved(r.Context(), accountAddress, transactionID); err == nil {
		tx = promoted
	} else if !errors.Is(err, service.ErrQuorumNotMet) && !errors.Is(err, service.ErrInvalidState) {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

// RejectTransaction records a rejection by the authenticated member
func (h *Handler) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	accountAddress, transactionID, err := txVars(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	tx, err := h.txs.Reject(r.Context(), accountAddress, transactionID, middleware.MemberAddress(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

// ExecuteTransaction finalizes an approved transaction
func (h *Handler) ExecuteTransaction(w http.ResponseWriter, r *http.Request) {
	accountAddress, transactionID, err := txVars(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	tx, err := h.txs.Execute(r.Context(), accountAddress, transactionID, middleware.MemberAddress(r.Context()), time.Now())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func txVars(r *http.Request) (string, int64, error) {
	vars := mux.Vars(r)
	transactionID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: transaction id must be an integer", service.ErrInvalidArgument)
	}
	return vars["address"], transactionID, nil
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func queryTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
