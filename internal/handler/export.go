package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
	"github.com/spherre/multisig-service/internal/utils/report"
)

// ExportTransactions renders the account's full transaction history as an
// XML audit document
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	accountAddress := mux.Vars(r)["address"]

	account, err := h.accounts.GetAccountByAddress(r.Context(), accountAddress)
	if err != nil {
		h.respondError(w, err)
		return
	}

	// Page through everything; the export is an audit artifact, not a feed.
	filter := service.TransactionFilter{Page: 1, PerPage: 100, SortOrder: "asc"}
	var all []*models.Transaction
	for {
		txs, pagination, err := h.txs.List(r.Context(), accountAddress, filter)
		if err != nil {
			h.respondError(w, err)
			return
		}
		all = append(all, txs...)
		if filter.Page >= pagination.Pages {
			break
		}
		filter.Page++
	}

	body, err := report.TransactionsXML(account, all)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.xml"`)
	w.Write(body)
}
