package report

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/spherre/multisig-service/internal/models"
)

// TransactionsXML renders the account's transaction history as an XML audit
// document. Member ids are resolved to on-chain addresses where the member is
// still known to the account.
func TransactionsXML(account *models.Account, txs []*models.Transaction) ([]byte, error) {
	addresses := make(map[string]string, len(account.Members))
	for _, m := range account.Members {
		addresses[m.ID] = m.Address
	}
	resolve := func(memberID string) string {
		if addr, ok := addresses[memberID]; ok {
			return addr
		}
		return memberID
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("AuditReport")
	accountEl := root.CreateElement("Account")
	accountEl.CreateAttr("address", account.Address)
	accountEl.CreateAttr("name", account.Name)
	accountEl.CreateAttr("threshold", itoa(account.Threshold))
	accountEl.CreateAttr("members", itoa(len(account.Members)))

	txsEl := root.CreateElement("Transactions")
	txsEl.CreateAttr("count", itoa(len(txs)))
	for _, tx := range txs {
		el := txsEl.CreateElement("Transaction")
		el.CreateAttr("id", itoa64(tx.TransactionID))
		el.CreateAttr("type", string(tx.Type))
		el.CreateAttr("status", string(tx.Status))
		el.CreateElement("Proposer").SetText(resolve(tx.ProposerID))
		if tx.ExecutorID != "" {
			el.CreateElement("Executor").SetText(resolve(tx.ExecutorID))
		}

		approvals := el.CreateElement("Approvals")
		for _, id := range tx.ApprovedIDs {
			approvals.CreateElement("Member").SetText(resolve(id))
		}
		rejections := el.CreateElement("Rejections")
		for _, id := range tx.RejectedIDs {
			rejections.CreateElement("Member").SetText(resolve(id))
		}

		el.CreateElement("CreatedAt").SetText(tx.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"))
		if tx.ExecutedAt != nil {
			el.CreateElement("ExecutedAt").SetText(tx.ExecutedAt.UTC().Format("2006-01-02T15:04:05Z"))
		}
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}
