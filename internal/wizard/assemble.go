package wizard

import (
	"time"

	"github.com/shopspring/decimal"

	"bot-chitieu/internal/parser"
	"bot-chitieu/internal/repo"
)

var intentToStorageType = map[parser.Intent]string{
	parser.IntentExpense:  "expense",
	parser.IntentIncome:   "income",
	parser.IntentTransfer: "transfer",
	parser.IntentLend:     "debt",
	parser.IntentRepay:    "repayment",
}

// BuildBotTransactionDraft validates a completed draft against the
// minimum-viable-transaction rules and maps it to the storage record.
// Returns nil when the draft is not ready; the caller must never treat that
// as an error, only as "keep asking".
func BuildBotTransactionDraft(d *Draft) *repo.BotTransactionDraft {
	if d == nil || d.Intent == "" || d.Amount <= 0 || d.AccountID == "" || d.OccurredAt == "" {
		return nil
	}
	occurred, err := time.Parse("2006-01-02", d.OccurredAt)
	if err != nil {
		return nil
	}
	storageType, ok := intentToStorageType[d.Intent]
	if !ok {
		return nil
	}

	people := append([]string(nil), d.PersonIDs...)
	split := false
	if (storageType == "debt" || storageType == "repayment") && d.SplitBill && len(people) > 1 {
		split = true
	} else if len(people) > 1 {
		// A stray split flag must never reach storage with a single-person
		// list, and a non-debt record keeps at most one counterparty.
		people = people[:1]
	}

	rate := decimal.Zero
	if d.CashbackPercent != nil {
		// Wizard UI convention is whole percent; storage wants a fraction.
		rate = decimal.NewFromFloat(*d.CashbackPercent).Div(decimal.NewFromInt(100))
	}

	return &repo.BotTransactionDraft{
		Type:           storageType,
		Amount:         d.Amount,
		AccountID:      d.AccountID,
		DestAccountID:  d.DestAccountID,
		PersonIDs:      people,
		GroupID:        d.GroupID,
		OccurredAt:     occurred,
		Note:           d.Note,
		ShopID:         d.ShopID,
		CategoryID:     d.CategoryID,
		SplitBill:      split,
		CashbackRate:   rate,
		CashbackAmount: d.CashbackAmount,
		CashbackMode:   string(d.CashbackMode),
	}
}
