package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BotTransactionDraft is the persistence-ready record the wizard's draft
// assembler emits. Type uses storage vocabulary (debt/repayment, not
// lend/repay) and CashbackRate is a fraction, not a whole percent.
type BotTransactionDraft struct {
	Type           string
	Amount         int64
	AccountID      string
	DestAccountID  string
	PersonIDs      []string
	GroupID        string
	OccurredAt     time.Time
	Note           string
	ShopID         string
	CategoryID     string
	SplitBill      bool
	CashbackRate   decimal.Decimal
	CashbackAmount *int64
	CashbackMode   string
}

// InsertBotTransaction stores a confirmed draft and returns its reference.
// Ledger posting and balance recalculation happen downstream of this table.
func (r *Repository) InsertBotTransaction(ctx context.Context, userID string, d BotTransactionDraft) (string, error) {
	ref := generateRefID("btx")
	const q = `
		INSERT INTO bot_transactions (
			ref, user_id, type, amount, account_id, dest_account_id,
			person_ids, group_id, occurred_at, note, shop_id, category_id,
			split_bill, cashback_rate, cashback_amount, cashback_mode
		) VALUES (
			$1, $2, $3, $4, $5, NULLIF($6, ''),
			$7, NULLIF($8, ''), $9, NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''),
			$13, $14, $15, $16
		)`
	_, err := r.pool.Exec(ctx, q,
		ref, userID, d.Type, d.Amount, d.AccountID, d.DestAccountID,
		d.PersonIDs, d.GroupID, d.OccurredAt, d.Note, d.ShopID, d.CategoryID,
		d.SplitBill, d.CashbackRate.String(), d.CashbackAmount, d.CashbackMode,
	)
	if err != nil {
		return "", fmt.Errorf("insert bot transaction: %w", err)
	}
	return ref, nil
}

func generateRefID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
