package parser

import (
	"context"
	"time"
)

// Intent is the closed set of transaction categories a parse can assign.
type Intent string

const (
	IntentExpense  Intent = "expense"
	IntentIncome   Intent = "income"
	IntentTransfer Intent = "transfer"
	IntentLend     Intent = "lend"
	IntentRepay    Intent = "repay"
)

// ValidIntent reports whether s is a member of the closed intent set.
func ValidIntent(s string) bool {
	switch Intent(s) {
	case IntentExpense, IntentIncome, IntentTransfer, IntentLend, IntentRepay:
		return true
	}
	return false
}

// Account is a money source/destination the user owns.
type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Cashback bool   `json:"cashback"`
}

// Person is a resolvable counterparty. A group is a person entry with
// IsGroup set; its members carry the group id in GroupID.
type Person struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsGroup bool   `json:"is_group"`
	GroupID string `json:"group_id,omitempty"`
	IsOwner bool   `json:"is_owner"`
}

// Shop is a known merchant.
type Shop struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Category is a spending category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParseContext is the read-only snapshot of the resolvable universe for one
// request. Providers may consult it but never mutate it.
type ParseContext struct {
	Accounts   []Account
	People     []Person
	Shops      []Shop
	Categories []Category

	// Previous holds the result of the prior turn when the new utterance is
	// a refinement. nil on a fresh parse.
	Previous *ParsedTransaction

	// Now anchors relative-date resolution ("hôm qua" etc).
	Now time.Time

	// ContextPersonID is set when the user is viewing a specific person's
	// detail page, so a bare expense can be coerced to a lend to them.
	ContextPersonID string
}

// ParsedTransaction is the normalized output of any provider. Soft name
// references are resolved against the directory later, by the wizard.
// Optional fields are nil when not mentioned, never empty strings.
type ParsedTransaction struct {
	Intent          Intent   `json:"intent"`
	Amount          *int64   `json:"amount"`
	Note            *string  `json:"note"`
	Date            *string  `json:"date"`
	Account         *string  `json:"account"`
	DebtAccount     *string  `json:"debt_account"`
	Category        *string  `json:"category"`
	Shop            *string  `json:"shop"`
	Group           *string  `json:"group"`
	People          []string `json:"people"`
	SplitBill       *bool    `json:"split_bill"`
	CashbackPercent *float64 `json:"cashback_percent"`
	CashbackAmount  *int64   `json:"cashback_amount"`
	Feedback        string   `json:"feedback"`
}

// Metadata describes the provider call that produced a Response. It is
// populated even on failure so operators can tell providers apart.
type Metadata struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Tokens   int           `json:"tokens"`
	Latency  time.Duration `json:"latency"`
}

// Response is the envelope every provider returns. Provider-level errors are
// folded into Success/Error here and never escape the provider boundary.
type Response struct {
	Success bool               `json:"success"`
	Result  *ParsedTransaction `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
	Meta    Metadata           `json:"meta"`
}

// Provider is the uniform adapter contract.
type Provider interface {
	Name() string
	// Available reports whether the provider can be tried at all, e.g. a
	// credential is configured. Unavailability is not a failure event.
	Available() bool
	// Parse turns free text plus context into a structured result. It never
	// panics and folds its own errors into the returned envelope.
	Parse(ctx context.Context, text string, pctx *ParseContext) *Response
}
