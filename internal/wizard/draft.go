package wizard

import (
	"bot-chitieu/internal/parser"
)

// CashbackMode classifies how a cashback share should be treated downstream.
type CashbackMode string

const (
	CashbackNone        CashbackMode = "none"
	CashbackVoluntary   CashbackMode = "voluntary"
	CashbackRealPercent CashbackMode = "real_percent"
	CashbackRealFixed   CashbackMode = "real_fixed"
)

// Candidate is a directory entry awaiting disambiguation.
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Draft is the wizard's working, partially-filled transaction. Zero values
// mean "unset"; the amount is strictly positive once known. The candidate
// lists are transient and only populated mid-disambiguation.
//
// Invariant: SplitConfirmed is true only after an explicit user answer or an
// authoritative signal (a group selection forces split on and confirmed).
type Draft struct {
	Intent          parser.Intent `json:"intent,omitempty"`
	Amount          int64         `json:"amount,omitempty"`
	PersonIDs       []string      `json:"person_ids,omitempty"`
	GroupID         string        `json:"group_id,omitempty"`
	AccountID       string        `json:"account_id,omitempty"`
	DestAccountID   string        `json:"dest_account_id,omitempty"`
	OccurredAt      string        `json:"occurred_at,omitempty"`
	Note            string        `json:"note,omitempty"`
	ShopID          string        `json:"shop_id,omitempty"`
	CategoryID      string        `json:"category_id,omitempty"`
	SplitBill       bool          `json:"split_bill,omitempty"`
	SplitConfirmed  bool          `json:"split_confirmed,omitempty"`
	CashbackPercent *float64      `json:"cashback_percent,omitempty"`
	CashbackAmount  *int64        `json:"cashback_amount,omitempty"`
	CashbackMode    CashbackMode  `json:"cashback_mode,omitempty"`

	AccountCandidates []Candidate `json:"account_candidates,omitempty"`
	DestCandidates    []Candidate `json:"dest_candidates,omitempty"`
}

// Empty reports whether nothing has been captured yet.
func (d *Draft) Empty() bool {
	return d.Intent == "" && d.Amount == 0 && len(d.PersonIDs) == 0 &&
		d.GroupID == "" && d.AccountID == "" && d.OccurredAt == "" && d.Note == ""
}

// DeriveCashbackMode recomputes the cashback mode from the resolved source
// account crossed with the share fields. Must be re-run whenever the account
// or either share value changes.
func (d *Draft) DeriveCashbackMode(pctx *parser.ParseContext) {
	if d.CashbackPercent == nil && d.CashbackAmount == nil {
		d.CashbackMode = CashbackNone
		return
	}
	account := accountByID(pctx, d.AccountID)
	if account == nil || !account.Cashback {
		d.CashbackMode = CashbackVoluntary
		return
	}
	if d.CashbackPercent != nil {
		d.CashbackMode = CashbackRealPercent
		return
	}
	d.CashbackMode = CashbackRealFixed
}

// ToParsed maps the draft back to a provider-level result so a follow-up
// utterance can be parsed as a refinement of it.
func (d *Draft) ToParsed(pctx *parser.ParseContext) *parser.ParsedTransaction {
	out := &parser.ParsedTransaction{Intent: d.Intent, People: []string{}}
	if d.Amount > 0 {
		amount := d.Amount
		out.Amount = &amount
	}
	if d.Note != "" {
		note := d.Note
		out.Note = &note
	}
	if d.OccurredAt != "" {
		date := d.OccurredAt
		out.Date = &date
	}
	if name := accountName(pctx, d.AccountID); name != "" {
		out.Account = &name
	}
	if name := accountName(pctx, d.DestAccountID); name != "" {
		out.DebtAccount = &name
	}
	if name := personName(pctx, d.GroupID); name != "" {
		out.Group = &name
	}
	for _, id := range d.PersonIDs {
		if name := personName(pctx, id); name != "" {
			out.People = append(out.People, name)
		}
	}
	if name := categoryName(pctx, d.CategoryID); name != "" {
		out.Category = &name
	}
	if name := shopName(pctx, d.ShopID); name != "" {
		out.Shop = &name
	}
	if d.SplitConfirmed {
		split := d.SplitBill
		out.SplitBill = &split
	}
	out.CashbackPercent = d.CashbackPercent
	out.CashbackAmount = d.CashbackAmount
	return out
}

func accountByID(pctx *parser.ParseContext, id string) *parser.Account {
	if pctx == nil || id == "" {
		return nil
	}
	for i := range pctx.Accounts {
		if pctx.Accounts[i].ID == id {
			return &pctx.Accounts[i]
		}
	}
	return nil
}

func personByID(pctx *parser.ParseContext, id string) *parser.Person {
	if pctx == nil || id == "" {
		return nil
	}
	for i := range pctx.People {
		if pctx.People[i].ID == id {
			return &pctx.People[i]
		}
	}
	return nil
}

func accountName(pctx *parser.ParseContext, id string) string {
	if a := accountByID(pctx, id); a != nil {
		return a.Name
	}
	return ""
}

func personName(pctx *parser.ParseContext, id string) string {
	if p := personByID(pctx, id); p != nil {
		return p.Name
	}
	return ""
}

func categoryName(pctx *parser.ParseContext, id string) string {
	if pctx == nil {
		return ""
	}
	for _, c := range pctx.Categories {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

func shopName(pctx *parser.ParseContext, id string) string {
	if pctx == nil {
		return ""
	}
	for _, s := range pctx.Shops {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}
