package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"bot-chitieu/internal/parser"
)

// Parser is the slice of the failover router the wizard needs.
type Parser interface {
	Parse(ctx context.Context, text string, pctx *parser.ParseContext) *parser.Response
}

// Config carries the cashback defaulting rule. Recipient may be a person id
// or a name; Percent is a whole-number percentage.
type Config struct {
	CashbackRecipient string
	CashbackPercent   float64
}

// Wizard turns parse results and raw replies into a confirmed transaction
// draft over multiple turns. It holds no per-conversation state: given
// (text, state, context) it is a pure step function, safe to share across
// concurrent conversations.
type Wizard struct {
	parser Parser
	cfg    Config
	logger *slog.Logger
}

// New creates a wizard on top of a parse router.
func New(p Parser, cfg Config, logger *slog.Logger) *Wizard {
	return &Wizard{parser: p, cfg: cfg, logger: logger.With("component", "wizard")}
}

// Advance consumes one user turn and returns the reply lines plus the new
// state. The caller persists the state and sends the lines verbatim.
func (w *Wizard) Advance(ctx context.Context, text string, st State, pctx *parser.ParseContext) ([]string, State) {
	step := st.Step
	if step == "" {
		step = StepInput
	}
	d := st.Draft

	switch step {
	case StepInput:
		return w.advanceInput(ctx, text, d, pctx)
	case StepType:
		return w.advanceType(text, d, pctx)
	case StepAmount:
		return w.advanceAmount(text, d, pctx)
	case StepWho:
		return w.advanceWho(text, d, pctx)
	case StepAccount:
		return w.advanceAccount(text, d, pctx, false)
	case StepTransferDest:
		return w.advanceAccount(text, d, pctx, true)
	case StepSplitConfirm:
		return w.advanceSplit(text, d, pctx)
	case StepReview:
		// Confirmation is the caller's job; re-show the summary.
		return []string{RenderReview(&d, pctx)}, st
	default:
		return w.advanceInput(ctx, text, d, pctx)
	}
}

func (w *Wizard) advanceInput(ctx context.Context, text string, d Draft, pctx *parser.ParseContext) ([]string, State) {
	pc := *pctx
	if pc.Previous == nil && !d.Empty() {
		pc.Previous = d.ToParsed(pctx)
	}

	resp := w.parser.Parse(ctx, text, &pc)
	if resp == nil || !resp.Success || resp.Result == nil {
		// No draft could be extracted; fall through to asking the type.
		return []string{msgParseFailed, promptText(StepType, &d)}, State{Step: StepType, Draft: d}
	}

	w.merge(&d, resp.Result, pctx)

	var replies []string
	if resp.Result.Feedback != "" {
		replies = append(replies, resp.Result.Feedback)
	}
	return w.finish(replies, d, pctx)
}

func (w *Wizard) advanceType(text string, d Draft, pctx *parser.ParseContext) ([]string, State) {
	intent, ok := typeVocab[fold(text)]
	if !ok {
		return []string{msgInvalidType, promptText(StepType, &d)}, State{Step: StepType, Draft: d}
	}
	d.Intent = intent
	return w.finish(nil, d, pctx)
}

func (w *Wizard) advanceAmount(text string, d Draft, pctx *parser.ParseContext) ([]string, State) {
	amount, ok := parser.ParseAmount(text)
	if !ok || amount <= 0 {
		return []string{msgInvalidAmount, promptText(StepAmount, &d)}, State{Step: StepAmount, Draft: d}
	}
	d.Amount = amount
	return w.finish(nil, d, pctx)
}

func (w *Wizard) advanceWho(text string, d Draft, pctx *parser.ParseContext) ([]string, State) {
	tokens := splitPeople(text)
	if len(tokens) == 0 {
		return []string{promptText(StepWho, &d)}, State{Step: StepWho, Draft: d}
	}

	var personIDs []string
	groupID := ""
	for _, tok := range tokens {
		if p := FindByName(tok, personEntries(pctx)); p != nil {
			personIDs = appendID(personIDs, p.ID)
			continue
		}
		if g := FindByName(tok, groupEntries(pctx)); g != nil {
			groupID = g.ID
			continue
		}
		// Any unknown token rejects the whole reply; the draft stays as-is.
		reply := fmt.Sprintf("No match for %q.", tok)
		return []string{reply, promptText(StepWho, &d)}, State{Step: StepWho, Draft: d}
	}

	if groupID != "" {
		w.selectGroup(&d, groupID, pctx)
		for _, id := range personIDs {
			d.PersonIDs = appendID(d.PersonIDs, id)
		}
	} else {
		d.PersonIDs = personIDs
	}
	w.applyCashbackDefault(&d, pctx)
	d.DeriveCashbackMode(pctx)
	return w.finish(nil, d, pctx)
}

// advanceAccount runs the disambiguation protocol for the source account or,
// with dest set, the transfer destination.
func (w *Wizard) advanceAccount(text string, d Draft, pctx *parser.ParseContext, dest bool) ([]string, State) {
	step := StepAccount
	candidates := d.AccountCandidates
	if dest {
		step = StepTransferDest
		candidates = d.DestCandidates
	}

	if len(candidates) > 0 {
		if idx, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
			if idx < 1 || idx > len(candidates) {
				reply := fmt.Sprintf("Pick a number between 1 and %d.", len(candidates))
				return []string{reply, promptText(step, &d)}, State{Step: step, Draft: d}
			}
			return w.selectAccount(d, candidates[idx-1].ID, dest, pctx)
		}

		narrowed := Narrow(text, candidateEntries(candidates))
		switch len(narrowed) {
		case 0:
			setCandidates(&d, dest, nil)
			return []string{msgAccountMissing, promptText(step, &d)}, State{Step: step, Draft: d}
		case 1:
			setCandidates(&d, dest, nil)
			return w.selectAccount(d, narrowed[0].ID, dest, pctx)
		default:
			setCandidates(&d, dest, toCandidates(narrowed))
			return []string{promptText(step, &d)}, State{Step: step, Draft: d}
		}
	}

	match, found := Resolve(text, accountEntries(pctx))
	switch {
	case match != nil:
		return w.selectAccount(d, match.ID, dest, pctx)
	case len(found) > 0:
		setCandidates(&d, dest, toCandidates(found))
		return []string{promptText(step, &d)}, State{Step: step, Draft: d}
	default:
		return []string{msgAccountMissing, promptText(step, &d)}, State{Step: step, Draft: d}
	}
}

func (w *Wizard) selectAccount(d Draft, id string, dest bool, pctx *parser.ParseContext) ([]string, State) {
	if dest {
		if id == d.AccountID {
			return []string{msgSameAccount, promptText(StepTransferDest, &d)}, State{Step: StepTransferDest, Draft: d}
		}
		d.DestAccountID = id
		d.DestCandidates = nil
	} else {
		d.AccountID = id
		d.AccountCandidates = nil
		d.DeriveCashbackMode(pctx)
	}
	return w.finish(nil, d, pctx)
}

func (w *Wizard) advanceSplit(text string, d Draft, pctx *parser.ParseContext) ([]string, State) {
	answer, ok := parseYesNo(text)
	if !ok {
		return []string{msgInvalidYesNo, promptText(StepSplitConfirm, &d)}, State{Step: StepSplitConfirm, Draft: d}
	}

	if answer {
		d.SplitBill = true
		d.SplitConfirmed = true
		return w.finish(nil, d, pctx)
	}

	// Groups are structurally split; several people without a split make no
	// sense either, so funnel back to who to reduce to one person.
	if d.GroupID != "" {
		return []string{msgGroupMustSplit, promptText(StepSplitConfirm, &d)}, State{Step: StepSplitConfirm, Draft: d}
	}
	if len(d.PersonIDs) > 1 {
		d.PersonIDs = nil
		return []string{msgReduceToOne, promptText(StepWho, &d)}, State{Step: StepWho, Draft: d}
	}

	d.SplitBill = false
	d.SplitConfirmed = true
	return w.finish(nil, d, pctx)
}

// finish recomputes the next step and appends its prompt, or the review
// block when every slot is answered.
func (w *Wizard) finish(replies []string, d Draft, pctx *parser.ParseContext) ([]string, State) {
	next := NextStep(&d)
	if next == StepReview {
		replies = append(replies, RenderReview(&d, pctx))
	} else {
		replies = append(replies, promptText(next, &d))
	}
	return replies, State{Step: next, Draft: d}
}

// merge folds a parse result into the draft, resolving soft name references
// against the directory. Ambiguous account references seed candidate lists
// instead of guessing.
func (w *Wizard) merge(d *Draft, r *parser.ParsedTransaction, pctx *parser.ParseContext) {
	if r.Intent != "" {
		d.Intent = r.Intent
	}
	if r.Amount != nil && *r.Amount > 0 {
		d.Amount = *r.Amount
	}
	if r.Note != nil {
		d.Note = *r.Note
	}
	if r.Date != nil {
		d.OccurredAt = *r.Date
	} else if d.OccurredAt == "" && pctx != nil && !pctx.Now.IsZero() {
		d.OccurredAt = pctx.Now.Format("2006-01-02")
	}

	if r.Account != nil {
		if match, cands := Resolve(*r.Account, accountEntries(pctx)); match != nil {
			d.AccountID = match.ID
			d.AccountCandidates = nil
		} else if len(cands) > 0 {
			d.AccountCandidates = toCandidates(cands)
		}
	}
	if r.DebtAccount != nil && d.Intent == parser.IntentTransfer {
		if match, cands := Resolve(*r.DebtAccount, accountEntries(pctx)); match != nil {
			if match.ID != d.AccountID {
				d.DestAccountID = match.ID
				d.DestCandidates = nil
			}
		} else if len(cands) > 0 {
			d.DestCandidates = toCandidates(cands)
		}
	}

	if r.Group != nil {
		if g := FindByName(*r.Group, groupEntries(pctx)); g != nil {
			w.selectGroup(d, g.ID, pctx)
		}
	}
	for _, name := range r.People {
		if p := FindByName(name, personEntries(pctx)); p != nil {
			d.PersonIDs = appendID(d.PersonIDs, p.ID)
			continue
		}
		if d.GroupID == "" {
			if g := FindByName(name, groupEntries(pctx)); g != nil {
				w.selectGroup(d, g.ID, pctx)
			}
		}
	}

	if r.SplitBill != nil && !d.SplitConfirmed {
		d.SplitBill = *r.SplitBill
	}
	if r.Shop != nil {
		if s := FindByName(*r.Shop, shopEntries(pctx)); s != nil {
			d.ShopID = s.ID
		}
	}
	if r.Category != nil {
		if c := FindByName(*r.Category, categoryEntries(pctx)); c != nil {
			d.CategoryID = c.ID
		}
	}
	if r.CashbackPercent != nil {
		d.CashbackPercent = r.CashbackPercent
	}
	if r.CashbackAmount != nil {
		d.CashbackAmount = r.CashbackAmount
	}

	w.applyCashbackDefault(d, pctx)
	d.DeriveCashbackMode(pctx)
}

// selectGroup expands a group to member ids and locks the split flags. The
// owner joins the list on a lend (they paid their own share too) and leaves
// it on a repay (you do not repay yourself).
func (w *Wizard) selectGroup(d *Draft, groupID string, pctx *parser.ParseContext) {
	d.GroupID = groupID

	var members []string
	ownerID := ""
	for _, p := range pctx.People {
		if p.IsOwner {
			ownerID = p.ID
		}
		if !p.IsGroup && p.GroupID == groupID {
			members = appendID(members, p.ID)
		}
	}
	if ownerID != "" {
		switch d.Intent {
		case parser.IntentLend:
			members = appendID(members, ownerID)
		case parser.IntentRepay:
			members = removeID(members, ownerID)
		}
	}

	d.PersonIDs = members
	d.SplitBill = true
	d.SplitConfirmed = true
}

func (w *Wizard) applyCashbackDefault(d *Draft, pctx *parser.ParseContext) {
	if d.CashbackPercent != nil || d.CashbackAmount != nil {
		return
	}
	if w.cfg.CashbackRecipient == "" || w.cfg.CashbackPercent <= 0 {
		return
	}
	target := fold(w.cfg.CashbackRecipient)
	for _, id := range d.PersonIDs {
		p := personByID(pctx, id)
		if p == nil {
			continue
		}
		if id == w.cfg.CashbackRecipient || fold(p.Name) == target || strings.Contains(fold(p.Name), target) {
			pct := w.cfg.CashbackPercent
			d.CashbackPercent = &pct
			return
		}
	}
}

var typeVocab = map[string]parser.Intent{
	"expense":      parser.IntentExpense,
	"chi":          parser.IntentExpense,
	"chi tieu":     parser.IntentExpense,
	"tieu":         parser.IntentExpense,
	"mua":          parser.IntentExpense,
	"income":       parser.IntentIncome,
	"thu":          parser.IntentIncome,
	"thu nhap":     parser.IntentIncome,
	"luong":        parser.IntentIncome,
	"transfer":     parser.IntentTransfer,
	"chuyen":       parser.IntentTransfer,
	"chuyen khoan": parser.IntentTransfer,
	"lend":         parser.IntentLend,
	"cho vay":      parser.IntentLend,
	"vay":          parser.IntentLend,
	"cho muon":     parser.IntentLend,
	"repay":        parser.IntentRepay,
	"tra no":       parser.IntentRepay,
	"tra":          parser.IntentRepay,
	"tra lai":      parser.IntentRepay,
}

var yesTokens = map[string]bool{
	"yes": true, "y": true, "co": true, "ok": true, "oke": true,
	"dung": true, "u": true, "uh": true,
}

var noTokens = map[string]bool{
	"no": true, "n": true, "khong": true, "ko": true, "k": true,
}

// ParseConfirm interprets a review-step reply. ok is false when the text is
// neither a yes nor a no.
func ParseConfirm(text string) (answer, ok bool) {
	return parseYesNo(text)
}

func parseYesNo(text string) (answer, ok bool) {
	t := fold(text)
	if yesTokens[t] {
		return true, true
	}
	if noTokens[t] {
		return false, true
	}
	return false, false
}

var peopleSeparators = strings.NewReplacer(" và ", ",", " and ", ",", ";", ",")

func splitPeople(text string) []string {
	parts := strings.Split(peopleSeparators.Replace(text), ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func appendID(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

func removeID(list []string, id string) []string {
	var out []string
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func setCandidates(d *Draft, dest bool, candidates []Candidate) {
	if dest {
		d.DestCandidates = candidates
	} else {
		d.AccountCandidates = candidates
	}
}

func toCandidates(entries []Entry) []Candidate {
	out := make([]Candidate, len(entries))
	for i, e := range entries {
		out[i] = Candidate{ID: e.ID, Name: e.Name}
	}
	return out
}

func candidateEntries(candidates []Candidate) []Entry {
	out := make([]Entry, len(candidates))
	for i, c := range candidates {
		out[i] = Entry{ID: c.ID, Name: c.Name}
	}
	return out
}

func accountEntries(pctx *parser.ParseContext) []Entry {
	if pctx == nil {
		return nil
	}
	out := make([]Entry, len(pctx.Accounts))
	for i, a := range pctx.Accounts {
		out[i] = Entry{ID: a.ID, Name: a.Name}
	}
	return out
}

func personEntries(pctx *parser.ParseContext) []Entry {
	if pctx == nil {
		return nil
	}
	var out []Entry
	for _, p := range pctx.People {
		if !p.IsGroup {
			out = append(out, Entry{ID: p.ID, Name: p.Name})
		}
	}
	return out
}

func groupEntries(pctx *parser.ParseContext) []Entry {
	if pctx == nil {
		return nil
	}
	var out []Entry
	for _, p := range pctx.People {
		if p.IsGroup {
			out = append(out, Entry{ID: p.ID, Name: p.Name})
		}
	}
	return out
}

func shopEntries(pctx *parser.ParseContext) []Entry {
	if pctx == nil {
		return nil
	}
	out := make([]Entry, len(pctx.Shops))
	for i, s := range pctx.Shops {
		out[i] = Entry{ID: s.ID, Name: s.Name}
	}
	return out
}

func categoryEntries(pctx *parser.ParseContext) []Entry {
	if pctx == nil {
		return nil
	}
	out := make([]Entry, len(pctx.Categories))
	for i, c := range pctx.Categories {
		out[i] = Entry{ID: c.ID, Name: c.Name}
	}
	return out
}
