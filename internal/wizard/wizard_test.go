package wizard

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bot-chitieu/internal/parser"
)

type stubParser struct {
	resp *parser.Response
	last *parser.ParseContext
}

func (s *stubParser) Parse(_ context.Context, _ string, pctx *parser.ParseContext) *parser.Response {
	s.last = pctx
	return s.resp
}

func fixtureContext() *parser.ParseContext {
	return &parser.ParseContext{
		Accounts: []parser.Account{
			{ID: "a1", Name: "Tiền mặt"},
			{ID: "a2", Name: "VIB Bank"},
			{ID: "a3", Name: "VIB Visa", Cashback: true},
		},
		People: []parser.Person{
			{ID: "me", Name: "Tôi", IsOwner: true},
			{ID: "p1", Name: "Minh", GroupID: "g1"},
			{ID: "p2", Name: "Lan", GroupID: "g1"},
			{ID: "p3", Name: "Tuấn"},
			{ID: "g1", Name: "Nhóm đá bóng", IsGroup: true},
		},
		Shops:      []parser.Shop{{ID: "s1", Name: "Highlands"}},
		Categories: []parser.Category{{ID: "c1", Name: "Ăn uống"}},
		Now:        time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC),
	}
}

func newTestWizard(p Parser) *Wizard {
	return New(p, Config{}, slog.Default())
}

func TestNextStepPriority(t *testing.T) {
	d := &Draft{Intent: parser.IntentLend, Amount: 100000}
	assert.Equal(t, StepWho, NextStep(d), "who outranks account even when an account was mentioned")

	d.PersonIDs = []string{"p1"}
	assert.Equal(t, StepAccount, NextStep(d))

	d.AccountID = "a1"
	assert.Equal(t, StepSplitConfirm, NextStep(d))

	d.SplitConfirmed = true
	assert.Equal(t, StepReview, NextStep(d))
}

func TestNextStepTransfer(t *testing.T) {
	d := &Draft{Intent: parser.IntentTransfer, Amount: 500000, AccountID: "a1"}
	assert.Equal(t, StepTransferDest, NextStep(d))
	d.DestAccountID = "a2"
	assert.Equal(t, StepReview, NextStep(d))
}

func TestAdvanceTypeValidation(t *testing.T) {
	w := newTestWizard(&stubParser{})
	pctx := fixtureContext()

	replies, st := w.Advance(context.Background(), "gì đó", State{Step: StepType}, pctx)
	assert.Equal(t, StepType, st.Step, "invalid type re-prompts the same step")
	require.Len(t, replies, 2)
	assert.Equal(t, msgInvalidType, replies[0])

	replies, st = w.Advance(context.Background(), "chi", State{Step: StepType}, pctx)
	assert.Equal(t, StepAmount, st.Step)
	assert.Equal(t, []string{"Amount?"}, replies)
	assert.Equal(t, parser.IntentExpense, st.Draft.Intent)
}

func TestAdvanceAmountValidation(t *testing.T) {
	w := newTestWizard(&stubParser{})
	pctx := fixtureContext()
	st := State{Step: StepAmount, Draft: Draft{Intent: parser.IntentExpense}}

	replies, out := w.Advance(context.Background(), "nhiều lắm", st, pctx)
	assert.Equal(t, StepAmount, out.Step)
	assert.Equal(t, msgInvalidAmount, replies[0])
	assert.Zero(t, out.Draft.Amount)

	_, out = w.Advance(context.Background(), "50k", st, pctx)
	assert.Equal(t, int64(50000), out.Draft.Amount)
	assert.Equal(t, StepAccount, out.Step)
}

func TestAccountDisambiguation(t *testing.T) {
	w := newTestWizard(&stubParser{})
	pctx := fixtureContext()
	st := State{Step: StepAccount, Draft: Draft{Intent: parser.IntentExpense, Amount: 50000, OccurredAt: "2024-05-20"}}

	replies, out := w.Advance(context.Background(), "vib", st, pctx)
	assert.Equal(t, StepAccount, out.Step)
	require.Len(t, out.Draft.AccountCandidates, 2)
	assert.Equal(t, []string{"Account? 1. VIB Bank | 2. VIB Visa"}, replies)

	// A 1-based index picks from the list.
	_, picked := w.Advance(context.Background(), "2", out, pctx)
	assert.Equal(t, "a3", picked.Draft.AccountID)
	assert.Empty(t, picked.Draft.AccountCandidates)
	assert.Equal(t, StepReview, picked.Step)

	// A narrowing query that collapses to one candidate auto-selects.
	_, narrowed := w.Advance(context.Background(), "visa", out, pctx)
	assert.Equal(t, "a3", narrowed.Draft.AccountID)
	assert.Equal(t, StepReview, narrowed.Step)

	// Zero matches clear the list and report not found.
	replies, cleared := w.Advance(context.Background(), "momo", out, pctx)
	assert.Equal(t, msgAccountMissing, replies[0])
	assert.Empty(t, cleared.Draft.AccountCandidates)
	assert.Equal(t, StepAccount, cleared.Step)
}

func TestTransferDestinationRejectsSource(t *testing.T) {
	w := newTestWizard(&stubParser{})
	pctx := fixtureContext()
	st := State{Step: StepTransferDest, Draft: Draft{
		Intent: parser.IntentTransfer, Amount: 500000, AccountID: "a1", OccurredAt: "2024-05-20",
	}}

	replies, out := w.Advance(context.Background(), "tiền mặt", st, pctx)
	assert.Equal(t, msgSameAccount, replies[0])
	assert.Equal(t, StepTransferDest, out.Step)
	assert.Empty(t, out.Draft.DestAccountID)

	_, out = w.Advance(context.Background(), "vib bank", st, pctx)
	assert.Equal(t, "a2", out.Draft.DestAccountID)
	assert.Equal(t, StepReview, out.Step)
}

func TestWhoGroupExpansionForcesSplit(t *testing.T) {
	w := newTestWizard(&stubParser{})
	pctx := fixtureContext()
	st := State{Step: StepWho, Draft: Draft{Intent: parser.IntentLend, Amount: 300000}}

	_, out := w.Advance(context.Background(), "nhóm đá bóng", st, pctx)
	d := out.Draft
	assert.Equal(t, "g1", d.GroupID)
	assert.True(t, d.SplitBill)
	assert.True(t, d.SplitConfirmed, "group selection is an authoritative split signal")
	// Lend adds the owner's own share to the member list.
	assert.ElementsMatch(t, []string{"p1", "p2", "me"}, d.PersonIDs)
	assert.Equal(t, StepAccount, out.Step)
}

func TestWhoGroupRepayExcludesOwner(t *testing.T) {
	w := newTestWizard(&stubParser{})
	pctx := fixtureContext()
	st := State{Step: StepWho, Draft: Draft{Intent: parser.IntentRepay, Amount: 300000}}

	_, out := w.Advance(context.Background(), "nhóm đá bóng", st, pctx)
	assert.ElementsMatch(t, []string{"p1", "p2"}, out.Draft.PersonIDs)
}

func TestWhoUnknownNameDoesNotMutate(t *testing.T) {
	w := newTestWizard(&stubParser{})
	pctx := fixtureContext()
	st := State{Step: StepWho, Draft: Draft{Intent: parser.IntentLend, Amount: 100000}}

	replies, out := w.Advance(context.Background(), "Minh và người lạ", st, pctx)
	assert.Equal(t, StepWho, out.Step)
	assert.Empty(t, out.Draft.PersonIDs)
	assert.Contains(t, replies[0], "người lạ")
}

func TestSplitConfirmRules(t *testing.T) {
	w := newTestWizard(&stubParser{})
	pctx := fixtureContext()

	// "no" with a group selected is rejected outright.
	st := State{Step: StepSplitConfirm, Draft: Draft{
		Intent: parser.IntentLend, Amount: 100000, AccountID: "a1",
		GroupID: "g1", PersonIDs: []string{"p1", "p2"}, SplitBill: true,
	}}
	replies, out := w.Advance(context.Background(), "no", st, pctx)
	assert.Equal(t, msgGroupMustSplit, replies[0])
	assert.Equal(t, StepSplitConfirm, out.Step)

	// "no" with several people funnels back to who.
	st.Draft.GroupID = ""
	replies, out = w.Advance(context.Background(), "không", st, pctx)
	assert.Equal(t, msgReduceToOne, replies[0])
	assert.Equal(t, StepWho, out.Step)
	assert.Empty(t, out.Draft.PersonIDs)

	// "yes" confirms and moves on.
	st.Draft.GroupID = "g1"
	_, out = w.Advance(context.Background(), "có", st, pctx)
	assert.True(t, out.Draft.SplitBill)
	assert.True(t, out.Draft.SplitConfirmed)
	assert.Equal(t, StepReview, out.Step)
}

func TestInputMergeResolvesEntities(t *testing.T) {
	amount := int64(200000)
	note := "cho vay"
	account := "tiền mặt"
	stub := &stubParser{resp: &parser.Response{
		Success: true,
		Result: &parser.ParsedTransaction{
			Intent:  parser.IntentLend,
			Amount:  &amount,
			Note:    &note,
			Account: &account,
			People:  []string{"minh"},
		},
		Meta: parser.Metadata{Provider: "stub"},
	}}
	w := newTestWizard(stub)
	pctx := fixtureContext()

	_, out := w.Advance(context.Background(), "cho Minh vay 200k tiền mặt", State{}, pctx)
	d := out.Draft
	assert.Equal(t, parser.IntentLend, d.Intent)
	assert.Equal(t, int64(200000), d.Amount)
	assert.Equal(t, "a1", d.AccountID)
	assert.Equal(t, []string{"p1"}, d.PersonIDs)
	assert.Equal(t, "2024-05-20", d.OccurredAt, "date defaults to the context clock")
	assert.Equal(t, StepSplitConfirm, out.Step)
}

func TestInputParseFailureFallsThroughToType(t *testing.T) {
	stub := &stubParser{resp: &parser.Response{Success: false, Error: "exhausted"}}
	w := newTestWizard(stub)

	replies, out := w.Advance(context.Background(), "gì đó", State{}, fixtureContext())
	assert.Equal(t, StepType, out.Step)
	require.Len(t, replies, 2)
	assert.Equal(t, msgParseFailed, replies[0])
}

func TestInputPassesPreviousForRefinement(t *testing.T) {
	stub := &stubParser{resp: &parser.Response{
		Success: true,
		Result:  &parser.ParsedTransaction{Intent: parser.IntentExpense, People: []string{}},
	}}
	w := newTestWizard(stub)
	pctx := fixtureContext()
	st := State{Step: StepInput, Draft: Draft{Intent: parser.IntentExpense, Amount: 50000}}

	w.Advance(context.Background(), "sửa lại thành hôm qua", st, pctx)
	require.NotNil(t, stub.last)
	require.NotNil(t, stub.last.Previous, "a non-empty draft rides along as previous data")
	require.NotNil(t, stub.last.Previous.Amount)
	assert.Equal(t, int64(50000), *stub.last.Previous.Amount)
}

func TestCashbackDefaultAndModeDerivation(t *testing.T) {
	w := New(&stubParser{}, Config{CashbackRecipient: "p1", CashbackPercent: 3}, slog.Default())
	pctx := fixtureContext()
	st := State{Step: StepWho, Draft: Draft{Intent: parser.IntentLend, Amount: 100000}}

	_, out := w.Advance(context.Background(), "Minh", st, pctx)
	d := out.Draft
	require.NotNil(t, d.CashbackPercent)
	assert.Equal(t, float64(3), *d.CashbackPercent)
	// No account picked yet, so the share cannot be a real one.
	assert.Equal(t, CashbackVoluntary, d.CashbackMode)

	// Choosing a cashback-eligible account upgrades the mode.
	_, out = w.Advance(context.Background(), "vib visa", State{Step: StepAccount, Draft: d}, pctx)
	assert.Equal(t, CashbackRealPercent, out.Draft.CashbackMode)

	// A cashback-ineligible account downgrades it back.
	_, out = w.Advance(context.Background(), "tiền mặt", State{Step: StepAccount, Draft: d}, pctx)
	assert.Equal(t, CashbackVoluntary, out.Draft.CashbackMode)
}

func TestEndToEndLunchScenario(t *testing.T) {
	// The deterministic fallback is a real Parser; wire it straight in.
	w := newTestWizard(parser.NewFallback())
	pctx := fixtureContext()
	pctx.Accounts = []parser.Account{{ID: "a1", Name: "Tiền mặt"}}

	replies, st := w.Advance(context.Background(), "Ăn trưa 50k", State{}, pctx)
	require.Equal(t, StepAccount, st.Step, "who is skipped for an expense")
	assert.Equal(t, int64(50000), st.Draft.Amount)
	assert.Equal(t, parser.IntentExpense, st.Draft.Intent)
	assert.NotEmpty(t, replies)

	replies, st = w.Advance(context.Background(), "tiền mặt", st, pctx)
	require.Equal(t, StepReview, st.Step)
	assert.Equal(t, "a1", st.Draft.AccountID)

	review := replies[len(replies)-1]
	assert.Contains(t, review, "Review:")
	assert.Contains(t, review, "- Type: expense")
	assert.Contains(t, review, "- Amount: 50000")
	assert.Contains(t, review, "- Account: Tiền mặt")
	assert.Contains(t, review, "Reply yes to confirm, or no to edit.")
}

func TestReviewRenderingProtocol(t *testing.T) {
	pct := 3.0
	d := &Draft{
		Intent:          parser.IntentLend,
		Amount:          100000,
		AccountID:       "a3",
		PersonIDs:       []string{"p1", "p2"},
		OccurredAt:      "2024-05-20",
		Note:            "đá bóng",
		SplitBill:       true,
		SplitConfirmed:  true,
		CashbackPercent: &pct,
	}
	got := RenderReview(d, fixtureContext())
	want := "Review:\n" +
		"- Type: lend\n" +
		"- Amount: 100000\n" +
		"- Account: VIB Visa\n" +
		"- Who: Minh, Lan\n" +
		"- Date: 2024-05-20\n" +
		"- Note: đá bóng\n" +
		"- Shop: N/A\n" +
		"- Back: 3%\n" +
		"- Split bill: On\n" +
		"Reply yes to confirm, or no to edit."
	assert.Equal(t, want, got)
}

func TestReviewTransferFromTo(t *testing.T) {
	d := &Draft{
		Intent:        parser.IntentTransfer,
		Amount:        500000,
		AccountID:     "a1",
		DestAccountID: "a2",
		OccurredAt:    "2024-05-20",
	}
	got := RenderReview(d, fixtureContext())
	assert.Contains(t, got, "- From: Tiền mặt\n- To: VIB Bank\n")
	assert.Contains(t, got, "- Split bill: N/A\n")
	assert.NotContains(t, got, "- Who:")
	assert.NotContains(t, got, "- Back:")
}
