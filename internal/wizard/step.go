package wizard

import "bot-chitieu/internal/parser"

// Step is one node of the wizard state machine.
type Step string

const (
	StepInput        Step = "input"
	StepType         Step = "type"
	StepAmount       Step = "amount"
	StepWho          Step = "who"
	StepAccount      Step = "account"
	StepTransferDest Step = "transfer_destination"
	StepSplitConfirm Step = "split_confirm"
	StepReview       Step = "review"
)

// State is the only thing persisted between turns. It round-trips through
// the caller's session store as JSON.
type State struct {
	Step  Step  `json:"step"`
	Draft Draft `json:"draft"`
}

// NextStep picks the next unanswered slot. The priority order is fixed and
// load-bearing: it asks the minimum number of questions and never asks for a
// slot a later rule would overwrite.
func NextStep(d *Draft) Step {
	switch {
	case d.Intent == "":
		return StepType
	case d.Amount <= 0:
		return StepAmount
	case needsWho(d):
		return StepWho
	case d.AccountID == "":
		return StepAccount
	case d.Intent == parser.IntentTransfer && d.DestAccountID == "":
		return StepTransferDest
	case isDebtIntent(d.Intent) && !d.SplitConfirmed:
		return StepSplitConfirm
	default:
		return StepReview
	}
}

func needsWho(d *Draft) bool {
	return isDebtIntent(d.Intent) && d.GroupID == "" && len(d.PersonIDs) == 0
}

func isDebtIntent(intent parser.Intent) bool {
	return intent == parser.IntentLend || intent == parser.IntentRepay
}
