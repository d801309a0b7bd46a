package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"bot-chitieu/internal/parser"
)

// Scripted lines. The review block and the step prompts are a fixed protocol
// relied on by chat clients and fixtures; change them deliberately.
const (
	msgParseFailed    = "Sorry, I couldn't understand that. Let's build it step by step."
	msgInvalidType    = "Please pick one of: expense, income, transfer, lend, repay."
	msgInvalidAmount  = "I couldn't read an amount. Try \"50k\" or \"50000\"."
	msgAccountMissing = "No matching account found."
	msgSameAccount    = "Destination must be different from the source account."
	msgGroupMustSplit = "A group bill is always split."
	msgReduceToOne    = "A bill with several people has to be split. Tell me just one person instead."
	msgInvalidYesNo   = "Please answer yes or no."
	msgConfirmHint    = "Reply yes to confirm, or no to edit."
)

// promptText returns the canonical one-sentence prompt for a step, with the
// numbered candidate list appended while disambiguating.
func promptText(step Step, d *Draft) string {
	switch step {
	case StepType:
		return "Type? (expense/income/transfer/lend/repay)"
	case StepAmount:
		return "Amount?"
	case StepWho:
		return "Who?"
	case StepAccount:
		return withCandidates("Account?", d.AccountCandidates)
	case StepTransferDest:
		return withCandidates("To account?", d.DestCandidates)
	case StepSplitConfirm:
		return "Split bill? (yes/no)"
	default:
		return ""
	}
}

func withCandidates(prompt string, candidates []Candidate) string {
	if len(candidates) == 0 {
		return prompt
	}
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = fmt.Sprintf("%d. %s", i+1, c.Name)
	}
	return prompt + " " + strings.Join(parts, " | ")
}

// RenderReview produces the deterministic summary block shown at the review
// step. It never mutates the draft.
func RenderReview(d *Draft, pctx *parser.ParseContext) string {
	var sb strings.Builder
	sb.WriteString("Review:\n")
	sb.WriteString("- Type: " + string(d.Intent) + "\n")
	sb.WriteString("- Amount: " + strconv.FormatInt(d.Amount, 10) + "\n")

	if d.Intent == parser.IntentTransfer {
		sb.WriteString("- From: " + orNA(accountName(pctx, d.AccountID)) + "\n")
		sb.WriteString("- To: " + orNA(accountName(pctx, d.DestAccountID)) + "\n")
	} else {
		sb.WriteString("- Account: " + orNA(accountName(pctx, d.AccountID)) + "\n")
	}

	if isDebtIntent(d.Intent) {
		sb.WriteString("- Who: " + orNA(joinPeople(d, pctx)) + "\n")
	}

	sb.WriteString("- Date: " + orNA(d.OccurredAt) + "\n")
	sb.WriteString("- Note: " + orNA(d.Note) + "\n")
	sb.WriteString("- Shop: " + orNA(shopName(pctx, d.ShopID)) + "\n")

	if d.CashbackPercent != nil {
		sb.WriteString("- Back: " + trimFloat(*d.CashbackPercent) + "%\n")
	} else if d.CashbackAmount != nil {
		sb.WriteString("- Back: " + strconv.FormatInt(*d.CashbackAmount, 10) + "\n")
	}

	sb.WriteString("- Split bill: " + splitLabel(d) + "\n")
	sb.WriteString(msgConfirmHint)
	return sb.String()
}

func joinPeople(d *Draft, pctx *parser.ParseContext) string {
	names := make([]string, 0, len(d.PersonIDs))
	for _, id := range d.PersonIDs {
		if name := personName(pctx, id); name != "" {
			names = append(names, name)
		} else {
			names = append(names, id)
		}
	}
	return strings.Join(names, ", ")
}

func splitLabel(d *Draft) string {
	if !isDebtIntent(d.Intent) {
		return "N/A"
	}
	if d.SplitBill {
		return "On"
	}
	return "Off"
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
