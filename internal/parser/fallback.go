package parser

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FallbackProvider is the deterministic last-resort adapter. It has no
// external dependency, is always available, and never fails, which is what
// lets the router guarantee forward progress.
type FallbackProvider struct{}

// NewFallback creates the rule-based adapter.
func NewFallback() *FallbackProvider { return &FallbackProvider{} }

func (f *FallbackProvider) Name() string { return "fallback" }

func (f *FallbackProvider) Available() bool { return true }

var refinementCues = []string{
	"sửa", "đổi", "thay", "cập nhật", "không phải", "sai rồi", "nhầm", "à không",
}

var (
	suffixAmountRe  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*k\b`)
	groupedAmountRe = regexp.MustCompile(`\d{1,3}(?:[.,]\d{3})+`)
	plainAmountRe   = regexp.MustCompile(`\d+`)
)

// ParseAmount extracts a VND amount from free text. A "k" suffix multiplies
// by 1000; grouped digits ("50,000", "50.000") are collapsed; a bare number
// is passed through unchanged - the contextual x1000 guess for daily
// expenses is left to the LLM layer on purpose.
func ParseAmount(text string) (int64, bool) {
	if m := suffixAmountRe.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil && v > 0 {
			return int64(v * 1000), true
		}
	}
	if m := groupedAmountRe.FindString(text); m != "" {
		digits := strings.NewReplacer(".", "", ",", "").Replace(m)
		v, err := strconv.ParseInt(digits, 10, 64)
		if err == nil && v > 0 {
			return v, true
		}
	}
	if m := plainAmountRe.FindString(text); m != "" {
		v, err := strconv.ParseInt(m, 10, 64)
		if err == nil && v > 0 {
			return v, true
		}
	}
	return 0, false
}

// Parse applies keyword and regex heuristics. On refinement turns it starts
// from the previous result and only overrides what the utterance mentions.
func (f *FallbackProvider) Parse(_ context.Context, text string, pctx *ParseContext) *Response {
	start := time.Now()
	lower := strings.ToLower(strings.TrimSpace(text))
	refining := f.isRefinement(lower, pctx)

	result := &ParsedTransaction{Intent: IntentExpense, People: []string{}}
	if refining && pctx.Previous != nil {
		prev := *pctx.Previous
		result = &prev
		if result.People == nil {
			result.People = []string{}
		}
	}

	if amount, ok := ParseAmount(lower); ok {
		result.Amount = &amount
	}

	if intent, ok := detectIntent(lower); ok {
		result.Intent = intent
	} else if !refining {
		result.Intent = IntentExpense
	}

	if date, ok := relativeDate(lower, contextNow(pctx)); ok {
		result.Date = &date
	} else if !refining {
		now := contextNow(pctx).Format("2006-01-02")
		result.Date = &now
	}

	if !refining && strings.TrimSpace(text) != "" {
		note := strings.TrimSpace(text)
		result.Note = &note
	}

	if pctx != nil {
		if name := matchAccountKeyword(lower, pctx.Accounts); name != "" {
			result.Account = &name
		}
		if name := matchCategory(lower, pctx.Categories); name != "" && result.Category == nil {
			result.Category = &name
		}

		// Viewing a person's detail page implies the transaction concerns
		// them; a bare expense there is really a lend. Deliberately skipped
		// on refinement turns.
		if pctx.ContextPersonID != "" && !refining {
			if p := personByID(pctx.People, pctx.ContextPersonID); p != nil {
				result.People = appendUnique(result.People, p.Name)
				if result.Intent == IntentExpense {
					result.Intent = IntentLend
				}
			}
		}
	}

	result.Feedback = "Mình đọc nhanh bằng bộ quy tắc (độ tin cậy thấp), bạn kiểm tra lại giúp nhé."

	return &Response{
		Success: true,
		Result:  result,
		Meta: Metadata{
			Provider: f.Name(),
			Model:    "rules",
			Latency:  time.Since(start),
		},
	}
}

func (f *FallbackProvider) isRefinement(lower string, pctx *ParseContext) bool {
	if pctx == nil || pctx.Previous == nil {
		return false
	}
	for _, cue := range refinementCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return len([]rune(lower)) < 30
}

var intentCues = []struct {
	intent Intent
	cues   []string
}{
	{IntentLend, []string{"cho vay", "cho mượn", "ứng trước"}},
	{IntentRepay, []string{"trả nợ", "trả lại", "hoàn nợ", "trả tiền"}},
	{IntentTransfer, []string{"chuyển khoản", "chuyển tiền", "chuyển sang", "chuyển qua"}},
	{IntentIncome, []string{"thu nhập", "lương", "nhận tiền", "tiền về"}},
}

func detectIntent(lower string) (Intent, bool) {
	for _, group := range intentCues {
		for _, cue := range group.cues {
			if strings.Contains(lower, cue) {
				return group.intent, true
			}
		}
	}
	return IntentExpense, false
}

func relativeDate(lower string, now time.Time) (string, bool) {
	switch {
	case strings.Contains(lower, "hôm kia"):
		return now.AddDate(0, 0, -2).Format("2006-01-02"), true
	case strings.Contains(lower, "hôm qua"):
		return now.AddDate(0, 0, -1).Format("2006-01-02"), true
	}
	return "", false
}

var accountCues = []string{
	"tiền mặt", "ví", "momo", "zalopay", "vcb", "vietcombank", "tcb",
	"techcombank", "vib", "acb", "visa", "thẻ", "bank", "atm",
}

func matchAccountKeyword(lower string, accounts []Account) string {
	for _, cue := range accountCues {
		if !strings.Contains(lower, cue) {
			continue
		}
		for _, a := range accounts {
			name := strings.ToLower(a.Name)
			if strings.Contains(name, cue) || strings.Contains(lower, name) {
				return a.Name
			}
		}
	}
	return ""
}

var categoryCues = []string{
	"ăn", "uống", "cà phê", "xăng", "đi chợ", "siêu thị", "mua sắm",
	"điện", "nước", "nhà", "xe", "thuốc", "học",
}

func matchCategory(lower string, categories []Category) string {
	for _, c := range categories {
		if name := strings.ToLower(c.Name); name != "" && strings.Contains(lower, name) {
			return c.Name
		}
	}
	for _, cue := range categoryCues {
		if !strings.Contains(lower, cue) {
			continue
		}
		for _, c := range categories {
			if strings.Contains(strings.ToLower(c.Name), cue) {
				return c.Name
			}
		}
	}
	return ""
}

func personByID(people []Person, id string) *Person {
	for i := range people {
		if people[i].ID == id {
			return &people[i]
		}
	}
	return nil
}

func appendUnique(list []string, val string) []string {
	for _, v := range list {
		if strings.EqualFold(v, val) {
			return list
		}
	}
	return append(list, val)
}

func contextNow(pctx *ParseContext) time.Time {
	if pctx != nil && !pctx.Now.IsZero() {
		return pctx.Now
	}
	return time.Now()
}
