package parser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"50k", 50000, true},
		{"1.5k", 1500, true},
		{"1,5k", 1500, true},
		{"50,000", 50000, true},
		{"50.000", 50000, true},
		{"ăn trưa 50k", 50000, true},
		{"2.500.000", 2500000, true},
		// Bare numbers pass through untouched; the x1000 guess is the
		// LLM layer's call, not ours.
		{"50", 50, true},
		{"không có số", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func testContext(now time.Time) *ParseContext {
	return &ParseContext{
		Accounts: []Account{
			{ID: "a1", Name: "Tiền mặt"},
			{ID: "a2", Name: "VCB", Cashback: true},
		},
		People: []Person{
			{ID: "p1", Name: "Minh"},
			{ID: "p2", Name: "Lan"},
		},
		Categories: []Category{{ID: "c1", Name: "ăn uống"}},
		Now:        now,
	}
}

func TestFallbackNeverFails(t *testing.T) {
	f := NewFallback()
	for _, in := range []string{"", "   ", "hoàn toàn vô nghĩa", "Ăn trưa 50k"} {
		resp := f.Parse(context.Background(), in, testContext(time.Now()))
		require.True(t, resp.Success, "input %q", in)
		require.NotNil(t, resp.Result, "input %q", in)
		assert.Equal(t, "fallback", resp.Meta.Provider)
		assert.NotEmpty(t, resp.Result.Feedback)
	}
}

func TestFallbackBasicExpense(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	resp := NewFallback().Parse(context.Background(), "Ăn trưa 50k tiền mặt", testContext(now))

	require.True(t, resp.Success)
	r := resp.Result
	assert.Equal(t, IntentExpense, r.Intent)
	require.NotNil(t, r.Amount)
	assert.Equal(t, int64(50000), *r.Amount)
	require.NotNil(t, r.Account)
	assert.Equal(t, "Tiền mặt", *r.Account)
	require.NotNil(t, r.Category)
	assert.Equal(t, "ăn uống", *r.Category)
	require.NotNil(t, r.Date)
	assert.Equal(t, "2024-05-20", *r.Date)
}

func TestFallbackIntentKeywords(t *testing.T) {
	cases := map[string]Intent{
		"nhận lương tháng 5":        IntentIncome,
		"chuyển khoản 200k cho mẹ":  IntentTransfer,
		"cho vay 100k":              IntentLend,
		"trả nợ 100k":               IntentRepay,
		"cà phê 25k":                IntentExpense,
	}
	for in, want := range cases {
		resp := NewFallback().Parse(context.Background(), in, testContext(time.Now()))
		assert.Equal(t, want, resp.Result.Intent, "input %q", in)
	}
}

func TestFallbackRefinementInheritsPrevious(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	amount := int64(50000)
	date := "2024-05-20"
	pctx := testContext(now)
	pctx.Previous = &ParsedTransaction{
		Intent: IntentExpense,
		Amount: &amount,
		Date:   &date,
	}

	resp := NewFallback().Parse(context.Background(), "sửa lại thành hôm qua", pctx)
	require.True(t, resp.Success)
	r := resp.Result
	assert.Equal(t, IntentExpense, r.Intent)
	require.NotNil(t, r.Amount)
	assert.Equal(t, int64(50000), *r.Amount, "amount must survive a refinement that does not mention one")
	require.NotNil(t, r.Date)
	assert.Equal(t, "2024-05-19", *r.Date)
}

func TestFallbackContextPersonCoercesLend(t *testing.T) {
	now := time.Now()
	pctx := testContext(now)
	pctx.ContextPersonID = "p1"

	resp := NewFallback().Parse(context.Background(), "cà phê 30k", pctx)
	r := resp.Result
	assert.Equal(t, IntentLend, r.Intent)
	assert.Equal(t, []string{"Minh"}, r.People)

	// The coercion is a page-context default and must not fire on
	// refinement turns.
	amount := int64(30000)
	pctx.Previous = &ParsedTransaction{Intent: IntentExpense, Amount: &amount, People: []string{}}
	resp = NewFallback().Parse(context.Background(), "đổi thành 35k", pctx)
	assert.Equal(t, IntentExpense, resp.Result.Intent)
	assert.Empty(t, resp.Result.People)
}
