package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "tien mat", fold("Tiền Mặt"))
	assert.Equal(t, "do an", fold("Đồ ăn"))
	assert.Equal(t, "vib bank", fold("  VIB Bank "))
}

func TestFindByNameTiers(t *testing.T) {
	entries := []Entry{
		{ID: "1", Name: "VIB"},
		{ID: "2", Name: "VIB Bank"},
		{ID: "3", Name: "Tiền mặt"},
	}

	// Exact (diacritic-insensitive) beats substring.
	got := FindByName("vib", entries)
	require.NotNil(t, got)
	assert.Equal(t, "1", got.ID)

	// Entry-contains-query.
	got = FindByName("bank", entries)
	require.NotNil(t, got)
	assert.Equal(t, "2", got.ID)

	// Query-contains-entry tolerates over-specification.
	got = FindByName("cái ví tiền mặt của tôi", entries)
	require.NotNil(t, got)
	assert.Equal(t, "3", got.ID)

	assert.Nil(t, FindByName("momo", entries))
	assert.Nil(t, FindByName("", entries))
}

func TestResolveDisambiguation(t *testing.T) {
	entries := []Entry{
		{ID: "1", Name: "VIB Bank"},
		{ID: "2", Name: "VIB Visa"},
	}

	match, candidates := Resolve("vib", entries)
	assert.Nil(t, match)
	require.Len(t, candidates, 2)

	match, candidates = Resolve("visa", entries)
	require.NotNil(t, match)
	assert.Equal(t, "2", match.ID)
	assert.Empty(t, candidates)
}

func TestNarrow(t *testing.T) {
	candidates := []Entry{
		{ID: "1", Name: "VIB Bank"},
		{ID: "2", Name: "VIB Visa"},
	}
	narrowed := Narrow("visa", candidates)
	require.Len(t, narrowed, 1)
	assert.Equal(t, "2", narrowed[0].ID)

	assert.Empty(t, Narrow("momo", candidates))
}
