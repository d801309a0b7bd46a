package wizard

import "strings"

// Entry is a directory row as the matcher sees it.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var foldGroups = []string{
	"aàáạảãâầấậẩẫăằắặẳẵ",
	"eèéẹẻẽêềếệểễ",
	"iìíịỉĩ",
	"oòóọỏõôồốộổỗơờớợởỡ",
	"uùúụủũưừứựửữ",
	"yỳýỵỷỹ",
	"dđ",
}

var foldTable = func() map[rune]rune {
	table := make(map[rune]rune)
	for _, group := range foldGroups {
		runes := []rune(group)
		base := runes[0]
		for _, r := range runes[1:] {
			table[r] = base
		}
	}
	return table
}()

// fold lowercases and strips Vietnamese diacritics so "Tiền mặt", "tien mat"
// and "TIEN MAT" all compare equal.
func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if base, ok := foldTable[r]; ok {
			return base
		}
		return r
	}, s)
}

// FindByName resolves a user-supplied name with three tiers, in priority:
// exact fold-equal, then entry-name-contains-query, then
// query-contains-entry-name. The asymmetry tolerates both abbreviations
// ("vib" for "VIB Bank") and over-specification ("cái thẻ VCB của tôi").
// Returns nil when nothing matches.
func FindByName(query string, entries []Entry) *Entry {
	q := fold(query)
	if q == "" {
		return nil
	}
	for i := range entries {
		if fold(entries[i].Name) == q {
			return &entries[i]
		}
	}
	for i := range entries {
		if strings.Contains(fold(entries[i].Name), q) {
			return &entries[i]
		}
	}
	for i := range entries {
		if name := fold(entries[i].Name); name != "" && strings.Contains(q, name) {
			return &entries[i]
		}
	}
	return nil
}

// Resolve is the disambiguation-aware variant: an exact match wins outright,
// otherwise all substring matches are returned as candidates in directory
// order. A single candidate is promoted to a match.
func Resolve(query string, entries []Entry) (*Entry, []Entry) {
	q := fold(query)
	if q == "" {
		return nil, nil
	}
	for i := range entries {
		if fold(entries[i].Name) == q {
			return &entries[i], nil
		}
	}

	var candidates []Entry
	seen := make(map[string]bool)
	for _, e := range entries {
		if strings.Contains(fold(e.Name), q) && !seen[e.ID] {
			seen[e.ID] = true
			candidates = append(candidates, e)
		}
	}
	for _, e := range entries {
		if name := fold(e.Name); name != "" && strings.Contains(q, name) && !seen[e.ID] {
			seen[e.ID] = true
			candidates = append(candidates, e)
		}
	}

	if len(candidates) == 1 {
		return &candidates[0], nil
	}
	return nil, candidates
}

// Narrow filters an existing candidate list by a follow-up substring query.
func Narrow(query string, candidates []Entry) []Entry {
	q := fold(query)
	if q == "" {
		return candidates
	}
	var out []Entry
	for _, c := range candidates {
		if strings.Contains(fold(c.Name), q) {
			out = append(out, c)
		}
	}
	return out
}
