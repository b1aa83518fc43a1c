package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

type SynonymKind string

const (
	SynonymProvider   SynonymKind = "providers"
	SynonymTag        SynonymKind = "tags"
	SynonymDifficulty SynonymKind = "difficulties"
)

// SynonymTable maps label variants (casing, punctuation, spelling) onto one
// canonical label per kind.
type SynonymTable struct {
	entries map[SynonymKind]map[string][]string
	index   map[SynonymKind]map[string]string
}

// DefaultSynonyms is used when no synonyms file is configured
func DefaultSynonyms() *SynonymTable {
	return NewSynonymTable(map[SynonymKind]map[string][]string{
		SynonymProvider: {
			"300-fragen": {"300-Fragen", "300 Fragen", "300Fragen", "300_fragen"},
			"telc":       {"TELC", "telc gGmbH"},
			"goethe":     {"Goethe-Institut", "Goethe Institut"},
		},
		SynonymTag: {
			"300-fragen": {"300-Fragen", "300 Fragen", "300Fragen", "300_fragen"},
			"bayern":     {"Bayern", "Bavaria"},
		},
		SynonymDifficulty: {
			"easy":   {"leicht", "einfach", "beginner"},
			"medium": {"mittel", "normal", "intermediate"},
			"hard":   {"schwer", "difficult", "advanced"},
		},
	})
}

func NewSynonymTable(entries map[SynonymKind]map[string][]string) *SynonymTable {
	t := &SynonymTable{
		entries: map[SynonymKind]map[string][]string{},
		index:   map[SynonymKind]map[string]string{},
	}
	for kind, groups := range entries {
		t.entries[kind] = map[string][]string{}
		t.index[kind] = map[string]string{}
		for canonical, variants := range groups {
			key := utils.SquashLabel(canonical)
			t.entries[kind][key] = append([]string{canonical}, variants...)
			t.index[kind][key] = key
			for _, v := range variants {
				t.index[kind][utils.SquashLabel(v)] = key
			}
		}
	}
	return t
}

// LoadSynonyms reads a YAML or JSON synonyms file shaped as
// {providers|tags|difficulties: {canonical: [variants...]}}.
// An empty path yields the default table.
func LoadSynonyms(path string) (*SynonymTable, error) {
	if path == "" {
		return DefaultSynonyms(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read synonyms file: %w", err)
	}

	var raw map[string]map[string][]string
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode synonyms file: %w", err)
	}

	entries := make(map[SynonymKind]map[string][]string, len(raw))
	for kind, groups := range raw {
		entries[SynonymKind(strings.ToLower(kind))] = groups
	}
	return NewSynonymTable(entries), nil
}

// Canonical returns the canonical key for value. Unknown values are squashed
// so that casing and punctuation differences still compare equal.
func (t *SynonymTable) Canonical(kind SynonymKind, value string) string {
	key := utils.SquashLabel(value)
	if canonical, ok := t.index[kind][key]; ok {
		return canonical
	}
	return key
}

// Variants lists every known spelling of value in lower case, value included
func (t *SynonymTable) Variants(kind SynonymKind, value string) []string {
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			seen[s] = true
		}
	}

	add(value)
	for _, v := range t.entries[kind][t.Canonical(kind, value)] {
		add(v)
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Equivalent reports whether two labels denote the same canonical value
func (t *SynonymTable) Equivalent(kind SynonymKind, a, b string) bool {
	return t.Canonical(kind, a) == t.Canonical(kind, b)
}
