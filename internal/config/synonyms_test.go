package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynonymTable_Canonical(t *testing.T) {
	table := DefaultSynonyms()

	tests := []struct {
		name  string
		kind  SynonymKind
		value string
		want  string
	}{
		{"provider hyphen", SynonymProvider, "300-Fragen", "300fragen"},
		{"provider spaced", SynonymProvider, "300 fragen", "300fragen"},
		{"provider underscore", SynonymProvider, "300_FRAGEN", "300fragen"},
		{"tag alias", SynonymTag, "Bavaria", "bayern"},
		{"difficulty alias", SynonymDifficulty, "schwer", "hard"},
		{"unknown passes through squashed", SynonymTag, "Road Signs!", "roadsigns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Canonical(tt.kind, tt.value))
		})
	}
}

func TestSynonymTable_Variants(t *testing.T) {
	table := DefaultSynonyms()

	variants := table.Variants(SynonymProvider, "300 Fragen")
	assert.Contains(t, variants, "300-fragen")
	assert.Contains(t, variants, "300 fragen")
	assert.Contains(t, variants, "300fragen")

	assert.Equal(t, []string{"unlisted"}, table.Variants(SynonymProvider, "Unlisted"))
}

func TestSynonymTable_Equivalent(t *testing.T) {
	table := DefaultSynonyms()
	assert.True(t, table.Equivalent(SynonymTag, "300-Fragen", "300Fragen"))
	assert.False(t, table.Equivalent(SynonymTag, "300-Fragen", "Bayern"))
}

func TestLoadSynonyms(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		table, err := LoadSynonyms("")
		require.NoError(t, err)
		assert.Equal(t, "bayern", table.Canonical(SynonymTag, "Bavaria"))
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "synonyms.yaml")
		content := []byte(`
providers:
  dtz:
    - "DTZ Prüfung"
    - "D-T-Z"
tags:
  verkehr:
    - "Straßenverkehr"
`)
		require.NoError(t, os.WriteFile(path, content, 0o600))

		table, err := LoadSynonyms(path)
		require.NoError(t, err)
		assert.Equal(t, "dtz", table.Canonical(SynonymProvider, "D-T-Z"))
		assert.Equal(t, "verkehr", table.Canonical(SynonymTag, "Straßenverkehr"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSynonyms(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
