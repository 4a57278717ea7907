package cards

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencommander/commander-server-go/internal/game"
)

const sampleCatalog = `
- name: Grizzly Bears
  power: 2
  toughness: 2
- name: Serra Angel
  power: 4
  toughness: 4
  keywords: [flying, vigilance]
- name: Thorn Elemental
  power: 7
  toughness: 7
  keywords: [trample]
- name: Edgar Markov
  power: 4
  toughness: 4
  keywords: [first_strike, haste]
  commander: true
`

func TestParseCatalog(t *testing.T) {
	catalog, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)
	assert.Equal(t, 4, catalog.Len())

	spec, ok := catalog.Lookup("serra angel")
	require.True(t, ok)
	assert.Equal(t, 4, spec.Power)
	assert.Contains(t, spec.Keywords, "flying")
}

func TestBuildPermanent(t *testing.T) {
	catalog, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)

	angel, err := catalog.Build("Serra Angel", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", angel.Controller)
	assert.True(t, angel.HasKeyword(game.KeywordFlying))
	assert.True(t, angel.HasKeyword(game.KeywordVigilance))
	assert.False(t, angel.Commander)

	edgar, err := catalog.Build("Edgar Markov", "bob")
	require.NoError(t, err)
	assert.True(t, edgar.Commander)
	assert.True(t, edgar.HasKeyword(game.KeywordFirstStrike))

	_, err = catalog.Build("Storm Crow", "alice")
	assert.Error(t, err)
}

func TestParseRejectsBadEntries(t *testing.T) {
	_, err := Parse([]byte("- power: 2\n  toughness: 2\n"))
	assert.Error(t, err, "nameless entry")

	_, err = Parse([]byte("- name: Bear\n  keywords: [fnord]\n"))
	assert.Error(t, err, "unknown keyword")

	_, err = Parse([]byte("- name: Bear\n- name: bear\n"))
	assert.Error(t, err, "duplicate name")
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	catalog, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Grizzly Bears", "Serra Angel", "Thorn Elemental", "Edgar Markov"}, catalog.Names())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
