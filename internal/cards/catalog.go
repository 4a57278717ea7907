package cards

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opencommander/commander-server-go/internal/game"
)

// CreatureSpec is one catalog entry as it appears in the YAML file.
type CreatureSpec struct {
	Name      string   `yaml:"name"`
	Power     int      `yaml:"power"`
	Toughness int      `yaml:"toughness"`
	Keywords  []string `yaml:"keywords,omitempty"`
	Commander bool     `yaml:"commander,omitempty"`
}

// Catalog is a named collection of creature definitions.
type Catalog struct {
	byName map[string]CreatureSpec
	names  []string
}

var knownKeywords = map[string]game.Keyword{
	"flying":         game.KeywordFlying,
	"reach":          game.KeywordReach,
	"first_strike":   game.KeywordFirstStrike,
	"double_strike":  game.KeywordDoubleStrike,
	"deathtouch":     game.KeywordDeathtouch,
	"trample":        game.KeywordTrample,
	"vigilance":      game.KeywordVigilance,
	"indestructible": game.KeywordIndestructible,
	"haste":          game.KeywordHaste,
	"menace":         game.KeywordMenace,
	"lifelink":       game.KeywordLifelink,
	"defender":       game.KeywordDefender,
	"gambler":        game.KeywordGambler,
}

// Parse builds a catalog from YAML content.
func Parse(data []byte) (*Catalog, error) {
	var specs []CreatureSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	catalog := &Catalog{byName: make(map[string]CreatureSpec, len(specs))}
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("catalog entry %d has no name", i)
		}
		key := strings.ToLower(spec.Name)
		if _, dup := catalog.byName[key]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", spec.Name)
		}
		for _, kw := range spec.Keywords {
			if _, ok := knownKeywords[strings.ToLower(kw)]; !ok {
				return nil, fmt.Errorf("creature %q has unknown keyword %q", spec.Name, kw)
			}
		}
		catalog.byName[key] = spec
		catalog.names = append(catalog.names, spec.Name)
	}
	return catalog, nil
}

// Load reads a catalog file from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Names returns the creature names in file order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.byName) }

// Lookup finds a creature definition by name, case-insensitively.
func (c *Catalog) Lookup(name string) (CreatureSpec, bool) {
	spec, ok := c.byName[strings.ToLower(name)]
	return spec, ok
}

// Build instantiates a battlefield permanent from a catalog entry.
func (c *Catalog) Build(name, controller string) (*game.Permanent, error) {
	spec, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no creature %q in catalog", name)
	}
	p := &game.Permanent{
		Name:       spec.Name,
		Controller: controller,
		Owner:      controller,
		Power:      spec.Power,
		Toughness:  spec.Toughness,
		Commander:  spec.Commander,
		Keywords:   make(map[game.Keyword]bool, len(spec.Keywords)),
	}
	for _, kw := range spec.Keywords {
		p.Keywords[knownKeywords[strings.ToLower(kw)]] = true
	}
	return p, nil
}
