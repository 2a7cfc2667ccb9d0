// Package catalog is the read-only champion reference data used to validate
// ban and pick actions.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
)

var ErrUnknownChampion = fmt.Errorf("%w: unknown champion", drafterr.ErrNotFound)

type Champion struct {
	Key       string `json:"key" yaml:"key"`
	Name      string `json:"name" yaml:"name"`
	LocalName string `json:"local_name,omitempty" yaml:"local_name,omitempty"`
	ImageURL  string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
}

type Catalog interface {
	// Lookup resolves a display name, local name or key to a champion.
	Lookup(name string) (Champion, error)
	All() []Champion
}

// Normalize lowercases name and strips whitespace and apostrophes: "Kai'Sa" -> "kaisa".
func Normalize(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) || r == '\'' || r == '’' {
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

// Memory is an immutable in-memory Catalog. It is safe for concurrent use.
type Memory struct {
	byName map[string]Champion
	all    []Champion
}

// NewMemory indexes champions by key, name and local name. Entries without a
// key get the normalized name; entries that normalize to nothing are skipped.
func NewMemory(champions ...Champion) *Memory {
	m := &Memory{byName: make(map[string]Champion, len(champions)*2)}
	for _, c := range champions {
		if c.Key == "" {
			c.Key = Normalize(c.Name)
		}
		c.Key = Normalize(c.Key)
		if c.Key == "" {
			continue
		}
		if _, dup := m.byName[c.Key]; dup {
			continue
		}
		m.all = append(m.all, c)
		for _, alias := range []string{c.Key, Normalize(c.Name), Normalize(c.LocalName)} {
			if alias == "" {
				continue
			}
			if _, taken := m.byName[alias]; !taken {
				m.byName[alias] = c
			}
		}
	}
	slices.SortFunc(m.all, func(a, b Champion) int { return strings.Compare(a.Key, b.Key) })
	return m
}

func (m *Memory) Lookup(name string) (Champion, error) {
	c, ok := m.byName[Normalize(name)]
	if !ok {
		return Champion{}, fmt.Errorf("%w: %q", ErrUnknownChampion, name)
	}
	return c, nil
}

func (m *Memory) All() []Champion { return slices.Clone(m.all) }

func (m *Memory) Len() int { return len(m.all) }

// Search returns up to limit champions whose key, name or local name
// contains q after normalization. Prefix matches come first.
func Search(c Catalog, q string, limit int) []Champion {
	q = Normalize(q)
	if q == "" || limit <= 0 {
		return nil
	}
	var prefix, inner []Champion
	for _, ch := range c.All() {
		best := -1
		for _, alias := range []string{ch.Key, Normalize(ch.Name), Normalize(ch.LocalName)} {
			if i := strings.Index(alias, q); i >= 0 && (best < 0 || i < best) {
				best = i
			}
		}
		switch {
		case best == 0:
			prefix = append(prefix, ch)
		case best > 0:
			inner = append(inner, ch)
		}
	}
	out := append(prefix, inner...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

type yamlFile struct {
	Champions []Champion `yaml:"champions"`
}

// LoadYAML reads a `champions:` list.
func LoadYAML(r io.Reader) ([]Champion, error) {
	var f yamlFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode champions: %w", err)
	}
	return f.Champions, nil
}

//go:embed champions.yaml
var defaultChampions []byte

// Default returns the bundled champion list.
func Default() (*Memory, error) {
	champs, err := LoadYAML(bytes.NewReader(defaultChampions))
	if err != nil {
		return nil, err
	}
	return NewMemory(champs...), nil
}
