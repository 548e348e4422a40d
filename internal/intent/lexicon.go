package intent

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/brifyai/pautapro/internal/fuzzy"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// Lexicon lists the keywords each rule looks for.
type Lexicon struct {
	Confirm        []string `yaml:"confirm"`
	Cancel         []string `yaml:"cancel"`
	Negations      []string `yaml:"negations"`
	OrderKeywords  []string `yaml:"order_keywords"`
	CreateKeywords []string `yaml:"create_keywords"`
	Help           []string `yaml:"help"`
	ClientHints    []string `yaml:"client_hints"`
	ProductHints   []string `yaml:"product_hints"`
	MediumHints    []string `yaml:"medium_hints"`
}

// DefaultLexicon returns the built-in Spanish lexicon.
func DefaultLexicon() Lexicon {
	lex, err := ParseLexicon(defaultLexicon)
	if err != nil {
		panic(err)
	}
	return lex
}

// LoadLexicon reads a lexicon from a YAML file. Empty lists fall back to
// the built-in lexicon.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, eris.Wrap(err, "intent: read lexicon")
	}
	lex, err := ParseLexicon(data)
	if err != nil {
		return Lexicon{}, err
	}
	return lex.withDefaults(DefaultLexicon()), nil
}

// ParseLexicon decodes a YAML lexicon.
func ParseLexicon(data []byte) (Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, eris.Wrap(err, "intent: parse lexicon")
	}
	return lex, nil
}

func (l Lexicon) withDefaults(d Lexicon) Lexicon {
	pick := func(v, def []string) []string {
		if len(v) == 0 {
			return def
		}
		return v
	}
	return Lexicon{
		Confirm:        pick(l.Confirm, d.Confirm),
		Cancel:         pick(l.Cancel, d.Cancel),
		Negations:      pick(l.Negations, d.Negations),
		OrderKeywords:  pick(l.OrderKeywords, d.OrderKeywords),
		CreateKeywords: pick(l.CreateKeywords, d.CreateKeywords),
		Help:           pick(l.Help, d.Help),
		ClientHints:    pick(l.ClientHints, d.ClientHints),
		ProductHints:   pick(l.ProductHints, d.ProductHints),
		MediumHints:    pick(l.MediumHints, d.MediumHints),
	}
}

// keywordSet is a folded keyword list split by matching mode.
type keywordSet struct {
	words     map[string]struct{}
	fragments []string
}

func newKeywordSet(keywords []string) keywordSet {
	ks := keywordSet{words: make(map[string]struct{})}
	for _, k := range keywords {
		k = fuzzy.Fold(k)
		switch {
		case k == "":
		case len([]rune(k)) <= 2:
			ks.words[k] = struct{}{}
		default:
			ks.fragments = append(ks.fragments, k)
		}
	}
	return ks
}
