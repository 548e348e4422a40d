// Package intent classifies conversation turns with an ordered list of
// keyword rules and decides confirm/cancel for a pending order.
package intent

import (
	"strings"
	"unicode"

	"github.com/brifyai/pautapro/internal/fuzzy"
)

// Intent is the classified purpose of a turn.
type Intent string

const (
	CreateOrder Intent = "create_order"
	Confirm     Intent = "confirm"
	Cancel      Intent = "cancel"
	Help        Intent = "help"
	Unknown     Intent = "unknown"
)

// Decision is the reading of a reply to a pending order.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionConfirm
	DecisionCancel
)

func (d Decision) String() string {
	switch d {
	case DecisionConfirm:
		return "confirm"
	case DecisionCancel:
		return "cancel"
	default:
		return "none"
	}
}

type rule struct {
	intent Intent
	match  func(t text) bool
}

// Classifier applies the rules in order; the first match wins.
type Classifier struct {
	confirm, cancel, negation, order, create, help keywordSet
	client, product, medium                        keywordSet
	rules                                          []rule
}

// NewClassifier builds a classifier over lex.
func NewClassifier(lex Lexicon) *Classifier {
	c := &Classifier{
		confirm:  newKeywordSet(lex.Confirm),
		cancel:   newKeywordSet(lex.Cancel),
		negation: newKeywordSet(lex.Negations),
		order:    newKeywordSet(lex.OrderKeywords),
		create:   newKeywordSet(lex.CreateKeywords),
		help:     newKeywordSet(lex.Help),
		client:   newKeywordSet(lex.ClientHints),
		product:  newKeywordSet(lex.ProductHints),
		medium:   newKeywordSet(lex.MediumHints),
	}
	c.rules = []rule{
		{CreateOrder, func(t text) bool { return t.has(c.order) && t.has(c.create) }},
		{Confirm, func(t text) bool { return c.decide(t) == DecisionConfirm }},
		{Cancel, func(t text) bool { return c.decide(t) == DecisionCancel }},
		{Help, func(t text) bool { return t.has(c.help) }},
	}
	return c
}

// Classify returns the intent of the first matching rule, or Unknown.
func (c *Classifier) Classify(s string) Intent {
	t := newText(s)
	for _, r := range c.rules {
		if r.match(t) {
			return r.intent
		}
	}
	return Unknown
}

// Decide reads a reply to a pending order. Confirmation tokens are checked
// before cancellation tokens, but a confirmation preceded by a negation
// ("no acepto", "no, no quiero confirmar") is a cancellation.
func (c *Classifier) Decide(s string) Decision {
	return c.decide(newText(s))
}

func (c *Classifier) decide(t text) Decision {
	confirm := t.index(c.confirm)
	if confirm >= 0 {
		if neg := t.index(c.negation); neg >= 0 && neg < confirm {
			return DecisionCancel
		}
		return DecisionConfirm
	}
	if t.has(c.cancel) {
		return DecisionCancel
	}
	return DecisionNone
}

// LooksComplete is a cheap gate run before extraction: it reports whether
// the text seems to mention a client, a product and a medium. False
// negatives are expected and lead to a clarification prompt.
func (c *Classifier) LooksComplete(s string) bool {
	t := newText(s)
	return t.has(c.client) && t.has(c.product) && t.has(c.medium)
}

// text is a folded message split into words.
type text struct {
	folded string
	tokens []token
	words  map[string]struct{}
}

type token struct {
	word string
	at   int
}

func newText(s string) text {
	t := text{folded: fuzzy.Fold(s), words: make(map[string]struct{})}
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		w := t.folded[start:end]
		t.tokens = append(t.tokens, token{word: w, at: start})
		t.words[w] = struct{}{}
		start = -1
	}
	for i, r := range t.folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(t.folded))
	return t
}

func (t text) has(ks keywordSet) bool {
	return t.index(ks) >= 0
}

// index returns the byte offset of the earliest keyword of ks in t, or -1.
// Short keywords match whole words; longer ones match at a word start.
func (t text) index(ks keywordSet) int {
	for _, tok := range t.tokens {
		if _, ok := ks.words[tok.word]; ok {
			return tok.at
		}
		for _, f := range ks.fragments {
			if strings.HasPrefix(t.folded[tok.at:], f) {
				return tok.at
			}
		}
	}
	return -1
}
