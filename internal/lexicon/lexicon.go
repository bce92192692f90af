// Package lexicon loads the vocabularies that drive filtering, scoring,
// theming and extraction.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/painradar/painradar/internal/textutil"
)

//go:embed lexicon.yaml
var defaultYAML []byte

// Bucket is a named static theme with its matching keywords
type Bucket struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	CatchAll bool     `yaml:"catch_all"`
}

// Lexicon groups every vocabulary list
type Lexicon struct {
	Pain        []string `yaml:"pain"`
	Buyer       []string `yaml:"buyer"`
	Context     []string `yaml:"context"`
	Blacklist   []string `yaml:"blacklist"`
	LowSignal   []string `yaml:"low_signal"`
	Anchors     []string `yaml:"anchors"`
	Narrative   []string `yaml:"narrative"`
	Constraints []string `yaml:"constraints"`
	Archetypes  []string `yaml:"archetypes"`
	Buckets     []Bucket `yaml:"buckets"`
	Stopwords   []string `yaml:"stopwords"`

	// KeepSubPhrases lists top phrases even when a kept phrase at least as
	// frequent already contains them
	KeepSubPhrases bool `yaml:"keep_sub_phrases"`

	stopwords map[string]bool
	context   map[string]bool
	anchors   map[string]bool
}

var defaultLexicon = mustParse(defaultYAML)

// Default returns the embedded lexicon
func Default() *Lexicon {
	return defaultLexicon
}

// Load reads a lexicon override from path, or returns the default when path is empty
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon: %w", err)
	}
	return Parse(data)
}

// Parse decodes a lexicon from YAML
func Parse(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parsing lexicon: %w", err)
	}
	if len(lex.Pain) == 0 || len(lex.Buyer) == 0 {
		return nil, fmt.Errorf("lexicon needs pain and buyer vocabularies")
	}
	lex.stopwords = toSet(lex.Stopwords)
	lex.context = toSet(lex.Context)
	lex.anchors = toSet(lex.Anchors)
	return &lex, nil
}

func mustParse(data []byte) *Lexicon {
	lex, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return lex
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[textutil.Normalize(w)] = true
	}
	return set
}

// IsStopword reports whether a normalized token is a stop-word
func (l *Lexicon) IsStopword(token string) bool {
	return l.stopwords[token]
}

// IsContext reports whether a normalized token is pain or buyer context vocabulary
func (l *Lexicon) IsContext(token string) bool {
	return l.context[token]
}

// IsAnchor reports whether a token, singular or plural, is a domain anchor noun
func (l *Lexicon) IsAnchor(token string) bool {
	return l.anchors[token] || l.anchors[Singular(token)]
}

// Singular strips a trailing "s" from tokens longer than three characters
func Singular(token string) string {
	if len(token) > 3 && token[len(token)-1] == 's' && token[len(token)-2] != 's' {
		return token[:len(token)-1]
	}
	return token
}
