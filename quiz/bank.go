// Package quiz runs the onboarding questionnaire: a display name step,
// then linear multiple-choice questions scored per category.
package quiz

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var questionsYAML []byte

type Option struct {
	Value int    `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

type Question struct {
	ID       string   `yaml:"id" json:"id"`
	Category string   `yaml:"category" json:"category"`
	Text     string   `yaml:"text" json:"text"`
	Options  []Option `yaml:"options" json:"options"`
}

func (q *Question) allows(v int) bool {
	for _, o := range q.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// Category groups questions by id prefix for scoring.
type Category struct {
	Key    string `yaml:"key" json:"key"`
	Label  string `yaml:"label" json:"label"`
	Icon   string `yaml:"icon" json:"icon"`
	Prefix string `yaml:"prefix" json:"-"`
}

// Bank is a loaded question set.
type Bank struct {
	Categories []Category `yaml:"categories"`
	Questions  []Question `yaml:"questions"`

	byKey map[string]Category
}

// Parse decodes a question bank and checks that every question belongs to
// a known category and has options.
func Parse(raw []byte) (*Bank, error) {
	b := &Bank{}
	if err := yaml.Unmarshal(raw, b); err != nil {
		return nil, fmt.Errorf("quiz: parse questions: %w", err)
	}
	if len(b.Questions) == 0 {
		return nil, fmt.Errorf("quiz: no questions")
	}
	b.byKey = make(map[string]Category, len(b.Categories))
	for _, c := range b.Categories {
		b.byKey[c.Key] = c
	}
	seen := make(map[string]bool, len(b.Questions))
	for _, q := range b.Questions {
		c, ok := b.byKey[q.Category]
		if !ok {
			return nil, fmt.Errorf("quiz: question %s: unknown category %q", q.ID, q.Category)
		}
		if !strings.HasPrefix(q.ID, c.Prefix) {
			return nil, fmt.Errorf("quiz: question %s does not carry prefix %q", q.ID, c.Prefix)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("quiz: duplicate question %s", q.ID)
		}
		seen[q.ID] = true
		if len(q.Options) == 0 {
			return nil, fmt.Errorf("quiz: question %s has no options", q.ID)
		}
	}
	return b, nil
}

var defaultBank = sync.OnceValues(func() (*Bank, error) { return Parse(questionsYAML) })

// DefaultBank returns the embedded onboarding questions.
func DefaultBank() (*Bank, error) { return defaultBank() }

// Category returns the category with key.
func (b *Bank) Category(key string) (Category, bool) {
	c, ok := b.byKey[key]
	return c, ok
}
