package quiz

import (
	"strings"
	"unicode/utf8"

	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/pillar"
)

// MinNameRunes is the shortest accepted display name.
const MinNameRunes = 2

type Step string

const (
	StepName      Step = "name"
	StepQuestions Step = "quiz"
)

// Quiz is one user's progress through a bank. It is not safe for
// concurrent use.
type Quiz struct {
	bank    *Bank
	Name    string
	Step    Step
	Current int
	Answers map[string]int
}

func New(b *Bank) *Quiz {
	return &Quiz{bank: b, Step: StepName, Answers: map[string]int{}}
}

// SetName records the display name and opens the questions.
func (q *Quiz) SetName(name string) error {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < MinNameRunes {
		return apperr.Invalid("display name must be at least %d characters", MinNameRunes)
	}
	q.Name = name
	q.Step = StepQuestions
	return nil
}

func (q *Quiz) Question() Question { return q.bank.Questions[q.Current] }

func (q *Quiz) last() bool { return q.Current == len(q.bank.Questions)-1 }

// Answer records value for the current question. advance reports whether
// a later question exists to move on to.
func (q *Quiz) Answer(value int) (advance bool, err error) {
	if q.Step != StepQuestions {
		return false, apperr.Invalid("enter a display name first")
	}
	cur := q.Question()
	if !cur.allows(value) {
		return false, apperr.Invalid("%d is not an option of %s", value, cur.ID)
	}
	q.Answers[cur.ID] = value
	return !q.last(), nil
}

// Next moves forward. The current question must be answered.
func (q *Quiz) Next() error {
	if q.Step != StepQuestions {
		return apperr.Invalid("enter a display name first")
	}
	if _, ok := q.Answers[q.Question().ID]; !ok {
		return apperr.Invalid("answer the current question first")
	}
	if q.last() {
		return apperr.Invalid("already at the last question")
	}
	q.Current++
	return nil
}

func (q *Quiz) Prev() error {
	if q.Step != StepQuestions {
		return apperr.Invalid("enter a display name first")
	}
	if q.Current == 0 {
		return apperr.Invalid("already at the first question")
	}
	q.Current--
	return nil
}

// Complete reports whether every question has an answer.
func (q *Quiz) Complete() bool {
	return q.Step == StepQuestions && len(q.Answers) == len(q.bank.Questions)
}

// Scores sums the answers of each category, keyed by category.
func (q *Quiz) Scores() map[string]int {
	out := make(map[string]int, len(q.bank.Categories))
	for _, c := range q.bank.Categories {
		out[c.Key] = 0
		for id, v := range q.Answers {
			if strings.HasPrefix(id, c.Prefix) {
				out[c.Key] += v
			}
		}
	}
	return out
}

// PillarScores is Scores restricted to the six life pillars.
func (q *Quiz) PillarScores() map[string]int {
	all := q.Scores()
	out := make(map[string]int, len(pillar.All))
	for _, p := range pillar.All {
		out[string(p)] = all[string(p)]
	}
	return out
}

// View is the renderable state of a quiz.
type View struct {
	Step     Step           `json:"step"`
	Name     string         `json:"display_name"`
	Index    int            `json:"index"`
	Total    int            `json:"total"`
	Progress float64        `json:"progress"`
	Question *Question      `json:"question,omitempty"`
	Category *Category      `json:"category,omitempty"`
	Answer   *int           `json:"answer,omitempty"`
	Answers  map[string]int `json:"answers"`
	IsLast   bool           `json:"is_last"`
	Complete bool           `json:"complete"`
}

func (q *Quiz) View() View {
	v := View{
		Step:     q.Step,
		Name:     q.Name,
		Index:    q.Current,
		Total:    len(q.bank.Questions),
		Answers:  make(map[string]int, len(q.Answers)),
		IsLast:   q.last(),
		Complete: q.Complete(),
	}
	for k, a := range q.Answers {
		v.Answers[k] = a
	}
	if q.Step == StepQuestions {
		cur := q.Question()
		v.Question = &cur
		if c, ok := q.bank.Category(cur.Category); ok {
			v.Category = &c
		}
		if a, ok := q.Answers[cur.ID]; ok {
			v.Answer = &a
		}
		v.Progress = float64(q.Current+1) / float64(v.Total) * 100
	}
	return v
}
