package quiz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/apperr"
)

func bank(t *testing.T) *Bank {
	t.Helper()
	b, err := DefaultBank()
	require.NoError(t, err)
	return b
}

func TestDefaultBank_Shape(t *testing.T) {
	b := bank(t)
	require.Len(t, b.Questions, 18)
	require.Len(t, b.Categories, 9)

	perCategory := map[string]int{}
	for _, q := range b.Questions {
		perCategory[q.Category]++
		require.Len(t, q.Options, 5, q.ID)
		screening := q.Category == "adhd" || q.Category == "anxiety" || q.Category == "depression"
		if screening {
			assert.Equal(t, 0, q.Options[0].Value, q.ID)
			assert.Equal(t, 4, q.Options[4].Value, q.ID)
		} else {
			assert.Equal(t, 4, q.Options[0].Value, q.ID)
			assert.Equal(t, 0, q.Options[4].Value, q.ID)
		}
	}
	for _, c := range b.Categories {
		assert.Equal(t, 2, perCategory[c.Key], c.Key)
	}
	rel, ok := b.Category("relationships")
	require.True(t, ok)
	assert.Equal(t, "social", rel.Prefix)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte("categories: []\nquestions: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte(`
categories:
  - {key: health, prefix: health}
questions:
  - {id: fit1, category: health, text: x, options: [{value: 1, label: a}]}
`))
	assert.Error(t, err)

	_, err = Parse([]byte(`
categories:
  - {key: health, prefix: health}
questions:
  - {id: health1, category: money, text: x, options: [{value: 1, label: a}]}
`))
	assert.Error(t, err)
}

func TestSetName(t *testing.T) {
	q := New(bank(t))
	assert.Equal(t, StepName, q.Step)
	assert.ErrorIs(t, q.SetName("  A  "), apperr.ErrInvalidInput)
	assert.Equal(t, StepName, q.Step)

	require.NoError(t, q.SetName("  Jo "))
	assert.Equal(t, "Jo", q.Name)
	assert.Equal(t, StepQuestions, q.Step)
}

func TestAnswer_RequiresNameAndValidOption(t *testing.T) {
	q := New(bank(t))
	_, err := q.Answer(3)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	require.NoError(t, q.SetName("Jo"))
	_, err = q.Answer(7)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	advance, err := q.Answer(3)
	require.NoError(t, err)
	assert.True(t, advance)
	assert.Equal(t, 3, q.Answers["health1"])
}

func TestNavigation_IsLinear(t *testing.T) {
	q := New(bank(t))
	require.NoError(t, q.SetName("Jo"))

	assert.ErrorIs(t, q.Prev(), apperr.ErrInvalidInput)
	assert.ErrorIs(t, q.Next(), apperr.ErrInvalidInput, "unanswered")

	_, err := q.Answer(4)
	require.NoError(t, err)
	require.NoError(t, q.Next())
	assert.Equal(t, 1, q.Current)
	require.NoError(t, q.Prev())
	assert.Equal(t, 0, q.Current)
}

func answerAll(t *testing.T, q *Quiz, value func(Question) int) {
	t.Helper()
	for {
		advance, err := q.Answer(value(q.Question()))
		require.NoError(t, err)
		if !advance {
			return
		}
		require.NoError(t, q.Next())
	}
}

func TestScores_NineKeys(t *testing.T) {
	q := New(bank(t))
	require.NoError(t, q.SetName("Jo"))
	assert.False(t, q.Complete())

	answerAll(t, q, func(qu Question) int {
		if strings.HasPrefix(qu.ID, "anx") {
			return 3
		}
		return qu.Options[0].Value
	})
	require.True(t, q.Complete())
	assert.True(t, q.View().IsLast)
	assert.ErrorIs(t, q.Next(), apperr.ErrInvalidInput)

	scores := q.Scores()
	assert.Len(t, scores, 9)
	assert.Equal(t, 8, scores["health"])
	assert.Equal(t, 8, scores["relationships"])
	assert.Equal(t, 0, scores["adhd"])
	assert.Equal(t, 6, scores["anxiety"])

	ps := q.PillarScores()
	assert.Len(t, ps, 6)
	assert.NotContains(t, ps, "anxiety")
	assert.Equal(t, 8, ps["personal_growth"])
}

func TestView(t *testing.T) {
	q := New(bank(t))
	v := q.View()
	assert.Equal(t, StepName, v.Step)
	assert.Nil(t, v.Question)

	require.NoError(t, q.SetName("Jo"))
	_, err := q.Answer(2)
	require.NoError(t, err)
	v = q.View()
	require.NotNil(t, v.Question)
	assert.Equal(t, "health1", v.Question.ID)
	require.NotNil(t, v.Category)
	assert.Equal(t, "Physical Health", v.Category.Label)
	require.NotNil(t, v.Answer)
	assert.Equal(t, 2, *v.Answer)
	assert.InDelta(t, 100.0/18, v.Progress, 0.001)
}
