package goals

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/backend"
)

func milestones(n int) []backend.Milestone {
	ms := make([]backend.Milestone, n)
	for i := range ms {
		// Reverse order on the wire; View sorts by Order.
		ms[n-1-i] = backend.Milestone{ID: string(rune('a' + i)), Order: i + 1}
	}
	return ms
}

func states(vs []MilestoneView) []MilestoneState {
	out := make([]MilestoneState, len(vs))
	for i, v := range vs {
		out[i] = v.State
	}
	return out
}

func TestView_DerivesStatesFromIndex(t *testing.T) {
	vs := View(milestones(4), 2, false)
	want := []MilestoneState{Completed, Completed, Unlocked, Locked}
	if diff := cmp.Diff(want, states(vs)); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
	a, ok := Actionable(vs)
	assert.True(t, ok)
	assert.Equal(t, "c", a.ID)
}

func TestView_AtMostOneActionable(t *testing.T) {
	for n := 0; n <= 6; n++ {
		for cur := 0; cur <= n; cur++ {
			for _, done := range []bool{false, true} {
				count := 0
				for _, v := range View(milestones(n), cur, done) {
					if v.Actionable {
						count++
					}
				}
				assert.LessOrEqual(t, count, 1, "n=%d cur=%d done=%v", n, cur, done)
				if done {
					assert.Zero(t, count)
				}
			}
		}
	}
}

func TestView_CompletedGoal(t *testing.T) {
	vs := View(milestones(3), 3, true)
	assert.Equal(t, []MilestoneState{Completed, Completed, Completed}, states(vs))
	_, ok := Actionable(vs)
	assert.False(t, ok)
}

func TestCheck(t *testing.T) {
	vs := View(milestones(3), 1, false)

	_, err := check(vs, "b")
	assert.NoError(t, err)
	_, err = check(vs, "a")
	assert.ErrorIs(t, err, ErrMilestoneDone)
	_, err = check(vs, "c")
	assert.ErrorIs(t, err, ErrMilestoneLocked)
	_, err = check(vs, "zz")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpstreamMilestoneError(t *testing.T) {
	cases := map[string]error{
		"Milestone already completed":       ErrMilestoneDone,
		"Already completed":                 ErrMilestoneDone,
		"Milestone not yet unlocked":        ErrMilestoneLocked,
		"Complete previous milestone first": ErrMilestoneLocked,
		"Cannot delete predefined goals":    ErrPredefinedGoal,
	}
	for d, want := range cases {
		assert.ErrorIs(t, upstreamMilestoneError(&backend.APIError{Status: http.StatusBadRequest, Detail: d}), want, d)
	}
	other := &backend.APIError{Status: http.StatusBadGateway, Detail: "boom"}
	assert.Equal(t, error(other), upstreamMilestoneError(other))
}

func TestSortUltimate_DisplayOrderStable(t *testing.T) {
	gs := []backend.UltimateGoal{
		{ID: "h", Pillar: "health"},
		{ID: "c1", Pillar: "career"},
		{ID: "f", Pillar: "finance"},
		{ID: "c2", Pillar: "career"},
		{ID: "r", Pillar: "recreation"},
	}
	var got []string
	for _, g := range SortUltimate(gs) {
		got = append(got, g.ID)
	}
	assert.Equal(t, []string{"f", "h", "c1", "c2", "r"}, got)
	assert.Equal(t, "h", gs[0].ID, "input untouched")
}
