// Package goals implements the long-term goal roadmap and the ultimate
// goal board. Both share the same strictly sequential milestone model.
package goals

import (
	"errors"
	"sort"
	"strings"

	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/backend"
)

var (
	ErrMilestoneLocked = errors.New("goals: milestone is locked")
	ErrMilestoneDone   = errors.New("goals: milestone already completed")
	ErrPredefinedGoal  = errors.New("goals: predefined goals cannot be deleted")
)

// MilestoneState only ever moves forward: locked, unlocked, completed.
type MilestoneState string

const (
	Locked    MilestoneState = "locked"
	Unlocked  MilestoneState = "unlocked"
	Completed MilestoneState = "completed"
)

type MilestoneView struct {
	backend.Milestone
	State      MilestoneState `json:"state"`
	Actionable bool           `json:"actionable"`
}

// View derives milestone states from the goal's current index. At most
// one milestone is actionable: the one at current, while the goal is open.
func View(ms []backend.Milestone, current int, goalCompleted bool) []MilestoneView {
	sorted := append([]backend.Milestone(nil), ms...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	out := make([]MilestoneView, len(sorted))
	for i, m := range sorted {
		v := MilestoneView{Milestone: m}
		switch {
		case i < current:
			v.State = Completed
		case i == current:
			v.State = Unlocked
			v.Actionable = !goalCompleted
		default:
			v.State = Locked
		}
		out[i] = v
	}
	return out
}

// Actionable returns the milestone that may be completed next.
func Actionable(views []MilestoneView) (MilestoneView, bool) {
	for _, v := range views {
		if v.Actionable {
			return v, true
		}
	}
	return MilestoneView{}, false
}

// check reports whether mid is the actionable milestone of views.
func check(views []MilestoneView, mid string) (MilestoneView, error) {
	for _, v := range views {
		if v.ID != mid {
			continue
		}
		switch {
		case v.Actionable:
			return v, nil
		case v.State == Locked:
			return v, ErrMilestoneLocked
		default:
			return v, ErrMilestoneDone
		}
	}
	return MilestoneView{}, apperr.NotFound("milestone", mid)
}

// upstreamMilestoneError maps the backend's milestone refusals onto the
// local sentinels.
func upstreamMilestoneError(err error) error {
	apiErr, ok := backend.AsAPIError(err)
	if !ok || apiErr.Status != 400 {
		return err
	}
	d := strings.ToLower(apiErr.Detail)
	switch {
	case strings.Contains(d, "already completed"):
		return ErrMilestoneDone
	case strings.Contains(d, "not yet unlocked"), strings.Contains(d, "previous milestone"):
		return ErrMilestoneLocked
	case strings.Contains(d, "predefined"):
		return ErrPredefinedGoal
	}
	return err
}

// celebrationDifficulty picks the burst size for a finished milestone.
func celebrationDifficulty(goalCompleted bool) string {
	if goalCompleted {
		return "legendary"
	}
	return "hard"
}
