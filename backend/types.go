package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/takeoff-app/takeoff/pillar"
)

// Timestamp decodes the backend's ISO-8601 datetimes, which may or may
// not carry a zone. Zone-less values are UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

// ParseTimestamp parses s with each accepted layout in turn.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("backend: unrecognised timestamp %q", s)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// User is the profile returned by GET /auth/me.
type User struct {
	UserID                 string         `json:"user_id"`
	Email                  string         `json:"email"`
	FullName               string         `json:"full_name"`
	LifePillarLevels       map[string]int `json:"life_pillar_levels"`
	TotalXP                map[string]int `json:"total_xp"`
	HasCompletedOnboarding bool           `json:"has_completed_onboarding"`
}

// PillarXP returns the XP total for p, zero when absent.
func (u *User) PillarXP(p pillar.Pillar) int { return u.TotalXP[string(p)] }

// PillarLevel returns the stored level for p, deriving it from XP when
// the backend omitted it.
func (u *User) PillarLevel(p pillar.Pillar) int {
	if lvl, ok := u.LifePillarLevels[string(p)]; ok && lvl > 0 {
		return lvl
	}
	return pillar.Level(u.PillarXP(p))
}

// Task is an action step on the user's task list.
type Task struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	LifePillar        string     `json:"life_pillar"`
	Priority          string     `json:"priority"`
	EstimatedDuration int        `json:"estimated_duration"`
	XPReward          int        `json:"xp_reward"`
	Completed         bool       `json:"completed"`
	DueDate           *Timestamp `json:"due_date,omitempty"`
	CreatedAt         Timestamp  `json:"created_at"`
	CompletedAt       *Timestamp `json:"completed_at,omitempty"`
}

type TaskCreate struct {
	UserID            string `json:"user_id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	LifePillar        string `json:"life_pillar"`
	Priority          string `json:"priority"`
	EstimatedDuration int    `json:"estimated_duration"`
	XPReward          int    `json:"xp_reward"`
}

// TaskCompletion is the result of PATCH /tasks/{id}/complete.
type TaskCompletion struct {
	TaskID           string `json:"task_id"`
	Completed        bool   `json:"completed"`
	XPEarned         int    `json:"xp_earned"`
	LifePillar       string `json:"life_pillar"`
	AlreadyCompleted bool   `json:"already_completed,omitempty"`
}

type Quest struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	LifePillar      string   `json:"life_pillar"`
	TargetValue     *float64 `json:"target_value"`
	TargetUnit      *string  `json:"target_unit"`
	CurrentValue    float64  `json:"current_value"`
	ProgressPercent float64  `json:"progress_percent"`
	XPReward        int      `json:"xp_reward"`
	Difficulty      string   `json:"difficulty"`
	IsCompleted     bool     `json:"is_completed"`
}

// QuestFilter selects a quest list variant. A nil Completed lists all.
type QuestFilter struct {
	Completed *bool
	Pillar    string
}

// Key renders the filter as a stable cache-variant suffix.
func (f QuestFilter) Key() string {
	c := "all"
	if f.Completed != nil {
		c = fmt.Sprintf("%t", *f.Completed)
	}
	p := f.Pillar
	if p == "" {
		p = "any"
	}
	return c + ":" + p
}

type GeneratedQuest struct {
	Title  string `json:"title"`
	Pillar string `json:"pillar"`
	XP     int    `json:"xp"`
}

type GenerateResult struct {
	Message string           `json:"message"`
	Quests  []GeneratedQuest `json:"quests"`
}

// QuestProgress is the result of PATCH /quests/progress/{id}.
type QuestProgress struct {
	ID              string   `json:"id"`
	CurrentValue    float64  `json:"current_value"`
	TargetValue     *float64 `json:"target_value"`
	ProgressPercent float64  `json:"progress_percent"`
	IsCompleted     bool     `json:"is_completed"`
	XPEarned        int      `json:"xp_earned"`
}

type QuestCompletion struct {
	Message    string `json:"message"`
	XPEarned   int    `json:"xp_earned"`
	Pillar     string `json:"pillar,omitempty"`
	NewTotalXP int    `json:"new_total_xp,omitempty"`
	LeveledUp  bool   `json:"leveled_up,omitempty"`
	NewLevel   int    `json:"new_level,omitempty"`
}

type Milestone struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	XPReward    int    `json:"xp_reward"`
	IsCompleted bool   `json:"is_completed"`
	Unlocked    bool   `json:"unlocked"`
}

// Goal is a long-term goal with an AI-generated milestone roadmap.
type Goal struct {
	ID                    string      `json:"id"`
	Title                 string      `json:"title"`
	Description           string      `json:"description"`
	LifePillar            string      `json:"life_pillar"`
	AIAnalysis            string      `json:"ai_analysis"`
	EstimatedTimeframe    string      `json:"estimated_timeframe"`
	DifficultyRating      string      `json:"difficulty_rating"`
	Milestones            []Milestone `json:"milestones"`
	CurrentMilestoneIndex int         `json:"current_milestone_index"`
	ProgressPercent       float64     `json:"progress_percent"`
	TotalXPEarned         int         `json:"total_xp_earned"`
	IsCompleted           bool        `json:"is_completed"`
}

type GoalCreate struct {
	GoalDescription string `json:"goal_description"`
	LifePillar      string `json:"life_pillar"`
}

type GoalCreated struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	AIAnalysis         string `json:"ai_analysis"`
	EstimatedTimeframe string `json:"estimated_timeframe"`
	DifficultyRating   string `json:"difficulty_rating"`
	MilestonesCount    int    `json:"milestones_count"`
	FirstMilestone     string `json:"first_milestone,omitempty"`
}

// MilestoneCompletion covers both goal kinds; the ultimate endpoint
// reports the title under "milestone" instead of "milestone_title".
type MilestoneCompletion struct {
	Message         string  `json:"message"`
	MilestoneTitle  string  `json:"milestone_title,omitempty"`
	Milestone       string  `json:"milestone,omitempty"`
	XPEarned        int     `json:"xp_earned"`
	Pillar          string  `json:"pillar"`
	NextMilestone   *string `json:"next_milestone"`
	GoalCompleted   bool    `json:"goal_completed"`
	LeveledUp       bool    `json:"leveled_up"`
	NewLevel        *int    `json:"new_level"`
	ProgressPercent float64 `json:"progress_percent,omitempty"`
}

// Title returns whichever milestone title field the backend filled.
func (m *MilestoneCompletion) Title() string {
	if m.MilestoneTitle != "" {
		return m.MilestoneTitle
	}
	return m.Milestone
}

type UltimateGoal struct {
	ID                    string      `json:"id"`
	Pillar                string      `json:"pillar"`
	Title                 string      `json:"title"`
	Description           string      `json:"description"`
	Icon                  string      `json:"icon"`
	Milestones            []Milestone `json:"milestones"`
	CurrentMilestoneIndex int         `json:"current_milestone_index"`
	ProgressPercent       float64     `json:"progress_percent"`
	TotalXPEarned         int         `json:"total_xp_earned"`
	IsCompleted           bool        `json:"is_completed"`
	IsCustom              bool        `json:"is_custom"`
}

type CustomGoalCreate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Pillar      string `json:"pillar"`
	Icon        string `json:"icon"`
}

type CustomGoalCreated struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Pillar string `json:"pillar"`
}

type CalendarEvent struct {
	ID             string    `json:"id"`
	EventID        string    `json:"event_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	StartTime      Timestamp `json:"start_time"`
	EndTime        Timestamp `json:"end_time"`
	LifePillar     string    `json:"life_pillar,omitempty"`
	LifePillarTags []string  `json:"life_pillar_tags,omitempty"`
}

// Pillar returns the event's display pillar: the explicit pillar, else
// the first tag, else personal_growth.
func (e *CalendarEvent) Pillar() pillar.Pillar {
	if pillar.Valid(e.LifePillar) {
		return pillar.Pillar(e.LifePillar)
	}
	for _, t := range e.LifePillarTags {
		if pillar.Valid(t) {
			return pillar.Pillar(t)
		}
	}
	return pillar.PersonalGrowth
}

type EventCreate struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	LifePillar   string    `json:"life_pillar"`
	StartTime    Timestamp `json:"start_time"`
	EndTime      Timestamp `json:"end_time"`
	SyncToGoogle bool      `json:"sync_to_google"`
}

type EventCreated struct {
	ID             string `json:"id"`
	EventID        string `json:"event_id,omitempty"`
	Title          string `json:"title"`
	SyncedToGoogle bool   `json:"synced_to_google"`
}

type SyncResult struct {
	Synced int      `json:"synced"`
	Events []string `json:"events"`
}

// CalendarCredential is the credential-presence answer of GET /calendar/debug/{uid}.
type CalendarCredential struct {
	UserID          string `json:"user_id,omitempty"`
	HasGoogleTokens bool   `json:"has_google_tokens"`
}

type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type ChatReply struct {
	Response    string         `json:"response"`
	Suggestions []string       `json:"suggestions"`
	Action      string         `json:"action,omitempty"`
	TaskCreated map[string]any `json:"task_created,omitempty"`
}

type AssessmentCreate struct {
	UserID          string         `json:"user_id"`
	ADHDScore       int            `json:"adhd_score"`
	AnxietyScore    int            `json:"anxiety_score"`
	DepressionScore int            `json:"depression_score"`
	Responses       map[string]any `json:"responses"`
}

type OnboardingComplete struct {
	DisplayName  string         `json:"display_name"`
	PillarScores map[string]int `json:"pillar_scores"`
}

// Message is the generic {"message": ...} acknowledgement body.
type Message struct {
	Message string `json:"message"`
}
