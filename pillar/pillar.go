// Package pillar defines the six fixed life categories that tag tasks,
// quests, goals and XP, plus the XP and level arithmetic shared by them.
package pillar

import "math"

// Pillar is a life category key as used by the Takeoff backend.
type Pillar string

const (
	Health         Pillar = "health"
	Career         Pillar = "career"
	Relationships  Pillar = "relationships"
	PersonalGrowth Pillar = "personal_growth"
	Finance        Pillar = "finance"
	Recreation     Pillar = "recreation"
)

// All lists the pillars in canonical order.
var All = []Pillar{Health, Career, Relationships, PersonalGrowth, Finance, Recreation}

// UltimateOrder is the display order of the ultimate-goal board.
var UltimateOrder = []Pillar{Finance, Health, Career, Relationships, PersonalGrowth, Recreation}

var icons = map[Pillar]string{
	Health:         "💪",
	Career:         "🎯",
	Relationships:  "🤝",
	PersonalGrowth: "📚",
	Finance:        "💰",
	Recreation:     "🎮",
}

var labels = map[Pillar]string{
	Health:         "Health",
	Career:         "Career",
	Relationships:  "Relationships",
	PersonalGrowth: "Personal Growth",
	Finance:        "Finance",
	Recreation:     "Recreation",
}

// Valid reports whether s names one of the six pillars.
func Valid(s string) bool {
	_, ok := icons[Pillar(s)]
	return ok
}

// Icon returns the emoji for p, or "" for an unknown pillar.
func Icon(p Pillar) string { return icons[p] }

// Label returns the human readable name of p.
func Label(p Pillar) string {
	if l, ok := labels[p]; ok {
		return l
	}
	return string(p)
}

// Rank returns the position of p in UltimateOrder, or len(UltimateOrder)
// for unknown pillars so they sort last.
func Rank(p Pillar) int {
	for i, q := range UltimateOrder {
		if q == p {
			return i
		}
	}
	return len(UltimateOrder)
}

// TaskXP is the reward of a task estimated to take duration minutes:
// round(duration/15) * 10.
func TaskXP(duration int) int {
	return int(math.Round(float64(duration)/15)) * 10
}

// Level derives a pillar level from its accumulated XP.
func Level(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/100 + 1
}
