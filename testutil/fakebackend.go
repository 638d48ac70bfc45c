package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/pillar"
)

// FakeBackend is an in-memory stand-in for the Takeoff REST backend. It
// awards XP the way the real service does so end-to-end flows can be
// asserted against pillar totals.
type FakeBackend struct {
	URL string

	srv *httptest.Server

	mu           sync.Mutex
	users        map[string]*backend.User
	tokens       map[string]string
	tasks        []*backend.Task
	quests       []*fakeQuest
	goals        []*fakeGoal
	ultimate     []*fakeUltimate
	events       []*fakeEvent
	google       map[string]bool
	googleEvents map[string][]string
	assessments  []backend.AssessmentCreate
	onboarding   map[string]backend.OnboardingComplete
	hits         map[string]int
	failures     map[string]int
	holds        map[string]chan struct{}
}

type fakeQuest struct {
	uid string
	q   backend.Quest
}

type fakeGoal struct {
	uid string
	g   backend.Goal
}

type fakeUltimate struct {
	uid string
	g   backend.UltimateGoal
}

type fakeEvent struct {
	uid      string
	external bool
	ev       backend.CalendarEvent
}

// NewFakeBackend starts the fake on an httptest server closed at cleanup.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &FakeBackend{
		users:        make(map[string]*backend.User),
		tokens:       make(map[string]string),
		google:       make(map[string]bool),
		googleEvents: make(map[string][]string),
		onboarding:   make(map[string]backend.OnboardingComplete),
		hits:         make(map[string]int),
		failures:     make(map[string]int),
		holds:        make(map[string]chan struct{}),
	}
	f.srv = httptest.NewServer(f.router())
	f.URL = f.srv.URL
	t.Cleanup(f.Close)
	return f
}

// Close releases held routes and stops the server.
func (f *FakeBackend) Close() {
	f.mu.Lock()
	for key, ch := range f.holds {
		close(ch)
		delete(f.holds, key)
	}
	f.mu.Unlock()
	f.srv.Close()
}

func (f *FakeBackend) router() *gin.Engine {
	r := gin.New()
	r.Use(f.track)

	r.GET("/auth/me", f.me)
	r.GET("/auth/google/login", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "https://accounts.google.com/o/oauth2/auth")
	})

	r.GET("/tasks/user/:uid", f.listTasks)
	r.POST("/tasks/", f.createTask)
	r.PATCH("/tasks/:id/complete", f.completeTask)
	r.DELETE("/tasks/:id", f.deleteTask)

	r.GET("/quests/user/:uid", f.listQuests)
	r.POST("/quests/generate/:uid", f.generateQuests)
	r.PATCH("/quests/progress/:id", f.questProgress)
	r.POST("/quests/complete/:id", f.completeQuest)
	r.DELETE("/quests/:id", f.deleteQuest)

	r.GET("/calendar/events/:uid", f.listEvents)
	r.POST("/calendar/create/:uid", f.createEvent)
	r.DELETE("/calendar/event/:id", f.deleteEvent)
	r.POST("/calendar/sync/:uid", f.syncCalendar)
	r.GET("/calendar/debug/:uid", f.calendarDebug)

	r.GET("/goals/user/:uid", f.listGoals)
	r.POST("/goals/create/:uid", f.createGoal)
	r.POST("/goals/complete-milestone/:gid/:mid", f.completeGoalMilestone)
	r.DELETE("/goals/:id", f.deleteGoal)

	r.GET("/ultimate-goals/user/:uid", f.listUltimate)
	r.POST("/ultimate-goals/create-custom/:uid", f.createCustomUltimate)
	r.POST("/ultimate-goals/complete/:gid/:mid", f.completeUltimateMilestone)
	r.DELETE("/ultimate-goals/:id", f.deleteUltimate)

	r.POST("/assessments/", f.submitAssessment)
	r.POST("/assessments/complete-onboarding/:uid", f.completeOnboarding)

	r.POST("/chat/", f.chat)
	return r
}

func routeKey(method, path string) string { return method + " " + path }

// track counts hits per route and applies injected failures and holds.
func (f *FakeBackend) track(c *gin.Context) {
	key := routeKey(c.Request.Method, c.FullPath())
	f.mu.Lock()
	f.hits[key]++
	status, fail := f.failures[key]
	hold := f.holds[key]
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if fail {
		c.AbortWithStatusJSON(status, gin.H{"detail": "injected failure"})
		return
	}
	c.Next()
}

// Hits returns how many requests reached the route pattern, e.g.
// Hits("POST", "/calendar/sync/:uid").
func (f *FakeBackend) Hits(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[routeKey(method, path)]
}

// FailRoute makes every later request to the route answer status.
func (f *FakeBackend) FailRoute(method, path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[routeKey(method, path)] = status
}

// ClearFailure undoes FailRoute.
func (f *FakeBackend) ClearFailure(method, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, routeKey(method, path))
}

// HoldRoute blocks requests to the route until release is called.
func (f *FakeBackend) HoldRoute(method, path string) (release func()) {
	ch := make(chan struct{})
	key := routeKey(method, path)
	f.mu.Lock()
	f.holds[key] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.holds[key] == ch {
				delete(f.holds, key)
				close(ch)
			}
			f.mu.Unlock()
		})
	}
}

// ---- Seeding and inspection ----

// AddUser registers a user reachable through token and returns its id.
func (f *FakeBackend) AddUser(token, email, fullName string) string {
	uid := uuid.NewString()
	u := &backend.User{
		UserID:           uid,
		Email:            email,
		FullName:         fullName,
		LifePillarLevels: make(map[string]int),
		TotalXP:          make(map[string]int),
	}
	for _, p := range pillar.All {
		u.LifePillarLevels[string(p)] = 1
		u.TotalXP[string(p)] = 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[uid] = u
	f.tokens[token] = uid
	return uid
}

// User returns a copy of the stored profile.
func (f *FakeBackend) User(uid string) backend.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[uid]
	if !ok {
		return backend.User{}
	}
	u := *stored
	u.TotalXP = copyMap(u.TotalXP)
	u.LifePillarLevels = copyMap(u.LifePillarLevels)
	return u
}

func copyMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LinkGoogle toggles the credential reported by the calendar debug route and
// sets the titles a sync will import.
func (f *FakeBackend) LinkGoogle(uid string, linked bool, titles ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.google[uid] = linked
	f.googleEvents[uid] = titles
}

// SeedQuest stores q for uid and returns its id.
func (f *FakeBackend) SeedQuest(uid string, q backend.Quest) string {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quests = append(f.quests, &fakeQuest{uid: uid, q: q})
	return q.ID
}

// SeedEvent stores ev for uid and returns its id.
func (f *FakeBackend) SeedEvent(uid string, ev backend.CalendarEvent) string {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, &fakeEvent{uid: uid, ev: ev})
	return ev.ID
}

// Assessments returns every submitted assessment.
func (f *FakeBackend) Assessments() []backend.AssessmentCreate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.AssessmentCreate(nil), f.assessments...)
}

// Onboarding returns the onboarding completion recorded for uid.
func (f *FakeBackend) Onboarding(uid string) (backend.OnboardingComplete, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.onboarding[uid]
	return o, ok
}

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

// awardLocked adds xp to uid's pillar and reports the level change.
func (f *FakeBackend) awardLocked(uid, p string, xp int) (total, oldLevel, newLevel int) {
	u, ok := f.users[uid]
	if !ok {
		return 0, 1, 1
	}
	oldLevel = u.LifePillarLevels[p]
	if oldLevel < 1 {
		oldLevel = 1
	}
	u.TotalXP[p] += xp
	total = u.TotalXP[p]
	newLevel = pillar.Level(total)
	if newLevel > oldLevel {
		u.LifePillarLevels[p] = newLevel
	}
	return total, oldLevel, newLevel
}

// ---- Auth ----

func (f *FakeBackend) me(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid, ok := f.tokens[c.Query("token")]
	if !ok {
		detail(c, http.StatusUnauthorized, "Invalid token")
		return
	}
	c.JSON(http.StatusOK, f.users[uid])
}

// ---- Tasks ----

func (f *FakeBackend) listTasks(c *gin.Context) {
	uid := c.Param("uid")
	completed, filter := c.GetQuery("completed")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []backend.Task{}
	for _, t := range f.tasks {
		if t.UserID != uid {
			continue
		}
		if filter && fmt.Sprint(t.Completed) != completed {
			continue
		}
		out = append(out, *t)
	}
	c.JSON(http.StatusOK, out)
}

func (f *FakeBackend) createTask(c *gin.Context) {
	var req backend.TaskCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	t := &backend.Task{
		ID:                uuid.NewString(),
		UserID:            req.UserID,
		Title:             req.Title,
		Description:       req.Description,
		LifePillar:        req.LifePillar,
		Priority:          req.Priority,
		EstimatedDuration: req.EstimatedDuration,
		XPReward:          req.XPReward,
		CreatedAt:         backend.NewTimestamp(time.Now().UTC()),
	}
	f.mu.Lock()
	f.tasks = append(f.tasks, t)
	f.mu.Unlock()
	c.JSON(http.StatusOK, t)
}

func (f *FakeBackend) completeTask(c *gin.Context) {
	id := c.Param("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID != id {
			continue
		}
		if t.Completed {
			detail(c, http.StatusBadRequest, "Task already completed")
			return
		}
		t.Completed = true
		now := backend.NewTimestamp(time.Now().UTC())
		t.CompletedAt = &now
		f.awardLocked(t.UserID, t.LifePillar, t.XPReward)
		c.JSON(http.StatusOK, backend.TaskCompletion{
			TaskID:     t.ID,
			Completed:  true,
			XPEarned:   t.XPReward,
			LifePillar: t.LifePillar,
		})
		return
	}
	detail(c, http.StatusNotFound, "Task not found")
}

func (f *FakeBackend) deleteTask(c *gin.Context) {
	id := c.Param("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			c.JSON(http.StatusOK, backend.Message{Message: "Task deleted successfully"})
			return
		}
	}
	detail(c, http.StatusNotFound, "Task not found")
}

// ---- Quests ----

var difficultyMultiplier = map[string]float64{
	"easy": 0.7, "medium": 1.0, "hard": 1.5, "legendary": 2.5,
}

func (f *FakeBackend) findQuestLocked(id string) *fakeQuest {
	for _, q := range f.quests {
		if q.q.ID == id {
			return q
		}
	}
	return nil
}

func (f *FakeBackend) listQuests(c *gin.Context) {
	uid := c.Param("uid")
	completed, byCompleted := c.GetQuery("completed")
	p := c.Query("pillar")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []backend.Quest{}
	for _, q := range f.quests {
		if q.uid != uid {
			continue
		}
		if byCompleted && fmt.Sprint(q.q.IsCompleted) != completed {
			continue
		}
		if p != "" && q.q.LifePillar != p {
			continue
		}
		out = append(out, q.q)
	}
	c.JSON(http.StatusOK, out)
}

func (f *FakeBackend) generateQuests(c *gin.Context) {
	uid := c.Param("uid")
	targets := pillar.All[:3]
	if p := c.Query("pillar"); p != "" {
		targets = []pillar.Pillar{pillar.Pillar(p), pillar.Pillar(p), pillar.Pillar(p)}
	}
	difficulties := []string{"easy", "medium", "hard"}
	res := backend.GenerateResult{}
	f.mu.Lock()
	for i, p := range targets {
		target := 10.0
		unit := "sessions"
		d := difficulties[i%len(difficulties)]
		q := backend.Quest{
			ID:          uuid.NewString(),
			Title:       fmt.Sprintf("%s challenge %d", pillar.Label(p), i+1),
			Description: "Generated quest",
			LifePillar:  string(p),
			TargetValue: &target,
			TargetUnit:  &unit,
			XPReward:    int(100 * difficultyMultiplier[d]),
			Difficulty:  d,
		}
		f.quests = append(f.quests, &fakeQuest{uid: uid, q: q})
		res.Quests = append(res.Quests, backend.GeneratedQuest{Title: q.Title, Pillar: q.LifePillar, XP: q.XPReward})
	}
	f.mu.Unlock()
	res.Message = fmt.Sprintf("Generated %d new quests!", len(res.Quests))
	c.JSON(http.StatusOK, res)
}

func (f *FakeBackend) questProgress(c *gin.Context) {
	var body struct {
		CurrentValue float64 `json:"current_value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fq := f.findQuestLocked(c.Param("id"))
	if fq == nil {
		detail(c, http.StatusNotFound, "Quest not found")
		return
	}
	q := &fq.q
	q.CurrentValue = body.CurrentValue
	if q.TargetValue != nil && *q.TargetValue > 0 {
		q.ProgressPercent = min(100, q.CurrentValue / *q.TargetValue * 100)
		if q.CurrentValue >= *q.TargetValue && !q.IsCompleted {
			q.IsCompleted = true
			f.awardLocked(fq.uid, q.LifePillar, q.XPReward)
		}
	}
	// Like the real service, a completed quest keeps reporting its reward.
	xp := 0
	if q.IsCompleted {
		xp = q.XPReward
	}
	c.JSON(http.StatusOK, backend.QuestProgress{
		ID:              q.ID,
		CurrentValue:    q.CurrentValue,
		TargetValue:     q.TargetValue,
		ProgressPercent: q.ProgressPercent,
		IsCompleted:     q.IsCompleted,
		XPEarned:        xp,
	})
}

func (f *FakeBackend) completeQuest(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fq := f.findQuestLocked(c.Param("id"))
	if fq == nil {
		detail(c, http.StatusNotFound, "Quest not found")
		return
	}
	q := &fq.q
	if q.IsCompleted {
		detail(c, http.StatusBadRequest, "Quest already completed")
		return
	}
	q.IsCompleted = true
	q.ProgressPercent = 100
	if q.TargetValue != nil {
		q.CurrentValue = *q.TargetValue
	}
	total, oldLevel, newLevel := f.awardLocked(fq.uid, q.LifePillar, q.XPReward)
	level := oldLevel
	if newLevel > oldLevel {
		level = newLevel
	}
	c.JSON(http.StatusOK, backend.QuestCompletion{
		Message:    "Quest completed!",
		XPEarned:   q.XPReward,
		Pillar:     q.LifePillar,
		NewTotalXP: total,
		LeveledUp:  newLevel > oldLevel,
		NewLevel:   level,
	})
}

func (f *FakeBackend) deleteQuest(c *gin.Context) {
	id := c.Param("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, q := range f.quests {
		if q.q.ID == id {
			f.quests = append(f.quests[:i], f.quests[i+1:]...)
			c.JSON(http.StatusOK, backend.Message{Message: "Quest abandoned"})
			return
		}
	}
	detail(c, http.StatusNotFound, "Quest not found")
}

// ---- Calendar ----

func (f *FakeBackend) listEvents(c *gin.Context) {
	uid := c.Param("uid")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []backend.CalendarEvent{}
	for _, e := range f.events {
		if e.uid == uid {
			out = append(out, e.ev)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (f *FakeBackend) createEvent(c *gin.Context) {
	uid := c.Param("uid")
	var req backend.EventCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := backend.CalendarEvent{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Description:    req.Description,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		LifePillar:     req.LifePillar,
		LifePillarTags: []string{req.LifePillar},
	}
	synced := req.SyncToGoogle && f.google[uid]
	if synced {
		ev.EventID = "g-" + uuid.NewString()
	}
	f.events = append(f.events, &fakeEvent{uid: uid, ev: ev})
	c.JSON(http.StatusOK, backend.EventCreated{
		ID:             ev.ID,
		EventID:        ev.EventID,
		Title:          ev.Title,
		SyncedToGoogle: synced,
	})
}

func (f *FakeBackend) deleteEvent(c *gin.Context) {
	id := c.Param("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.ev.ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			c.JSON(http.StatusOK, backend.Message{Message: "Event deleted"})
			return
		}
	}
	detail(c, http.StatusNotFound, "Event not found")
}

// syncCalendar replaces the user's imported events with the linked titles.
func (f *FakeBackend) syncCalendar(c *gin.Context) {
	uid := c.Param("uid")
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.google[uid] {
		detail(c, http.StatusBadRequest, "Google Calendar not connected")
		return
	}
	kept := f.events[:0]
	for _, e := range f.events {
		if !(e.uid == uid && e.external) {
			kept = append(kept, e)
		}
	}
	f.events = kept

	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	titles := f.googleEvents[uid]
	for i, title := range titles {
		s := start.Add(time.Duration(i) * 24 * time.Hour)
		f.events = append(f.events, &fakeEvent{uid: uid, external: true, ev: backend.CalendarEvent{
			ID:             uuid.NewString(),
			EventID:        "g-" + uuid.NewString(),
			Title:          title,
			StartTime:      backend.NewTimestamp(s),
			EndTime:        backend.NewTimestamp(s.Add(time.Hour)),
			LifePillarTags: []string{string(pillar.PersonalGrowth)},
		}})
	}
	c.JSON(http.StatusOK, backend.SyncResult{Synced: len(titles), Events: append([]string{}, titles...)})
}

func (f *FakeBackend) calendarDebug(c *gin.Context) {
	uid := c.Param("uid")
	f.mu.Lock()
	defer f.mu.Unlock()
	c.JSON(http.StatusOK, backend.CalendarCredential{UserID: uid, HasGoogleTokens: f.google[uid]})
}

// ---- Goals ----

type seedMilestone struct {
	title string
	xp    int
}

var defaultRoadmap = []seedMilestone{
	{"Research & Planning", 100},
	{"Build Foundation", 150},
	{"Take First Action", 200},
	{"Achieve First Win", 250},
	{"Scale & Grow", 300},
	{"Reach Your Goal", 500},
}

func (f *FakeBackend) listGoals(c *gin.Context) {
	uid := c.Param("uid")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []backend.Goal{}
	for _, g := range f.goals {
		if g.uid == uid {
			out = append(out, g.g)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (f *FakeBackend) createGoal(c *gin.Context) {
	uid := c.Param("uid")
	var req backend.GoalCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.LifePillar == "" {
		req.LifePillar = string(pillar.Finance)
	}
	title := req.GoalDescription
	if r := []rune(title); len(r) > 60 {
		title = string(r[:60])
	}
	g := backend.Goal{
		ID:                 uuid.NewString(),
		Title:              title,
		Description:        req.GoalDescription,
		LifePillar:         req.LifePillar,
		AIAnalysis:         "A long journey broken into six stages.",
		EstimatedTimeframe: "1-5 years",
		DifficultyRating:   "challenging",
	}
	for i, m := range defaultRoadmap {
		g.Milestones = append(g.Milestones, backend.Milestone{
			ID:       fmt.Sprintf("m%d", i+1),
			Title:    m.title,
			Order:    i + 1,
			XPReward: m.xp,
			Unlocked: i == 0,
		})
	}
	f.mu.Lock()
	f.goals = append(f.goals, &fakeGoal{uid: uid, g: g})
	f.mu.Unlock()
	c.JSON(http.StatusOK, backend.GoalCreated{
		ID:                 g.ID,
		Title:              g.Title,
		AIAnalysis:         g.AIAnalysis,
		EstimatedTimeframe: g.EstimatedTimeframe,
		DifficultyRating:   g.DifficultyRating,
		MilestonesCount:    len(g.Milestones),
		FirstMilestone:     g.Milestones[0].Title,
	})
}

func (f *FakeBackend) completeGoalMilestone(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var fg *fakeGoal
	for _, g := range f.goals {
		if g.g.ID == c.Param("gid") {
			fg = g
		}
	}
	if fg == nil {
		detail(c, http.StatusNotFound, "Goal not found")
		return
	}
	g := &fg.g
	idx := milestoneIndex(g.Milestones, c.Param("mid"))
	if idx < 0 {
		detail(c, http.StatusNotFound, "Milestone not found")
		return
	}
	m := &g.Milestones[idx]
	if m.IsCompleted {
		detail(c, http.StatusBadRequest, "Milestone already completed")
		return
	}
	if !m.Unlocked {
		detail(c, http.StatusBadRequest, "Milestone not yet unlocked")
		return
	}
	m.IsCompleted = true
	g.TotalXPEarned += m.XPReward
	g.CurrentMilestoneIndex = idx + 1
	var next *string
	if idx+1 < len(g.Milestones) {
		g.Milestones[idx+1].Unlocked = true
		next = &g.Milestones[idx+1].Title
	} else {
		g.IsCompleted = true
	}
	g.ProgressPercent = float64(g.CurrentMilestoneIndex) / float64(len(g.Milestones)) * 100
	_, oldLevel, newLevel := f.awardLocked(fg.uid, g.LifePillar, m.XPReward)
	res := backend.MilestoneCompletion{
		Message:         "Milestone completed!",
		MilestoneTitle:  m.Title,
		XPEarned:        m.XPReward,
		Pillar:          g.LifePillar,
		NextMilestone:   next,
		GoalCompleted:   g.IsCompleted,
		ProgressPercent: g.ProgressPercent,
	}
	if newLevel > oldLevel {
		res.LeveledUp = true
		res.NewLevel = &newLevel
	}
	c.JSON(http.StatusOK, res)
}

func milestoneIndex(ms []backend.Milestone, id string) int {
	for i := range ms {
		if ms[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *FakeBackend) deleteGoal(c *gin.Context) {
	id := c.Param("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, g := range f.goals {
		if g.g.ID == id {
			f.goals = append(f.goals[:i], f.goals[i+1:]...)
			c.JSON(http.StatusOK, backend.Message{Message: "Goal abandoned"})
			return
		}
	}
	detail(c, http.StatusNotFound, "Goal not found")
}

// ---- Ultimate goals ----

type seedGoal struct {
	title, description, icon string
	milestones               []seedMilestone
}

// ultimateSeeds lists the seeded goal per pillar in backend order, which
// differs from the display order.
var ultimateSeeds = []struct {
	pillar pillar.Pillar
	seed   seedGoal
}{
	{pillar.Health, seedGoal{"Top 1% Athlete", "Reach elite fitness in strength and endurance", "🏆", []seedMilestone{{"Consistent Training", 200}, {"Basic Strength", 300}, {"Run a 5K", 250}}}},
	{pillar.Career, seedGoal{"Industry Leader", "Become a recognized leader and expert in your field", "👔", []seedMilestone{{"Skill Foundation", 200}, {"First Promotion", 300}, {"Industry Certification", 350}}}},
	{pillar.Relationships, seedGoal{"Inner Circle of 10", "Build deep, lasting relationships", "💫", []seedMilestone{{"Self-Awareness", 150}, {"Communication Skills", 200}, {"First Deep Friend", 300}}}},
	{pillar.PersonalGrowth, seedGoal{"Renaissance Human", "Master many disciplines", "🧠", []seedMilestone{{"Reading Habit", 200}, {"Meditation Practice", 250}, {"New Language", 400}}}},
	{pillar.Finance, seedGoal{"$20M Net Worth", "Build generational wealth", "💎", []seedMilestone{{"Emergency Fund", 200}, {"Debt Free", 300}, {"First $100K", 500}}}},
	{pillar.Recreation, seedGoal{"Life Maximizer", "Experience the richness of life through adventure and play", "🌍", []seedMilestone{{"Weekend Adventure", 150}, {"New Hobby", 200}, {"Solo Trip", 300}}}},
}

func (f *FakeBackend) initUltimateLocked(uid string) {
	for _, s := range ultimateSeeds {
		g := backend.UltimateGoal{
			ID:          uuid.NewString(),
			Pillar:      string(s.pillar),
			Title:       s.seed.title,
			Description: s.seed.description,
			Icon:        s.seed.icon,
		}
		for i, m := range s.seed.milestones {
			g.Milestones = append(g.Milestones, backend.Milestone{
				ID:       fmt.Sprintf("%s_%d", s.pillar, i),
				Title:    m.title,
				Order:    i + 1,
				XPReward: m.xp,
			})
		}
		f.ultimate = append(f.ultimate, &fakeUltimate{uid: uid, g: g})
	}
}

func (f *FakeBackend) listUltimate(c *gin.Context) {
	uid := c.Param("uid")
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for _, g := range f.ultimate {
		if g.uid == uid {
			found = true
			break
		}
	}
	if !found {
		f.initUltimateLocked(uid)
	}
	out := []backend.UltimateGoal{}
	for _, g := range f.ultimate {
		if g.uid == uid {
			out = append(out, g.g)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (f *FakeBackend) createCustomUltimate(c *gin.Context) {
	uid := c.Param("uid")
	var req backend.CustomGoalCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.Icon == "" {
		req.Icon = "🎯"
	}
	g := backend.UltimateGoal{
		ID:          uuid.NewString(),
		Pillar:      req.Pillar,
		Title:       req.Title,
		Description: req.Description,
		Icon:        req.Icon,
		IsCustom:    true,
	}
	for i, m := range defaultRoadmap[:3] {
		g.Milestones = append(g.Milestones, backend.Milestone{
			ID: fmt.Sprintf("custom_%d", i), Title: m.title, Order: i + 1, XPReward: m.xp,
		})
	}
	f.mu.Lock()
	f.ultimate = append(f.ultimate, &fakeUltimate{uid: uid, g: g})
	f.mu.Unlock()
	c.JSON(http.StatusOK, backend.CustomGoalCreated{ID: g.ID, Title: g.Title, Pillar: g.Pillar})
}

func (f *FakeBackend) completeUltimateMilestone(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var fu *fakeUltimate
	for _, g := range f.ultimate {
		if g.g.ID == c.Param("gid") {
			fu = g
		}
	}
	if fu == nil {
		detail(c, http.StatusNotFound, "Goal not found")
		return
	}
	g := &fu.g
	idx := milestoneIndex(g.Milestones, c.Param("mid"))
	if idx < 0 {
		detail(c, http.StatusNotFound, "Milestone not found")
		return
	}
	m := &g.Milestones[idx]
	if m.IsCompleted {
		detail(c, http.StatusBadRequest, "Already completed")
		return
	}
	if idx > 0 && !g.Milestones[idx-1].IsCompleted {
		detail(c, http.StatusBadRequest, "Complete previous milestone first")
		return
	}
	m.IsCompleted = true
	g.TotalXPEarned += m.XPReward
	g.CurrentMilestoneIndex = idx + 1
	g.ProgressPercent = float64(g.CurrentMilestoneIndex) / float64(len(g.Milestones)) * 100
	if idx == len(g.Milestones)-1 {
		g.IsCompleted = true
	}
	_, oldLevel, newLevel := f.awardLocked(fu.uid, g.Pillar, m.XPReward)
	res := backend.MilestoneCompletion{
		Message:       "Milestone completed!",
		Milestone:     m.Title,
		XPEarned:      m.XPReward,
		Pillar:        g.Pillar,
		GoalCompleted: g.IsCompleted,
	}
	if idx+1 < len(g.Milestones) {
		res.NextMilestone = &g.Milestones[idx+1].Title
	}
	if newLevel > oldLevel {
		res.LeveledUp = true
		res.NewLevel = &newLevel
	}
	c.JSON(http.StatusOK, res)
}

func (f *FakeBackend) deleteUltimate(c *gin.Context) {
	id := c.Param("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, g := range f.ultimate {
		if g.g.ID != id {
			continue
		}
		if !g.g.IsCustom {
			detail(c, http.StatusBadRequest, "Cannot delete predefined goals")
			return
		}
		f.ultimate = append(f.ultimate[:i], f.ultimate[i+1:]...)
		c.JSON(http.StatusOK, backend.Message{Message: "Goal deleted"})
		return
	}
	detail(c, http.StatusNotFound, "Goal not found")
}

// ---- Onboarding ----

func (f *FakeBackend) submitAssessment(c *gin.Context) {
	var req backend.AssessmentCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	f.mu.Lock()
	f.assessments = append(f.assessments, req)
	f.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"id": uuid.NewString(), "user_id": req.UserID})
}

func (f *FakeBackend) completeOnboarding(c *gin.Context) {
	uid := c.Param("uid")
	var req backend.OnboardingComplete
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uid]
	if !ok {
		detail(c, http.StatusNotFound, "User not found")
		return
	}
	u.HasCompletedOnboarding = true
	if req.DisplayName != "" {
		u.FullName = req.DisplayName
	}
	f.onboarding[uid] = req
	c.JSON(http.StatusOK, backend.Message{Message: "Onboarding complete"})
}

// ---- Chat ----

// chat understands "add task: <title>"; anything else gets a canned reply.
func (f *FakeBackend) chat(c *gin.Context) {
	var req backend.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	lower := strings.ToLower(req.Message)
	if strings.HasPrefix(lower, "add task:") {
		title := strings.TrimSpace(req.Message[len("add task:"):])
		t := &backend.Task{
			ID:                uuid.NewString(),
			UserID:            req.UserID,
			Title:             title,
			LifePillar:        string(pillar.PersonalGrowth),
			Priority:          "medium",
			EstimatedDuration: 30,
			XPReward:          pillar.TaskXP(30),
			CreatedAt:         backend.NewTimestamp(time.Now().UTC()),
		}
		f.mu.Lock()
		f.tasks = append(f.tasks, t)
		f.mu.Unlock()
		c.JSON(http.StatusOK, backend.ChatReply{
			Response:    fmt.Sprintf("Added %q to your tasks.", title),
			Suggestions: []string{"Show my tasks"},
			Action:      "task_created",
			TaskCreated: map[string]any{"id": t.ID, "title": t.Title},
		})
		return
	}
	c.JSON(http.StatusOK, backend.ChatReply{
		Response:    "You've got this. One small step at a time.",
		Suggestions: []string{"Show my tasks", "Help"},
	})
}
