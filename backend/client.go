package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/takeoff-app/takeoff/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// APIError is returned for every non-2xx upstream response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: HTTP %d: %s", e.Status, e.Detail)
}

// AlreadyCompleted reports the backend's refusal to complete something twice.
func (e *APIError) AlreadyCompleted() bool {
	return e.Status == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Detail), "already completed")
}

// AsAPIError unwraps err into an *APIError when it carries one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// ErrTimeout is wrapped into errors from calls that exceeded backend.timeout.
var ErrTimeout = errors.New("backend: request timed out")

type tokenKey struct{}

type traceKey struct{}

// WithToken attaches the upstream bearer token to ctx. Every call made
// with the returned context carries it as an Authorization header.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	s, _ := ctx.Value(tokenKey{}).(string)
	return s
}

// WithTraceID attaches a trace id that is forwarded upstream as X-Trace-ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the trace id carried by ctx, if any.
func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}

// Client talks to the Takeoff REST backend.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a Client from cfg. A zero RateLimitRPS disables limiting.
func New(cfg config.BackendConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// doJSON executes one request, marshalling body as JSON and decoding the
// response into out. Pass nil body for GET requests and nil out to discard
// the response.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("backend rate limit: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend marshal: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("backend new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := tokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if id := TraceID(ctx); id != "" {
		req.Header.Set("X-Trace-ID", id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			err = fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		c.logger.Warn("backend request failed",
			zap.String("trace_id", TraceID(ctx)),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Error(err))
		return fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		zap.String("trace_id", TraceID(ctx)),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("backend decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// readDetail extracts the backend's {"detail": ...} message, falling back
// to a short body snippet.
func readDetail(r io.Reader) string {
	snippet, _ := io.ReadAll(io.LimitReader(r, 256))
	snippet = bytes.TrimSpace(snippet)
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(snippet, &body) == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			return s
		}
		return string(body.Detail)
	}
	return string(snippet)
}

func esc(s string) string { return url.PathEscape(s) }

// ---- Auth ----

// Me hydrates the profile behind token.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var u User
	q := url.Values{"token": {token}}
	if err := c.doJSON(WithToken(ctx, token), http.MethodGet, "/auth/me", q, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GoogleLoginURL is the redirect target that starts the OAuth flow.
func (c *Client) GoogleLoginURL() string {
	return c.baseURL + "/auth/google/login"
}

// ---- Tasks ----

func (c *Client) ListTasks(ctx context.Context, userID string) ([]Task, error) {
	var out []Task
	err := c.doJSON(ctx, http.MethodGet, "/tasks/user/"+esc(userID), nil, nil, &out)
	return out, err
}

func (c *Client) CreateTask(ctx context.Context, req TaskCreate) (*Task, error) {
	var out Task
	if err := c.doJSON(ctx, http.MethodPost, "/tasks/", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteTask(ctx context.Context, taskID string) (*TaskCompletion, error) {
	var out TaskCompletion
	if err := c.doJSON(ctx, http.MethodPatch, "/tasks/"+esc(taskID)+"/complete", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/tasks/"+esc(taskID), nil, nil, nil)
}

// ---- Quests ----

func (c *Client) ListQuests(ctx context.Context, userID string, f QuestFilter) ([]Quest, error) {
	q := url.Values{}
	if f.Completed != nil {
		q.Set("completed", fmt.Sprintf("%t", *f.Completed))
	}
	if f.Pillar != "" {
		q.Set("pillar", f.Pillar)
	}
	var out []Quest
	err := c.doJSON(ctx, http.MethodGet, "/quests/user/"+esc(userID), q, nil, &out)
	return out, err
}

func (c *Client) GenerateQuests(ctx context.Context, userID, pillarName string) (*GenerateResult, error) {
	q := url.Values{}
	if pillarName != "" {
		q.Set("pillar", pillarName)
	}
	var out GenerateResult
	if err := c.doJSON(ctx, http.MethodPost, "/quests/generate/"+esc(userID), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateQuestProgress sets the quest's absolute current value.
func (c *Client) UpdateQuestProgress(ctx context.Context, questID string, value float64) (*QuestProgress, error) {
	var out QuestProgress
	body := map[string]float64{"current_value": value}
	if err := c.doJSON(ctx, http.MethodPatch, "/quests/progress/"+esc(questID), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteQuest(ctx context.Context, questID string) (*QuestCompletion, error) {
	var out QuestCompletion
	if err := c.doJSON(ctx, http.MethodPost, "/quests/complete/"+esc(questID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteQuest(ctx context.Context, questID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/quests/"+esc(questID), nil, nil, nil)
}

// ---- Calendar ----

func (c *Client) ListEvents(ctx context.Context, userID string, daysAhead int) ([]CalendarEvent, error) {
	q := url.Values{"days_ahead": {fmt.Sprint(daysAhead)}}
	var out []CalendarEvent
	err := c.doJSON(ctx, http.MethodGet, "/calendar/events/"+esc(userID), q, nil, &out)
	return out, err
}

func (c *Client) CreateEvent(ctx context.Context, userID string, req EventCreate) (*EventCreated, error) {
	var out EventCreated
	if err := c.doJSON(ctx, http.MethodPost, "/calendar/create/"+esc(userID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/calendar/event/"+esc(eventID), nil, nil, nil)
}

func (c *Client) SyncCalendar(ctx context.Context, userID string, daysAhead int) (*SyncResult, error) {
	q := url.Values{"days_ahead": {fmt.Sprint(daysAhead)}}
	var out SyncResult
	if err := c.doJSON(ctx, http.MethodPost, "/calendar/sync/"+esc(userID), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CalendarDebug asks whether the user has a linked Google credential.
func (c *Client) CalendarDebug(ctx context.Context, userID string) (*CalendarCredential, error) {
	var out CalendarCredential
	if err := c.doJSON(ctx, http.MethodGet, "/calendar/debug/"+esc(userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- Goals ----

func (c *Client) ListGoals(ctx context.Context, userID string) ([]Goal, error) {
	var out []Goal
	err := c.doJSON(ctx, http.MethodGet, "/goals/user/"+esc(userID), nil, nil, &out)
	return out, err
}

func (c *Client) CreateGoal(ctx context.Context, userID string, req GoalCreate) (*GoalCreated, error) {
	var out GoalCreated
	if err := c.doJSON(ctx, http.MethodPost, "/goals/create/"+esc(userID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteGoalMilestone(ctx context.Context, goalID, milestoneID string) (*MilestoneCompletion, error) {
	var out MilestoneCompletion
	path := "/goals/complete-milestone/" + esc(goalID) + "/" + esc(milestoneID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteGoal(ctx context.Context, goalID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/goals/"+esc(goalID), nil, nil, nil)
}

// ---- Ultimate goals ----

func (c *Client) ListUltimateGoals(ctx context.Context, userID string) ([]UltimateGoal, error) {
	var out []UltimateGoal
	err := c.doJSON(ctx, http.MethodGet, "/ultimate-goals/user/"+esc(userID), nil, nil, &out)
	return out, err
}

func (c *Client) CreateCustomUltimateGoal(ctx context.Context, userID string, req CustomGoalCreate) (*CustomGoalCreated, error) {
	var out CustomGoalCreated
	if err := c.doJSON(ctx, http.MethodPost, "/ultimate-goals/create-custom/"+esc(userID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteUltimateMilestone(ctx context.Context, goalID, milestoneID string) (*MilestoneCompletion, error) {
	var out MilestoneCompletion
	path := "/ultimate-goals/complete/" + esc(goalID) + "/" + esc(milestoneID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUltimateGoal(ctx context.Context, goalID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/ultimate-goals/"+esc(goalID), nil, nil, nil)
}

// ---- Onboarding ----

func (c *Client) SubmitAssessment(ctx context.Context, req AssessmentCreate) error {
	return c.doJSON(ctx, http.MethodPost, "/assessments/", nil, req, nil)
}

func (c *Client) CompleteOnboarding(ctx context.Context, userID string, req OnboardingComplete) error {
	return c.doJSON(ctx, http.MethodPost, "/assessments/complete-onboarding/"+esc(userID), nil, req, nil)
}

// ---- Chat ----

func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	var out ChatReply
	if err := c.doJSON(ctx, http.MethodPost, "/chat/", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
