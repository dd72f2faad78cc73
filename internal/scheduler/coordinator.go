package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinrota/clinrota-api/internal/models"
	appErrors "github.com/clinrota/clinrota-api/pkg/errors"
)

// Solver timeout bounds. Timeout expiry is a normal termination condition,
// not a failure.
const (
	MinSolverTimeout = 5 * time.Second
	MaxSolverTimeout = 300 * time.Second
)

// DefaultResultTTL bounds idempotency-cache retention.
const DefaultResultTTL = 24 * time.Hour

// Request describes one schedule generation run.
type Request struct {
	Start             time.Time
	End               time.Time
	Algorithm         Algorithm
	PGYLevels         []int
	TemplateIDs       []string
	ResidentsPerBlock int
	Timeout           time.Duration
	IdempotencyKey    string
}

// Roster is the caller-supplied snapshot the run operates on.
type Roster struct {
	People    []models.Person
	Templates []models.RotationTemplate
	Absences  []models.Absence
	// Existing assignments inside the target range, for regeneration and
	// partial-update scenarios. They take part in compliance validation of
	// the combined schedule but are not re-emitted as new output.
	Existing []models.Assignment
}

// Result is returned to the caller for persistence and display.
type Result struct {
	RunID        string                  `json:"run_id"`
	Status       models.GenerationStatus `json:"status"`
	Assignments  []models.Assignment     `json:"assignments"`
	Violations   []models.Violation      `json:"violations"`
	CoverageRate float64                 `json:"coverage_rate"`
	Unfilled     []string                `json:"unfilled,omitempty"`
	Stats        models.SolverStats      `json:"solver_stats"`
	GeneratedAt  time.Time               `json:"generated_at"`
	// Replayed marks a result served from the idempotency cache. Replayed
	// assignments were already persisted by the original run.
	Replayed bool `json:"replayed,omitempty"`
}

// ResultCache is the idempotency store consulted before the generation lock.
type ResultCache interface {
	Get(key string) (*Result, bool)
	Set(key string, result *Result, ttl time.Duration)
}

// CoordinatorConfig tunes coordinator behaviour.
type CoordinatorConfig struct {
	ResultTTL  time.Duration
	StrictRest bool
	Logger     *zap.Logger
	Cache      ResultCache
	// DefaultTimeout applies when a request carries no timeout; it is
	// clamped like any other value.
	DefaultTimeout time.Duration
	// ResidentsPerBlock is the per-block demand when the request leaves it
	// unset.
	ResidentsPerBlock int
}

// Coordinator wraps a solver run with idempotency replay, per-range mutual
// exclusion and the wall-clock budget. State per date-range key moves
// IDLE -> RUNNING -> {DONE | FAILED} -> IDLE.
type Coordinator struct {
	cfg    CoordinatorConfig
	cache  ResultCache
	locks  *rangeLockTable
	logger *zap.Logger
	clock  func() time.Time

	mu   sync.RWMutex
	runs map[string]runEntry
}

type runEntry struct {
	result    *Result
	expiresAt time.Time
}

// NewCoordinator wires a coordinator with sane defaults.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryResultCache()
	}
	return &Coordinator{
		cfg:    cfg,
		cache:  cache,
		locks:  newRangeLockTable(),
		logger: cfg.Logger,
		clock:  nowUTC,
		runs:   make(map[string]runEntry),
	}
}

// ResultByRun returns a completed run by its id while the result is retained.
func (c *Coordinator) ResultByRun(id string) (*Result, bool) {
	c.mu.RLock()
	entry, ok := c.runs[id]
	c.mu.RUnlock()
	if !ok || c.clock().After(entry.expiresAt) {
		return nil, false
	}
	return entry.result, true
}

func replayOf(cached *Result) *Result {
	replay := *cached
	replay.Replayed = true
	return &replay
}

func (c *Coordinator) rememberRun(result *Result) {
	c.mu.Lock()
	c.runs[result.RunID] = runEntry{result: result, expiresAt: c.clock().Add(c.cfg.ResultTTL)}
	c.mu.Unlock()
}

// Generate runs one schedule generation end to end.
func (c *Coordinator) Generate(ctx context.Context, req Request, roster Roster) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	fp := Fingerprint(req)
	if cached, ok := c.cache.Get(fp); ok {
		c.logger.Info("generation replayed from idempotency cache",
			zap.String("fingerprint", fp), zap.String("run_id", cached.RunID))
		return replayOf(cached), nil
	}

	release, ok := c.locks.TryAcquire(req.Start, req.End)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrGenerationInProgress,
			fmt.Sprintf("a generation overlapping %s..%s is already running",
				req.Start.Format("2006-01-02"), req.End.Format("2006-01-02")))
	}
	defer release()

	// Another caller may have finished the identical request while we were
	// acquiring the lock.
	if cached, ok := c.cache.Get(fp); ok {
		return replayOf(cached), nil
	}

	timeout := c.solverTimeout(req)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := c.run(runCtx, req, roster)
	// Failed runs are not replayable: the fingerprint does not cover roster
	// state, so a retry after fixing the roster must reach the solver.
	if result.Status != models.GenerationFailed {
		c.cache.Set(fp, result, c.cfg.ResultTTL)
	}
	c.rememberRun(result)

	c.logger.Info("generation completed",
		zap.String("run_id", result.RunID),
		zap.String("algorithm", string(req.Algorithm)),
		zap.String("status", string(result.Status)),
		zap.Float64("coverage_rate", result.CoverageRate),
		zap.Int("violations", len(result.Violations)),
		zap.Bool("timed_out", result.Stats.TimedOut))
	return result, nil
}

func (c *Coordinator) run(ctx context.Context, req Request, roster Roster) *Result {
	people := FilterPeople(roster.People, req.PGYLevels)
	templates := FilterTemplates(roster.Templates, req.TemplateIDs)
	absences := models.NewAbsenceIndex(roster.Absences)
	blocks := models.BlocksForRange(req.Start, req.End)

	candidates := GenerateCandidates(people, templates, absences, blocks)

	demand := req.ResidentsPerBlock
	if demand <= 0 {
		demand = c.cfg.ResidentsPerBlock
	}
	problem := &Problem{
		Blocks:            blocks,
		Candidates:        candidates,
		People:            personMap(people),
		Templates:         templateMap(templates),
		Absences:          absences,
		ResidentsPerBlock: demand,
		StrictRest:        c.cfg.StrictRest,
	}

	solution := StrategyFor(req.Algorithm).Solve(ctx, problem)

	snap := &Snapshot{
		Blocks:      blocks,
		People:      problem.People,
		Templates:   problem.Templates,
		Absences:    absences,
		Assignments: append(append([]models.Assignment{}, roster.Existing...), solution.Assignments...),
	}
	violations, stats := Validator{StrictRest: c.cfg.StrictRest}.Validate(snap)

	status := models.GenerationSuccess
	switch {
	case len(solution.Assignments) == 0 && len(blocks) > 0:
		status = models.GenerationFailed
	case len(solution.Unfilled) > 0 || hasBlockingViolation(violations):
		status = models.GenerationPartial
	}

	return &Result{
		RunID:        uuid.NewString(),
		Status:       status,
		Assignments:  solution.Assignments,
		Violations:   violations,
		CoverageRate: stats.CoverageRate,
		Unfilled:     solution.Unfilled,
		Stats:        solution.Stats,
		GeneratedAt:  c.clock(),
	}
}

func hasBlockingViolation(violations []models.Violation) bool {
	for _, v := range violations {
		if v.Blocking() {
			return true
		}
	}
	return false
}

func validateRequest(req Request) error {
	if req.End.Before(req.Start) {
		return appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	if _, err := ParseAlgorithm(string(req.Algorithm)); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return nil
}

// solverTimeout resolves the run's wall-clock budget: the request value
// first, then the configured default, clamped either way.
func (c *Coordinator) solverTimeout(req Request) time.Duration {
	d := req.Timeout
	if d <= 0 {
		d = c.cfg.DefaultTimeout
	}
	return clampTimeout(d)
}

func clampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return MinSolverTimeout
	}
	if d < MinSolverTimeout {
		return MinSolverTimeout
	}
	if d > MaxSolverTimeout {
		return MaxSolverTimeout
	}
	return d
}

// Fingerprint derives the idempotency key for a request: the caller-supplied
// key when present, otherwise a digest of the normalized request fields.
func Fingerprint(req Request) string {
	if req.IdempotencyKey != "" {
		return "key:" + req.IdempotencyKey
	}
	levels := make([]string, 0, len(req.PGYLevels))
	for _, lvl := range req.PGYLevels {
		levels = append(levels, strconv.Itoa(lvl))
	}
	sort.Strings(levels)
	templates := append([]string{}, req.TemplateIDs...)
	sort.Strings(templates)

	payload := strings.Join([]string{
		models.DateOnly(req.Start).Format("2006-01-02"),
		models.DateOnly(req.End).Format("2006-01-02"),
		string(req.Algorithm),
		strings.Join(levels, ","),
		strings.Join(templates, ","),
		strconv.Itoa(req.ResidentsPerBlock),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func personMap(people []models.Person) map[string]models.Person {
	m := make(map[string]models.Person, len(people))
	for _, p := range people {
		m[p.ID] = p
	}
	return m
}

func templateMap(templates []models.RotationTemplate) map[string]models.RotationTemplate {
	m := make(map[string]models.RotationTemplate, len(templates))
	for _, t := range templates {
		m[t.ID] = t
	}
	return m
}

func nowUTC() time.Time { return time.Now().UTC() }
