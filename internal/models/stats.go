package models

// ScheduleStats aggregates reporting metrics over a validated schedule,
// independent of any violations found.
type ScheduleStats struct {
	TotalBlocks    int     `json:"total_blocks"`
	AssignedBlocks int     `json:"assigned_blocks"`
	CoverageRate   float64 `json:"coverage_rate"`
	AvgWeeklyHours float64 `json:"avg_weekly_hours"`
	MinWeeklyHours float64 `json:"min_weekly_hours"`
	MaxWeeklyHours float64 `json:"max_weekly_hours"`
}

// SolverStats reports search effort for one strategy run.
type SolverStats struct {
	Algorithm  string  `json:"algorithm"`
	Branches   int     `json:"branches"`
	Conflicts  int     `json:"conflicts"`
	Iterations int     `json:"iterations"`
	Objective  float64 `json:"objective"`
	TimedOut   bool    `json:"timed_out"`
}

// GenerationStatus classifies the outcome of a generation run.
type GenerationStatus string

const (
	GenerationSuccess GenerationStatus = "success"
	GenerationPartial GenerationStatus = "partial"
	GenerationFailed  GenerationStatus = "failed"
)
