package state

import (
	"time"

	"github.com/tbencze/alpha-pilot/pkg/types"
)

// SchedulerState is the single persisted record shared by the scheduler, the
// page-side engine reports and the control surface. It is created with
// defaults on first read and only ever overwritten, never deleted. All
// mutation goes through the store's read-modify-write Update so partial
// writes are never observable.
type SchedulerState struct {
	IsRunning bool `json:"isRunning"`
	IsEnabled bool `json:"isEnabled"`

	LastRun    string              `json:"lastRun,omitempty"`
	LastError  string              `json:"lastError,omitempty"`
	LastResult *TaskResultSnapshot `json:"lastResult,omitempty"`

	TokenSymbol    string          `json:"tokenSymbol,omitempty"`
	DailyBuyVolume *DailyAggregate `json:"dailyBuyVolume,omitempty"`

	Settings Settings `json:"settings"`

	// RequiresLogin is a non-fatal gate distinct from LastError: the page is
	// reachable but sitting behind a login prompt.
	RequiresLogin bool `json:"requiresLogin"`

	SessionStartedAt *time.Time `json:"sessionStartedAt,omitempty"`
	SessionStoppedAt *time.Time `json:"sessionStoppedAt,omitempty"`
}

// TaskResultSnapshot is the stored copy of the most recent TASK_COMPLETE.
type TaskResultSnapshot struct {
	Success    bool            `json:"success"`
	Details    string          `json:"details,omitempty"`
	Meta       *types.TaskMeta `json:"meta,omitempty"`
	ReportedAt time.Time       `json:"reportedAt"`
}

// DailyAggregate accumulates buy volume for a single calendar day. The Date
// field gates rollover: any write under a different date resets the
// accumulators before applying the new contribution. AlphaPoints and
// NextThresholdDelta are always recomputed together from Total.
type DailyAggregate struct {
	Date               string   `json:"date"` // YYYY-MM-DD
	Total              float64  `json:"total"`
	AlphaPoints        int      `json:"alphaPoints"`
	NextThresholdDelta float64  `json:"nextThresholdDelta"`
	TradeCount         int      `json:"tradeCount"`
	FirstBalance       *float64 `json:"firstBalance,omitempty"`
}

// NewDefault returns the state used when the store has no record yet.
func NewDefault() *SchedulerState {
	return &SchedulerState{
		Settings: DefaultSettings(),
	}
}

// DateOf formats a timestamp as the aggregate's day key.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
