package scheduler

import "fmt"

// ContentAgentUnavailableError means the target tab is connected but its page
// agent never became ready within the retry budget.
type ContentAgentUnavailableError struct {
	TabID    string
	Attempts int
}

func (e *ContentAgentUnavailableError) Error() string {
	return fmt.Sprintf("page agent on tab %s unavailable after %d attempts", e.TabID, e.Attempts)
}

// TabUnavailableError means no usable tab exists for the configured token.
// Not retried: a tab that is gone cannot come back by waiting.
type TabUnavailableError struct {
	TabID string
}

func (e *TabUnavailableError) Error() string {
	if e.TabID == "" {
		return "no tab matches the configured token"
	}
	return fmt.Sprintf("tab %s unavailable", e.TabID)
}
