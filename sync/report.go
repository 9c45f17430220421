package sync

import (
	"time"

	"github.com/samber/lo"
)

// OutcomeStatus is the result of applying one action.
type OutcomeStatus string

const (
	StatusSucceeded OutcomeStatus = "succeeded"
	StatusFailed    OutcomeStatus = "failed"
	StatusSkipped   OutcomeStatus = "skipped"
)

// Outcome records what happened to one action.
type Outcome struct {
	Action   Action        `json:"action"`
	Status   OutcomeStatus `json:"status"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Tally counts outcomes of one action type.
type Tally struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Report summarizes a run. It is returned even when the run fails.
type Report struct {
	RunID             string               `json:"runId"`
	Direction         Direction            `json:"direction"`
	StartedAt         time.Time            `json:"startedAt"`
	FinishedAt        time.Time            `json:"finishedAt"`
	Phase             Phase                `json:"phase"`
	ConnectMessage    string               `json:"connectMessage,omitempty"`
	DisconnectMessage string               `json:"disconnectMessage,omitempty"`
	Tallies           map[ActionType]Tally `json:"tallies"`
	Outcomes          []Outcome            `json:"outcomes,omitempty"`
	Err               string               `json:"error,omitempty"`
}

func newReport(runID string, dir Direction) *Report {
	return &Report{
		RunID:     runID,
		Direction: dir,
		StartedAt: nowFunc(),
		Phase:     PhaseIdle,
		Tallies:   make(map[ActionType]Tally),
	}
}

// record appends an outcome and updates the tally of its action type.
func (r *Report) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	t := r.Tallies[o.Action.Type]
	switch o.Status {
	case StatusSucceeded:
		t.Succeeded++
	case StatusFailed:
		t.Failed++
	case StatusSkipped:
		t.Skipped++
	}
	r.Tallies[o.Action.Type] = t
}

// Succeeded returns the number of successful actions.
func (r *Report) Succeeded() int {
	return lo.SumBy(lo.Values(r.Tallies), func(t Tally) int { return t.Succeeded })
}

// Failed returns the number of failed actions.
func (r *Report) Failed() int {
	return lo.SumBy(lo.Values(r.Tallies), func(t Tally) int { return t.Failed })
}

// Skipped returns the number of skipped actions.
func (r *Report) Skipped() int {
	return lo.SumBy(lo.Values(r.Tallies), func(t Tally) int { return t.Skipped })
}

// Failures returns the failed outcomes in plan order.
func (r *Report) Failures() []Outcome {
	return lo.Filter(r.Outcomes, func(o Outcome, _ int) bool { return o.Status == StatusFailed })
}

// OK reports whether the run completed with no fatal error and no failed action.
func (r *Report) OK() bool {
	return r.Err == "" && r.Failed() == 0
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
