package transcript

import (
	"context"
	"time"

	logpkg "github.com/rzbill/triage/pkg/log"
)

// Transcript is the payload handed to the delivery collaborator when a
// conversation resolves.
type Transcript struct {
	ThreadID        string    `json:"threadId"`
	CustomerName    string    `json:"customerName"`
	AgentName       string    `json:"agentName"`
	ProblemReported string    `json:"problemReported"`
	SolutionGiven   string    `json:"solutionProvided"`
	Summary         string    `json:"summary"`
	ResolutionDate  time.Time `json:"resolutionDate"`
}

// Delivery sends one transcript. Implementations own their retry policy;
// callers do not wait on or react to the outcome.
type Delivery interface {
	Deliver(ctx context.Context, t Transcript) error
}

// LogDelivery records transcripts in the server log. It is the default
// when no broker is configured.
type LogDelivery struct {
	logger logpkg.Logger
}

// NewLogDelivery creates a LogDelivery.
func NewLogDelivery(logger logpkg.Logger) *LogDelivery {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &LogDelivery{logger: logger.With(logpkg.Component("transcript"))}
}

// Deliver logs the transcript.
func (d *LogDelivery) Deliver(_ context.Context, t Transcript) error {
	d.logger.Info("transcript delivered",
		logpkg.Str("thread_id", t.ThreadID),
		logpkg.Str("customer", t.CustomerName),
		logpkg.Str("agent", t.AgentName),
		logpkg.Str("summary", t.Summary),
	)
	return nil
}
