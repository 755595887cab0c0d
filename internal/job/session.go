// Package job implements the behavior-analysis job processor: the
// state machine for a child-video session record and the orchestration
// that runs a storage-finalize event through the analyzer pipeline.
package job

import (
	"errors"
	"sync"
	"time"
)

// Status is the lifecycle state of a Session record.
type Status string

const (
	// StatusAwaiting indicates the source video has been uploaded but
	// processing has not started.
	StatusAwaiting Status = "Awaiting"
	// StatusProcessing indicates the job processor is actively running
	// the analyzer pipeline against this session.
	StatusProcessing Status = "Processing"
	// StatusPendingReview indicates analysis completed and the session is
	// waiting on human review.
	StatusPendingReview Status = "Pending review"
	// StatusReviewed is set by downstream review actions outside this
	// processor. It is never assigned by TransitionTo here, but is
	// recognized as an idempotency-gate terminal state equivalent to
	// StatusPendingReview.
	StatusReviewed Status = "Reviewed"
	// StatusFailed indicates the job processor encountered an exception
	// while processing this session.
	StatusFailed Status = "Failed"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("job: invalid session state transition")

// validTransitions defines which state transitions the job processor
// itself may perform. Reviewed is reachable only by an external review
// action, never by this processor, so it never appears as a target here.
var validTransitions = map[Status][]Status{
	StatusAwaiting:      {StatusProcessing},
	StatusProcessing:    {StatusPendingReview, StatusFailed},
	StatusPendingReview: {},
	StatusReviewed:      {},
	StatusFailed:        {},
}

func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsProcessedTerminal reports whether status is one of the two states the
// idempotency gate treats as "already processed": Pending review or
// Reviewed.
func (s Status) IsProcessedTerminal() bool {
	return s == StatusPendingReview || s == StatusReviewed
}

// WorkerInfo is the worker-identity block attached to a session record
// on successful completion.
type WorkerInfo struct {
	Model               string  `json:"model"`
	DurationSec         float64 `json:"durationSec"`
	MergedBehaviorCount int     `json:"mergedBehaviorCount"`
}

// Session is the per-upload record the job processor reads, mutates,
// and writes back, per spec.md §3's Session Record.
type Session struct {
	mu sync.RWMutex

	StoragePath string `json:"storagePath"`
	Status      Status `json:"status"`

	ProcessingStartedAt *time.Time `json:"processingStartedAt,omitempty"`
	PendingReviewAt     *time.Time `json:"pendingReviewAt,omitempty"`
	FailedAt            *time.Time `json:"failedAt,omitempty"`
	ProcessingError     *string    `json:"processingError"`

	AnalysisJSONPath   *string `json:"analysisJsonPath,omitempty"`
	ProcessedVideoPath *string `json:"processedVideoPath,omitempty"`

	DominantCategory *string        `json:"dominantCategory,omitempty"`
	BehaviorSummary  map[string]int `json:"behaviorSummary,omitempty"`

	Worker *WorkerInfo `json:"worker,omitempty"`

	LinkedSourceVideoPath string `json:"linkedSourceVideoPath,omitempty"`
}

// TransitionTo attempts to change the session status. Returns
// ErrInvalidTransition if the transition is not allowed from the
// session's current state.
func (s *Session) TransitionTo(status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canTransition(s.Status, status) {
		return ErrInvalidTransition
	}
	s.Status = status
	return nil
}

// GetStatus returns the current status (thread-safe read).
func (s *Session) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// ReadyForIdempotentSkip reports whether this session is in a processed
// terminal state with both artifact paths populated, per spec.md §4.9
// step 4's idempotency gate.
func (s *Session) ReadyForIdempotentSkip() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status.IsProcessedTerminal() &&
		s.AnalysisJSONPath != nil && *s.AnalysisJSONPath != "" &&
		s.ProcessedVideoPath != nil && *s.ProcessedVideoPath != ""
}

// Clone returns a deep copy for safe concurrent reads.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dupString := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}

	clone := &Session{
		StoragePath:           s.StoragePath,
		Status:                s.Status,
		ProcessingError:       dupString(s.ProcessingError),
		AnalysisJSONPath:      dupString(s.AnalysisJSONPath),
		ProcessedVideoPath:    dupString(s.ProcessedVideoPath),
		DominantCategory:      dupString(s.DominantCategory),
		LinkedSourceVideoPath: s.LinkedSourceVideoPath,
	}
	if s.ProcessingStartedAt != nil {
		t := *s.ProcessingStartedAt
		clone.ProcessingStartedAt = &t
	}
	if s.PendingReviewAt != nil {
		t := *s.PendingReviewAt
		clone.PendingReviewAt = &t
	}
	if s.FailedAt != nil {
		t := *s.FailedAt
		clone.FailedAt = &t
	}
	if s.BehaviorSummary != nil {
		clone.BehaviorSummary = make(map[string]int, len(s.BehaviorSummary))
		for k, v := range s.BehaviorSummary {
			clone.BehaviorSummary[k] = v
		}
	}
	if s.Worker != nil {
		w := *s.Worker
		clone.Worker = &w
	}
	return clone
}
