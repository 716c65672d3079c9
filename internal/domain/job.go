package domain

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// JobState represents the lifecycle state of a bulk job.
type JobState string

const (
	JobStateQueued    JobState = "QUEUED"
	JobStateRunning   JobState = "RUNNING"
	JobStateCompleted JobState = "COMPLETED"
	JobStateFailed    JobState = "FAILED"
	JobStateCanceled  JobState = "CANCELED"
)

func (s JobState) String() string { return string(s) }

func (s JobState) IsValid() bool {
	switch s {
	case JobStateQueued, JobStateRunning, JobStateCompleted, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition leaves the state.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}

func ParseJobStateFromString(s string) (JobState, error) {
	st := JobState(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid job state %q", ErrValidation, s)
	}
	return st, nil
}

// SendFailure is the classified failure recorded for a recipient.
// Kind matches provider error classification; Detail is diagnostic only.
type SendFailure struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

func (f *SendFailure) Error() string {
	if f == nil {
		return "<nil>"
	}
	if f.Detail == "" {
		return f.Kind
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// RecipientOutcome is the per-recipient result of one logical send.
type RecipientOutcome struct {
	To                string       `json:"to"`
	OK                bool         `json:"ok"`
	ProviderMessageID string       `json:"providerMessageId,omitempty"`
	Failure           *SendFailure `json:"error,omitempty"`
}

// Submission limits and defaults.
const (
	DefaultLoopSize        = 200
	DefaultInterLoopPause  = 2 * time.Second
	DefaultRatePerSecond   = 10
	MaxRecipientsPerJob    = 50000
	minRecipientDigits     = 7
	maxRecipientDigits     = 15
)

// SubmitBulkJobInput is the caller-facing shape of one bulk-send request.
type SubmitBulkJobInput struct {
	OwnerID               string
	CampaignID            string
	Recipients            []string
	Template              TemplateRef
	PerRecipientVariables map[string]map[string]string
	LoopSize              int
	InterLoopPause        time.Duration
	RatePerSecond         int
}

// Normalize fills unset tunables with their defaults.
func (in *SubmitBulkJobInput) Normalize() {
	if in.LoopSize <= 0 {
		in.LoopSize = DefaultLoopSize
	}
	if in.InterLoopPause <= 0 {
		in.InterLoopPause = DefaultInterLoopPause
	}
	if in.RatePerSecond <= 0 {
		in.RatePerSecond = DefaultRatePerSecond
	}
}

func (in *SubmitBulkJobInput) Validate() error {
	if strings.TrimSpace(in.OwnerID) == "" {
		return fmt.Errorf("%w: ownerId is required", ErrValidation)
	}
	if len(in.Recipients) == 0 {
		return fmt.Errorf("%w: recipients is required", ErrSubmissionRejected)
	}
	if len(in.Recipients) > MaxRecipientsPerJob {
		return fmt.Errorf("%w: recipient count %d exceeds limit %d",
			ErrSubmissionRejected, len(in.Recipients), MaxRecipientsPerJob)
	}
	for i, to := range in.Recipients {
		if !IsNormalizedRecipient(to) {
			return fmt.Errorf("%w: recipient %d (%q) is not a normalized address", ErrValidation, i, to)
		}
	}
	if err := in.Template.Validate(); err != nil {
		return err
	}
	return nil
}

// IsNormalizedRecipient reports whether an address is a digits-only
// phone identifier between 7 and 15 characters. Normalization itself
// happens upstream; the engine only re-checks the shape.
func IsNormalizedRecipient(to string) bool {
	if len(to) < minRecipientDigits || len(to) > maxRecipientDigits {
		return false
	}
	for _, r := range to {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// TotalLoops returns ceil(recipients / loopSize).
func TotalLoops(recipients, loopSize int) int {
	if recipients <= 0 || loopSize <= 0 {
		return 0
	}
	return (recipients + loopSize - 1) / loopSize
}

// ChunkRecipients partitions recipients into order-preserving loops.
// Loop i holds recipients[i*loopSize : min((i+1)*loopSize, len)]; the
// last loop may be shorter. Concatenating the chunks in order yields
// the input exactly.
func ChunkRecipients(recipients []string, loopSize int) [][]string {
	total := TotalLoops(len(recipients), loopSize)
	chunks := make([][]string, 0, total)
	for start := 0; start < len(recipients); start += loopSize {
		end := start + loopSize
		if end > len(recipients) {
			end = len(recipients)
		}
		chunks = append(chunks, recipients[start:end])
	}
	return chunks
}

// BulkJob is one bulk-send request and its accumulated execution state.
// All mutable fields are written only by the job's own run goroutine;
// readers take eventually-consistent copies via Snapshot.
type BulkJob struct {
	ID             string
	OwnerID        string
	CampaignID     string
	Recipients     []string
	LoopSize       int
	TotalLoops     int
	InterLoopPause time.Duration
	RatePerSecond  int
	CreatedAt      time.Time

	mu          sync.Mutex
	state       JobState
	sentCount   int
	failedCount int
	results     []RecipientOutcome
	failReason  string
	canceled    bool
}

// NewBulkJob builds a registered-but-not-started job in the QUEUED state.
func NewBulkJob(id string, in SubmitBulkJobInput, now time.Time) *BulkJob {
	campaignID := strings.TrimSpace(in.CampaignID)
	if campaignID == "" {
		campaignID = "campaign-" + id
	}

	return &BulkJob{
		ID:             id,
		OwnerID:        in.OwnerID,
		CampaignID:     campaignID,
		Recipients:     in.Recipients,
		LoopSize:       in.LoopSize,
		TotalLoops:     TotalLoops(len(in.Recipients), in.LoopSize),
		InterLoopPause: in.InterLoopPause,
		RatePerSecond:  in.RatePerSecond,
		CreatedAt:      now,
		state:          JobStateQueued,
		results:        make([]RecipientOutcome, 0, len(in.Recipients)),
	}
}

// MarkRunning transitions QUEUED -> RUNNING. It is a no-op once the
// job left the QUEUED state.
func (j *BulkJob) MarkRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == JobStateQueued {
		j.state = JobStateRunning
	}
}

// AppendOutcomes records one loop's results and advances running totals.
func (j *BulkJob) AppendOutcomes(outcomes []RecipientOutcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, outcome := range outcomes {
		j.results = append(j.results, outcome)
		if outcome.OK {
			j.sentCount++
		} else {
			j.failedCount++
		}
	}
}

// Finish moves the job into a terminal state exactly once. Later calls
// are ignored so a recover path cannot overwrite an earlier terminal
// transition.
func (j *BulkJob) Finish(state JobState, reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return
	}
	if !state.IsTerminal() {
		state = JobStateFailed
	}
	j.state = state
	j.failReason = reason
}

// RequestCancel flips the cooperative cancellation flag. The run
// goroutine checks it at loop boundaries only.
func (j *BulkJob) RequestCancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return false
	}
	j.canceled = true
	return true
}

func (j *BulkJob) CancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.canceled
}

// Counts returns the current running totals.
func (j *BulkJob) Counts() (sent, failed int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sentCount, j.failedCount
}

func (j *BulkJob) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// JobSnapshot is a read-only copy of a job handed to status queries.
type JobSnapshot struct {
	ID             string
	OwnerID        string
	CampaignID     string
	State          JobState
	LoopSize       int
	TotalLoops     int
	TotalCount     int
	SentCount      int
	FailedCount    int
	Results        []RecipientOutcome
	FailReason     string
	CreatedAt      time.Time
}

// Snapshot copies the job's mutable fields under its lock. Readers may
// observe a job mid-update; the copy is internally consistent.
func (j *BulkJob) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	results := make([]RecipientOutcome, len(j.results))
	copy(results, j.results)

	return JobSnapshot{
		ID:          j.ID,
		OwnerID:     j.OwnerID,
		CampaignID:  j.CampaignID,
		State:       j.state,
		LoopSize:    j.LoopSize,
		TotalLoops:  j.TotalLoops,
		TotalCount:  len(j.Recipients),
		SentCount:   j.sentCount,
		FailedCount: j.failedCount,
		Results:     results,
		FailReason:  j.failReason,
		CreatedAt:   j.CreatedAt,
	}
}
