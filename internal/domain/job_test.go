package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestParseJobStateFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    JobState
		wantErr bool
	}{
		{name: "queued", input: "QUEUED", want: JobStateQueued},
		{name: "lowercase running", input: "running", want: JobStateRunning},
		{name: "padded completed", input: "  completed ", want: JobStateCompleted},
		{name: "unknown", input: "PAUSED", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseJobStateFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseJobStateFromString(%q) error = %v, want ErrValidation", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseJobStateFromString(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("ParseJobStateFromString(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestJobStateIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := []JobState{JobStateCompleted, JobStateFailed, JobStateCanceled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []JobState{JobStateQueued, JobStateRunning} {
		if s.IsTerminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestSubmitBulkJobInputNormalizeDefaults(t *testing.T) {
	t.Parallel()

	in := SubmitBulkJobInput{}
	in.Normalize()

	if in.LoopSize != DefaultLoopSize {
		t.Fatalf("LoopSize = %d, want %d", in.LoopSize, DefaultLoopSize)
	}
	if in.InterLoopPause != DefaultInterLoopPause {
		t.Fatalf("InterLoopPause = %s, want %s", in.InterLoopPause, DefaultInterLoopPause)
	}
	if in.RatePerSecond != DefaultRatePerSecond {
		t.Fatalf("RatePerSecond = %d, want %d", in.RatePerSecond, DefaultRatePerSecond)
	}

	custom := SubmitBulkJobInput{LoopSize: 50, InterLoopPause: time.Second, RatePerSecond: 5}
	custom.Normalize()
	if custom.LoopSize != 50 || custom.InterLoopPause != time.Second || custom.RatePerSecond != 5 {
		t.Fatal("Normalize() should not overwrite explicit tunables")
	}
}

func TestSubmitBulkJobInputValidate(t *testing.T) {
	t.Parallel()

	valid := func() SubmitBulkJobInput {
		in := SubmitBulkJobInput{
			OwnerID:    "owner-1",
			Recipients: []string{"905551112233", "14155550100"},
			Template:   TemplateRef{Name: "welcome", LanguageCode: "en"},
		}
		in.Normalize()
		return in
	}

	t.Run("valid input", func(t *testing.T) {
		t.Parallel()
		in := valid()
		if err := in.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	})

	t.Run("missing owner", func(t *testing.T) {
		t.Parallel()
		in := valid()
		in.OwnerID = "  "
		if err := in.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("Validate() error = %v, want ErrValidation", err)
		}
	})

	t.Run("empty recipients rejected", func(t *testing.T) {
		t.Parallel()
		in := valid()
		in.Recipients = nil
		if err := in.Validate(); !errors.Is(err, ErrSubmissionRejected) {
			t.Fatalf("Validate() error = %v, want ErrSubmissionRejected", err)
		}
	})

	t.Run("over recipient cap rejected", func(t *testing.T) {
		t.Parallel()
		in := valid()
		in.Recipients = make([]string, MaxRecipientsPerJob+1)
		for i := range in.Recipients {
			in.Recipients[i] = "905551112233"
		}
		if err := in.Validate(); !errors.Is(err, ErrSubmissionRejected) {
			t.Fatalf("Validate() error = %v, want ErrSubmissionRejected", err)
		}
	})

	t.Run("bad address", func(t *testing.T) {
		t.Parallel()
		in := valid()
		in.Recipients = []string{"905551112233", "+90 555 111 22 33"}
		if err := in.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("Validate() error = %v, want ErrValidation", err)
		}
	})
}

func TestIsNormalizedRecipient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"905551112233", true},
		{"1415555", true},
		{strings.Repeat("9", 15), true},
		{strings.Repeat("9", 16), false},
		{"141555", false},
		{"+905551112233", false},
		{"90555111223a", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsNormalizedRecipient(tt.input); got != tt.want {
			t.Fatalf("IsNormalizedRecipient(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestChunkRecipients(t *testing.T) {
	t.Parallel()

	recipients := make([]string, 450)
	for i := range recipients {
		recipients[i] = fmt.Sprintf("90555%07d", i)
	}

	chunks := ChunkRecipients(recipients, 200)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if len(chunks[0]) != 200 || len(chunks[1]) != 200 || len(chunks[2]) != 50 {
		t.Fatalf("chunk sizes = %d,%d,%d, want 200,200,50", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}

	var flat []string
	for _, chunk := range chunks {
		flat = append(flat, chunk...)
	}
	for i := range recipients {
		if flat[i] != recipients[i] {
			t.Fatalf("order broken at %d: %q != %q", i, flat[i], recipients[i])
		}
	}

	if got := TotalLoops(450, 200); got != 3 {
		t.Fatalf("TotalLoops(450, 200) = %d, want 3", got)
	}
	if got := TotalLoops(400, 200); got != 2 {
		t.Fatalf("TotalLoops(400, 200) = %d, want 2", got)
	}
	if got := TotalLoops(0, 200); got != 0 {
		t.Fatalf("TotalLoops(0, 200) = %d, want 0", got)
	}
}

func TestNewBulkJobDefaultsCampaignID(t *testing.T) {
	t.Parallel()

	in := SubmitBulkJobInput{
		OwnerID:    "owner-1",
		Recipients: []string{"905551112233"},
	}
	in.Normalize()

	job := NewBulkJob("job-1", in, time.Now())
	if job.CampaignID != "campaign-job-1" {
		t.Fatalf("CampaignID = %q, want campaign-job-1", job.CampaignID)
	}
	if job.State() != JobStateQueued {
		t.Fatalf("state = %s, want QUEUED", job.State())
	}
	if job.TotalLoops != 1 {
		t.Fatalf("TotalLoops = %d, want 1", job.TotalLoops)
	}

	in.CampaignID = "spring-sale"
	job = NewBulkJob("job-2", in, time.Now())
	if job.CampaignID != "spring-sale" {
		t.Fatalf("CampaignID = %q, want spring-sale", job.CampaignID)
	}
}

func TestBulkJobLifecycle(t *testing.T) {
	t.Parallel()

	in := SubmitBulkJobInput{
		OwnerID:    "owner-1",
		Recipients: []string{"905551112233", "905551112234", "905551112235"},
	}
	in.Normalize()
	job := NewBulkJob("job-1", in, time.Now())

	job.MarkRunning()
	if job.State() != JobStateRunning {
		t.Fatalf("state = %s, want RUNNING", job.State())
	}

	job.AppendOutcomes([]RecipientOutcome{
		{To: "905551112233", OK: true, ProviderMessageID: "wamid.1"},
		{To: "905551112234", OK: false, Failure: &SendFailure{Kind: "TRANSIENT", Detail: "timeout"}},
		{To: "905551112235", OK: true, ProviderMessageID: "wamid.2"},
	})

	sent, failed := job.Counts()
	if sent != 2 || failed != 1 {
		t.Fatalf("counts = %d/%d, want 2/1", sent, failed)
	}

	job.Finish(JobStateCompleted, "")
	if job.State() != JobStateCompleted {
		t.Fatalf("state = %s, want COMPLETED", job.State())
	}

	// Terminal state is sticky.
	job.Finish(JobStateFailed, "late failure")
	if job.State() != JobStateCompleted {
		t.Fatalf("state = %s after second Finish, want COMPLETED", job.State())
	}
	if job.Snapshot().FailReason != "" {
		t.Fatal("second Finish should not record a reason")
	}

	if job.RequestCancel() {
		t.Fatal("RequestCancel() on a terminal job should return false")
	}
}

func TestBulkJobFinishCoercesNonTerminalState(t *testing.T) {
	t.Parallel()

	in := SubmitBulkJobInput{OwnerID: "owner-1", Recipients: []string{"905551112233"}}
	in.Normalize()
	job := NewBulkJob("job-1", in, time.Now())

	job.Finish(JobStateRunning, "broken transition")
	if job.State() != JobStateFailed {
		t.Fatalf("state = %s, want FAILED", job.State())
	}
}

func TestBulkJobRequestCancel(t *testing.T) {
	t.Parallel()

	in := SubmitBulkJobInput{OwnerID: "owner-1", Recipients: []string{"905551112233"}}
	in.Normalize()
	job := NewBulkJob("job-1", in, time.Now())
	job.MarkRunning()

	if !job.RequestCancel() {
		t.Fatal("RequestCancel() on a running job should return true")
	}
	if !job.CancelRequested() {
		t.Fatal("CancelRequested() should report true after RequestCancel")
	}
	// Cancellation is cooperative; the state changes at the next loop
	// boundary, not here.
	if job.State() != JobStateRunning {
		t.Fatalf("state = %s, want RUNNING", job.State())
	}
}

func TestBulkJobSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	in := SubmitBulkJobInput{OwnerID: "owner-1", Recipients: []string{"905551112233"}}
	in.Normalize()
	job := NewBulkJob("job-1", in, time.Now())

	job.AppendOutcomes([]RecipientOutcome{{To: "905551112233", OK: true}})
	snap := job.Snapshot()
	snap.Results[0].OK = false

	if got := job.Snapshot(); !got.Results[0].OK {
		t.Fatal("mutating a snapshot should not affect the job")
	}
	if snap.TotalCount != 1 || snap.SentCount != 1 || snap.FailedCount != 0 {
		t.Fatalf("snapshot counts = %d/%d/%d, want 1/1/0", snap.TotalCount, snap.SentCount, snap.FailedCount)
	}
}
