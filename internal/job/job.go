// Package job provides the Job aggregate that tracks one editing request
// from submission to export, and the repository used to look jobs up
// while they run and until they expire.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/autocut/internal/job/id"
)

// Kind is the operation a job performs.
type Kind string

const (
	// KindEdit removes quiet stretches, optionally after noise reduction.
	KindEdit Kind = "edit"
	// KindDenoise removes background noise and exports WAV audio.
	KindDenoise Kind = "denoise"
	// KindCompress re-exports the source without editing.
	KindCompress Kind = "compress"
)

// IsValid returns true if the kind is known.
func (k Kind) IsValid() bool {
	return k == KindEdit || k == KindDenoise || k == KindCompress
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting for a free worker slot.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being processed.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled before it finished.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
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

// Job is one edit, denoise or compress request.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Kind is the requested operation.
	Kind Kind
	// Status is the current job state.
	Status Status
	// Stage is a human readable description of the current step.
	Stage string
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the job failed.
	Error string
	// SourcePath is the file being edited.
	SourcePath string
	// ExportPrefix is the output path without extension.
	ExportPrefix string
	// ExportPath is the written file. It equals SourcePath when nothing
	// had to be re-encoded.
	ExportPath string
	// ConfigPath is the JSON file recording the effective parameters.
	ConfigPath string
	// Edited reports whether the audio was changed.
	Edited bool
	// Upload indicates whether to upload the result to object storage.
	Upload bool
	// ResultURL is the object storage URL if Upload was true.
	ResultURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job of the given kind with a generated ID and initial
// IN_QUEUE status.
func New(kind Kind) *Job {
	return NewWithID(id.Generate(string(kind)), kind)
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string, kind Kind) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Kind:      kind,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED and sets progress to 100.
func (j *Job) Complete() error {
	if err := j.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	j.UpdateProgress(100, "complete")
	return nil
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// UpdateProgress sets the progress percentage (0-100) and stage message.
func (j *Job) UpdateProgress(progress int, stage string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress = min(max(progress, 0), 100)
	j.Stage = stage
	j.UpdatedAt = time.Now()
}

// SetOutput records the exported file, the parameter file and whether the
// audio was edited.
func (j *Job) SetOutput(exportPath, configPath string, edited bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ExportPath = exportPath
	j.ConfigPath = configPath
	j.Edited = edited
	j.UpdatedAt = time.Now()
}

// SetResultURL records the uploaded location of the export.
func (j *Job) SetResultURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ResultURL = url
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:           j.ID,
		Kind:         j.Kind,
		Status:       j.Status,
		Stage:        j.Stage,
		Progress:     j.Progress,
		Error:        j.Error,
		SourcePath:   j.SourcePath,
		ExportPrefix: j.ExportPrefix,
		ExportPath:   j.ExportPath,
		ConfigPath:   j.ConfigPath,
		Edited:       j.Edited,
		Upload:       j.Upload,
		ResultURL:    j.ResultURL,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
