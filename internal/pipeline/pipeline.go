package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/overlaycut/internal/compose"
)

var (
	// ErrExportInProgress rejects a start while another export runs
	ErrExportInProgress = errors.New("an export is already in progress")
	// ErrJobNotFound is returned for unknown job ids
	ErrJobNotFound = errors.New("export job not found")
)

// DefaultRetained is how many finished jobs are kept for download
const DefaultRetained = 8

// Exporter runs one export to completion
type Exporter interface {
	Export(ctx context.Context, req compose.Request, progress compose.ProgressFunc) (compose.Blob, error)
}

// Manager runs exports off the caller's goroutine, one at a time
type Manager struct {
	logger   zerolog.Logger
	exporter Exporter
	retained int

	mu       sync.Mutex
	active   *Job
	jobs     map[string]*Job
	finished []string
}

// New creates a manager
func New(logger zerolog.Logger, exporter Exporter) *Manager {
	return &Manager{
		logger:   logger.With().Str("component", "pipeline").Logger(),
		exporter: exporter,
		retained: DefaultRetained,
		jobs:     make(map[string]*Job),
	}
}

// Start launches an export. The overlay snapshot is copied, so later edits by
// the caller do not affect the running job. A second start while one export is
// active fails with ErrExportInProgress and changes nothing.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, fmt.Errorf("start export: %w (job %s)", ErrExportInProgress, m.active.ID)
	}

	exportReq := req.Export
	exportReq.Overlays = exportReq.Overlays.Clone()

	// the job outlives the request that started it
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := newJob(uuid.New().String(), exportReq, cancel)
	m.active = job
	m.jobs[job.ID] = job

	m.logger.Info().Str("job", job.ID).Str("source", exportReq.Source).Msg("export started")

	go m.run(jobCtx, job)
	return job, nil
}

func (m *Manager) run(ctx context.Context, job *Job) {
	defer job.cancel()

	blob, err := m.exporter.Export(ctx, job.Request, job.setProgress)
	if err != nil && ctx.Err() != nil {
		err = context.Canceled
	}

	m.mu.Lock()
	if m.active == job {
		m.active = nil
	}
	m.finished = append(m.finished, job.ID)
	for len(m.finished) > m.retained {
		delete(m.jobs, m.finished[0])
		m.finished = m.finished[1:]
	}
	m.mu.Unlock()

	switch {
	case err == nil:
		m.logger.Info().Str("job", job.ID).Int("bytes", len(blob.Data)).Msg("export complete")
	case errors.Is(err, context.Canceled):
		m.logger.Info().Str("job", job.ID).Msg("export cancelled")
	default:
		m.logger.Error().Err(err).Str("job", job.ID).Msg("export failed")
	}

	job.finish(blob, err)
}

// Cancel stops a job and waits for its cleanup
func (m *Manager) Cancel(req CancelRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	job, ok := m.Get(req.JobID)
	if !ok {
		return fmt.Errorf("cancel %s: %w", req.JobID, ErrJobNotFound)
	}
	job.Cancel()
	return nil
}

// Dispatch routes a decoded request. Start returns the new job, Cancel the
// cancelled one.
func (m *Manager) Dispatch(ctx context.Context, req Request) (*Job, error) {
	switch r := req.(type) {
	case StartRequest:
		return m.Start(ctx, r)
	case CancelRequest:
		if err := m.Cancel(r); err != nil {
			return nil, err
		}
		job, _ := m.Get(r.JobID)
		return job, nil
	default:
		return nil, fmt.Errorf("unsupported request %T", req)
	}
}

// Get looks up a running or recently finished job
func (m *Manager) Get(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	return job, ok
}

// Active returns the running job, or nil
func (m *Manager) Active() *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Close cancels the active export and waits for it
func (m *Manager) Close() error {
	if job := m.Active(); job != nil {
		job.Cancel()
	}
	return nil
}
