package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kikiluvv/overlaycut/internal/compose"
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is a handle on one export. It is created by Manager.Start.
type Job struct {
	ID        string
	Request   compose.Request
	CreatedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	status   Status
	progress int
	blob     compose.Blob
	err      error
	final    Event
	subs     map[int]func(Event)
	nextSub  int
}

func newJob(id string, req compose.Request, cancel context.CancelFunc) *Job {
	return &Job{
		ID:        id,
		Request:   req,
		CreatedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    StatusRunning,
		subs:      make(map[int]func(Event)),
	}
}

// Progress returns the last reported percentage
func (j *Job) Progress() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Status returns the current lifecycle state
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Done is closed once the job has finished and cleaned up
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Final returns the terminal event, or nil while the job runs
func (j *Job) Final() Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.final
}

// Result returns the export result once the job is done
func (j *Job) Result() (compose.Blob, error, bool) {
	select {
	case <-j.done:
	default:
		return compose.Blob{}, nil, false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.blob, j.err, true
}

// Subscribe registers fn for future events. fn runs on the export goroutine
// and must not block. A subscriber added after the job finished receives the
// terminal event immediately.
func (j *Job) Subscribe(fn func(Event)) (unsubscribe func()) {
	j.mu.Lock()
	if j.final != nil {
		final := j.final
		j.mu.Unlock()
		fn(final)
		return func() {}
	}
	id := j.nextSub
	j.nextSub++
	j.subs[id] = fn
	j.mu.Unlock()

	return func() {
		j.mu.Lock()
		delete(j.subs, id)
		j.mu.Unlock()
	}
}

// Wait blocks until the job finishes or ctx is done
func (j *Job) Wait(ctx context.Context) (compose.Blob, error) {
	select {
	case <-j.done:
		blob, err, _ := j.Result()
		return blob, err
	case <-ctx.Done():
		return compose.Blob{}, ctx.Err()
	}
}

// Cancel stops the export and returns after its scratch files are removed.
// Cancelling a finished job does nothing.
func (j *Job) Cancel() {
	j.cancel()
	<-j.done
}

func (j *Job) setProgress(p int) {
	j.mu.Lock()
	if p <= j.progress || j.final != nil {
		j.mu.Unlock()
		return
	}
	j.progress = p
	j.mu.Unlock()
	j.emit(ProgressEvent{JobID: j.ID, Percent: p})
}

func (j *Job) finish(blob compose.Blob, err error) {
	var (
		status Status
		final  Event
	)
	switch {
	case err == nil:
		status = StatusCompleted
		final = CompleteEvent{JobID: j.ID, MimeType: blob.MimeType, Size: len(blob.Data), Notes: blob.Notes}
	case errors.Is(err, context.Canceled):
		status = StatusCancelled
		final = CancelledEvent{JobID: j.ID}
	default:
		status = StatusFailed
		ev := ErrorEvent{JobID: j.ID, Reason: err.Error()}
		var exportErr *compose.ExportError
		if errors.As(err, &exportErr) {
			cfg := exportErr.Config
			ev.Config = &cfg
		}
		final = ev
	}

	j.mu.Lock()
	j.status = status
	j.blob = blob
	j.err = err
	j.final = final
	subs := j.snapshotSubs()
	j.subs = nil
	j.mu.Unlock()

	close(j.done)
	for _, fn := range subs {
		fn(final)
	}
}

func (j *Job) emit(ev Event) {
	j.mu.Lock()
	subs := j.snapshotSubs()
	j.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (j *Job) snapshotSubs() []func(Event) {
	out := make([]func(Event), 0, len(j.subs))
	for _, fn := range j.subs {
		out = append(out, fn)
	}
	return out
}
