package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kikiluvv/overlaycut/internal/compose"
)

// RequestKind tags a request
type RequestKind string

const (
	RequestStart  RequestKind = "start"
	RequestCancel RequestKind = "cancel"
)

// Request is a command sent to the export worker
type Request interface {
	Kind() RequestKind
	Validate() error
}

// StartRequest asks for a new export
type StartRequest struct {
	Export compose.Request `json:"export"`
}

func (StartRequest) Kind() RequestKind { return RequestStart }

// Validate checks the export parameters
func (r StartRequest) Validate() error {
	return r.Export.Validate()
}

// CancelRequest asks to stop a running export
type CancelRequest struct {
	JobID string `json:"jobId"`
}

func (CancelRequest) Kind() RequestKind { return RequestCancel }

// Validate checks that a job is named
func (r CancelRequest) Validate() error {
	if r.JobID == "" {
		return errors.New("cancel request: job id is required")
	}
	return nil
}

// EventKind tags an event
type EventKind string

const (
	EventProgress  EventKind = "progress"
	EventComplete  EventKind = "complete"
	EventError     EventKind = "error"
	EventCancelled EventKind = "cancelled"
)

// Event is a message emitted by a job
type Event interface {
	Kind() EventKind
	Job() string
}

// ProgressEvent reports export progress in percent
type ProgressEvent struct {
	JobID   string `json:"jobId"`
	Percent int    `json:"percent"`
}

func (ProgressEvent) Kind() EventKind { return EventProgress }
func (e ProgressEvent) Job() string   { return e.JobID }

// CompleteEvent reports a finished export. The bytes stay with the job.
type CompleteEvent struct {
	JobID    string         `json:"jobId"`
	MimeType string         `json:"mimeType"`
	Size     int            `json:"size"`
	Notes    []compose.Note `json:"notes,omitempty"`
}

func (CompleteEvent) Kind() EventKind { return EventComplete }
func (e CompleteEvent) Job() string   { return e.JobID }

// ErrorEvent reports a failed export
type ErrorEvent struct {
	JobID  string                `json:"jobId"`
	Reason string                `json:"reason"`
	Config *compose.ExportConfig `json:"config,omitempty"`
}

func (ErrorEvent) Kind() EventKind { return EventError }
func (e ErrorEvent) Job() string   { return e.JobID }

// CancelledEvent acknowledges a cancellation after cleanup finished
type CancelledEvent struct {
	JobID string `json:"jobId"`
}

func (CancelledEvent) Kind() EventKind { return EventCancelled }
func (e CancelledEvent) Job() string   { return e.JobID }

// Envelope is the wire form of requests and events
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeEvent wraps an event in an envelope
func EncodeEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: string(ev.Kind()), Data: data})
}

// DecodeRequest parses and validates an enveloped request
func DecodeRequest(b []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	var req Request
	switch RequestKind(env.Type) {
	case RequestStart:
		var r StartRequest
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return nil, fmt.Errorf("decode start request: %w", err)
		}
		req = r
	case RequestCancel:
		var r CancelRequest
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return nil, fmt.Errorf("decode cancel request: %w", err)
		}
		req = r
	default:
		return nil, fmt.Errorf("unknown request type %q", env.Type)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}
