package api

import (
	"github.com/kikiluvv/overlaycut/internal/compose"
	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/overlays"
	"github.com/kikiluvv/overlaycut/internal/pipeline"
	"github.com/kikiluvv/overlaycut/internal/render"
)

type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeS       int64  `json:"uptime_s"`
	FFmpeg        string `json:"ffmpeg,omitempty"`
	ExportRunning bool   `json:"export_running"`
}

// ExportRequest is the JSON body of POST /exports
type ExportRequest struct {
	MediaPath     string            `json:"mediaPath"`
	MediaDuration float64           `json:"mediaDuration"`
	Overlays      overlays.Snapshot `json:"overlays"`
	TrimStart     float64           `json:"trimStart"`
	TrimEnd       float64           `json:"trimEnd"`
	Quality       render.Quality    `json:"quality"`
	Container     render.Container  `json:"container"`
	PreviewSize   geometry.Size     `json:"previewSize"`
	OutputSize    geometry.Size     `json:"outputSize"`
}

// ToCompose converts the wire request into an export request
func (r ExportRequest) ToCompose() compose.Request {
	return compose.Request{
		Source:        r.MediaPath,
		MediaDuration: r.MediaDuration,
		Overlays:      r.Overlays,
		TrimStart:     r.TrimStart,
		TrimEnd:       r.TrimEnd,
		Quality:       r.Quality,
		Container:     r.Container,
		PreviewSize:   r.PreviewSize,
		OutputSize:    r.OutputSize,
	}
}

type ExportResponse struct {
	JobID string `json:"jobId"`
}

type JobResponse struct {
	ID        string                `json:"id"`
	Status    pipeline.Status       `json:"status"`
	Progress  int                   `json:"progress"`
	MimeType  string                `json:"mimeType,omitempty"`
	Size      int                   `json:"size,omitempty"`
	Error     string                `json:"error,omitempty"`
	Config    *compose.ExportConfig `json:"config,omitempty"`
	Notes     []compose.Note        `json:"notes,omitempty"`
	CreatedAt string                `json:"createdAt"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JobToResponse summarizes a job and, once finished, its outcome
func JobToResponse(j *pipeline.Job) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Status:    j.Status(),
		Progress:  j.Progress(),
		CreatedAt: j.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	switch ev := j.Final().(type) {
	case pipeline.CompleteEvent:
		resp.MimeType = ev.MimeType
		resp.Size = ev.Size
		resp.Notes = ev.Notes
	case pipeline.ErrorEvent:
		resp.Error = ev.Reason
		resp.Config = ev.Config
	}
	return resp
}
