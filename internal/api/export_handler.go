package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kikiluvv/overlaycut/internal/pipeline"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	eventBuffer  = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the API binds to localhost and serves local editors
	CheckOrigin: func(r *http.Request) bool { return true },
}

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "BAD_REQUEST")
			return
		}

		job, err := cfg.Manager.Start(r.Context(), pipeline.StartRequest{Export: req.ToCompose()})
		if errors.Is(err, pipeline.ErrExportInProgress) {
			WriteError(w, http.StatusConflict, err.Error(), "EXPORT_IN_PROGRESS")
			return
		}
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		w.Header().Set("Location", "/exports/"+job.ID)
		WriteJSON(w, http.StatusAccepted, ExportResponse{JobID: job.ID})
	}
}

func lookupJob(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*pipeline.Job, bool) {
	id := chi.URLParam(r, "id")
	job, ok := cfg.Manager.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
		return nil, false
	}
	return job, true
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := lookupJob(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := lookupJob(cfg, w, r)
		if !ok {
			return
		}
		job.Cancel()
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func downloadExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := lookupJob(cfg, w, r)
		if !ok {
			return
		}

		blob, err, done := job.Result()
		switch {
		case !done:
			WriteError(w, http.StatusConflict, "export still running", "NOT_READY")
			return
		case err != nil:
			WriteError(w, http.StatusGone, fmt.Sprintf("export did not complete: %v", err), "EXPORT_FAILED")
			return
		}

		ext := ".mp4"
		if blob.MimeType == "video/webm" {
			ext = ".webm"
		}
		w.Header().Set("Content-Type", blob.MimeType)
		w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="export-%s%s"`, job.ID[:8], ext))
		w.WriteHeader(http.StatusOK)
		w.Write(blob.Data)
	}
}

// exportEventsHandler streams a job's events over a websocket. The client may
// send an enveloped cancel request for the same job.
func exportEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := lookupJob(cfg, w, r)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn().Err(err).Str("job", job.ID).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		events := make(chan pipeline.Event, eventBuffer)
		unsubscribe := job.Subscribe(func(ev pipeline.Event) {
			select {
			case events <- ev:
			default:
				// dropped progress is superseded by later updates and the
				// terminal event is read from the job itself
			}
		})
		defer unsubscribe()

		go readCommands(cfg, conn, job)

		send := func(ev pipeline.Event) error {
			msg, err := pipeline.EncodeEvent(ev)
			if err != nil {
				return err
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			return conn.WriteMessage(websocket.TextMessage, msg)
		}
		finish := func(ev pipeline.Event) {
			send(ev)
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(ev.Kind())))
		}

		if job.Final() == nil {
			if err := send(pipeline.ProgressEvent{JobID: job.ID, Percent: job.Progress()}); err != nil {
				return
			}
		}

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			select {
			case ev := <-events:
				if ev.Kind() != pipeline.EventProgress {
					finish(ev)
					return
				}
				if err := send(ev); err != nil {
					return
				}
			case <-job.Done():
				for {
					select {
					case ev := <-events:
						if ev.Kind() != pipeline.EventProgress {
							finish(ev)
							return
						}
						send(ev)
					default:
						finish(job.Final())
						return
					}
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}

func readCommands(cfg ServerConfig, conn *websocket.Conn, job *pipeline.Job) {
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		req, err := pipeline.DecodeRequest(msg)
		if err != nil {
			cfg.Logger.Debug().Err(err).Str("job", job.ID).Msg("ignoring invalid websocket message")
			continue
		}
		cancel, ok := req.(pipeline.CancelRequest)
		if !ok || cancel.JobID != job.ID {
			cfg.Logger.Debug().Str("kind", string(req.Kind())).Str("job", job.ID).Msg("ignoring websocket request")
			continue
		}
		go job.Cancel()
	}
}
