package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"payment-widget/internal/channel"
	"payment-widget/internal/domain"
	"payment-widget/internal/parser"
	"payment-widget/internal/protocol"
	"payment-widget/internal/store"
	"payment-widget/internal/widget"
)

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Mount handles GET /widget. The init query parameter is the fallback INIT
// payload; a malformed one is ignored.
func (s *Server) Mount(w http.ResponseWriter, r *http.Request) {
	id := s.newID()
	for s.store.Exists(id) {
		id = s.newID()
	}

	outbox := channel.NewQueueTransport()
	wid := widget.New(outbox, s.cfg, widget.WithLogger(s.logger.With(zap.String("session", id))))
	if err := wid.Mount(); err != nil {
		s.logger.Error("mounting widget", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "widget failed to mount")
		return
	}
	applied := wid.ApplyLaunchParams(r.URL.Query())

	entry := &store.Entry{ID: id, Widget: wid, Outbox: outbox, CreatedAt: s.now()}
	if err := s.store.Save(entry); err != nil {
		s.logger.Error("saving session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session could not be stored")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"sessionId":   id,
		"initApplied": applied,
	})
}

type sessionSummary struct {
	ID        string              `json:"id"`
	State     domain.ChannelState `json:"state"`
	CreatedAt time.Time           `json:"createdAt"`
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List()
	if err != nil {
		s.logger.Error("listing sessions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "sessions could not be listed")
		return
	}
	out := make([]sessionSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, sessionSummary{ID: e.ID, State: e.Widget.State(), CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// PostMessage handles POST /sessions/{id}/messages. The body is one host
// envelope; the request Origin header is the origin it was observed from.
// Unrecognized or malformed envelopes are accepted and dropped.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "message too large")
		return
	}

	env, err := protocol.DecodeEnvelope(body)
	if err != nil {
		s.logger.Debug("ignoring malformed host message", zap.String("session", entry.ID), zap.Error(err))
	} else {
		entry.Outbox.Deliver(env, r.Header.Get("Origin"))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"state": entry.Widget.State()})
}

// PostAction handles POST /sessions/{id}/actions. The body is one user input
// line, e.g. "AMOUNT cash 0 25".
func (s *Server) PostAction(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "action too large")
		return
	}

	cmd, err := parser.Parse(strings.TrimSpace(string(body)))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if cmd.Name == "EXIT" {
		writeError(w, http.StatusBadRequest, "EXIT is only available to the line runner")
		return
	}

	output, err := entry.Widget.Execute(cmd)
	if err != nil {
		s.actionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"output": output,
		"state":  entry.Widget.State(),
	})
}

// GetState handles GET /sessions/{id}/state.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, entry.Widget.View())
}

// DrainOutbox handles GET /sessions/{id}/outbox. Once the widget has
// terminated and its last envelopes are drained the session is discarded.
func (s *Server) DrainOutbox(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	terminated := entry.Widget.State() == domain.StateTerminated
	messages := entry.Outbox.Drain()
	if terminated {
		if err := s.store.Delete(entry.ID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			s.logger.Warn("discarding session", zap.String("session", entry.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":   messages,
		"terminated": terminated,
	})
}

func (s *Server) entry(w http.ResponseWriter, r *http.Request) (*store.Entry, bool) {
	id := chi.URLParam(r, "id")
	entry, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return nil, false
		}
		s.logger.Error("loading session", zap.String("session", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session could not be loaded")
		return nil, false
	}
	entry.Touch(s.now())
	return entry, true
}

func (s *Server) actionError(w http.ResponseWriter, err error) {
	var (
		blocked *domain.SubmitBlockedError
		invalid *domain.ValidationError
	)
	switch {
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": map[string]any{
				"message": err.Error(),
				"code":    http.StatusUnprocessableEntity,
				"fields":  blocked.Fields,
			},
		})
	case errors.Is(err, domain.ErrSubmitInFlight), errors.Is(err, domain.ErrTerminated):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalid),
		errors.Is(err, domain.ErrUnknownMethod),
		errors.Is(err, domain.ErrMethodInactive),
		errors.Is(err, domain.ErrRowOutOfRange):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
