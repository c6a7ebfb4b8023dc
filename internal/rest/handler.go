package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gatherly/meetsync/pkg/pgstore"
)

func (s *Server) versionHandler(w http.ResponseWriter, _ *http.Request) {
	_, err := fmt.Fprintf(w, "%s\n", s.version)
	if err != nil {
		s.log.Warnf("err during writing to connection: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ping(r.Context()); err != nil {
		s.writeResponse(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

type zoomWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Object struct {
			ID       json.Number `json:"id"`
			ShareURL string      `json:"share_url"`
		} `json:"object"`
	} `json:"payload"`
}

// zoomWebhookHandler stores the recording link once the provider reports a
// finished recording. Everything else the provider sends is acknowledged
// and dropped.
func (s *Server) zoomWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if s.webhookToken == "" || r.Header.Get("Authorization") != s.webhookToken {
		s.writeResponse(w, http.StatusUnauthorized, fmt.Errorf("bad webhook token"))
		return
	}
	var hook zoomWebhook
	if err := json.NewDecoder(r.Body).Decode(&hook); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	if hook.Event != "recording.completed" {
		s.writeResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	err := s.app.RecordRecordingURL(r.Context(), "zoom", hook.Payload.Object.ID.String(), hook.Payload.Object.ShareURL)
	switch {
	case errors.Is(err, pgstore.ErrMeetingNotFound):
		// The meeting may already be reconciled away; nothing to attach
		// the recording to.
		s.writeResponse(w, http.StatusOK, map[string]string{"status": "unknown meeting"})
		return
	case err != nil:
		s.log.Warnf("err recording url: %v", err)
		s.writeResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.writeResponse(w, http.StatusOK, map[string]string{"status": "recorded"})
}
