package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type App interface {
	Ping(ctx context.Context) error
	RecordRecordingURL(ctx context.Context, providerID, providerMeetingID, recordingURL string) error
}

type Server struct {
	log          *logrus.Entry
	app          App
	address      string
	version      string
	webhookToken string
}

func NewServer(log *logrus.Logger, app App, address, version, webhookToken string) *Server {
	return &Server{
		log:          log.WithField("component", "rest"),
		app:          app,
		address:      address,
		version:      version,
		webhookToken: webhookToken,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/version", s.versionHandler)
	r.Get("/healthz", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhooks/zoom", s.zoomWebhookHandler)
	return r
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{Addr: s.address, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("err during server shutdown: %v", err)
		}
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, data interface{}) {
	if err, ok := data.(error); ok {
		data = map[string]string{"error": err.Error()}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warnf("err during writing to connection: %v", err)
	}
}
