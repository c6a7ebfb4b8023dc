package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatherly/meetsync/pkg/logger"
	"github.com/gatherly/meetsync/pkg/pgstore"
)

type fakeApp struct {
	pingErr   error
	recordErr error

	providerID        string
	providerMeetingID string
	recordingURL      string
}

func (a *fakeApp) Ping(context.Context) error { return a.pingErr }

func (a *fakeApp) RecordRecordingURL(_ context.Context, providerID, providerMeetingID, recordingURL string) error {
	a.providerID = providerID
	a.providerMeetingID = providerMeetingID
	a.recordingURL = recordingURL
	return a.recordErr
}

func newTestServer(app *fakeApp) http.Handler {
	return NewServer(logger.NewLogger(), app, ":0", "test", "hook-token").Handler()
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeApp{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test\n", rec.Body.String())
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeApp{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newTestServer(&fakeApp{pingErr: fmt.Errorf("down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func webhookRequest(token, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/zoom", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	return req
}

func TestZoomWebhookRecordsRecording(t *testing.T) {
	app := &fakeApp{}
	rec := httptest.NewRecorder()
	body := `{"event":"recording.completed","payload":{"object":{"id":123456789,"share_url":"https://zoom.example/rec/1"}}}`
	newTestServer(app).ServeHTTP(rec, webhookRequest("hook-token", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "zoom", app.providerID)
	require.Equal(t, "123456789", app.providerMeetingID)
	require.Equal(t, "https://zoom.example/rec/1", app.recordingURL)
}

func TestZoomWebhookRejectsBadToken(t *testing.T) {
	app := &fakeApp{}
	rec := httptest.NewRecorder()
	newTestServer(app).ServeHTTP(rec, webhookRequest("wrong", `{}`))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, app.providerMeetingID)
}

func TestZoomWebhookIgnoresOtherEvents(t *testing.T) {
	app := &fakeApp{}
	rec := httptest.NewRecorder()
	body := `{"event":"meeting.started","payload":{"object":{"id":1}}}`
	newTestServer(app).ServeHTTP(rec, webhookRequest("hook-token", body))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, app.providerMeetingID)
}

func TestZoomWebhookUnknownMeeting(t *testing.T) {
	app := &fakeApp{recordErr: pgstore.ErrMeetingNotFound}
	rec := httptest.NewRecorder()
	body := `{"event":"recording.completed","payload":{"object":{"id":9,"share_url":"https://zoom.example/rec/9"}}}`
	newTestServer(app).ServeHTTP(rec, webhookRequest("hook-token", body))
	require.Equal(t, http.StatusOK, rec.Code)
}
