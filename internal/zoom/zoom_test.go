package zoom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatherly/meetsync/pkg/logger"
	"github.com/gatherly/meetsync/pkg/models"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(context.Background(), logger.NewLogger(), Config{
		BaseURL:   srv.URL,
		APIKey:    "key",
		APISecret: "secret",
	})
}

func meetingRequestFixture() models.ProviderMeetingRequest {
	return models.ProviderMeetingRequest{
		Topic:            "community call",
		StartsAt:         time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		Timezone:         "Etc/UTC",
		DurationSecs:     5400,
		HostEmail:        "alice@example.org",
		RequiresPassword: true,
	}
}

func TestCreateMeeting(t *testing.T) {
	var got meetingRequest
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/users/alice@example.org/meetings", r.URL.Path)
		require.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       123456789,
			"join_url": "https://zoom.example/j/123456789",
			"password": got.Password,
		})
	})

	meeting, err := client.CreateMeeting(context.Background(), meetingRequestFixture())
	require.NoError(t, err)
	require.Equal(t, "zoom", meeting.ProviderID)
	require.Equal(t, "123456789", meeting.ProviderMeetingID)
	require.Equal(t, "https://zoom.example/j/123456789", meeting.JoinURL)
	require.Equal(t, "alice@example.org", meeting.HostEmail)

	require.Equal(t, "community call", got.Topic)
	require.Equal(t, typeScheduled, got.Type)
	require.Equal(t, "2026-09-01T10:00:00Z", got.StartTime)
	require.Equal(t, 90, got.Duration)
	require.Len(t, got.Password, 10)
}

func TestCreateMeetingWithoutPassword(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var got meetingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Empty(t, got.Password)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 1})
	})
	req := meetingRequestFixture()
	req.RequiresPassword = false
	_, err := client.CreateMeeting(context.Background(), req)
	require.NoError(t, err)
}

func TestUpdateMeetingFetchesCurrentState(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/meetings/123", r.URL.Path)
		switch r.Method {
		case http.MethodPatch:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":         123,
				"join_url":   "https://zoom.example/j/123",
				"password":   "pw",
				"host_email": "bob@example.org",
			})
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	meeting, err := client.UpdateMeeting(context.Background(), "123", meetingRequestFixture())
	require.NoError(t, err)
	require.Equal(t, "123", meeting.ProviderMeetingID)
	require.Equal(t, "https://zoom.example/j/123", meeting.JoinURL)
	require.Equal(t, "bob@example.org", meeting.HostEmail)
}

func TestDeleteMeetingGoneIsSuccess(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, `{"code":3001}`, http.StatusNotFound)
	})
	require.NoError(t, client.DeleteMeeting(context.Background(), "123"))
}

func TestDeleteMeetingServerError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	err := client.DeleteMeeting(context.Background(), "123")
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestEndMeeting(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/meetings/123/status", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "end", body["action"])
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, client.EndMeeting(context.Background(), "123"))
}
