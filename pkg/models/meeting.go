package models

import (
	"strings"
	"time"
)

// Meeting mirrors one provider-side meeting. Exactly one of EventID and
// SessionID is set; a row with neither is an orphan awaiting deletion.
type Meeting struct {
	ID                  int64      `json:"id" db:"id"`
	EventID             *int64     `json:"eventID" db:"event_id"`
	SessionID           *int64     `json:"sessionID" db:"session_id"`
	ProviderID          string     `json:"providerID" db:"provider_id"`
	ProviderMeetingID   *string    `json:"providerMeetingID" db:"provider_meeting_id"`
	JoinURL             *string    `json:"joinURL" db:"join_url"`
	Password            *string    `json:"password" db:"password"`
	RecordingURL        *string    `json:"recordingURL" db:"recording_url"`
	HostEmail           *string    `json:"hostEmail" db:"host_email"`
	StartsAt            *time.Time `json:"startsAt" db:"starts_at"`
	EndsAt              *time.Time `json:"endsAt" db:"ends_at"`
	AutoEndCheckAt      *time.Time `json:"autoEndCheckAt" db:"auto_end_check_at"`
	AutoEndCheckOutcome *string    `json:"autoEndCheckOutcome" db:"auto_end_check_outcome"`
	CreatedAt           time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time  `json:"updatedAt" db:"updated_at"`
}

// MeetingTask is one unit of reconciliation work handed to a worker.
type MeetingTask struct {
	State             SyncState
	Delete            bool
	EventID           *int64
	SessionID         *int64
	MeetingID         *int64
	Topic             string
	StartsAt          *time.Time
	EndsAt            *time.Time
	Timezone          string
	DurationSecs      int
	Hosts             []string
	RequiresPassword  bool
	ProviderID        string
	ProviderMeetingID string
	JoinURL           string
	Password          string
}

// AutoEndTask identifies one meeting whose scheduled end has passed and
// which has not been checked for provider-side termination yet.
type AutoEndTask struct {
	MeetingID         int64
	ProviderID        string
	ProviderMeetingID string
	EndedAt           time.Time
}

// ProviderMeetingRequest is what the worker hands the provider client.
type ProviderMeetingRequest struct {
	Topic            string
	StartsAt         time.Time
	Timezone         string
	DurationSecs     int
	HostEmail        string
	RequiresPassword bool
}

// ProviderMeeting is the provider's view of a meeting after a create or
// update call, fed back through the outcome recorder.
type ProviderMeeting struct {
	ProviderID        string
	ProviderMeetingID string
	JoinURL           string
	Password          string
	HostEmail         string
}

// SplitHosts turns the stored comma-separated declared-hosts column into a
// slice, dropping empty entries. Normalization happens in the allocator.
func SplitHosts(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		hosts = append(hosts, p)
	}
	return hosts
}
