package models

import "time"

type Event struct {
	ID               int64      `json:"id" db:"id"`
	Title            string     `json:"title" db:"title"`
	StartsAt         *time.Time `json:"startsAt" db:"starts_at"`
	EndsAt           *time.Time `json:"endsAt" db:"ends_at"`
	Timezone         string     `json:"timezone" db:"timezone"`
	Published        bool       `json:"published" db:"published"`
	Canceled         bool       `json:"canceled" db:"canceled"`
	Deleted          bool       `json:"deleted" db:"deleted"`
	MeetingRequested bool       `json:"meetingRequested" db:"meeting_requested"`
	MeetingInSync    bool       `json:"meetingInSync" db:"meeting_in_sync"`
	MeetingError     *string    `json:"meetingError" db:"meeting_error"`
	MeetingHosts     string     `json:"meetingHosts" db:"meeting_hosts"`
	RequiresPassword bool       `json:"requiresPassword" db:"meeting_requires_password"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

type Session struct {
	ID               int64      `json:"id" db:"id"`
	EventID          int64      `json:"eventID" db:"event_id"`
	Title            string     `json:"title" db:"title"`
	StartsAt         *time.Time `json:"startsAt" db:"starts_at"`
	EndsAt           *time.Time `json:"endsAt" db:"ends_at"`
	Timezone         string     `json:"timezone" db:"timezone"`
	Canceled         bool       `json:"canceled" db:"canceled"`
	Deleted          bool       `json:"deleted" db:"deleted"`
	MeetingRequested bool       `json:"meetingRequested" db:"meeting_requested"`
	MeetingInSync    bool       `json:"meetingInSync" db:"meeting_in_sync"`
	MeetingError     *string    `json:"meetingError" db:"meeting_error"`
	MeetingHosts     string     `json:"meetingHosts" db:"meeting_hosts"`
	RequiresPassword bool       `json:"requiresPassword" db:"meeting_requires_password"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}
