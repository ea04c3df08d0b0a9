package domain

import "time"

// ChannelType is the delivery channel for a rendered notification.
type ChannelType string

const (
	ChannelEmail ChannelType = "email"
	ChannelSMS   ChannelType = "sms"
	ChannelPush  ChannelType = "push"
)

func (c ChannelType) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

// EventType classifies a notification for priority routing purposes.
type EventType string

const (
	EventUserRegistration EventType = "user_registration"
	EventNewMovie         EventType = "new_movie"
	EventCustom           EventType = "custom"
)

// IsValid reports whether e is one of the known event types. Callers must
// reject anything else at the request boundary rather than let it reach
// internal/priority.Route, which would otherwise silently default it to
// the medium bucket.
func (e EventType) IsValid() bool {
	switch e {
	case EventUserRegistration, EventNewMovie, EventCustom:
		return true
	}
	return false
}

// MessageType tags a WorkUnit with the path that produced it, so the
// Former's preflight check knows which store (if any) to consult.
type MessageType string

const (
	MessageImmediate MessageType = "immediate"
	MessageScheduled MessageType = "scheduled"
	MessagePeriodic  MessageType = "periodic"
)

// Template is a persisted, Jinja-like rendered body associated with a
// notification. Body must parse under the renderer's grammar at write time.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	StaffID   string    `json:"staff_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduledNotification fires exactly once at ScheduledTime.
type ScheduledNotification struct {
	ID                    string         `json:"id"`
	StaffID               string         `json:"staff_id"`
	TemplateID            string         `json:"template_id"`
	ChannelType           ChannelType    `json:"channel_type"`
	EventType             EventType      `json:"event_type"`
	ScheduledTime         time.Time      `json:"scheduled_time"`
	IsSent                bool           `json:"is_sent"`
	Context               map[string]any `json:"context"`
	SubscriberQueryType   string         `json:"subscriber_query_type"`
	SubscriberQueryParams map[string]any `json:"subscriber_query_params,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// PeriodicNotification fires repeatedly on CronSchedule until IsActive
// becomes false (StopDate passing, or explicit delete).
type PeriodicNotification struct {
	ID                    string         `json:"id"`
	StaffID               string         `json:"staff_id"`
	TemplateID            string         `json:"template_id"`
	ChannelType           ChannelType    `json:"channel_type"`
	EventType             EventType      `json:"event_type"`
	Context               map[string]any `json:"context"`
	SubscriberQueryType   string         `json:"subscriber_query_type"`
	SubscriberQueryParams map[string]any `json:"subscriber_query_params,omitempty"`
	CronSchedule          string         `json:"cron_schedule"`
	LastRunTime           *time.Time     `json:"last_run_time,omitempty"`
	NextRunTime           time.Time      `json:"next_run_time"`
	IsActive              bool           `json:"is_active"`
	StopDate              *time.Time     `json:"stop_date,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// WorkUnit is the broker payload: one dispatch request and its fan-out
// list of subscribers. NotificationID is nil for immediate sends — the
// Former never deduplicates those.
type WorkUnit struct {
	TemplateID     string         `json:"template_id"`
	Context        map[string]any `json:"context"`
	Subscribers    []string       `json:"subscribers"`
	EventType      EventType      `json:"event_type"`
	ChannelType    ChannelType    `json:"channel_type"`
	NotificationID *string        `json:"notification_id,omitempty"`
	MessageType    MessageType    `json:"message_type"`
}

// ListFilter paginates admin list endpoints (templates, scheduled, periodic).
type ListFilter struct {
	PageNumber int
	PageSize   int
}

func (f ListFilter) Offset() int {
	if f.PageNumber < 1 {
		return 0
	}
	return (f.PageNumber - 1) * f.PageSize
}
