package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError
// function (internal/api/handler/respond.go).
var (
	ErrNotFound             = errors.New("not found")
	ErrRelatedRecordMissing = errors.New("related record does not exist")
	ErrIntegrity            = errors.New("integrity conflict")
	ErrInvalidChannel       = errors.New("invalid channel_type: must be email, sms, or push")
	ErrInvalidEventType     = errors.New("invalid event_type")
	ErrInvalidTemplateBody  = errors.New("template body failed to parse")
	ErrInvalidCronSchedule  = errors.New("cron_schedule must be a valid 5-field cron expression")
	ErrInvalidDateRange     = errors.New("next_run_time may not be after stop_date")
	ErrUnauthorized         = errors.New("missing or invalid JWT")
	ErrUnknownQueryType     = errors.New("unknown subscriber query type")
	ErrQueueFull            = errors.New("queue is at capacity, try again later")
)
