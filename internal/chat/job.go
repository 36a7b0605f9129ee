package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is an async turn: the user message is already stored, the worker
// produces the assistant reply.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"job_id"` // ULID

	RoomID        int64 `gorm:"column:room_id;not null;index:uniq_job_room_idempo,unique,priority:1" json:"room_id"`
	UserMessageID int64 `gorm:"column:user_message_id;not null" json:"user_message_id"`
	// Date is the logbook day the reply is grounded on.
	Date string `gorm:"column:date;type:varchar(10)" json:"date"`

	IdempotencyKey *string `gorm:"column:idempotency_key;type:varchar(128);index:uniq_job_room_idempo,unique,priority:2" json:"-"`

	Status JobStatus `gorm:"column:status;type:varchar(16);index;not null" json:"status"`

	// set on success
	ResultMessageID *int64 `gorm:"column:result_message_id" json:"result_message_id,omitempty"`

	// set on failure
	Error *string `gorm:"column:error;type:text" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Job) TableName() string { return "chat_jobs" }
