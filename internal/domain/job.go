package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message kept in a user's conversation history.
type Turn struct {
	Role    Role
	Content string
}

func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// Job is one pending "reply to this user for this message" unit.
// It lives only in process memory and is consumed exactly once.
type Job struct {
	ID             string
	UserID         string
	Text           string
	ReplyToken     string
	WebhookEventID string
	EnqueuedAt     time.Time
}

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

type ReplySource string

const (
	ReplySourceAI       ReplySource = "ai"
	ReplySourceFallback ReplySource = "fallback"
)

type DeliveryMode string

const (
	DeliveryModeReply DeliveryMode = "reply"
	DeliveryModePush  DeliveryMode = "push"
)

// JobRecord is the operational outcome of a job. It never carries message
// text.
type JobRecord struct {
	ID           string
	UserID       string
	Status       JobStatus
	ReplySource  ReplySource
	DeliveryMode DeliveryMode
	ModelID      string
	ErrorMessage string
	EnqueuedAt   time.Time
	UpdatedAt    time.Time
}

func NewJobRecord(job Job) *JobRecord {
	return &JobRecord{
		ID:         job.ID,
		UserID:     job.UserID,
		Status:     JobStatusPending,
		EnqueuedAt: job.EnqueuedAt,
		UpdatedAt:  job.EnqueuedAt,
	}
}

type JobListFilter struct {
	UserID   string
	Status   JobStatus
	Page     int
	PageSize int
}
