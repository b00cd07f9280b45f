// Package tasks defines the asynchronous work the engine hands to external workers.
package tasks

import "encoding/json"

// Topic is the message bus topic every task is published on.
const Topic = "scenarios.tasks"

const (
	// KeyMetadataKey carries the partition key (the job id).
	KeyMetadataKey = "key"
	// NameMetadataKey carries the task name used to route the payload.
	NameMetadataKey = "task_name"
)

// Name identifies a task kind on the bus.
type Name string

const (
	SendEmailTask    Name = "send_email"
	CheckSegmentTask Name = "check_segment"
	FinishWaitTask   Name = "finish_wait"
)

// Task is a unit of asynchronous work addressed to a worker.
type Task interface {
	GetName() Name
	GetJobID() string
}

// SendEmail asks the email worker to deliver the email of a scheduled job.
type SendEmail struct {
	JobID string `json:"job_id"`
}

func (t SendEmail) GetName() Name    { return SendEmailTask }
func (t SendEmail) GetJobID() string { return t.JobID }

// CheckSegment asks the segment worker to evaluate membership for a scheduled job.
// The worker reports the outcome in the job result under "positive".
type CheckSegment struct {
	JobID string `json:"job_id"`
}

func (t CheckSegment) GetName() Name    { return CheckSegmentTask }
func (t CheckSegment) GetJobID() string { return t.JobID }

// FinishWait asks the wait worker to finish a started job after DelayMinutes.
type FinishWait struct {
	JobID        string `json:"job_id"`
	DelayMinutes int    `json:"delay_minutes"`
}

func (t FinishWait) GetName() Name    { return FinishWaitTask }
func (t FinishWait) GetJobID() string { return t.JobID }

func decodeAs[T Task](payload []byte) (Task, error) {
	var task T

	err := json.Unmarshal(payload, &task)

	return task, err
}

// decoders turns a payload back into the task value for each known name.
var decoders = map[Name]func(payload []byte) (Task, error){
	SendEmailTask:    decodeAs[SendEmail],
	CheckSegmentTask: decodeAs[CheckSegment],
	FinishWaitTask:   decodeAs[FinishWait],
}
