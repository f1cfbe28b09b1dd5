package jobs

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskETLSync runs one financial data synchronization job.
	TaskETLSync = "etl:sync"
	// TaskETLSyncAll fans out a synchronization job per company on a schedule.
	TaskETLSyncAll = "etl:sync-all"
)

// ETLSyncPayload identifies the job a worker should execute.
type ETLSyncPayload struct {
	JobID     string `json:"job_id"`
	CompanyID string `json:"company_id"`
}

// NewETLSyncTask constructs the Asynq task. The job id doubles as the task
// id so a job is never queued twice.
func NewETLSyncTask(payload ETLSyncPayload, opts ...asynq.Option) (*asynq.Task, error) {
	if strings.TrimSpace(payload.JobID) == "" || strings.TrimSpace(payload.CompanyID) == "" {
		return nil, errors.New("jobs: etl sync payload requires job and company")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.TaskID(payload.JobID), asynq.Queue(QueueDefault)}, opts...)
	return asynq.NewTask(TaskETLSync, data, opts...), nil
}

// ParseETLSyncPayload decodes and checks a task payload.
func ParseETLSyncPayload(t *asynq.Task) (ETLSyncPayload, error) {
	var payload ETLSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return ETLSyncPayload{}, err
	}
	if payload.JobID == "" || payload.CompanyID == "" {
		return ETLSyncPayload{}, errors.New("jobs: incomplete etl sync payload")
	}
	return payload, nil
}

// NewETLSyncAllTask constructs the scheduled fan-out task.
func NewETLSyncAllTask() *asynq.Task {
	return asynq.NewTask(TaskETLSyncAll, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(0))
}
