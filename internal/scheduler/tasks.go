// Package scheduler defines the background jobs: the quote expiration sweep
// and the nightly table export to object storage.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskExpireStaleQuotes = "quotes.expire_stale"

const TaskNightlyBackup = "backups.nightly"

type ExpireStaleQuotesPayload struct {
	// RequestedBy distinguishes periodic runs from operator-triggered ones.
	RequestedBy string `json:"requestedBy,omitempty"`
}

type NightlyBackupPayload struct {
	// Tables limits the export; empty means all core tables.
	Tables []string `json:"tables,omitempty"`
}

func NewExpireStaleQuotesTask(payload ExpireStaleQuotesPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpireStaleQuotes, data), nil
}

func ParseExpireStaleQuotesPayload(task *asynq.Task) (ExpireStaleQuotesPayload, error) {
	var payload ExpireStaleQuotesPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ExpireStaleQuotesPayload{}, err
	}
	return payload, nil
}

func NewNightlyBackupTask(payload NightlyBackupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNightlyBackup, data), nil
}

func ParseNightlyBackupPayload(task *asynq.Task) (NightlyBackupPayload, error) {
	var payload NightlyBackupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NightlyBackupPayload{}, err
	}
	return payload, nil
}
