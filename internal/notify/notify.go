// Package notify publishes inventory-change events after a snapshot write.
package notify

import (
	"context"
	"time"
)

// ChangeEvent is the payload published when the snapshot changes.
type ChangeEvent struct {
	RunID       string    `json:"runId"`
	FinishedAt  time.Time `json:"finishedAt"`
	Total       int       `json:"total"`
	AddedVINs   []string  `json:"addedVins"`
	RemovedVINs []string  `json:"removedVins"`
}

// Publisher delivers a payload to a topic and returns a message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
