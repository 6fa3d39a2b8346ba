package scheduler

import "github.com/jobs/routineload/internal/biz/txn"

// EventType represents the type of events flowing through the bus.
type EventType string

const (
	EventTxnStatus EventType = "txn_status"
)

// RedisEvent is the message payload for pub/sub.
type RedisEvent struct {
	Type      EventType        `json:"type"`
	Txn       *txn.StatusEvent `json:"txn,omitempty"`
	Source    string           `json:"source,omitempty"`
	Timestamp int64            `json:"ts,omitempty"`
}
