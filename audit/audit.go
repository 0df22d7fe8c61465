// Package audit keeps an in-memory trail of privileged actions: role and
// password changes, backend reconfiguration, branding updates and exports.
// The trail lives for the process lifetime; it is an operator aid, not
// durable evidence.
package audit

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Event is one recorded privileged action.
type Event struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
	Details   string `json:"details"`
}

// Trail is a concurrency-safe append-only event list.
type Trail struct {
	mu     sync.Mutex
	events []Event
}

func NewTrail() *Trail {
	return &Trail{}
}

// Record appends an event and writes a log line.
func (t *Trail) Record(userID, action, details string) {
	event := Event{
		ID:        fmt.Sprintf("log-%d", time.Now().UnixNano()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		UserID:    userID,
		Action:    action,
		Details:   details,
	}

	t.mu.Lock()
	t.events = append(t.events, event)
	t.mu.Unlock()

	log.Printf("AUDIT: User '%s' performed action '%s' - Details: %s", userID, action, details)
}

// Events returns a copy of the trail, oldest first.
func (t *Trail) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}
