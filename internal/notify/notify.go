package notify

import (
	"sync"
	"time"

	"github.com/quantumauth-io/quantum-go-utils/log"
)

type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
)

// Notifier is the status-display collaborator. It is called once per terminal state.
type Notifier interface {
	Notify(action string, outcome Outcome, message string)
}

type Notification struct {
	ID      uint64    `json:"id"`
	Action  string    `json:"action"`
	Outcome Outcome   `json:"outcome"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type LogNotifier struct{}

func (LogNotifier) Notify(action string, outcome Outcome, message string) {
	if outcome == Failure {
		log.Warn(action, "outcome", string(outcome), "message", message)
		return
	}
	log.Info(action, "outcome", string(outcome), "message", message)
}

// Feed keeps the most recent notifications in memory.
type Feed struct {
	mu    sync.RWMutex
	items []Notification
	limit int
	next  uint64
	now   func() time.Time
}

func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 100
	}
	return &Feed{limit: limit, now: time.Now}
}

func (f *Feed) Notify(action string, outcome Outcome, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	f.items = append(f.items, Notification{
		ID:      f.next,
		Action:  action,
		Outcome: outcome,
		Message: message,
		At:      f.now().UTC(),
	})
	if over := len(f.items) - f.limit; over > 0 {
		f.items = append(f.items[:0:0], f.items[over:]...)
	}
}

// Since returns notifications with an id greater than after, oldest first.
func (f *Feed) Since(after uint64) []Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Notification, 0, len(f.items))
	for _, n := range f.items {
		if n.ID > after {
			out = append(out, n)
		}
	}
	return out
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

// Multi fans a notification out to every non-nil notifier.
type Multi []Notifier

func (m Multi) Notify(action string, outcome Outcome, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(action, outcome, message)
		}
	}
}
