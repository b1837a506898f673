// Package events reports what a build, crawl or query run did: one event per
// document, page and query line, plus run start and finish markers. Events
// are best-effort; publishing never blocks or fails the work that emits them.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	RunStarted      = "run.started"
	RunFinished     = "run.finished"
	DocumentIndexed = "document.indexed"
	DocumentFailed  = "document.failed"
	PageIndexed     = "page.indexed"
	PageFailed      = "page.failed"
	QueryEvaluated  = "query.evaluated"
)

type Event struct {
	Type     string    `json:"type"`
	RunID    string    `json:"run_id,omitempty"`
	Location string    `json:"location,omitempty"`
	Query    string    `json:"query,omitempty"`
	Words    int       `json:"words,omitempty"`
	Results  int       `json:"results,omitempty"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// OrNop returns p, or Nop when p is nil.
func OrNop(p Publisher) Publisher {
	if p == nil {
		return Nop{}
	}
	return p
}
