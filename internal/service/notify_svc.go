package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

const (
	auditBuffer  = 256
	auditTimeout = 5 * time.Second
)

// AuditEvent is the fire-and-forget notification emitted after a vote is
// durably applied or dead-lettered.
type AuditEvent struct {
	Kind      string          `json:"kind"` // "applied" or "dead_lettered"
	Event     model.VoteEvent `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
}

// Notifier dispatches audit events to an optional webhook from a
// background goroutine. Emission never blocks the vote pipeline: a full
// buffer drops the event with a log line, and delivery failures are
// logged, never retried, never surfaced.
type Notifier struct {
	webhookURL string
	client     *http.Client
	ch         chan AuditEvent
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: auditTimeout},
		ch:         make(chan AuditEvent, auditBuffer),
	}
}

// Start consumes the buffer until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	for {
		select {
		case ev := <-n.ch:
			n.deliver(ev)
		case <-ctx.Done():
			log.Println("notifier: stopping (context cancelled)")
			return
		}
	}
}

// VoteApplied emits an audit event for a durably applied vote.
func (n *Notifier) VoteApplied(ev model.VoteEvent) {
	n.emit(AuditEvent{Kind: "applied", Event: ev, Timestamp: time.Now().UTC()})
}

// VoteDeadLettered emits an audit event for a poison event.
func (n *Notifier) VoteDeadLettered(ev model.VoteEvent) {
	n.emit(AuditEvent{Kind: "dead_lettered", Event: ev, Timestamp: time.Now().UTC()})
}

func (n *Notifier) emit(ev AuditEvent) {
	select {
	case n.ch <- ev:
	default:
		log.Printf("notifier: buffer full, dropping %s event for %s", ev.Kind, ev.Event.VoteID)
	}
}

func (n *Notifier) deliver(ev AuditEvent) {
	if n.webhookURL == "" {
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notifier: marshal failed: %v", err)
		return
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("notifier: webhook delivery failed: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("notifier: webhook returned %d for %s event", resp.StatusCode, ev.Kind)
	}
}
