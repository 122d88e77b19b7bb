package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cipherstudio/cipherstudio/internal/port/messagequeue"
)

// subjectEvents maps queue subjects to the WebSocket event types they fan
// out as. Services publish to the queue only; connected editors learn about
// changes through this relay, which keeps multi-instance deployments in sync.
var subjectEvents = map[string]string{
	messagequeue.SubjectFileChanged:     EventFileChanged,
	messagequeue.SubjectCodeUpdated:     EventCodeUpdated,
	messagequeue.SubjectTabsChanged:     EventTabsChanged,
	messagequeue.SubjectPreviewReady:    EventPreviewReady,
	messagequeue.SubjectProjectSaved:    EventProjectSaved,
	messagequeue.SubjectAutosaveFlushed: EventAutosaveFlushed,
	messagequeue.SubjectProjectDeleted:  EventProjectDeleted,
}

// Relay subscribes to workspace subjects on the message queue and rebroadcasts
// each message to the WebSocket clients watching the affected project.
type Relay struct {
	queue messagequeue.Queue
	hub   *Hub
	log   *slog.Logger
}

// NewRelay creates a Relay. A nil logger falls back to slog.Default.
func NewRelay(queue messagequeue.Queue, hub *Hub, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{queue: queue, hub: hub, log: log}
}

// Start subscribes to every relayed subject. The returned function cancels
// all subscriptions.
func (r *Relay) Start(ctx context.Context) (func(), error) {
	var cancels []func()
	cancelAll := func() {
		for _, c := range cancels {
			c()
		}
	}

	for subject := range subjectEvents {
		cancel, err := r.queue.Subscribe(ctx, subject, r.handle)
		if err != nil {
			cancelAll()
			return nil, err
		}
		cancels = append(cancels, cancel)
	}

	r.log.Info("event relay started", "subjects", len(subjectEvents))
	return cancelAll, nil
}

func (r *Relay) handle(ctx context.Context, subject string, data []byte) error {
	eventType, ok := subjectEvents[subject]
	if !ok {
		return nil
	}

	// Every workspace payload carries a project_id; scoped broadcast keeps
	// unrelated editing sessions quiet.
	var scope struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &scope); err != nil {
		r.log.Warn("relay: undecodable payload", "subject", subject, "error", err)
		return nil
	}

	msg := Message{Type: eventType, Payload: json.RawMessage(data)}
	if scope.ProjectID != "" {
		r.hub.BroadcastToProject(ctx, scope.ProjectID, msg)
	} else {
		r.hub.Broadcast(ctx, msg)
	}
	return nil
}
