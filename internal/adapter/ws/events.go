package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventFileChanged     = "file.changed"
	EventCodeUpdated     = "code.updated"
	EventTabsChanged     = "tabs.changed"
	EventPreviewReady    = "preview.ready"
	EventProjectSaved    = "project.saved"
	EventAutosaveFlushed = "autosave.flushed"
	EventProjectDeleted  = "project.deleted"
)

// FileChangedEvent is broadcast when the file tree of a workspace changes.
type FileChangedEvent struct {
	ProjectID string `json:"project_id"`
	Action    string `json:"action"`
	Path      string `json:"path"`
	NewPath   string `json:"new_path,omitempty"`
}

// CodeUpdatedEvent is broadcast when a file's content is edited.
type CodeUpdatedEvent struct {
	ProjectID string `json:"project_id"`
	Path      string `json:"path"`
	Dirty     bool   `json:"dirty"`
}

// TabsChangedEvent is broadcast when the open editors or active file change.
type TabsChangedEvent struct {
	ProjectID  string   `json:"project_id"`
	ActiveFile string   `json:"active_file"`
	OpenTabs   []string `json:"open_tabs"`
}

// PreviewReadyEvent is broadcast when a fresh preview document has been synthesized.
type PreviewReadyEvent struct {
	ProjectID  string `json:"project_id"`
	Kind       string `json:"kind"`
	ScopeClass string `json:"scope_class,omitempty"`
}

// ProjectSavedEvent is broadcast after a workspace is persisted.
type ProjectSavedEvent struct {
	ProjectID string `json:"project_id"`
	FileCount int    `json:"file_count"`
}

// AutosaveFlushedEvent is broadcast when the autosave loop flushes dirty files.
type AutosaveFlushedEvent struct {
	ProjectID  string   `json:"project_id"`
	DirtyPaths []string `json:"dirty_paths"`
}

// BroadcastEvent marshals a typed event and broadcasts it to every client.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	h.broadcastEvent(ctx, "", eventType, payload)
}

// BroadcastEventToProject marshals a typed event and broadcasts it to
// clients subscribed to the given workspace.
func (h *Hub) BroadcastEventToProject(ctx context.Context, projectID, eventType string, payload any) {
	h.broadcastEvent(ctx, projectID, eventType, payload)
}

func (h *Hub) broadcastEvent(ctx context.Context, projectID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.send(ctx, projectID, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
