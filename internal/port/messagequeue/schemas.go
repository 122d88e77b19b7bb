package messagequeue

// File change actions carried by workspace.files.changed messages.
const (
	ActionAdd    = "add"
	ActionFolder = "folder"
	ActionRename = "rename"
	ActionDelete = "delete"
)

// FileChangedPayload is the schema for workspace.files.changed messages.
type FileChangedPayload struct {
	ProjectID string `json:"project_id"`
	Action    string `json:"action"`
	Path      string `json:"path"`
	NewPath   string `json:"new_path,omitempty"` // rename only
}

// CodeUpdatedPayload is the schema for workspace.code.updated messages.
// Code itself stays in the draft cache; the payload carries only metadata.
type CodeUpdatedPayload struct {
	ProjectID string `json:"project_id"`
	Path      string `json:"path"`
	Size      int    `json:"size"`
	Dirty     bool   `json:"dirty"`
}

// TabsChangedPayload is the schema for workspace.tabs.changed messages.
type TabsChangedPayload struct {
	ProjectID  string   `json:"project_id"`
	ActiveFile string   `json:"active_file"`
	OpenTabs   []string `json:"open_tabs"`
}

// PreviewReadyPayload is the schema for workspace.preview.ready messages.
type PreviewReadyPayload struct {
	ProjectID  string `json:"project_id"`
	Kind       string `json:"kind"` // ok, nothing, unsupported
	ScopeClass string `json:"scope_class,omitempty"`
}

// ProjectSavedPayload is the schema for workspace.project.saved messages.
type ProjectSavedPayload struct {
	ProjectID string `json:"project_id"`
	FileCount int    `json:"file_count"`
}

// AutosaveFlushedPayload is the schema for workspace.autosave.flushed messages.
type AutosaveFlushedPayload struct {
	ProjectID  string   `json:"project_id"`
	FlushedAt  int64    `json:"flushed_at"` // unix millis
	DirtyPaths []string `json:"dirty_paths"`
}

// ProjectDeletedPayload is the schema for workspace.project.deleted messages.
type ProjectDeletedPayload struct {
	ProjectID string `json:"project_id"`
}
