package vfs

import (
	"encoding/json"
	"sort"
)

// File is a single file record. The path that identifies it lives in the
// enclosing FileMap; hierarchy is implied by the path, folders are not
// stored as records.
type File struct {
	Code string `json:"code"`
}

// FileMap is the canonical flat representation of a project's files, keyed
// by absolute path ("/src/App.jsx"). This is the persisted and transmitted
// shape: string keys, object values with a "code" string field.
type FileMap map[string]File

// Paths returns the map's keys in sorted order. Go maps carry no insertion
// order, so every "first file" decision in the service layer runs off this
// deterministic ordering.
func (m FileMap) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns a shallow copy. Mutations operate copy-on-write so that
// snapshots handed to the tree builder and preview synthesizer stay stable.
func (m FileMap) Clone() FileMap {
	out := make(FileMap, len(m))
	for p, f := range m {
		out[p] = f
	}
	return out
}

// Normalize coerces externally supplied file data into the canonical
// FileMap shape. Persisted and client-sent payloads have been observed as
// plain strings, {content: ...} objects, arbitrary objects, and arrays of
// file entries; all of them are folded into { path: { code } }.
func Normalize(raw json.RawMessage) FileMap {
	if len(raw) == 0 {
		return FileMap{}
	}

	// Array form: [{path, code}, ...] with a handful of legacy field names.
	var arr []map[string]any
	if err := json.Unmarshal(raw, &arr); err == nil {
		out := make(FileMap, len(arr))
		for _, item := range arr {
			path := firstString(item, "path", "filePath", "name", "filename")
			if path == "" {
				path = "/untitled"
			}
			out[path] = File{Code: firstString(item, "code", "content", "value")}
		}
		return out
	}

	// Object form: values may be strings, {code}, {content}, or anything else.
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return FileMap{}
	}

	out := make(FileMap, len(obj))
	for path, val := range obj {
		out[path] = normalizeEntry(val)
	}
	return out
}

func normalizeEntry(raw json.RawMessage) File {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return File{Code: s}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return File{}
	}

	for _, key := range []string{"code", "content"} {
		if v, ok := fields[key]; ok {
			var code string
			if err := json.Unmarshal(v, &code); err == nil {
				return File{Code: code}
			}
		}
	}

	// Unknown object shape: preserve it as its JSON text rather than drop it.
	var compact any
	if err := json.Unmarshal(raw, &compact); err == nil {
		if b, err := json.Marshal(compact); err == nil {
			return File{Code: string(b)}
		}
	}
	return File{}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
