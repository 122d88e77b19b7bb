// Package vfs implements the virtual file system model for CipherStudio
// projects: pure path helpers, the flat path-keyed file map, and the
// hierarchical tree built from it.
package vfs

import (
	"regexp"
	"strings"
)

// extensionPattern matches a trailing filename extension (one dot followed by
// word characters at the end of the path).
var extensionPattern = regexp.MustCompile(`\.[\w\d]+$`)

// IsFolder reports whether a path denotes a folder. Folders are inferred from
// the absence of a trailing extension; the flat map carries no explicit type.
// This misclassifies extensionless files such as /src/Makefile — kept for
// compatibility with persisted project data.
func IsFolder(path string) bool {
	if path == "" {
		return false
	}
	return !extensionPattern.MatchString(path)
}

// NormalizePath collapses runs of repeated slashes into one.
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	return path
}

// GetParentPath returns the parent directory of a path, or "/" for
// root-level entries.
func GetParentPath(path string) string {
	if path == "" {
		return "/"
	}
	last := strings.LastIndex(path, "/")
	if last <= 0 {
		return "/"
	}
	return path[:last]
}

// JoinPath joins non-empty segments with "/" and normalizes the result.
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return NormalizePath(strings.Join(parts, "/"))
}

// PathStartsWith reports whether path equals prefix or lives under it.
// The prefix is normalized to exactly one trailing slash before comparison so
// that "/src" does not match "/src-extra".
func PathStartsWith(path, prefix string) bool {
	if path == "" || prefix == "" {
		return false
	}
	if path == prefix {
		return true
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.HasPrefix(path, prefix)
}

// ChildPaths returns all keys of files equal to folderPath or under it,
// sorted per FileMap.Paths ordering.
func ChildPaths(files FileMap, folderPath string) []string {
	if len(files) == 0 || folderPath == "" {
		return nil
	}
	var out []string
	for _, p := range files.Paths() {
		if PathStartsWith(p, folderPath) {
			out = append(out, p)
		}
	}
	return out
}

// RenamePath computes the path that results from renaming the last segment
// of oldPath to newName. Root-level paths keep a single leading slash.
func RenamePath(oldPath, newName string) string {
	parent := GetParentPath(oldPath)
	if parent == "/" {
		return "/" + newName
	}
	return JoinPath(parent, newName)
}
