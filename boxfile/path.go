package boxfile

import (
	"fmt"
	"strings"
)

// ParseAttrPath splits "/group/sub@name" into the object path and the
// attribute name. "/@name" addresses the root group.
func ParseAttrPath(path string) (objectPath, attrName string, err error) {
	at := strings.LastIndex(path, "@")
	if at == -1 {
		return "", "", fmt.Errorf("%w: attribute path needs '@': %q", ErrInvalidPath, path)
	}
	attrName = path[at+1:]
	if attrName == "" {
		return "", "", fmt.Errorf("%w: empty attribute name in %q", ErrInvalidPath, path)
	}
	return CleanPath(path[:at]), attrName, nil
}

// JoinAttrPath is the inverse of ParseAttrPath.
func JoinAttrPath(objectPath, attrName string) string {
	objectPath = CleanPath(objectPath)
	if objectPath == "/" {
		return "/@" + attrName
	}
	return objectPath + "@" + attrName
}

// SplitPath returns the non-empty components of a slash separated path.
//
//	"/"        -> []
//	"/foo/bar" -> [foo bar]
//	"foo//bar" -> [foo bar]
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CleanPath normalizes a path to a leading slash and no trailing slash.
func CleanPath(path string) string {
	return "/" + strings.Join(SplitPath(path), "/")
}

// validName reports whether name can be used for a group, column or
// attribute.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/@") {
		return fmt.Errorf("%w: bad name %q", ErrInvalidPath, name)
	}
	return nil
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
