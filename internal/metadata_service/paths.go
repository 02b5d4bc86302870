package metadata_service

import (
	"fmt"
	"path"
	"strings"
)

// CleanPath normalizes an absolute namespace path.
func CleanPath(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: path %q is not absolute", ErrInvalidParam, p)
	}
	return path.Clean(p), nil
}

func ParentPath(p string) string {
	return path.Dir(p)
}

func BaseName(p string) string {
	if p == RootPath {
		return RootPath
	}
	return path.Base(p)
}

// IsChildOf reports whether p sits directly under dir.
func IsChildOf(p, dir string) bool {
	return p != RootPath && path.Dir(p) == dir
}
