package asset

import (
	"net/url"
	"path/filepath"
	"strings"
)

// VirtualPrefix marks sources that resolve inside the configured root
// directory regardless of their shape.
const VirtualPrefix = "@assets/"

// Resolve maps a source identifier to a filesystem path. The policy is
// ordered and deterministic:
//
//  1. a file:// source resolves via URL-to-path conversion
//  2. a VirtualPrefix source resolves relative to root
//  3. an absolute path resolves as-is
//  4. anything else resolves relative to root
func Resolve(root, source string) string {
	if strings.HasPrefix(source, "file://") {
		if u, err := url.Parse(source); err == nil {
			return filepath.FromSlash(u.Path)
		}
		return filepath.FromSlash(strings.TrimPrefix(source, "file://"))
	}
	if rest, ok := strings.CutPrefix(source, VirtualPrefix); ok {
		return filepath.Join(root, filepath.FromSlash(rest))
	}
	if filepath.IsAbs(source) {
		return source
	}
	return filepath.Join(root, filepath.FromSlash(source))
}
