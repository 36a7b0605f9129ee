// Package images resolves stored image references for the completion
// request and stores new uploads.
package images

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// URLPrefix is the public path local uploads are served under.
const URLPrefix = "/uploads/"

// MIMEByExt infers the content type from the file extension; unknown
// extensions are treated as JPEG.
func MIMEByExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// IsExternal reports whether ref is an http(s) URL.
func IsExternal(ref string) bool {
	r := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(r, "http://") || strings.HasPrefix(r, "https://")
}

// Resolver maps "/uploads/<name>" references onto files under Dir.
type Resolver struct {
	Dir string
}

func NewResolver(dir string) *Resolver {
	return &Resolver{Dir: dir}
}

// Load reads a local reference and returns its bytes and inferred MIME type.
func (r *Resolver) Load(ref string) ([]byte, string, error) {
	p, err := r.localPath(ref)
	if err != nil {
		return nil, "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, "", fmt.Errorf("read image %s: %w", ref, err)
	}
	return b, MIMEByExt(p), nil
}

// ImageURL returns what goes into the image part of a request: external
// URLs unchanged, local files as base64 data URLs.
func (r *Resolver) ImageURL(_ context.Context, ref string) (string, error) {
	if IsExternal(ref) {
		return strings.TrimSpace(ref), nil
	}
	b, mime, err := r.Load(ref)
	if err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}

func (r *Resolver) localPath(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty image reference")
	}
	rel := strings.TrimPrefix(path.Clean("/"+ref), "/")
	rel = strings.TrimPrefix(rel, strings.Trim(URLPrefix, "/")+"/")
	if rel == "" || rel == "." || strings.HasPrefix(rel, "..") || strings.Contains(ref, "..") {
		return "", fmt.Errorf("invalid image reference %q", ref)
	}
	return filepath.Join(r.Dir, filepath.FromSlash(rel)), nil
}
