// Package files proxies challenge attachments from the configured storage origin.
package files

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/yakoovad/ctf-platform/internal/config"
)

const (
	DefaultContentType        = "application/octet-stream"
	DefaultContentDisposition = "attachment"
)

var (
	ErrInvalidRef = errors.New("invalid file reference")
	ErrNotFound   = errors.New("file not found")
)

// Object is an attachment being streamed from an origin. Callers must close Body.
type Object struct {
	Body               io.ReadCloser
	ContentType        string
	ContentDisposition string
	ContentLength      int64
}

type Origin interface {
	Fetch(ctx context.Context, ref string) (*Object, error)
}

// New builds the origin selected by cfg.Backend.
func New(ctx context.Context, cfg config.FilesConfig) (Origin, error) {
	switch cfg.Backend {
	case config.FilesBackendHTTP:
		return NewHTTPOrigin(cfg.BaseURL, nil)
	case config.FilesBackendS3:
		return NewS3Origin(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, errors.Errorf("unknown files backend %q", cfg.Backend)
	}
}

// ValidateRef checks that ref is a relative object path and returns it
// escaped and without a leading slash. Absolute URLs, encoded slashes and
// empty, "." or ".." segments are rejected.
func ValidateRef(ref string) (string, error) {
	segments, rawQuery, err := parseRef(ref)
	if err != nil {
		return "", err
	}

	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}

	path := strings.Join(escaped, "/")
	if rawQuery != "" {
		return path + "?" + rawQuery, nil
	}
	return path, nil
}

// parseRef splits ref into its decoded path segments and raw query.
func parseRef(ref string) ([]string, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "//") || strings.Contains(ref, `\`) {
		return nil, "", ErrInvalidRef
	}

	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return nil, "", ErrInvalidRef
	}

	path := strings.TrimPrefix(u.Path, "/")
	if path == "" {
		return nil, "", ErrInvalidRef
	}

	segments := strings.Split(path, "/")
	for _, segment := range segments {
		if segment == "" || segment == "." || segment == ".." || strings.ContainsAny(segment, `?#\`) {
			return nil, "", ErrInvalidRef
		}
	}
	return segments, u.RawQuery, nil
}

func withDefaults(obj *Object) *Object {
	if obj.ContentType == "" {
		obj.ContentType = DefaultContentType
	}
	if obj.ContentDisposition == "" {
		obj.ContentDisposition = DefaultContentDisposition
	}
	return obj
}
