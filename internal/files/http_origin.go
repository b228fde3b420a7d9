package files

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type HTTPOrigin struct {
	baseURL *url.URL
	client  *http.Client
}

// NewHTTPOrigin serves references relative to baseURL. A nil client gets a 30s timeout.
func NewHTTPOrigin(baseURL string, client *http.Client) (*HTTPOrigin, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid files base url %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPOrigin{baseURL: u, client: client}, nil
}

func (o *HTTPOrigin) Fetch(ctx context.Context, ref string) (*Object, error) {
	target, err := o.resolve(ref)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build origin request")
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request origin")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		_ = resp.Body.Close()
		return nil, errors.Errorf("origin responded %s", resp.Status)
	}

	return withDefaults(&Object{
		Body:               resp.Body,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		ContentLength:      resp.ContentLength,
	}), nil
}

// resolve joins ref under the base URL. The result never leaves the base host or path.
func (o *HTTPOrigin) resolve(ref string) (*url.URL, error) {
	segments, rawQuery, err := parseRef(ref)
	if err != nil {
		return nil, err
	}

	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}

	target := o.baseURL.JoinPath(escaped...)
	target.RawQuery = rawQuery

	if target.Scheme != o.baseURL.Scheme || target.Host != o.baseURL.Host || !strings.HasPrefix(target.Path, o.baseURL.Path) {
		return nil, ErrInvalidRef
	}
	return target, nil
}
