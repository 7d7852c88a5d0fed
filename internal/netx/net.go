// Package netx fetches published documents over presigned object-storage
// links.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxDocumentSize bounds a downloaded document.
const MaxDocumentSize = 4 << 20

// IsURL reports whether s looks like an http(s) link rather than a path.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// FetchPresignedURL downloads the object behind a presigned GET link.
func FetchPresignedURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxDocumentSize {
		return nil, fmt.Errorf("download failed: document exceeds %d bytes", MaxDocumentSize)
	}
	return b, nil
}
