// Package filestore downloads resume files from object storage.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/config"
)

var (
	ErrFileNotFound = errors.New("resume file not found in storage")
	ErrFileTooLarge = errors.New("resume file exceeds size limit")
	ErrForeignURL   = errors.New("resume file url is outside the storage origin")
)

// Fetcher reads objects from a storage bucket over HTTP.
type Fetcher struct {
	baseURL    string
	origin     *url.URL
	bucket     string
	serviceKey string
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
}

func NewFetcher(cfg config.StorageConfig, logger *slog.Logger) *Fetcher {
	f := &Fetcher{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		bucket:     cfg.Bucket,
		serviceKey: cfg.ServiceKey,
		maxBytes:   cfg.MaxFileBytes,
		logger:     logger,
	}
	if u, err := url.Parse(f.baseURL); err == nil && u.Host != "" {
		f.origin = u
	}
	f.httpClient = &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			if !f.sameOrigin(req.URL) {
				return ErrForeignURL
			}
			return nil
		},
	}
	return f
}

// ObjectURL resolves a stored file reference. Absolute http(s) URLs must
// point at the configured storage origin; anything else is treated as a
// path inside the bucket.
func (f *Fetcher) ObjectURL(ref string) (string, error) {
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		if (u.Scheme != "http" && u.Scheme != "https") || !f.sameOrigin(u) {
			return "", ErrForeignURL
		}
		return ref, nil
	}

	if f.baseURL == "" || f.origin == nil {
		return "", fmt.Errorf("storage base_url is not configured")
	}

	path := strings.TrimLeft(ref, "/")
	if f.bucket != "" {
		path = strings.TrimPrefix(path, f.bucket+"/")
	}
	if path == "" {
		return "", fmt.Errorf("empty file reference")
	}

	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return fmt.Sprintf("%s/storage/v1/object/%s/%s", f.baseURL, url.PathEscape(f.bucket), strings.Join(segments, "/")), nil
}

func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	target, err := f.ObjectURL(ref)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build storage request: %w", err)
	}
	if f.serviceKey != "" && f.sameOrigin(req.URL) {
		req.Header.Set("Authorization", "Bearer "+f.serviceKey)
		req.Header.Set("apikey", f.serviceKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrForeignURL) {
			return nil, ErrForeignURL
		}
		return nil, fmt.Errorf("storage request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrFileNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("storage returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, ErrFileTooLarge
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read resume file: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, ErrFileTooLarge
	}

	f.logger.Debug("resume file downloaded",
		slog.Int("bytes", len(data)),
	)

	return data, nil
}

func (f *Fetcher) sameOrigin(u *url.URL) bool {
	return f.origin != nil &&
		strings.EqualFold(u.Scheme, f.origin.Scheme) &&
		strings.EqualFold(u.Host, f.origin.Host)
}
