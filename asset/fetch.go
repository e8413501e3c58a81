// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Fetcher retrieves the raw bytes of a resource. Fetch is called from
// background goroutines and must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) (io.ReadCloser, error)
}

// Lister is implemented by fetchers that know every resource they hold.
type Lister interface {
	List() ([]string, error)
}

// FetcherFunc adapts a function to a Fetcher.
type FetcherFunc func(ctx context.Context, locator string) (io.ReadCloser, error)

// Fetch implements interface
func (f FetcherFunc) Fetch(ctx context.Context, locator string) (io.ReadCloser, error) {
	return f(ctx, locator)
}

// DirFetcher reads resources from a directory on disk.
type DirFetcher struct {
	Root string
}

// Fetch implements interface
func (d DirFetcher) Fetch(ctx context.Context, locator string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(d.Root, filepath.FromSlash(locator)))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return f, err
}

// List implements interface
func (d DirFetcher) List() ([]string, error) {
	var locators []string
	err := filepath.Walk(d.Root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.Root, p)
		if err != nil {
			return err
		}
		locators = append(locators, filepath.ToSlash(rel))
		return nil
	})
	return locators, err
}

// NewHTTPFetcher creates a fetcher resolving locators against base.
func NewHTTPFetcher(base string, timeout time.Duration) (*HTTPFetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
		u.Path += "/"
	}
	return &HTTPFetcher{
		base:   u,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// HTTPFetcher fetches resources from a web server.
type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
}

// StatusError is returned for responses other than 200 OK.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Fetch implements interface
func (h *HTTPFetcher) Fetch(ctx context.Context, locator string) (io.ReadCloser, error) {
	ref, err := url.Parse(locator)
	if err != nil {
		return nil, err
	}
	target := h.base.ResolveReference(ref).String()

	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	default:
		resp.Body.Close()
		return nil, &StatusError{URL: target, Code: resp.StatusCode}
	}
}
