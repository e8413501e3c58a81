// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset

import (
	"context"
	"io"
	"io/ioutil"

	"github.com/devblok/orbiter/utility/kar"
	"golang.org/x/exp/mmap"
)

// OpenArchive memory maps a kar archive and serves resources from it.
// The returned fetcher must be closed.
func OpenArchive(path string) (*ArchiveFetcher, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	ar, err := kar.Open(r)
	if err != nil {
		r.Close()
		return nil, err
	}
	return &ArchiveFetcher{archive: ar, closer: r}, nil
}

// NewArchiveFetcher serves resources from an already opened archive.
func NewArchiveFetcher(ar *kar.Archive) *ArchiveFetcher {
	return &ArchiveFetcher{archive: ar}
}

// ArchiveFetcher reads resources from a kar archive. Entries are
// decompressed on the fly.
type ArchiveFetcher struct {
	archive *kar.Archive
	closer  io.Closer
}

// Fetch implements interface
func (a *ArchiveFetcher) Fetch(ctx context.Context, locator string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := a.archive.Open(locator)
	if err == kar.ErrNotExist {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return ioutil.NopCloser(r), nil
}

// List implements interface
func (a *ArchiveFetcher) List() ([]string, error) {
	return a.archive.Names(), nil
}

// Close unmaps the archive if it was opened by OpenArchive.
func (a *ArchiveFetcher) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
