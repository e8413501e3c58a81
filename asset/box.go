// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sort"

	"github.com/gobuffalo/packd"
	"github.com/gobuffalo/packr"
)

// BoxFetcher serves resources packed into the binary with packr.
type BoxFetcher struct {
	Box packr.Box
}

// Fetch implements interface
func (b BoxFetcher) Fetch(ctx context.Context, locator string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !b.Box.Has(locator) {
		return nil, ErrNotFound
	}
	data, err := b.Box.Find(locator)
	if err != nil {
		return nil, err
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

// List implements interface
func (b BoxFetcher) List() ([]string, error) {
	var locators []string
	err := b.Box.Walk(func(name string, _ packd.File) error {
		locators = append(locators, name)
		return nil
	})
	sort.Strings(locators)
	return locators, err
}
