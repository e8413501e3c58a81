// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package asset fetches named resources asynchronously and tracks their
// completion. A Queue owns a set of Tasks, starts them, runs every
// completion callback on the goroutine that called Run, and fires a single
// terminal outcome once all of them, including tasks added while loading,
// have finished.
package asset

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// package errors
var (
	ErrInvalidLocator = errors.New("invalid resource locator")
	ErrQueueClosed    = errors.New("queue already completed")
	ErrQueueRunning   = errors.New("queue is already running")
	ErrTaskStarted    = errors.New("task is not pending")
	ErrNotImage       = errors.New("resource is not an image")
	ErrNotFound       = errors.New("resource not found")
)

// Strategy tells a Task how to turn fetched bytes into a result.
type Strategy int

// Fetch strategies
const (
	// Text results are strings.
	Text Strategy = iota
	// Image results are decoded image.Image values.
	Image
	// Document results are *Doc values in JSON, YAML or TOML.
	Document
)

func (s Strategy) String() string {
	switch s {
	case Text:
		return "text"
	case Image:
		return "image"
	case Document:
		return "document"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ValidateLocator checks that locator is a relative, slash separated path
// that stays inside the asset root.
func ValidateLocator(locator string) error {
	if locator == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLocator)
	}
	if strings.ContainsAny(locator, "\x00\\") {
		return fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	u, err := url.Parse(locator)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidLocator, err.Error())
	}
	if u.Scheme != "" || u.Host != "" || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("%w: %q is not a relative path", ErrInvalidLocator, locator)
	}
	clean := path.Clean(u.Path)
	if path.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q escapes the asset root", ErrInvalidLocator, locator)
	}
	return nil
}
