// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package device opens rendering devices for the gfx backends that need
// one and describes the hardware available to them.
package device

import (
	"fmt"
	"strings"

	vk "github.com/devblok/vulkan"
)

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        vk.DeviceSize
}

func (p PhysicalDeviceInfo) String() string {
	state := "ok"
	if p.Invalid {
		state = "invalid"
	}
	return fmt.Sprintf("%s [%04x:%04x] driver %d, %d MiB, %d extensions (%s)",
		strings.TrimSpace(p.Name), p.VendorID, p.ID, p.DriverVersion,
		uint64(p.Memory)>>20, len(p.Extensions), state)
}

// Device describes a non-concrete rendering device
type Device interface {
	PhysicalDevices() []PhysicalDeviceInfo
	Destroy()
}
