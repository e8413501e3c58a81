// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"errors"
	"fmt"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// package errors
var (
	ErrNoDevice        = errors.New("no vulkan physical device available")
	ErrNoGraphicsQueue = errors.New("no queue family with graphics support")
)

// DefaultVulkanApplicationInfo names the application to the driver.
var DefaultVulkanApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 0, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   "orbiter\x00",
	PEngineName:        "orbiter\x00",
}

// VulkanConfiguration selects the device to open.
type VulkanConfiguration struct {
	AppInfo *vk.ApplicationInfo

	// DeviceIndex is the physical device used for the logical device.
	DeviceIndex int

	// Logical requests a logical device and graphics queue. Listing
	// devices only needs the instance.
	Logical bool

	// DebugMode enables the standard validation layer.
	DebugMode bool
}

// NewVulkanDevice creates the instance and, when requested, a logical
// device without presentation support.
func NewVulkanDevice(cfg VulkanConfiguration) (*Vulkan, error) {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, errors.New("vk.SetDefaultGetInstanceProcAddr(): " + err.Error())
	}
	if err := vk.Init(); err != nil {
		return nil, errors.New("vk.Init(): " + err.Error())
	}

	appInfo := cfg.AppInfo
	if appInfo == nil {
		appInfo = DefaultVulkanApplicationInfo
	}

	var layers []string
	if cfg.DebugMode {
		layers = append(layers, "VK_LAYER_LUNARG_standard_validation\x00")
	}
	instanceInfo := vk.InstanceCreateInfo{
		SType:               vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:    appInfo,
		EnabledLayerCount:   uint32(len(layers)),
		PpEnabledLayerNames: layers,
	}

	v := &Vulkan{}
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &v.instance)); err != nil {
		return nil, errors.New("vk.CreateInstance(): " + err.Error())
	}
	vk.InitInstance(v.instance)

	if err := v.enumerateDevices(); err != nil {
		v.Destroy()
		return nil, err
	}

	if cfg.Logical {
		if err := v.createLogicalDevice(cfg.DeviceIndex); err != nil {
			v.Destroy()
			return nil, err
		}
	}
	return v, nil
}

// Vulkan is a vulkan instance with an optional logical device.
type Vulkan struct {
	availableDevices []vk.PhysicalDevice

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	queue          vk.Queue
	queueIndex     uint32
}

// Logical returns the logical device, nil unless requested.
func (v *Vulkan) Logical() vk.Device {
	return v.device
}

// Physical returns the physical device backing the logical device.
func (v *Vulkan) Physical() vk.PhysicalDevice {
	return v.physicalDevice
}

// Queue returns the graphics queue of the logical device.
func (v *Vulkan) Queue() vk.Queue {
	return v.queue
}

func (v *Vulkan) enumerateDevices() error {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(v.instance, &deviceCount, nil)); err != nil {
		return fmt.Errorf("vk.EnumeratePhysicalDevices(): %s", err)
	}
	v.availableDevices = make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(v.instance, &deviceCount, v.availableDevices)); err != nil {
		return fmt.Errorf("vk.EnumeratePhysicalDevices(): %s", err)
	}
	return nil
}

func (v *Vulkan) createLogicalDevice(index int) error {
	if index < 0 || index >= len(v.availableDevices) {
		return ErrNoDevice
	}
	v.physicalDevice = v.availableDevices[index]

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(v.physicalDevice, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(v.physicalDevice, &queueFamilyCount, queueFamilies)

	found := false
	for i := uint32(0); i < queueFamilyCount; i++ {
		queueFamilies[i].Deref()
		if queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			v.queueIndex = i
			found = true
			break
		}
	}
	if !found {
		return ErrNoGraphicsQueue
	}

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: v.queueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}
	dci := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(queueInfos)),
		PQueueCreateInfos:    queueInfos,
	}

	var dev vk.Device
	if err := vk.Error(vk.CreateDevice(v.physicalDevice, &dci, nil, &dev)); err != nil {
		return errors.New("vk.CreateDevice(): " + err.Error())
	}
	vk.GetDeviceQueue(dev, v.queueIndex, 0, &v.queue)
	v.device = dev

	log.WithFields(log.Fields{
		"device": index,
		"queue":  v.queueIndex,
	}).Debug("vulkan logical device created")
	return nil
}

// PhysicalDevices implements interface
func (v *Vulkan) PhysicalDevices() []PhysicalDeviceInfo {
	pdi := make([]PhysicalDeviceInfo, len(v.availableDevices))
	for i, pd := range v.availableDevices {
		var numDeviceExtensions uint32
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &numDeviceExtensions, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceExt := make([]vk.ExtensionProperties, numDeviceExtensions)
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &numDeviceExtensions, deviceExt)); err != nil {
			pdi[i].Invalid = true
		}
		for _, ext := range deviceExt {
			ext.Deref()
			pdi[i].Extensions = append(pdi[i].Extensions, vk.ToString(ext.ExtensionName[:]))
		}

		var numDeviceLayers uint32
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(pd, &numDeviceLayers, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceLayers := make([]vk.LayerProperties, numDeviceLayers)
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(pd, &numDeviceLayers, deviceLayers)); err != nil {
			pdi[i].Invalid = true
		}
		for _, layer := range deviceLayers {
			layer.Deref()
			pdi[i].Layers = append(pdi[i].Layers, vk.ToString(layer.LayerName[:]))
		}

		var memoryProperties vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(pd, &memoryProperties)
		memoryProperties.Deref()
		for iMem := uint32(0); iMem < memoryProperties.MemoryHeapCount; iMem++ {
			memoryProperties.MemoryHeaps[iMem].Deref()
			pdi[i].Memory += memoryProperties.MemoryHeaps[iMem].Size
		}

		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()
		pdi[i].ID = int(properties.DeviceID)
		pdi[i].VendorID = int(properties.VendorID)
		pdi[i].Name = vk.ToString(properties.DeviceName[:])
		pdi[i].DriverVersion = int(properties.DriverVersion)
	}
	return pdi
}

// Destroy implements interface
func (v *Vulkan) Destroy() {
	if v == nil {
		return
	}
	v.availableDevices = nil
	if v.device != nil {
		vk.DeviceWaitIdle(v.device)
		vk.DestroyDevice(v.device, nil)
		v.device = nil
	}
	vk.DestroyInstance(v.instance, nil)
}
