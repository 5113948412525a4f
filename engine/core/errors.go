package core

import (
	"errors"
)

var (
	// ErrInitialization is fatal: the device, surface or queues could not be set up.
	ErrInitialization = errors.New("graphics initialization failed")
	// ErrSwapchainOutOfDate means the image chain no longer matches the surface and
	// must be recreated before the next frame. It is never fatal.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date or suboptimal, recreation needed")
	// ErrResourceCreation is fatal for the component that hit it (pipelines, shader
	// modules, push constant layouts, pools).
	ErrResourceCreation = errors.New("resource creation failed")
	// ErrDeviceDriver wraps any driver result outside the stale/suboptimal cases.
	ErrDeviceDriver  = errors.New("device driver error")
	ErrInvalidConfig = errors.New("invalid configuration")
)
