package crqa

import "github.com/qcrqa/crqa-accel/internal/constants"

// Re-export the fixed sizes and identifiers a caller of the public API
// needs, without requiring an import of internal/constants.
const (
	SignalLength      = constants.N
	DefaultThreshold  = constants.DefaultR
	VendorID          = constants.VendorID
	DeviceID          = constants.DeviceID
	CharDeviceName    = constants.CharDeviceName
	DefaultSocketPath = constants.DefaultSocketPath
	RegionSize        = constants.RegionSize
)
