// ABOUTME: Version and identity constants for the virtual audio cable
// ABOUTME: Reported by the device, the tap server hello and the CLI
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the device name shown to applications
	Product = "Virtual Audio Cable"

	// ShortName is the abbreviated device name
	ShortName = "VAC"

	// Manufacturer is the device vendor string
	Manufacturer = "DL1YCF"
)
