// ABOUTME: Version information for the spatial sound service
// ABOUTME: Reported by --version and logged at start-up
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "Resonate Spatial"

	// Manufacturer is the maintainer
	Manufacturer = "Resonate"
)

// String formats the product and version for display
func String() string {
	return Product + " " + Version
}
