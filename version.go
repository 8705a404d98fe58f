package trendreport

import "fmt"

// Version information for the report rendering pipeline. The health
// probe reports this so operators can confirm which build is serving
// traffic before raising the split.
const (
	VersionMajor = 1
	VersionMinor = 2
	VersionPatch = 0
)

// Version is the full version string of the rendering pipeline.
var Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
