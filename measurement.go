package trendreport

// Unit conversion helpers for the report template.
// 1 inch = 72 points = 25.4 mm.

const (
	pointsPerInch = 72.0
	mmPerInch     = 25.4
)

// PointToMM converts typographic points to millimeters.
func PointToMM(pt float64) float64 {
	return pt / pointsPerInch * mmPerInch
}

// MMToPoint converts millimeters to typographic points.
func MMToPoint(mm float64) float64 {
	return mm / mmPerInch * pointsPerInch
}

// InchToPoint converts inches to typographic points.
func InchToPoint(in float64) float64 {
	return in * pointsPerInch
}

// A4 page geometry in points, portrait.
const (
	pageWidthPt  = 595.28
	pageHeightPt = 841.89
)
