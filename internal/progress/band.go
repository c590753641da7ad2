package progress

// Band colors, lowest to highest.
const (
	ColorRed    = "#FF0000"
	ColorOrange = "#E27602"
	ColorYellow = "#FFDE21"
	ColorGreen  = "#86DC3D"
	ColorBlue   = "#0CBFE9"
)

// BandColor returns the progress bar color for a fill fraction.
func BandColor(fraction float64) string {
	switch {
	case fraction >= 1:
		return ColorBlue
	case fraction >= 0.75:
		return ColorGreen
	case fraction >= 0.5:
		return ColorYellow
	case fraction >= 0.25:
		return ColorOrange
	default:
		return ColorRed
	}
}
