package wire

import (
	"fmt"
	"strings"
)

// Latitude renders the latitude as a degrees/minutes string, e.g.
// "N 39°29.37710'". Two leading digits are degrees, the rest minutes. If the
// raw value does not follow the ddmm.mmmmm shape, hemisphere and raw value
// are joined as-is so nothing is hidden from the operator.
func (f *Frame) Latitude() string {
	return formatCoordinate(f.LatHemi, f.LatRaw, 2)
}

// Longitude renders the longitude as a degrees/minutes string, e.g.
// "E 115°57.93466'". Three leading digits are degrees.
func (f *Frame) Longitude() string {
	return formatCoordinate(f.LonHemi, f.LonRaw, 3)
}

func formatCoordinate(hemi, raw string, degreeDigits int) string {
	if len(raw) > degreeDigits && strings.Contains(raw, ".") {
		return fmt.Sprintf("%s %s°%s'", hemi, raw[:degreeDigits], raw[degreeDigits:])
	}
	return hemi + raw
}
