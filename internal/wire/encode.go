package wire

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// Position is the authoring-side view of a frame, used by scenario files
// that want to write coordinates instead of raw hex.
type Position struct {
	FixTime   string // "HH:MM:SS"
	Latitude  string // hemisphere + ddmm.mmmmm, e.g. "N3929.37710"
	Longitude string // hemisphere + dddmm.mmmmm, e.g. "E11557.93466"
	Elevation string // up to 8 ASCII chars, right-padded with spaces
	Payload   string // free-form, GBK-encoded when possible
}

// Encode builds the uppercase hex representation of the position.
func (p Position) Encode() (string, error) {
	if len(p.FixTime) != fixTimeLen {
		return "", fmt.Errorf("fix time must be %d characters (HH:MM:SS), got %q", fixTimeLen, p.FixTime)
	}
	if len(p.Latitude) != latitudeLen || (p.Latitude[0] != 'N' && p.Latitude[0] != 'S') {
		return "", fmt.Errorf("latitude must be N/S followed by ddmm.mmmmm, got %q", p.Latitude)
	}
	if len(p.Longitude) != longitudeLen || (p.Longitude[0] != 'E' && p.Longitude[0] != 'W') {
		return "", fmt.Errorf("longitude must be E/W followed by dddmm.mmmmm, got %q", p.Longitude)
	}
	if len(p.Elevation) > elevationLen {
		return "", fmt.Errorf("elevation must be at most %d characters, got %q", elevationLen, p.Elevation)
	}

	var buf []byte
	buf = append(buf, Marker)
	buf = append(buf, p.FixTime...)
	buf = append(buf, p.Latitude...)
	buf = append(buf, p.Longitude...)
	buf = append(buf, fmt.Sprintf("%-*s", elevationLen, p.Elevation)...)
	buf = append(buf, Separator)
	buf = append(buf, encodePayload(p.Payload)...)

	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// encodePayload mirrors the decode side: GBK when the text fits, raw UTF-8
// bytes otherwise.
func encodePayload(s string) []byte {
	if s == "" {
		return nil
	}
	if encoded, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(s)); err == nil {
		return encoded
	}
	return []byte(s)
}
