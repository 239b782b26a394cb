// Package wire implements the hex-encoded position frame carried in the
// Content field of a beacon message.
//
// Frame layout (offsets in bytes after hex decoding):
//
//	0       marker, always 0xA4
//	1-8     fix time, ASCII "HH:MM:SS"
//	9-19    latitude: hemisphere 'N'/'S' followed by "ddmm.mmmmm"
//	20-31   longitude: hemisphere 'E'/'W' followed by "dddmm.mmmmm"
//	32-39   elevation, ASCII
//	40      separator, ASCII '-'
//	41-     free-form payload, GBK with UTF-8 fallback
package wire

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

const (
	// Marker is the mandatory first byte of every frame.
	Marker = 0xA4

	fixTimeLen   = 8
	latitudeLen  = 11
	longitudeLen = 12
	elevationLen = 8

	// Separator sits between the fixed position fields and the payload.
	Separator = '-'
)

// Frame is the decoded form of a position frame. A frame with a non-empty
// Err could not be decoded past the marker check; a non-empty Warning marks
// fields that did not match the expected shape but were kept raw.
type Frame struct {
	FixTime    string `json:"fix_time,omitempty"`
	LatHemi    string `json:"lat_hemisphere,omitempty"`
	LatRaw     string `json:"lat_raw,omitempty"`
	LonHemi    string `json:"lon_hemisphere,omitempty"`
	LonRaw     string `json:"lon_raw,omitempty"`
	Elevation  string `json:"elevation,omitempty"`
	Separator  string `json:"separator,omitempty"`
	Payload    string `json:"payload,omitempty"`
	PayloadHex string `json:"payload_hex,omitempty"`
	Err        string `json:"parse_error,omitempty"`
	Warning    string `json:"parse_warning,omitempty"`
}

// Valid reports whether the frame decoded without a hard error. Frames with
// warnings are still valid.
func (f *Frame) Valid() bool {
	return f.Err == ""
}

// Parse decodes a hex string into a Frame. It never returns nil: hard
// failures (bad hex, missing marker) are recorded in Frame.Err so the caller
// can store the outcome alongside the raw message, matching how undecodable
// traffic is kept for inspection rather than dropped.
func Parse(hexStr string) *Frame {
	f := &Frame{}

	raw, err := hex.DecodeString(strings.TrimSpace(hexStr))
	if err != nil {
		f.Err = fmt.Sprintf("content is not valid hex: %v", err)
		return f
	}
	if len(raw) == 0 || raw[0] != Marker {
		f.Err = fmt.Sprintf("frame does not start with marker byte 0x%02X", Marker)
		return f
	}

	offset := 1

	f.FixTime = takeASCII(raw, &offset, fixTimeLen)

	lat := takeASCII(raw, &offset, latitudeLen)
	f.LatHemi, f.LatRaw = splitHemisphere(lat)
	if f.LatHemi != "N" && f.LatHemi != "S" {
		f.warn("latitude hemisphere is not N or S")
	}

	lon := takeASCII(raw, &offset, longitudeLen)
	f.LonHemi, f.LonRaw = splitHemisphere(lon)
	if f.LonHemi != "E" && f.LonHemi != "W" {
		f.warn("longitude hemisphere is not E or W")
	}

	f.Elevation = takeASCII(raw, &offset, elevationLen)

	f.Separator = takeASCII(raw, &offset, 1)
	if f.Separator != string(Separator) {
		f.warn("separator is not '-'")
	}

	payload := raw[min(offset, len(raw)):]
	f.PayloadHex = strings.ToUpper(hex.EncodeToString(payload))
	if len(payload) > 0 {
		decoded, ok := decodePayload(payload)
		f.Payload = decoded
		if !ok {
			f.warn("payload is not decodable as GBK or UTF-8")
		}
	}

	return f
}

// takeASCII consumes up to n bytes and advances the offset. Short frames
// yield truncated fields, which the hemisphere and separator checks then
// flag as warnings.
func takeASCII(raw []byte, offset *int, n int) string {
	start := min(*offset, len(raw))
	end := min(start+n, len(raw))
	*offset += n
	return string(raw[start:end])
}

// splitHemisphere separates the leading hemisphere letter from the raw
// coordinate digits.
func splitHemisphere(s string) (hemi, rest string) {
	if s == "" {
		return "", ""
	}
	return s[:1], s[1:]
}

// decodePayload tries GBK first, then plain UTF-8. The boolean is false when
// neither produced a clean decode; the caller still gets the best effort.
func decodePayload(b []byte) (string, bool) {
	if decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(b); err == nil && !bytes.ContainsRune(decoded, utf8.RuneError) {
		return string(decoded), true
	}
	if utf8.Valid(b) {
		return string(b), true
	}
	return "", false
}

func (f *Frame) warn(msg string) {
	if f.Warning != "" {
		f.Warning += "; "
	}
	f.Warning += msg
}
