// Package beacon defines the beacon message model shared by the ingest
// server and the smoke client.
package beacon

import (
	"time"

	"github.com/vk/beacongrid/internal/wire"
)

// Field names of the application-level JSON body. RequestId is system-level
// and travels in the header (or body, for older senders) rather than being
// required.
const (
	FieldRequestID     = "RequestId"
	FieldIDNumber      = "IdNumber"
	FieldMessageID     = "MessageId"
	FieldContent       = "Content"
	FieldTime          = "Time"
	FieldDeliveryCount = "DeliveryCount"
	FieldNetworkMode   = "NetworkMode"
)

// requiredFields are the application-level fields every message must carry.
var requiredFields = []string{
	FieldIDNumber,
	FieldContent,
	FieldTime,
	FieldMessageID,
	FieldDeliveryCount,
	FieldNetworkMode,
}

// MissingFields returns the names of required fields absent from a raw
// message body, in the canonical order.
func MissingFields(raw map[string]any) []string {
	var missing []string
	for _, name := range requiredFields {
		if _, ok := raw[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// ReceiveTimeLayout is the timestamp format stored with every record.
const ReceiveTimeLayout = "2006-01-02 15:04:05"

// Message is the typed form of a beacon message, used by senders. The
// server itself works on the raw map so it can keep fields it does not
// understand.
type Message struct {
	IDNumber      string `json:"IdNumber"`
	MessageID     string `json:"MessageId"`
	Content       string `json:"Content"`
	Time          string `json:"Time"`
	DeliveryCount int    `json:"DeliveryCount"`
	NetworkMode   int    `json:"NetworkMode"`
}

// Record is one accepted message: the raw body as received, the decoded
// position frame, and the server-side receive time.
type Record struct {
	Raw         map[string]any `json:"raw_post_data"`
	Parsed      *wire.Frame    `json:"parsed_content"`
	ReceiveTime string         `json:"receive_time"`
}

// NewRecord decodes the Content field of a raw message body and stamps the
// record with the current time. Undecodable content still yields a record;
// the frame carries the parse error.
func NewRecord(raw map[string]any, now time.Time) Record {
	content, _ := raw[FieldContent].(string)
	return Record{
		Raw:         raw,
		Parsed:      wire.Parse(content),
		ReceiveTime: now.Format(ReceiveTimeLayout),
	}
}

// IDNumber extracts the device identifier from a raw message body.
func IDNumber(raw map[string]any) (string, bool) {
	id, ok := raw[FieldIDNumber].(string)
	return id, ok && id != ""
}
