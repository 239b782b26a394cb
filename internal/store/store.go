// Package store holds the per-device message history behind a small
// interface with three interchangeable backends: in-memory, a JSON snapshot
// file, and redis.
package store

import (
	"context"
	"errors"

	"github.com/vk/beacongrid/internal/beacon"
)

// ErrUnknownDevice is returned by History for a device id that has never
// been seen.
var ErrUnknownDevice = errors.New("unknown device")

// Entry pairs a device id with one of its records.
type Entry struct {
	IDNumber string        `json:"id_number"`
	Record   beacon.Record `json:"record"`
}

// Store is the per-device append-only history. Histories are never
// overwritten; every accepted message is appended.
type Store interface {
	// Append adds a record to the device's history.
	Append(ctx context.Context, id string, rec beacon.Record) error

	// History returns the device's records in arrival order, or
	// ErrUnknownDevice.
	History(ctx context.Context, id string) ([]beacon.Record, error)

	// Latest returns the most recent record of every device, newest
	// receive time first.
	Latest(ctx context.Context) ([]Entry, error)
}
