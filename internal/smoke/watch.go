package smoke

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/beacongrid/internal/ctxlog"
)

// liveNamespace and liveEvent must match the server's live hub.
const (
	liveNamespace = "/live"
	liveEvent     = "beacon"
)

// liveSighting identifies one broadcast record.
type liveSighting struct {
	IDNumber  string
	MessageID string
}

// Watcher subscribes to beacond's live channel and confirms that accepted
// messages are actually broadcast.
type Watcher struct {
	io        *socket.Socket
	sightings chan liveSighting
}

// NewWatcher connects to the live namespace of the server behind the given
// API endpoint and waits for the connection to establish.
func NewWatcher(ctx context.Context, endpoint string, timeout time.Duration) (*Watcher, error) {
	logger := ctxlog.FromContext(ctx).With("namespace", liveNamespace)

	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)

	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(liveNamespace, opts)

	w := &Watcher{
		io: io,
		// Buffered so broadcasts between Await calls are not dropped.
		sightings: make(chan liveSighting, 64),
	}

	connected := make(chan struct{}, 1)
	connectErr := make(chan error, 1)

	io.On(types.EventName("connect"), func(...any) {
		logger.Debug("Watch connection established.", "sid", io.Id())
		// Fires again on every reconnect; only the startup select reads,
		// so the send must never block the event loop.
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		if err, ok := errs[0].(error); ok {
			connectErr <- err
			return
		}
		connectErr <- fmt.Errorf("connect_error: %v", errs[0])
	})
	io.On(types.EventName(liveEvent), func(data ...any) {
		if len(data) == 0 {
			return
		}
		sighting, ok := parseSighting(data[0])
		if !ok {
			logger.Warn("Discarding unparseable live event.", "payload", data[0])
			return
		}
		select {
		case w.sightings <- sighting:
		default:
			logger.Warn("Sighting buffer full, dropping event.", "idNumber", sighting.IDNumber)
		}
	})

	io.Connect()

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-connected:
		logger.Info("Watching live channel.", "url", baseURL)
		return w, nil
	case err := <-connectErr:
		io.Disconnect()
		return nil, fmt.Errorf("failed to connect to live channel: %w", err)
	case <-connectCtx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("timed out while waiting for initial connection")
	}
}

// Await blocks until a broadcast for the given message arrives or the
// context expires. Broadcasts for other messages are consumed and ignored.
func (w *Watcher) Await(ctx context.Context, idNumber, messageID string) error {
	want := liveSighting{IDNumber: idNumber, MessageID: messageID}
	for {
		select {
		case got := <-w.sightings:
			if got == want {
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("no broadcast for device %s message %s: %w", idNumber, messageID, ctx.Err())
		}
	}
}

// Close disconnects from the live channel.
func (w *Watcher) Close() {
	w.io.Disconnect()
}

// parseSighting digs the identifying fields out of a broadcast payload,
// which arrives as generic decoded JSON.
func parseSighting(payload any) (liveSighting, bool) {
	entry, ok := payload.(map[string]any)
	if !ok {
		return liveSighting{}, false
	}
	id, _ := entry["id_number"].(string)

	record, ok := entry["record"].(map[string]any)
	if !ok {
		return liveSighting{}, false
	}
	raw, ok := record["raw_post_data"].(map[string]any)
	if !ok {
		return liveSighting{}, false
	}
	messageID, _ := raw["MessageId"].(string)

	if id == "" || messageID == "" {
		return liveSighting{}, false
	}
	return liveSighting{IDNumber: id, MessageID: messageID}, true
}
