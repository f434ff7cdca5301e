package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type Channel string

const (
	// ChannelTrack mirrors the standard pixel track call.
	ChannelTrack Channel = "track"
	// ChannelTrackSingle fires the same event at one explicit pixel id.
	ChannelTrackSingle Channel = "track_single"
	// ChannelBeacon is the flat direct GET against the beacon endpoint.
	ChannelBeacon Channel = "beacon"
)

// Channels is the order every event is delivered in.
var Channels = []Channel{ChannelTrack, ChannelTrackSingle, ChannelBeacon}

const DefaultBeaconURL = "https://www.facebook.com/tr/"

var ErrNotReady = errors.New("tracking: pixel not ready")

// Client is an analytics sink with an asynchronous readiness gate.
type Client interface {
	Ready(ctx context.Context) error
	Send(ctx context.Context, ch Channel, ev Event) error
}

type PixelConfig struct {
	PixelID       string
	SinglePixelID string
	BeaconURL     string
	SourceURL     string
	Timeout       time.Duration
}

// PixelClient talks to the pixel beacon endpoint over plain GET requests.
// It becomes ready once an initial PageView beacon has been accepted.
type PixelClient struct {
	cfg        PixelConfig
	httpClient *http.Client
	logger     *slog.Logger

	ready  atomic.Bool
	initMu sync.Mutex
	now    func() time.Time
}

func NewPixelClient(cfg PixelConfig, logger *slog.Logger) *PixelClient {
	if cfg.BeaconURL == "" {
		cfg.BeaconURL = DefaultBeaconURL
	}
	if cfg.SinglePixelID == "" {
		cfg.SinglePixelID = cfg.PixelID
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PixelClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

func (c *PixelClient) IsReady() bool {
	return c.ready.Load()
}

// Ready initialises the pixel on first use. Concurrent callers share one
// initialisation attempt; a failed attempt leaves the client not ready.
func (c *PixelClient) Ready(ctx context.Context) error {
	if c.ready.Load() {
		return nil
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.ready.Load() {
		return nil
	}

	if c.cfg.PixelID == "" {
		return fmt.Errorf("%w: pixel id not configured", ErrNotReady)
	}

	pageView := Event{Name: EventPageView}.withDefaults(c.now())
	if err := c.get(ctx, c.trackParams(c.cfg.PixelID, pageView)); err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	c.ready.Store(true)
	c.logger.Debug("tracking: pixel initialised", "pixel_id", c.cfg.PixelID)
	return nil
}

func (c *PixelClient) Send(ctx context.Context, ch Channel, ev Event) error {
	ev = ev.withDefaults(c.now())

	var params url.Values
	switch ch {
	case ChannelTrack:
		params = c.trackParams(c.cfg.PixelID, ev)
	case ChannelTrackSingle:
		params = c.trackParams(c.cfg.SinglePixelID, ev)
	case ChannelBeacon:
		params = c.beaconParams(ev)
	default:
		return fmt.Errorf("tracking: unknown channel %q", ch)
	}

	return c.get(ctx, params)
}

// trackParams encodes the event the way the pixel script does, custom data under cd[...].
func (c *PixelClient) trackParams(pixelID string, ev Event) url.Values {
	params := c.baseParams(pixelID, ev)
	if ev.Name == EventPageView {
		return params
	}

	params.Set("cd[value]", ev.Value.StringFixed(2))
	params.Set("cd[currency]", ev.Currency)
	params.Set("cd[content_type]", ev.ContentType)
	params.Set("cd[content_ids]", contentIDsJSON(ev.ContentIDs))
	params.Set("cd[content_name]", ev.ContentName)
	params.Set("cd[content_category]", ev.ContentCategory)
	if ev.OrderID != "" {
		params.Set("cd[order_id]", ev.OrderID)
	}
	if ev.NumItems > 0 {
		params.Set("cd[num_items]", strconv.Itoa(ev.NumItems))
	}
	return params
}

// beaconParams is the flat direct-request format.
func (c *PixelClient) beaconParams(ev Event) url.Values {
	params := c.baseParams(c.cfg.PixelID, ev)
	params.Set("value", ev.Value.String())
	params.Set("currency", ev.Currency)
	params.Set("content_type", ev.ContentType)
	params.Set("content_ids", contentIDsJSON(ev.ContentIDs))
	params.Set("content_name", ev.ContentName)
	params.Set("content_category", ev.ContentCategory)
	params.Set("eventSourceUrl", c.sourceURL(ev))
	if ev.OrderID != "" {
		params.Set("order_id", ev.OrderID)
	}
	return params
}

func (c *PixelClient) baseParams(pixelID string, ev Event) url.Values {
	params := url.Values{}
	params.Set("id", pixelID)
	params.Set("ev", string(ev.Name))
	params.Set("dl", c.sourceURL(ev))
	params.Set("rl", ev.Referrer)
	params.Set("if", "false")
	params.Set("ts", strconv.FormatInt(ev.Timestamp.UnixMilli(), 10))
	params.Set("eventID", ev.EventID)
	return params
}

func (c *PixelClient) sourceURL(ev Event) string {
	if ev.SourceURL != "" {
		return ev.SourceURL
	}
	return c.cfg.SourceURL
}

func (c *PixelClient) get(ctx context.Context, params url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BeaconURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create beacon request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("beacon request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("beacon endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func contentIDsJSON(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	b, _ := json.Marshal(ids)
	return string(b)
}
