// Package report uploads accepted hit events to the collection server as the
// JSON client messages its /api/v1/hits endpoint parses. All network I/O in
// roadcore lives here; the detectors themselves never touch the network.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nidsdepoule/roadcore/internal/logging"
	"github.com/nidsdepoule/roadcore/pkg/impact"
)

const protocolVersion = 1

// Config holds the upload settings.
type Config struct {
	ServerURL  string        `mapstructure:"server_url"`
	AppVersion int           `mapstructure:"app_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxPending int           `mapstructure:"max_pending"` // oldest hits are dropped beyond this
}

// DefaultConfig returns conservative upload settings.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		MaxPending: 100,
	}
}

// Telemetry carries the location context attached to an uploaded hit. It is
// supplied by the GPS collaborator; the detection core neither produces nor
// consumes it.
type Telemetry struct {
	LatMicroDeg int64
	LonMicroDeg int64
	AccuracyM   int
	SpeedMps    float64
	BearingDeg  float64
}

// Wire format mirrors the server's JSON parser.

type wireLocation struct {
	LatMicroDeg int64 `json:"lat_microdeg"`
	LonMicroDeg int64 `json:"lon_microdeg"`
	AccuracyM   int   `json:"accuracy_m"`
}

type wirePattern struct {
	Severity            int     `json:"severity"`
	PeakVerticalMg      int32   `json:"peak_vertical_mg"`
	DurationMs          int64   `json:"duration_ms"`
	WaveformVertical    []int32 `json:"waveform_vertical"`
	BaselineMg          int32   `json:"baseline_mg"`
	PeakToBaselineRatio int32   `json:"peak_to_baseline_ratio"`
}

type wireHit struct {
	TimestampMs int64        `json:"timestamp_ms"`
	Location    wireLocation `json:"location"`
	SpeedMps    float64      `json:"speed_mps"`
	BearingDeg  float64      `json:"bearing_deg"`
	Pattern     wirePattern  `json:"pattern"`
}

type wireBatch struct {
	Hits []wireHit `json:"hits"`
}

type wireHeartbeat struct {
	TimestampMs int64 `json:"timestamp_ms"`
	PendingHits int   `json:"pending_hits"`
}

type clientMessage struct {
	ProtocolVersion int            `json:"protocol_version"`
	DeviceID        string         `json:"device_id"`
	AppVersion      int            `json:"app_version"`
	Hit             *wireHit       `json:"hit,omitempty"`
	Batch           *wireBatch     `json:"batch,omitempty"`
	Heartbeat       *wireHeartbeat `json:"heartbeat,omitempty"`
}

type serverResponse struct {
	Accepted   bool   `json:"accepted"`
	Error      string `json:"error"`
	HitsStored int    `json:"hits_stored"`
}

// Client batches hit events and posts them to the collection server. Pending
// hits survive transport failures and are retried on the next flush.
type Client struct {
	cfg      Config
	deviceID string
	httpc    *http.Client
	logger   logging.Logger

	mu      sync.Mutex
	pending []wireHit
}

// NewClient creates a reporting client with a fresh device identity.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxPending == 0 {
		cfg.MaxPending = def.MaxPending
	}

	deviceID := uuid.NewString()
	return &Client{
		cfg:      cfg,
		deviceID: deviceID,
		httpc:    &http.Client{Timeout: cfg.Timeout},
		logger: logging.WithFields(logging.Fields{
			"component": "report_client",
			"device_id": deviceID,
		}),
	}
}

// DeviceID returns the device identity attached to every upload.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// Enqueue converts a hit event plus its telemetry to wire form and queues it
// for upload. Beyond MaxPending the oldest hits are dropped.
func (c *Client) Enqueue(hit *impact.HitEvent, tel Telemetry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, wireHit{
		TimestampMs: hit.TimestampMs,
		Location: wireLocation{
			LatMicroDeg: tel.LatMicroDeg,
			LonMicroDeg: tel.LonMicroDeg,
			AccuracyM:   tel.AccuracyM,
		},
		SpeedMps:   tel.SpeedMps,
		BearingDeg: tel.BearingDeg,
		Pattern: wirePattern{
			Severity:            hit.Severity,
			PeakVerticalMg:      hit.PeakMagnitudeMg,
			DurationMs:          hit.DurationMs,
			WaveformVertical:    hit.Waveform,
			BaselineMg:          hit.BaselineMg,
			PeakToBaselineRatio: hit.PeakToBaselineRatioPct,
		},
	})

	if len(c.pending) > c.cfg.MaxPending {
		dropped := len(c.pending) - c.cfg.MaxPending
		c.pending = c.pending[dropped:]
		c.logger.Warn("pending queue overflow, dropped oldest hits", logging.Fields{
			"dropped": dropped,
		})
	}
}

// Pending returns the number of hits waiting for upload.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Flush uploads all pending hits as one batch message. Hits rejected by the
// server are dropped (retrying cannot help); transport failures keep them
// queued for the next flush.
func (c *Client) Flush(ctx context.Context) (int, error) {
	c.mu.Lock()
	batch := make([]wireHit, len(c.pending))
	copy(batch, c.pending)
	c.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}

	msg := clientMessage{
		ProtocolVersion: protocolVersion,
		DeviceID:        c.deviceID,
		AppVersion:      c.cfg.AppVersion,
		Batch:           &wireBatch{Hits: batch},
	}

	resp, err := c.post(ctx, msg)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.pending = c.pending[min(len(batch), len(c.pending)):]
	c.mu.Unlock()

	if !resp.Accepted {
		c.logger.Warn("server rejected hit batch", logging.Fields{
			"error": resp.Error,
			"hits":  len(batch),
		})
		return 0, nil
	}

	c.logger.Info("hit batch uploaded", logging.Fields{
		"hits_stored": resp.HitsStored,
	})
	return resp.HitsStored, nil
}

// Heartbeat tells the server the device is alive and how many hits are
// waiting locally.
func (c *Client) Heartbeat(ctx context.Context) error {
	msg := clientMessage{
		ProtocolVersion: protocolVersion,
		DeviceID:        c.deviceID,
		AppVersion:      c.cfg.AppVersion,
		Heartbeat: &wireHeartbeat{
			TimestampMs: time.Now().UnixMilli(),
			PendingHits: c.Pending(),
		},
	}
	_, err := c.post(ctx, msg)
	return err
}

func (c *Client) post(ctx context.Context, msg clientMessage) (*serverResponse, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode client message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.ServerURL+"/api/v1/hits", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hit upload failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp serverResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode server response: %w", err)
	}
	return &resp, nil
}
