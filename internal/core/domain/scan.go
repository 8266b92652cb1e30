package domain

import (
	"fmt"
	"time"
)

// ScanType selects passive listening or active probing per channel.
type ScanType int

const (
	ScanTypePassive ScanType = iota
	ScanTypeActive
)

func (t ScanType) String() string {
	if t == ScanTypeActive {
		return "active"
	}
	return "passive"
}

// BSSType filters the kind of network a scan is interested in.
type BSSType int

const (
	BSSTypeAny BSSType = iota
	BSSTypeInfrastructure
	BSSTypeIndependent
)

// ScanResultCode terminates every started scan exactly once.
type ScanResultCode int

const (
	ScanSuccess ScanResultCode = iota
	ScanNotSupported
	ScanInvalidArgs
	ScanInternalError
)

func (c ScanResultCode) String() string {
	switch c {
	case ScanSuccess:
		return "success"
	case ScanNotSupported:
		return "not-supported"
	case ScanInvalidArgs:
		return "invalid-args"
	case ScanInternalError:
		return "internal-error"
	}
	return "unknown"
}

// ScanRequest is immutable for the duration of one scan.
type ScanRequest struct {
	TxID           uint32  `json:"txid"`
	BSSID          MAC     `json:"bssid"`
	SSID           string  `json:"ssid"`
	BSSType        BSSType `json:"bss_type"`
	ScanType       ScanType `json:"scan_type"`
	Channels       []uint8 `json:"channels"`
	MinChannelTime uint32  `json:"min_channel_time"` // milliseconds
	MaxChannelTime uint32  `json:"max_channel_time"` // milliseconds
	ProbeDelay     uint32  `json:"probe_delay"` // milliseconds, active scans only
}

// Validate rejects requests the scanner must never start.
func (r *ScanRequest) Validate() error {
	if len(r.Channels) == 0 {
		return fmt.Errorf("scan request: empty channel list: %w", ErrInvalidArgs)
	}
	if r.MaxChannelTime < r.MinChannelTime {
		return fmt.Errorf("scan request: max_channel_time %d < min_channel_time %d: %w",
			r.MaxChannelTime, r.MinChannelTime, ErrInvalidArgs)
	}
	return nil
}

// Clone returns a deep copy owned by the scanner for the scan's lifetime.
func (r *ScanRequest) Clone() *ScanRequest {
	out := *r
	out.Channels = make([]uint8, len(r.Channels))
	copy(out.Channels, r.Channels)
	return &out
}

// Directed reports whether the request targets a single BSS rather than the
// broadcast BSSID.
func (r *ScanRequest) Directed() bool {
	return r.BSSID != (MAC{}) && !r.BSSID.IsBroadcast()
}

// Dwell returns how long the scanner stays on each channel.
func (r *ScanRequest) Dwell() time.Duration {
	return time.Duration(r.MaxChannelTime) * time.Millisecond
}

// ProbeDelayDuration returns the wait before probing on a fresh channel.
func (r *ScanRequest) ProbeDelayDuration() time.Duration {
	return time.Duration(r.ProbeDelay) * time.Millisecond
}

// Bss is the most recently observed state of one discovered network,
// keyed by BSSID. Records live only within a single scan.
type Bss struct {
	BSSID          MAC       `json:"bssid"`
	SSID           string    `json:"ssid"`
	Hidden         bool      `json:"hidden"`
	BSSType        BSSType   `json:"bss_type"`
	BeaconInterval uint16    `json:"beacon_interval"`
	Capabilities   uint16    `json:"capabilities"`
	Channel        uint8     `json:"channel"`
	RSSI           int       `json:"rssi"`
	Rates          []uint8   `json:"rates"`
	HasRSN         bool      `json:"has_rsn"`
	Timestamp      uint64    `json:"timestamp"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
}

// ScanResult carries one discovered BSS back to the requester.
type ScanResult struct {
	TxID   uint32 `json:"txid"`
	ScanID string `json:"scan_id"`
	Bss    Bss    `json:"bss"`
}

// ScanEnd terminates a scan transaction.
type ScanEnd struct {
	TxID   uint32         `json:"txid"`
	ScanID string         `json:"scan_id"`
	Code   ScanResultCode `json:"code"`
}

// HwScanConfig is handed to the driver for hardware-offloaded scans.
type HwScanConfig struct {
	ScanType ScanType
	Channels []uint8
	SSID     string
	BSSID    MAC
}

// Directed reports whether the offloaded scan targets a single BSS.
func (c *HwScanConfig) Directed() bool {
	return c.BSSID != (MAC{}) && !c.BSSID.IsBroadcast()
}
