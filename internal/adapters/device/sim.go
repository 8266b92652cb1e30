// Package device provides DeviceInterface implementations. The simulated
// device carries a virtual air of access points, so the whole scan pipeline
// can run end to end without hardware.
package device

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/lcalzada-xor/mlmed/internal/adapters/frames"
	"github.com/lcalzada-xor/mlmed/internal/core/domain"
)

// SimAP is one access point on the simulated air.
type SimAP struct {
	BSSID          domain.MAC
	SSID           string
	Channel        uint8
	RSSI           int
	Hidden         bool
	WPA2           bool
	BeaconInterval uint16
}

// Sim is a simulated DeviceInterface. Tuning to a channel immediately emits
// one beacon per AP parked there; probe requests draw probe responses from
// matching APs. Safe for concurrent use.
type Sim struct {
	mu      sync.Mutex
	info    domain.WlanInfo
	state   domain.DeviceState
	aps     []SimAP
	channel uint8
	seq     uint16

	packets chan<- *domain.Packet
	hwDone  chan<- bool

	sent []*domain.Packet
}

// NewSim creates a simulated device. Captured frames are delivered on
// packets; hardware-scan completion lands on hwDone (aborted flag).
func NewSim(mac domain.MAC, hwOffload bool, packets chan<- *domain.Packet, hwDone chan<- bool) *Sim {
	return &Sim{
		info: domain.WlanInfo{
			MAC:           mac,
			HwScanOffload: hwOffload,
			DriverName:    "sim",
			Bands: []domain.BandCapability{
				{
					Band:          domain.Band2GHz,
					Channels:      []uint8{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
					BasicRates:    []uint8{0x82, 0x84, 0x8b, 0x96},
					ExtendedRates: []uint8{0x0c, 0x12, 0x18, 0x24, 0x30, 0x48, 0x60, 0x6c},
				},
				{
					Band:       domain.Band5GHz,
					Channels:   []uint8{36, 40, 44, 48, 149, 153, 157, 161},
					BasicRates: []uint8{0x8c, 0x12, 0x18, 0x24},
				},
			},
		},
		state:   domain.DeviceState{Address: mac, Online: true},
		channel: 1,
		packets: packets,
		hwDone:  hwDone,
	}
}

// AddAP parks an access point on the simulated air.
func (s *Sim) AddAP(ap SimAP) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aps = append(s.aps, ap)
}

func (s *Sim) GetWlanInfo() domain.WlanInfo { return s.info }
func (s *Sim) GetState() domain.DeviceState { return s.state }

// SendWlan accepts a transmit. Probe requests matching an AP on the current
// channel (by SSID, or wildcard) draw a probe response.
func (s *Sim) SendWlan(pkt *domain.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, pkt)

	ssid, ok := probeRequestSSID(pkt.Data)
	if !ok {
		return nil
	}
	for _, ap := range s.aps {
		if ap.Channel != s.channel {
			continue
		}
		if ssid != "" && ssid != ap.SSID {
			continue
		}
		s.deliver(s.synthesize(ap, layers.Dot11TypeMgmtProbeResp))
	}
	return nil
}

// TuneChannel retunes the radio and emits one beacon per AP on the new
// channel.
func (s *Sim) TuneChannel(ch uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info.BandForChannel(ch) == nil {
		return fmt.Errorf("tune channel %d: no supported band: %w", ch, domain.ErrInvalidArgs)
	}
	s.channel = ch
	for _, ap := range s.aps {
		if ap.Channel == ch {
			s.deliver(s.synthesize(ap, layers.Dot11TypeMgmtBeacon))
		}
	}
	return nil
}

// StartHwScan emits beacons for every AP on the requested channels, then
// reports completion.
func (s *Sim) StartHwScan(cfg *domain.HwScanConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(cfg.Channels) == 0 {
		return fmt.Errorf("hardware scan: empty channel list: %w", domain.ErrInvalidArgs)
	}
	for _, ch := range cfg.Channels {
		for _, ap := range s.aps {
			if ap.Channel != ch {
				continue
			}
			if cfg.SSID != "" && cfg.SSID != ap.SSID {
				continue
			}
			if cfg.Directed() && cfg.BSSID != ap.BSSID {
				continue
			}
			s.deliver(s.synthesize(ap, layers.Dot11TypeMgmtBeacon))
		}
	}
	if s.hwDone != nil {
		s.hwDone <- false
	}
	return nil
}

// GetMinstrelPeers reports one peer per AP, standing in for associated
// stations.
func (s *Sim) GetMinstrelPeers() ([]domain.MinstrelPeer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	peers := make([]domain.MinstrelPeer, 0, len(s.aps))
	for _, ap := range s.aps {
		peers = append(peers, domain.MinstrelPeer{Addr: ap.BSSID})
	}
	return peers, nil
}

func (s *Sim) GetMinstrelStats(addr domain.MAC) (domain.MinstrelStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ap := range s.aps {
		if ap.BSSID == addr {
			return domain.MinstrelStats{
				Addr:         addr,
				BestRateMbps: 54,
				Probes:       10,
				Successes:    9,
				Attempts:     12,
			}, nil
		}
	}
	return domain.MinstrelStats{}, fmt.Errorf("minstrel stats: unknown peer %s: %w", addr, domain.ErrInvalidArgs)
}

// SentFrames returns everything transmitted through SendWlan.
func (s *Sim) SentFrames() []*domain.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Packet, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *Sim) deliver(pkt *domain.Packet) {
	if s.packets != nil {
		s.packets <- pkt
	}
}

// synthesize builds a beacon or probe response for one AP.
func (s *Sim) synthesize(ap SimAP, typ layers.Dot11Type) *domain.Packet {
	s.seq++
	dot11 := &layers.Dot11{
		Type:           typ,
		Address1:       domain.BroadcastMAC.HardwareAddr(),
		Address2:       ap.BSSID.HardwareAddr(),
		Address3:       ap.BSSID.HardwareAddr(),
		SequenceNumber: s.seq,
	}

	interval := ap.BeaconInterval
	if interval == 0 {
		interval = 100
	}
	body := make([]byte, 12)
	binary.LittleEndian.PutUint16(body[8:10], interval)
	binary.LittleEndian.PutUint16(body[10:12], 0x0001) // ESS

	ssid := ap.SSID
	if ap.Hidden {
		ssid = ""
	}
	body = append(body, frames.TagSSID, byte(len(ssid)))
	body = append(body, ssid...)
	body = append(body, frames.TagSupportedRates, 4, 0x82, 0x84, 0x8b, 0x96)
	body = append(body, frames.TagDSParameterSet, 1, ap.Channel)
	if ap.WPA2 {
		body = append(body, frames.TagRSN, 20,
			0x01, 0x00, 0x00, 0x0f, 0xac, 0x04, 0x01, 0x00, 0x00, 0x0f,
			0xac, 0x04, 0x01, 0x00, 0x00, 0x0f, 0xac, 0x02, 0x00, 0x00)
	}
	body = append(body, 0x00, 0x00, 0x00, 0x00) // FCS placeholder

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, dot11, gopacket.Payload(body)); err != nil {
		// Serialization of a fixed-shape frame cannot fail at runtime.
		return &domain.Packet{Peer: domain.PeerWlan}
	}
	return &domain.Packet{
		Data:    buf.Bytes(),
		Peer:    domain.PeerWlan,
		RSSI:    ap.RSSI,
		Channel: ap.Channel,
	}
}

// probeRequestSSID extracts the requested SSID from a serialized probe
// request, skipping a leading radiotap header.
func probeRequestSSID(data []byte) (string, bool) {
	offset := 0
	if len(data) >= 4 && data[0] == 0 {
		rtLen := int(binary.LittleEndian.Uint16(data[2:4]))
		if rtLen >= 8 && rtLen < len(data) {
			offset = rtLen
		}
	}
	if len(data) < offset+24 {
		return "", false
	}
	fc := data[offset]
	if fc != 0x40 { // mgmt probe request
		return "", false
	}
	ies := data[offset+24:]
	val := frames.FindIE(ies, frames.TagSSID)
	if val == nil {
		return "", false
	}
	return string(val), true
}
