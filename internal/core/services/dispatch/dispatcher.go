// Package dispatch is the top-level demux routing raw packets, timer events,
// and service requests onto the single bound MLME instance. It owns the
// availability policy for frames arriving before MLME init (drop, counted)
// and services a small set of introspection ordinals directly.
//
// Not thread-safe: the bound Mlme pointer is replaced only between dispatch
// calls, by the one goroutine driving the event loop.
package dispatch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lcalzada-xor/mlmed/internal/adapters/wire"
	"github.com/lcalzada-xor/mlmed/internal/core/domain"
	"github.com/lcalzada-xor/mlmed/internal/core/ports"
	"github.com/lcalzada-xor/mlmed/internal/telemetry"
)

// Dispatcher multiplexes packets, port wakeups, and service messages.
type Dispatcher struct {
	device ports.DeviceInterface
	sender ports.MessageSender
	mlme   ports.Mlme

	stats domain.DispatcherStats
}

// NewDispatcher creates a dispatcher with no MLME bound yet.
func NewDispatcher(device ports.DeviceInterface, sender ports.MessageSender) *Dispatcher {
	return &Dispatcher{device: device, sender: sender}
}

// Bind installs the protocol state machine. Must only be called between
// dispatch calls.
func (d *Dispatcher) Bind(m ports.Mlme) { d.mlme = m }

// Stats returns a copy of the dispatcher counters.
func (d *Dispatcher) Stats() domain.DispatcherStats { return d.stats }

// ResetStats zeroes the dispatcher counters and the bound MLME's counters.
func (d *Dispatcher) ResetStats() {
	d.stats = domain.DispatcherStats{}
	if d.mlme != nil {
		d.mlme.ResetMlmeStats()
	}
}

// HandlePacket routes one raw packet. Packets that arrive before an MLME is
// bound are dropped silently (counted) unless they are service packets.
func (d *Dispatcher) HandlePacket(pkt *domain.Packet) error {
	if pkt == nil || len(pkt.Data) == 0 {
		return fmt.Errorf("handle packet: empty packet: %w", domain.ErrInvalidArgs)
	}
	d.stats.PacketsIn++
	telemetry.PacketsIn.WithLabelValues(pkt.Peer.String()).Inc()

	if d.mlme == nil && pkt.Peer != domain.PeerService {
		d.stats.DroppedNoMlme++
		telemetry.PacketsDropped.WithLabelValues("no_mlme").Inc()
		return nil
	}

	switch pkt.Peer {
	case domain.PeerEthernet:
		// Ethernet frames forward verbatim.
		d.stats.EthernetIn++
		return d.mlme.HandleFramePacket(pkt)

	case domain.PeerWlan:
		d.stats.WlanIn++
		family, ok := peekFrameControl(pkt.Data)
		if !ok {
			d.stats.DroppedBadFrame++
			telemetry.PacketsDropped.WithLabelValues("bad_frame").Inc()
			return nil
		}
		// Classification feeds statistics only; the packet forwards whole.
		telemetry.FramesClassified.WithLabelValues(family.String()).Inc()
		return d.mlme.HandleFramePacket(pkt)

	case domain.PeerService:
		d.stats.ServiceIn++
		return d.HandleAnyMlmeMessage(pkt.Data)
	}

	telemetry.PacketsDropped.WithLabelValues("unknown_peer").Inc()
	return fmt.Errorf("handle packet: peer %q: %w", pkt.Peer, domain.ErrBadFrame)
}

// HandlePortPacket routes a port wakeup. Only timer wakeups are meaningful;
// anything else is logged and swallowed.
func (d *Dispatcher) HandlePortPacket(key domain.PortKey) error {
	if key.Subtype != domain.PortSubtypeTimer {
		d.stats.UnsupportedPorts++
		log.Printf("dispatcher: unsupported port subtype %q", key.Subtype)
		return nil
	}
	d.stats.TimeoutsIn++
	if d.mlme == nil {
		d.stats.DroppedNoMlme++
		telemetry.PacketsDropped.WithLabelValues("no_mlme").Inc()
		return nil
	}
	if err := d.mlme.HandleTimeout(key); err != nil {
		log.Printf("dispatcher: timeout %s not handled: %v", key, err)
	}
	return nil
}

// HandleAnyMlmeMessage decodes one service message. Introspection ordinals
// are serviced here without touching the MLME; everything else recognized is
// decoded and handed over. Malformed headers are a local decode error.
func (d *Dispatcher) HandleAnyMlmeMessage(data []byte) error {
	hdr, body, err := wire.DecodeHeader(data)
	if err != nil {
		d.stats.DroppedShortHdr++
		telemetry.PacketsDropped.WithLabelValues("short_header").Inc()
		return err
	}

	switch hdr.Ordinal {
	case wire.OrdinalQueryDeviceInfo:
		return d.sendDeviceInfo(hdr.TxID)
	case wire.OrdinalQueryStats:
		return d.sendStats(hdr.TxID)
	case wire.OrdinalListMinstrelPeers:
		return d.sendMinstrelPeers(hdr.TxID)
	case wire.OrdinalGetMinstrelStats:
		return d.sendMinstrelStats(hdr, body)
	case wire.OrdinalResetStats:
		d.ResetStats()
		return nil
	}

	msg, err := wire.DecodeBody(hdr, body)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownOrdinal) {
			d.stats.UnknownOrdinals++
			return fmt.Errorf("service message: %w", domain.ErrNotSupported)
		}
		return err
	}
	if d.mlme == nil {
		return fmt.Errorf("service message ordinal %#x: %w", hdr.Ordinal, domain.ErrNoMlmeBound)
	}
	return d.mlme.HandleMlmeMsg(msg)
}

// HwIndication forwards a hardware indication to the bound MLME.
func (d *Dispatcher) HwIndication(ind uint32) error {
	if d.mlme == nil {
		return domain.ErrNoMlmeBound
	}
	return d.mlme.HwIndication(ind)
}

// HwScanComplete reports hardware-offloaded scan completion.
func (d *Dispatcher) HwScanComplete(aborted bool) error {
	if d.mlme == nil {
		return domain.ErrNoMlmeBound
	}
	return d.mlme.HwScanComplete(aborted)
}

// Direct service handlers: a failed device query degrades to a
// default-valued but still-ACKed response rather than a dropped request.

func (d *Dispatcher) sendDeviceInfo(txid uint32) error {
	var info domain.WlanInfo
	if d.device != nil {
		info = d.device.GetWlanInfo()
	}
	return d.sender.SendDeviceInfo(txid, info)
}

func (d *Dispatcher) sendStats(txid uint32) error {
	snap := domain.StatsSnapshot{
		Dispatcher: d.stats,
		UpdatedAt:  time.Now(),
	}
	if d.mlme != nil {
		snap.Mlme = d.mlme.GetMlmeStats()
	}
	return d.sender.SendStats(txid, snap)
}

func (d *Dispatcher) sendMinstrelPeers(txid uint32) error {
	var peers []domain.MinstrelPeer
	if d.device != nil {
		var err error
		peers, err = d.device.GetMinstrelPeers()
		if err != nil {
			log.Printf("dispatcher: minstrel peer list failed: %v", err)
			peers = nil
		}
	}
	return d.sender.SendMinstrelPeers(txid, peers)
}

func (d *Dispatcher) sendMinstrelStats(hdr domain.ServiceHeader, body []byte) error {
	msg, err := wire.DecodeBody(hdr, body)
	if err != nil {
		return err
	}
	req := msg.Body.(*wire.MinstrelStatsReq)

	var stats domain.MinstrelStats
	if d.device != nil {
		stats, err = d.device.GetMinstrelStats(req.Addr)
		if err != nil {
			log.Printf("dispatcher: minstrel stats for %s failed: %v", req.Addr, err)
			stats = domain.MinstrelStats{Addr: req.Addr}
		}
	}
	return d.sender.SendMinstrelStats(hdr.TxID, stats)
}

// peekFrameControl extracts the 802.11 frame family from a raw capture,
// skipping a leading radiotap header when present. Frame-control values
// with an unknown protocol version or type are reported as unrecognized.
func peekFrameControl(data []byte) (domain.FrameFamily, bool) {
	offset := 0
	// Radiotap: version 0, length at bytes 2-3 (little endian).
	if len(data) >= 4 && data[0] == 0 {
		rtLen := int(binary.LittleEndian.Uint16(data[2:4]))
		if rtLen >= 8 && rtLen < len(data) {
			offset = rtLen
		}
	}
	if offset >= len(data) {
		return 0, false
	}
	fc := data[offset]
	if fc&0x03 != 0 { // protocol version must be 0
		return 0, false
	}
	switch (fc >> 2) & 0x03 {
	case 0:
		return domain.FamilyMgmt, true
	case 1:
		return domain.FamilyCtrl, true
	case 2:
		return domain.FamilyData, true
	}
	return 0, false
}
