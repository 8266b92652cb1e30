// Package clientmlme is the client-station protocol state machine bound
// behind the dispatcher. It owns the frame-handler arena, classifies raw
// packets into typed frames, and routes scan traffic to the scanner.
package clientmlme

import (
	"errors"
	"fmt"
	"log"

	"github.com/lcalzada-xor/mlmed/internal/adapters/frames"
	"github.com/lcalzada-xor/mlmed/internal/core/domain"
	"github.com/lcalzada-xor/mlmed/internal/core/ports"
	"github.com/lcalzada-xor/mlmed/internal/core/services/handler"
	"github.com/lcalzada-xor/mlmed/internal/core/services/scan"
)

// ClientMlme implements ports.Mlme. Not thread-safe; driven by the event
// loop only.
type ClientMlme struct {
	arena   *handler.Arena
	self    handler.NodeID
	scanFwd handler.NodeID

	scanner *scan.Scanner
	sched   ports.ChannelScheduler
	timer   ports.TimerManager

	stats domain.MlmeStats
}

// NewClientMlme wires the arena: the MLME itself is the dispatch root, a
// frame counter observes everything as a child, and the scanner sits behind
// a forward target armed only while a scan runs.
func NewClientMlme(device ports.DeviceInterface, timer ports.TimerManager, sched ports.ChannelScheduler, sender ports.MessageSender) *ClientMlme {
	m := &ClientMlme{
		arena: handler.NewArena(),
		sched: sched,
		timer: timer,
	}
	m.stats.LastReset = timer.Now()
	m.scanner = scan.NewScanner(device, timer, sched, &endCountingSender{inner: sender, stats: &m.stats})

	m.self = m.arena.Register(m)
	m.scanFwd = m.arena.Register(&scannerSink{scanner: m.scanner, sched: sched})

	counter := m.arena.Register(&frameCounter{stats: &m.stats})
	if err := m.arena.AddChild(m.self, counter); err != nil {
		// Registration on a fresh arena cannot collide.
		log.Printf("mlme: frame counter not attached: %v", err)
	}
	return m
}

// Scanner exposes the scan state machine for wiring and introspection.
func (m *ClientMlme) Scanner() *scan.Scanner { return m.scanner }

// HandlerName implements handler.Handler.
func (m *ClientMlme) HandlerName() string { return "client-mlme" }

// HandleFramePacket classifies one raw packet and runs it through the
// handler tree. Unsupported subtypes are dropped quietly.
func (m *ClientMlme) HandleFramePacket(pkt *domain.Packet) error {
	if pkt.Peer == domain.PeerEthernet {
		// Data-path egress is outside the management plane.
		return nil
	}
	frame, err := frames.Classify(pkt)
	if err != nil {
		if errors.Is(err, domain.ErrNotSupported) {
			return nil
		}
		return fmt.Errorf("mlme frame packet: %w", err)
	}
	return m.arena.Dispatch(m.self, frame)
}

// HandleTimeout demuxes timer events by target.
func (m *ClientMlme) HandleTimeout(key domain.PortKey) error {
	switch key.Target {
	case domain.TimerTargetScannerProbeDelay:
		return m.scanner.HandleTimeout(key)
	case domain.TimerTargetOffChannelDwell:
		return m.sched.HandleTimeout(key)
	}
	return fmt.Errorf("mlme timeout target %q: %w", key.Target, domain.ErrNotSupported)
}

// HandleMlmeMsg dispatches a decoded service message through the handler
// tree, same as any frame.
func (m *ClientMlme) HandleMlmeMsg(msg *domain.ServiceMsg) error {
	return m.arena.Dispatch(m.self, msg)
}

// HwIndication decodes driver indications.
func (m *ClientMlme) HwIndication(ind uint32) error {
	switch ind {
	case domain.HwIndScanComplete:
		return m.HwScanComplete(false)
	case domain.HwIndScanAborted:
		return m.HwScanComplete(true)
	}
	log.Printf("mlme: unknown hardware indication %d", ind)
	return nil
}

// HwScanComplete finishes a hardware-offloaded scan.
func (m *ClientMlme) HwScanComplete(aborted bool) error {
	if aborted {
		return m.scanner.HandleHwScanAborted()
	}
	return m.scanner.HandleHwScanComplete()
}

// GetMlmeStats returns a copy of the counters.
func (m *ClientMlme) GetMlmeStats() domain.MlmeStats { return m.stats }

// ResetMlmeStats zeroes the counters and stamps the reset time.
func (m *ClientMlme) ResetMlmeStats() {
	m.stats = domain.MlmeStats{LastReset: m.timer.Now()}
}

// HandleBeacon forwards beacons to the scanner while a scan runs. The
// forward target is armed per frame, so idle periods cost nothing.
func (m *ClientMlme) HandleBeacon(d *handler.Dispatch, f *domain.BeaconFrame) error {
	if m.scanner.IsRunning() {
		return d.ForwardTo(m.scanFwd)
	}
	return nil
}

// HandleProbeResponse forwards probe responses like beacons.
func (m *ClientMlme) HandleProbeResponse(d *handler.Dispatch, f *domain.ProbeResponseFrame) error {
	if m.scanner.IsRunning() {
		return d.ForwardTo(m.scanFwd)
	}
	return nil
}

// HandleMlmeScanReq starts a scan from the service plane.
func (m *ClientMlme) HandleMlmeScanReq(d *handler.Dispatch, req *domain.ScanRequest) error {
	if err := m.scanner.HandleMlmeScanReq(req); err != nil {
		// The scanner already answered the transaction with a ScanEnd.
		log.Printf("mlme: scan request txid %d rejected: %v", req.TxID, err)
		return nil
	}
	m.stats.ScansStarted++
	return nil
}

// scannerSink adapts the scanner into a handler node reachable through the
// one-shot forward target.
type scannerSink struct {
	scanner *scan.Scanner
	sched   ports.ChannelScheduler
}

func (s *scannerSink) HandlerName() string { return "scanner" }

func (s *scannerSink) HandleBeacon(_ *handler.Dispatch, f *domain.BeaconFrame) error {
	s.deliver(f)
	return nil
}

func (s *scannerSink) HandleProbeResponse(_ *handler.Dispatch, f *domain.ProbeResponseFrame) error {
	s.deliver(f)
	return nil
}

// deliver routes captured frames through the active dwell. Hardware scans
// capture on the operating path with no dwell running, so the scanner takes
// those directly.
func (s *scannerSink) deliver(frame domain.Frame) {
	if s.sched.DeliverFrame(frame) {
		return
	}
	s.scanner.HandleOffChannelFrame(frame)
}

// frameCounter observes every frame as a child of the root and keeps the
// per-family counters.
type frameCounter struct {
	stats *domain.MlmeStats
}

func (c *frameCounter) HandlerName() string { return "frame-counter" }

func (c *frameCounter) HandleAnyFrame(d *handler.Dispatch) error {
	switch d.Frame().Family() {
	case domain.FamilyMgmt:
		c.stats.MgmtFrames++
	case domain.FamilyData:
		c.stats.DataFrames++
	case domain.FamilyCtrl:
		c.stats.CtrlFrames++
	case domain.FamilyService:
		c.stats.ServiceMsgs++
	}
	return nil
}

func (c *frameCounter) HandleBeacon(_ *handler.Dispatch, _ *domain.BeaconFrame) error {
	c.stats.BeaconFrames++
	return nil
}

func (c *frameCounter) HandleProbeResponse(_ *handler.Dispatch, _ *domain.ProbeResponseFrame) error {
	c.stats.ProbeResps++
	return nil
}

// endCountingSender counts terminations of started scans. Rejected requests
// carry no scan id and are not counted.
type endCountingSender struct {
	inner ports.MessageSender
	stats *domain.MlmeStats
}

func (s *endCountingSender) SendScanResult(res domain.ScanResult) error {
	return s.inner.SendScanResult(res)
}

func (s *endCountingSender) SendScanEnd(end domain.ScanEnd) error {
	if end.ScanID != "" {
		s.stats.ScansFinished++
	}
	return s.inner.SendScanEnd(end)
}

func (s *endCountingSender) SendDeviceInfo(txid uint32, info domain.WlanInfo) error {
	return s.inner.SendDeviceInfo(txid, info)
}

func (s *endCountingSender) SendStats(txid uint32, stats domain.StatsSnapshot) error {
	return s.inner.SendStats(txid, stats)
}

func (s *endCountingSender) SendMinstrelPeers(txid uint32, peers []domain.MinstrelPeer) error {
	return s.inner.SendMinstrelPeers(txid, peers)
}

func (s *endCountingSender) SendMinstrelStats(txid uint32, stats domain.MinstrelStats) error {
	return s.inner.SendMinstrelStats(txid, stats)
}
