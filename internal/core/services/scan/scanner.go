// Package scan implements the scan-protocol state machine: one scan at a
// time, driven either by radio firmware (hardware offload) or by the
// off-channel scheduler (software path), accumulating discovered networks
// in a bounded map until results are flushed.
package scan

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/mlmed/internal/adapters/frames"
	"github.com/lcalzada-xor/mlmed/internal/core/domain"
	"github.com/lcalzada-xor/mlmed/internal/core/ports"
	"github.com/lcalzada-xor/mlmed/internal/telemetry"
)

// MaxBss bounds the per-scan BSS map. Networks discovered past the cap are
// dropped and surfaced through the bss_dropped_total{reason="capacity"}
// counter.
const MaxBss = 1000

// Scanner owns at most one in-flight scan. Not thread-safe; every method
// must be called from the event-loop goroutine.
type Scanner struct {
	device ports.DeviceInterface
	timer  ports.TimerManager
	sched  ports.ChannelScheduler
	sender ports.MessageSender

	req        *domain.ScanRequest
	scanID     string
	hw         bool
	channelIdx int
	bssMap     map[domain.MAC]*domain.Bss
	probeTimer ports.TimerHandle
	seq        uint16
}

// NewScanner returns an idle scanner.
func NewScanner(device ports.DeviceInterface, timer ports.TimerManager, sched ports.ChannelScheduler, sender ports.MessageSender) *Scanner {
	return &Scanner{
		device: device,
		timer:  timer,
		sched:  sched,
		sender: sender,
		bssMap: make(map[domain.MAC]*domain.Bss),
	}
}

// IsRunning reports whether a scan is in flight.
func (s *Scanner) IsRunning() bool { return s.req != nil }

// ScanID returns the id of the in-flight scan, or empty when idle.
func (s *Scanner) ScanID() string { return s.scanID }

// HandleMlmeScanReq starts a scan. Rejections never disturb a running scan
// and always answer the new transaction with a ScanEnd carrying the
// rejection code.
func (s *Scanner) HandleMlmeScanReq(req *domain.ScanRequest) error {
	if s.IsRunning() {
		s.emitScanEnd(req.TxID, "", domain.ScanNotSupported)
		return fmt.Errorf("scan %d already running: %w", s.req.TxID, domain.ErrNotSupported)
	}
	if err := req.Validate(); err != nil {
		s.emitScanEnd(req.TxID, "", domain.ScanInvalidArgs)
		return err
	}

	s.req = req.Clone()
	s.scanID = uuid.NewString()
	s.channelIdx = 0

	if s.device.GetWlanInfo().HwScanOffload {
		return s.startHwScan()
	}
	return s.startSwScan()
}

func (s *Scanner) startHwScan() error {
	s.hw = true
	cfg := &domain.HwScanConfig{
		ScanType: s.req.ScanType,
		Channels: s.req.Channels,
		SSID:     s.req.SSID,
		BSSID:    s.req.BSSID,
	}
	if err := s.device.StartHwScan(cfg); err != nil {
		log.Printf("scanner: hardware scan start failed: %v", err)
		s.emitScanEnd(s.req.TxID, s.scanID, domain.ScanInternalError)
		s.Reset()
		return fmt.Errorf("start hardware scan: %w", domain.ErrInternal)
	}
	telemetry.ScansStarted.WithLabelValues("hardware").Inc()
	return nil
}

func (s *Scanner) startSwScan() error {
	s.hw = false
	telemetry.ScansStarted.WithLabelValues("software").Inc()
	s.sched.RequestOffChannelTime(s.currentDwell())
	return nil
}

// HandleHwScanComplete flushes accumulated results and returns to idle.
func (s *Scanner) HandleHwScanComplete() error {
	if !s.IsRunning() || !s.hw {
		return fmt.Errorf("hardware scan completion while not hardware-scanning: %w", domain.ErrNotSupported)
	}
	s.SendResultsAndReset()
	return nil
}

// HandleHwScanAborted discards accumulated results and returns to idle.
func (s *Scanner) HandleHwScanAborted() error {
	if !s.IsRunning() || !s.hw {
		return fmt.Errorf("hardware scan abort while not hardware-scanning: %w", domain.ErrNotSupported)
	}
	s.emitScanEnd(s.req.TxID, s.scanID, domain.ScanInternalError)
	s.Reset()
	return nil
}

// BeginOffChannelTime runs when the radio reaches the requested channel.
// Active scans probe immediately or after the configured probe delay.
func (s *Scanner) BeginOffChannelTime() {
	if !s.IsRunning() || s.req.ScanType != domain.ScanTypeActive {
		return
	}
	if s.req.ProbeDelay == 0 {
		s.SendProbeRequest()
		return
	}
	deadline := s.timer.Now().Add(s.req.ProbeDelayDuration())
	handle, err := s.timer.Schedule(deadline, domain.TimerTargetScannerProbeDelay)
	if err != nil {
		log.Printf("scanner: probe delay timer failed, probing immediately: %v", err)
		s.SendProbeRequest()
		return
	}
	s.probeTimer = handle
}

// HandleOffChannelFrame feeds beacon and probe-response frames captured
// during the dwell into BSS accumulation. Everything else is ignored.
func (s *Scanner) HandleOffChannelFrame(frame domain.Frame) {
	switch f := frame.(type) {
	case *domain.BeaconFrame:
		s.ProcessBeaconOrProbeResponse(f.Hdr, f.Timestamp, f.BeaconInterval, f.Capabilities, f.IEs, f.RSSI, f.RxChannel)
	case *domain.ProbeResponseFrame:
		s.ProcessBeaconOrProbeResponse(f.Hdr, f.Timestamp, f.BeaconInterval, f.Capabilities, f.IEs, f.RSSI, f.RxChannel)
	}
}

// EndOffChannelTime is the dwell-expiry callback. An interrupted dwell
// re-requests the same channel so no progress is lost; a clean expiry
// advances the cursor. Exhausting the channel list finalizes the scan.
func (s *Scanner) EndOffChannelTime(interrupted bool) (ports.OffChannelRequest, bool) {
	s.cancelProbeTimer()
	if !s.IsRunning() || s.hw {
		return ports.OffChannelRequest{}, false
	}
	if interrupted {
		return s.currentDwell(), true
	}
	s.channelIdx++
	if s.channelIdx < len(s.req.Channels) {
		return s.currentDwell(), true
	}
	s.SendResultsAndReset()
	return ports.OffChannelRequest{}, false
}

// HandleTimeout fires the delayed probe once the probe-delay timer lands.
func (s *Scanner) HandleTimeout(key domain.PortKey) error {
	if !s.probeTimer.Matches(key) {
		return fmt.Errorf("timeout %s does not match the armed probe timer: %w", key, domain.ErrNotSupported)
	}
	s.probeTimer = ports.TimerHandle{}
	if !s.IsRunning() || s.req.ScanType != domain.ScanTypeActive {
		return nil
	}
	s.SendProbeRequest()
	return nil
}

// ShouldDropMgmtFrame filters beacons and probe responses: anything arriving
// while idle, frames with a multicast transmitter, and frames whose
// transmitter does not match the claimed BSSID.
func (s *Scanner) ShouldDropMgmtFrame(hdr domain.MgmtHeader) bool {
	if !s.IsRunning() {
		return true
	}
	if hdr.Addr2.IsMulticast() {
		log.Printf("scanner: anomalous frame: multicast transmitter %s", hdr.Addr2)
		telemetry.BssDropped.WithLabelValues("anomalous").Inc()
		return true
	}
	if hdr.Addr2 != hdr.Addr3 {
		log.Printf("scanner: anomalous frame: transmitter %s claims bssid %s", hdr.Addr2, hdr.Addr3)
		telemetry.BssDropped.WithLabelValues("anomalous").Inc()
		return true
	}
	return false
}

// ProcessBeaconOrProbeResponse updates the record for the frame's BSSID, or
// creates one if the map has room. Records live only within the scan.
func (s *Scanner) ProcessBeaconOrProbeResponse(hdr domain.MgmtHeader, timestamp uint64, interval, caps uint16, ies []byte, rssi int, rxChannel uint8) {
	if s.ShouldDropMgmtFrame(hdr) {
		return
	}

	bssid := hdr.Addr3
	bss, exists := s.bssMap[bssid]
	if !exists {
		if len(s.bssMap) >= MaxBss {
			log.Printf("scanner: bss map full (%d entries), dropping %s", MaxBss, bssid)
			telemetry.BssDropped.WithLabelValues("capacity").Inc()
			return
		}
		bss = &domain.Bss{BSSID: bssid, FirstSeen: s.timer.Now()}
		s.bssMap[bssid] = bss
	}

	ssid := frames.ParseSSID(ies)
	bss.SSID = ssid.Value
	bss.Hidden = ssid.Hidden
	bss.BeaconInterval = interval
	bss.Capabilities = caps
	bss.RSSI = rssi
	bss.Timestamp = timestamp
	bss.Rates = frames.ParseRates(ies)
	bss.HasRSN = frames.HasRSN(ies)
	bss.LastSeen = s.timer.Now()

	ch, err := frames.ParseChannel(ies)
	if err != nil {
		// No DS parameter set; trust the receive channel.
		ch = rxChannel
	}
	bss.Channel = ch

	switch {
	case caps&capabilityIBSS != 0:
		bss.BSSType = domain.BSSTypeIndependent
	case caps&capabilityESS != 0:
		bss.BSSType = domain.BSSTypeInfrastructure
	default:
		bss.BSSType = domain.BSSTypeAny
	}
}

// Capability bits from the beacon fixed fields.
const (
	capabilityESS  = 1 << 0
	capabilityIBSS = 1 << 1
)

// SendResultsAndReset flushes every accumulated BSS as an individual result
// and finishes with exactly one ScanEnd. A failed send skips that BSS only;
// partial results beat none. Reset always runs.
func (s *Scanner) SendResultsAndReset() {
	code := domain.ScanSuccess
	for _, bss := range s.bssMap {
		res := domain.ScanResult{TxID: s.req.TxID, ScanID: s.scanID, Bss: *bss}
		if err := s.sender.SendScanResult(res); err != nil {
			log.Printf("scanner: result for %s not sent: %v", bss.BSSID, err)
			code = domain.ScanInternalError
		}
	}
	s.emitScanEnd(s.req.TxID, s.scanID, code)
	s.Reset()
}

// SendProbeRequest transmits one probe on the current channel. When no band
// covers the channel the probe is skipped rather than sent malformed; a
// transmit failure aborts the whole scan.
func (s *Scanner) SendProbeRequest() {
	info := s.device.GetWlanInfo()
	ch := s.currentChannel()
	band := info.BandForChannel(ch)
	if band == nil {
		log.Printf("scanner: no band covers channel %d, skipping probe", ch)
		return
	}

	target := domain.BroadcastMAC
	if s.req.Directed() {
		target = s.req.BSSID
	}
	rates := append(append([]uint8{}, band.BasicRates...), band.ExtendedRates...)
	s.seq++
	raw, err := frames.BuildProbeRequest(info.MAC, target, s.req.SSID, rates, s.seq)
	if err != nil {
		log.Printf("scanner: probe build failed: %v", err)
		return
	}

	if err := s.device.SendWlan(&domain.Packet{Data: raw, Peer: domain.PeerWlan}); err != nil {
		log.Printf("scanner: probe transmit failed, aborting scan: %v", err)
		s.emitScanEnd(s.req.TxID, s.scanID, domain.ScanInternalError)
		s.Reset()
		return
	}
	telemetry.ProbeRequestsSent.Inc()
}

// Reset drops all in-flight scan state. Idempotent and always safe.
func (s *Scanner) Reset() {
	s.cancelProbeTimer()
	s.req = nil
	s.scanID = ""
	s.hw = false
	s.channelIdx = 0
	s.bssMap = make(map[domain.MAC]*domain.Bss)
}

// BssCount returns the number of accumulated records, for introspection.
func (s *Scanner) BssCount() int { return len(s.bssMap) }

func (s *Scanner) cancelProbeTimer() {
	if !s.probeTimer.Zero() {
		s.timer.Cancel(s.probeTimer)
		s.probeTimer = ports.TimerHandle{}
	}
}

func (s *Scanner) currentChannel() uint8 { return s.req.Channels[s.channelIdx] }

func (s *Scanner) currentDwell() ports.OffChannelRequest {
	return ports.OffChannelRequest{
		Channel:  s.currentChannel(),
		Duration: s.req.Dwell(),
		Handler:  s,
	}
}

func (s *Scanner) emitScanEnd(txid uint32, scanID string, code domain.ScanResultCode) {
	telemetry.ScansEnded.WithLabelValues(code.String()).Inc()
	if err := s.sender.SendScanEnd(domain.ScanEnd{TxID: txid, ScanID: scanID, Code: code}); err != nil {
		log.Printf("scanner: scan end for txid %d not sent: %v", txid, err)
	}
}
