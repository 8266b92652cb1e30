package ports

import (
	"context"
	"time"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
)

// DeviceInterface is the driver surface the MLME consumes. Implementations
// must tolerate calls from the single event-loop goroutine only.
type DeviceInterface interface {
	GetWlanInfo() domain.WlanInfo
	GetState() domain.DeviceState
	// SendWlan transmits a fully serialized frame. The packet is consumed.
	SendWlan(pkt *domain.Packet) error
	// StartHwScan hands the whole scan to the radio firmware. Completion is
	// reported back through Dispatcher.HwScanComplete / HwIndication.
	StartHwScan(cfg *domain.HwScanConfig) error
	// TuneChannel retunes the radio; used by the off-channel scheduler.
	TuneChannel(ch uint8) error
	GetMinstrelPeers() ([]domain.MinstrelPeer, error)
	GetMinstrelStats(addr domain.MAC) (domain.MinstrelStats, error)
}

// TimerHandle names one armed timer so it can be cancelled or matched
// against a delivered PortKey.
type TimerHandle struct {
	Target domain.TimerTarget
	ID     uint64
}

// Zero reports whether the handle refers to no timer.
func (h TimerHandle) Zero() bool { return h.ID == 0 }

// Matches reports whether a delivered port key belongs to this handle.
func (h TimerHandle) Matches(key domain.PortKey) bool {
	return key.Subtype == domain.PortSubtypeTimer && key.Target == h.Target && key.ID == h.ID
}

// TimerManager arms timers that fire back into the event loop as PortKey
// events. One slot per subsystem; re-scheduling a target supersedes nothing,
// callers cancel explicitly.
type TimerManager interface {
	Now() time.Time
	Schedule(deadline time.Time, target domain.TimerTarget) (TimerHandle, error)
	Cancel(handle TimerHandle)
}

// OffChannelRequest asks the channel scheduler for one dwell on a channel.
type OffChannelRequest struct {
	Channel  uint8
	Duration time.Duration
	Handler  OffChannelHandler
}

// OffChannelHandler is the role a subsystem plays while the radio is tuned
// away from the operating channel.
type OffChannelHandler interface {
	// BeginOffChannelTime is called once the radio sits on the requested
	// channel and the dwell clock is running.
	BeginOffChannelTime()
	// HandleOffChannelFrame receives frames captured during the dwell.
	HandleOffChannelFrame(frame domain.Frame)
	// EndOffChannelTime is called when the dwell expires or is interrupted.
	// Returning ok=true hands the scheduler the next dwell to service.
	EndOffChannelTime(interrupted bool) (next OffChannelRequest, ok bool)
}

// ChannelScheduler arbitrates off-channel time between subsystems.
type ChannelScheduler interface {
	RequestOffChannelTime(req OffChannelRequest)
	// DeliverFrame hands a captured frame to the active dwell handler.
	// Returns false when no dwell is running.
	DeliverFrame(frame domain.Frame) bool
	// HandleTimeout consumes dwell-expiry timer events.
	HandleTimeout(key domain.PortKey) error
}

// Mlme is one bound protocol state machine instance behind the dispatcher.
type Mlme interface {
	HandleFramePacket(pkt *domain.Packet) error
	HandleTimeout(key domain.PortKey) error
	HandleMlmeMsg(msg *domain.ServiceMsg) error
	HwIndication(ind uint32) error
	HwScanComplete(aborted bool) error
	GetMlmeStats() domain.MlmeStats
	ResetMlmeStats()
}

// MessageSender emits outbound service messages (scan results, scan end,
// introspection replies). Implementations fan out to the wire encoder, the
// websocket stream, and persistence.
type MessageSender interface {
	SendScanResult(res domain.ScanResult) error
	SendScanEnd(end domain.ScanEnd) error
	SendDeviceInfo(txid uint32, info domain.WlanInfo) error
	SendStats(txid uint32, stats domain.StatsSnapshot) error
	SendMinstrelPeers(txid uint32, peers []domain.MinstrelPeer) error
	SendMinstrelStats(txid uint32, stats domain.MinstrelStats) error
}

// BssStore persists emitted scan results for the introspection surface.
type BssStore interface {
	SaveResult(ctx context.Context, res domain.ScanResult) error
	ListResults(ctx context.Context, scanID string) ([]domain.ScanResult, error)
	ListScans(ctx context.Context) ([]string, error)
}
