package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/mlmed/internal/adapters/timer"
	"github.com/lcalzada-xor/mlmed/internal/core/domain"
	"github.com/lcalzada-xor/mlmed/internal/core/ports"
)

type mockDevice struct {
	tuned   []uint8
	tuneErr error
}

func (m *mockDevice) GetWlanInfo() domain.WlanInfo           { return domain.WlanInfo{} }
func (m *mockDevice) GetState() domain.DeviceState           { return domain.DeviceState{} }
func (m *mockDevice) SendWlan(*domain.Packet) error          { return nil }
func (m *mockDevice) StartHwScan(*domain.HwScanConfig) error { return nil }

func (m *mockDevice) TuneChannel(ch uint8) error {
	if m.tuneErr != nil {
		return m.tuneErr
	}
	m.tuned = append(m.tuned, ch)
	return nil
}

func (m *mockDevice) GetMinstrelPeers() ([]domain.MinstrelPeer, error) { return nil, nil }
func (m *mockDevice) GetMinstrelStats(domain.MAC) (domain.MinstrelStats, error) {
	return domain.MinstrelStats{}, nil
}

// chainHandler plays the scanner's role: it walks a fixed channel list,
// re-requesting the current channel on interruption.
type chainHandler struct {
	channels []uint8
	idx      int
	dwell    time.Duration

	begins int
	ends   []bool
	frames []domain.Frame
}

func (h *chainHandler) BeginOffChannelTime() { h.begins++ }

func (h *chainHandler) HandleOffChannelFrame(frame domain.Frame) {
	h.frames = append(h.frames, frame)
}

func (h *chainHandler) EndOffChannelTime(interrupted bool) (ports.OffChannelRequest, bool) {
	h.ends = append(h.ends, interrupted)
	if !interrupted {
		h.idx++
	}
	if h.idx >= len(h.channels) {
		return ports.OffChannelRequest{}, false
	}
	return ports.OffChannelRequest{Channel: h.channels[h.idx], Duration: h.dwell, Handler: h}, true
}

func (h *chainHandler) first() ports.OffChannelRequest {
	return ports.OffChannelRequest{Channel: h.channels[0], Duration: h.dwell, Handler: h}
}

func newTestScheduler(operating uint8) (*Scheduler, *mockDevice, *timer.ManualClock, chan domain.PortKey) {
	device := &mockDevice{}
	clock := timer.NewManualClock(time.Unix(1000, 0))
	events := make(chan domain.PortKey, 16)
	mgr := timer.NewManager(clock, events)
	return NewScheduler(device, mgr, operating), device, clock, events
}

// expire advances past the dwell and feeds the fired key back in, the way
// the event loop would.
func expire(t *testing.T, s *Scheduler, clock *timer.ManualClock, events chan domain.PortKey, d time.Duration) {
	t.Helper()
	clock.Advance(d)
	select {
	case key := <-events:
		require.NoError(t, s.HandleTimeout(key))
	default:
		t.Fatal("dwell timer did not fire")
	}
}

func TestScheduler_WalksChainAndReturnsHome(t *testing.T) {
	s, device, clock, events := newTestScheduler(11)
	h := &chainHandler{channels: []uint8{1, 6}, dwell: 100 * time.Millisecond}

	s.RequestOffChannelTime(h.first())
	require.True(t, s.Busy())
	assert.Equal(t, uint8(1), s.CurrentChannel())
	assert.Equal(t, []uint8{1}, device.tuned)
	assert.Equal(t, 1, h.begins)

	expire(t, s, clock, events, 100*time.Millisecond)
	assert.Equal(t, []uint8{1, 6}, device.tuned)
	assert.Equal(t, 2, h.begins)

	expire(t, s, clock, events, 100*time.Millisecond)
	assert.False(t, s.Busy())
	assert.Equal(t, []bool{false, false}, h.ends)
	// Chain exhausted: radio parks on the operating channel.
	assert.Equal(t, []uint8{1, 6, 11}, device.tuned)
	assert.Equal(t, uint8(11), s.CurrentChannel())
}

func TestScheduler_SecondRequestQueuedBehindFirst(t *testing.T) {
	s, _, clock, events := newTestScheduler(11)
	h1 := &chainHandler{channels: []uint8{1}, dwell: 50 * time.Millisecond}
	h2 := &chainHandler{channels: []uint8{6}, dwell: 50 * time.Millisecond}

	s.RequestOffChannelTime(h1.first())
	s.RequestOffChannelTime(h2.first())
	assert.Equal(t, uint8(1), s.CurrentChannel())
	assert.Zero(t, h2.begins)

	expire(t, s, clock, events, 50*time.Millisecond)
	assert.Equal(t, uint8(6), s.CurrentChannel())
	assert.Equal(t, 1, h2.begins)

	expire(t, s, clock, events, 50*time.Millisecond)
	assert.False(t, s.Busy())
}

func TestScheduler_DeliverFrame(t *testing.T) {
	s, _, _, _ := newTestScheduler(11)
	h := &chainHandler{channels: []uint8{1}, dwell: time.Second}

	frame := &domain.BeaconFrame{}
	assert.False(t, s.DeliverFrame(frame), "no dwell, nothing to deliver")

	s.RequestOffChannelTime(h.first())
	assert.True(t, s.DeliverFrame(frame))
	require.Len(t, h.frames, 1)
}

func TestScheduler_StaleTimeoutIgnored(t *testing.T) {
	s, _, _, _ := newTestScheduler(11)
	key := domain.PortKey{Subtype: domain.PortSubtypeTimer, Target: domain.TimerTargetOffChannelDwell, ID: 42}
	assert.NoError(t, s.HandleTimeout(key))
	assert.False(t, s.Busy())
}

func TestScheduler_TuneFailureKeepsChainConsistent(t *testing.T) {
	s, device, clock, events := newTestScheduler(11)
	device.tuneErr = assert.AnError
	h := &chainHandler{channels: []uint8{1}, dwell: 10 * time.Millisecond}

	s.RequestOffChannelTime(h.first())
	assert.Equal(t, 1, h.begins)

	expire(t, s, clock, events, 10*time.Millisecond)
	assert.Equal(t, []bool{false}, h.ends)
	assert.False(t, s.Busy())
}
