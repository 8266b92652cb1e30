// Package scheduler arbitrates off-channel time: it tunes the radio for one
// dwell at a time, arms the dwell timer, and walks the chain of follow-up
// requests the dwell handler returns. Timer events come back through the
// same event loop that drives everything else, so no goroutines are spawned
// here.
package scheduler

import (
	"log"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
	"github.com/lcalzada-xor/mlmed/internal/core/ports"
)

// Scheduler implements ports.ChannelScheduler. Not thread-safe; driven by
// the event-loop goroutine.
type Scheduler struct {
	device ports.DeviceInterface
	timer  ports.TimerManager

	operatingChannel uint8
	current          *ports.OffChannelRequest
	dwellTimer       ports.TimerHandle
	queue            []ports.OffChannelRequest
}

// NewScheduler creates an idle scheduler that parks the radio on the
// operating channel between dwells.
func NewScheduler(device ports.DeviceInterface, timer ports.TimerManager, operatingChannel uint8) *Scheduler {
	return &Scheduler{device: device, timer: timer, operatingChannel: operatingChannel}
}

// SetOperatingChannel changes where the radio parks between dwells.
func (s *Scheduler) SetOperatingChannel(ch uint8) { s.operatingChannel = ch }

// Busy reports whether a dwell is in progress.
func (s *Scheduler) Busy() bool { return s.current != nil }

// CurrentChannel returns the channel of the active dwell, or the operating
// channel when idle.
func (s *Scheduler) CurrentChannel() uint8 {
	if s.current != nil {
		return s.current.Channel
	}
	return s.operatingChannel
}

// RequestOffChannelTime starts the dwell immediately when idle, otherwise
// queues it behind the running one.
func (s *Scheduler) RequestOffChannelTime(req ports.OffChannelRequest) {
	if s.current != nil {
		s.queue = append(s.queue, req)
		return
	}
	s.begin(req)
}

// HandleTimeout consumes the dwell-expiry timer. Stale keys, raced against
// a cancel, are dropped.
func (s *Scheduler) HandleTimeout(key domain.PortKey) error {
	if s.current == nil || !s.dwellTimer.Matches(key) {
		log.Printf("scheduler: stale dwell timeout %s", key)
		return nil
	}
	s.dwellTimer = ports.TimerHandle{}
	s.finish()
	return nil
}

// DeliverFrame hands a captured frame to the active dwell handler.
// Returns false when no dwell is running.
func (s *Scheduler) DeliverFrame(frame domain.Frame) bool {
	if s.current == nil {
		return false
	}
	s.current.Handler.HandleOffChannelFrame(frame)
	return true
}

func (s *Scheduler) begin(req ports.OffChannelRequest) {
	if err := s.device.TuneChannel(req.Channel); err != nil {
		// Keep the dwell chain consistent even when the radio refuses the
		// retune; the handler still gets its begin/end pair.
		log.Printf("scheduler: tune to channel %d failed: %v", req.Channel, err)
	}
	s.current = &req

	handle, err := s.timer.Schedule(s.timer.Now().Add(req.Duration), domain.TimerTargetOffChannelDwell)
	if err != nil {
		log.Printf("scheduler: dwell timer failed, ending dwell at once: %v", err)
		req.Handler.BeginOffChannelTime()
		s.finish()
		return
	}
	s.dwellTimer = handle
	req.Handler.BeginOffChannelTime()
}

// finish ends the current dwell cleanly and chains into the handler's next
// request, the queue, or back to the operating channel.
func (s *Scheduler) finish() {
	req := *s.current
	s.current = nil

	if next, ok := req.Handler.EndOffChannelTime(false); ok {
		s.begin(next)
		return
	}
	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.begin(next)
		return
	}
	s.tuneHome()
}

func (s *Scheduler) tuneHome() {
	if err := s.device.TuneChannel(s.operatingChannel); err != nil {
		log.Printf("scheduler: return to operating channel %d failed: %v", s.operatingChannel, err)
	}
}
