package domain

import (
	"fmt"
	"net"
)

// Peer tags the origin of a raw packet handed to the dispatcher.
type Peer int

const (
	PeerUnknown Peer = iota
	PeerEthernet
	PeerWlan
	PeerService
)

func (p Peer) String() string {
	switch p {
	case PeerEthernet:
		return "ethernet"
	case PeerWlan:
		return "wlan"
	case PeerService:
		return "service"
	}
	return "unknown"
}

// Packet is an owned byte buffer plus its origin tag. A packet is handed to
// the dispatcher exactly once and must not be retained past the call.
type Packet struct {
	Data []byte
	Peer Peer

	// Receive metadata filled by the driver for Wlan packets.
	RSSI    int
	Channel uint8
}

// PortSubtype classifies a port wakeup.
type PortSubtype int

const (
	PortSubtypeUnknown PortSubtype = iota
	PortSubtypeTimer
	PortSubtypeDevice
)

func (s PortSubtype) String() string {
	switch s {
	case PortSubtypeTimer:
		return "timer"
	case PortSubtypeDevice:
		return "device"
	}
	return "unknown"
}

// TimerTarget names the subsystem a timer event belongs to.
type TimerTarget int

const (
	TimerTargetNone TimerTarget = iota
	TimerTargetScannerProbeDelay
	TimerTargetOffChannelDwell
)

func (t TimerTarget) String() string {
	switch t {
	case TimerTargetScannerProbeDelay:
		return "scanner-probe-delay"
	case TimerTargetOffChannelDwell:
		return "off-channel-dwell"
	}
	return "none"
}

// PortKey identifies a pending port event. Unlike a bit-packed integer key,
// the fields are carried explicitly so stale or foreign events can be told
// apart without masking arithmetic.
type PortKey struct {
	Subtype PortSubtype
	Target  TimerTarget
	ID      uint64
}

func (k PortKey) String() string {
	return fmt.Sprintf("%s/%s#%d", k.Subtype, k.Target, k.ID)
}

// MAC is a 48-bit hardware address.
type MAC [6]byte

// BroadcastMAC is the all-ones destination address.
var BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// MACFromHardwareAddr converts a net.HardwareAddr; addresses shorter than
// six bytes yield the zero MAC.
func MACFromHardwareAddr(hw net.HardwareAddr) MAC {
	var m MAC
	if len(hw) >= 6 {
		copy(m[:], hw[:6])
	}
	return m
}

// HardwareAddr returns the address as a net.HardwareAddr copy.
func (m MAC) HardwareAddr() net.HardwareAddr {
	out := make(net.HardwareAddr, 6)
	copy(out, m[:])
	return out
}

// IsBroadcast reports whether the address is the all-ones broadcast address.
func (m MAC) IsBroadcast() bool {
	return m == BroadcastMAC
}

// IsMulticast reports whether the group bit is set.
func (m MAC) IsMulticast() bool {
	return m[0]&0x01 == 1
}

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// ParseMAC parses the usual colon-separated form.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, err
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("mac %q: want 6 bytes, got %d", s, len(hw))
	}
	return MACFromHardwareAddr(hw), nil
}

// MarshalText renders the address in colon-separated form for JSON.
func (m MAC) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses the colon-separated form.
func (m *MAC) UnmarshalText(text []byte) error {
	parsed, err := ParseMAC(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
