package domain

// FrameFamily is the coarse 802.11 frame type plus the local service plane.
type FrameFamily int

const (
	FamilyMgmt FrameFamily = iota
	FamilyCtrl
	FamilyData
	FamilyService
)

func (f FrameFamily) String() string {
	switch f {
	case FamilyMgmt:
		return "mgmt"
	case FamilyCtrl:
		return "ctrl"
	case FamilyData:
		return "data"
	case FamilyService:
		return "service"
	}
	return "unknown"
}

// Frame is the closed set of classified frames flowing through the handler
// tree. The unexported method keeps the set closed to this package.
type Frame interface {
	Family() FrameFamily
	frame()
}

// MgmtHeader carries the fields every management frame exposes.
type MgmtHeader struct {
	Addr1   MAC // destination
	Addr2   MAC // transmitter
	Addr3   MAC // BSSID
	SeqCtrl uint16
}

// BeaconFrame is a parsed Beacon management frame. IEs holds the raw
// information-element chain following the fixed fields.
type BeaconFrame struct {
	Hdr            MgmtHeader
	Timestamp      uint64
	BeaconInterval uint16
	Capabilities   uint16
	IEs            []byte
	RSSI           int
	RxChannel      uint8
}

func (*BeaconFrame) Family() FrameFamily { return FamilyMgmt }
func (*BeaconFrame) frame()              {}

// ProbeResponseFrame is a parsed Probe Response management frame.
type ProbeResponseFrame struct {
	Hdr            MgmtHeader
	Timestamp      uint64
	BeaconInterval uint16
	Capabilities   uint16
	IEs            []byte
	RSSI           int
	RxChannel      uint8
}

func (*ProbeResponseFrame) Family() FrameFamily { return FamilyMgmt }
func (*ProbeResponseFrame) frame()              {}

// DeauthFrame is a parsed Deauthentication management frame.
type DeauthFrame struct {
	Hdr    MgmtHeader
	Reason uint16
}

func (*DeauthFrame) Family() FrameFamily { return FamilyMgmt }
func (*DeauthFrame) frame()              {}

// DataFrame is a classified data frame; payload stays opaque at this layer.
type DataFrame struct {
	Hdr     MgmtHeader
	ToDS    bool
	FromDS  bool
	Payload []byte
}

func (*DataFrame) Family() FrameFamily { return FamilyData }
func (*DataFrame) frame()              {}

// CtrlFrame is a classified control frame, kept only for statistics.
type CtrlFrame struct {
	Subtype uint8
}

func (*CtrlFrame) Family() FrameFamily { return FamilyCtrl }
func (*CtrlFrame) frame()              {}

// ServiceHeader is the fixed transport header preceding every service
// message body: {txid, flags, ordinal}.
type ServiceHeader struct {
	TxID    uint32
	Flags   uint32
	Ordinal uint64
}

// ServiceMsg is a decoded control-plane message. Body holds the typed,
// ordinal-specific payload (e.g. *ScanRequest) or nil for bodyless ordinals.
type ServiceMsg struct {
	Hdr  ServiceHeader
	Body interface{}
}

func (*ServiceMsg) Family() FrameFamily { return FamilyService }
func (*ServiceMsg) frame()              {}
