package domain

// Band identifies a supported radio band.
type Band int

const (
	Band2GHz Band = iota
	Band5GHz
)

func (b Band) String() string {
	if b == Band5GHz {
		return "5GHz"
	}
	return "2.4GHz"
}

// BandCapability describes what the hardware can do on one band.
type BandCapability struct {
	Band          Band    `json:"band"`
	Channels      []uint8 `json:"channels"`
	BasicRates    []uint8 `json:"basic_rates"`
	ExtendedRates []uint8 `json:"extended_rates"`
}

// HasChannel reports whether the band covers the given channel.
func (b *BandCapability) HasChannel(ch uint8) bool {
	for _, c := range b.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// WlanInfo is the device introspection snapshot.
type WlanInfo struct {
	MAC           MAC              `json:"mac"`
	Bands         []BandCapability `json:"bands"`
	HwScanOffload bool             `json:"hw_scan_offload"`
	DriverName    string           `json:"driver_name"`
}

// BandForChannel returns the band capability covering ch, or nil.
func (w *WlanInfo) BandForChannel(ch uint8) *BandCapability {
	for i := range w.Bands {
		if w.Bands[i].HasChannel(ch) {
			return &w.Bands[i]
		}
	}
	return nil
}

// Hardware indication codes delivered through Dispatcher.HwIndication.
const (
	HwIndScanComplete uint32 = 1
	HwIndScanAborted  uint32 = 2
)

// DeviceState is the mutable driver-side state the MLME reads.
type DeviceState struct {
	Address MAC
	Online  bool
}

// MinstrelPeer identifies one peer tracked by the minstrel rate selector.
type MinstrelPeer struct {
	Addr MAC `json:"addr"`
}

// MinstrelStats is the per-peer rate-selection snapshot.
type MinstrelStats struct {
	Addr         MAC     `json:"addr"`
	BestRateMbps float64 `json:"best_rate_mbps"`
	Probes       uint64  `json:"probes"`
	Successes    uint64  `json:"successes"`
	Attempts     uint64  `json:"attempts"`
}
