package frames

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
)

// defaultRates is the 802.11b basic set, used when the band reports none.
var defaultRates = []byte{0x82, 0x84, 0x8b, 0x96}

// BuildProbeRequest serializes a probe request ready for injection. An empty
// SSID produces a wildcard probe; bssid lands in Address3 so directed scans
// probe one BSS only, with the zero value standing in for the broadcast
// BSSID. Rates beyond eight spill into the extended supported rates element.
func BuildProbeRequest(src, bssid domain.MAC, ssid string, rates []uint8, seq uint16) ([]byte, error) {
	if bssid == (domain.MAC{}) {
		bssid = domain.BroadcastMAC
	}

	radiotap := &layers.RadioTap{
		Present: layers.RadioTapPresentRate,
		Rate:    5,
	}

	dot11 := &layers.Dot11{
		Type:           layers.Dot11TypeMgmtProbeReq,
		Address1:       domain.BroadcastMAC.HardwareAddr(),
		Address2:       src.HardwareAddr(),
		Address3:       bssid.HardwareAddr(),
		SequenceNumber: seq,
	}

	if len(rates) == 0 {
		rates = defaultRates
	}
	supported := rates
	var extended []uint8
	if len(supported) > 8 {
		supported, extended = rates[:8], rates[8:]
	}

	payload := make([]byte, 0, 2+len(ssid)+2+len(rates)+2)
	payload = append(payload, TagSSID, byte(len(ssid)))
	payload = append(payload, ssid...)
	payload = append(payload, TagSupportedRates, byte(len(supported)))
	payload = append(payload, supported...)
	if len(extended) > 0 {
		payload = append(payload, TagExtendedRates, byte(len(extended)))
		payload = append(payload, extended...)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buf, opts, radiotap, dot11, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serialize probe request: %w", err)
	}
	return buf.Bytes(), nil
}
