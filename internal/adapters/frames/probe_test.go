package frames

import (
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
)

func decodeDot11(t *testing.T, raw []byte) *layers.Dot11 {
	t.Helper()
	p := gopacket.NewPacket(raw, layers.LayerTypeRadioTap, gopacket.Default)
	dot11Layer := p.Layer(layers.LayerTypeDot11)
	require.NotNil(t, dot11Layer)
	return dot11Layer.(*layers.Dot11)
}

func TestBuildProbeRequest(t *testing.T) {
	src := domain.MAC{0x02, 0x00, 0x00, 0x00, 0x01, 0x00}
	raw, err := BuildProbeRequest(src, domain.MAC{}, "TargetNet", []uint8{0x82, 0x84}, 3)
	require.NoError(t, err)

	dot11 := decodeDot11(t, raw)
	assert.Equal(t, layers.Dot11TypeMgmtProbeReq, dot11.Type)
	assert.Equal(t, src.HardwareAddr().String(), dot11.Address2.String())
	assert.Equal(t, domain.BroadcastMAC.HardwareAddr().String(), dot11.Address1.String())
	assert.Equal(t, domain.BroadcastMAC.HardwareAddr().String(), dot11.Address3.String(),
		"an untargeted probe carries the broadcast BSSID")
}

func TestBuildProbeRequest_TargetBSSID(t *testing.T) {
	src := domain.MAC{0x02, 0x00, 0x00, 0x00, 0x01, 0x00}
	target := domain.MAC{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	raw, err := BuildProbeRequest(src, target, "TargetNet", []uint8{0x82, 0x84}, 4)
	require.NoError(t, err)

	dot11 := decodeDot11(t, raw)
	assert.Equal(t, target.HardwareAddr().String(), dot11.Address3.String())
	// The destination stays broadcast; only the BSSID is directed.
	assert.Equal(t, domain.BroadcastMAC.HardwareAddr().String(), dot11.Address1.String())
}

func TestBuildProbeRequest_IEChain(t *testing.T) {
	src := domain.MAC{0x02, 0x00, 0x00, 0x00, 0x01, 0x00}
	rates := []uint8{0x82, 0x84, 0x8b, 0x96, 0x0c, 0x12, 0x18, 0x24, 0x30, 0x48}
	raw, err := BuildProbeRequest(src, domain.MAC{}, "abc", rates, 1)
	require.NoError(t, err)

	// The IE chain sits after the radiotap and 24-byte mgmt headers.
	rtLen := int(raw[2]) | int(raw[3])<<8
	ies := raw[rtLen+24:]

	assert.Equal(t, "abc", ParseSSID(ies).Value)
	got := ParseRates(ies)
	require.Len(t, got, len(rates))
	assert.Equal(t, uint8(0x30&0x7f), got[8])

	// Eight rates in the supported element, the rest in the extended one.
	assert.Len(t, FindIE(ies, TagSupportedRates), 8)
	assert.Len(t, FindIE(ies, TagExtendedRates), 2)
}

func TestBuildProbeRequest_WildcardAndDefaults(t *testing.T) {
	src := domain.MAC{0x02, 0x00, 0x00, 0x00, 0x01, 0x00}
	raw, err := BuildProbeRequest(src, domain.BroadcastMAC, "", nil, 0)
	require.NoError(t, err)

	rtLen := int(raw[2]) | int(raw[3])<<8
	ies := raw[rtLen+24:]

	ssid := FindIE(ies, TagSSID)
	require.NotNil(t, ssid)
	assert.Empty(t, ssid)
	assert.Equal(t, []uint8{0x02, 0x04, 0x0b, 0x16}, ParseRates(ies))
}
