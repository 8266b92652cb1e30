package frames

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSSID(t *testing.T) {
	ies := testIEs("MyNet", 3)
	ssid := ParseSSID(ies)
	assert.False(t, ssid.Hidden)
	assert.Equal(t, "MyNet", ssid.Value)
	assert.Equal(t, "MyNet", ssid.String())
}

func TestParseSSID_Hidden(t *testing.T) {
	// Zero-length SSID element.
	ssid := ParseSSID([]byte{TagSSID, 0})
	assert.True(t, ssid.Hidden)
	assert.Equal(t, "<HIDDEN>", ssid.String())

	// All-zero-bytes variant.
	ssid = ParseSSID([]byte{TagSSID, 4, 0, 0, 0, 0})
	assert.True(t, ssid.Hidden)

	// Missing element entirely.
	ssid = ParseSSID([]byte{TagDSParameterSet, 1, 6})
	assert.True(t, ssid.Hidden)
}

func TestParseSSID_StripsControlCharacters(t *testing.T) {
	ies := []byte{TagSSID, 5, 'a', 0x07, 'b', 0x1b, 'c'}
	assert.Equal(t, "abc", ParseSSID(ies).Value)
}

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel([]byte{TagDSParameterSet, 1, 11})
	require.NoError(t, err)
	assert.Equal(t, uint8(11), ch)

	_, err = ParseChannel([]byte{TagSSID, 1, 'x'})
	assert.ErrorIs(t, err, ErrIENotFound)
}

func TestParseRates_MasksBasicBitAndMergesExtended(t *testing.T) {
	var ies []byte
	ies = append(ies, TagSupportedRates, 4, 0x82, 0x84, 0x8b, 0x96)
	ies = append(ies, TagExtendedRates, 2, 0x0c, 0x12)

	rates := ParseRates(ies)
	assert.Equal(t, []uint8{0x02, 0x04, 0x0b, 0x16, 0x0c, 0x12}, rates)
}

func TestHasRSN(t *testing.T) {
	rsn := []byte{TagRSN, 4, 0x01, 0x00, 0x00, 0x0f}
	assert.True(t, HasRSN(rsn))
	assert.False(t, HasRSN(testIEs("open", 1)))
}

func TestIterateIEs_StopsAtMalformedLength(t *testing.T) {
	// Second element declares more bytes than remain.
	data := []byte{TagSSID, 2, 'h', 'i', TagSupportedRates, 200, 0x82}
	var seen []int
	IterateIEs(data, func(id int, _ []byte) { seen = append(seen, id) })
	assert.Equal(t, []int{TagSSID}, seen)
}
