package frames

import (
	"errors"
	"strings"
	"unicode"
)

// Information element tags used by the scanner.
const (
	TagSSID           = 0
	TagSupportedRates = 1
	TagDSParameterSet = 3
	TagRSN            = 48
	TagExtendedRates  = 50
	TagVendorSpecific = 221
)

var ErrIENotFound = errors.New("information element not found")

// SSID is the parsed service set identifier. Hidden covers both the
// zero-length form and the all-zero-bytes form some access points emit.
type SSID struct {
	Value  string
	Hidden bool
}

func (s SSID) String() string {
	if s.Hidden {
		return "<HIDDEN>"
	}
	return s.Value
}

// IterateIEs calls the callback for each well-formed IE in the chain.
// Iteration stops at the first IE whose declared length exceeds the
// remaining data.
func IterateIEs(data []byte, callback func(id int, data []byte)) {
	offset := 0
	limit := len(data)

	for offset < limit {
		if offset+2 > limit {
			break
		}

		id := int(data[offset])
		length := int(data[offset+1])
		offset += 2

		if offset+length > limit {
			break
		}

		callback(id, data[offset:offset+length])
		offset += length
	}
}

// FindIE returns the data of the first IE with the given ID, or nil.
func FindIE(data []byte, targetID int) []byte {
	var result []byte
	IterateIEs(data, func(id int, val []byte) {
		if result == nil && id == targetID {
			result = val
		}
	})
	return result
}

// ParseSSID extracts the SSID element from the IE chain.
func ParseSSID(data []byte) SSID {
	val := FindIE(data, TagSSID)
	if val == nil {
		return SSID{Hidden: true}
	}
	allZero := true
	for _, b := range val {
		if b != 0x00 {
			allZero = false
			break
		}
	}
	if len(val) == 0 || allZero {
		return SSID{Hidden: true}
	}
	return SSID{Value: safeString(val)}
}

// ParseChannel extracts the channel from the DS Parameter Set element.
func ParseChannel(data []byte) (uint8, error) {
	val := FindIE(data, TagDSParameterSet)
	if len(val) >= 1 {
		return val[0], nil
	}
	return 0, ErrIENotFound
}

// ParseRates collects supported and extended rates in 0.5 Mbps units,
// with the basic-rate bit masked off.
func ParseRates(data []byte) []uint8 {
	var rates []uint8
	IterateIEs(data, func(id int, val []byte) {
		if id != TagSupportedRates && id != TagExtendedRates {
			return
		}
		for _, r := range val {
			rates = append(rates, r&0x7f)
		}
	})
	return rates
}

// HasRSN reports whether the chain carries an RSN element.
func HasRSN(data []byte) bool {
	return FindIE(data, TagRSN) != nil
}

// safeString strips non-printable bytes so a hostile SSID cannot smuggle
// control characters into logs or the UI.
func safeString(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		r := rune(b)
		if unicode.IsPrint(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
