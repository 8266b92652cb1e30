// Package wire encodes and decodes the service-message transport: a fixed
// 16-byte little-endian header {txid, flags, ordinal} followed by an
// ordinal-specific JSON body.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
)

// HeaderSize is the fixed service header length in bytes.
const HeaderSize = 16

// Request ordinals.
const (
	OrdinalQueryDeviceInfo   uint64 = 0x01
	OrdinalQueryStats        uint64 = 0x02
	OrdinalListMinstrelPeers uint64 = 0x03
	OrdinalGetMinstrelStats  uint64 = 0x04
	OrdinalStartScan         uint64 = 0x10
	OrdinalResetStats        uint64 = 0x11
)

// Response / event ordinals.
const (
	OrdinalDeviceInfoResp    uint64 = 0x81
	OrdinalStatsResp         uint64 = 0x82
	OrdinalMinstrelPeersResp uint64 = 0x83
	OrdinalMinstrelStatsResp uint64 = 0x84
	OrdinalScanResult        uint64 = 0x90
	OrdinalScanEnd           uint64 = 0x91
)

// MinstrelStatsReq is the body of a GetMinstrelStats request.
type MinstrelStatsReq struct {
	Addr domain.MAC `json:"addr"`
}

// Encode builds header+body bytes for one service message. A nil body
// encodes as a bare header.
func Encode(ordinal uint64, txid uint32, body interface{}) ([]byte, error) {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], txid)
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	binary.LittleEndian.PutUint64(buf[8:16], ordinal)
	if body == nil {
		return buf, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode ordinal %#x: %w", ordinal, err)
	}
	return append(buf, payload...), nil
}

// DecodeHeader splits a raw message into its header and body bytes.
// A short buffer is a local decode error; nothing should be forwarded.
func DecodeHeader(data []byte) (domain.ServiceHeader, []byte, error) {
	if len(data) < HeaderSize {
		return domain.ServiceHeader{}, nil,
			fmt.Errorf("message of %d bytes: %w", len(data), domain.ErrShortHeader)
	}
	hdr := domain.ServiceHeader{
		TxID:    binary.LittleEndian.Uint32(data[0:4]),
		Flags:   binary.LittleEndian.Uint32(data[4:8]),
		Ordinal: binary.LittleEndian.Uint64(data[8:16]),
	}
	return hdr, data[HeaderSize:], nil
}

// DecodeBody turns the ordinal-specific body into a typed ServiceMsg.
// Unknown ordinals are reported as such; the header survives for replies.
func DecodeBody(hdr domain.ServiceHeader, body []byte) (*domain.ServiceMsg, error) {
	msg := &domain.ServiceMsg{Hdr: hdr}
	switch hdr.Ordinal {
	case OrdinalQueryDeviceInfo, OrdinalQueryStats, OrdinalListMinstrelPeers, OrdinalResetStats:
		return msg, nil
	case OrdinalGetMinstrelStats:
		var req MinstrelStatsReq
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("decode minstrel stats req: %w", err)
		}
		msg.Body = &req
		return msg, nil
	case OrdinalStartScan:
		var req domain.ScanRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("decode scan request: %w", err)
		}
		req.TxID = hdr.TxID
		msg.Body = &req
		return msg, nil
	}
	return nil, fmt.Errorf("ordinal %#x: %w", hdr.Ordinal, domain.ErrUnknownOrdinal)
}
