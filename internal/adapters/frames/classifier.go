// Package frames converts raw WLAN captures into the typed frame set the
// protocol state machines consume, and builds the frames they transmit.
package frames

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
)

// Classify parses one raw capture into a typed frame. RSSI and channel
// prefer the radiotap header when present and fall back to the values the
// driver stamped on the packet.
func Classify(pkt *domain.Packet) (domain.Frame, error) {
	if pkt == nil || len(pkt.Data) == 0 {
		return nil, fmt.Errorf("classify: empty packet: %w", domain.ErrInvalidArgs)
	}

	first := layers.LayerTypeDot11
	if hasRadiotap(pkt.Data) {
		first = layers.LayerTypeRadioTap
	}
	p := gopacket.NewPacket(pkt.Data, first, gopacket.Lazy)

	rssi := pkt.RSSI
	channel := pkt.Channel
	if rtLayer := p.Layer(layers.LayerTypeRadioTap); rtLayer != nil {
		if rt, ok := rtLayer.(*layers.RadioTap); ok {
			if rt.DBMAntennaSignal != 0 {
				rssi = int(rt.DBMAntennaSignal)
			}
			if ch := frequencyToChannel(int(rt.ChannelFrequency)); ch != 0 {
				channel = ch
			}
		}
	}

	dot11Layer := p.Layer(layers.LayerTypeDot11)
	if dot11Layer == nil {
		return nil, fmt.Errorf("classify: no 802.11 header: %w", domain.ErrBadFrame)
	}
	dot11, ok := dot11Layer.(*layers.Dot11)
	if !ok {
		return nil, fmt.Errorf("classify: no 802.11 header: %w", domain.ErrBadFrame)
	}

	hdr := domain.MgmtHeader{
		Addr1:   domain.MACFromHardwareAddr(dot11.Address1),
		Addr2:   domain.MACFromHardwareAddr(dot11.Address2),
		Addr3:   domain.MACFromHardwareAddr(dot11.Address3),
		SeqCtrl: dot11.SequenceNumber,
	}

	switch dot11.Type.MainType() {
	case layers.Dot11TypeMgmt:
		return classifyMgmt(p, dot11, hdr, rssi, channel)

	case layers.Dot11TypeCtrl:
		// Dot11Type packs subtype<<2|type.
		return &domain.CtrlFrame{Subtype: uint8(dot11.Type) >> 2}, nil

	case layers.Dot11TypeData:
		return &domain.DataFrame{
			Hdr:     hdr,
			ToDS:    dot11.Flags.ToDS(),
			FromDS:  dot11.Flags.FromDS(),
			Payload: dot11.LayerPayload(),
		}, nil
	}

	return nil, fmt.Errorf("classify: reserved frame type %v: %w", dot11.Type, domain.ErrBadFrame)
}

func classifyMgmt(p gopacket.Packet, dot11 *layers.Dot11, hdr domain.MgmtHeader, rssi int, channel uint8) (domain.Frame, error) {
	switch dot11.Type {
	case layers.Dot11TypeMgmtBeacon:
		layer := p.Layer(layers.LayerTypeDot11MgmtBeacon)
		beacon, ok := layer.(*layers.Dot11MgmtBeacon)
		if !ok {
			return nil, fmt.Errorf("classify: truncated beacon: %w", domain.ErrBadFrame)
		}
		return &domain.BeaconFrame{
			Hdr:            hdr,
			Timestamp:      beacon.Timestamp,
			BeaconInterval: beacon.Interval,
			Capabilities:   beacon.Flags,
			IEs:            ieChain(p, beacon.LayerPayload()),
			RSSI:           rssi,
			RxChannel:      channel,
		}, nil

	case layers.Dot11TypeMgmtProbeResp:
		layer := p.Layer(layers.LayerTypeDot11MgmtProbeResp)
		resp, ok := layer.(*layers.Dot11MgmtProbeResp)
		if !ok {
			return nil, fmt.Errorf("classify: truncated probe response: %w", domain.ErrBadFrame)
		}
		return &domain.ProbeResponseFrame{
			Hdr:            hdr,
			Timestamp:      resp.Timestamp,
			BeaconInterval: resp.Interval,
			Capabilities:   resp.Flags,
			IEs:            ieChain(p, resp.LayerPayload()),
			RSSI:           rssi,
			RxChannel:      channel,
		}, nil

	case layers.Dot11TypeMgmtDeauthentication:
		layer := p.Layer(layers.LayerTypeDot11MgmtDeauthentication)
		deauth, ok := layer.(*layers.Dot11MgmtDeauthentication)
		if !ok {
			return nil, fmt.Errorf("classify: truncated deauth: %w", domain.ErrBadFrame)
		}
		return &domain.DeauthFrame{Hdr: hdr, Reason: uint16(deauth.Reason)}, nil
	}

	return nil, fmt.Errorf("classify: mgmt subtype %v: %w", dot11.Type, domain.ErrNotSupported)
}

// ieChain returns the raw information-element bytes. When the decoder
// consumed the chain into individual layers the bytes are reassembled.
func ieChain(p gopacket.Packet, payload []byte) []byte {
	if len(payload) > 0 {
		return payload
	}
	var out []byte
	for _, layer := range p.Layers() {
		if layer.LayerType() != layers.LayerTypeDot11InformationElement {
			continue
		}
		if ie, ok := layer.(*layers.Dot11InformationElement); ok {
			out = append(out, byte(ie.ID), ie.Length)
			out = append(out, ie.Info...)
		}
	}
	return out
}

// hasRadiotap checks for a plausible radiotap header: version 0 and a sane
// little-endian length field.
func hasRadiotap(data []byte) bool {
	if len(data) < 4 || data[0] != 0 {
		return false
	}
	rtLen := int(binary.LittleEndian.Uint16(data[2:4]))
	return rtLen >= 8 && rtLen < len(data)
}

// frequencyToChannel converts a center frequency in MHz to a channel number.
func frequencyToChannel(freq int) uint8 {
	switch {
	case freq >= 2412 && freq <= 2484:
		if freq == 2484 {
			return 14
		}
		return uint8((freq - 2407) / 5)
	case freq >= 5170 && freq <= 5825:
		return uint8((freq - 5000) / 5)
	case freq >= 5955 && freq <= 7115:
		return uint8((freq - 5950) / 5)
	}
	return 0
}
