package RTP

import (
	"math"
	"math/rand"

	"github.com/pion/rtp"
	"go.uber.org/zap"

	"git.hub.com/wangyl/CameraStream/internal/H264"
	"git.hub.com/wangyl/CameraStream/pkg/Logger"
)

const (
	VideoClockRate = 90000
	fuaHeaderSize  = 2
)

// Packetizer turns the NAL units of one access unit into RTP packets.
// Sequence number and timestamp state lives for the whole session, the
// caller serializes access.
type Packetizer struct {
	PayloadType uint8
	Ssrc        uint32
	MaxPayload  int

	seq    uint16
	tsInit uint32
	lastTs uint32
	haveTs bool

	sps []byte
	pps []byte

	PacketCount uint32
	OctetCount  uint32
	ClampCount  uint32
}

func NewPacketizer(payloadType uint8, maxPayload int) *Packetizer {
	return &Packetizer{
		PayloadType: payloadType,
		MaxPayload:  maxPayload,
		Ssrc:        rand.Uint32(),
		seq:         uint16(rand.Intn(1 << 16)),
		tsInit:      rand.Uint32(),
	}
}

// SetParameterSets stores the SPS/PPS resent before every IDR access unit so
// a client attaching mid stream can decode from the next keyframe.
func (p *Packetizer) SetParameterSets(sps, pps []byte) {
	if len(sps) > 0 {
		p.sps = sps
	}
	if len(pps) > 0 {
		p.pps = pps
	}
}

// Timestamp maps a presentation time in seconds onto the 90kHz RTP clock,
// offset from a random per session base. A non monotonic result is clamped
// to last+1 and counted.
func (p *Packetizer) Timestamp(pts float64) uint32 {
	ts := p.tsInit + uint32(int64(math.Round(pts*VideoClockRate)))
	if p.haveTs && int32(ts-p.lastTs) <= 0 {
		ts = p.lastTs + 1
		p.ClampCount++
		Logger.GetLogger().Warn("non monotonic presentation time, clamping rtp timestamp",
			zap.Float64("pts", pts), zap.Uint32("ts", ts))
	}
	p.haveTs = true
	p.lastTs = ts
	return ts
}

// Packetize builds the RTP packets for one access unit. Single NAL packets
// where the unit fits the payload budget, FU-A fragments otherwise. The
// marker bit is set only on the last packet and all packets carry the same
// timestamp. AUD units are dropped, SPS/PPS get prepended before IDR units.
func (p *Packetizer) Packetize(units []H264.NalUnit, pts float64) []*rtp.Packet {
	units = p.filter(units)
	if len(units) == 0 {
		return nil
	}
	ts := p.Timestamp(pts)
	var payloads [][]byte
	for _, unit := range units {
		payloads = append(payloads, p.payloadsFor(unit.Data)...)
	}
	packets := make([]*rtp.Packet, 0, len(payloads))
	for i, payload := range payloads {
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == len(payloads)-1,
				PayloadType:    p.PayloadType,
				SequenceNumber: p.seq,
				Timestamp:      ts,
				SSRC:           p.Ssrc,
			},
			Payload: payload,
		}
		p.seq++ // wraps mod 65536 by type
		p.PacketCount++
		p.OctetCount += uint32(len(payload))
		packets = append(packets, pkt)
	}
	return packets
}

// filter drops AUD units, captures in-band parameter sets and prepends the
// stored SPS/PPS when the access unit holds an IDR slice without them.
func (p *Packetizer) filter(units []H264.NalUnit) []H264.NalUnit {
	out := make([]H264.NalUnit, 0, len(units)+2)
	hasIdr, hasSps := false, false
	for _, unit := range units {
		switch unit.Type {
		case H264.NAL_TYPE_AUD:
			continue
		case H264.NAL_TYPE_SPS:
			p.sps = append([]byte(nil), unit.Data...)
			hasSps = true
		case H264.NAL_TYPE_PPS:
			p.pps = append([]byte(nil), unit.Data...)
		case H264.NAL_TYPE_IDR:
			hasIdr = true
		}
		out = append(out, unit)
	}
	if hasIdr && !hasSps && len(p.sps) > 0 && len(p.pps) > 0 {
		out = append([]H264.NalUnit{
			H264.NewNalUnit(p.sps),
			H264.NewNalUnit(p.pps),
		}, out...)
	}
	return out
}

func (p *Packetizer) payloadsFor(nal []byte) [][]byte {
	if len(nal) <= p.MaxPayload {
		return [][]byte{nal}
	}
	// FU-A, RFC 6184 5.8
	nri := nal[0] & 0x60
	nalType := nal[0] & 0x1F
	chunk := p.MaxPayload - fuaHeaderSize
	var out [][]byte
	for pos := 1; pos < len(nal); pos += chunk {
		end := pos + chunk
		if end > len(nal) {
			end = len(nal)
		}
		item := make([]byte, fuaHeaderSize+end-pos)
		item[0] = nri | byte(H264.NAL_TYPE_FUA)
		item[1] = nalType
		if pos == 1 {
			item[1] |= 0x80 // start
		}
		if end == len(nal) {
			item[1] |= 0x40 // end
		}
		copy(item[fuaHeaderSize:], nal[pos:end])
		out = append(out, item)
	}
	return out
}
