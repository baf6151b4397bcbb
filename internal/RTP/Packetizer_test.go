package RTP

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.hub.com/wangyl/CameraStream/internal/H264"
)

func testUnits(data ...[]byte) []H264.NalUnit {
	units := make([]H264.NalUnit, 0, len(data))
	for _, d := range data {
		units = append(units, H264.NewNalUnit(d))
	}
	return units
}

func nalOfSize(header byte, size int) []byte {
	nal := make([]byte, size)
	nal[0] = header
	for i := 1; i < size; i++ {
		nal[i] = byte(i)
	}
	return nal
}

func TestPacketizeSingleNal(t *testing.T) {
	p := NewPacketizer(96, 1400)
	nal := nalOfSize(0x41, 100) // non-IDR slice
	packets := p.Packetize(testUnits(nal), 0.0)
	require.Len(t, packets, 1)
	require.Equal(t, nal, packets[0].Payload)
	require.True(t, packets[0].Marker)
	require.Equal(t, uint8(96), packets[0].PayloadType)
	require.Equal(t, p.Ssrc, packets[0].SSRC)
}

func TestPacketizeMarkerAndTimestampPerAccessUnit(t *testing.T) {
	p := NewPacketizer(96, 1400)
	au := testUnits(nalOfSize(0x06, 20), nalOfSize(0x41, 200), nalOfSize(0x41, 300))
	packets := p.Packetize(au, 0.04)
	require.Len(t, packets, 3)
	for i, pkt := range packets {
		require.Equal(t, packets[0].Timestamp, pkt.Timestamp, "all packets share the AU timestamp")
		require.Equal(t, i == len(packets)-1, pkt.Marker, "marker only on the last packet")
	}
}

func TestPacketizeFuaReassembles(t *testing.T) {
	p := NewPacketizer(96, 1400)
	nal := nalOfSize(0x65, 3000) // IDR bigger than the budget
	packets := p.Packetize(testUnits(nal), 0.0)
	require.GreaterOrEqual(t, len(packets), 2)

	rebuilt := []byte{packets[0].Payload[0]&0xE0 | packets[0].Payload[1]&0x1F}
	for i, pkt := range packets {
		payload := pkt.Payload
		require.LessOrEqual(t, len(payload), 1400)
		require.Equal(t, byte(28), payload[0]&0x1F, "FU-A indicator type")
		start := payload[1]&0x80 != 0
		end := payload[1]&0x40 != 0
		require.Equal(t, i == 0, start)
		require.Equal(t, i == len(packets)-1, end)
		require.Equal(t, i == len(packets)-1, pkt.Marker)
		rebuilt = append(rebuilt, payload[2:]...)
	}
	require.Equal(t, nal, rebuilt, "concatenated fragments rebuild the nal unit")
}

func TestPacketizeSequenceNumbersConsecutive(t *testing.T) {
	p := NewPacketizer(96, 1400)
	p.seq = 65533 // exercise the wrap
	var seqs []uint16
	for i := 0; i < 4; i++ {
		for _, pkt := range p.Packetize(testUnits(nalOfSize(0x41, 2000)), float64(i)*0.04) {
			seqs = append(seqs, pkt.SequenceNumber)
		}
	}
	require.Greater(t, len(seqs), 4)
	for i := 1; i < len(seqs); i++ {
		require.Equal(t, seqs[i-1]+1, seqs[i], "sequence numbers strictly consecutive mod 65536")
	}
}

func TestTimestampMapping(t *testing.T) {
	p := NewPacketizer(96, 1400)
	base := p.tsInit
	packets := p.Packetize(testUnits(nalOfSize(0x65, 3000)), 1.0)
	require.GreaterOrEqual(t, len(packets), 2)
	for _, pkt := range packets {
		require.Equal(t, base+90000, pkt.Timestamp)
	}
	require.True(t, packets[len(packets)-1].Marker)
}

func TestTimestampClampOnAnomaly(t *testing.T) {
	p := NewPacketizer(96, 1400)
	ts1 := p.Timestamp(1.0)
	ts2 := p.Timestamp(0.5) // going backwards
	require.Equal(t, ts1+1, ts2)
	require.Equal(t, uint32(1), p.ClampCount)
	ts3 := p.Timestamp(2.0)
	require.Equal(t, p.tsInit+180000, ts3)
}

func TestParameterSetsPrependedBeforeIdr(t *testing.T) {
	p := NewPacketizer(96, 1400)
	sps := []byte{0x67, 0x42, 0x00, 0x1F}
	pps := []byte{0x68, 0xCE, 0x38, 0x80}
	p.SetParameterSets(sps, pps)

	packets := p.Packetize(testUnits(nalOfSize(0x65, 100)), 0.0)
	require.Len(t, packets, 3)
	require.Equal(t, sps, packets[0].Payload)
	require.Equal(t, pps, packets[1].Payload)
	require.True(t, packets[2].Marker)
	require.False(t, packets[0].Marker)

	// non-IDR access units are sent without parameter sets
	packets = p.Packetize(testUnits(nalOfSize(0x41, 100)), 0.04)
	require.Len(t, packets, 1)
}

func TestInBandParameterSetsNotDuplicated(t *testing.T) {
	p := NewPacketizer(96, 1400)
	sps := []byte{0x67, 0x42, 0x00, 0x1F}
	pps := []byte{0x68, 0xCE, 0x38, 0x80}
	packets := p.Packetize(testUnits(sps, pps, nalOfSize(0x65, 100)), 0.0)
	require.Len(t, packets, 3)
	// the in-band sets were captured for later keyframes
	packets = p.Packetize(testUnits(nalOfSize(0x65, 100)), 0.04)
	require.Len(t, packets, 3)
	require.Equal(t, sps, packets[0].Payload)
}

func TestAudUnitsSkipped(t *testing.T) {
	p := NewPacketizer(96, 1400)
	packets := p.Packetize(testUnits([]byte{0x09, 0xF0}, nalOfSize(0x41, 50)), 0.0)
	require.Len(t, packets, 1)
	require.Equal(t, byte(0x41), packets[0].Payload[0])
}

func TestSenderReportCounts(t *testing.T) {
	p := NewPacketizer(96, 1400)
	p.Packetize(testUnits(nalOfSize(0x41, 3000)), 0.0)
	sr := p.SenderReport(time.Unix(1700000000, 500000000))
	require.Equal(t, p.Ssrc, sr.SSRC)
	require.Equal(t, p.PacketCount, sr.PacketCount)
	require.Equal(t, p.OctetCount, sr.OctetCount)
	require.Equal(t, p.lastTs, sr.RTPTime)
	require.Equal(t, uint64(1700000000+2208988800), sr.NTPTime>>32)
}
