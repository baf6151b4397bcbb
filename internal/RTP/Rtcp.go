package RTP

import (
	"time"

	"github.com/pion/rtcp"
)

// SenderReport builds the RTCP SR for the current packetizer state so
// receivers can map the RTP clock onto wall time.
func (p *Packetizer) SenderReport(now time.Time) *rtcp.SenderReport {
	return &rtcp.SenderReport{
		SSRC:        p.Ssrc,
		NTPTime:     ntpTime(now),
		RTPTime:     p.lastTs,
		PacketCount: p.PacketCount,
		OctetCount:  p.OctetCount,
	}
}

// ntpTime converts to the 64 bit NTP fixed point format, seconds since 1900
// in the high half, fraction in the low half.
func ntpTime(t time.Time) uint64 {
	const ntpEpochOffset = 2208988800 // 1900 -> 1970 in seconds
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) << 32 / 1000000000
	return secs<<32 | frac
}
