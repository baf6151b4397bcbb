package RTSP

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"git.hub.com/wangyl/CameraStream/pkg/Logger"
)

type TransportMode int

const (
	TRANS_MODE_TCP TransportMode = iota // interleaved on the control socket
	TRANS_MODE_UDP                      // dedicated rtp/rtcp datagram pair
)

func (m TransportMode) String() string {
	if m == TRANS_MODE_TCP {
		return "TCP"
	}
	return "UDP"
}

// TransportDescriptor is the negotiated transport, immutable after SETUP.
type TransportDescriptor struct {
	Mode TransportMode

	RtpChannel  int
	RtcpChannel int

	ClientRtpPort  int
	ClientRtcpPort int
	ServerRtpPort  int
	ServerRtcpPort int

	rtpConn  *net.UDPConn
	rtcpConn *net.UDPConn
}

// ParseTransport reads the SETUP Transport header. interleaved=a-b selects
// tcp mode, unicast client_port=a-b selects the udp pair, anything else is
// a negotiation failure answered with 461.
func ParseTransport(value string) (*TransportDescriptor, error) {
	if !strings.Contains(value, "RTP/AVP") {
		return nil, errors.Wrapf(ErrTransportNegotiation, "unknown profile in %q", value)
	}
	if strings.Contains(value, "/TCP") || strings.Contains(value, "interleaved=") {
		td := &TransportDescriptor{Mode: TRANS_MODE_TCP, RtpChannel: 0, RtcpChannel: 1}
		if match := TcpRegexp.FindStringSubmatch(value); match != nil {
			td.RtpChannel, _ = strconv.Atoi(match[1])
			if match[3] != "" {
				td.RtcpChannel, _ = strconv.Atoi(match[3])
			} else {
				td.RtcpChannel = td.RtpChannel + 1
			}
		}
		return td, nil
	}
	if match := UdpRegexp.FindStringSubmatch(value); match != nil {
		if strings.Contains(value, "multicast") {
			return nil, errors.Wrap(ErrTransportNegotiation, "multicast not supported")
		}
		td := &TransportDescriptor{Mode: TRANS_MODE_UDP}
		td.ClientRtpPort, _ = strconv.Atoi(match[1])
		if match[3] != "" {
			td.ClientRtcpPort, _ = strconv.Atoi(match[3])
		} else {
			td.ClientRtcpPort = td.ClientRtpPort + 1
		}
		return td, nil
	}
	return nil, errors.Wrapf(ErrTransportNegotiation, "no interleaved or client_port parameter in %q", value)
}

// openUDP binds the server side port pair and connects both sockets to the
// client. Port assignment is serialized by the server so sessions never race
// for the same pair.
func (td *TransportDescriptor) openUDP(srv *RtspServer, clientIP string) error {
	rtpConn, rtcpConn, rtpPort, rtcpPort, err := srv.allocUDPPair(clientIP, td.ClientRtpPort, td.ClientRtcpPort)
	if err != nil {
		return errors.Wrap(ErrTransportNegotiation, err.Error())
	}
	td.rtpConn = rtpConn
	td.rtcpConn = rtcpConn
	td.ServerRtpPort = rtpPort
	td.ServerRtcpPort = rtcpPort
	return nil
}

func (td *TransportDescriptor) close() {
	if td.rtpConn != nil {
		td.rtpConn.Close()
		td.rtpConn = nil
	}
	if td.rtcpConn != nil {
		td.rtcpConn.Close()
		td.rtcpConn = nil
	}
}

// reply builds the confirmation Transport header for the SETUP response.
func (td *TransportDescriptor) reply(ssrc uint32) string {
	if td.Mode == TRANS_MODE_TCP {
		return fmt.Sprintf("RTP/AVP/TCP;unicast;interleaved=%d-%d;ssrc=%08X",
			td.RtpChannel, td.RtcpChannel, ssrc)
	}
	return fmt.Sprintf("RTP/AVP;unicast;client_port=%d-%d;server_port=%d-%d;ssrc=%08X",
		td.ClientRtpPort, td.ClientRtcpPort, td.ServerRtpPort, td.ServerRtcpPort, ssrc)
}

// writeRTP sends one rtp packet over the negotiated transport. Sends never
// block past the configured write budget: a timed out send drops the packet
// and bumps the counter, a broken socket is reported as ErrTransport.
func (s *Session) writeRTP(data []byte) error {
	if s.transport.Mode == TRANS_MODE_TCP {
		return s.writeInterleaved(s.transport.RtpChannel, data)
	}
	return s.writeDatagram(s.transport.rtpConn, data)
}

func (s *Session) writeRTCP(data []byte) error {
	if s.transport.Mode == TRANS_MODE_TCP {
		return s.writeInterleaved(s.transport.RtcpChannel, data)
	}
	return s.writeDatagram(s.transport.rtcpConn, data)
}

func (s *Session) writeInterleaved(channel int, data []byte) error {
	var dataLen = make([]byte, 2)
	binary.BigEndian.PutUint16(dataLen, uint16(len(data)))
	s.connRwLock.Lock()
	defer s.connRwLock.Unlock()
	sent := s.conn.bytesOut
	s.connRW.WriteByte(MagicChar)
	s.connRW.WriteByte(byte(channel))
	s.connRW.Write(dataLen)
	s.connRW.Write(data)
	err := s.connRW.Flush()
	if err == nil {
		return nil
	}
	if netErr, ok := errors.Cause(err).(net.Error); ok && netErr.Timeout() {
		if s.conn.bytesOut != sent {
			// part of the frame is on the wire, the channel framing is broken
			return errors.Wrap(ErrTransport, "partial interleaved frame")
		}
		s.dropCount++
		Logger.GetLogger().Debug("slow client, packet dropped",
			zap.String("session", s.token), zap.Uint64("dropped", s.dropCount))
		s.connRW.Writer.Reset(s.conn)
		return nil
	}
	return errors.Wrap(ErrTransport, err.Error())
}

func (s *Session) writeDatagram(conn *net.UDPConn, data []byte) error {
	if conn == nil {
		return errors.Wrap(ErrTransport, "udp socket closed")
	}
	if _, err := conn.Write(data); err != nil {
		// datagram sockets surface transient icmp errors, drop and move on
		s.dropCount++
		Logger.GetLogger().Debug("udp send failed, packet dropped",
			zap.String("session", s.token), zap.Error(err))
	}
	return nil
}
