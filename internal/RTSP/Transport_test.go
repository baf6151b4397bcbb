package RTSP

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseTransportInterleaved(t *testing.T) {
	td, err := ParseTransport("RTP/AVP/TCP;unicast;interleaved=2-3")
	require.NoError(t, err)
	require.Equal(t, TRANS_MODE_TCP, td.Mode)
	require.Equal(t, 2, td.RtpChannel)
	require.Equal(t, 3, td.RtcpChannel)
}

func TestParseTransportInterleavedDefaultChannels(t *testing.T) {
	td, err := ParseTransport("RTP/AVP/TCP;unicast")
	require.NoError(t, err)
	require.Equal(t, TRANS_MODE_TCP, td.Mode)
	require.Equal(t, 0, td.RtpChannel)
	require.Equal(t, 1, td.RtcpChannel)
}

func TestParseTransportUdp(t *testing.T) {
	td, err := ParseTransport("RTP/AVP;unicast;client_port=5000-5001")
	require.NoError(t, err)
	require.Equal(t, TRANS_MODE_UDP, td.Mode)
	require.Equal(t, 5000, td.ClientRtpPort)
	require.Equal(t, 5001, td.ClientRtcpPort)
}

func TestParseTransportUdpSinglePort(t *testing.T) {
	td, err := ParseTransport("RTP/AVP;unicast;client_port=5000")
	require.NoError(t, err)
	require.Equal(t, 5000, td.ClientRtpPort)
	require.Equal(t, 5001, td.ClientRtcpPort)
}

func TestParseTransportRejected(t *testing.T) {
	cases := []string{
		"RTP/AVP;multicast;client_port=5000-5001",
		"RTP/AVP;unicast",
		"RAW/RAW/UDP;unicast;client_port=5000-5001",
		"",
	}
	for _, value := range cases {
		_, err := ParseTransport(value)
		require.Error(t, err, value)
		require.Equal(t, ErrTransportNegotiation, errors.Cause(err), value)
	}
}

func TestTransportReply(t *testing.T) {
	td := &TransportDescriptor{Mode: TRANS_MODE_TCP, RtpChannel: 0, RtcpChannel: 1}
	require.Equal(t, "RTP/AVP/TCP;unicast;interleaved=0-1;ssrc=DEADBEEF", td.reply(0xDEADBEEF))

	td = &TransportDescriptor{
		Mode:           TRANS_MODE_UDP,
		ClientRtpPort:  5000,
		ClientRtcpPort: 5001,
		ServerRtpPort:  30000,
		ServerRtcpPort: 30001,
	}
	require.Equal(t, "RTP/AVP;unicast;client_port=5000-5001;server_port=30000-30001;ssrc=DEADBEEF",
		td.reply(0xDEADBEEF))
}

func TestWriteInterleavedTimeoutDropsWholeFrame(t *testing.T) {
	srv := NewRtspServer()
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	s := srv.CreateSession(serverSide)
	defer s.Shutdown()

	// nobody reads, the flush times out with nothing on the wire
	require.NoError(t, s.writeInterleaved(0, bytes.Repeat([]byte{0xAB}, 64)))
	require.Equal(t, uint64(1), s.dropCount)

	// the writer stays usable once a reader shows up
	go io.Copy(io.Discard, clientSide)
	require.NoError(t, s.writeInterleaved(0, []byte{0x01, 0x02}))
}

func TestWriteInterleavedPartialWriteBreaksTransport(t *testing.T) {
	srv := NewRtspServer()
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	s := srv.CreateSession(serverSide)
	defer s.Shutdown()

	// the client takes the first two bytes then stalls mid frame
	go io.ReadFull(clientSide, make([]byte, 2))

	err := s.writeInterleaved(0, bytes.Repeat([]byte{0xCD}, 64))
	require.Error(t, err, "a half sent frame desyncs the channel framing")
	require.Equal(t, ErrTransport, errors.Cause(err))
	require.Equal(t, uint64(0), s.dropCount, "a partial send is not a clean drop")
}
