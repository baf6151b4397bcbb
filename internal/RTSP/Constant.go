package RTSP

import "regexp"

const RTSP_VERSION = "RTSP/1.0"

const (
	OPTIONS = "OPTIONS"

	DESCRIBE = "DESCRIBE"

	SETUP = "SETUP"

	PLAY = "PLAY"

	PAUSE = "PAUSE"

	TEARDOWN = "TEARDOWN"
)

const (
	ContentLength = "Content-Length"
	ContentType   = "Content-Type"
	UserAgent     = "User-Agent"
	SessionID     = "Session"
	Accept        = "Accept"
	Transport     = "Transport"
	Range         = "Range"
	CSeq          = "CSeq"
	Public        = "Public"
	RtpInfo       = "RTP-Info"
)

// RTSP status codes without an http equivalent, RFC 2326 7.1.1
const (
	StatusCodeSessionNotFound     = 454
	StatusCodeMethodNotValidState = 455
	StatusCodeUnsupportedTranport = 461
)

type SessionState int

const (
	STATE_INIT SessionState = iota
	STATE_READY
	STATE_PLAYING
	STATE_PAUSED
	STATE_TORN_DOWN
)

func (s SessionState) String() string {
	switch s {
	case STATE_INIT:
		return "Init"
	case STATE_READY:
		return "Ready"
	case STATE_PLAYING:
		return "Playing"
	case STATE_PAUSED:
		return "Paused"
	case STATE_TORN_DOWN:
		return "TornDown"
	default:
		return "Unknown"
	}
}

// interleaved framing marker byte, RFC 2326 10.12
const MagicChar = 0x24

var (
	TcpRegexp = regexp.MustCompile(`interleaved=(\d+)(-(\d+))?`)
	UdpRegexp = regexp.MustCompile(`client_port=(\d+)(-(\d+))?`)
)
