package RTSP

import "github.com/pkg/errors"

var (
	// ErrProtocol covers unparsable rtsp framing, the session closes.
	ErrProtocol = errors.New("rtsp: protocol error")
	// ErrTransportNegotiation maps to a 461 response, the session stays up.
	ErrTransportNegotiation = errors.New("rtsp: transport negotiation failed")
	// ErrTransport is a socket level send failure, treated like TEARDOWN.
	ErrTransport = errors.New("rtsp: transport failure")
)
