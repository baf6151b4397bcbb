package RTSP

import (
	"net"
	"time"
)

// ConnRich wraps the control socket with per call deadlines. The read
// timeout guards the handshake phase and is lifted on PLAY, the write
// timeout bounds every packet send so a stalled client cannot block the
// frame delivery path.
type ConnRich struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	conn         net.Conn

	// bytes that actually reached the socket, callers serialize writes
	bytesOut uint64
}

func newConnRich(conn net.Conn, readTimeout, writeTimeout time.Duration) *ConnRich {
	return &ConnRich{
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		conn:         conn,
	}
}

func (c *ConnRich) Read(p []byte) (n int, err error) {
	if c.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
	} else {
		var t time.Time
		_ = c.conn.SetReadDeadline(t)
	}
	return c.conn.Read(p)
}

func (c *ConnRich) Write(p []byte) (n int, err error) {
	if c.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	} else {
		var t time.Time
		_ = c.conn.SetWriteDeadline(t)
	}
	n, err = c.conn.Write(p)
	c.bytesOut += uint64(n)
	return n, err
}

func (c *ConnRich) Close() error {
	return c.conn.Close()
}

func (c *ConnRich) RemoteIP() string {
	if addr, ok := c.conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

func (c *ConnRich) LocalIP() string {
	if addr, ok := c.conn.LocalAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	return "0.0.0.0"
}
