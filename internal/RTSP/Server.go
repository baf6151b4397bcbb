package RTSP

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"git.hub.com/wangyl/CameraStream/pkg/Logger"
	"git.hub.com/wangyl/CameraStream/pkg/Settings"
)

// RtspServer owns the connection set. It is the only holder of strong
// session references, hands frames from the capture pipeline to every
// session and serializes udp port assignment across sessions.
type RtspServer struct {
	sessionsLock sync.RWMutex
	sessions     map[string]*Session

	portLock sync.Mutex
	nextPort int

	paramLock sync.RWMutex
	sps       []byte
	pps       []byte

	closed bool
}

func NewRtspServer() *RtspServer {
	return &RtspServer{
		sessions: make(map[string]*Session),
		nextPort: Settings.GetConfig().APP.UdpPortMin,
	}
}

// CreateSession registers a session for the accepted control socket and
// starts its read loop.
func (srv *RtspServer) CreateSession(conn net.Conn) *Session {
	s := NewSession(conn, srv)
	srv.sessionsLock.Lock()
	srv.sessions[s.token] = s
	count := len(srv.sessions)
	srv.sessionsLock.Unlock()
	Logger.GetLogger().Info("session created",
		zap.String("session", s.token), zap.Int("sessions", count))
	go s.start()
	return s
}

// sessionTerminated drops the server's reference, called exactly once per
// session from its stop path.
func (srv *RtspServer) sessionTerminated(s *Session) {
	srv.sessionsLock.Lock()
	delete(srv.sessions, s.token)
	count := len(srv.sessions)
	srv.sessionsLock.Unlock()
	Logger.GetLogger().Info("session terminated",
		zap.String("session", s.token), zap.Int("sessions", count))
}

// SessionCount reports the live connection count.
func (srv *RtspServer) SessionCount() int {
	srv.sessionsLock.RLock()
	defer srv.sessionsLock.RUnlock()
	return len(srv.sessions)
}

// DeliverFrame is the capture pipeline entry point: one encoded access unit
// and its presentation time, broadcast to every session. Sessions that are
// not playing ignore it.
func (srv *RtspServer) DeliverFrame(frame []byte, pts float64) {
	srv.sessionsLock.RLock()
	list := make([]*Session, 0, len(srv.sessions))
	for _, s := range srv.sessions {
		list = append(list, s)
	}
	srv.sessionsLock.RUnlock()
	for _, s := range list {
		s.DeliverFrame(frame, pts)
	}
}

// SetParameterSets caches the encoder SPS/PPS used for DESCRIBE bodies and
// keyframe prepending.
func (srv *RtspServer) SetParameterSets(sps, pps []byte) {
	srv.paramLock.Lock()
	defer srv.paramLock.Unlock()
	if len(sps) > 0 {
		srv.sps = append([]byte(nil), sps...)
	}
	if len(pps) > 0 {
		srv.pps = append([]byte(nil), pps...)
	}
}

func (srv *RtspServer) ParameterSets() (sps, pps []byte) {
	srv.paramLock.RLock()
	defer srv.paramLock.RUnlock()
	return srv.sps, srv.pps
}

// allocUDPPair binds an even/odd server port pair from the configured range
// and connects both sockets to the client side pair. Serialized so two
// sessions never grab the same ports.
func (srv *RtspServer) allocUDPPair(clientIP string, clientRtpPort, clientRtcpPort int) (rtpConn, rtcpConn *net.UDPConn, rtpPort, rtcpPort int, err error) {
	srv.portLock.Lock()
	defer srv.portLock.Unlock()
	cfg := Settings.GetConfig().APP
	rtpAddr := &net.UDPAddr{IP: net.ParseIP(clientIP), Port: clientRtpPort}
	rtcpAddr := &net.UDPAddr{IP: net.ParseIP(clientIP), Port: clientRtcpPort}
	if rtpAddr.IP == nil || rtcpAddr.IP == nil {
		return nil, nil, 0, 0, fmt.Errorf("bad client address %q", clientIP)
	}
	tries := (cfg.UdpPortMax - cfg.UdpPortMin) / 2
	for i := 0; i <= tries; i++ {
		port := srv.nextPort
		if port%2 != 0 {
			port++
		}
		srv.nextPort = port + 2
		if srv.nextPort > cfg.UdpPortMax {
			srv.nextPort = cfg.UdpPortMin
		}
		rtpConn, err = net.DialUDP("udp", &net.UDPAddr{Port: port}, rtpAddr)
		if err != nil {
			continue
		}
		rtcpConn, err = net.DialUDP("udp", &net.UDPAddr{Port: port + 1}, rtcpAddr)
		if err != nil {
			rtpConn.Close()
			continue
		}
		return rtpConn, rtcpConn, port, port + 1, nil
	}
	return nil, nil, 0, 0, fmt.Errorf("no free udp port pair in %d-%d", cfg.UdpPortMin, cfg.UdpPortMax)
}

// Shutdown tears down every session.
func (srv *RtspServer) Shutdown() {
	srv.sessionsLock.Lock()
	if srv.closed {
		srv.sessionsLock.Unlock()
		return
	}
	srv.closed = true
	list := make([]*Session, 0, len(srv.sessions))
	for _, s := range srv.sessions {
		list = append(list, s)
	}
	srv.sessionsLock.Unlock()
	for _, s := range list {
		s.Shutdown()
	}
}
