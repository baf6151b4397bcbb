package app

import (
	"fmt"
	"net"

	"go.uber.org/zap"

	"git.hub.com/wangyl/CameraStream/internal/RTSP"
	"git.hub.com/wangyl/CameraStream/pkg/Logger"
)

// CameraService is the listener half: it accepts control sockets and hands
// them to the rtsp server, which owns the per connection sessions.
type CameraService struct {
	Port     int
	listener net.Listener
	Server   *RTSP.RtspServer
	closed   bool
}

func (s *CameraService) Init(port int) error {
	s.Port = port
	s.Server = RTSP.NewRtspServer()
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return err
	}
	s.listener = listener
	Logger.GetLogger().Info("rtsp service listening", zap.Int("port", s.Port))
	return nil
}

func (s *CameraService) Accept() {
	for !s.closed {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed {
				return
			}
			Logger.GetLogger().Error("accept err: " + err.Error())
			continue
		}
		s.Server.CreateSession(conn)
	}
}

func (s *CameraService) Stop() {
	if s.closed {
		return
	}
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	s.Server.Shutdown()
	Logger.GetLogger().Info("rtsp service stopped")
}
