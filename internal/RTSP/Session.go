package RTSP

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"encoding/binary"

	"github.com/pion/rtcp"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"git.hub.com/wangyl/CameraStream/internal/H264"
	"git.hub.com/wangyl/CameraStream/internal/RTP"
	"git.hub.com/wangyl/CameraStream/internal/SDP"
	"git.hub.com/wangyl/CameraStream/pkg/Logger"
	"git.hub.com/wangyl/CameraStream/pkg/Settings"
	"git.hub.com/wangyl/CameraStream/pkg/Snowflake"
)

// Session is one accepted client connection: the rtsp state machine, the
// negotiated transport and the packetizer state. The server holds the only
// strong reference, the session keeps a plain back reference for the
// termination callback. All mutable state is guarded by mu so request
// handling, frame delivery and shutdown never interleave.
type Session struct {
	token  string
	server *RtspServer

	conn       *ConnRich
	connRW     *bufio.ReadWriter
	connRwLock sync.Mutex

	mu           sync.Mutex
	state        SessionState
	transport    *TransportDescriptor
	packer       *RTP.Packetizer
	lastActivity time.Time
	stopped      bool
	rtcpStarted  bool
	done         chan struct{}

	dropCount     uint64
	badFrameCount uint64
	rtcpInCount   uint64

	notifyOnce sync.Once
}

func NewSession(conn net.Conn, srv *RtspServer) *Session {
	cfg := Settings.GetConfig().APP
	s := &Session{
		token:  Snowflake.GenerateToken(),
		server: srv,
		conn: newConnRich(conn,
			time.Duration(cfg.ReadTimeout)*time.Second,
			time.Duration(cfg.WriteTimeoutMs)*time.Millisecond),
		packer:       RTP.NewPacketizer(uint8(cfg.PayloadType), cfg.MaxPayloadSize),
		state:        STATE_INIT,
		done:         make(chan struct{}),
		lastActivity: time.Now(),
	}
	s.connRW = bufio.NewReadWriter(bufio.NewReader(s.conn), bufio.NewWriter(s.conn))
	return s
}

func (s *Session) Token() string {
	return s.token
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// start runs the control socket read loop. Interleaved $ frames carry
// client rtcp, everything else is an rtsp request. Any framing or socket
// error ends the session.
func (s *Session) start() {
	defer s.Shutdown()
	for {
		magic, err := s.connRW.ReadByte()
		if err != nil {
			if errors.Cause(err) != io.EOF {
				Logger.GetLogger().Debug("read connection: "+err.Error(), zap.String("session", s.token))
			}
			return
		}
		if magic == MagicChar {
			if err := s.readInterleaved(); err != nil {
				Logger.GetLogger().Error("read interleaved frame: "+err.Error(), zap.String("session", s.token))
				return
			}
			continue
		}
		if err := s.connRW.UnreadByte(); err != nil {
			return
		}
		if err := s.handleRtspRequest(); err != nil {
			Logger.GetLogger().Error("handle request: "+err.Error(), zap.String("session", s.token))
			return
		}
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
	}
}

func (s *Session) readInterleaved() error {
	channel, err := s.connRW.ReadByte()
	if err != nil {
		return err
	}
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(s.connRW, lenBuf); err != nil {
		return err
	}
	data := make([]byte, binary.BigEndian.Uint16(lenBuf))
	if _, err := io.ReadFull(s.connRW, data); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport != nil && int(channel) == s.transport.RtcpChannel {
		if pkts, err := rtcp.Unmarshal(data); err == nil {
			s.rtcpInCount += uint64(len(pkts))
			Logger.GetLogger().Debug("client rtcp received",
				zap.String("session", s.token), zap.Int("packets", len(pkts)))
		}
	}
	return nil
}

func (s *Session) handleRtspRequest() error {
	ctx := NewContext()
	req, err := ReadRequest(ctx, s.connRW.Reader)
	if err != nil {
		// framing is broken, answer 400 and close
		ctx.resp = GenerateResponse(http.StatusBadRequest, http.StatusText(http.StatusBadRequest),
			map[string]string{}, "")
		s.writeResponse(ctx)
		return err
	}
	cseq := req.Header[CSeq]

	s.mu.Lock()
	s.lastActivity = time.Now()
	if token, ok := req.Header[SessionID]; ok && token != s.token {
		ctx.resp = GenerateResponse(StatusCodeSessionNotFound, "Session Not Found",
			s.baseHeader(cseq), "")
	} else {
		switch req.Method {
		case OPTIONS:
			s.handleOptions(ctx, cseq)
		case DESCRIBE:
			s.handleDescribe(ctx, cseq)
		case SETUP:
			s.handleSetup(ctx, cseq)
		case PLAY:
			s.handlePlay(ctx, cseq)
		case PAUSE:
			s.handlePause(ctx, cseq)
		case TEARDOWN:
			ctx.teardown = true
			ctx.resp = GenerateResponse(http.StatusOK, http.StatusText(http.StatusOK),
				s.baseHeader(cseq), "")
		default:
			ctx.resp = GenerateResponse(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed),
				s.baseHeader(cseq), "")
		}
	}
	s.mu.Unlock()

	s.writeResponse(ctx)
	return nil
}

// baseHeader carries the fields every response echoes, callers hold mu.
// The Session header only appears once SETUP has issued the token.
func (s *Session) baseHeader(cseq string) map[string]string {
	header := make(map[string]string)
	if s.state != STATE_INIT {
		header[SessionID] = s.token
	}
	if cseq != "" {
		header[CSeq] = cseq
	}
	return header
}

func (s *Session) writeResponse(ctx *Context) {
	s.connRwLock.Lock()
	s.connRW.WriteString(ctx.resp.String())
	if err := s.connRW.Flush(); err != nil {
		s.connRW.Writer.Reset(s.conn)
	}
	s.connRwLock.Unlock()
	if ctx.teardown || ctx.resp.StatusCode == http.StatusBadRequest {
		s.Shutdown()
	}
}

func (s *Session) handleOptions(ctx *Context, cseq string) {
	header := s.baseHeader(cseq)
	header[Public] = "OPTIONS, DESCRIBE, SETUP, PLAY, PAUSE, TEARDOWN"
	ctx.resp = GenerateResponse(http.StatusOK, http.StatusText(http.StatusOK), header, "")
}

func (s *Session) handleDescribe(ctx *Context, cseq string) {
	header := s.baseHeader(cseq)
	sps, pps := s.server.ParameterSets()
	body, err := SDP.Describe(s.conn.LocalIP(), int(s.packer.PayloadType), sps, pps)
	if err != nil {
		// no keyframe seen yet, the client may retry
		ctx.resp = GenerateResponse(http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable), header, "")
		return
	}
	header[ContentType] = "application/sdp"
	if ctx.url != nil {
		header["Content-Base"] = ctx.url.String() + "/"
	}
	ctx.resp = GenerateResponse(http.StatusOK, http.StatusText(http.StatusOK), header, body)
}

func (s *Session) handleSetup(ctx *Context, cseq string) {
	header := s.baseHeader(cseq)
	if s.state == STATE_PLAYING || s.state == STATE_PAUSED {
		ctx.resp = GenerateResponse(StatusCodeMethodNotValidState, "Method Not Valid in This State", header, "")
		return
	}
	value, ok := ctx.req.Header[Transport]
	if !ok {
		ctx.resp = GenerateResponse(http.StatusBadRequest, http.StatusText(http.StatusBadRequest), header, "")
		return
	}
	td, err := ParseTransport(value)
	if err != nil {
		Logger.GetLogger().Warn("setup rejected: "+err.Error(), zap.String("session", s.token))
		ctx.resp = GenerateResponse(StatusCodeUnsupportedTranport, "Unsupported Transport", header, "")
		return
	}
	if td.Mode == TRANS_MODE_UDP {
		if err := td.openUDP(s.server, s.conn.RemoteIP()); err != nil {
			Logger.GetLogger().Warn("setup rejected: "+err.Error(), zap.String("session", s.token))
			ctx.resp = GenerateResponse(StatusCodeUnsupportedTranport, "Unsupported Transport", header, "")
			return
		}
	}
	if s.transport != nil {
		s.transport.close()
	}
	s.transport = td
	s.state = STATE_READY
	header[SessionID] = s.token
	header[Transport] = td.reply(s.packer.Ssrc)
	ctx.resp = GenerateResponse(http.StatusOK, http.StatusText(http.StatusOK), header, "")
	Logger.GetLogger().Info("transport negotiated",
		zap.String("session", s.token), zap.String("mode", td.Mode.String()))
}

func (s *Session) handlePlay(ctx *Context, cseq string) {
	header := s.baseHeader(cseq)
	if s.state != STATE_READY && s.state != STATE_PLAYING && s.state != STATE_PAUSED {
		ctx.resp = GenerateResponse(StatusCodeMethodNotValidState, "Method Not Valid in This State", header, "")
		return
	}
	sps, pps := s.server.ParameterSets()
	s.packer.SetParameterSets(sps, pps)
	s.state = STATE_PLAYING
	s.conn.ReadTimeout = 0
	if !s.rtcpStarted {
		s.rtcpStarted = true
		go s.rtcpLoop()
	}
	header[Range] = "npt=0.000-"
	ctx.resp = GenerateResponse(http.StatusOK, http.StatusText(http.StatusOK), header, "")
	Logger.GetLogger().Info("playing", zap.String("session", s.token))
}

func (s *Session) handlePause(ctx *Context, cseq string) {
	header := s.baseHeader(cseq)
	if s.state != STATE_PLAYING && s.state != STATE_PAUSED {
		ctx.resp = GenerateResponse(StatusCodeMethodNotValidState, "Method Not Valid in This State", header, "")
		return
	}
	s.state = STATE_PAUSED
	ctx.resp = GenerateResponse(http.StatusOK, http.StatusText(http.StatusOK), header, "")
}

// DeliverFrame feeds one encoded access unit from the capture pipeline.
// Outside PLAYING the frame is discarded, a malformed frame is dropped
// without ending the session, a dead transport tears the session down.
func (s *Session) DeliverFrame(frame []byte, pts float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.state != STATE_PLAYING {
		return
	}
	units, err := H264.SplitFrame(frame)
	if err != nil {
		s.badFrameCount++
		Logger.GetLogger().Warn("bad frame dropped: "+err.Error(),
			zap.String("session", s.token), zap.Uint64("badFrames", s.badFrameCount))
		return
	}
	for _, pkt := range s.packer.Packetize(units, pts) {
		raw, err := pkt.Marshal()
		if err != nil {
			Logger.GetLogger().Error("marshal rtp packet: "+err.Error(), zap.String("session", s.token))
			continue
		}
		if err := s.writeRTP(raw); err != nil {
			Logger.GetLogger().Error("transport failure: "+err.Error(), zap.String("session", s.token))
			s.stopLocked()
			return
		}
	}
}

// rtcpLoop emits a sender report on PLAY and every 5s until teardown.
func (s *Session) rtcpLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		s.sendSenderReport()
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) sendSenderReport() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.state != STATE_PLAYING {
		return
	}
	raw, err := s.packer.SenderReport(time.Now()).Marshal()
	if err != nil {
		return
	}
	if err := s.writeRTCP(raw); err != nil {
		Logger.GetLogger().Error("transport failure: "+err.Error(), zap.String("session", s.token))
		s.stopLocked()
	}
}

// Shutdown forces the terminal state from any other one. Safe to call from
// any goroutine and idempotent, the server is notified exactly once.
func (s *Session) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.state = STATE_TORN_DOWN
	close(s.done)
	if s.transport != nil {
		s.transport.close()
	}
	s.conn.Close()
	Logger.GetLogger().Info("session closed",
		zap.String("session", s.token),
		zap.Uint64("droppedPackets", s.dropCount),
		zap.Uint64("badFrames", s.badFrameCount))
	s.notifyOnce.Do(func() {
		s.server.sessionTerminated(s)
	})
}
