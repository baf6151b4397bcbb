package Source

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"git.hub.com/wangyl/CameraStream/internal/H264"
	"git.hub.com/wangyl/CameraStream/internal/RTSP"
	"git.hub.com/wangyl/CameraStream/pkg/Logger"
)

// FileSource loops an AnnexB h264 elementary stream into the server as if a
// camera encoder were producing it: one access unit per tick, pts derived
// from the frame rate. Stand in for the capture pipeline in demo runs.
type FileSource struct {
	Path string
	Fps  int

	server   *RTSP.RtspServer
	done     chan struct{}
	stopOnce sync.Once
}

func NewFileSource(path string, fps int, srv *RTSP.RtspServer) *FileSource {
	if fps <= 0 {
		fps = 25
	}
	return &FileSource{
		Path:   path,
		Fps:    fps,
		server: srv,
		done:   make(chan struct{}),
	}
}

func (f *FileSource) Start() error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return errors.Wrap(err, "read h264 file")
	}
	units, err := H264.SplitFrame(data)
	if err != nil {
		return errors.Wrap(err, "parse h264 file")
	}
	frames := f.groupAccessUnits(units)
	if len(frames) == 0 {
		return errors.New("no access unit in file")
	}
	Logger.GetLogger().Info("file source started",
		zap.String("path", f.Path), zap.Int("frames", len(frames)), zap.Int("fps", f.Fps))
	go f.loop(frames)
	return nil
}

// groupAccessUnits collects nal units up to and including each slice into
// one access unit, re-framed with 4 byte length prefixes. SPS/PPS found on
// the way are handed to the server for DESCRIBE.
func (f *FileSource) groupAccessUnits(units []H264.NalUnit) [][]byte {
	var frames [][]byte
	var current []H264.NalUnit
	for _, unit := range units {
		switch unit.Type {
		case H264.NAL_TYPE_SPS:
			f.server.SetParameterSets(unit.Data, nil)
		case H264.NAL_TYPE_PPS:
			f.server.SetParameterSets(nil, unit.Data)
		}
		current = append(current, unit)
		if unit.IsSlice() {
			frames = append(frames, packAvcc(current))
			current = nil
		}
	}
	return frames
}

func packAvcc(units []H264.NalUnit) []byte {
	size := 0
	for _, unit := range units {
		size += 4 + len(unit.Data)
	}
	buf := make([]byte, 0, size)
	for _, unit := range units {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(unit.Data)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, unit.Data...)
	}
	return buf
}

func (f *FileSource) loop(frames [][]byte) {
	ticker := time.NewTicker(time.Second / time.Duration(f.Fps))
	defer ticker.Stop()
	idx := 0
	pts := 0.0
	step := 1.0 / float64(f.Fps)
	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.server.DeliverFrame(frames[idx], pts)
			idx = (idx + 1) % len(frames)
			pts += step
		}
	}
}

func (f *FileSource) Stop() {
	f.stopOnce.Do(func() {
		close(f.done)
	})
}
