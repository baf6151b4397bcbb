package Source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.hub.com/wangyl/CameraStream/internal/H264"
	"git.hub.com/wangyl/CameraStream/internal/RTSP"
	"git.hub.com/wangyl/CameraStream/pkg/Settings"
)

func TestMain(m *testing.M) {
	if err := Settings.ReadConfig(""); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func annexB(units ...[]byte) []byte {
	var buf []byte
	for _, unit := range units {
		buf = append(buf, 0x00, 0x00, 0x00, 0x01)
		buf = append(buf, unit...)
	}
	return buf
}

func TestGroupAccessUnits(t *testing.T) {
	sps := []byte{0x67, 0x42, 0xC0, 0x1F}
	pps := []byte{0x68, 0xCE, 0x38, 0x80}
	idr := []byte{0x65, 0x01, 0x02}
	nonIdr := []byte{0x41, 0x03, 0x04}

	units, err := H264.SplitFrame(annexB(sps, pps, idr, nonIdr))
	require.NoError(t, err)

	srv := RTSP.NewRtspServer()
	f := NewFileSource("unused", 25, srv)
	frames := f.groupAccessUnits(units)
	require.Len(t, frames, 2, "one access unit per slice")

	gotSps, gotPps := srv.ParameterSets()
	require.Equal(t, sps, gotSps)
	require.Equal(t, pps, gotPps)

	// first frame re-framed as avcc keeps all three units
	parsed, err := H264.SplitFrame(frames[0])
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	require.Equal(t, H264.NAL_TYPE_IDR, parsed[2].Type)
}

func TestFileSourceStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.h264")
	data := annexB(
		[]byte{0x67, 0x42, 0xC0, 0x1F},
		[]byte{0x68, 0xCE, 0x38, 0x80},
		[]byte{0x65, 0x01, 0x02},
		[]byte{0x41, 0x03, 0x04},
	)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	srv := RTSP.NewRtspServer()
	f := NewFileSource(path, 100, srv)
	require.NoError(t, f.Start())
	defer f.Stop()

	sps, _ := srv.ParameterSets()
	require.NotEmpty(t, sps)
	time.Sleep(50 * time.Millisecond) // a few ticks with no session must not panic
}

func TestFileSourceMissingFile(t *testing.T) {
	srv := RTSP.NewRtspServer()
	f := NewFileSource(filepath.Join(t.TempDir(), "absent.h264"), 25, srv)
	require.Error(t, f.Start())
}
