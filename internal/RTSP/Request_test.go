package RTSP

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestReadRequest(t *testing.T) {
	data := "DESCRIBE rtsp://192.0.1.100/cam RTSP/1.0\r\nCSeq: 2\r\nAccept: application/sdp\r\nUser-Agent: NKPlayer\r\n\r\n"
	ctx := NewContext()
	req, err := ReadRequest(ctx, bufio.NewReader(bytes.NewReader([]byte(data))))
	require.NoError(t, err)
	require.Equal(t, DESCRIBE, req.Method)
	require.Equal(t, "rtsp://192.0.1.100/cam", req.URL)
	require.Equal(t, RTSP_VERSION, req.Version)
	require.Equal(t, "2", req.Header[CSeq])
	require.Equal(t, DESCRIBE, ctx.method)
	require.Equal(t, "/cam", ctx.url.Path)
}

func TestReadRequestBadLine(t *testing.T) {
	ctx := NewContext()
	_, err := ReadRequest(ctx, bufio.NewReader(bytes.NewReader([]byte("garbage\r\n\r\n"))))
	require.Error(t, err)
	require.Equal(t, ErrProtocol, errors.Cause(err))
}

func TestReadRequestBadHeader(t *testing.T) {
	data := "OPTIONS * RTSP/1.0\r\nno colon here\r\n\r\n"
	ctx := NewContext()
	_, err := ReadRequest(ctx, bufio.NewReader(bytes.NewReader([]byte(data))))
	require.Error(t, err)
	require.Equal(t, ErrProtocol, errors.Cause(err))
}

func TestResponseRoundTrip(t *testing.T) {
	resp := GenerateResponse(200, "OK", map[string]string{CSeq: "7", SessionID: "42"}, "v=0\r\n")
	got, err := ReadResponse(bufio.NewReader(bytes.NewReader([]byte(resp.String()))))
	require.NoError(t, err)
	require.Equal(t, 200, got.StatusCode)
	require.Equal(t, RTSP_VERSION, got.Version)
	require.Equal(t, "7", got.Header[CSeq])
	require.Equal(t, "v=0\r\n", got.Body)
}
