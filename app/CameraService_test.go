package app

import (
	"bufio"
	"net"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"git.hub.com/wangyl/CameraStream/pkg/Settings"
)

func TestMain(m *testing.M) {
	if err := Settings.ReadConfig(""); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestServiceAcceptsOptions(t *testing.T) {
	var service CameraService
	require.NoError(t, service.Init(0)) // ephemeral port
	defer service.Stop()
	go service.Accept()

	port := service.listener.Addr().(*net.TCPAddr).Port
	conn, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("OPTIONS rtsp://127.0.0.1/cam RTSP/1.0\r\nCSeq: 1\r\n\r\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "RTSP/1.0 200 OK")
}
