package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/alecthomas/kingpin.v2"

	"git.hub.com/wangyl/CameraStream/Global"
	"git.hub.com/wangyl/CameraStream/app"
	"git.hub.com/wangyl/CameraStream/internal/Source"
	"git.hub.com/wangyl/CameraStream/pkg/Logger"
	"git.hub.com/wangyl/CameraStream/pkg/Settings"
)

var (
	h264Path string
	h264Fps  int
)

func main() {
	a := kingpin.New(filepath.Base(os.Args[0]), "rtsp camera streaming service")
	a.HelpFlag.Short('h')
	a.Flag("config", "config path").Short('c').StringVar(&Global.ConfigPath)
	a.Flag("h264", "annexb h264 file looped as the camera source").StringVar(&h264Path)
	a.Flag("fps", "frame rate for the file source").Default("25").IntVar(&h264Fps)
	if _, err := a.Parse(os.Args[1:]); err != nil {
		Logger.GetLogger().Error("init flag fail: " + err.Error())
		os.Exit(-1)
	}
	if err := Global.GlobalInit(); err != nil {
		Logger.GetLogger().Error("init global fail: " + err.Error())
		os.Exit(-1)
	}

	var service app.CameraService
	if err := service.Init(Settings.GetConfig().APP.RtspPort); err != nil {
		Logger.GetLogger().Error("init rtsp service fail: " + err.Error())
		os.Exit(-1)
	}
	go service.Accept()

	var source *Source.FileSource
	if h264Path != "" {
		source = Source.NewFileSource(h264Path, h264Fps, service.Server)
		if err := source.Start(); err != nil {
			Logger.GetLogger().Error("start file source fail: " + err.Error())
			os.Exit(-1)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	<-quit
	if source != nil {
		source.Stop()
	}
	service.Stop()
}
