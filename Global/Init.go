package Global

import (
	"go.uber.org/zap/zapcore"

	"git.hub.com/wangyl/CameraStream/pkg/Logger"
	"git.hub.com/wangyl/CameraStream/pkg/Settings"
)

var ConfigPath string

func GlobalInit() (err error) {
	//init config
	if err = Settings.ReadConfig(ConfigPath); err != nil {
		return err
	}
	//init Logger
	var level zapcore.Level
	_ = level.Set(Settings.GetConfig().Logger.Level)
	if err = Logger.Init(
		Logger.SetDevelopment(Settings.GetConfig().Logger.Development),
		Logger.SetLevel(level),
		Logger.SetMaxAge(Settings.GetConfig().Logger.MaxAge),
		Logger.SetMaxBackups(Settings.GetConfig().Logger.MaxBackups),
		Logger.SetMaxSize(Settings.GetConfig().Logger.MaxSize),
	); err != nil {
		return err
	}
	return
}
