package Logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger         = new(Logger)
	opt            = new(Option)
	debugConsoleWS = zapcore.Lock(os.Stdout)
	errorConsoleWS = zapcore.Lock(os.Stderr)
)

type Logger struct {
	Opt       *Option
	inited    bool
	log       *zap.Logger
	zapConfig zap.Config
}

func GetLogger() *zap.Logger {
	if !logger.inited {
		Init(SetDevelopment(true))
	}
	return logger.log
}

func Init(opts ...ModOptions) (err error) {
	if logger.inited {
		return nil
	}
	for _, item := range opts {
		item(opt)
	}
	opt.fixup()
	logger.Opt = opt
	if opt.Development {
		logger.zapConfig = zap.NewDevelopmentConfig()
	} else {
		logger.zapConfig = zap.NewProductionConfig()
	}
	logger.zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	logger.zapConfig.EncoderConfig.EncodeTime = timeEncoder
	logger.zapConfig.DisableStacktrace = true
	logger.zapConfig.Level.SetLevel(opt.Level)
	logger.log, err = logger.zapConfig.Build(logger.cores())
	if err != nil {
		return err
	}
	logger.inited = true
	return nil
}

func (l *Logger) fileSyncer(name string) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(l.Opt.LogDir, fmt.Sprintf("%s-%s.log", l.Opt.FileName, name)),
		MaxSize:    l.Opt.MaxSize,
		MaxAge:     l.Opt.MaxAge,
		MaxBackups: l.Opt.MaxBackups,
		LocalTime:  true,
		Compress:   false,
	})
}

func (l *Logger) cores() zap.Option {
	fileEncoder := zapcore.NewJSONEncoder(l.zapConfig.EncoderConfig)
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = timeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	priority := func(want zapcore.Level) zap.LevelEnablerFunc {
		return func(lvl zapcore.Level) bool {
			return lvl == want && want >= l.zapConfig.Level.Level()
		}
	}
	var cores []zapcore.Core
	if l.Opt.Development {
		cores = append(cores,
			zapcore.NewCore(consoleEncoder, errorConsoleWS, priority(zapcore.ErrorLevel)),
			zapcore.NewCore(consoleEncoder, debugConsoleWS, priority(zapcore.WarnLevel)),
			zapcore.NewCore(consoleEncoder, debugConsoleWS, priority(zapcore.InfoLevel)),
			zapcore.NewCore(consoleEncoder, debugConsoleWS, priority(zapcore.DebugLevel)),
		)
	} else {
		cores = append(cores,
			zapcore.NewCore(fileEncoder, l.fileSyncer("error"), priority(zapcore.ErrorLevel)),
			zapcore.NewCore(fileEncoder, l.fileSyncer("warn"), priority(zapcore.WarnLevel)),
			zapcore.NewCore(fileEncoder, l.fileSyncer("info"), priority(zapcore.InfoLevel)),
			zapcore.NewCore(fileEncoder, l.fileSyncer("debug"), priority(zapcore.DebugLevel)),
		)
	}
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(cores...)
	})
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05"))
}
