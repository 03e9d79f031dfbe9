package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogOption struct {
	Format   string // "console" 或 "json"
	LogDir   string // 为空时只输出到 stderr
	Level    string // debug / info / warn / error
	Compress bool   // 是否压缩轮转后的旧日志
	Caller   bool   // 是否输出调用位置
}

const logFileName = "obcli.log"

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar = newLogger(LogOption{Format: "console"}, level).Sugar()
)

// Init 按配置重建全局 logger，应在 main 中最早调用
func Init(opt LogOption) error {
	lvl, err := parseLevel(opt.Level)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)

	if opt.LogDir != "" {
		if err := os.MkdirAll(opt.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log dir %s: %w", opt.LogDir, err)
		}
	}

	_ = sugar.Sync()
	sugar = newLogger(opt, level).Sugar()
	return nil
}

// SetLevel 运行时调整日志级别（-v 计数）
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

func Level() zapcore.Level {
	return level.Level()
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

func newLogger(opt LogOption, lvl zap.AtomicLevel) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(opt.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), lvl),
	}
	if opt.LogDir != "" {
		// 文件输出按大小轮转
		writer := &lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, logFileName),
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   opt.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(writer), lvl))
	}

	opts := []zap.Option{zap.AddCallerSkip(1)}
	if opt.Caller {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

func Debugf(template string, args ...interface{}) {
	sugar.Debugf(template, args...)
}

func Infof(template string, args ...interface{}) {
	sugar.Infof(template, args...)
}

func Warnf(template string, args ...interface{}) {
	sugar.Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	sugar.Errorf(template, args...)
}

func Sync() {
	_ = sugar.Sync()
}
