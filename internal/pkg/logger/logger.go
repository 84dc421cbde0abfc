package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOption 日志初始化选项
type LogOption struct {
	Format   string // "console"（开发调试）或 "json"（结构化，推荐生产使用）
	LogDir   string // 日志文件目录，为空表示只输出到 stdout
	Level    string // debug / info / warn / error
	Compress bool   // 是否压缩旧日志文件
}

var (
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

func init() {
	// 未显式初始化前提供一个可用的默认 logger，避免 nil 解引用
	log, _ = zap.NewDevelopment(zap.AddCallerSkip(1))
	sugar = log.Sugar()
}

// InitLogger 按配置初始化全局 zap 日志
func InitLogger(opt LogOption) {
	level := parseLevel(opt.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(opt.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
	}

	// 配置了日志目录则追加滚动文件输出
	if opt.LogDir != "" {
		_ = os.MkdirAll(opt.LogDir, 0o755)
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, "jester-feed.log"),
			MaxSize:    256, // 单文件最大 MB
			MaxBackups: 10,
			MaxAge:     7, // 保留天数
			Compress:   opt.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(fileWriter), level))
	}

	log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	sugar = log.Sugar()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sync 刷新缓冲日志，进程退出前调用
func Sync() {
	_ = log.Sync()
}

func Debug(args ...interface{}) { sugar.Debug(args...) }
func Info(args ...interface{})  { sugar.Info(args...) }
func Warn(args ...interface{})  { sugar.Warn(args...) }
func Error(args ...interface{}) { sugar.Error(args...) }

func Debugf(format string, args ...interface{}) { sugar.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { sugar.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { sugar.Errorf(format, args...) }

// ZapWriter 将 go-zero logx 的输出桥接到 zap
type ZapWriter struct{}

var _ logx.Writer = ZapWriter{}

func (ZapWriter) Alert(v interface{})  { sugar.Warnf("%v", v) }
func (ZapWriter) Close() error         { return log.Sync() }
func (ZapWriter) Severe(v interface{}) { sugar.Errorf("%v", v) }
func (ZapWriter) Stack(v interface{})  { sugar.Errorf("%v", v) }

func (ZapWriter) Debug(v interface{}, fields ...logx.LogField) {
	sugar.Debugf("%v%s", v, formatFields(fields))
}

func (ZapWriter) Info(v interface{}, fields ...logx.LogField) {
	sugar.Infof("%v%s", v, formatFields(fields))
}

func (ZapWriter) Error(v interface{}, fields ...logx.LogField) {
	sugar.Errorf("%v%s", v, formatFields(fields))
}

func (ZapWriter) Slow(v interface{}, fields ...logx.LogField) {
	sugar.Warnf("%v%s", v, formatFields(fields))
}

func (ZapWriter) Stat(v interface{}, fields ...logx.LogField) {
	sugar.Debugf("%v%s", v, formatFields(fields))
}

func formatFields(fields []logx.LogField) string {
	if len(fields) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, f := range fields {
		sb.WriteString(fmt.Sprintf(" %s=%v", f.Key, f.Value))
	}
	return sb.String()
}
