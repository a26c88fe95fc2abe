package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel разбирает уровень из конфигурации ("debug", "info", ...).
// Неизвестные значения дают INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Config описывает параметры логгера.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" или "console"
}

// Logger - логгер компонента поверх zap.
// Передаётся явно в компоненты, которым нужен логгер.
type Logger struct {
	component string
	sugar     *zap.SugaredLogger
	level     zap.AtomicLevel
}

// New создаёт корневой логгер по конфигурации.
func New(cfg Config) (*Logger, error) {
	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level).zapLevel())

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = level

	base, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("ошибка создания zap логгера: %w", err)
	}

	return &Logger{sugar: base.Sugar(), level: level}, nil
}

// FromZap оборачивает существующий zap логгер.
func FromZap(l *zap.Logger) *Logger {
	return &Logger{sugar: l.Sugar(), level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

// Nop возвращает логгер, который ничего не пишет.
func Nop() *Logger {
	return FromZap(zap.NewNop())
}

// Named возвращает дочерний логгер для компонента.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		component: component,
		sugar:     l.sugar.Named(component),
		level:     l.level,
	}
}

// With возвращает логгер с дополнительными полями ("key", value, ...).
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		component: l.component,
		sugar:     l.sugar.With(keysAndValues...),
		level:     l.level,
	}
}

// Component возвращает имя компонента логгера.
func (l *Logger) Component() string {
	return l.component
}

// SetLevel меняет минимальный уровень. Уровень общий для всех дочерних логгеров.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Zap возвращает нижележащий zap логгер.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Sync сбрасывает буферы.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = Nop()
)

// InitDefaultLogger создаёт глобальный логгер процесса.
func InitDefaultLogger(cfg Config) (*Logger, error) {
	logger, err := New(cfg)
	if err != nil {
		return nil, err
	}
	SetDefault(logger)
	return logger, nil
}

// SetDefault заменяет глобальный логгер.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default возвращает глобальный логгер.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// CloseDefaultLogger сбрасывает буферы глобального логгера.
func CloseDefaultLogger() {
	_ = Default().Sync()
}

func Debug(format string, args ...interface{}) { Default().Debug(format, args...) }
func Info(format string, args ...interface{})  { Default().Info(format, args...) }
func Warn(format string, args ...interface{})  { Default().Warn(format, args...) }
func Error(format string, args ...interface{}) { Default().Error(format, args...) }
