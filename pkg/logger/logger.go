package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Глобальный экземпляр логгера. До Init используется no-op логгер.
var (
	globalLogger = zap.NewNop()
	mu           sync.RWMutex
)

// Options параметры файлового логгера
type Options struct {
	Level    string
	File     string
	JSONFile string
	Truncate bool // очищать JSON-лог при запуске
}

// TimeLayout формат времени в логах, его же разбирает UI
const TimeLayout = "02.01.2006 - 15:04:05.000000000Z07:00"

// Init инициализирует глобальный логгер
func Init(opts Options) error {
	l, err := newLogger(opts)
	if err != nil {
		return err
	}

	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return nil
}

// SetLogger подменяет глобальный логгер
func SetLogger(l *zap.Logger) {
	mu.Lock()
	globalLogger = l
	mu.Unlock()
}

// GetLogger возвращает глобальный экземпляр логгера
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Вспомогательные функции для удобства использования
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// newLogger создает логгер: читаемый файл + JSON файл
func newLogger(opts Options) (*zap.Logger, error) {
	level := zapcore.DebugLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("неизвестный уровень логирования %q: %w", opts.Level, err)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(TimeLayout)
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	readableFileEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	jsonFileEncoder := zapcore.NewJSONEncoder(encoderConfig)

	readableFile, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла логов: %w", err)
	}

	jsonFlags := os.O_APPEND | os.O_CREATE | os.O_WRONLY
	if opts.Truncate {
		jsonFlags |= os.O_TRUNC
	}
	jsonFile, err := os.OpenFile(opts.JSONFile, jsonFlags, 0644)
	if err != nil {
		readableFile.Close()
		return nil, fmt.Errorf("ошибка открытия JSON-файла логов: %w", err)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(readableFileEncoder, zapcore.AddSync(readableFile), level),
		zapcore.NewCore(jsonFileEncoder, zapcore.AddSync(jsonFile), level),
	)

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}
