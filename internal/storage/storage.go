package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/skalibog/scalpsignal/internal/config"
	"github.com/skalibog/scalpsignal/pkg/models"
)

// ErrUnknownType неизвестный тип хранилища
var ErrUnknownType = errors.New("неизвестный тип хранилища")

// SignalStore интерфейс хранилища истории сигналов
type SignalStore interface {
	SaveSignal(ctx context.Context, rec *models.SignalRecord) error
	// GetSignalHistory возвращает записи от новых к старым
	GetSignalHistory(ctx context.Context, symbol string, limit int) ([]models.SignalRecord, error)
	Close()
}

// CandleArchive хранилище, умеющее архивировать свечи
type CandleArchive interface {
	SaveCandles(ctx context.Context, symbol, interval string, candles []models.Candle) error
}

// New создает хранилище по типу из конфигурации
func New(ctx context.Context, cfg config.StorageConfig) (SignalStore, error) {
	switch cfg.Type {
	case "influxdb":
		return NewInfluxDBStorage(ctx, cfg)
	case "redis":
		return NewRedisHistory(ctx, cfg.Redis, cfg.MaxHistory)
	case "none", "":
		return NewMemoryStore(cfg.MaxHistory), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}
