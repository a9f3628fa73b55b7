package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/skalibog/scalpsignal/internal/config"
	"github.com/skalibog/scalpsignal/pkg/logger"
	"github.com/skalibog/scalpsignal/pkg/models"
	"go.uber.org/zap"
)

// DefaultKeyPrefix префикс ключей истории сигналов
const DefaultKeyPrefix = "signal_history:"

// RedisHistory история сигналов в отсортированных множествах Redis.
// Оценка элемента: время записи в миллисекундах.
type RedisHistory struct {
	client     *redis.Client
	prefix     string
	maxHistory int
}

// NewRedisHistory подключается к Redis
func NewRedisHistory(ctx context.Context, cfg config.RedisConfig, maxHistory int) (*RedisHistory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis %s: %w", cfg.Addr, err)
	}

	return newRedisHistory(client, cfg, maxHistory), nil
}

func newRedisHistory(client *redis.Client, cfg config.RedisConfig, maxHistory int) *RedisHistory {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisHistory{client: client, prefix: prefix, maxHistory: maxHistory}
}

func (h *RedisHistory) key(symbol string) string {
	return h.prefix + symbol
}

// SaveSignal добавляет запись и обрезает историю до maxHistory
func (h *RedisHistory) SaveSignal(ctx context.Context, rec *models.SignalRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сигнала: %w", err)
	}

	key := h.key(rec.Symbol)
	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, &redis.Z{
			Score:  float64(rec.Timestamp.UnixMilli()),
			Member: data,
		})
		if h.maxHistory > 0 {
			pipe.ZRemRangeByRank(ctx, key, 0, -int64(h.maxHistory)-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка добавления в историю: %w", err)
	}
	return nil
}

// GetSignalHistory читает последние limit записей
func (h *RedisHistory) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]models.SignalRecord, error) {
	members, err := h.client.ZRevRange(ctx, h.key(symbol), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения истории: %w", err)
	}
	return decodeMembers(symbol, members), nil
}

// Close закрывает соединение
func (h *RedisHistory) Close() {
	if err := h.client.Close(); err != nil {
		logger.Warn("Ошибка закрытия Redis", zap.Error(err))
	}
}

// decodeMembers пропускает элементы, которые не удалось разобрать
func decodeMembers(symbol string, members []string) []models.SignalRecord {
	records := make([]models.SignalRecord, 0, len(members))
	for _, m := range members {
		var rec models.SignalRecord
		if err := json.Unmarshal([]byte(m), &rec); err != nil {
			logger.Warn("Пропущена поврежденная запись истории", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records
}
