package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/skalibog/scalpsignal/internal/config"
	"github.com/skalibog/scalpsignal/pkg/logger"
	"github.com/skalibog/scalpsignal/pkg/models"
	"go.uber.org/zap"
)

const (
	signalsMeasurement = "signals"
	candlesMeasurement = "candles"
	historyRange       = "-30d"
)

// InfluxDBStorage хранит записи сигналов и архив свечей в InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(ctx context.Context, cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	health, err := client.Health(hctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// SaveSignal сохраняет запись сигнала
func (s *InfluxDBStorage) SaveSignal(ctx context.Context, rec *models.SignalRecord) error {
	point, err := signalPoint(rec)
	if err != nil {
		return err
	}
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("ошибка записи сигнала: %w", err)
	}
	return nil
}

// SaveCandles архивирует свечи
func (s *InfluxDBStorage) SaveCandles(ctx context.Context, symbol, interval string, candles []models.Candle) error {
	points := make([]*write.Point, 0, len(candles))
	for _, c := range candles {
		points = append(points, candlePoint(symbol, interval, c))
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи свечей: %w", err)
	}
	return nil
}

// GetSignalHistory получает историю сигналов
func (s *InfluxDBStorage) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]models.SignalRecord, error) {
	result, err := s.queryAPI.Query(ctx, historyQuery(s.bucket, symbol, limit))
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории сигналов: %w", err)
	}
	defer result.Close()

	records := []models.SignalRecord{}
	for result.Next() {
		payload, _ := result.Record().Value().(string)
		var rec models.SignalRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			logger.Warn("Пропущена поврежденная запись сигнала", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	// Проверяем на ошибки при обработке результатов
	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return records, nil
}

func signalPoint(rec *models.SignalRecord) (*write.Point, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации сигнала: %w", err)
	}

	fields := map[string]interface{}{
		"long_score":  rec.Long.Score,
		"short_score": rec.Short.Score,
		"price":       rec.CurrentPrice,
		"level":       string(rec.Recommendation.Level),
		"payload":     string(payload),
	}
	if rec.Holdability != nil {
		fields["hold_score"] = rec.Holdability.Score
	}

	return influxdb2.NewPoint(
		signalsMeasurement,
		map[string]string{
			"symbol":   rec.Symbol,
			"action":   rec.Recommendation.Action,
			"position": string(rec.PositionStatus),
		},
		fields,
		rec.Timestamp,
	), nil
}

func candlePoint(symbol, interval string, c models.Candle) *write.Point {
	return influxdb2.NewPoint(
		candlesMeasurement,
		map[string]string{
			"symbol":   symbol,
			"interval": interval,
		},
		map[string]interface{}{
			"open":   c.Open,
			"high":   c.High,
			"low":    c.Low,
			"close":  c.Close,
			"volume": c.Volume,
		},
		c.Time(),
	)
}

// historyQuery Flux-запрос последних записей, новые первыми
func historyQuery(bucket, symbol string, limit int) string {
	return fmt.Sprintf(`
		from(bucket: %q)
			|> range(start: %s)
			|> filter(fn: (r) => r._measurement == %q)
			|> filter(fn: (r) => r.symbol == %q)
			|> filter(fn: (r) => r._field == "payload")
			|> group()
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, bucket, historyRange, signalsMeasurement, symbol, limit)
}
