package market

import (
	"context"

	"github.com/skalibog/scalpsignal/internal/analysis/technical"
	"github.com/skalibog/scalpsignal/internal/config"
	"github.com/skalibog/scalpsignal/internal/sentiment"
	"github.com/skalibog/scalpsignal/pkg/logger"
	"github.com/skalibog/scalpsignal/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DailyEMAPeriod период дневной EMA эталонного инструмента
const DailyEMAPeriod = 50

const dailyInterval = "1d"

// KlineSource источник свечей
type KlineSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// SentimentSource источник индекса страха и жадности
type SentimentSource interface {
	Latest(ctx context.Context) (sentiment.Index, error)
}

// Provider собирает макро-контекст рынка
type Provider struct {
	klines    KlineSource
	sentiment SentimentSource
	symbol    string
	limit     int
	flatBand  float64
}

// NewProvider создает провайдер рыночного контекста
func NewProvider(klines KlineSource, sent SentimentSource, cfg config.MarketConfig) *Provider {
	return &Provider{
		klines:    klines,
		sentiment: sent,
		symbol:    cfg.DailySymbol,
		limit:     cfg.DailyLimit,
		flatBand:  cfg.FlatBand,
	}
}

// Context возвращает контекст рынка. Поле отсутствует, если его источник недоступен.
func (p *Provider) Context(ctx context.Context) *models.MarketContext {
	mc := &models.MarketContext{}

	var g errgroup.Group

	g.Go(func() error {
		idx, err := p.sentiment.Latest(ctx)
		if err != nil {
			logger.Warn("Индекс страха и жадности недоступен", zap.Error(err))
			return nil
		}
		mc.FngValue = models.Some(idx.Value)
		mc.FngClassification = idx.Classification
		return nil
	})

	var trend models.Trend
	var ema models.Float
	g.Go(func() error {
		candles, err := p.klines.GetKlines(ctx, p.symbol, dailyInterval, p.limit)
		if err != nil {
			logger.Warn("Дневные свечи недоступны", zap.String("symbol", p.symbol), zap.Error(err))
			return nil
		}
		trend, ema = DailyTrend(candles, p.flatBand)
		return nil
	})

	_ = g.Wait()
	mc.BtcDailyTrend = trend
	mc.BtcDailyEMA50 = ema

	return mc
}

// DailyTrend сравнивает последнее закрытие с EMA50 с учетом полосы band.
// Без достаточной истории тренд и EMA отсутствуют.
func DailyTrend(candles []models.Candle, band float64) (models.Trend, models.Float) {
	if len(candles) < DailyEMAPeriod {
		return "", models.None()
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	emas := technical.EMA(closes, DailyEMAPeriod)
	last := emas[len(emas)-1]
	ema, ok := last.Get()
	if !ok {
		return "", models.None()
	}

	price := closes[len(closes)-1]
	switch {
	case price > ema*(1+band):
		return models.TrendUp, last
	case price < ema*(1-band):
		return models.TrendDown, last
	default:
		return models.TrendFlat, last
	}
}
