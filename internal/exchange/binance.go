package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"github.com/skalibog/scalpsignal/internal/config"
	"github.com/skalibog/scalpsignal/pkg/logger"
	"github.com/skalibog/scalpsignal/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// BinanceClient клиент USDT-M фьючерсов Binance: свечи, сделки и позиции
type BinanceClient struct {
	futures    *futures.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    backoff.Backoff
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) *BinanceClient {
	if cfg.Testnet {
		futures.UseTestnet = true
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	return &BinanceClient{
		futures:    futures.NewClient(cfg.APIKey, cfg.APISecret),
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)*2),
		maxRetries: retries,
		backoff: backoff.Backoff{
			Min:    100 * time.Millisecond,
			Max:    2 * time.Second,
			Factor: 2,
		},
	}
}

// retry выполняет запрос с ограничением частоты и экспоненциальной задержкой
func (c *BinanceClient) retry(ctx context.Context, op string, fn func() error) error {
	b := c.backoff
	var err error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err = c.limiter.Wait(ctx); err != nil {
			return err
		}
		if err = fn(); err == nil {
			return nil
		}
		if attempt == c.maxRetries-1 {
			break
		}

		wait := b.Duration()
		logger.Debug("Повтор запроса к Binance",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return err
}

// GetKlines получает свечи в порядке от старых к новым
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	var klines []*futures.Kline
	err := c.retry(ctx, "klines", func() error {
		var err error
		klines, err = c.futures.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей %s %s: %w", symbol, interval, err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := toCandle(k)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора свечи %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// GetPosition возвращает открытую позицию по символу или nil, если позиции нет
func (c *BinanceClient) GetPosition(ctx context.Context, symbol string) (*models.PositionInfo, error) {
	var risks []*futures.PositionRisk
	err := c.retry(ctx, "position", func() error {
		var err error
		risks, err = c.futures.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения позиции %s: %w", symbol, err)
	}

	for _, r := range risks {
		pos, err := toPosition(r)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора позиции %s: %w", symbol, err)
		}
		if pos != nil {
			return pos, nil
		}
	}

	return nil, nil
}

// GetRecentTrades возвращает последние сделки по символу, от старых к новым
func (c *BinanceClient) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	var raw []*futures.Trade
	err := c.retry(ctx, "trades", func() error {
		var err error
		raw, err = c.futures.NewRecentTradesService().Symbol(symbol).Limit(limit).Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сделок %s: %w", symbol, err)
	}

	trades := make([]models.Trade, 0, len(raw))
	for _, t := range raw {
		trade, err := toTrade(t)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора сделки %s: %w", symbol, err)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

func toTrade(t *futures.Trade) (models.Trade, error) {
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return models.Trade{}, err
	}
	qty, err := decimal.NewFromString(t.Quantity)
	if err != nil {
		return models.Trade{}, err
	}
	return models.Trade{
		ID:         t.ID,
		Price:      price.InexactFloat64(),
		Quantity:   qty.InexactFloat64(),
		Time:       t.Time,
		BuyerMaker: t.IsBuyerMaker,
	}, nil
}

func toCandle(k *futures.Kline) (models.Candle, error) {
	values := make([]float64, 0, 5)
	for _, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return models.Candle{}, err
		}
		values = append(values, d.InexactFloat64())
	}

	return models.Candle{
		Timestamp: k.OpenTime,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

// toPosition nil при нулевом объеме; сторона по знаку объема
func toPosition(r *futures.PositionRisk) (*models.PositionInfo, error) {
	amount, err := decimal.NewFromString(r.PositionAmt)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, nil
	}

	entry, err := decimal.NewFromString(r.EntryPrice)
	if err != nil {
		return nil, err
	}

	side := models.SideLong
	if amount.IsNegative() {
		side = models.SideShort
	}

	pos := &models.PositionInfo{Side: side, EntryPrice: entry.InexactFloat64()}
	if r.LiquidationPrice != "" {
		liq, err := decimal.NewFromString(r.LiquidationPrice)
		if err != nil {
			return nil, err
		}
		if !liq.IsZero() {
			pos.LiquidationPrice = models.Some(liq.InexactFloat64())
		}
	}

	return pos, nil
}
