package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skalibog/scalpsignal/internal/analysis/holdability"
	"github.com/skalibog/scalpsignal/internal/analysis/opening"
	"github.com/skalibog/scalpsignal/internal/analysis/recommendation"
	"github.com/skalibog/scalpsignal/internal/analysis/technical"
	"github.com/skalibog/scalpsignal/internal/config"
	"github.com/skalibog/scalpsignal/internal/storage"
	"github.com/skalibog/scalpsignal/pkg/logger"
	"github.com/skalibog/scalpsignal/pkg/models"
)

// CandleProvider источник свечей
type CandleProvider interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// PositionProvider источник открытых позиций
type PositionProvider interface {
	GetPosition(ctx context.Context, symbol string) (*models.PositionInfo, error)
}

// MarketProvider источник рыночного контекста
type MarketProvider interface {
	Context(ctx context.Context) *models.MarketContext
}

// Analyzer объединяет все аналитические компоненты
type Analyzer struct {
	trading   config.TradingConfig
	candles   CandleProvider
	positions PositionProvider
	market    MarketProvider
	store     storage.SignalStore
	now       func() time.Time

	mu     sync.RWMutex
	latest map[string]models.SignalRecord
}

// NewAnalyzer создает новый анализатор. store может быть nil.
func NewAnalyzer(cfg config.TradingConfig, candles CandleProvider, positions PositionProvider, market MarketProvider, store storage.SignalStore) *Analyzer {
	return &Analyzer{
		trading:   cfg,
		candles:   candles,
		positions: positions,
		market:    market,
		store:     store,
		now:       time.Now,
		latest:    make(map[string]models.SignalRecord),
	}
}

// Symbols возвращает отслеживаемые символы
func (a *Analyzer) Symbols() []string {
	return a.trading.Symbols
}

// inputs данные, собранные для одного символа
type inputs struct {
	primary   []models.Candle
	higher    []models.Candle
	reference []models.Candle
	position  *models.PositionInfo
	market    *models.MarketContext
}

// ErrNoSignals ни по одному символу не удалось получить запись
var ErrNoSignals = errors.New("нет сигналов ни по одному символу")

// GenerateSignals генерирует сигналы для всех отслеживаемых символов.
// Ошибка возвращается при отмене ctx или если не удалось оценить ни один символ;
// частичные результаты при этом сохраняются.
func (a *Analyzer) GenerateSignals(ctx context.Context) (map[string]models.SignalRecord, error) {
	results := make(map[string]models.SignalRecord)
	var failures []error
	var wg sync.WaitGroup
	var mutex sync.Mutex

	for _, symbol := range a.trading.Symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()

			rec, primary, err := a.evaluate(ctx, sym)
			if err != nil {
				// Логируем ошибку, но продолжаем для других символов
				logger.Error("Ошибка генерации сигнала", zap.String("symbol", sym), zap.Error(err))
				mutex.Lock()
				failures = append(failures, err)
				mutex.Unlock()
				return
			}
			a.persist(ctx, &rec, primary)

			mutex.Lock()
			results[sym] = rec
			mutex.Unlock()
		}(symbol)
	}

	wg.Wait()

	a.mu.Lock()
	for sym, rec := range results {
		a.latest[sym] = rec
	}
	a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	if len(results) == 0 && len(failures) > 0 {
		return results, fmt.Errorf("%w: %w", ErrNoSignals, errors.Join(failures...))
	}
	return results, nil
}

// Latest возвращает копию последних записей по символам
func (a *Analyzer) Latest() map[string]models.SignalRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]models.SignalRecord, len(a.latest))
	for k, v := range a.latest {
		out[k] = v
	}
	return out
}

// GetSignalHistory возвращает историю сигналов для символа
func (a *Analyzer) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]models.SignalRecord, error) {
	if a.store == nil {
		return []models.SignalRecord{}, nil
	}
	return a.store.GetSignalHistory(ctx, symbol, limit)
}

// Evaluate рассчитывает рекомендацию для одного символа
func (a *Analyzer) Evaluate(ctx context.Context, symbol string) (models.SignalRecord, error) {
	rec, _, err := a.evaluate(ctx, symbol)
	return rec, err
}

func (a *Analyzer) evaluate(ctx context.Context, symbol string) (models.SignalRecord, []models.Candle, error) {
	in := a.fetch(ctx, symbol)

	series := technical.Annotate(in.primary)
	higher := technical.HigherTimeframe(in.higher)
	trend := technical.Trend15m(higher)

	octx := opening.Context{Trend15m: trend, Reference: in.reference}
	long := opening.Score(series, models.Long, octx)
	short := opening.Score(series, models.Short, octx)

	// без свечей основного инструмента оценок нет
	var summary *recommendation.Opening
	if len(series) >= 2 {
		summary = &recommendation.Opening{Long: long, Short: short}
	}

	var hold *models.HoldabilityResult
	if in.position != nil {
		r := holdability.Score(holdability.Input{
			Series:    series,
			Position:  in.position,
			Reference: in.reference,
			Higher:    higher,
		})
		if !insufficient(r.Details) {
			hold = &r
		}
	}

	status := models.StatusOf(in.position)
	rec, err := recommendation.Recommend(recommendation.Request{
		Status:      status,
		Opening:     summary,
		Holdability: hold,
		Market:      in.market,
	})
	if err != nil {
		return models.SignalRecord{}, nil, fmt.Errorf("ошибка рекомендации для %s: %w", symbol, err)
	}

	price := 0.0
	if n := len(in.primary); n > 0 {
		price = in.primary[n-1].Close
	}

	record := models.SignalRecord{
		ID:             uuid.NewString(),
		Symbol:         symbol,
		Timestamp:      a.now(),
		CurrentPrice:   price,
		PositionStatus: status,
		Position:       in.position,
		Long:           long,
		Short:          short,
		Holdability:    hold,
		Trend15m:       trend,
		Market:         in.market,
		Indicators:     technical.Tail(series, a.trading.IndicatorTail),
		Recommendation: rec,
	}

	logger.Debug("AGGREGATOR: рекомендация",
		zap.String("symbol", symbol),
		zap.String("action", rec.Action),
		zap.Int("long", long.Score),
		zap.Int("short", short.Score))

	return record, in.primary, nil
}

// fetch параллельно получает входные данные; ошибки источников превращаются в отсутствие данных
func (a *Analyzer) fetch(ctx context.Context, symbol string) inputs {
	var in inputs
	var g errgroup.Group

	g.Go(func() error {
		in.primary = a.klines(ctx, symbol, a.trading.Interval, a.trading.CandleLimit)
		return nil
	})
	g.Go(func() error {
		in.higher = a.klines(ctx, symbol, a.trading.HigherInterval, a.trading.HigherLimit)
		return nil
	})

	sameReference := symbol == a.trading.ReferenceSymbol
	if !sameReference {
		g.Go(func() error {
			in.reference = a.klines(ctx, a.trading.ReferenceSymbol, a.trading.Interval, a.trading.CandleLimit)
			return nil
		})
	}

	if a.positions != nil {
		g.Go(func() error {
			pos, err := a.positions.GetPosition(ctx, symbol)
			if err != nil {
				logger.Warn("Предупреждение: позиция недоступна", zap.String("symbol", symbol), zap.Error(err))
				return nil
			}
			in.position = pos
			return nil
		})
	}

	if a.market != nil {
		g.Go(func() error {
			in.market = a.market.Context(ctx)
			return nil
		})
	}

	_ = g.Wait()

	if sameReference {
		in.reference = in.primary
	}
	return in
}

func (a *Analyzer) klines(ctx context.Context, symbol, interval string, limit int) []models.Candle {
	candles, err := a.candles.GetKlines(ctx, symbol, interval, limit)
	if err != nil {
		logger.Warn("Предупреждение: свечи недоступны",
			zap.String("symbol", symbol),
			zap.String("interval", interval),
			zap.Error(err))
		return nil
	}
	return candles
}

// persist сохраняет запись и архивирует свечи, если хранилище это умеет
func (a *Analyzer) persist(ctx context.Context, rec *models.SignalRecord, primary []models.Candle) {
	if a.store == nil {
		return
	}
	if err := a.store.SaveSignal(ctx, rec); err != nil {
		logger.Warn("Предупреждение: не удалось сохранить сигнал", zap.String("symbol", rec.Symbol), zap.Error(err))
	}

	archive, ok := a.store.(storage.CandleArchive)
	if !ok || len(primary) == 0 {
		return
	}
	if err := archive.SaveCandles(ctx, rec.Symbol, a.trading.Interval, primary); err != nil {
		logger.Warn("Предупреждение: не удалось сохранить свечи", zap.String("symbol", rec.Symbol), zap.Error(err))
	}
}

func insufficient(details []models.ScoreDetail) bool {
	return len(details) == 1 && details[0].Condition == holdability.InsufficientData
}
