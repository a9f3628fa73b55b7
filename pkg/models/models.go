package models

import (
	"time"
)

// Candle представляет свечу OHLCV. Timestamp: время открытия в миллисекундах.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Time возвращает время открытия свечи
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// Side сторона открытой позиции
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Direction направление сигнала на открытие
type Direction = Side

const (
	Long  = SideLong
	Short = SideShort
)

// Trend тег тренда. Пустое значение означает отсутствие данных.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// PositionStatus состояние позиции для движка рекомендаций
type PositionStatus string

const (
	StatusFlat  PositionStatus = "flat"
	StatusLong  PositionStatus = "long"
	StatusShort PositionStatus = "short"
)

// StatusOf возвращает статус по открытой позиции (nil: нет позиции)
func StatusOf(p *PositionInfo) PositionStatus {
	if p == nil {
		return StatusFlat
	}
	if p.Side == SideShort {
		return StatusShort
	}
	return StatusLong
}

// PositionInfo описывает открытую позицию
type PositionInfo struct {
	Side             Side    `json:"side"`
	EntryPrice       float64 `json:"entry_price"`
	LiquidationPrice Float   `json:"liquidation_price"`
}

// MarketContext макро-контекст рынка. Любое поле может отсутствовать.
type MarketContext struct {
	FngValue          Float  `json:"fng_value"`
	FngClassification string `json:"fng_classification,omitempty"`
	BtcDailyTrend     Trend  `json:"btc_daily_trend,omitempty"`
	BtcDailyEMA50     Float  `json:"btc_daily_ema50"`
}

// ScoreDetail одно условие оценки. Score: вес условия, засчитывается только при Met.
type ScoreDetail struct {
	Condition string `json:"condition"`
	Met       bool   `json:"met"`
	Score     int    `json:"score"`
}

// TotalScore суммирует веса выполненных условий
func TotalScore(details []ScoreDetail) int {
	total := 0
	for _, d := range details {
		if d.Met {
			total += d.Score
		}
	}
	return total
}

// OpeningSignal результат оценки сигнала на открытие
type OpeningSignal struct {
	Direction Direction     `json:"direction"`
	Score     int           `json:"score"`
	Details   []ScoreDetail `json:"details"`
	Reasons   []string      `json:"reasons"`
	Types     []string      `json:"types"`
}

// HoldabilityResult результат оценки удержания позиции
type HoldabilityResult struct {
	Score   int           `json:"score"`
	Details []ScoreDetail `json:"details"`
}

// Level уровень уверенности рекомендации
type Level string

const (
	LevelHigh   Level = "High"
	LevelMedium Level = "Medium"
	LevelLow    Level = "Low"
)

// Recommendation итоговая рекомендация
type Recommendation struct {
	Action  string   `json:"action"`
	Reasons []string `json:"reasons"`
	Level   Level    `json:"level,omitempty"`
}

// SignalRecord результат одного прогона конвейера по символу
type SignalRecord struct {
	ID             string              `json:"id"`
	Symbol         string              `json:"symbol"`
	Timestamp      time.Time           `json:"timestamp"`
	CurrentPrice   float64             `json:"current_price"`
	PositionStatus PositionStatus      `json:"position_status"`
	Position       *PositionInfo       `json:"position,omitempty"`
	Long           OpeningSignal       `json:"long"`
	Short          OpeningSignal       `json:"short"`
	Holdability    *HoldabilityResult  `json:"holdability,omitempty"`
	Trend15m       Trend               `json:"ema15m_trend,omitempty"`
	Market         *MarketContext      `json:"market_context,omitempty"`
	Indicators     []IndicatorSnapshot `json:"indicators,omitempty"`
	Recommendation Recommendation      `json:"recommendation"`
}

// LatestIndicators последний снимок индикаторов записи или nil
func (r SignalRecord) LatestIndicators() *IndicatorSnapshot {
	if len(r.Indicators) == 0 {
		return nil
	}
	last := r.Indicators[len(r.Indicators)-1]
	return &last
}

// IndicatorSnapshot значения индикаторов на одном баре
type IndicatorSnapshot struct {
	Timestamp int64   `json:"timestamp"`
	Close     float64 `json:"close"`
	EMA5      Float   `json:"ema5"`
	EMA10     Float   `json:"ema10"`
	BBUpper   Float   `json:"bb_upper"`
	BBMiddle  Float   `json:"bb_middle"`
	BBLower   Float   `json:"bb_lower"`
	StochK    Float   `json:"stoch_k"`
	StochD    Float   `json:"stoch_d"`
	VMA20     Float   `json:"vma20"`
	VWAP      Float   `json:"vwap"`
	ATR14     Float   `json:"atr14"`
}

// Trade сделка на фьючерсном рынке
type Trade struct {
	ID         int64   `json:"id"`
	Price      float64 `json:"price"`
	Quantity   float64 `json:"qty"`
	Time       int64   `json:"time"`
	BuyerMaker bool    `json:"is_buyer_maker"`
}
