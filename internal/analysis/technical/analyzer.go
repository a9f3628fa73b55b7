package technical

import (
	"github.com/skalibog/scalpsignal/pkg/models"
)

// Параметры индикаторов фиксированы
const (
	EMAFastPeriod = 5
	EMASlowPeriod = 10
	HTFEMAPeriod  = 15

	BBPeriod     = 20
	BBMultiplier = 2.0

	StochKPeriod = 8
	StochSlowing = 3
	StochDPeriod = 3

	VMAPeriod = 20
	ATRPeriod = 14

	// значение raw %K, если диапазон нулевой и предыдущего значения нет
	stochFlatDefault = 50.0
)

// Annotated свеча с рассчитанными индикаторами.
// Индикатор отсутствует, пока его окно не заполнено.
type Annotated struct {
	models.Candle

	EMA5  models.Float
	EMA10 models.Float

	BBUpper  models.Float
	BBMiddle models.Float
	BBLower  models.Float
	BBWidth  models.Float

	StochK models.Float
	StochD models.Float

	VMA20 models.Float
	VWAP  models.Float
	ATR14 models.Float
}

// HTFBar свеча старшего таймфрейма с EMA15
type HTFBar struct {
	models.Candle
	EMA15 models.Float
}

// Annotate рассчитывает индикаторы для серии свечей (от старых к новым).
// Результат той же длины и порядка; входные свечи не изменяются.
func Annotate(candles []models.Candle) []Annotated {
	n := len(candles)
	out := make([]Annotated, n)
	if n == 0 {
		return out
	}

	closes := closesOf(candles)
	volumes := make([]float64, n)
	for i, c := range candles {
		volumes[i] = c.Volume
	}

	ema5 := EMA(closes, EMAFastPeriod)
	ema10 := EMA(closes, EMASlowPeriod)
	upper, middle, lower := bollinger(closes, BBPeriod, BBMultiplier)
	stochK, stochD := stochastic(candles)
	vma := SMA(volumes, VMAPeriod)
	vwap := cumulativeVWAP(candles)
	atr := wilderATR(candles, ATRPeriod)

	for i, c := range candles {
		a := Annotated{
			Candle:   c,
			EMA5:     ema5[i],
			EMA10:    ema10[i],
			BBUpper:  upper[i],
			BBMiddle: middle[i],
			BBLower:  lower[i],
			StochK:   stochK[i],
			StochD:   stochD[i],
			VMA20:    vma[i],
			VWAP:     vwap[i],
			ATR14:    atr[i],
		}
		if u, ok := upper[i].Get(); ok {
			l, _ := lower[i].Get()
			a.BBWidth = models.Some(u - l)
		}
		out[i] = a
	}

	return out
}

// Candles возвращает исходные свечи аннотированной серии
func Candles(series []Annotated) []models.Candle {
	candles := make([]models.Candle, len(series))
	for i, a := range series {
		candles[i] = a.Candle
	}
	return candles
}

// Snapshot значения индикаторов бара
func (a Annotated) Snapshot() models.IndicatorSnapshot {
	return models.IndicatorSnapshot{
		Timestamp: a.Timestamp,
		Close:     a.Close,
		EMA5:      a.EMA5,
		EMA10:     a.EMA10,
		BBUpper:   a.BBUpper,
		BBMiddle:  a.BBMiddle,
		BBLower:   a.BBLower,
		StochK:    a.StochK,
		StochD:    a.StochD,
		VMA20:     a.VMA20,
		VWAP:      a.VWAP,
		ATR14:     a.ATR14,
	}
}

// Tail снимки последних n баров серии (все, если n больше длины)
func Tail(series []Annotated, n int) []models.IndicatorSnapshot {
	if n <= 0 {
		return nil
	}
	start := max(0, len(series)-n)
	out := make([]models.IndicatorSnapshot, 0, len(series)-start)
	for _, a := range series[start:] {
		out = append(out, a.Snapshot())
	}
	return out
}

// HigherTimeframe рассчитывает EMA15 для свечей старшего таймфрейма
func HigherTimeframe(candles []models.Candle) []HTFBar {
	ema := EMA(closesOf(candles), HTFEMAPeriod)
	bars := make([]HTFBar, len(candles))
	for i, c := range candles {
		bars[i] = HTFBar{Candle: c, EMA15: ema[i]}
	}
	return bars
}

// Trend15m определяет тег тренда по наклону EMA15 на последнем баре.
// Пустой тег, если два последних значения EMA15 не определены.
func Trend15m(bars []HTFBar) models.Trend {
	if len(bars) < 2 {
		return ""
	}
	last, ok1 := bars[len(bars)-1].EMA15.Get()
	prev, ok2 := bars[len(bars)-2].EMA15.Get()
	if !ok1 || !ok2 {
		return ""
	}

	switch {
	case last > prev:
		return models.TrendUp
	case last < prev:
		return models.TrendDown
	default:
		return models.TrendFlat
	}
}

func closesOf(candles []models.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
