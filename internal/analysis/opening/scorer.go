package opening

import (
	"github.com/skalibog/scalpsignal/internal/analysis/technical"
	"github.com/skalibog/scalpsignal/pkg/models"
)

// MaxScore максимальная оценка сигнала на открытие
const MaxScore = 10

const (
	volumeSurgeFactor = 1.5
	stochOverbought   = 70.0
	stochOversold     = 30.0
)

// InsufficientData условие, возвращаемое при нехватке свечей
const InsufficientData = "insufficient data"

// Context внешние данные: тег тренда 15m и свечи эталонного инструмента
type Context struct {
	Trend15m  models.Trend
	Reference []models.Candle
}

// bar последняя и предыдущая свечи серии
type bar struct {
	latest technical.Annotated
	prev   technical.Annotated
}

// condition одно условие открытия
type condition struct {
	tag    string
	weight int
	label  func(dir models.Direction) string
	check  func(b bar, dir models.Direction, ctx Context) bool
}

// conditions фиксированный порядок условий
var conditions = []condition{
	{
		tag:    "ema_trend",
		weight: 2,
		label:  byDirection("EMA5 > EMA10", "EMA5 < EMA10"),
		check:  emaAligned,
	},
	{
		tag:    "bb_breakout",
		weight: 2,
		label:  byDirection("close > BB upper (breakout)", "close < BB lower (breakdown)"),
		check:  bollingerBreakout,
	},
	{
		tag:    "stoch_cross",
		weight: 2,
		label:  byDirection("Stoch K crosses above D (K < 70)", "Stoch K crosses below D (K > 30)"),
		check:  stochasticCross,
	},
	{
		tag:    "volume_surge",
		weight: 1,
		label:  byDirection("volume > 1.5x VMA20", "volume > 1.5x VMA20"),
		check:  volumeSurge,
	},
	{
		tag:    "vwap",
		weight: 1,
		label:  byDirection("close > VWAP", "close < VWAP"),
		check:  vwapConfirmed,
	},
	{
		tag:    "htf_trend",
		weight: 1,
		label:  byDirection("15m EMA trend up", "15m EMA trend down"),
		check:  higherTrendAligned,
	},
	{
		tag:    "btc_sync",
		weight: 1,
		label:  byDirection("BTC moves in sync (last bar)", "BTC moves in sync (last bar)"),
		check:  referenceInSync,
	},
}

// Score оценивает силу сигнала на открытие в направлении dir
func Score(series []technical.Annotated, dir models.Direction, ctx Context) models.OpeningSignal {
	result := models.OpeningSignal{
		Direction: dir,
		Reasons:   []string{},
		Types:     []string{},
	}

	if len(series) < 2 {
		result.Details = []models.ScoreDetail{{Condition: InsufficientData, Met: false, Score: 0}}
		return result
	}

	b := bar{latest: series[len(series)-1], prev: series[len(series)-2]}
	result.Details = make([]models.ScoreDetail, 0, len(conditions))

	for _, c := range conditions {
		label := c.label(dir)
		met := c.check(b, dir, ctx)
		result.Details = append(result.Details, models.ScoreDetail{Condition: label, Met: met, Score: c.weight})
		if met {
			result.Score += c.weight
			result.Reasons = append(result.Reasons, label)
			result.Types = append(result.Types, c.tag)
		}
	}

	return result
}

func byDirection(long, short string) func(models.Direction) string {
	return func(dir models.Direction) string {
		if dir == models.Short {
			return short
		}
		return long
	}
}

func emaAligned(b bar, dir models.Direction, _ Context) bool {
	fast, ok1 := b.latest.EMA5.Get()
	slow, ok2 := b.latest.EMA10.Get()
	if !ok1 || !ok2 {
		return false
	}
	if dir == models.Long {
		return fast > slow
	}
	return fast < slow
}

func bollingerBreakout(b bar, dir models.Direction, _ Context) bool {
	if dir == models.Long {
		upper, ok := b.latest.BBUpper.Get()
		return ok && b.latest.Close > upper
	}
	lower, ok := b.latest.BBLower.Get()
	return ok && b.latest.Close < lower
}

func stochasticCross(b bar, dir models.Direction, _ Context) bool {
	k, ok1 := b.latest.StochK.Get()
	d, ok2 := b.latest.StochD.Get()
	prevK, ok3 := b.prev.StochK.Get()
	prevD, ok4 := b.prev.StochD.Get()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}

	if dir == models.Long {
		return prevK <= prevD && k > d && k < stochOverbought
	}
	return prevK >= prevD && k < d && k > stochOversold
}

func volumeSurge(b bar, _ models.Direction, _ Context) bool {
	vma, ok := b.latest.VMA20.Get()
	return ok && b.latest.Volume > volumeSurgeFactor*vma
}

func vwapConfirmed(b bar, dir models.Direction, _ Context) bool {
	vwap, ok := b.latest.VWAP.Get()
	if !ok {
		return false
	}
	if dir == models.Long {
		return b.latest.Close > vwap
	}
	return b.latest.Close < vwap
}

func higherTrendAligned(_ bar, dir models.Direction, ctx Context) bool {
	if dir == models.Long {
		return ctx.Trend15m == models.TrendUp
	}
	return ctx.Trend15m == models.TrendDown
}

// referenceInSync эталон изменился в ту же сторону, что и основной инструмент (строго)
func referenceInSync(b bar, _ models.Direction, ctx Context) bool {
	if len(ctx.Reference) < 2 {
		return false
	}
	ref := ctx.Reference[len(ctx.Reference)-1].Close - ctx.Reference[len(ctx.Reference)-2].Close
	primary := b.latest.Close - b.prev.Close
	return (ref > 0 && primary > 0) || (ref < 0 && primary < 0)
}
