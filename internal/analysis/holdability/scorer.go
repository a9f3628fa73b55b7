package holdability

import (
	"math"

	"github.com/skalibog/scalpsignal/internal/analysis/technical"
	"github.com/skalibog/scalpsignal/pkg/models"
)

// MaxScore максимальная оценка удержания позиции
const MaxScore = 9

// InsufficientData условие, возвращаемое без позиции или при нехватке данных
const InsufficientData = "position or data insufficient"

const (
	adverseBodyATR      = 1.0
	adverseVolumeFactor = 1.5
	atrMAPeriod         = 20
	entryATROffset      = 0.5
)

// minLiquidationDistance минимальная дистанция до цены ликвидации в единицах цены
const minLiquidationDistance = 300.0

// Метки условий в фиксированном порядке
const (
	LabelStructure   = "structure intact (vs 15m EMA)"
	LabelNoAdverse   = "no high-volume adverse bar"
	LabelRanging     = "ranging regime (ATR < ATR MA20)"
	LabelEntry       = "entry near support/resistance (BBands ± 0.5*ATR)"
	LabelLiquidation = "liquidation distance safe (≥ $300)"
	LabelBTCSync     = "price and BTC move in the same direction (last bar)"
)

// Input данные для оценки удержания
type Input struct {
	Series    []technical.Annotated // основной инструмент, младший таймфрейм
	Position  *models.PositionInfo  // nil, если позиции нет
	Reference []models.Candle       // эталонный инструмент
	Higher    []technical.HTFBar    // старший таймфрейм с EMA15
}

// Score оценивает, насколько безопасно продолжать удерживать позицию
func Score(in Input) models.HoldabilityResult {
	if in.Position == nil || len(in.Series) < 2 || len(in.Reference) < 2 || len(in.Higher) < 2 {
		return models.HoldabilityResult{
			Details: []models.ScoreDetail{{Condition: InsufficientData, Met: false, Score: 0}},
		}
	}

	latest := in.Series[len(in.Series)-1]
	prev := in.Series[len(in.Series)-2]
	side := in.Position.Side

	details := []models.ScoreDetail{
		{Condition: LabelStructure, Met: structureIntact(latest, in.Higher[len(in.Higher)-1], side), Score: 2},
		{Condition: LabelNoAdverse, Met: !adverseBar(latest, side), Score: 2},
		{Condition: LabelRanging, Met: ranging(in.Series), Score: 1},
		{Condition: LabelEntry, Met: entryFavorable(latest, in.Position), Score: 2},
		{Condition: LabelLiquidation, Met: liquidationSafe(latest, in.Position), Score: 1},
		{Condition: LabelBTCSync, Met: inSync(latest, prev, in.Reference), Score: 1},
	}

	return models.HoldabilityResult{Score: models.TotalScore(details), Details: details}
}

func structureIntact(latest technical.Annotated, htf technical.HTFBar, side models.Side) bool {
	ema, ok := htf.EMA15.Get()
	if !ok {
		return false
	}
	if side == models.SideLong {
		return latest.Close > ema
	}
	return latest.Close < ema
}

// adverseBar последний бар закрылся против позиции с большим телом и объемом.
// Отсутствующий VMA20 считается бесконечным, поэтому проверка объема не срабатывает.
// Без ATR14 проверка тела не срабатывает.
func adverseBar(latest technical.Annotated, side models.Side) bool {
	barSide := models.SideShort
	if latest.Close > latest.Open {
		barSide = models.SideLong
	}
	if barSide == side {
		return false
	}

	atr, ok := latest.ATR14.Get()
	if !ok {
		return false
	}
	vma := latest.VMA20.Or(math.Inf(1))

	body := math.Abs(latest.Close - latest.Open)
	return body > adverseBodyATR*atr && latest.Volume > adverseVolumeFactor*vma
}

// ranging текущий ATR ниже среднего за последние 20 значений ATR
func ranging(series []technical.Annotated) bool {
	current, ok := series[len(series)-1].ATR14.Get()
	if !ok {
		return false
	}

	start := len(series) - atrMAPeriod
	if start < 0 {
		start = 0
	}
	values := make([]float64, 0, atrMAPeriod)
	for _, a := range series[start:] {
		if v, ok := a.ATR14.Get(); ok {
			values = append(values, v)
		}
	}
	if len(values) < atrMAPeriod {
		return false
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return current < sum/float64(atrMAPeriod)
}

func entryFavorable(latest technical.Annotated, pos *models.PositionInfo) bool {
	atr, ok := latest.ATR14.Get()
	if !ok {
		return false
	}
	offset := entryATROffset * atr

	if pos.Side == models.SideLong {
		lower, ok := latest.BBLower.Get()
		return ok && pos.EntryPrice < lower+offset
	}
	upper, ok := latest.BBUpper.Get()
	return ok && pos.EntryPrice > upper-offset
}

func liquidationSafe(latest technical.Annotated, pos *models.PositionInfo) bool {
	liq, ok := pos.LiquidationPrice.Get()
	if !ok {
		return false
	}
	return math.Abs(latest.Close-liq) >= minLiquidationDistance
}

// inSync направление последнего бара (close к close) совпадает у обоих инструментов
func inSync(latest, prev technical.Annotated, reference []models.Candle) bool {
	primaryUp := latest.Close > prev.Close
	refUp := reference[len(reference)-1].Close > reference[len(reference)-2].Close
	return primaryUp == refUp
}
