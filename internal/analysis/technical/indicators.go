package technical

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/scalpsignal/pkg/models"
)

// EMA экспоненциальная скользящая средняя с затравкой SMA на индексе period-1
func EMA(values []float64, period int) []models.Float {
	out := make([]models.Float, len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	ema := talib.Ema(values, period)
	for i := period - 1; i < len(values); i++ {
		out[i] = models.Some(ema[i])
	}
	return out
}

// SMA простая скользящая средняя
func SMA(values []float64, period int) []models.Float {
	out := make([]models.Float, len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sma := talib.Sma(values, period)
	for i := period - 1; i < len(values); i++ {
		out[i] = models.Some(sma[i])
	}
	return out
}

// bollinger полосы Боллинджера: SMA ± mult * стандартное отклонение (по генеральной совокупности).
// Отклонение считается в два прохода по окну: talib.StdDev теряет точность на малых и больших ценах.
func bollinger(closes []float64, period int, mult float64) (upper, middle, lower []models.Float) {
	n := len(closes)
	upper = make([]models.Float, n)
	middle = make([]models.Float, n)
	lower = make([]models.Float, n)
	if period <= 0 || n < period {
		return upper, middle, lower
	}

	sma := talib.Sma(closes, period)
	for i := period - 1; i < n; i++ {
		window := closes[i-period+1 : i+1]
		mean := sma[i]
		dev := windowStdDev(window, windowMean(window))
		upper[i] = models.Some(mean + mult*dev)
		middle[i] = models.Some(mean)
		lower[i] = models.Some(mean - mult*dev)
	}
	return upper, middle, lower
}

func windowMean(window []float64) float64 {
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}

// windowStdDev стандартное отклонение окна относительно mean
func windowStdDev(window []float64, mean float64) float64 {
	sq := 0.0
	for _, v := range window {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(window)))
}

// stochastic стохастик (8,3,3): raw %K, slow %K = SMA3(raw), %D = SMA3(slow)
func stochastic(candles []models.Candle) (slowK, d []models.Float) {
	n := len(candles)
	raw := make([]models.Float, n)

	prev := models.None()
	for i := StochKPeriod - 1; i < n; i++ {
		highest := candles[i].High
		lowest := candles[i].Low
		for j := i - StochKPeriod + 1; j < i; j++ {
			highest = math.Max(highest, candles[j].High)
			lowest = math.Min(lowest, candles[j].Low)
		}

		var value float64
		if highest == lowest {
			// нулевой диапазон: переносим предыдущее значение
			value = prev.Or(stochFlatDefault)
		} else {
			value = (candles[i].Close - lowest) / (highest - lowest) * 100
		}
		raw[i] = models.Some(value)
		prev = raw[i]
	}

	slowK = smaTail(raw, StochSlowing)
	d = smaTail(slowK, StochDPeriod)
	return slowK, d
}

// smaTail SMA по непрерывному хвосту определенных значений
func smaTail(series []models.Float, period int) []models.Float {
	out := make([]models.Float, len(series))

	start := -1
	for i, v := range series {
		if v.Valid() {
			start = i
			break
		}
	}
	if start < 0 {
		return out
	}

	values := make([]float64, len(series)-start)
	for i := range values {
		values[i], _ = series[start+i].Get()
	}
	copy(out[start:], SMA(values, period))
	return out
}

// cumulativeVWAP VWAP с накоплением от начала серии
func cumulativeVWAP(candles []models.Candle) []models.Float {
	out := make([]models.Float, len(candles))

	cumulativeTPV := 0.0
	cumulativeVol := 0.0
	for i, c := range candles {
		typicalPrice := (c.High + c.Low + c.Close) / 3.0
		cumulativeTPV += typicalPrice * c.Volume
		cumulativeVol += c.Volume

		if cumulativeVol != 0 {
			out[i] = models.Some(cumulativeTPV / cumulativeVol)
		}
	}
	return out
}

// trueRanges TR каждого бара; у первого бара TR = high - low
func trueRanges(candles []models.Candle) []float64 {
	trs := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			trs[i] = c.High - c.Low
			continue
		}
		prevClose := candles[i-1].Close
		trs[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	return trs
}

// wilderATR ATR со сглаживанием Уайлдера; затравка: среднее первых period значений TR
func wilderATR(candles []models.Candle, period int) []models.Float {
	out := make([]models.Float, len(candles))
	if len(candles) < period {
		return out
	}

	trs := trueRanges(candles)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += trs[i]
	}
	atr := sum / float64(period)
	out[period-1] = models.Some(atr)

	for i := period; i < len(candles); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
		out[i] = models.Some(atr)
	}
	return out
}
