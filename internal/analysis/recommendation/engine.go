package recommendation

import (
	"errors"
	"fmt"

	"github.com/skalibog/scalpsignal/internal/analysis/holdability"
	"github.com/skalibog/scalpsignal/pkg/models"
)

// Пороговые значения
const (
	OpenThreshold        = 7
	StrongCloseThreshold = 7
	HoldRiskThreshold    = 5
)

// TrendRelaxation на сколько пунктов снижается порог открытия,
// если дневной тренд BTC совпадает с направлением. Настраиваемая величина.
var TrendRelaxation = 1

const (
	fngExtremeGreed     = 75.0
	fngExtremeFear      = 25.0
	highConfidenceScore = 9
)

// Действия
const (
	ActionAwaitingData       = "awaiting data"
	ActionOpenLong           = "open long"
	ActionOpenShort          = "open short"
	ActionStandAside         = "stand aside"
	ActionCloseLongNow       = "close long immediately — risk signal"
	ActionCloseShortNow      = "close short immediately — risk signal"
	ActionConsiderCloseLong  = "consider closing long — high hold risk"
	ActionConsiderCloseShort = "consider closing short — high hold risk"
	ActionHoldLong           = "continue holding long / trail stop"
	ActionHoldShort          = "continue holding short / trail stop"
)

// Причины
const (
	ReasonAwaitingData   = "waiting for signal data..."
	ReasonBelowThreshold = "score below threshold or direction unclear"
	ReasonGreedCaution   = "caution: extreme greed, avoid chasing longs"
	ReasonFearCaution    = "caution: extreme fear, avoid chasing shorts"
	ReasonRiskAcceptable = "key risk indicators acceptable"
	ReasonManageStop     = "manage trailing take-profit or protective stop"
	RiskPrefix           = "risk: "
)

// ErrUnknownPosition неизвестный статус позиции
var ErrUnknownPosition = errors.New("неизвестный статус позиции")

// Opening оценки сигналов на открытие в обе стороны
type Opening struct {
	Long  models.OpeningSignal
	Short models.OpeningSignal
}

// Request входные данные движка рекомендаций. Holdability == nil: оценка недоступна.
type Request struct {
	Status      models.PositionStatus
	Opening     *Opening
	Holdability *models.HoldabilityResult
	Market      *models.MarketContext
}

// Recommend выбирает действие по статусу позиции, оценкам и рыночному контексту
func Recommend(req Request) (models.Recommendation, error) {
	if req.Opening == nil || req.Market == nil {
		return models.Recommendation{Action: ActionAwaitingData, Reasons: []string{ReasonAwaitingData}}, nil
	}

	switch req.Status {
	case models.StatusFlat:
		return flat(req.Opening, req.Market), nil
	case models.StatusLong:
		return holding(models.SideLong, req.Opening.Short, req.Holdability), nil
	case models.StatusShort:
		return holding(models.SideShort, req.Opening.Long, req.Holdability), nil
	default:
		return models.Recommendation{}, fmt.Errorf("%w: %q", ErrUnknownPosition, req.Status)
	}
}

func flat(o *Opening, m *models.MarketContext) models.Recommendation {
	longScore, shortScore := o.Long.Score, o.Short.Score

	openLong := longScore >= OpenThreshold && longScore > shortScore
	openShort := shortScore >= OpenThreshold && shortScore > longScore

	// дневной тренд BTC снижает порог
	if m.BtcDailyTrend == models.TrendUp && longScore >= OpenThreshold-TrendRelaxation {
		openLong = true
	}
	if m.BtcDailyTrend == models.TrendDown && shortScore >= OpenThreshold-TrendRelaxation {
		openShort = true
	}

	fng, hasFng := m.FngValue.Get()

	if openLong {
		reasons := metLabels(o.Long.Details)
		if hasFng && fng > fngExtremeGreed {
			reasons = append(reasons, ReasonGreedCaution)
		}
		return models.Recommendation{Action: ActionOpenLong, Reasons: reasons, Level: openLevel(longScore)}
	}
	if openShort {
		reasons := metLabels(o.Short.Details)
		if hasFng && fng < fngExtremeFear {
			reasons = append(reasons, ReasonFearCaution)
		}
		return models.Recommendation{Action: ActionOpenShort, Reasons: reasons, Level: openLevel(shortScore)}
	}

	reasons := []string{ReasonBelowThreshold}
	if m.BtcDailyTrend != "" {
		reasons = append(reasons, fmt.Sprintf("BTC daily trend: %s", m.BtcDailyTrend))
	}
	return models.Recommendation{Action: ActionStandAside, Reasons: reasons, Level: models.LevelLow}
}

// holding решение при открытой позиции side; counter: сигнал в противоположную сторону
func holding(side models.Side, counter models.OpeningSignal, hold *models.HoldabilityResult) models.Recommendation {
	closeNow, considerClose, keep := ActionCloseLongNow, ActionConsiderCloseLong, ActionHoldLong
	counterName := "short"
	if side == models.SideShort {
		closeNow, considerClose, keep = ActionCloseShortNow, ActionConsiderCloseShort, ActionHoldShort
		counterName = "long"
	}

	if counter.Score >= StrongCloseThreshold {
		reasons := []string{fmt.Sprintf("strong %s signal (score: %d)", counterName, counter.Score)}
		reasons = append(reasons, metLabels(counter.Details)...)
		return models.Recommendation{Action: closeNow, Reasons: reasons, Level: models.LevelHigh}
	}

	if hold != nil && hold.Score < HoldRiskThreshold {
		reasons := []string{}
		for _, d := range hold.Details {
			if !d.Met && d.Score > 0 {
				reasons = append(reasons, RiskPrefix+d.Condition)
			}
		}
		reasons = append(reasons, fmt.Sprintf("holdability score low (%d/%d)", hold.Score, holdability.MaxScore))
		return models.Recommendation{Action: considerClose, Reasons: reasons, Level: models.LevelMedium}
	}

	var reasons []string
	if hold != nil {
		reasons = append(reasons, fmt.Sprintf("holdability score: %d/%d", hold.Score, holdability.MaxScore), ReasonRiskAcceptable)
	} else {
		reasons = append(reasons, fmt.Sprintf("holdability score: N/A/%d", holdability.MaxScore))
	}
	reasons = append(reasons, ReasonManageStop)
	return models.Recommendation{Action: keep, Reasons: reasons, Level: models.LevelLow}
}

func metLabels(details []models.ScoreDetail) []string {
	labels := []string{}
	for _, d := range details {
		if d.Met {
			labels = append(labels, d.Condition)
		}
	}
	return labels
}

func openLevel(score int) models.Level {
	if score >= highConfidenceScore {
		return models.LevelHigh
	}
	return models.LevelMedium
}
