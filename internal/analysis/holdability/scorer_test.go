package holdability

import (
	"testing"

	"github.com/skalibog/scalpsignal/internal/analysis/technical"
	"github.com/skalibog/scalpsignal/pkg/models"
)

// longFixture входные данные, при которых выполнены все условия для лонга
func longFixture() Input {
	series := make([]technical.Annotated, 25)
	for i := range series {
		series[i] = technical.Annotated{
			Candle: models.Candle{Open: 3080, High: 3095, Low: 3075, Close: 3090, Volume: 100},
			ATR14:  models.Some(3),
		}
	}
	series[24] = technical.Annotated{
		Candle:  models.Candle{Open: 3090, High: 3102, Low: 3088, Close: 3100, Volume: 150},
		ATR14:   models.Some(2),
		VMA20:   models.Some(200),
		BBUpper: models.Some(3110),
		BBLower: models.Some(2999.5),
	}

	return Input{
		Series: series,
		Position: &models.PositionInfo{
			Side:             models.SideLong,
			EntryPrice:       3000,
			LiquidationPrice: models.Some(2500),
		},
		Reference: []models.Candle{{Close: 60000}, {Close: 60100}},
		Higher: []technical.HTFBar{
			{EMA15: models.Some(3040)},
			{EMA15: models.Some(3050)},
		},
	}
}

func detail(t *testing.T, r models.HoldabilityResult, label string) models.ScoreDetail {
	t.Helper()
	for _, d := range r.Details {
		if d.Condition == label {
			return d
		}
	}
	t.Fatalf("detail %q not found in %+v", label, r.Details)
	return models.ScoreDetail{}
}

func TestScoreInsufficient(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{"no position", func(in *Input) { in.Position = nil }},
		{"short series", func(in *Input) { in.Series = in.Series[:1] }},
		{"short reference", func(in *Input) { in.Reference = in.Reference[:1] }},
		{"short higher timeframe", func(in *Input) { in.Higher = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := longFixture()
			tt.mutate(&in)
			r := Score(in)
			if r.Score != 0 || len(r.Details) != 1 || r.Details[0].Condition != InsufficientData {
				t.Errorf("unexpected result %+v", r)
			}
		})
	}
}

func TestScoreAllMetLong(t *testing.T) {
	r := Score(longFixture())
	if r.Score != MaxScore {
		t.Fatalf("score = %d, want %d; details %+v", r.Score, MaxScore, r.Details)
	}

	want := []string{LabelStructure, LabelNoAdverse, LabelRanging, LabelEntry, LabelLiquidation, LabelBTCSync}
	if len(r.Details) != len(want) {
		t.Fatalf("details = %d, want %d", len(r.Details), len(want))
	}
	for i, label := range want {
		if r.Details[i].Condition != label {
			t.Errorf("detail %d = %q, want %q", i, r.Details[i].Condition, label)
		}
	}
}

func TestScoreShortMirror(t *testing.T) {
	in := longFixture()
	in.Position = &models.PositionInfo{Side: models.SideShort, EntryPrice: 3109.5, LiquidationPrice: models.Some(3500)}
	in.Higher[1].EMA15 = models.Some(3150)
	// медвежий бар с небольшим телом не считается опасным для шорта
	in.Series[24].Open = 3101
	in.Series[24].Close = 3100
	in.Series[23].Close = 3110
	in.Reference = []models.Candle{{Close: 60100}, {Close: 60000}}

	r := Score(in)
	if r.Score != MaxScore {
		t.Errorf("score = %d, want %d; details %+v", r.Score, MaxScore, r.Details)
	}
}

func TestAdverseBar(t *testing.T) {
	bearish := func(in *Input) {
		in.Series[24].Open = 3106
		in.Series[24].Close = 3100
		in.Series[24].Volume = 500
	}

	tests := []struct {
		name   string
		mutate func(in *Input)
		met    bool
	}{
		{"bullish bar for long", func(in *Input) {}, true},
		{"large bearish bar on volume", bearish, false},
		{"missing VMA20 cannot flag", func(in *Input) { bearish(in); in.Series[24].VMA20 = models.None() }, true},
		{"missing ATR14 cannot flag", func(in *Input) { bearish(in); in.Series[24].ATR14 = models.None() }, true},
		{"small body", func(in *Input) { bearish(in); in.Series[24].Open = 3101 }, true},
		{"low volume", func(in *Input) { bearish(in); in.Series[24].Volume = 300 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := longFixture()
			tt.mutate(&in)
			r := Score(in)
			if got := detail(t, r, LabelNoAdverse).Met; got != tt.met {
				t.Errorf("no-adverse met = %v, want %v", got, tt.met)
			}
			if models.TotalScore(r.Details) != r.Score {
				t.Error("score does not match details")
			}
		})
	}
}

func TestRangingNeedsFullWindow(t *testing.T) {
	in := longFixture()
	in.Series[10].ATR14 = models.None()
	if detail(t, Score(in), LabelRanging).Met {
		t.Error("ranging should be unmet with an absent ATR in the 20-bar window")
	}

	in = longFixture()
	in.Series = in.Series[10:]
	if detail(t, Score(in), LabelRanging).Met {
		t.Error("ranging should be unmet with fewer than 20 ATR values")
	}

	in = longFixture()
	in.Series[24].ATR14 = models.Some(4)
	if detail(t, Score(in), LabelRanging).Met {
		t.Error("ranging should be unmet when ATR is above its mean")
	}
}

func TestLiquidationDistance(t *testing.T) {
	tests := []struct {
		name string
		liq  models.Float
		met  bool
	}{
		{"far", models.Some(2500), true},
		{"exactly 300", models.Some(2800), true},
		{"close", models.Some(2900), false},
		{"absent", models.None(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := longFixture()
			in.Position.LiquidationPrice = tt.liq
			if got := detail(t, Score(in), LabelLiquidation).Met; got != tt.met {
				t.Errorf("liquidation met = %v, want %v", got, tt.met)
			}
		})
	}
}

func TestEntryAndStructureNeedIndicators(t *testing.T) {
	in := longFixture()
	in.Series[24].BBLower = models.None()
	in.Higher[1].EMA15 = models.None()

	r := Score(in)
	if detail(t, r, LabelEntry).Met {
		t.Error("entry location should be unmet without BB_Lower")
	}
	if detail(t, r, LabelStructure).Met {
		t.Error("structure should be unmet without EMA15")
	}
	if r.Score != MaxScore-4 {
		t.Errorf("score = %d, want %d", r.Score, MaxScore-4)
	}
}

func TestBTCSyncUsesCloseOverClose(t *testing.T) {
	in := longFixture()
	in.Reference = []models.Candle{{Close: 60100}, {Close: 60000}}
	if detail(t, Score(in), LabelBTCSync).Met {
		t.Error("opposite moves should not be in sync")
	}

	// оба без изменения трактуются как "не вверх"
	in = longFixture()
	in.Series[23].Close = 3100
	in.Reference = []models.Candle{{Close: 60000}, {Close: 60000}}
	if !detail(t, Score(in), LabelBTCSync).Met {
		t.Error("two unchanged closes should match")
	}
}
