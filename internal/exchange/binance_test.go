package exchange

import (
	"testing"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/skalibog/scalpsignal/pkg/models"
)

func TestToCandle(t *testing.T) {
	c, err := toCandle(&futures.Kline{
		OpenTime: 1700000000000,
		Open:     "3000.10",
		High:     "3010.5",
		Low:      "2995",
		Close:    "3005.25",
		Volume:   "1234.567",
	})
	if err != nil {
		t.Fatalf("toCandle() error = %v", err)
	}

	want := models.Candle{Timestamp: 1700000000000, Open: 3000.1, High: 3010.5, Low: 2995, Close: 3005.25, Volume: 1234.567}
	if c != want {
		t.Errorf("toCandle() = %+v, want %+v", c, want)
	}

	if _, err := toCandle(&futures.Kline{Open: "x"}); err == nil {
		t.Error("expected error for malformed price")
	}
}

func TestToPosition(t *testing.T) {
	tests := []struct {
		name string
		risk futures.PositionRisk
		want *models.PositionInfo
	}{
		{
			name: "flat",
			risk: futures.PositionRisk{PositionAmt: "0.000", EntryPrice: "0.0", LiquidationPrice: "0"},
			want: nil,
		},
		{
			name: "long",
			risk: futures.PositionRisk{PositionAmt: "0.5", EntryPrice: "3000", LiquidationPrice: "2500"},
			want: &models.PositionInfo{Side: models.SideLong, EntryPrice: 3000, LiquidationPrice: models.Some(2500)},
		},
		{
			name: "short without liquidation",
			risk: futures.PositionRisk{PositionAmt: "-1", EntryPrice: "3100.5", LiquidationPrice: "0"},
			want: &models.PositionInfo{Side: models.SideShort, EntryPrice: 3100.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			risk := tt.risk
			got, err := toPosition(&risk)
			if err != nil {
				t.Fatalf("toPosition() error = %v", err)
			}
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("toPosition() = %+v, want %+v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("toPosition() = %+v, want %+v", *got, *tt.want)
			}
		})
	}
}

func TestToTrade(t *testing.T) {
	trade, err := toTrade(&futures.Trade{ID: 42, Price: "3001.25", Quantity: "0.150", Time: 1700000000123, IsBuyerMaker: true})
	if err != nil {
		t.Fatalf("toTrade() error = %v", err)
	}

	want := models.Trade{ID: 42, Price: 3001.25, Quantity: 0.15, Time: 1700000000123, BuyerMaker: true}
	if trade != want {
		t.Errorf("toTrade() = %+v, want %+v", trade, want)
	}

	if _, err := toTrade(&futures.Trade{Price: "1", Quantity: "?"}); err == nil {
		t.Error("expected error for malformed quantity")
	}
}
