package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skalibog/scalpsignal/internal/config"
	"github.com/skalibog/scalpsignal/pkg/models"
)

func record(symbol string, ts int64) *models.SignalRecord {
	return &models.SignalRecord{
		ID:             symbol + "-" + time.UnixMilli(ts).UTC().Format("150405"),
		Symbol:         symbol,
		Timestamp:      time.UnixMilli(ts).UTC(),
		CurrentPrice:   3000,
		PositionStatus: models.StatusFlat,
		Long:           models.OpeningSignal{Direction: models.Long, Score: 8},
		Short:          models.OpeningSignal{Direction: models.Short, Score: 2},
		Recommendation: models.Recommendation{Action: "open long", Reasons: []string{"EMA5 > EMA10"}, Level: models.LevelMedium},
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Type: "mongo"})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("error = %v, want ErrUnknownType", err)
	}
}

func TestNewMemoryUsesStorageMaxHistory(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, config.StorageConfig{Type: "none", MaxHistory: 2})
	if err != nil {
		t.Fatal(err)
	}
	for i := int64(1); i <= 4; i++ {
		_ = store.SaveSignal(ctx, record("ETHUSDT", i*1000))
	}

	got, _ := store.GetSignalHistory(ctx, "ETHUSDT", 10)
	if len(got) != 2 || got[0].Timestamp.UnixMilli() != 4000 {
		t.Errorf("history = %d records, want newest 2", len(got))
	}
}

func TestMemoryStoreNewestFirstAndTrimmed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	for i := int64(1); i <= 5; i++ {
		if err := s.SaveSignal(ctx, record("ETHUSDT", i*1000)); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.SaveSignal(ctx, record("SOLUSDT", 1000))

	got, err := s.GetSignalHistory(ctx, "ETHUSDT", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []int64{5000, 4000, 3000} {
		if got[i].Timestamp.UnixMilli() != want {
			t.Errorf("record %d time = %d, want %d", i, got[i].Timestamp.UnixMilli(), want)
		}
	}

	got, _ = s.GetSignalHistory(ctx, "ETHUSDT", 1)
	if len(got) != 1 || got[0].Timestamp.UnixMilli() != 5000 {
		t.Errorf("limit 1 = %+v", got)
	}

	got, _ = s.GetSignalHistory(ctx, "BTCUSDT", 10)
	if len(got) != 0 {
		t.Errorf("unknown symbol returned %d records", len(got))
	}
}

func TestSignalPoint(t *testing.T) {
	rec := record("ETHUSDT", 1700000000000)
	rec.Holdability = &models.HoldabilityResult{Score: 6}

	p, err := signalPoint(rec)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != signalsMeasurement {
		t.Errorf("measurement = %q", p.Name())
	}
	if !p.Time().Equal(rec.Timestamp) {
		t.Errorf("time = %v, want %v", p.Time(), rec.Timestamp)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["symbol"] != "ETHUSDT" || tags["action"] != "open long" || tags["position"] != "flat" {
		t.Errorf("tags = %v", tags)
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["hold_score"] != int64(6) || fields["long_score"] != int64(8) {
		t.Errorf("fields = %v", fields)
	}

	var back models.SignalRecord
	if err := json.Unmarshal([]byte(fields["payload"].(string)), &back); err != nil {
		t.Fatalf("payload is not a record: %v", err)
	}
	if back.ID != rec.ID || back.Recommendation.Action != rec.Recommendation.Action {
		t.Errorf("payload = %+v", back)
	}
}

func TestCandlePoint(t *testing.T) {
	c := models.Candle{Timestamp: 1700000000000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}
	p := candlePoint("ETHUSDT", "1m", c)
	if p.Name() != candlesMeasurement || !p.Time().Equal(c.Time()) {
		t.Errorf("point %s at %v", p.Name(), p.Time())
	}
	if len(p.FieldList()) != 5 || len(p.TagList()) != 2 {
		t.Errorf("fields %d tags %d", len(p.FieldList()), len(p.TagList()))
	}
}

func TestHistoryQueryQuotesSymbol(t *testing.T) {
	q := historyQuery("signals", `ETH"USDT`, 20)
	if !strings.Contains(q, `r.symbol == "ETH\"USDT"`) {
		t.Errorf("symbol not escaped:\n%s", q)
	}
	if !strings.Contains(q, "desc: true") || !strings.Contains(q, "limit(n: 20)") {
		t.Errorf("unexpected query:\n%s", q)
	}
}

func TestRedisKeyPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	h := newRedisHistory(client, config.RedisConfig{}, 10)
	if got := h.key("ETHUSDT"); got != "signal_history:ETHUSDT" {
		t.Errorf("key = %q", got)
	}
	h = newRedisHistory(client, config.RedisConfig{KeyPrefix: "test:"}, 10)
	if got := h.key("ETHUSDT"); got != "test:ETHUSDT" {
		t.Errorf("key = %q", got)
	}
}

func TestDecodeMembersSkipsGarbage(t *testing.T) {
	good, _ := json.Marshal(record("ETHUSDT", 2000))
	older, _ := json.Marshal(record("ETHUSDT", 1000))

	got := decodeMembers("ETHUSDT", []string{string(good), "{not json", string(older)})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Timestamp.UnixMilli() != 2000 || got[1].Timestamp.UnixMilli() != 1000 {
		t.Errorf("order not preserved: %+v", got)
	}
}
