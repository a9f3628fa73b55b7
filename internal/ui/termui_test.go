package ui

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/skalibog/scalpsignal/internal/config"
	"github.com/skalibog/scalpsignal/pkg/models"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		action string
		want   actionKind
	}{
		{"open long", kindOpen},
		{"open short", kindOpen},
		{"close long immediately — risk signal", kindClose},
		{"consider closing short — high hold risk", kindClose},
		{"continue holding long / trail stop", kindOther},
		{"stand aside", kindOther},
		{"awaiting data", kindOther},
	}
	for _, tt := range tests {
		if got := kindOf(tt.action); got != tt.want {
			t.Errorf("kindOf(%q) = %d, want %d", tt.action, got, tt.want)
		}
	}
}

func TestFormatLogLine(t *testing.T) {
	line := `{"level":"WARN","ts":"02.01.2024 - 15:04:05.123456789+00:00","caller":"x.go:1","msg":"свечи недоступны","symbol":"ETHUSDT","interval":"1m"}`
	got := formatLogLine(line)
	want := "[15:04:05] [WARN] свечи недоступны (interval: 1m) (symbol: ETHUSDT)"
	if got != want {
		t.Errorf("formatLogLine() = %q, want %q", got, want)
	}

	if got := formatLogLine("plain text"); got != "plain text" {
		t.Errorf("non-JSON line changed: %q", got)
	}
}

func TestRenderSignalsSection(t *testing.T) {
	if out := renderSignalsSection(nil, 0); !strings.Contains(out, "Ожидание данных") {
		t.Errorf("empty section: %s", out)
	}

	signals := map[string]models.SignalRecord{
		"SOLUSDT": {Symbol: "SOLUSDT", Recommendation: models.Recommendation{Action: "stand aside", Reasons: []string{"hidden reason"}}},
		"ETHUSDT": {
			Symbol:         "ETHUSDT",
			CurrentPrice:   3000,
			Long:           models.OpeningSignal{Score: 8},
			Holdability:    &models.HoldabilityResult{Score: 6},
			Recommendation: models.Recommendation{Action: "open long", Reasons: []string{"EMA5 > EMA10"}},
			Market:         &models.MarketContext{FngValue: models.Some(80), FngClassification: "Extreme Greed"},
			Indicators: []models.IndicatorSnapshot{
				{EMA5: models.Some(1)},
				{EMA5: models.Some(3001.23456), BBUpper: models.Some(3010), StochK: models.Some(85.5)},
			},
		},
	}

	out := renderSignalsSection(signals, 0)
	if strings.Index(out, "ETHUSDT") > strings.Index(out, "SOLUSDT") {
		t.Error("symbols should be sorted")
	}
	for _, want := range []string{"open long", "EMA5 > EMA10", "H:6/9", "Extreme Greed", "BTC: N/A", "EMA5: 3001.2346", "EMA10: --", "/ 3010.0000", "Stoch K/D: 85.5000 / --"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden reason") {
		t.Error("reasons of unselected symbols must not be shown")
	}
}

func TestLoadLogsKeepsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json.log")
	var b strings.Builder
	for i := 0; i < maxLogLines+10; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ui := NewTermUI(ctx, config.UIConfig{RefreshRate: 1000}, path)

	ui.logsMutex.RLock()
	defer ui.logsMutex.RUnlock()
	if len(ui.logs) != maxLogLines {
		t.Fatalf("logs = %d, want %d", len(ui.logs), maxLogLines)
	}
	if ui.logs[0] != "line 10" || ui.logs[maxLogLines-1] != fmt.Sprintf("line %d", maxLogLines+9) {
		t.Errorf("unexpected window %q .. %q", ui.logs[0], ui.logs[maxLogLines-1])
	}
}

func TestMissingLogFileIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ui := NewTermUI(ctx, config.UIConfig{RefreshRate: 1000}, filepath.Join(t.TempDir(), "missing.log"))
	if len(ui.logs) != 1 {
		t.Errorf("logs = %v", ui.logs)
	}
}

func TestColorizeLevelKeepsText(t *testing.T) {
	for _, line := range []string{"[t] [WARN] свечи недоступны", "без уровня"} {
		if out := colorizeLevel(line); !strings.Contains(out, line) {
			t.Errorf("colorizeLevel(%q) = %q", line, out)
		}
	}
}

func headlessUI(ctx context.Context, t *testing.T) *TermUI {
	ui := NewTermUI(ctx, config.UIConfig{RefreshRate: 10}, filepath.Join(t.TempDir(), "missing.log"))
	ui.options = []tea.ProgramOption{tea.WithInput(&bytes.Buffer{}), tea.WithOutput(&bytes.Buffer{}), tea.WithoutSignalHandler()}
	return ui
}

func TestUpdateSignalsConcurrentWithStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ui := headlessUI(ctx, t)

	done := make(chan error, 1)
	go func() { done <- ui.Start() }()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				symbol := fmt.Sprintf("SYM%d", w)
				ui.UpdateSignals(map[string]models.SignalRecord{symbol: {Symbol: symbol, CurrentPrice: float64(i)}})
			}
		}(w)
	}
	wg.Wait()

	for ui.running() == nil {
		time.Sleep(time.Millisecond)
	}
	ui.Quit()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Quit")
	}
	if ui.running() != nil {
		t.Error("program must be cleared after exit")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ui := headlessUI(ctx, t)

	done := make(chan error, 1)
	go func() { done <- ui.Start() }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	// после остановки обновления не блокируются
	ui.UpdateSignals(map[string]models.SignalRecord{})
	ui.Quit()
}
