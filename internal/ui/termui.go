package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/skalibog/scalpsignal/internal/config"
	"github.com/skalibog/scalpsignal/pkg/logger"
	"github.com/skalibog/scalpsignal/pkg/models"
)

const maxLogLines = 50

// Палитра: направление сигнала и уровни логов
var (
	accentColor = lipgloss.Color("#5f87af")
	frameColor  = lipgloss.Color("#3a3a3a")
	longColor   = lipgloss.Color("#5fd75f")
	shortColor  = lipgloss.Color("#d75f5f")
	waitColor   = lipgloss.Color("#d7d75f")
	debugColor  = lipgloss.Color("#8787d7")
	mutedColor  = lipgloss.Color("#8a8a8a")
	cursorColor = lipgloss.Color("#262626")

	appStyle    = lipgloss.NewStyle().Padding(1, 2).Border(lipgloss.RoundedBorder()).BorderForeground(accentColor)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#eeeeee")).Background(accentColor).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#eeeeee")).Background(frameColor).Padding(0, 1)
	frameStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(frameColor).Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(mutedColor).Padding(0, 1)
	reasonStyle = lipgloss.NewStyle().Foreground(mutedColor)
	cursorStyle = lipgloss.NewStyle().Background(cursorColor)

	ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// TermUI представляет терминальный интерфейс
type TermUI struct {
	signals       map[string]models.SignalRecord
	signalsMutex  sync.RWMutex
	logs          []string
	logsMutex     sync.RWMutex
	config        config.UIConfig
	ctx           context.Context
	programMutex  sync.Mutex
	program       *tea.Program // nil, пока интерфейс не запущен
	options       []tea.ProgramOption
	selectedIndex int
	width         int
	height        int
	logFile       string // JSON-лог, который показывается в секции логов
}

// Сообщения для обновления UI
type refreshMsg struct{}

// bubbleModel - модель для bubbletea
type bubbleModel struct {
	ui *TermUI
}

// NewTermUI создает интерфейс и запускает чтение логов до отмены ctx
func NewTermUI(ctx context.Context, cfg config.UIConfig, logFile string) *TermUI {
	ui := &TermUI{
		signals: make(map[string]models.SignalRecord),
		logs:    []string{"scalpsignal запущен. Ожидание данных..."},
		config:  cfg,
		ctx:     ctx,
		options: []tea.ProgramOption{tea.WithAltScreen()},
		width:   120,
		height:  40,
		logFile: logFile,
	}

	// Загружаем логи из файла при запуске
	if err := ui.loadLogsFromFile(); err != nil {
		ui.logs = append(ui.logs, fmt.Sprintf("Ошибка загрузки логов: %v", err))
	}

	refresh := time.Duration(cfg.RefreshRate) * time.Millisecond
	if refresh <= 0 {
		refresh = time.Second
	}

	go func() {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ui.loadLogsFromFile(); err != nil {
					logger.Warn("Ошибка загрузки логов", zap.Error(err))
					continue
				}
				ui.send(refreshMsg{})
			}
		}
	}()

	return ui
}

// Start запускает интерфейс и блокируется до выхода или отмены ctx
func (ui *TermUI) Start() error {
	ui.programMutex.Lock()
	if ui.ctx.Err() != nil {
		ui.programMutex.Unlock()
		return nil
	}
	opts := append([]tea.ProgramOption{tea.WithContext(ui.ctx)}, ui.options...)
	program := tea.NewProgram(bubbleModel{ui: ui}, opts...)
	ui.program = program
	ui.programMutex.Unlock()

	_, err := program.Run()

	ui.programMutex.Lock()
	ui.program = nil
	ui.programMutex.Unlock()

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

func (ui *TermUI) running() *tea.Program {
	ui.programMutex.Lock()
	defer ui.programMutex.Unlock()
	return ui.program
}

// send передает сообщение запущенной программе
func (ui *TermUI) send(msg tea.Msg) {
	if program := ui.running(); program != nil {
		program.Send(msg)
	}
}

// Quit останавливает интерфейс
func (ui *TermUI) Quit() {
	if program := ui.running(); program != nil {
		program.Quit()
	}
}

// UpdateSignals заменяет отображаемые записи
func (ui *TermUI) UpdateSignals(signals map[string]models.SignalRecord) {
	ui.signalsMutex.Lock()
	ui.signals = signals
	ui.signalsMutex.Unlock()

	ui.send(refreshMsg{})
}

// loadLogsFromFile читает последние строки JSON-лога
func (ui *TermUI) loadLogsFromFile() error {
	file, err := os.Open(ui.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Файл не существует, это не ошибка
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var logs []string

	for scanner.Scan() {
		logs = append(logs, formatLogLine(scanner.Text()))
		if len(logs) > maxLogLines {
			logs = logs[1:]
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	ui.logsMutex.Lock()
	defer ui.logsMutex.Unlock()

	if len(logs) > 0 {
		ui.logs = logs
	}
	return nil
}

// formatLogLine превращает JSON-запись zap в строку "[время] [уровень] сообщение (поле: значение)"
func formatLogLine(line string) string {
	var zapLog map[string]interface{}
	if err := json.Unmarshal([]byte(line), &zapLog); err != nil {
		// Не удалось распарсить JSON, добавляем как есть
		return line
	}

	level, _ := zapLog["level"].(string)
	ts, _ := zapLog["ts"].(string)
	msg, _ := zapLog["msg"].(string)

	// Удаляем ANSI-цвета из уровня логирования
	level = ansiRegex.ReplaceAllString(level, "")

	timestamp := ""
	if t, err := time.Parse(logger.TimeLayout, ts); err == nil {
		timestamp = t.Format("15:04:05")
	}

	keys := make([]string, 0, len(zapLog))
	for k := range zapLog {
		if k != "level" && k != "ts" && k != "msg" && k != "caller" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", timestamp, level, msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " (%s: %v)", k, zapLog[k])
	}
	return b.String()
}

func renderLogsSection(logs []string, limit int) string {
	content := strings.Builder{}

	start := 0
	if len(logs) > limit {
		start = len(logs) - limit
	}

	for _, log := range logs[start:] {
		content.WriteString("  " + colorizeLevel(log) + "\n")
	}

	return panel("ЛОГИ", content.String())
}

var levelColors = []struct {
	tag   string
	color lipgloss.Color
}{
	{"[ERROR]", shortColor},
	{"[WARN]", waitColor},
	{"[INFO]", longColor},
	{"[DEBUG]", debugColor},
}

// colorizeLevel красит строку лога по первому найденному уровню
func colorizeLevel(line string) string {
	for _, lc := range levelColors {
		if strings.Contains(line, lc.tag) {
			return lipgloss.NewStyle().Foreground(lc.color).Render(line)
		}
	}
	return line
}

func panel(title, body string) string {
	return frameStyle.Render(lipgloss.JoinVertical(lipgloss.Left, headerStyle.Render(title), body))
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return nil
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up":
			m.ui.selectedIndex = max(0, m.ui.selectedIndex-1)
		case "down":
			m.ui.signalsMutex.RLock()
			n := len(m.ui.signals)
			m.ui.signalsMutex.RUnlock()
			m.ui.selectedIndex = max(0, min(n-1, m.ui.selectedIndex+1))
		case "r":
			if err := m.ui.loadLogsFromFile(); err != nil {
				logger.Warn("Ошибка загрузки логов", zap.Error(err))
			}
		}

	case tea.WindowSizeMsg:
		m.ui.width = msg.Width
		m.ui.height = msg.Height

	case refreshMsg:
		// Просто обновляем UI
	}

	return m, nil
}

func (m bubbleModel) View() string {
	m.ui.signalsMutex.RLock()
	m.ui.logsMutex.RLock()
	defer m.ui.signalsMutex.RUnlock()
	defer m.ui.logsMutex.RUnlock()

	title := titleStyle.Render("scalpsignal - scalping signals for Binance futures")
	signals := renderSignalsSection(m.ui.signals, m.ui.selectedIndex)
	// под логи остается примерно половина экрана
	logs := renderLogsSection(m.ui.logs, max(6, m.ui.height/2-4))
	footer := footerStyle.Render("Клавиши: ↑/↓ - навигация, R - перезагрузить логи, Q - выход")

	return appStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"\n",
			signals,
			"\n",
			logs,
			"\n",
			footer,
		),
	)
}

func renderSignalsSection(signals map[string]models.SignalRecord, selectedIndex int) string {
	content := strings.Builder{}

	symbols := sortedSymbols(signals)

	if len(symbols) == 0 {
		content.WriteString("  Ожидание данных...\n")
	}

	for i, symbol := range symbols {
		rec := signals[symbol]

		hold := "-"
		if rec.Holdability != nil {
			hold = fmt.Sprintf("%d/9", rec.Holdability.Score)
		}

		line := fmt.Sprintf("  %-10s %s  L:%2d S:%2d H:%s  Цена: %.4f  [%s]",
			symbol, formatAction(rec.Recommendation.Action), rec.Long.Score, rec.Short.Score,
			hold, rec.CurrentPrice, rec.PositionStatus)

		if i != selectedIndex {
			content.WriteString(line + "\n")
			continue
		}

		// Выделяем выбранную строку и показываем причины
		line = "> " + line[2:]
		content.WriteString(cursorStyle.Render(line) + "\n")
		for _, reason := range rec.Recommendation.Reasons {
			content.WriteString(reasonStyle.Render("      - "+reason) + "\n")
		}
		if mc := rec.Market; mc != nil {
			content.WriteString(reasonStyle.Render(fmt.Sprintf("      FNG: %s %s, BTC: %s", mc.FngValue, mc.FngClassification, trendText(mc.BtcDailyTrend))) + "\n")
		}
		if snap := rec.LatestIndicators(); snap != nil {
			for _, l := range indicatorLines(snap) {
				content.WriteString(reasonStyle.Render("      "+l) + "\n")
			}
		}
	}

	return panel("СИГНАЛЫ", content.String())
}

// actionKind группа действия для раскраски
type actionKind int

const (
	kindOther actionKind = iota
	kindOpen
	kindClose
)

func kindOf(action string) actionKind {
	switch {
	case strings.HasPrefix(action, "open "):
		return kindOpen
	case strings.HasPrefix(action, "close "), strings.HasPrefix(action, "consider closing"):
		return kindClose
	default:
		return kindOther
	}
}

func formatAction(action string) string {
	var style lipgloss.Style

	switch kindOf(action) {
	case kindOpen:
		style = lipgloss.NewStyle().Foreground(longColor).Bold(true)
	case kindClose:
		style = lipgloss.NewStyle().Foreground(shortColor).Bold(true)
	default:
		style = lipgloss.NewStyle().Foreground(waitColor)
	}

	return style.Render(action)
}

// indicatorLines значения индикаторов последнего бара
func indicatorLines(s *models.IndicatorSnapshot) []string {
	return []string{
		fmt.Sprintf("EMA5: %s  EMA10: %s  VWAP: %s", num(s.EMA5), num(s.EMA10), num(s.VWAP)),
		fmt.Sprintf("BB: %s / %s / %s", num(s.BBLower), num(s.BBMiddle), num(s.BBUpper)),
		fmt.Sprintf("Stoch K/D: %s / %s  ATR14: %s  VMA20: %s", num(s.StochK), num(s.StochD), num(s.ATR14), num(s.VMA20)),
	}
}

func num(f models.Float) string {
	v, ok := f.Get()
	if !ok {
		return "--"
	}
	return fmt.Sprintf("%.4f", v)
}

func trendText(t models.Trend) string {
	if t == "" {
		return "N/A"
	}
	return string(t)
}

func sortedSymbols(signals map[string]models.SignalRecord) []string {
	symbols := make([]string, 0, len(signals))
	for symbol := range signals {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
