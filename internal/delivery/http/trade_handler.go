package http

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/skalibog/scalpsignal/pkg/logger"
	"github.com/skalibog/scalpsignal/pkg/models"
)

const (
	defaultTradesLimit = 100
	maxTradesLimit     = 1000
)

// TradeSource источник последних сделок
type TradeSource interface {
	GetRecentTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error)
}

// TradeHandler handles recent trades endpoint
type TradeHandler struct {
	source        TradeSource
	defaultSymbol string
}

// NewTradeHandler creates a new handler; defaultSymbol используется без параметра symbol
func NewTradeHandler(source TradeSource, defaultSymbol string) *TradeHandler {
	return &TradeHandler{source: source, defaultSymbol: strings.ToUpper(defaultSymbol)}
}

// Register регистрирует маршруты
func (h *TradeHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/trades", h.GetTrades)
}

// GetTrades handles GET /api/trades?symbol=ETHUSDT&limit=100
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		symbol = h.defaultSymbol
	}
	if symbol == "" || !validSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "invalid symbol")
		return
	}

	limit, ok := queryLimit(r, defaultTradesLimit, maxTradesLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	trades, err := h.source.GetRecentTrades(r.Context(), symbol, limit)
	if err != nil {
		logger.Error("Ошибка получения сделок", zap.String("symbol", symbol), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to fetch trades")
		return
	}

	logger.Debug("Сделки получены", zap.String("symbol", symbol), zap.Int("count", len(trades)))
	writeJSON(w, http.StatusOK, trades)
}
