package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/skalibog/scalpsignal/pkg/logger"
	"github.com/skalibog/scalpsignal/pkg/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// SignalSource источник последних записей и истории сигналов
type SignalSource interface {
	Latest() map[string]models.SignalRecord
	GetSignalHistory(ctx context.Context, symbol string, limit int) ([]models.SignalRecord, error)
}

// SignalHandler handles signal endpoints
type SignalHandler struct {
	source SignalSource
}

// NewSignalHandler creates a new handler
func NewSignalHandler(source SignalSource) *SignalHandler {
	return &SignalHandler{source: source}
}

// Register регистрирует маршруты
func (h *SignalHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/history", h.GetHistory)
	mux.HandleFunc("/api/signal", h.GetLatest)
}

// GetHistory handles GET /api/history?symbol=ETHUSDT&limit=50
func (h *SignalHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if !validSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "invalid symbol")
		return
	}

	limit, ok := queryLimit(r, defaultHistoryLimit, maxHistoryLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	history, err := h.source.GetSignalHistory(r.Context(), symbol, limit)
	if err != nil {
		logger.Error("Ошибка чтения истории сигналов", zap.String("symbol", symbol), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// GetLatest handles GET /api/signal
func (h *SignalHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.source.Latest())
}

// queryLimit читает limit из запроса: def, если не задан, не больше ceiling
func queryLimit(r *http.Request, def, ceiling int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, ceiling), true
}

func validSymbol(s string) bool {
	for _, c := range s {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Ошибка записи ответа", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
