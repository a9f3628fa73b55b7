package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/scalpsignal/internal/analysis/aggregator"
	"github.com/skalibog/scalpsignal/internal/analysis/market"
	"github.com/skalibog/scalpsignal/internal/config"
	delivery "github.com/skalibog/scalpsignal/internal/delivery/http"
	"github.com/skalibog/scalpsignal/internal/delivery/websocket"
	"github.com/skalibog/scalpsignal/internal/exchange"
	"github.com/skalibog/scalpsignal/internal/sentiment"
	"github.com/skalibog/scalpsignal/internal/storage"
	"github.com/skalibog/scalpsignal/internal/ui"
	"github.com/skalibog/scalpsignal/pkg/logger"
	"github.com/skalibog/scalpsignal/pkg/models"
)

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Options{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		JSONFile: cfg.Log.JSONFile,
		Truncate: true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.GetLogger().Sync()

	logger.Info("Конфигурация загружена",
		zap.String("path", *configPath),
		zap.Strings("symbols", cfg.Trading.Symbols),
		zap.String("storage", cfg.Storage.Type))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализируем хранилище
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
	}
	defer store.Close()

	// Инициализируем клиент биржи и источники контекста
	client := exchange.NewBinanceClient(cfg.Binance)
	timeout := time.Duration(cfg.Analysis.Market.TimeoutMs) * time.Millisecond
	fng := sentiment.NewClient(cfg.Analysis.Market.SentimentURL, timeout, cfg.Binance.MaxRetries)
	marketProvider := market.NewProvider(client, fng, cfg.Analysis.Market)

	// Создаем агрегатор аналитики
	analyzer := aggregator.NewAnalyzer(cfg.Trading, client, client, marketProvider, store)

	var userInterface *ui.TermUI
	if cfg.UI.Enabled {
		userInterface = ui.NewTermUI(ctx, cfg.UI, cfg.Log.JSONFile)
	}

	// Настраиваем обработку сигналов завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Завершение работы...")
			cancel()
			if userInterface != nil {
				userInterface.Quit()
			}
		case <-ctx.Done():
		}
	}()

	var server *http.Server
	if cfg.Server.Enabled {
		server = startServer(cfg.Server, analyzer, client, cfg.Trading.Symbols[0])
	}

	// Запускаем аналитический процесс в горутине
	done := make(chan struct{})
	go func() {
		defer close(done)
		runAnalysis(ctx, analyzer, time.Duration(cfg.Analysis.IntervalSeconds)*time.Second, func(signals map[string]models.SignalRecord) {
			if userInterface != nil {
				userInterface.UpdateSignals(signals)
			}
		})
	}()

	// UI блокирует основной поток до выхода
	if userInterface != nil {
		if err := userInterface.Start(); err != nil {
			logger.Error("Ошибка UI", zap.Error(err))
		}
		cancel()
	} else {
		<-ctx.Done()
	}

	<-done
	if server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Ошибка остановки HTTP сервера", zap.Error(err))
		}
	}
	logger.Info("Работа завершена")
}

// runAnalysis выполняет анализ сразу и затем по таймеру до отмены ctx
func runAnalysis(ctx context.Context, analyzer *aggregator.Analyzer, interval time.Duration, onUpdate func(map[string]models.SignalRecord)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		signals, err := analyzer.GenerateSignals(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			logger.Warn("Предупреждение: ошибка при генерации сигналов", zap.Error(err))
		case len(signals) > 0:
			onUpdate(analyzer.Latest())
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func startServer(cfg config.ServerConfig, analyzer *aggregator.Analyzer, trades delivery.TradeSource, defaultSymbol string) *http.Server {
	mux := http.NewServeMux()
	delivery.NewSignalHandler(analyzer).Register(mux)
	delivery.NewTradeHandler(trades, defaultSymbol).Register(mux)
	mux.HandleFunc("/ws", websocket.NewHandler(analyzer, time.Duration(cfg.PushIntervalMs)*time.Millisecond).Handle)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP сервер запущен", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ошибка HTTP сервера", zap.Error(err))
		}
	}()

	return server
}
