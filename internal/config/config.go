package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// ErrInvalid возвращается при некорректной конфигурации
var ErrInvalid = errors.New("некорректная конфигурация")

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance  BinanceConfig  `yaml:"binance"`
	Trading  TradingConfig  `yaml:"trading"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	UI       UIConfig       `yaml:"ui"`
	Log      LogConfig      `yaml:"log"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey            string  `yaml:"api_key"`
	APISecret         string  `yaml:"api_secret"`
	Testnet           bool    `yaml:"testnet"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
}

// TradingConfig содержит торгуемые инструменты и таймфреймы
type TradingConfig struct {
	Symbols         []string `yaml:"symbols"`
	ReferenceSymbol string   `yaml:"reference_symbol"`
	Interval        string   `yaml:"interval"`
	HigherInterval  string   `yaml:"higher_interval"`
	CandleLimit     int      `yaml:"candle_limit"`
	HigherLimit     int      `yaml:"higher_limit"`
	IndicatorTail   int      `yaml:"indicator_tail"` // сколько последних баров с индикаторами попадает в запись
}

// AnalysisConfig содержит настройки аналитического цикла
type AnalysisConfig struct {
	IntervalSeconds int          `yaml:"interval_seconds"`
	Market          MarketConfig `yaml:"market"`
}

// MarketConfig настройки макро-контекста
type MarketConfig struct {
	DailySymbol  string  `yaml:"daily_symbol"`
	DailyLimit   int     `yaml:"daily_limit"`
	FlatBand     float64 `yaml:"flat_band"`
	SentimentURL string  `yaml:"sentiment_url"`
	TimeoutMs    int     `yaml:"timeout_ms"`
}

// StorageConfig настройки хранения сигналов
type StorageConfig struct {
	Type         string      `yaml:"type"` // influxdb | redis | none
	URL          string      `yaml:"url"`
	Token        string      `yaml:"token"`
	Organization string      `yaml:"organization"`
	Bucket       string      `yaml:"bucket"`
	MaxHistory   int         `yaml:"max_history"` // записей на символ для redis и памяти
	Redis        RedisConfig `yaml:"redis"`
}

// RedisConfig настройки истории сигналов в Redis
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// ServerConfig настройки HTTP/websocket сервера
type ServerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Addr           string `yaml:"addr"`
	PushIntervalMs int    `yaml:"push_interval_ms"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	Enabled     bool `yaml:"enabled"`
	RefreshRate int  `yaml:"refresh_rate_ms"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level    string `yaml:"level"`
	File     string `yaml:"file"`
	JSONFile string `yaml:"json_file"`
}

// Load загружает конфигурацию из файла, затем применяет переменные окружения (.env)
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// .env необязателен
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse разбирает YAML и заполняет значения по умолчанию
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Binance.APISecret = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		c.Storage.Token = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.Binance.RequestsPerSecond <= 0 {
		c.Binance.RequestsPerSecond = 10
	}
	if c.Binance.MaxRetries <= 0 {
		c.Binance.MaxRetries = 3
	}

	if c.Trading.ReferenceSymbol == "" {
		c.Trading.ReferenceSymbol = "BTCUSDT"
	}
	if c.Trading.Interval == "" {
		c.Trading.Interval = "1m"
	}
	if c.Trading.HigherInterval == "" {
		c.Trading.HigherInterval = "15m"
	}
	if c.Trading.CandleLimit == 0 {
		c.Trading.CandleLimit = 100
	}
	if c.Trading.HigherLimit == 0 {
		c.Trading.HigherLimit = 50
	}
	if c.Trading.IndicatorTail <= 0 {
		c.Trading.IndicatorTail = 30
	}

	if c.Analysis.IntervalSeconds <= 0 {
		c.Analysis.IntervalSeconds = 30
	}
	if c.Analysis.Market.DailySymbol == "" {
		c.Analysis.Market.DailySymbol = c.Trading.ReferenceSymbol
	}
	if c.Analysis.Market.DailyLimit == 0 {
		c.Analysis.Market.DailyLimit = 60
	}
	if c.Analysis.Market.FlatBand == 0 {
		c.Analysis.Market.FlatBand = 0.002
	}
	if c.Analysis.Market.SentimentURL == "" {
		c.Analysis.Market.SentimentURL = "https://api.alternative.me/fng/?limit=1"
	}
	if c.Analysis.Market.TimeoutMs <= 0 {
		c.Analysis.Market.TimeoutMs = 5000
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "none"
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = "signal_history:"
	}
	if c.Storage.MaxHistory <= 0 {
		c.Storage.MaxHistory = 1000
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.PushIntervalMs <= 0 {
		c.Server.PushIntervalMs = 5000
	}

	if c.UI.RefreshRate <= 0 {
		c.UI.RefreshRate = 1000
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = "app.log"
	}
	if c.Log.JSONFile == "" {
		c.Log.JSONFile = "app.json.log"
	}
}

// MinCandles минимальное число свечей, при котором определены все индикаторы и среднее ATR
const MinCandles = 40

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("%w: не задан ни один символ", ErrInvalid)
	}
	if c.Trading.CandleLimit < MinCandles {
		return fmt.Errorf("%w: candle_limit %d меньше %d", ErrInvalid, c.Trading.CandleLimit, MinCandles)
	}
	if c.Trading.HigherLimit < 16 {
		return fmt.Errorf("%w: higher_limit %d меньше 16", ErrInvalid, c.Trading.HigherLimit)
	}
	if c.Analysis.Market.DailyLimit < 50 {
		return fmt.Errorf("%w: daily_limit %d меньше периода EMA50", ErrInvalid, c.Analysis.Market.DailyLimit)
	}

	switch c.Storage.Type {
	case "influxdb", "redis", "none":
	default:
		return fmt.Errorf("%w: неизвестный тип хранилища %q", ErrInvalid, c.Storage.Type)
	}
	return nil
}
