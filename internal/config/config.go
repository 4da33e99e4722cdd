package config

import (
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

type Config struct {
	Bot      BotConfig     `yaml:"bot"`
	Features FeatureConfig `yaml:"features"`
	Storage  StorageConfig `yaml:"storage"`
	History  HistoryConfig `yaml:"history"`
	Gateway  GatewayConfig `yaml:"gateway"`
	HTTP     HTTPConfig    `yaml:"http"`
	Render   RenderConfig  `yaml:"render"`
	Log      LogConfig     `yaml:"log"`
}

type BotConfig struct {
	Prefix       string   `yaml:"prefix" env:"PREFIXE"`
	Mode         string   `yaml:"mode" env:"MODE"`
	Owner        string   `yaml:"owner" env:"NUMERO_OWNER"`
	Developers   []string `yaml:"developers" env:"DEV_NUMBERS" envSeparator:","`
	CommandsDir  string   `yaml:"commands_dir" env:"COMMANDS_DIR"`
	DefaultReact string   `yaml:"default_react" env:"DEFAULT_REACT"`
	WelcomeImage string   `yaml:"welcome_image" env:"WELCOME_DEFAULT_IMAGE"`
	// Restricted group: only developers and the allowed sender may run commands there.
	RestrictedGroup   string `yaml:"restricted_group" env:"RESTRICTED_GROUP_ID"`
	RestrictedAllowed string `yaml:"restricted_allowed_sender" env:"RESTRICTED_GROUP_ALLOWED"`
}

type FeatureConfig struct {
	AntiDelete     string `yaml:"antidelete" env:"ANTIDELETE"`
	AntiViewOnce   string `yaml:"anti_vue_unique" env:"ANTI_VUE_UNIQUE"`
	LevelUp        string `yaml:"level_up" env:"LEVEL_UP"`
	Presence       string `yaml:"presence" env:"PRESENCE"`
	ReadStatus     string `yaml:"lecture_status" env:"LECTURE_STATUS"`
	LikeStatus     string `yaml:"like_status" env:"LIKE_STATUS"`
	DownloadStatus string `yaml:"dl_status" env:"DL_STATUS"`
}

type StorageConfig struct {
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
}

type HistoryConfig struct {
	CacheSize      int    `yaml:"cache_size" env:"HISTORY_CACHE_SIZE"`
	BatchSize      int    `yaml:"batch_size" env:"HISTORY_BATCH_SIZE"`
	FlushMS        int    `yaml:"flush_ms" env:"HISTORY_FLUSH_MS"`
	RetentionHours int    `yaml:"retention_hours" env:"HISTORY_RETENTION_HOURS"`
	PruneCron      string `yaml:"prune_cron" env:"HISTORY_PRUNE_CRON"`
}

type GatewayConfig struct {
	URL            string  `yaml:"url" env:"GATEWAY_URL"`
	Token          string  `yaml:"token" env:"GATEWAY_TOKEN"`
	RequestTimeout int     `yaml:"request_timeout_secs" env:"GATEWAY_REQUEST_TIMEOUT_SECS"`
	SendRPS        float64 `yaml:"send_rps" env:"SEND_RATE_RPS"`
	SendBurst      int     `yaml:"send_burst" env:"SEND_RATE_BURST"`
}

type HTTPConfig struct {
	Port             int     `yaml:"port" env:"PORT"`
	PublicURL        string  `yaml:"public_url" env:"PUBLIC_URL"`
	RateRPS          float64 `yaml:"rate_rps" env:"HTTP_RATE_RPS"`
	RateBurst        int     `yaml:"rate_burst" env:"HTTP_RATE_BURST"`
	PingCPUMax       float64 `yaml:"ping_cpu_max" env:"PING_CPU_MAX"`
	PingIntervalSecs int     `yaml:"ping_interval_secs" env:"PING_INTERVAL_SECS"`
	CheckSecs        int     `yaml:"watchdog_check_secs" env:"WATCHDOG_CHECK_SECS"`
	StaleAfterSecs   int     `yaml:"watchdog_stale_secs" env:"WATCHDOG_STALE_AFTER_SECS"`
}

type RenderConfig struct {
	APIKey    string `yaml:"api_key" env:"RENDER_API_KEY"`
	ServiceID string `yaml:"service_id" env:"RENDER_SERVICE_ID"`
	BaseURL   string `yaml:"base_url" env:"RENDER_API_URL"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

const (
	defaultPrefix       = "!"
	defaultMode         = "public"
	defaultReact        = "🎐"
	defaultWelcomeImage = "https://files.catbox.moe/54ip7g.jpg"
	defaultDatabaseURL  = "ovl.db"
	defaultGatewayURL   = "ws://127.0.0.1:8787/ws"
	defaultRenderURL    = "https://api.render.com/v1"
	defaultPort         = 3000
	defaultPruneCron    = "*/15 * * * *"
)

var defaultDevelopers = []string{"22651463203", "22605463559"}

func defaults() Config {
	return Config{
		Bot: BotConfig{
			Prefix:       defaultPrefix,
			Mode:         defaultMode,
			Developers:   append([]string(nil), defaultDevelopers...),
			DefaultReact: defaultReact,
			WelcomeImage: defaultWelcomeImage,
		},
		Features: FeatureConfig{
			AntiDelete:     "off",
			AntiViewOnce:   "off",
			LevelUp:        "non",
			ReadStatus:     "off",
			LikeStatus:     "off",
			DownloadStatus: "off",
		},
		Storage: StorageConfig{DatabaseURL: defaultDatabaseURL},
		History: HistoryConfig{
			CacheSize:      2000,
			BatchSize:      50,
			FlushMS:        500,
			RetentionHours: 48,
			PruneCron:      defaultPruneCron,
		},
		Gateway: GatewayConfig{
			URL:            defaultGatewayURL,
			RequestTimeout: 30,
			SendRPS:        5,
			SendBurst:      10,
		},
		HTTP: HTTPConfig{
			Port:             defaultPort,
			RateRPS:          5,
			RateBurst:        10,
			PingCPUMax:       80,
			PingIntervalSecs: 30,
			CheckSecs:        60,
			StaleAfterSecs:   120,
		},
		Render: RenderConfig{BaseURL: defaultRenderURL},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// OVL_CONFIG_FILE, a .env file in the working directory and the process
// environment, in increasing order of precedence.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "config: load .env")
	}

	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("OVL_CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: parse environment")
	}
	cfg.normalize()
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "config: read %s", path)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return errors.Wrapf(err, "config: decode %s", path)
	}
	return nil
}

func (c *Config) normalize() {
	d := defaults()
	c.Bot.Prefix = strings.TrimSpace(c.Bot.Prefix)
	if c.Bot.Prefix == "" {
		c.Bot.Prefix = d.Bot.Prefix
	}
	c.Bot.Mode = strings.ToLower(strings.TrimSpace(c.Bot.Mode))
	if c.Bot.Mode == "" {
		c.Bot.Mode = d.Bot.Mode
	}
	c.Bot.Developers = splitList(strings.Join(c.Bot.Developers, ","))
	if strings.TrimSpace(c.Bot.DefaultReact) == "" {
		c.Bot.DefaultReact = d.Bot.DefaultReact
	}
	if strings.TrimSpace(c.Bot.WelcomeImage) == "" {
		c.Bot.WelcomeImage = d.Bot.WelcomeImage
	}
	c.Bot.RestrictedGroup = strings.TrimSpace(c.Bot.RestrictedGroup)
	if c.Bot.RestrictedAllowed != "" {
		c.Bot.RestrictedAllowed = wa.PhoneJID(c.Bot.RestrictedAllowed)
	}
	c.Features.AntiDelete = strings.ToLower(strings.TrimSpace(c.Features.AntiDelete))
	c.Features.Presence = strings.ToLower(strings.TrimSpace(c.Features.Presence))

	positive(&c.History.CacheSize, d.History.CacheSize)
	positive(&c.History.BatchSize, d.History.BatchSize)
	positive(&c.History.RetentionHours, d.History.RetentionHours)
	if c.History.FlushMS < 0 {
		c.History.FlushMS = 0
	}
	if strings.TrimSpace(c.History.PruneCron) == "" {
		c.History.PruneCron = d.History.PruneCron
	}
	positive(&c.Gateway.RequestTimeout, d.Gateway.RequestTimeout)
	positive(&c.Gateway.SendBurst, d.Gateway.SendBurst)
	positive(&c.HTTP.Port, d.HTTP.Port)
	positive(&c.HTTP.RateBurst, d.HTTP.RateBurst)
	positive(&c.HTTP.PingIntervalSecs, d.HTTP.PingIntervalSecs)
	positive(&c.HTTP.CheckSecs, d.HTTP.CheckSecs)
	positive(&c.HTTP.StaleAfterSecs, d.HTTP.StaleAfterSecs)
	if c.HTTP.PingCPUMax <= 0 || c.HTTP.PingCPUMax > 100 {
		c.HTTP.PingCPUMax = d.HTTP.PingCPUMax
	}
	if strings.TrimSpace(c.Render.BaseURL) == "" {
		c.Render.BaseURL = d.Render.BaseURL
	}
}

func positive(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\t', '\n':
			return true
		}
		return false
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return dedupe(out)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(v))
	}
	sort.Strings(out)
	return out
}

// Public reports whether commands are open to everyone.
func (c Config) Public() bool {
	return c.Bot.Mode == "public"
}

func (c Config) AntiViewOnceEnabled() bool {
	on, _ := core.ParseSwitch(c.Features.AntiViewOnce)
	return on
}

func (c Config) LevelUpEnabled() bool {
	on, _ := core.ParseSwitch(c.Features.LevelUp)
	return on
}

func (c Config) ReadStatusEnabled() bool {
	on, _ := core.ParseSwitch(c.Features.ReadStatus)
	return on
}

func (c Config) LikeStatusEnabled() bool {
	on, _ := core.ParseSwitch(c.Features.LikeStatus)
	return on
}

func (c Config) DownloadStatusEnabled() bool {
	on, _ := core.ParseSwitch(c.Features.DownloadStatus)
	return on
}

// DeveloperJIDs returns the developer numbers as user jids.
func (c Config) DeveloperJIDs() []string {
	out := make([]string, 0, len(c.Bot.Developers))
	for _, n := range c.Bot.Developers {
		if jid := wa.PhoneJID(n); jid != "" {
			out = append(out, jid)
		}
	}
	return out
}

func (c Config) FlushInterval() time.Duration {
	if c.History.FlushMS <= 0 {
		return 0
	}
	return time.Duration(c.History.FlushMS) * time.Millisecond
}

func (c Config) Retention() time.Duration {
	return time.Duration(c.History.RetentionHours) * time.Hour
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Gateway.RequestTimeout) * time.Second
}

func (c Config) Redacted() map[string]any {
	return map[string]any{
		"bot": map[string]any{
			"prefix":                    c.Bot.Prefix,
			"mode":                      c.Bot.Mode,
			"owner":                     redactString(c.Bot.Owner),
			"developers":                len(c.Bot.Developers),
			"commands_dir":              c.Bot.CommandsDir,
			"restricted_group":          c.Bot.RestrictedGroup,
			"restricted_allowed_sender": redactString(c.Bot.RestrictedAllowed),
		},
		"features": map[string]any{
			"antidelete":      c.Features.AntiDelete,
			"anti_vue_unique": c.AntiViewOnceEnabled(),
			"level_up":        c.LevelUpEnabled(),
			"presence":        c.Features.Presence,
			"lecture_status":  c.ReadStatusEnabled(),
			"like_status":     c.LikeStatusEnabled(),
			"dl_status":       c.DownloadStatusEnabled(),
		},
		"storage": map[string]any{
			"database_url": redactDSN(c.Storage.DatabaseURL),
		},
		"history": map[string]any{
			"cache_size":      c.History.CacheSize,
			"batch_size":      c.History.BatchSize,
			"flush_ms":        c.History.FlushMS,
			"retention_hours": c.History.RetentionHours,
			"prune_cron":      c.History.PruneCron,
		},
		"gateway": map[string]any{
			"url":        c.Gateway.URL,
			"token":      redactString(c.Gateway.Token),
			"send_rps":   c.Gateway.SendRPS,
			"send_burst": c.Gateway.SendBurst,
		},
		"http": map[string]any{
			"port":         c.HTTP.Port,
			"public_url":   c.HTTP.PublicURL,
			"rate_rps":     c.HTTP.RateRPS,
			"ping_cpu_max": c.HTTP.PingCPUMax,
		},
		"render": map[string]any{
			"api_key":    redactString(c.Render.APIKey),
			"service_id": c.Render.ServiceID,
		},
	}
}

func (c Config) RedactedJSON() []byte {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return data
}

type Summary struct {
	Prefix     string `json:"prefix"`
	Mode       string `json:"mode"`
	Database   string `json:"database"`
	Gateway    string `json:"gateway"`
	AntiDelete string `json:"antidelete"`
	Render     bool   `json:"render"`
	Port       int    `json:"port"`
}

func (c Config) Summary() Summary {
	return Summary{
		Prefix:     c.Bot.Prefix,
		Mode:       c.Bot.Mode,
		Database:   redactDSN(c.Storage.DatabaseURL),
		Gateway:    c.Gateway.URL,
		AntiDelete: c.Features.AntiDelete,
		Render:     c.Render.APIKey != "" && c.Render.ServiceID != "",
		Port:       c.HTTP.Port,
	}
}

func (c Config) SummaryJSON() []byte {
	summary := struct {
		Config Summary `json:"config_summary"`
	}{Config: c.Summary()}
	data, _ := json.Marshal(summary)
	return data
}

func redactString(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "***REDACTED*** (len=" + strconv.Itoa(len(value)) + ")"
}

// redactDSN hides the userinfo of URL-style connection strings.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	at := strings.LastIndexByte(rest, '@')
	if at < 0 {
		return dsn
	}
	return scheme + "://***@" + rest[at+1:]
}
