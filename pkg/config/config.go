// Package config loads this system's startup configuration: the server
// port and store path shared by both CLI modes, and the monitored account
// set, either from a JSON file or from the single-account environment form.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"compliance-monitor/internal/platform"
	"compliance-monitor/internal/rules"
)

// Config holds environment-driven settings shared across CLI subcommands.
type Config struct {
	Port     string
	StorePath string

	CheckIntervalSeconds int
	ShutdownGraceSeconds int
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore error so the app still starts without a .env

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		StorePath:            getEnv("STORE_PATH", "./data/compliance.db"),
		CheckIntervalSeconds: getEnvInt("CHECK_INTERVAL_SECONDS", 30),
		ShutdownGraceSeconds: getEnvInt("SHUTDOWN_GRACE_SECONDS", 5),
	}, nil
}

// AccountConfig is one monitored account, matching the JSON shape in the
// account-set file and the single-account environment form.
type AccountConfig struct {
	Label                 string   `json:"label"`
	Firm                  string   `json:"firm"`
	ProgramID             string   `json:"program_id,omitempty"`
	Platform              platform.Platform `json:"platform"`
	AccountID             string   `json:"account_id"`
	StartingBalance       float64  `json:"starting_balance"`
	CheckIntervalSeconds  int      `json:"check_interval"`
	Enabled               bool     `json:"enabled"`
	RulesPresetName       string   `json:"-"`
	InlineRules           *rules.Rules `json:"-"`

	// Credentials, not part of the JSON account-set shape (kept out of the
	// file a operator might commit); supplied via environment at load time.
	Server   string `json:"-"`
	APIToken string `json:"-"`
	Login    string `json:"-"`
	Password string `json:"-"`
}

// Credentials builds the platform.AccountCredentials this account's adapter
// needs to connect.
func (a AccountConfig) Credentials() platform.AccountCredentials {
	return platform.AccountCredentials{
		Platform:  a.Platform,
		AccountID: a.AccountID,
		Server:    a.Server,
		APIToken:  a.APIToken,
		Login:     a.Login,
		Password:  a.Password,
	}
}

// accountSetFile mirrors the JSON account-set file's top-level shape.
type accountSetFile struct {
	Accounts []accountFileEntry `json:"accounts"`
}

// accountFileEntry mirrors one entry; Rules is polymorphic (a preset name
// string, or an inline Rules object), decoded in two passes below.
type accountFileEntry struct {
	Label                string            `json:"label"`
	Firm                 string            `json:"firm"`
	ProgramID            string            `json:"program_id,omitempty"`
	Platform             platform.Platform `json:"platform"`
	AccountID            string            `json:"account_id"`
	StartingBalance      float64           `json:"starting_balance"`
	CheckIntervalSeconds int               `json:"check_interval"`
	Enabled              bool              `json:"enabled"`
	Rules                json.RawMessage   `json:"rules,omitempty"`
}

// LoadAccountSet reads the JSON account-set file named in §6: a top-level
// "accounts" array where each entry's "rules" field is either a preset name
// string or an inline Rules object.
func LoadAccountSet(path string) ([]AccountConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read account set %s: %w", path, err)
	}

	var file accountSetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parse account set %s: %w", path, err)
	}

	out := make([]AccountConfig, 0, len(file.Accounts))
	for _, e := range file.Accounts {
		cfg := AccountConfig{
			Label:                e.Label,
			Firm:                 e.Firm,
			ProgramID:            e.ProgramID,
			Platform:             e.Platform,
			AccountID:            e.AccountID,
			StartingBalance:      e.StartingBalance,
			CheckIntervalSeconds: e.CheckIntervalSeconds,
			Enabled:              e.Enabled,
		}

		if len(e.Rules) > 0 {
			var presetName string
			if err := json.Unmarshal(e.Rules, &presetName); err == nil {
				cfg.RulesPresetName = presetName
			} else {
				r, err := rules.DecodeStrict(e.Rules)
				if err != nil {
					return nil, fmt.Errorf("config: account %q: invalid inline rules: %w", e.Label, err)
				}
				cfg.InlineRules = &r
			}
		}

		applyAccountCredentialsFromEnv(&cfg)
		out = append(out, cfg)
	}
	return out, nil
}

// LoadSingleAccountFromEnv builds a one-account set from the fixed-name
// environment variables, for operators running a single funded account
// without a config file.
func LoadSingleAccountFromEnv() (AccountConfig, error) {
	accountID := os.Getenv("ACCOUNT_ID")
	if accountID == "" {
		return AccountConfig{}, fmt.Errorf("config: ACCOUNT_ID is required for the single-account environment form")
	}

	cfg := AccountConfig{
		Label:                getEnv("ACCOUNT_LABEL", accountID),
		Firm:                 os.Getenv("ACCOUNT_FIRM"),
		ProgramID:            os.Getenv("ACCOUNT_PROGRAM_ID"),
		Platform:             platform.Platform(getEnv("ACCOUNT_PLATFORM", string(platform.PlatformMT5))),
		AccountID:            accountID,
		StartingBalance:      getEnvFloat("ACCOUNT_STARTING_BALANCE", 0),
		CheckIntervalSeconds: getEnvInt("ACCOUNT_CHECK_INTERVAL", 30),
		Enabled:              getEnv("ACCOUNT_ENABLED", "true") == "true",
		RulesPresetName:      os.Getenv("ACCOUNT_RULES_PRESET"),
	}
	applyAccountCredentialsFromEnv(&cfg)

	if cfg.StartingBalance <= 0 {
		return AccountConfig{}, fmt.Errorf("config: ACCOUNT_STARTING_BALANCE must be positive")
	}
	return cfg, nil
}

func applyAccountCredentialsFromEnv(cfg *AccountConfig) {
	prefix := "ACCOUNT_" + cfg.AccountID + "_"
	cfg.Server = firstNonEmpty(os.Getenv(prefix+"SERVER"), os.Getenv("ACCOUNT_SERVER"))
	cfg.APIToken = firstNonEmpty(os.Getenv(prefix+"API_TOKEN"), os.Getenv("ACCOUNT_API_TOKEN"))
	cfg.Login = firstNonEmpty(os.Getenv(prefix+"LOGIN"), os.Getenv("ACCOUNT_LOGIN"))
	cfg.Password = firstNonEmpty(os.Getenv(prefix+"PASSWORD"), os.Getenv("ACCOUNT_PASSWORD"))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
