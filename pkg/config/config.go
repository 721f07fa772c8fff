package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/sagebot/sage/pkg/capability"
	"github.com/sagebot/sage/pkg/ratelimit"
)

type Config struct {
	Bot        BotConfig        `json:"bot" yaml:"bot"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Roles      RolesConfig      `json:"roles" yaml:"roles"`
	Duel       DuelConfig       `json:"duel" yaml:"duel"`
	Poll       PollConfig       `json:"poll" yaml:"poll"`
	RateLimits RateLimitsConfig `json:"rate_limits" yaml:"rate_limits"`
	Log        LogConfig        `json:"log" yaml:"log"`
	mu         sync.RWMutex
}

type BotConfig struct {
	Name  string `json:"name" yaml:"name" env:"SAGE_BOT_NAME"`
	Token string `json:"token" yaml:"token" env:"SAGE_BOT_TOKEN"`
	// AppID keys the persisted command settings.
	AppID string `json:"app_id" yaml:"app_id" env:"SAGE_BOT_APP_ID"`
	// GuildID scopes slash command registration. Empty registers globally.
	GuildID string `json:"guild_id" yaml:"guild_id" env:"SAGE_BOT_GUILD_ID"`
	Proxy   string `json:"proxy,omitempty" yaml:"proxy,omitempty" env:"SAGE_BOT_PROXY"`
}

type StoreConfig struct {
	Path string `json:"path" yaml:"path" env:"SAGE_STORE_PATH"`
}

type RolesConfig struct {
	Admin    []string `json:"admin" yaml:"admin" env:"SAGE_ROLES_ADMIN"`
	Staff    []string `json:"staff" yaml:"staff" env:"SAGE_ROLES_STAFF"`
	Verified []string `json:"verified" yaml:"verified" env:"SAGE_ROLES_VERIFIED"`
}

type DuelConfig struct {
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds" env:"SAGE_DUEL_TIMEOUT_SECONDS"`
}

type PollConfig struct {
	// SweepSchedule is a cron expression for closing expired polls.
	SweepSchedule string `json:"sweep_schedule" yaml:"sweep_schedule" env:"SAGE_POLL_SWEEP_SCHEDULE"`
	MaxOptions    int    `json:"max_options" yaml:"max_options" env:"SAGE_POLL_MAX_OPTIONS"`
}

type RateLimitsConfig struct {
	CommandsPerMinute int `json:"commands_per_minute" yaml:"commands_per_minute" env:"SAGE_RATE_LIMITS_COMMANDS_PER_MINUTE"`
	Burst             int `json:"burst" yaml:"burst" env:"SAGE_RATE_LIMITS_BURST"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level" env:"SAGE_LOG_LEVEL"`
	// File, when set, also writes JSON lines to this path.
	File string `json:"file" yaml:"file" env:"SAGE_LOG_FILE"`
}

func DefaultConfig() *Config {
	limits := ratelimit.DefaultConfig()
	return &Config{
		Bot: BotConfig{
			Name: "Sage",
		},
		Store: StoreConfig{
			Path: "~/.sage/sage.db",
		},
		Duel: DuelConfig{
			TimeoutSeconds: 10,
		},
		Poll: PollConfig{
			SweepSchedule: "* * * * *",
			MaxOptions:    25,
		},
		RateLimits: RateLimitsConfig{
			CommandsPerMinute: limits.CommandsPerMinute,
			Burst:             limits.Burst,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads path on top of the defaults and then applies SAGE_*
// environment overrides. A missing file is not an error. The format follows
// the extension: .yaml and .yml are YAML, anything else is JSON.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Duel.TimeoutSeconds <= 0 {
		return fmt.Errorf("duel.timeout_seconds must be positive, got %d", c.Duel.TimeoutSeconds)
	}
	if c.RateLimits.CommandsPerMinute < 0 {
		return fmt.Errorf("rate_limits.commands_per_minute must not be negative")
	}
	if c.Poll.MaxOptions < 0 {
		return fmt.Errorf("poll.max_options must not be negative")
	}
	return nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// StorePath returns the database path with ~ expanded.
func (c *Config) StorePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Store.Path)
}

func (c *Config) DuelTimeout() time.Duration {
	return time.Duration(c.Duel.TimeoutSeconds) * time.Second
}

// AdminRoles may manage commands.
func (c *Config) AdminRoles() []capability.RoleID {
	return roleIDs(c.Roles.Admin)
}

// StaffRoles hold moderation commands. Admins count as staff.
func (c *Config) StaffRoles() []capability.RoleID {
	return roleIDs(c.Roles.Admin, c.Roles.Staff)
}

// MemberRoles may use the general commands. An empty verified list leaves
// general commands open to everyone.
func (c *Config) MemberRoles() []capability.RoleID {
	if len(c.Roles.Verified) == 0 {
		return nil
	}
	return roleIDs(c.Roles.Admin, c.Roles.Staff, c.Roles.Verified)
}

func roleIDs(groups ...[]string) []capability.RoleID {
	var out []capability.RoleID
	seen := make(map[string]struct{})
	for _, group := range groups {
		for _, id := range group {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, capability.RoleID(id))
		}
	}
	return out
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
