// Package config provides configuration loading and defaults for the STiB daemon.
//
// Configuration is loaded from a TOML file in the user's data directory and
// overlaid on [DefaultConfig]. Secrets (bot token, recipient chat) may also
// come from the environment; see [Config.ResolveSecrets].
package config

//go:generate go run ../../cmd/genconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/stib/internal/paths"
)

// CurrentVersion is the config schema version this build understands.
const CurrentVersion = 1

// DefaultAPIEndpoint is the Telegram Bot API endpoint format: the first verb
// receives the bot token, the second the method name.
const DefaultAPIEndpoint = "https://api.telegram.org/bot%s/%s"

// Environment variables consulted by [Config.ResolveSecrets].
const (
	EnvChatID        = "STIB_CHAT_ID"
	EnvBotSecret     = "STIB_BOT_SECRET"
	EnvBotSecretFile = "STIB_BOT_SECRET_FILE"
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

var (
	// ErrMissingToken is returned when no bot token is configured anywhere.
	ErrMissingToken = errors.New("bot token not configured")
	// ErrMissingChatID is returned when no recipient chat id is configured.
	ErrMissingChatID = errors.New("chat id not configured")
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version.
	Version int `toml:"version"`
	// Telegram holds chat platform connection settings.
	Telegram TelegramConfig `toml:"telegram"`
	// Timer holds the clock, monitor and throttle settings.
	Timer TimerConfig `toml:"timer"`
	// Messages holds every user-visible text the bot sends.
	Messages MessagesConfig `toml:"messages"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// TelegramConfig holds Telegram Bot API settings.
type TelegramConfig struct {
	// ChatID is the single recipient of reminders and lifecycle notices.
	ChatID int64 `toml:"chat_id"`
	// BotToken is the bot secret. Prefer the environment or BotTokenFile.
	BotToken string `toml:"bot_token,omitempty"`
	// BotTokenFile is a path to a file holding the bot secret.
	BotTokenFile string `toml:"bot_token_file,omitempty"`
	// APIEndpoint is the Bot API URL format (token, method).
	APIEndpoint string `toml:"api_endpoint"`
	// PollTimeoutSeconds is the long-poll timeout for getUpdates.
	PollTimeoutSeconds int `toml:"poll_timeout_seconds"`
	// RetryMax is how many times a failed API request is retried.
	RetryMax int `toml:"retry_max"`
	// AllowOtherChats accepts commands from chats other than ChatID.
	AllowOtherChats bool `toml:"allow_other_chats"`
}

// TimerConfig holds the screen time clock and reminder settings.
type TimerConfig struct {
	// NotificationThreshold is the elapsed tick count that must be exceeded
	// before any reminder is sent.
	NotificationThreshold int64 `toml:"notification_threshold"`
	// NotificationTimeout is the tick gap that must be exceeded between two
	// consecutive reminders.
	NotificationTimeout int64 `toml:"notification_timeout"`
	// TickIntervalMS is the clock tick length in milliseconds.
	TickIntervalMS int `toml:"tick_interval_ms"`
	// PollIntervalMS is the monitor poll interval in milliseconds.
	PollIntervalMS int `toml:"poll_interval_ms"`
	// ResetOnStop zeroes the elapsed time when the clock is stopped.
	ResetOnStop bool `toml:"reset_on_stop"`
	// AdvanceOnFailure advances the throttle window even when a reminder
	// could not be delivered.
	AdvanceOnFailure bool `toml:"advance_on_failure"`
}

// MessagesConfig holds every message template the bot sends.
type MessagesConfig struct {
	// Greeting is sent to the recipient when the daemon starts.
	Greeting string `toml:"greeting"`
	// ShuttingDown is sent when a graceful shutdown begins.
	ShuttingDown string `toml:"shutting_down"`
	// Critical is sent when the daemon hits an internal error.
	Critical string `toml:"critical"`
	// Farewell is sent on every exit path.
	Farewell string `toml:"farewell"`
	// Started is the reply to /start.
	Started string `toml:"started"`
	// Stopped is the reply to /stop; {elapsed} is replaced with HH:MM:SS.
	Stopped string `toml:"stopped"`
	// Status is the reply to /status; supports {state} and {elapsed}.
	Status string `toml:"status"`
	// Help is the reply to /help.
	Help string `toml:"help"`
	// Prompts is the reminder pool; one is picked at random per reminder.
	Prompts []string `toml:"prompts"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
	// Console mirrors log lines to stderr.
	Console bool `toml:"console"`
}

// Secrets holds the resolved credentials needed to reach the recipient.
type Secrets struct {
	Token  string
	ChatID int64
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultPrompts is the built-in reminder pool.
var DefaultPrompts = []string{
	"Hey, it's been a while since you've looked away. Take a moment to stretch!",
	"Ahoy, did you know 5 minutes of sunlight can rejuvenate your focus?!",
	"Hi there, take a moment to walk around and focus on your breathing!",
	"Greetings! Let's recenter; how about a walk?",
}

// defaultHelp is the reply to /help.
const defaultHelp = `Here's a list of available commands:
/help    see this menu again.
/start   start the screen time timer.
/stop    stop the timer and see your screen time.
/status  check whether the timer is running.`

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Telegram: TelegramConfig{
			APIEndpoint:        DefaultAPIEndpoint,
			PollTimeoutSeconds: 60,
			RetryMax:           3,
		},
		Timer: TimerConfig{
			NotificationThreshold: 10,
			NotificationTimeout:   20,
			TickIntervalMS:        1000,
			PollIntervalMS:        500,
			ResetOnStop:           false,
			AdvanceOnFailure:      true,
		},
		Messages: MessagesConfig{
			Greeting:     "Hello, my name is STiB, and I am your ScreenTimeBuddy.",
			ShuttingDown: "STiB is shutting down...",
			Critical:     "STiB ran into a critical internal error!",
			Farewell:     "STiB is going offline; keep up those healthy habits!",
			Started:      "Started the clock!",
			Stopped:      "Stopped the clock!\nYou were on your screen for {elapsed}",
			Status:       "The clock is {state}.\nScreen time so far: {elapsed}",
			Help:         defaultHelp,
			Prompts:      append([]string(nil), DefaultPrompts...),
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
			Console:   true,
		},
	}
}

// ExampleConfig returns a Config suitable for generating config.default.toml.
// The bundled defaults are good examples, so this is [DefaultConfig].
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// Loading
// ///////////////////////////////////////////////

// Load reads and parses dataDir/config.toml over [DefaultConfig] and
// validates the result. A missing file yields the defaults.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Version > CurrentVersion {
		return fmt.Errorf("config version %d is newer than supported version %d", c.Version, CurrentVersion)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	if c.Timer.NotificationThreshold < 0 {
		return fmt.Errorf("timer.notification_threshold must be >= 0, got %d", c.Timer.NotificationThreshold)
	}
	if c.Timer.NotificationTimeout < 0 {
		return fmt.Errorf("timer.notification_timeout must be >= 0, got %d", c.Timer.NotificationTimeout)
	}
	if c.Timer.TickIntervalMS <= 0 {
		return fmt.Errorf("timer.tick_interval_ms must be > 0, got %d", c.Timer.TickIntervalMS)
	}
	if c.Timer.PollIntervalMS <= 0 {
		return fmt.Errorf("timer.poll_interval_ms must be > 0, got %d", c.Timer.PollIntervalMS)
	}

	if c.Telegram.PollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.poll_timeout_seconds must be >= 0, got %d", c.Telegram.PollTimeoutSeconds)
	}
	if c.Telegram.RetryMax < 0 {
		return fmt.Errorf("telegram.retry_max must be >= 0, got %d", c.Telegram.RetryMax)
	}
	if strings.Count(c.Telegram.APIEndpoint, "%s") != 2 {
		return fmt.Errorf("invalid telegram.api_endpoint %q: must contain two %%s verbs (token, method)", c.Telegram.APIEndpoint)
	}

	if len(c.Messages.Prompts) == 0 {
		return errors.New("messages.prompts must contain at least one prompt")
	}
	for i, p := range c.Messages.Prompts {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("messages.prompts[%d] is empty", i)
		}
	}
	return nil
}

// ///////////////////////////////////////////////
// Secrets
// ///////////////////////////////////////////////

// ResolveSecrets determines the bot token and recipient chat id. Sources are
// consulted in order, first non-empty wins:
//
//   - token: $STIB_BOT_SECRET_FILE, $STIB_BOT_SECRET, telegram.bot_token_file,
//     telegram.bot_token
//   - chat id: $STIB_CHAT_ID, telegram.chat_id
//
// lookup is normally [os.LookupEnv]. Missing values are reported with
// [ErrMissingToken] and [ErrMissingChatID].
func (c *Config) ResolveSecrets(lookup func(string) (string, bool)) (Secrets, error) {
	var s Secrets

	token, err := c.resolveToken(lookup)
	if err != nil {
		return s, err
	}
	s.Token = token

	s.ChatID = c.Telegram.ChatID
	if raw, ok := lookup(EnvChatID); ok && strings.TrimSpace(raw) != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return s, fmt.Errorf("invalid %s: %w", EnvChatID, err)
		}
		s.ChatID = id
	}
	if s.ChatID == 0 {
		return s, fmt.Errorf("%w: set %s or telegram.chat_id", ErrMissingChatID, EnvChatID)
	}
	return s, nil
}

// resolveToken walks the token sources described on [Config.ResolveSecrets].
func (c *Config) resolveToken(lookup func(string) (string, bool)) (string, error) {
	if path, ok := lookup(EnvBotSecretFile); ok && path != "" {
		tok, err := readTokenFile(path)
		if err != nil {
			return "", err
		}
		if tok != "" {
			return tok, nil
		}
	}
	if tok, ok := lookup(EnvBotSecret); ok && strings.TrimSpace(tok) != "" {
		return strings.TrimSpace(tok), nil
	}
	if c.Telegram.BotTokenFile != "" {
		tok, err := readTokenFile(c.Telegram.BotTokenFile)
		if err != nil {
			return "", err
		}
		if tok != "" {
			return tok, nil
		}
	}
	if tok := strings.TrimSpace(c.Telegram.BotToken); tok != "" {
		return tok, nil
	}
	return "", fmt.Errorf("%w: set %s, %s or telegram.bot_token", ErrMissingToken, EnvBotSecret, EnvBotSecretFile)
}

// readTokenFile returns the whitespace-trimmed contents of path.
func readTokenFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// ///////////////////////////////////////////////
// Duration Helpers
// ///////////////////////////////////////////////

// TickInterval returns the clock tick length.
func (t TimerConfig) TickInterval() time.Duration {
	return time.Duration(t.TickIntervalMS) * time.Millisecond
}

// PollInterval returns the monitor poll interval.
func (t TimerConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMS) * time.Millisecond
}

// PollTimeout returns the getUpdates long-poll timeout.
func (t TelegramConfig) PollTimeout() time.Duration {
	return time.Duration(t.PollTimeoutSeconds) * time.Second
}
