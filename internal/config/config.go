package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sunday-scrims/assets"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Name         string `mapstructure:"name"`
	LogDir       string `mapstructure:"logDir"`
	RconAddress  string `mapstructure:"rconAddress"`
	RconPassword string `mapstructure:"rconPassword"`
	RconTimeout  int    `mapstructure:"rconTimeout"` // timeout in seconds, default 5
	QueryAddress string `mapstructure:"queryAddress"` // A2S address; empty disables server queries
}

type EngineConfig struct {
	TickMillis int `mapstructure:"tickMillis"`
}

// CommandsConfig holds the RCON command templates. {steamid}, {team} and {text} are substituted.
type CommandsConfig struct {
	SwitchTeam string `mapstructure:"switchTeam"`
	Tell       string `mapstructure:"tell"`
	Restart    string `mapstructure:"restart"`
	Broadcast  string `mapstructure:"broadcast"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"` // Number of rotated log files to keep (default: 5)
}

type HistoryConfig struct {
	RetentionDays int `mapstructure:"retentionDays"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Commands CommandsConfig `mapstructure:"commands"`
	Admins   []string       `mapstructure:"admins"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	History  HistoryConfig  `mapstructure:"history"`
}

func setDefaults() {
	viper.SetDefault("server.name", "Sunday Scrims")
	viper.SetDefault("server.logDir", "")
	viper.SetDefault("server.rconAddress", "127.0.0.1:27015")
	viper.SetDefault("server.rconPassword", "")
	viper.SetDefault("server.rconTimeout", 5)
	viper.SetDefault("server.queryAddress", "")
	viper.SetDefault("engine.tickMillis", 100)
	viper.SetDefault("commands.switchTeam", "css_swap {steamid} {team}")
	viper.SetDefault("commands.tell", `css_psay {steamid} "{text}"`)
	viper.SetDefault("commands.restart", "mp_restartgame 1")
	viper.SetDefault("commands.broadcast", "say {text}")
	viper.SetDefault("admins", []string{})
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.maxSizeMB", 10)
	viper.SetDefault("logging.maxBackups", 5)
	viper.SetDefault("history.retentionDays", 90)
}

// Load reads sunday-scrims.yml or sunday-scrims.toml from the working directory.
// A missing file is not an error; defaults and environment variables still apply.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	viper.SetConfigName("sunday-scrims")
	viper.AddConfigPath(".")

	// SCRIMS_SERVER_LOGDIR, SCRIMS_ENGINE_TICKMILLIS, ...
	viper.SetEnvPrefix("SCRIMS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.BindEnv("server.rconPassword", "RCON_PASSWORD")

	setDefaults()

	// Try YAML first, then TOML
	viper.SetConfigType("yml")
	if err := viper.ReadInConfig(); err != nil {
		viper.SetConfigType("toml")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &config, nil
}

// Validate checks the fields the serve command needs
func (c *Config) Validate() error {
	if c.Server.LogDir == "" {
		return fmt.Errorf("server is missing 'logDir' field")
	}
	if c.Server.RconAddress == "" {
		return fmt.Errorf("server is missing 'rconAddress' field")
	}
	if c.Server.RconPassword == "" {
		return fmt.Errorf("server is missing 'rconPassword' field (or RCON_PASSWORD env)")
	}
	if c.Engine.TickMillis <= 0 {
		return fmt.Errorf("engine 'tickMillis' must be positive, got %d", c.Engine.TickMillis)
	}
	if !strings.Contains(c.Commands.SwitchTeam, "{steamid}") {
		return fmt.Errorf("commands 'switchTeam' must contain {steamid}")
	}
	if !strings.Contains(c.Commands.Tell, "{steamid}") {
		return fmt.Errorf("commands 'tell' must contain {steamid}")
	}
	if c.Commands.Restart == "" {
		return fmt.Errorf("commands is missing 'restart' field")
	}
	if !strings.Contains(c.Commands.Broadcast, "{text}") {
		return fmt.Errorf("commands 'broadcast' must contain {text}")
	}
	for i, admin := range c.Admins {
		if _, err := strconv.ParseUint(admin, 10, 64); err != nil {
			return fmt.Errorf("admin at index %d is not a SteamID64: %q", i, admin)
		}
	}
	return nil
}

// TickInterval is how often the engine drains its action queue
func (c *Config) TickInterval() time.Duration {
	if c.Engine.TickMillis <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.Engine.TickMillis) * time.Millisecond
}

// RconTimeoutDuration returns the RCON dial and I/O timeout
func (c *Config) RconTimeoutDuration() time.Duration {
	if c.Server.RconTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Server.RconTimeout) * time.Second
}

// IsAdmin reports whether steamID may run admin chat commands. An empty list allows everyone.
func (c *Config) IsAdmin(steamID string) bool {
	if len(c.Admins) == 0 {
		return true
	}
	for _, admin := range c.Admins {
		if admin == steamID {
			return true
		}
	}
	return false
}

// GenerateExample writes an example config file to the specified path
// format can be "yml" or "toml"
func GenerateExample(path string, format string) error {
	return assets.WriteExampleConfig(path, format)
}

// Exists checks if a config file exists in the current directory
func Exists() bool {
	for _, name := range []string{"sunday-scrims.yml", "sunday-scrims.yaml", "sunday-scrims.toml"} {
		if _, err := os.Stat(name); err == nil {
			return true
		}
	}
	return false
}
