package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// chdir switches to dir for the duration of the test and resets viper state.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(oldWd)
		viper.Reset()
	})
	viper.Reset()
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	yamlContent := `
server:
  name: "Test Scrims"
  logDir: "/test/logs"
  rconAddress: "127.0.0.1:27015"
  rconPassword: "testpass"
  rconTimeout: 10

engine:
  tickMillis: 50

commands:
  switchTeam: "sm_team {steamid} {team}"

admins:
  - "76561198000000001"

logging:
  level: "debug"
  maxBackups: 3
`
	if err := os.WriteFile(filepath.Join(tmpDir, "sunday-scrims.yml"), []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	chdir(t, tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Name != "Test Scrims" {
		t.Errorf("Server name = %s, want Test Scrims", cfg.Server.Name)
	}
	if cfg.Server.RconTimeout != 10 {
		t.Errorf("RconTimeout = %d, want 10", cfg.Server.RconTimeout)
	}
	if cfg.TickInterval() != 50*time.Millisecond {
		t.Errorf("TickInterval() = %v, want 50ms", cfg.TickInterval())
	}
	if cfg.Commands.SwitchTeam != "sm_team {steamid} {team}" {
		t.Errorf("SwitchTeam = %q", cfg.Commands.SwitchTeam)
	}
	// untouched keys keep their defaults
	if cfg.Commands.Restart != "mp_restartgame 1" {
		t.Errorf("Restart = %q, want default", cfg.Commands.Restart)
	}
	if len(cfg.Admins) != 1 || cfg.Admins[0] != "76561198000000001" {
		t.Errorf("Admins = %v", cfg.Admins)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.MaxBackups != 3 {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.History.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want default 90", cfg.History.RetentionDays)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	tomlContent := `
admins = ["76561198000000002"]

[server]
name = "TOML Scrims"
logDir = "/toml/logs"
rconPassword = "tomlpass"
rconTimeout = 15

[history]
retentionDays = 30
`
	if err := os.WriteFile(filepath.Join(tmpDir, "sunday-scrims.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	chdir(t, tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Name != "TOML Scrims" {
		t.Errorf("Server name = %s, want TOML Scrims", cfg.Server.Name)
	}
	if cfg.RconTimeoutDuration() != 15*time.Second {
		t.Errorf("RconTimeoutDuration() = %v, want 15s", cfg.RconTimeoutDuration())
	}
	if cfg.Server.RconAddress != "127.0.0.1:27015" {
		t.Errorf("RconAddress = %s, want default", cfg.Server.RconAddress)
	}
	if cfg.History.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", cfg.History.RetentionDays)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.TickMillis != 100 {
		t.Errorf("TickMillis = %d, want 100", cfg.Engine.TickMillis)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging level = %s, want info", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail without logDir and password")
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "sunday-scrims.yml"), []byte("server:\n  logDir: /from/file\n  rconPassword: filepass\n"), 0644); err != nil {
		t.Fatal(err)
	}
	chdir(t, tmpDir)

	t.Setenv("RCON_PASSWORD", "envpass")
	t.Setenv("SCRIMS_ENGINE_TICKMILLIS", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.RconPassword != "envpass" {
		t.Errorf("RconPassword = %s, want envpass", cfg.Server.RconPassword)
	}
	if cfg.Engine.TickMillis != 250 {
		t.Errorf("TickMillis = %d, want 250", cfg.Engine.TickMillis)
	}
	if cfg.Server.LogDir != "/from/file" {
		t.Errorf("LogDir = %s, want /from/file", cfg.Server.LogDir)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("SCRIMS_SERVER_NAME=From Dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	chdir(t, tmpDir)
	t.Cleanup(func() { os.Unsetenv("SCRIMS_SERVER_NAME") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Name != "From Dotenv" {
		t.Errorf("Server name = %q, want From Dotenv", cfg.Server.Name)
	}
}

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:         "Test",
			LogDir:       "/logs",
			RconAddress:  "127.0.0.1:27015",
			RconPassword: "pass",
		},
		Engine: EngineConfig{TickMillis: 100},
		Commands: CommandsConfig{
			SwitchTeam: "css_swap {steamid} {team}",
			Tell:       "css_psay {steamid} \"{text}\"",
			Restart:    "mp_restartgame 1",
			Broadcast:  "say {text}",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing logDir", mutate: func(c *Config) { c.Server.LogDir = "" }, errContains: "missing 'logDir' field"},
		{name: "missing rconAddress", mutate: func(c *Config) { c.Server.RconAddress = "" }, errContains: "missing 'rconAddress' field"},
		{name: "missing rconPassword", mutate: func(c *Config) { c.Server.RconPassword = "" }, errContains: "missing 'rconPassword' field"},
		{name: "zero tick", mutate: func(c *Config) { c.Engine.TickMillis = 0 }, errContains: "tickMillis"},
		{name: "switch template without steamid", mutate: func(c *Config) { c.Commands.SwitchTeam = "jointeam {team}" }, errContains: "switchTeam"},
		{name: "tell template without steamid", mutate: func(c *Config) { c.Commands.Tell = "say {text}" }, errContains: "tell"},
		{name: "missing restart", mutate: func(c *Config) { c.Commands.Restart = "" }, errContains: "restart"},
		{name: "broadcast without text", mutate: func(c *Config) { c.Commands.Broadcast = "say" }, errContains: "broadcast"},
		{name: "bad admin id", mutate: func(c *Config) { c.Admins = []string{"STEAM_1:0:1"} }, errContains: "not a SteamID64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.errContains != "" {
				if err == nil {
					t.Error("Validate() expected error but got nil")
					return
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Validate() error = %v, should contain %q", err, tt.errContains)
				}
				return
			}

			if err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := validConfig()
	if !cfg.IsAdmin("76561198000000009") {
		t.Error("empty admin list should allow everyone")
	}

	cfg.Admins = []string{"76561198000000001"}
	if !cfg.IsAdmin("76561198000000001") {
		t.Error("listed admin rejected")
	}
	if cfg.IsAdmin("76561198000000009") {
		t.Error("unlisted player accepted")
	}
}

func TestGenerateExample(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "sunday-scrims.yml")

	if err := GenerateExample(path, "yml"); err != nil {
		t.Fatalf("GenerateExample() error = %v", err)
	}
	chdir(t, tmpDir)
	if !Exists() {
		t.Error("Exists() = false after generating example")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() of generated example error = %v", err)
	}
	if cfg.Server.LogDir == "" {
		t.Error("generated example should set logDir")
	}

	if err := GenerateExample(path, "yml"); err == nil {
		t.Error("GenerateExample() should refuse to overwrite")
	}
}
