package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestVersionCmd(t *testing.T) {
	cmd := newVersionCmd("1.2.3", "abc123", "2025-01-01")
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	for _, want := range []string{"sunday-scrims version 1.2.3", "Commit: abc123", "Date: 2025-01-01"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got %q", want, out.String())
		}
	}
}

func TestInitConfigCmd(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		args    []string
		file    string
		wantErr bool
	}{
		{name: "yaml", args: []string{"--path", filepath.Join(dir, "a.yml")}, file: "a.yml"},
		{name: "toml", args: []string{"--format", "toml", "--path", filepath.Join(dir, "b.toml")}, file: "b.toml"},
		{name: "existing file", args: []string{"--path", filepath.Join(dir, "a.yml")}, wantErr: true},
		{name: "bad format", args: []string{"--format", "ini", "--path", filepath.Join(dir, "c.ini")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newInitConfigCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})

			err := cmd.Execute()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("init-config failed: %v", err)
			}
			data, err := os.ReadFile(filepath.Join(dir, tt.file))
			if err != nil {
				t.Fatalf("Expected %s to be written: %v", tt.file, err)
			}
			if !strings.Contains(string(data), "rconPassword") {
				t.Errorf("Example config missing rconPassword")
			}
		})
	}
}

func TestLogFilePath(t *testing.T) {
	got := logFilePath(time.Date(2025, 11, 21, 10, 0, 0, 0, time.UTC))
	if got != "logs/sunday-scrims.2025-11-21.log" {
		t.Errorf("logFilePath = %q", got)
	}
}

func TestReplayLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "L1018_001.log")
	log := strings.Join([]string{
		`L 10/18/2026 - 20:15:04: "Alice<2><[U:1:1001]><>" entered the game`,
		`L 10/18/2026 - 20:15:05: "Alice<2><[U:1:1001]>" switched from team <Unassigned> to <CT>`,
		`L 10/18/2026 - 20:15:06: "Bob<3><[U:1:1002]><>" entered the game`,
		`L 10/18/2026 - 20:15:07: "Bob<3><[U:1:1002]>" switched from team <Unassigned> to <TERRORIST>`,
		`L 10/18/2026 - 20:16:00: "Alice<2><[U:1:1001]><CT>" say "!balance"`,
		`L 10/18/2026 - 20:16:01: server cvars start`,
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(log), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := replayLog(&out, path, true); err != nil {
		t.Fatalf("replayLog failed: %v", err)
	}

	for _, want := range []string{
		"Lines: 6",
		"player_entered: 2",
		"chat: 1",
		"Alice: !balance",
		"Roster (2 players, ended=false)",
		"76561197960266729 CT   Alice",
		"76561197960266730 T    Bob",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}
}
