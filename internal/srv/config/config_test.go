package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeParam(t *testing.T, dir string, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, paramFilename), []byte(content), 0660); err != nil {
		t.Fatal(err)
	}
}

func TestNewServerConfigCreatesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "epdframe")

	serverConfig, err := NewServerConfig(dir, false, false)
	if err != nil {
		t.Fatalf("NewServerConfig() error = %v", err)
	}

	if _, err := os.Stat(serverConfig.GetCompleteParamFilename()); err != nil {
		t.Errorf("default param file not written: %v", err)
	}
	if serverConfig.ServerUrl != "http://localhost:8080" {
		t.Errorf("ServerUrl = %q", serverConfig.ServerUrl)
	}
	if serverConfig.UpdateInterval != 60*time.Second {
		t.Errorf("UpdateInterval = %v", serverConfig.UpdateInterval)
	}
	if serverConfig.AppSwitchInterval != time.Hour {
		t.Errorf("AppSwitchInterval = %v", serverConfig.AppSwitchInterval)
	}
	if serverConfig.ButtonsParam.Debounce != 100*time.Millisecond {
		t.Errorf("Debounce = %v", serverConfig.ButtonsParam.Debounce)
	}
	if serverConfig.DisplayParam.Driver != WAVESHARE_7IN5_V2_DRIVER {
		t.Errorf("display driver = %q", serverConfig.DisplayParam.Driver)
	}
	if got, want := serverConfig.GetCompleteLogFilename(), filepath.Join(dir, "logs", "service.log"); got != want {
		t.Errorf("GetCompleteLogFilename() = %q, want %q", got, want)
	}
}

func TestNewServerConfigReadsParamFile(t *testing.T) {
	dir := t.TempDir()
	writeParam(t, dir, `
server_url: https://frames.example.org/base
update_interval: 2m
log_file: /var/log/epdframe.log
display:
  rotation: 180
`)

	serverConfig, err := NewServerConfig(dir, false, false)
	if err != nil {
		t.Fatalf("NewServerConfig() error = %v", err)
	}
	if serverConfig.ServerUrl != "https://frames.example.org/base" {
		t.Errorf("ServerUrl = %q", serverConfig.ServerUrl)
	}
	if serverConfig.UpdateInterval != 2*time.Minute {
		t.Errorf("UpdateInterval = %v", serverConfig.UpdateInterval)
	}
	// Keys missing from the file keep their default value
	if serverConfig.HttpTimeout != 5*time.Second {
		t.Errorf("HttpTimeout = %v", serverConfig.HttpTimeout)
	}
	if serverConfig.DisplayParam.Rotation != 180 {
		t.Errorf("Rotation = %d", serverConfig.DisplayParam.Rotation)
	}
	if serverConfig.DisplayParam.BusyPin != "GPIO24" {
		t.Errorf("BusyPin = %q", serverConfig.DisplayParam.BusyPin)
	}
	if got := serverConfig.GetCompleteLogFilename(); got != "/var/log/epdframe.log" {
		t.Errorf("GetCompleteLogFilename() = %q", got)
	}
}

func TestNewServerConfigSimulationMode(t *testing.T) {
	serverConfig, err := NewServerConfig(t.TempDir(), true, true)
	if err != nil {
		t.Fatalf("NewServerConfig() error = %v", err)
	}
	if serverConfig.DisplayParam.Driver != SIMULATION_DRIVER {
		t.Errorf("display driver = %q, want simulation", serverConfig.DisplayParam.Driver)
	}
	if serverConfig.ButtonsParam.Driver != NO_BUTTONS_DRIVER {
		t.Errorf("buttons driver = %q, want none", serverConfig.ButtonsParam.Driver)
	}
}

func TestNewServerConfigRejectsInvalidParam(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "relative url", content: "server_url: /frames", wantErr: "absolute"},
		{name: "unsupported scheme", content: "server_url: ftp://host", wantErr: "absolute"},
		{name: "zero interval", content: "update_interval: 0s", wantErr: "update_interval"},
		{name: "negative timeout", content: "http_timeout: -1s", wantErr: "http_timeout"},
		{name: "bad rotation", content: "display:\n  rotation: 45", wantErr: "rotation"},
		{name: "unknown display", content: "display:\n  driver: crt", wantErr: "display driver"},
		{name: "unknown buttons", content: "buttons:\n  driver: joystick", wantErr: "buttons driver"},
		{name: "api without key", content: "api:\n  enabled: true\n  api_key: \"\"", wantErr: "api_key"},
		{name: "malformed yaml", content: "server_url: [", wantErr: "interpret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeParam(t, dir, tt.content)
			_, err := NewServerConfig(dir, false, false)
			if err == nil {
				t.Fatalf("NewServerConfig() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewServerConfig() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestOpenLogFileAppends(t *testing.T) {
	serverConfig, err := NewServerConfig(t.TempDir(), false, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{"first\n", "second\n"} {
		f, err := serverConfig.OpenLogFile()
		if err != nil {
			t.Fatalf("OpenLogFile() error = %v", err)
		}
		if _, err := f.WriteString(line); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	content, err := os.ReadFile(serverConfig.GetCompleteLogFilename())
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "first\nsecond\n" {
		t.Errorf("log content = %q", content)
	}
}
