package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lichtenstein.ini")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempConfig(t, "[client]\n[output]\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Client.Port != defaultPort {
		t.Errorf("Port = %d, want %d", cfg.Client.Port, defaultPort)
	}
	if cfg.Client.MulticastGroup != defaultMulticastGroup {
		t.Errorf("MulticastGroup = %q, want %q", cfg.Client.MulticastGroup, defaultMulticastGroup)
	}
	if cfg.Output.Channels != defaultChannels {
		t.Errorf("Channels = %d, want %d", cfg.Output.Channels, defaultChannels)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeTempConfig(t, `
[client]
port = 9000
listen = 10.0.0.1
advertiseAddress = 10.0.0.2
multicastGroup = 239.1.1.1
announcementIntervalInitial = 2
announcementInterval = 30

[output]
fbsize = 4096
channels = 4
backend = mock
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Client.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Client.Port)
	}
	if cfg.Client.AnnouncementIntervalInitial != 2*time.Second {
		t.Errorf("AnnouncementIntervalInitial = %v, want 2s", cfg.Client.AnnouncementIntervalInitial)
	}
	if cfg.Client.AnnouncementInterval != 30*time.Second {
		t.Errorf("AnnouncementInterval = %v, want 30s", cfg.Client.AnnouncementInterval)
	}
	if cfg.Output.FbSize != 4096 || cfg.Output.Channels != 4 {
		t.Errorf("Output = %+v, want FbSize 4096 Channels 4", cfg.Output)
	}
	if cfg.Output.Backend != "mock" {
		t.Errorf("Backend = %q, want mock", cfg.Output.Backend)
	}
}

func TestLoadChannelsAsCSVList(t *testing.T) {
	path := writeTempConfig(t, "[client]\n[output]\nchannels = 60,60,144,30\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []int{60, 60, 144, 30}
	if len(cfg.Output.ChannelList) != len(want) {
		t.Fatalf("ChannelList = %v, want %v", cfg.Output.ChannelList, want)
	}
	for i := range want {
		if cfg.Output.ChannelList[i] != want[i] {
			t.Fatalf("ChannelList = %v, want %v", cfg.Output.ChannelList, want)
		}
	}
	if cfg.Output.Channels != 4 {
		t.Errorf("Channels = %d, want 4 (derived from list length)", cfg.Output.Channels)
	}
}

func TestLoadMissingSection(t *testing.T) {
	path := writeTempConfig(t, "[client]\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing [output] section")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	path := writeTempConfig(t, "[client]\nport = 99999\n[output]\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestLoadRejectsFbSizeNotBlockAligned(t *testing.T) {
	path := writeTempConfig(t, "[client]\n[output]\nfbsize = 100\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for fbsize not a multiple of the allocator block size")
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV("a,b,c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitCSV() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitCSV() = %v, want %v", got, want)
		}
	}
	if splitCSV("") != nil {
		t.Fatal("splitCSV(\"\") should return nil")
	}
}
