// Package config loads the INI-format configuration file (the client and
// output sections in spec.md §6) into a typed, validated Config.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/tristanseifert/lichtenstein-client/internal/backend"
	"github.com/tristanseifert/lichtenstein-client/internal/fballoc"
)

// ErrMissingSection is a ConfigError per spec.md §7: a fatal startup
// failure when a required INI section is absent.
var ErrMissingSection = errors.New("config: missing required section")

const (
	defaultPort                       = 7420
	defaultMulticastGroup             = "239.42.0.69"
	defaultAnnouncementIntervalInit   = 1 * time.Second
	defaultAnnouncementIntervalSteady = 10 * time.Second
	defaultFbSize                     = 8192
	defaultChannels                   = 8
	defaultBackend                    = "null"
)

// Client holds the [client] section.
type Client struct {
	Port                        int
	Listen                      string
	AdvertiseAddress            string
	MulticastGroup              string
	AnnouncementIntervalInitial time.Duration
	AnnouncementInterval        time.Duration
}

// Output holds the [output] section. Channels is the logical channel
// count. When the config expresses channels as an explicit CSV list of
// per-channel LED counts rather than a bare count, ChannelList holds
// that list and Channels is its length (see splitCSV).
type Output struct {
	FbSize      int
	Channels    int
	ChannelList []int
	Backend     string
}

// Config is the fully parsed, validated configuration.
type Config struct {
	Client Client
	Output Output
}

// Load reads and validates the INI file at path. Every failure here is a
// ConfigError and is fatal at startup per spec.md §7 — callers are
// expected to log and exit, not retry.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: loading %s: %w", path, err)
	}

	if !f.HasSection("client") {
		return nil, fmt.Errorf("%w: [client]", ErrMissingSection)
	}
	if !f.HasSection("output") {
		return nil, fmt.Errorf("%w: [output]", ErrMissingSection)
	}
	clientSection := f.Section("client")
	outputSection := f.Section("output")

	cfg := &Config{
		Client: Client{
			Port:                        clientSection.Key("port").MustInt(defaultPort),
			Listen:                      clientSection.Key("listen").MustString("0.0.0.0"),
			AdvertiseAddress:            clientSection.Key("advertiseAddress").String(),
			MulticastGroup:              clientSection.Key("multicastGroup").MustString(defaultMulticastGroup),
			AnnouncementIntervalInitial: durationSeconds(clientSection.Key("announcementIntervalInitial").MustFloat64(defaultAnnouncementIntervalInit.Seconds())),
			AnnouncementInterval:        durationSeconds(clientSection.Key("announcementInterval").MustFloat64(defaultAnnouncementIntervalSteady.Seconds())),
		},
		Output: Output{
			FbSize:   outputSection.Key("fbsize").MustInt(defaultFbSize),
			Backend:  outputSection.Key("backend").MustString(defaultBackend),
		},
	}

	channelsRaw := outputSection.Key("channels").String()
	if channelsRaw == "" {
		cfg.Output.Channels = defaultChannels
	} else if n, err := strconv.Atoi(strings.TrimSpace(channelsRaw)); err == nil {
		cfg.Output.Channels = n
	} else {
		list := splitCSVInts(channelsRaw)
		cfg.Output.ChannelList = list
		cfg.Output.Channels = len(list)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Client.Port <= 0 || c.Client.Port > 65535 {
		return fmt.Errorf("config: bad port %d", c.Client.Port)
	}
	if c.Output.FbSize <= 0 || c.Output.FbSize%fballoc.BlockSize != 0 {
		return fmt.Errorf("config: output.fbsize %d must be a positive multiple of %d", c.Output.FbSize, fballoc.BlockSize)
	}
	if c.Output.Channels <= 0 || c.Output.Channels > backend.NumChannels {
		return fmt.Errorf("config: output.channels %d must be between 1 and %d", c.Output.Channels, backend.NumChannels)
	}
	return nil
}

func durationSeconds(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// splitCSVInts generalizes original_source's parseCsvList(string,
// vector<int>, radix) into a single comma-separated decimal list parser:
// unparseable entries are skipped rather than aborting the whole list, to
// match the original's tolerant per-entry behavior.
func splitCSVInts(in string) []int {
	fields := splitCSV(in)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// splitCSV splits a comma-separated list the way original_source's
// parseCsvList(string, vector<string>) does: no trimming of individual
// fields beyond what the caller needs, empty trailing fields preserved.
func splitCSV(in string) []string {
	if in == "" {
		return nil
	}
	return strings.Split(in, ",")
}
