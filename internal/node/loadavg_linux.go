//go:build linux

package node

import (
	"fmt"
	"os"
	"strings"
)

// loadAverage1m reads the 1-minute load average from /proc/loadavg, the
// same source original_source's CPU-load status field sampled via
// getloadavg(3).
func loadAverage1m() (float64, error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("node: unexpected /proc/loadavg contents %q", data)
	}
	var load float64
	if _, err := fmt.Sscanf(fields[0], "%f", &load); err != nil {
		return 0, fmt.Errorf("node: parsing /proc/loadavg field %q: %w", fields[0], err)
	}
	return load, nil
}
