// Package config collects the runtime settings of the daemon.
package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Addr             string
	DBPath           string
	OUIPath          string
	APIKeyHash       string // bcrypt hash; empty disables API auth
	OperatingChannel int
	HwScanOffload    bool
	Debug            bool
	Trace            bool

	// Simulated air, comma separated "ssid@channel" entries.
	SimNetworks []string
}

// Load parses command line flags and environment variables. Flags take
// precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	cfg.Addr = getEnv("MLMED_ADDR", ":8080")
	cfg.DBPath = getEnv("MLMED_DB", defaultDBPath("scans.db"))
	cfg.OUIPath = getEnv("MLMED_OUI_DB", defaultDBPath("oui.db"))
	cfg.APIKeyHash = getEnv("MLMED_API_KEY_HASH", "")
	cfg.OperatingChannel = getEnvInt("MLMED_CHANNEL", 1)
	cfg.HwScanOffload = getEnvBool("MLMED_HW_SCAN", false)
	simStr := getEnv("MLMED_SIM_NETWORKS", "HomeNetwork@6,CoffeeShop@11")

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the scan result database")
	flag.StringVar(&cfg.OUIPath, "oui-db", cfg.OUIPath, "Path to the OUI vendor database")
	flag.StringVar(&cfg.APIKeyHash, "api-key-hash", cfg.APIKeyHash, "bcrypt hash gating the API (empty disables auth)")
	flag.IntVar(&cfg.OperatingChannel, "channel", cfg.OperatingChannel, "Operating channel the radio parks on")
	flag.BoolVar(&cfg.HwScanOffload, "hw-scan", cfg.HwScanOffload, "Advertise hardware scan offload")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")
	flag.BoolVar(&cfg.Trace, "trace", false, "Export traces to stdout")
	flag.StringVar(&simStr, "sim-networks", simStr, "Simulated networks as ssid@channel, comma separated")

	flag.Parse()

	cfg.SimNetworks = splitList(simStr)
	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// defaultDBPath places databases under ~/.mlmed, falling back to the
// current directory when home is unavailable.
func defaultDBPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("warning: no home directory, using current dir: %v", err)
		return name
	}
	dir := filepath.Join(home, ".mlmed")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("warning: could not create %s, using current dir: %v", dir, err)
		return name
	}
	return filepath.Join(dir, name)
}
