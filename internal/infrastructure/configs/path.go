package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/cheahlytics/internal/infrastructure/env"
)

var configFlag = flag.String("config", "", "path to config file")

// DetermineConfigPath resolves the config file from --config, CHEAHLYTICS_CONFIG
// or a list of well-known locations. An empty result means defaults only.
func DetermineConfigPath() string {
	if !flag.Parsed() {
		flag.Parse()
	}

	configPath := *configFlag

	if configPath == "" {
		configPath = env.GetString("CHEAHLYTICS_CONFIG", "")
	}

	if configPath == "" {
		configPath = firstExisting(
			"./config.yaml",
			"./config.yml",
			"../../config.yaml", // keep for local dev
			"/etc/cheahlytics/config.yaml",
			"/app/config.yaml", // common in Docker
		)
	}

	return configPath
}

func firstExisting(candidates ...string) string {
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
