package config

import (
	"os"

	"github.com/spf13/viper"
)

// mergeEnvFiles merges KEY=VALUE pairs from the given files into v when they exist.
// Values from the process environment still win because AutomaticEnv is consulted first.
func mergeEnvFiles(v *viper.Viper, paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		v.SetConfigType("env")
		// errors are ignored; these files are a dev convenience
		_ = v.MergeInConfig()
	}
}
