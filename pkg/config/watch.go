package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch re-reads the configuration whenever the config file changes on
// disk and calls onChange with the freshly decoded result. Reloads that
// fail to decode or validate are dropped; the running configuration is
// untouched.
//
// Returns false when no config file exists to watch (the process runs
// on defaults and there is nothing to observe).
func Watch(configPath string, onChange func(*Config)) (bool, error) {
	v := viper.New()

	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return
		}
		ApplyDefaults(&cfg)
		if err := Validate(&cfg); err != nil {
			return
		}
		onChange(&cfg)
	})
	v.WatchConfig()

	return true, nil
}
