package config

// DefaultConfig returns configuration with sensible defaults.
// These defaults are used when no config file exists or when the config
// file is missing specific fields.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Languages: []string{
				"go", "python", "rust", "typescript", "tsx", "javascript", "jsx",
			},
			Exclude: []string{
				"vendor/**",
				"node_modules/**",
				"target/**",
				"dist/**",
				"build/**",
				".git/**",
				".semfora/**",
			},
		},
		Watch: WatchConfig{
			DebounceMS:   200,
			ExtraIgnores: nil,
		},
		Daemon: DaemonConfig{
			Host:                "127.0.0.1",
			Port:                7717,
			EventThrottleMS:     500,
			QuiesceOnZeroClient: false,
		},
		Layers: LayersConfig{
			GitPollIntervalMS: 2000,
			StaleAfterCommits: 50,
			StaleAfterSeconds: 3600,
		},
		BM25: BM25Config{
			Backend:          "json",
			DuplicateJaccard: 0.85,
		},
	}
}

// Merge merges loaded config with defaults.
// Values from loaded config take precedence over defaults.
// Returns a new Config with merged values.
func Merge(loaded, defaults *Config) *Config {
	result := &Config{}
	result.Scan = mergeScanConfig(loaded.Scan, defaults.Scan)
	result.Watch = mergeWatchConfig(loaded.Watch, defaults.Watch)
	result.Daemon = mergeDaemonConfig(loaded.Daemon, defaults.Daemon)
	result.Layers = mergeLayersConfig(loaded.Layers, defaults.Layers)
	result.BM25 = mergeBM25Config(loaded.BM25, defaults.BM25)
	return result
}

func mergeScanConfig(loaded, defaults ScanConfig) ScanConfig {
	result := ScanConfig{}
	if len(loaded.Languages) > 0 {
		result.Languages = loaded.Languages
	} else {
		result.Languages = defaults.Languages
	}
	if len(loaded.Exclude) > 0 {
		result.Exclude = loaded.Exclude
	} else {
		result.Exclude = defaults.Exclude
	}
	return result
}

func mergeWatchConfig(loaded, defaults WatchConfig) WatchConfig {
	result := WatchConfig{}
	if loaded.DebounceMS > 0 {
		result.DebounceMS = loaded.DebounceMS
	} else {
		result.DebounceMS = defaults.DebounceMS
	}
	if len(loaded.ExtraIgnores) > 0 {
		result.ExtraIgnores = loaded.ExtraIgnores
	} else {
		result.ExtraIgnores = defaults.ExtraIgnores
	}
	return result
}

func mergeDaemonConfig(loaded, defaults DaemonConfig) DaemonConfig {
	result := DaemonConfig{QuiesceOnZeroClient: loaded.QuiesceOnZeroClient}
	if loaded.Host != "" {
		result.Host = loaded.Host
	} else {
		result.Host = defaults.Host
	}
	if loaded.Port != 0 {
		result.Port = loaded.Port
	} else {
		result.Port = defaults.Port
	}
	if loaded.EventThrottleMS != 0 {
		result.EventThrottleMS = loaded.EventThrottleMS
	} else {
		result.EventThrottleMS = defaults.EventThrottleMS
	}
	return result
}

func mergeLayersConfig(loaded, defaults LayersConfig) LayersConfig {
	result := LayersConfig{}
	if loaded.GitPollIntervalMS > 0 {
		result.GitPollIntervalMS = loaded.GitPollIntervalMS
	} else {
		result.GitPollIntervalMS = defaults.GitPollIntervalMS
	}
	if loaded.StaleAfterCommits > 0 {
		result.StaleAfterCommits = loaded.StaleAfterCommits
	} else {
		result.StaleAfterCommits = defaults.StaleAfterCommits
	}
	if loaded.StaleAfterSeconds > 0 {
		result.StaleAfterSeconds = loaded.StaleAfterSeconds
	} else {
		result.StaleAfterSeconds = defaults.StaleAfterSeconds
	}
	return result
}

func mergeBM25Config(loaded, defaults BM25Config) BM25Config {
	result := BM25Config{}
	if loaded.Backend != "" {
		result.Backend = loaded.Backend
	} else {
		result.Backend = defaults.Backend
	}
	if loaded.DuplicateJaccard > 0 {
		result.DuplicateJaccard = loaded.DuplicateJaccard
	} else {
		result.DuplicateJaccard = defaults.DuplicateJaccard
	}
	return result
}
