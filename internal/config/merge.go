package config

import "time"

// CLIFlags represents configuration values provided via command-line flags.
type CLIFlags struct {
	APIAddress      string
	Timeout         time.Duration
	MaxAttempts     int
	BridgeSourceURL string
	BridgeCacheFile string
	BridgeURIs      []string
}

// MergedConfig represents the final merged configuration.
type MergedConfig struct {
	APIAddress     string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Bridge         BridgeSettings
	AccessMethods  []AccessMethodConfig
}

// BridgeSettings is the merged form of BridgeConfig.
type BridgeSettings struct {
	SourceURL              string
	CacheFile              string
	TTL                    time.Duration
	URIs                   []string
	ReloadFailureThreshold int
}

// Built-in defaults used when no other configuration is provided.
var builtInDefaults = MergedConfig{
	APIAddress:     "api.mullvad.net:443",
	Timeout:        10 * time.Second,
	MaxAttempts:    6,
	InitialBackoff: time.Second,
	MaxBackoff:     30 * time.Second,
	Bridge: BridgeSettings{
		SourceURL:              "https://api.mullvad.net/app/v1/relays",
		TTL:                    time.Hour,
		ReloadFailureThreshold: 3,
	},
}

// BuiltInDefaults returns a copy of the built-in defaults.
func BuiltInDefaults() MergedConfig {
	d := builtInDefaults
	d.Bridge.URIs = copySlice(builtInDefaults.Bridge.URIs)
	return d
}

// Merge combines configuration from the file, the selected profile and CLI flags.
// Priority: CLI > profile > defaults > built-in defaults
func Merge(app *AppConfig, profile *Profile, cli *CLIFlags) *MergedConfig {
	result := BuiltInDefaults()

	if app != nil {
		d := app.Defaults
		applyCommon(&result, d.APIAddress, d.Timeout, d.MaxAttempts, d.InitialBackoff, d.MaxBackoff)
		if d.Bridge != nil {
			mergeBridge(&result.Bridge, d.Bridge)
		}
		result.AccessMethods = copyMethods(app.AccessMethods)
	}

	if profile != nil {
		applyCommon(&result, profile.APIAddress, profile.Timeout, profile.MaxAttempts, profile.InitialBackoff, profile.MaxBackoff)
		if profile.Bridge != nil {
			mergeBridge(&result.Bridge, profile.Bridge)
		}
		if len(profile.AccessMethods) > 0 {
			result.AccessMethods = copyMethods(profile.AccessMethods)
		}
	}

	// Apply CLI settings (highest priority)
	if cli != nil {
		if cli.APIAddress != "" {
			result.APIAddress = cli.APIAddress
		}
		if cli.Timeout != 0 {
			result.Timeout = cli.Timeout
		}
		if cli.MaxAttempts != 0 {
			result.MaxAttempts = cli.MaxAttempts
		}
		if cli.BridgeSourceURL != "" {
			result.Bridge.SourceURL = cli.BridgeSourceURL
		}
		if cli.BridgeCacheFile != "" {
			result.Bridge.CacheFile = cli.BridgeCacheFile
		}
		result.Bridge.URIs = mergeStringSlices(result.Bridge.URIs, cli.BridgeURIs)
	}

	result.Bridge.CacheFile = ExpandTilde(result.Bridge.CacheFile)
	return &result
}

func applyCommon(result *MergedConfig, address string, timeout Duration, attempts int, initial, max Duration) {
	if address != "" {
		result.APIAddress = address
	}
	if timeout != 0 {
		result.Timeout = timeout.Std()
	}
	if attempts != 0 {
		result.MaxAttempts = attempts
	}
	if initial != 0 {
		result.InitialBackoff = initial.Std()
	}
	if max != 0 {
		result.MaxBackoff = max.Std()
	}
}

// mergeBridge overlays set fields of src onto dst. URI lists accumulate.
func mergeBridge(dst *BridgeSettings, src *BridgeConfig) {
	if src.SourceURL != "" {
		dst.SourceURL = src.SourceURL
	}
	if src.CacheFile != "" {
		dst.CacheFile = src.CacheFile
	}
	if src.TTL != 0 {
		dst.TTL = src.TTL.Std()
	}
	if src.ReloadFailureThreshold != nil {
		dst.ReloadFailureThreshold = *src.ReloadFailureThreshold
	}
	dst.URIs = mergeStringSlices(dst.URIs, src.URIs)
}

func copyMethods(src []AccessMethodConfig) []AccessMethodConfig {
	if src == nil {
		return nil
	}
	out := make([]AccessMethodConfig, len(src))
	copy(out, src)
	return out
}

// copySlice creates a copy of a string slice.
func copySlice(src []string) []string {
	if src == nil {
		return nil
	}
	result := make([]string, len(src))
	copy(result, src)
	return result
}

// mergeStringSlices merges two slices, avoiding duplicates.
func mergeStringSlices(base, additional []string) []string {
	if len(additional) == 0 {
		return base
	}

	seen := make(map[string]bool)
	result := make([]string, 0, len(base)+len(additional))

	for _, s := range base {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range additional {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	return result
}
