// Package config defines deltasyncd's on-disk settings, loaded the
// way the teacher's lib/config loads a folder's settings: a typed
// struct with defaults applied by the zero value, unmarshaled from a
// single file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// Settings is the root configuration object for deltasyncd.
type Settings struct {
	// UseSSL selects the API pool's TLS mode; changing it invalidates
	// every pooled handle (spec §4.8).
	UseSSL bool `json:"usessl"`

	// MaxDownloadSpeed and MaxUploadSpeed are bytes/sec caps. -1 means
	// unset (pass-through), 0 means auto-shaped.
	MaxDownloadSpeed int64 `json:"maxdownloadspeed"`
	MaxUploadSpeed   int64 `json:"maxuploadspeed"`

	APIPool APIPoolSettings `json:"apipool"`

	// MirrorHosts is a fallback list used only when the API's
	// getchecksumlink response doesn't include any.
	MirrorHosts []string `json:"mirrorhosts"`

	// LocalCachePath is the goleveldb directory backing lib/localcache.
	LocalCachePath string `json:"localcachepath"`

	// IgnorePatterns are glob patterns (gobwas/glob syntax) matched
	// against file names by rmdir_with_trashes.
	IgnorePatterns []string `json:"ignorepatterns"`

	// IPCSocketPath is the external status endpoint's stream socket.
	IPCSocketPath string `json:"ipcsocketpath"`

	// SentryDSN optionally forwards Warn+ log lines via raven-go.
	SentryDSN string `json:"sentrydsn"`
}

// APIPoolSettings bounds the connection cache of spec §4.8.
type APIPoolSettings struct {
	MaxIdle     int `json:"maxidle"`
	MaxActive   int `json:"maxactive"`
	MaxIdleSecs int `json:"maxidlesec"`
}

// Defaults mirror the reference client's PSYNC_APIPOOL_* constants.
func Defaults() Settings {
	return Settings{
		UseSSL:           true,
		MaxDownloadSpeed: -1,
		MaxUploadSpeed:   -1,
		APIPool: APIPoolSettings{
			MaxIdle:     4,
			MaxActive:   16,
			MaxIdleSecs: 60,
		},
		LocalCachePath: "~/.deltasync/cache",
		IPCSocketPath:  "~/.deltasync/ipc.sock",
	}
}

// Load reads and unmarshals a YAML settings file at path, applying
// Defaults first so a partial file only overrides what it mentions.
func Load(path string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, err
	}
	s.LocalCachePath, err = expandTilde(s.LocalCachePath)
	if err != nil {
		return s, err
	}
	s.IPCSocketPath, err = expandTilde(s.IPCSocketPath)
	if err != nil {
		return s, err
	}
	return s, nil
}

// expandTilde resolves a leading "~" the way the reference client's
// getHomeDir/ExpandTilde helper does, since YAML settings commonly
// reference paths relative to the user's home directory.
func expandTilde(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
