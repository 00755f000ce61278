// Package settings loads the oftopo configuration file.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/oftopo/pkg/journal"
	"github.com/newtron-network/oftopo/pkg/oftopo"
	"github.com/newtron-network/oftopo/pkg/statedb"
	"github.com/newtron-network/oftopo/pkg/util"
)

// Settings is the oftopo configuration
type Settings struct {
	// ReconnectTimeout is how long a disconnected switch keeps its identity
	ReconnectTimeout time.Duration `yaml:"reconnect_timeout"`

	// RequiredComponents must all be registered before the adaptor starts
	RequiredComponents []string `yaml:"required_components"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text or json

	StateDB StateDBSettings `yaml:"statedb"`
	Journal JournalSettings `yaml:"journal"`
	Metrics MetricsSettings `yaml:"metrics"`
}

// StateDBSettings selects the Redis mirror. The mirror is disabled unless
// Addr or SSHHost is set. Behind ssh_host, addr is resolved on that host.
type StateDBSettings struct {
	Addr          string `yaml:"addr"`
	DB            int    `yaml:"db"`
	SSHHost       string `yaml:"ssh_host,omitempty"`
	SSHUser       string `yaml:"ssh_user,omitempty"`
	SSHPass       string `yaml:"ssh_pass,omitempty"`
	SSHKey        string `yaml:"ssh_key,omitempty"`
	SSHKnownHosts string `yaml:"ssh_known_hosts,omitempty"`
}

// Enabled reports whether the Redis mirror is configured.
func (s StateDBSettings) Enabled() bool {
	return s.Addr != "" || s.SSHHost != ""
}

// JournalSettings configures the topology journal. An empty Path disables it.
type JournalSettings struct {
	Path       string `yaml:"path"`
	MaxSize    int64  `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// MetricsSettings configures the Prometheus endpoint. An empty Addr disables it.
type MetricsSettings struct {
	Addr string `yaml:"addr"`
}

// Default returns the settings used when no file exists
func Default() *Settings {
	return &Settings{
		ReconnectTimeout:   oftopo.DefaultReconnectTimeout,
		RequiredComponents: append([]string(nil), oftopo.DefaultRequiredComponents...),
		LogLevel:           "info",
		LogFormat:          "text",
		StateDB:            StateDBSettings{DB: statedb.DefaultDB},
		Journal:            JournalSettings{MaxSize: 10 << 20, MaxBackups: 10},
	}
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "oftopo.yaml"
	}
	return filepath.Join(home, ".oftopo", "settings.yaml")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from path. Keys missing from the file keep their
// defaults; a missing file yields the defaults.
func LoadFrom(path string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Validate checks the settings for consistency
func (s *Settings) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(s.ReconnectTimeout > 0, "reconnect_timeout must be positive")

	seen := make(map[string]bool)
	for _, name := range s.RequiredComponents {
		if name == "" {
			v.AddErrorf("required_components: empty component name")
			continue
		}
		if seen[name] {
			v.AddErrorf("required_components: %q listed twice", name)
		}
		seen[name] = true
	}

	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		v.AddErrorf("log_level: %v", err)
	}
	v.Add(s.LogFormat == "text" || s.LogFormat == "json", fmt.Sprintf("log_format must be text or json, not %q", s.LogFormat))

	v.Add(s.StateDB.DB >= 0 && s.StateDB.DB <= 15, "statedb.db must be between 0 and 15")
	if s.StateDB.SSHHost != "" {
		v.Add(s.StateDB.SSHUser != "", "statedb.ssh_user is required with ssh_host")
		v.Add(s.StateDB.SSHPass != "" || s.StateDB.SSHKey != "", "statedb.ssh_pass or ssh_key is required with ssh_host")
	}
	v.Add(s.Journal.MaxSize >= 0, "journal.max_size must not be negative")
	v.Add(s.Journal.MaxBackups >= 0, "journal.max_backups must not be negative")
	return v.Build()
}

// ApplyLogging configures the global logger
func (s *Settings) ApplyLogging() error {
	if err := util.SetLogLevel(s.LogLevel); err != nil {
		return err
	}
	return util.SetLogFormat(s.LogFormat)
}

// AdaptorConfig returns the adaptor part of the settings
func (s *Settings) AdaptorConfig() oftopo.Config {
	return oftopo.Config{
		ReconnectTimeout:   s.ReconnectTimeout,
		RequiredComponents: s.RequiredComponents,
	}
}

// StateDBOptions returns the Redis connection options
func (s *Settings) StateDBOptions() statedb.Options {
	return statedb.Options{
		Addr:          s.StateDB.Addr,
		DB:            s.StateDB.DB,
		SSHHost:       s.StateDB.SSHHost,
		SSHUser:       s.StateDB.SSHUser,
		SSHPass:       s.StateDB.SSHPass,
		SSHKey:        s.StateDB.SSHKey,
		SSHKnownHosts: s.StateDB.SSHKnownHosts,
	}
}

// JournalRotation returns the journal rotation policy
func (s *Settings) JournalRotation() journal.RotationConfig {
	return journal.RotationConfig{
		MaxSize:    s.Journal.MaxSize,
		MaxBackups: s.Journal.MaxBackups,
	}
}
