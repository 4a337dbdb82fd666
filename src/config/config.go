package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/taskmesh/taskmesh/src/common"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"
)

// Default configuration values.
const (
	DefaultLogLevel          = "debug"
	DefaultListenAddr        = "/ip4/0.0.0.0/tcp/1337"
	DefaultServiceAddr       = "127.0.0.1:8000"
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultSpecsInterval     = 1 * time.Minute
	DefaultBatchSize         = 10
	DefaultMaxInflight       = 4
	DefaultCacheSize         = 50000
	DefaultAdmissionCapacity = 100
	DefaultAdmissionFPRate   = 0.01
	DefaultConnLow           = 16
	DefaultConnHigh          = 64
)

// Config contains all the configuration properties of a taskmesh node.
type Config struct {
	// DataDir is the top-level directory containing taskmesh configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, duplicates log output into a file.
	LogFile string `mapstructure:"log-file"`

	// ListenAddrs are the multiaddrs this node's transport listens on.
	ListenAddrs []string `mapstructure:"listen"`

	// BootstrapPeers are full multiaddrs of peers dialed at startup to join
	// the mesh. DHT discovery backfills the rest.
	BootstrapPeers []string `mapstructure:"bootstrap"`

	// NoService disables the HTTP diagnostics service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP diagnostics service.
	ServiceAddr string `mapstructure:"service-listen"`

	// HeartbeatInterval is the period of capacity reports published on the
	// heartbeat topic.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat"`

	// SpecsInterval is the period of host capacity snapshots.
	SpecsInterval time.Duration `mapstructure:"specs-interval"`

	// BatchSize is the queue capacity advertised in heartbeats.
	BatchSize uint `mapstructure:"batch-size"`

	// MaxInflight bounds concurrently running task executions.
	MaxInflight int `mapstructure:"max-inflight"`

	// CacheSize is the max number of entries in the seen-task cache.
	CacheSize int `mapstructure:"cache-size"`

	// AdmissionCapacity sizes admission filters built by this process, i.e.
	// the expected number of member identities.
	AdmissionCapacity uint `mapstructure:"admission-capacity"`

	// AdmissionFPRate is the false-positive rate of admission filters built
	// by this process. It is a protocol tunable, not a constant.
	AdmissionFPRate float64 `mapstructure:"admission-fp"`

	// ExecutorURL, when set, forwards task inputs to an external compute
	// process over HTTP. When empty the node runs standalone and echoes
	// inputs back.
	ExecutorURL string `mapstructure:"executor-connect"`

	// ConnLow and ConnHigh are the transport connection manager watermarks.
	ConnLow  int `mapstructure:"conn-low"`
	ConnHigh int `mapstructure:"conn-high"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Key is the private key of the node.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:           DefaultDataDir(),
		LogLevel:          DefaultLogLevel,
		ListenAddrs:       []string{DefaultListenAddr},
		ServiceAddr:       DefaultServiceAddr,
		HeartbeatInterval: DefaultHeartbeatInterval,
		SpecsInterval:     DefaultSpecsInterval,
		BatchSize:         DefaultBatchSize,
		MaxInflight:       DefaultMaxInflight,
		CacheSize:         DefaultCacheSize,
		AdmissionCapacity: DefaultAdmissionCapacity,
		AdmissionFPRate:   DefaultAdmissionFPRate,
		ConnLow:           DefaultConnLow,
		ConnHigh:          DefaultConnHigh,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level taskmesh directory.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// Logger returns a formatted logrus Entry, with prefix set to "taskmesh".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				lfshook.PathMap{
					logrus.DebugLevel: c.LogFile,
					logrus.InfoLevel:  c.LogFile,
					logrus.WarnLevel:  c.LogFile,
					logrus.ErrorLevel: c.LogFile,
					logrus.FatalLevel: c.LogFile,
					logrus.PanicLevel: c.LogFile,
				},
				new(logrus.JSONFormatter),
			))
		}
	}
	return c.logger.WithField("prefix", "taskmesh")
}

// DefaultDataDir return the default directory name for top-level taskmesh
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Taskmesh")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Taskmesh")
		} else {
			return filepath.Join(home, ".taskmesh")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
