package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/pingcap-incubator/tinyrdf/log"
	"github.com/pingcap/errors"
)

const (
	EngineMemory = "memory"
	EngineBadger = "badger"
)

type Config struct {
	LogLevel string `toml:"log-level"`
	// LogFile sends the log to a rotated file instead of stderr when its filename is set.
	LogFile log.FileLogConfig `toml:"log-file"`
	// StatusAddr is where the HTTP API and metrics are served, empty disables them.
	StatusAddr string `toml:"status-addr"`

	// Engine selects the storage engine under the store-level branch, "memory" or "badger".
	Engine string `toml:"engine"`
	DBPath string `toml:"db-path"` // Directory to store the data in. Should exist and be writable.

	// ModelFactory picks the container used for buffered changes, "tree" or "hash".
	ModelFactory string `toml:"model-factory"`
	// AutoFlush pushes committed changes into the engine as soon as no reader is using them.
	AutoFlush        bool   `toml:"auto-flush"`
	DefaultIsolation string `toml:"default-isolation"`

	Badger Badger `toml:"badger"`
}

type Badger struct {
	ValueThreshold int  `toml:"value-threshold"` // If value size >= this threshold, only store value offsets in tree.
	NumCompactors  int  `toml:"num-compactors"`
	SyncWrites     bool `toml:"sync-writes"`

	// Interval between samples of the DB size exported as metrics, zero disables sampling.
	MetricsInterval Duration `toml:"metrics-interval"`
}

// Duration lets toml files spell intervals as "10s" or "1m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (c *Config) Validate() error {
	switch c.Engine {
	case EngineMemory, EngineBadger:
	default:
		return errors.Errorf("unknown engine %q", c.Engine)
	}
	if c.Engine == EngineBadger && c.DBPath == "" {
		return errors.New("badger engine needs a db-path")
	}
	if _, err := rdf.NewModelFactory(c.ModelFactory); err != nil {
		return err
	}
	if _, err := sail.ParseIsolationLevel(c.DefaultIsolation); err != nil {
		return err
	}
	if c.LogFile.Filename != "" && c.LogFile.MaxSize <= 0 {
		return errors.New("log file max size must be positive")
	}
	if c.Badger.MetricsInterval.Duration < 0 {
		return errors.New("badger metrics interval must not be negative")
	}
	if !c.AutoFlush && c.Engine == EngineBadger {
		log.Warnf("auto-flush is off, committed changes reach %s only when the repository is flushed", c.DBPath)
	}
	return nil
}

// Isolation returns the parsed default isolation level, call Validate first.
func (c *Config) Isolation() sail.IsolationLevel {
	level, err := sail.ParseIsolationLevel(c.DefaultIsolation)
	if err != nil {
		panic(err)
	}
	return level
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:         getLogLevel(),
		LogFile:          log.FileLogConfig{MaxSize: 300},
		Engine:           EngineBadger,
		DBPath:           "/tmp/tinyrdf",
		ModelFactory:     rdf.TreeModelName,
		AutoFlush:        true,
		DefaultIsolation: sail.SnapshotRead.String(),
		Badger: Badger{
			ValueThreshold:  256,
			NumCompactors:   1,
			SyncWrites:      true,
			MetricsInterval: Duration{30 * time.Second},
		},
	}
}

func NewTestConfig() *Config {
	return &Config{
		LogLevel:         getLogLevel(),
		Engine:           EngineMemory,
		ModelFactory:     rdf.TreeModelName,
		AutoFlush:        true,
		DefaultIsolation: sail.Snapshot.String(),
		Badger: Badger{
			ValueThreshold: 256,
			NumCompactors:  1,
		},
	}
}

// LoadConfig decodes the toml file at path over the default config.
func LoadConfig(path string) (*Config, error) {
	conf := NewDefaultConfig()
	if path == "" {
		return conf, nil
	}
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, errors.Annotatef(err, "load config %s", path)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return conf, nil
}
