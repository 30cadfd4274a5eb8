package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   Server   `yaml:"server" json:"server"`
	Storage  Storage  `yaml:"storage" json:"storage"`
	Calendar Calendar `yaml:"calendar" json:"calendar"`
	Tasks    Tasks    `yaml:"tasks" json:"tasks"`
	Stats    Stats    `yaml:"stats" json:"stats"`
}

type Server struct {
	Addr string `yaml:"addr" json:"addr"`
	// MaxSessions bounds the pinned per-user session table; least
	// recently used sessions are evicted and rebuilt on return.
	MaxSessions int `yaml:"max_sessions" json:"max_sessions"`
}

type Storage struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// RemoteBaseURL is the hosted document store. Empty means the
	// deployment is guest-only; signed-in sessions are refused rather
	// than silently reading nothing.
	RemoteBaseURL string `yaml:"remote_base_url" json:"remote_base_url"`
}

type Calendar struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
}

type Tasks struct {
	DailyLimit int `yaml:"daily_limit" json:"daily_limit"`
}

type Stats struct {
	RetainMonths int `yaml:"retain_months" json:"retain_months"`
}

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8484"
	}
	if c.Server.MaxSessions == 0 {
		c.Server.MaxSessions = 256
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Tasks.DailyLimit == 0 {
		c.Tasks.DailyLimit = 5
	}
	if c.Stats.RetainMonths == 0 {
		c.Stats.RetainMonths = 12
	}
}

func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	return &c, nil
}
