package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Storage struct {
		ArchiveDir string `yaml:"archive_dir"`
		WorkDir    string `yaml:"work_dir"`
	} `yaml:"storage"`

	Limits struct {
		MaxUploadMB       int64 `yaml:"max_upload_mb"`
		MaxConcurrentJobs int64 `yaml:"max_concurrent_jobs"`
		ItemTimeoutSec    int   `yaml:"item_timeout_sec"`
		RetentionMin      int   `yaml:"retention_min"`
	} `yaml:"limits"`

	Convert struct {
		OCRLanguages []string `yaml:"ocr_languages"`
		SofficePath  string   `yaml:"soffice_path"`
	} `yaml:"convert"`
}

func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var cfg Config
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.ArchiveDir == "" {
		cfg.Storage.ArchiveDir = "archives"
	}
	if cfg.Storage.WorkDir == "" {
		cfg.Storage.WorkDir = "work"
	}
	if cfg.Limits.MaxUploadMB == 0 {
		cfg.Limits.MaxUploadMB = 64
	}
	if cfg.Limits.MaxConcurrentJobs == 0 {
		cfg.Limits.MaxConcurrentJobs = 4
	}
	if cfg.Limits.ItemTimeoutSec == 0 {
		cfg.Limits.ItemTimeoutSec = 120
	}
	if cfg.Limits.RetentionMin == 0 {
		cfg.Limits.RetentionMin = 60
	}
	if len(cfg.Convert.OCRLanguages) == 0 {
		cfg.Convert.OCRLanguages = []string{"eng"}
	}
	if cfg.Convert.SofficePath == "" {
		cfg.Convert.SofficePath = "soffice"
	}
}

func (c *Config) ItemTimeout() time.Duration {
	return time.Duration(c.Limits.ItemTimeoutSec) * time.Second
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.Limits.RetentionMin) * time.Minute
}

func (c *Config) MaxUploadBytes() int64 {
	return c.Limits.MaxUploadMB << 20
}
