package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Driver string
		URL    string
	}
	Server struct {
		Port int
	}
	Fetch struct {
		UserAgent   string
		Concurrency int
		Timeout     string
		Rate        float64
		Render      bool
		RenderWait  string
	}
	Audit struct {
		Pa11y           string
		Standard        string
		Validators      []string
		LinkConcurrency int
		LinkTimeout     string
	}
	Log struct {
		Level string
		Dir   string
	}
	Paths struct {
		Map     string
		Reports string
		// Pages is the root for directories named in API fetch requests.
		Pages string
	}
}

// LoadConfig reads config.yaml from path, or from . and ./config when path
// is empty, then applies HTML_AUDIT_* environment overrides. A missing
// config file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "")
	v.SetDefault("database.url", "")
	v.SetDefault("fetch.useragent", "html-audit/1.0")
	v.SetDefault("fetch.concurrency", 5)
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.rate", 0)
	v.SetDefault("fetch.render", false)
	v.SetDefault("fetch.renderwait", "2s")
	v.SetDefault("audit.pa11y", "pa11y")
	v.SetDefault("audit.standard", "WCAG2AA")
	v.SetDefault("audit.validators", []string{
		"https://validator.w3.org/nu/",
		"https://checker.html5.org/",
		"https://html5.validator.nu/",
	})
	v.SetDefault("audit.linkconcurrency", 10)
	v.SetDefault("audit.linktimeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")
	v.SetDefault("paths.map", "")
	v.SetDefault("paths.reports", "")
	v.SetDefault("paths.pages", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("HTML_AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) FetchTimeout() time.Duration {
	return parseDuration(c.Fetch.Timeout, 30*time.Second)
}

func (c *Config) RenderWait() time.Duration {
	return parseDuration(c.Fetch.RenderWait, 2*time.Second)
}

func (c *Config) LinkTimeout() time.Duration {
	return parseDuration(c.Audit.LinkTimeout, 10*time.Second)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
