package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

const (
	// DefaultAPIURL is the Upwork GraphQL endpoint queried for the jobs feed.
	DefaultAPIURL = "https://www.upwork.com/api/graphql/v1?alias=mostRecentJobsFeed"

	// DefaultLogPath is where log output is mirrored in addition to stdout.
	DefaultLogPath = "/var/log/upwork_fetcher.log"

	DefaultLimit    = 10
	DefaultMailPort = 587
)

// API holds the Upwork GraphQL endpoint settings.
type API struct {
	URL      string `yaml:"url"`
	Token    string `yaml:"token"`
	TenantID string `yaml:"tenantID"`
	// Limit is the fixed result limit passed as the GraphQL $limit variable.
	Limit int `yaml:"limit"`
}

// Mail holds the SMTP settings and the fixed sender/recipient pair.
type Mail struct {
	Recipient string `yaml:"recipient"`
	Sender    string `yaml:"sender"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
}

type Log struct {
	Path string `yaml:"path"`
}

// Config is the process-wide configuration. It is constructed once at the
// entry point and passed by reference; nothing reads the environment after
// Load returns.
type Config struct {
	API  API  `yaml:"api"`
	Mail Mail `yaml:"mail"`
	Log  Log  `yaml:"log"`
}

// Load loads configuration from an optional YAML file at path, then applies
// environment variable overrides and defaults. A missing file is not an
// error; the environment alone is a complete configuration source.
func Load(path string) (Config, error) {
	var config Config

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(content, &config); err != nil {
				return config, fmt.Errorf("error unmarshaling YAML %s: %v", path, err)
			}
		case !os.IsNotExist(err):
			return config, fmt.Errorf("trying to open config file %s: %v", path, err)
		}
	}

	config.applyEnv()
	config.applyDefaults()
	return config, nil
}

func (c *Config) applyEnv() {
	setEnvString(&c.API.URL, "API_URL")
	setEnvString(&c.API.Token, "UPWORK_TOKEN")
	setEnvString(&c.API.TenantID, "UPWORK_TENANTID")
	setEnvInt(&c.API.Limit, "LIMIT")
	setEnvString(&c.Mail.Recipient, "RECIPIENT_EMAIL")
	setEnvString(&c.Mail.Sender, "SENDER_EMAIL")
	setEnvString(&c.Mail.Host, "SMTP_HOST")
	setEnvInt(&c.Mail.Port, "SMTP_PORT")
	setEnvString(&c.Mail.User, "SMTP_USER")
	setEnvString(&c.Mail.Password, "SMTP_PASS")
	setEnvString(&c.Log.Path, "LOG_PATH")
}

func (c *Config) applyDefaults() {
	if c.API.URL == "" {
		c.API.URL = DefaultAPIURL
	}
	if c.API.Limit <= 0 {
		c.API.Limit = DefaultLimit
	}
	if c.Mail.Port <= 0 {
		c.Mail.Port = DefaultMailPort
	}
	if c.Log.Path == "" {
		c.Log.Path = DefaultLogPath
	}
}

// Validate reports the required settings that are still unset, named by
// their environment variable. An empty result means the configuration is
// complete; a non-empty result must abort the run before any network call.
func (c *Config) Validate() []string {
	required := []struct {
		env   string
		value string
	}{
		{"UPWORK_TOKEN", c.API.Token},
		{"UPWORK_TENANTID", c.API.TenantID},
		{"RECIPIENT_EMAIL", c.Mail.Recipient},
		{"SENDER_EMAIL", c.Mail.Sender},
		{"SMTP_HOST", c.Mail.Host},
		{"SMTP_USER", c.Mail.User},
		{"SMTP_PASS", c.Mail.Password},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.env)
		}
	}
	return missing
}

// setEnvString overrides dst with the environment variable's value when set.
func setEnvString(dst *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
	}
}

// setEnvInt overrides dst when the environment variable is set and parses
// as an integer; unparsable values are ignored.
func setEnvInt(dst *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}
