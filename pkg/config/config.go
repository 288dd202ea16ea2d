// Package config provides configuration management for mediafetch.
// It handles loading, validating and saving the YAML configuration file that
// describes the transport settings, the media store and the pipelines that
// turn item fields into stored media.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cperrin88/mediafetch/pkg/auth"
	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/expiry"
	"github.com/cperrin88/mediafetch/pkg/fetch"
	"github.com/cperrin88/mediafetch/pkg/fsutil"
	"github.com/cperrin88/mediafetch/pkg/imageproc"
	"github.com/cperrin88/mediafetch/pkg/pipeline"
	"github.com/cperrin88/mediafetch/pkg/storage"
)

// Pipeline kinds.
const (
	KindFiles  = "files"
	KindImages = "images"
)

// Config represents the application configuration.
type Config struct {
	Settings  Settings         `yaml:"settings"`
	Store     StoreConfig      `yaml:"store"`
	Pipelines []PipelineConfig `yaml:"pipelines"`
	Auth      []AuthConfig     `yaml:"auth,omitempty"`
}

// Settings represents general application settings.
type Settings struct {
	// Logging
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFile   string `yaml:"log_file"`   // rotated when set
	LogFormat string `yaml:"log_format"` // text or json

	// Transport
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	UserAgent    string        `yaml:"user_agent"`
	Concurrency  int           `yaml:"concurrency"`
	MaxRedirects int           `yaml:"max_redirects"`

	// Processing
	Jobs      int           `yaml:"jobs"`
	Retention time.Duration `yaml:"retention"`
}

// StoreConfig selects and configures the media store.
type StoreConfig struct {
	URI string    `yaml:"uri"`
	FTP FTPConfig `yaml:"ftp"`
	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// FTPConfig configures ftp:// stores.
type FTPConfig struct {
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Passive  bool          `yaml:"passive"`
	Timeout  time.Duration `yaml:"timeout"`
}

// S3Config configures s3:// stores.
type S3Config struct {
	ACL         string `yaml:"acl"`
	EndpointURL string `yaml:"endpoint_url"`
	UseSSL      bool   `yaml:"use_ssl"`
	VerifySSL   bool   `yaml:"verify_ssl"`
	Region      string `yaml:"region"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
}

// GCSConfig configures gs:// stores.
type GCSConfig struct {
	ProjectID string `yaml:"project_id"`
	ACL       string `yaml:"acl"`
}

// AuthConfig holds credentials for one host. A host starting with "."
// covers its subdomains.
type AuthConfig struct {
	Host     string            `yaml:"host"`
	Type     string            `yaml:"type"` // basic, bearer or header
	Username string            `yaml:"username,omitempty"`
	Password string            `yaml:"password,omitempty"`
	Token    string            `yaml:"token,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
}

// PipelineConfig describes one named pipeline.
type PipelineConfig struct {
	Name           string                    `yaml:"name"`
	Kind           string                    `yaml:"kind"`
	ExpiresDays    *int                      `yaml:"expires_days"` // 0 always refetches
	URLsField      string                    `yaml:"urls_field"`
	ResultsField   string                    `yaml:"results_field"`
	AllowRedirects bool                      `yaml:"allow_redirects"`
	PathScript     string                    `yaml:"path_script,omitempty"`
	PathVars       map[string]interface{}    `yaml:"path_vars,omitempty"`
	MinWidth       int                       `yaml:"min_width,omitempty"`
	MinHeight      int                       `yaml:"min_height,omitempty"`
	Thumbs         map[string]imageproc.Size `yaml:"thumbs,omitempty"`
}

// Default configuration values.
const (
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultFTPTimeout = 30 * time.Second
	DefaultS3ACL      = "private"
	DefaultGCSACL     = "projectPrivate"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true}
)

// DefaultConfig returns a configuration with sensible defaults: a filesystem
// store in the user data directory and one pipeline per kind.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel:     DefaultLogLevel,
			LogFormat:    DefaultLogFormat,
			HTTPTimeout:  fetch.DefaultTimeout,
			UserAgent:    fetch.DefaultUserAgent,
			Concurrency:  fetch.DefaultConcurrency,
			MaxRedirects: fetch.DefaultMaxRedirects,
			Jobs:         pipeline.DefaultJobs,
		},
		Store: StoreConfig{
			URI: fsutil.GetDefaultStoreDir(),
			FTP: FTPConfig{User: "anonymous", Password: "guest", Passive: true, Timeout: DefaultFTPTimeout},
			S3:  S3Config{ACL: DefaultS3ACL, UseSSL: true, VerifySSL: true},
			GCS: GCSConfig{ACL: DefaultGCSACL},
		},
		Pipelines: []PipelineConfig{
			DefaultPipeline(KindFiles),
			DefaultPipeline(KindImages),
		},
	}
}

// DefaultPipeline returns the default pipeline of kind, named after it.
func DefaultPipeline(kind string) PipelineConfig {
	p := PipelineConfig{Name: kind, Kind: kind}
	p.applyDefaults()
	return p
}

// LoadConfig loads configuration from a file. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader. Keys absent
// from the document keep their default values.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	config := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}

	return config, nil
}

// SaveConfig saves configuration to a file, replacing it atomically.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeSecure); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	_ = encoder.Close()

	if err := fsutil.WriteFileAtomic(absPath, buf.Bytes(), fsutil.FileModeSecure); err != nil {
		return errors.Wrap(errors.ErrConfigFileRename, err.Error())
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigMarshal, err.Error())
	}
	return data, nil
}

// Pipeline returns the pipeline called name.
func (c *Config) Pipeline(name string) (*PipelineConfig, error) {
	for i := range c.Pipelines {
		if c.Pipelines[i].Name == name {
			return &c.Pipelines[i], nil
		}
	}
	return nil, errors.Wrapf(errors.ErrUnknownPipeline, "%q", name)
}

// StoreOptions converts the store section for storage.Open.
func (c *Config) StoreOptions() storage.Options {
	s := c.Store
	return storage.Options{
		URI: s.URI,
		FTP: storage.FTPOptions{
			User:     s.FTP.User,
			Password: s.FTP.Password,
			Passive:  s.FTP.Passive,
			Timeout:  s.FTP.Timeout,
		},
		S3: storage.S3Options{
			ACL:         s.S3.ACL,
			EndpointURL: s.S3.EndpointURL,
			UseSSL:      s.S3.UseSSL,
			VerifySSL:   s.S3.VerifySSL,
			Region:      s.S3.Region,
			AccessKey:   s.S3.AccessKey,
			SecretKey:   s.S3.SecretKey,
		},
		GCS: storage.GCSOptions{
			ProjectID: s.GCS.ProjectID,
			ACL:       s.GCS.ACL,
		},
	}
}

// AuthHosts builds the per-host credentials of the auth section.
func (c *Config) AuthHosts() (auth.Hosts, error) {
	if len(c.Auth) == 0 {
		return nil, nil
	}
	hosts := make(auth.Hosts, len(c.Auth))
	for _, a := range c.Auth {
		host := strings.ToLower(strings.TrimSpace(a.Host))
		if host == "" || host == "." {
			return nil, fmt.Errorf("auth entry without host")
		}
		if _, dup := hosts[host]; dup {
			return nil, fmt.Errorf("duplicate auth host %q", host)
		}
		authenticator, err := auth.New(auth.Type(a.Type), a.Username, a.Password, a.Token, a.Headers)
		if err != nil {
			return nil, fmt.Errorf("auth for %s: %w", host, err)
		}
		hosts[host] = authenticator
	}
	return hosts, nil
}

// Expiry returns the freshness policy of the pipeline.
func (p *PipelineConfig) Expiry() expiry.Policy {
	if p.ExpiresDays == nil {
		return expiry.New(expiry.DefaultDays)
	}
	return expiry.New(*p.ExpiresDays)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := validateSettings(c.Settings); err != nil {
		return err
	}
	if _, err := storage.ParseURI(c.Store.URI); err != nil {
		return err
	}
	if c.Store.FTP.Timeout < 0 {
		return fmt.Errorf("store.ftp.timeout cannot be negative")
	}
	if _, err := c.AuthHosts(); err != nil {
		return err
	}
	return validatePipelines(c.Pipelines)
}

func validateSettings(s Settings) error {
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return fmt.Errorf("invalid log level %q (must be one of: debug, info, warn, error)", s.LogLevel)
	}
	if !validFormats[strings.ToLower(s.LogFormat)] {
		return fmt.Errorf("invalid log format %q (must be text or json)", s.LogFormat)
	}
	switch {
	case s.HTTPTimeout < 0:
		return fmt.Errorf("http_timeout cannot be negative")
	case s.Concurrency < 0:
		return fmt.Errorf("concurrency cannot be negative")
	case s.Jobs < 0:
		return fmt.Errorf("jobs cannot be negative")
	case s.MaxRedirects < 0:
		return fmt.Errorf("max_redirects cannot be negative")
	case s.Retention < 0:
		return fmt.Errorf("retention cannot be negative")
	}
	return nil
}

func validatePipelines(pipelines []PipelineConfig) error {
	names := make(map[string]bool)
	for i, p := range pipelines {
		if p.Name == "" {
			return fmt.Errorf("pipeline at index %d has no name", i)
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate pipeline name %q", p.Name)
		}
		names[p.Name] = true

		if p.Kind != KindFiles && p.Kind != KindImages {
			return fmt.Errorf("pipeline %q: unknown kind %q (must be files or images)", p.Name, p.Kind)
		}
		if p.ExpiresDays != nil && *p.ExpiresDays < 0 {
			return fmt.Errorf("pipeline %q: expires_days cannot be negative", p.Name)
		}
		if p.MinWidth < 0 || p.MinHeight < 0 {
			return fmt.Errorf("pipeline %q: minimum dimensions cannot be negative", p.Name)
		}
		if p.URLsField == p.ResultsField {
			return fmt.Errorf("pipeline %q: urls_field and results_field must differ", p.Name)
		}
		for name, size := range p.Thumbs {
			if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
				return fmt.Errorf("pipeline %q: invalid thumbnail name %q", p.Name, name)
			}
			if size.Width <= 0 || size.Height <= 0 {
				return fmt.Errorf("pipeline %q: thumbnail %q needs a positive size", p.Name, name)
			}
		}
	}
	return nil
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
	if c.Settings.LogFormat == "" {
		c.Settings.LogFormat = defaults.Settings.LogFormat
	}
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.UserAgent == "" {
		c.Settings.UserAgent = defaults.Settings.UserAgent
	}
	if c.Settings.Concurrency == 0 {
		c.Settings.Concurrency = defaults.Settings.Concurrency
	}
	if c.Settings.MaxRedirects == 0 {
		c.Settings.MaxRedirects = defaults.Settings.MaxRedirects
	}
	if c.Settings.Jobs == 0 {
		c.Settings.Jobs = defaults.Settings.Jobs
	}
	if c.Store.URI == "" {
		c.Store.URI = defaults.Store.URI
	}
	if c.Store.FTP.Timeout == 0 {
		c.Store.FTP.Timeout = DefaultFTPTimeout
	}
	if c.Store.S3.ACL == "" {
		c.Store.S3.ACL = DefaultS3ACL
	}
	if c.Store.GCS.ACL == "" {
		c.Store.GCS.ACL = DefaultGCSACL
	}

	for i := range c.Pipelines {
		c.Pipelines[i].applyDefaults()
	}
}

// applyDefaults fills the kind specific defaults. The kind itself defaults
// to the pipeline name when that names a kind.
func (p *PipelineConfig) applyDefaults() {
	if p.Kind == "" && (p.Name == KindFiles || p.Name == KindImages) {
		p.Kind = p.Name
	}
	if p.ExpiresDays == nil {
		days := expiry.DefaultDays
		p.ExpiresDays = &days
	}
	switch p.Kind {
	case KindFiles:
		if p.URLsField == "" {
			p.URLsField = pipeline.FileURLsField
		}
		if p.ResultsField == "" {
			p.ResultsField = pipeline.FileResultsField
		}
	case KindImages:
		if p.URLsField == "" {
			p.URLsField = pipeline.ImageURLsField
		}
		if p.ResultsField == "" {
			p.ResultsField = pipeline.ImageResultsField
		}
	}
}
