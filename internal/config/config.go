// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
)

// Store backends.
const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
)

// DefaultUserAgent identifies the crawler to the sites it visits.
const DefaultUserAgent = "topic-crawler/1.0 (+https://github.com/JakeFAU/topic-crawler)"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	DefaultTopic string                 `mapstructure:"default_topic"`
	DataTopics   map[string]TopicConfig `mapstructure:"data_topics"`
	Crawler      CrawlerConfig          `mapstructure:"crawler"`
	Store        StoreConfig            `mapstructure:"store"`
	Mirror       MirrorConfig           `mapstructure:"mirror"`
	Publisher    PublisherConfig        `mapstructure:"publisher"`
	Metrics      MetricsConfig          `mapstructure:"metrics"`
	Logging      LoggingConfig          `mapstructure:"logging"`
}

// TopicConfig describes one crawl target.
type TopicConfig struct {
	TopicDir          string   `mapstructure:"topic_dir"`
	StartURLs         []string `mapstructure:"start_urls"`
	AllowedDomains    []string `mapstructure:"allowed_domains"`
	NonContentPhrases []string `mapstructure:"non_content_phrases"`
	BlackListedImgs   []string `mapstructure:"black_listed_imgs"`
	MaxDepth          *int     `mapstructure:"max_depth"`
	MaxPages          *int     `mapstructure:"max_pages"`
}

// CrawlerConfig governs fetch pacing and extraction thresholds.
type CrawlerConfig struct {
	UserAgent              string        `mapstructure:"user_agent"`
	RespectRobots          bool          `mapstructure:"respect_robots"`
	RequestDelay           time.Duration `mapstructure:"request_delay"`
	SoftBlockRetryDelay    time.Duration `mapstructure:"soft_block_retry_delay"`
	SoftBlockPhrases       []string      `mapstructure:"soft_block_phrases"`
	MaxSoftBlockRetries    int           `mapstructure:"max_soft_block_retries"`
	MinImageBytes          int           `mapstructure:"min_image_bytes"`
	RequestTimeout         time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes           int           `mapstructure:"max_body_bytes"`
	ImageRequestsPerSecond float64       `mapstructure:"image_requests_per_second"`
	MaxDepth               int           `mapstructure:"max_depth"`
	MaxPages               int           `mapstructure:"max_pages"`
}

// StoreConfig selects the provenance/context backend.
type StoreConfig struct {
	Backend  string `mapstructure:"backend"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// MirrorConfig enables uploading artifacts to GCS.
type MirrorConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PublisherConfig enables Pub/Sub artifact notifications.
type PublisherConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the status server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Overrides are CLI flag values applied on top of the file configuration.
// Nil fields keep the configured value.
type Overrides struct {
	MaxDepth *int
	MaxPages *int
}

// Load builds a Config from disk and environment. An empty path searches
// for config.yaml in the working directory, /etc/topic-crawler and
// $HOME/.topic-crawler.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/topic-crawler")
		v.AddConfigPath("$HOME/.topic-crawler")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.user_agent", DefaultUserAgent)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.request_delay", crawler.DefaultRequestDelay)
	v.SetDefault("crawler.soft_block_retry_delay", crawler.DefaultSoftBlockRetryDelay)
	v.SetDefault("crawler.soft_block_phrases", crawler.DefaultSoftBlockPhrases)
	v.SetDefault("crawler.max_soft_block_retries", crawler.DefaultMaxSoftBlockRetries)
	v.SetDefault("crawler.min_image_bytes", crawler.DefaultMinImageBytes)
	v.SetDefault("crawler.request_timeout", "30s")
	v.SetDefault("crawler.max_body_bytes", 50*1024*1024)
	v.SetDefault("crawler.image_requests_per_second", 2.0)
	v.SetDefault("crawler.max_depth", crawler.DefaultMaxDepth)
	v.SetDefault("crawler.max_pages", crawler.DefaultMaxPages)
	v.SetDefault("store.backend", StoreBackendFile)
	v.SetDefault("store.table", "crawl_records")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.DataTopics) == 0 {
		return errors.New("data_topics must define at least one topic")
	}
	if c.DefaultTopic != "" {
		if _, ok := c.DataTopics[strings.ToLower(c.DefaultTopic)]; !ok {
			return fmt.Errorf("default_topic %q is not defined in data_topics", c.DefaultTopic)
		}
	}
	for name, t := range c.DataTopics {
		if strings.TrimSpace(t.TopicDir) == "" {
			return fmt.Errorf("data_topics.%s.topic_dir is required", name)
		}
	}
	switch c.Store.Backend {
	case StoreBackendFile:
	case StoreBackendPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if (c.Publisher.ProjectID == "") != (c.Publisher.TopicName == "") {
		return errors.New("publisher.project_id and publisher.topic_name must be set together")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return errors.New("crawler.request_timeout must be > 0")
	}
	if c.Crawler.ImageRequestsPerSecond < 0 {
		return errors.New("crawler.image_requests_per_second must be >= 0")
	}
	return nil
}

// TopicNames returns the configured topics in sorted order.
func (c Config) TopicNames() []string {
	names := make([]string, 0, len(c.DataTopics))
	for name := range c.DataTopics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Topic resolves name, falling back to default_topic when name is empty.
func (c Config) Topic(name string) (string, TopicConfig, error) {
	if name == "" {
		name = c.DefaultTopic
	}
	if name == "" {
		return "", TopicConfig{}, fmt.Errorf("no topic given and default_topic is unset (topics: %s)",
			strings.Join(c.TopicNames(), ", "))
	}
	name = strings.ToLower(name)
	t, ok := c.DataTopics[name]
	if !ok {
		return "", TopicConfig{}, fmt.Errorf("unknown topic %q (topics: %s)", name, strings.Join(c.TopicNames(), ", "))
	}
	return name, t, nil
}

// Crawl builds the immutable crawl configuration for topic. Depth and page
// bounds come from the topic, then the crawler section, then overrides.
func (c Config) Crawl(topic string, o Overrides) (crawler.Config, error) {
	name, t, err := c.Topic(topic)
	if err != nil {
		return crawler.Config{}, err
	}
	maxDepth, maxPages := c.Crawler.MaxDepth, c.Crawler.MaxPages
	if t.MaxDepth != nil {
		maxDepth = *t.MaxDepth
	}
	if t.MaxPages != nil {
		maxPages = *t.MaxPages
	}
	if o.MaxDepth != nil {
		maxDepth = *o.MaxDepth
	}
	if o.MaxPages != nil {
		maxPages = *o.MaxPages
	}
	cc := crawler.Config{
		Topic:                name,
		StartURLs:            append([]string(nil), t.StartURLs...),
		AllowedDomains:       crawler.NormalizePhrases(t.AllowedDomains),
		MaxDepth:             maxDepth,
		MaxPages:             maxPages,
		NonContentPhrases:    crawler.NormalizePhrases(t.NonContentPhrases),
		BlacklistedImageURLs: crawler.NormalizePhrases(t.BlackListedImgs),
		RequestDelay:         c.Crawler.RequestDelay,
		SoftBlockRetryDelay:  c.Crawler.SoftBlockRetryDelay,
		SoftBlockPhrases:     crawler.NormalizePhrases(c.Crawler.SoftBlockPhrases),
		MaxSoftBlockRetries:  c.Crawler.MaxSoftBlockRetries,
		MinImageBytes:        c.Crawler.MinImageBytes,
	}
	if err := cc.Validate(); err != nil {
		return crawler.Config{}, fmt.Errorf("topic %s: %w", name, err)
	}
	return cc, nil
}
