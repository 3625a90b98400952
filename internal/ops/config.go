package ops

import (
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"main/internal/connection"
	"main/internal/feed"
	"main/internal/model/enum"
	"main/internal/subscription"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Feed      FeedConfig      `json:"feed"`
	Subscribe SubscribeConfig `json:"subscribe"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Storage   StorageConfig   `json:"storage"`
}

// FeedConfig describes the feed session and its reconnect policy.
type FeedConfig struct {
	ConnectionMode       string `json:"connection_mode"`
	TCPAddress           string `json:"tcp_address"`
	MulticastAddress     string `json:"multicast_address"`
	InterfaceIP          string `json:"interface_ip"`
	UserID               string `json:"user_id"`
	Password             string `json:"password"`
	MaxReconnectAttempts int    `json:"max_reconnect_attempts"`
	// ReconnectInterval and MaxReconnectInterval are the backoff base and
	// cap in seconds. The *_sec spellings are accepted as aliases and win
	// when both are present.
	ReconnectInterval       float64 `json:"reconnect_interval"`
	MaxReconnectInterval    float64 `json:"max_reconnect_interval"`
	ReconnectIntervalSec    int     `json:"reconnect_interval_sec"`
	MaxReconnectIntervalSec int     `json:"max_reconnect_interval_sec"`
	ReconnectJitter         float64 `json:"reconnect_jitter"`
	MaxQuietTimeSec         int     `json:"max_quiet_time_sec"`
}

// SubscribeConfig describes batching and the boot-time subscription set.
type SubscribeConfig struct {
	BatchSize int `json:"batch_size"`
	// BatchTimeout is the inter-batch pause in seconds; batch_timeout_ms is
	// accepted as an alias and wins when both are present.
	BatchTimeout        float64               `json:"batch_timeout"`
	BatchTimeoutMs      int                   `json:"batch_timeout_ms"`
	MaxSubscribeRetries int                   `json:"max_subscribe_retries"`
	Defaults            []DefaultSubscription `json:"defaults"`
}

// DefaultSubscription is one subscription requested at startup.
type DefaultSubscription struct {
	Kind       string   `json:"kind"`
	Exchange   string   `json:"exchange"`
	Securities []string `json:"securities"`
}

// DispatchConfig describes the event queue between feed and subscribers.
type DispatchConfig struct {
	QueueSize      int    `json:"queue_size"`
	OverflowPolicy string `json:"overflow_policy"`
}

// StorageConfig describes the optional postgres sink.
type StorageConfig struct {
	Enabled         bool   `json:"enabled"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	User            string `json:"user"`
	Password        string `json:"password"`
	Database        string `json:"database"`
	SSLMode         string `json:"sslmode"`
	BatchSize       int    `json:"batch_size"`
	FlushIntervalMs int    `json:"flush_interval_ms"`
}

// Subscription is a resolved boot-time subscription request.
type Subscription struct {
	Kind       enum.DataKind
	Exchange   enum.Exchange
	Securities []string
}

// Loaded is the resolved configuration ready for wiring.
type Loaded struct {
	Mode          feed.Mode
	TCPAddress    string
	MulticastAddr string
	InterfaceIP   string
	Credentials   feed.Credentials
	MaxQuietTime  time.Duration

	Connection    connection.Config
	Subscription  subscription.Config
	QueueSize     int
	Overflow      enum.OverflowPolicy
	Defaults      []Subscription
	Storage       StorageConfig
	FlushInterval time.Duration
}

func defaults() FileConfig {
	return FileConfig{
		Feed: FeedConfig{
			ConnectionMode:       "tcp",
			TCPAddress:           "127.0.0.1:6900",
			MulticastAddress:     "224.0.0.1:9999",
			InterfaceIP:          "0.0.0.0",
			MaxReconnectAttempts: 10,
			ReconnectInterval:    5,
			MaxReconnectInterval: 60,
			MaxQuietTimeSec:      300,
		},
		Subscribe: SubscribeConfig{
			BatchSize:           100,
			BatchTimeout:        1,
			MaxSubscribeRetries: 3,
		},
		Dispatch: DispatchConfig{
			QueueSize:      10000,
			OverflowPolicy: "drop_oldest",
		},
		Storage: StorageConfig{
			Port:            5432,
			SSLMode:         "disable",
			BatchSize:       100,
			FlushIntervalMs: 1000,
		},
	}
}

// Load reads a JSON config file, applies defaults and resolves the typed
// configuration. Unknown mode or policy strings fail the load.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config").With("path", path)
	}
	cfg := defaults()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "parse config").With("path", path)
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	mode, ok := feed.ParseMode(cfg.Feed.ConnectionMode)
	if !ok {
		return Loaded{}, errors.Errorf("unknown connection_mode %q", cfg.Feed.ConnectionMode)
	}
	policy, ok := enum.ParseOverflowPolicy(cfg.Dispatch.OverflowPolicy)
	if !ok {
		return Loaded{}, errors.Errorf("unknown overflow_policy %q", cfg.Dispatch.OverflowPolicy)
	}
	if cfg.Dispatch.QueueSize <= 0 {
		return Loaded{}, errors.Errorf("queue_size must be positive, got %d", cfg.Dispatch.QueueSize)
	}

	backoffBase := time.Duration(cfg.Feed.ReconnectInterval * float64(time.Second))
	if cfg.Feed.ReconnectIntervalSec > 0 {
		backoffBase = time.Duration(cfg.Feed.ReconnectIntervalSec) * time.Second
	}
	backoffMax := time.Duration(cfg.Feed.MaxReconnectInterval * float64(time.Second))
	if cfg.Feed.MaxReconnectIntervalSec > 0 {
		backoffMax = time.Duration(cfg.Feed.MaxReconnectIntervalSec) * time.Second
	}
	batchTimeout := time.Duration(cfg.Subscribe.BatchTimeout * float64(time.Second))
	if cfg.Subscribe.BatchTimeoutMs > 0 {
		batchTimeout = time.Duration(cfg.Subscribe.BatchTimeoutMs) * time.Millisecond
	}

	subs := make([]Subscription, 0, len(cfg.Subscribe.Defaults))
	for _, d := range cfg.Subscribe.Defaults {
		kind, ok := enum.ParseDataKind(d.Kind)
		if !ok {
			return Loaded{}, errors.Errorf("unknown subscription kind %q", d.Kind)
		}
		exchange, ok := enum.ParseExchange(d.Exchange)
		if !ok {
			return Loaded{}, errors.Errorf("unknown subscription exchange %q", d.Exchange)
		}
		if !kind.SupportedOn(exchange) {
			return Loaded{}, errors.Errorf("kind %s is not served on %s", d.Kind, d.Exchange)
		}
		subs = append(subs, Subscription{Kind: kind, Exchange: exchange, Securities: d.Securities})
	}

	return Loaded{
		Mode:          mode,
		TCPAddress:    cfg.Feed.TCPAddress,
		MulticastAddr: cfg.Feed.MulticastAddress,
		InterfaceIP:   cfg.Feed.InterfaceIP,
		Credentials: feed.Credentials{
			UserID:   cfg.Feed.UserID,
			Password: cfg.Feed.Password,
		},
		MaxQuietTime: time.Duration(cfg.Feed.MaxQuietTimeSec) * time.Second,
		Connection: connection.Config{
			Multicast:            mode == feed.ModeMulticast,
			Credentials:          feed.Credentials{UserID: cfg.Feed.UserID, Password: cfg.Feed.Password},
			MaxReconnectAttempts: cfg.Feed.MaxReconnectAttempts,
			Backoff: connection.Backoff{
				Base:   backoffBase,
				Max:    backoffMax,
				Factor: 2.0,
				Jitter: cfg.Feed.ReconnectJitter,
			},
		},
		Subscription: subscription.Config{
			BatchSize:    cfg.Subscribe.BatchSize,
			BatchTimeout: batchTimeout,
			MaxRetries:   cfg.Subscribe.MaxSubscribeRetries,
		},
		QueueSize:     cfg.Dispatch.QueueSize,
		Overflow:      policy,
		Defaults:      subs,
		Storage:       cfg.Storage,
		FlushInterval: time.Duration(cfg.Storage.FlushIntervalMs) * time.Millisecond,
	}, nil
}
