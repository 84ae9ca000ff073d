package openmq

import (
	"time"

	"github.com/chris-alexander-pop/openmq-client/pkg/config"
)

// ConnectionConfig holds everything needed to open and run a broker
// connection. Load it from the environment with LoadConfig or fill it in
// directly; zero values fall back to the documented defaults.
type ConnectionConfig struct {
	Host string `env:"MQ_BROKER_HOST" env-default:"localhost" validate:"required"`
	Port int    `env:"MQ_BROKER_PORT" env-default:"7676" validate:"gt=0,lte=65535"`

	// Transport selects the packet pipe: "tcp" or "tls".
	Transport string `env:"MQ_TRANSPORT" env-default:"tcp" validate:"oneof=tcp tls"`

	// BrokerHostTrusted skips certificate verification on tls transports.
	BrokerHostTrusted bool `env:"MQ_SSL_BROKER_HOST_TRUSTED" env-default:"false"`

	// AckTimeout bounds every synchronous request/reply exchange with the
	// broker, including acknowledgements.
	AckTimeout time.Duration `env:"MQ_ACK_TIMEOUT" env-default:"30s"`

	// DialTimeout bounds a single connect attempt; ConnectRetries and
	// ConnectBackoff shape the retry schedule around failed attempts.
	DialTimeout    time.Duration `env:"MQ_DIAL_TIMEOUT" env-default:"10s"`
	ConnectRetries uint          `env:"MQ_CONNECT_RETRIES" env-default:"3"`
	ConnectBackoff time.Duration `env:"MQ_CONNECT_BACKOFF" env-default:"500ms"`

	// PingInterval is how often the connection pings the broker, whether or
	// not other traffic is flowing.
	// Zero disables pinging.
	PingInterval time.Duration `env:"MQ_PING_INTERVAL" env-default:"30s"`

	// DupsOKLimit is how many acknowledgements a DUPS_OK session batches
	// before flushing.
	DupsOKLimit int `env:"MQ_DUPS_OK_LIMIT" env-default:"10"`

	// Consumer prefetch: how many messages the broker pushes ahead of
	// consumption, and the refill threshold in percent.
	PrefetchMaxMsgCount      int32   `env:"MQ_PREFETCH_MAX_MSG_COUNT" env-default:"-1"`
	PrefetchThresholdPercent float64 `env:"MQ_PREFETCH_THRESHOLD_PERCENT" env-default:"50"`

	// SessionLockTimeout bounds how long a session entry point waits for
	// the session mutex before failing with ConcurrentAccess. Zero means
	// fail immediately.
	SessionLockTimeout time.Duration `env:"MQ_SESSION_LOCK_TIMEOUT" env-default:"0"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() ConnectionConfig {
	return ConnectionConfig{
		Host:                     "localhost",
		Port:                     7676,
		Transport:                "tcp",
		AckTimeout:               30 * time.Second,
		DialTimeout:              10 * time.Second,
		ConnectRetries:           3,
		ConnectBackoff:           500 * time.Millisecond,
		PingInterval:             30 * time.Second,
		DupsOKLimit:              10,
		PrefetchMaxMsgCount:      -1,
		PrefetchThresholdPercent: 50,
	}
}

// LoadConfig reads a ConnectionConfig from the environment (and .env) and
// validates it.
func LoadConfig() (ConnectionConfig, error) {
	var cfg ConnectionConfig
	if err := config.Load(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *ConnectionConfig) normalize() {
	d := DefaultConfig()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.Transport == "" {
		c.Transport = d.Transport
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = d.AckTimeout
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.ConnectBackoff == 0 {
		c.ConnectBackoff = d.ConnectBackoff
	}
	if c.DupsOKLimit == 0 {
		c.DupsOKLimit = d.DupsOKLimit
	}
	if c.PrefetchMaxMsgCount == 0 {
		c.PrefetchMaxMsgCount = d.PrefetchMaxMsgCount
	}
	if c.PrefetchThresholdPercent == 0 {
		c.PrefetchThresholdPercent = d.PrefetchThresholdPercent
	}
}
