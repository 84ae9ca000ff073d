package openmq

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/openmq-client/pkg/errors"
	"github.com/chris-alexander-pop/openmq-client/pkg/resilience"
)

// ResilientProducerConfig configures the resilient producer wrapper.
type ResilientProducerConfig struct {
	// Circuit breaker settings
	CircuitBreakerEnabled   bool          `env:"MQ_CB_ENABLED" env-default:"true"`
	CircuitBreakerThreshold int64         `env:"MQ_CB_THRESHOLD" env-default:"5"`
	CircuitBreakerTimeout   time.Duration `env:"MQ_CB_TIMEOUT" env-default:"30s"`

	// Retry settings
	RetryEnabled     bool          `env:"MQ_RETRY_ENABLED" env-default:"true"`
	RetryMaxAttempts int           `env:"MQ_RETRY_MAX" env-default:"3"`
	RetryBackoff     time.Duration `env:"MQ_RETRY_BACKOFF" env-default:"100ms"`
}

// ResilientProducer wraps a Producer with circuit breaker and retry
// support. Only transient failures are retried; argument and state errors
// surface immediately.
type ResilientProducer struct {
	producer *Producer
	cb       *resilience.CircuitBreaker
	retryCfg resilience.RetryConfig
}

// NewResilientProducer wraps a producer with resilience features.
func NewResilientProducer(producer *Producer, cfg ResilientProducerConfig) *ResilientProducer {
	rp := &ResilientProducer{
		producer: producer,
		retryCfg: resilience.RetryConfig{MaxAttempts: 1},
	}

	if cfg.CircuitBreakerEnabled {
		rp.cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "openmq-producer",
			FailureThreshold: cfg.CircuitBreakerThreshold,
			SuccessThreshold: 2,
			Timeout:          cfg.CircuitBreakerTimeout,
		})
	}

	if cfg.RetryEnabled {
		rp.retryCfg = resilience.RetryConfig{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryBackoff,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
			RetryIf:        isTransientSendError,
		}
	}

	return rp
}

// isTransientSendError reports whether a send failure is worth retrying.
func isTransientSendError(err error) bool {
	return errors.Is(err, ErrTimeoutExpired) ||
		errors.Is(err, ErrConcurrentAccess) ||
		errors.Is(err, ErrSocketWriteFailed)
}

// Send sends msg through the wrapped producer with retry and circuit
// breaker protection.
func (rp *ResilientProducer) Send(ctx context.Context, msg *Message) error {
	return rp.execute(ctx, func(context.Context) error {
		return rp.producer.Send(msg)
	})
}

// SendTo sends msg to dest through the wrapped unbound producer.
func (rp *ResilientProducer) SendTo(ctx context.Context, msg *Message, dest *Destination) error {
	return rp.execute(ctx, func(context.Context) error {
		return rp.producer.SendTo(msg, dest)
	})
}

func (rp *ResilientProducer) execute(ctx context.Context, fn resilience.Executor) error {
	if rp.cb != nil {
		return resilience.RetryWithCircuitBreaker(ctx, rp.cb, rp.retryCfg, fn)
	}
	return resilience.Retry(ctx, rp.retryCfg, fn)
}

// Close closes the wrapped producer.
func (rp *ResilientProducer) Close() error {
	return rp.producer.Close()
}
