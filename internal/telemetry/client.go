package telemetry

import (
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
)

// Client tracks pipeline events. The pipeline, sweeper and CLI hold a Client
// and never check whether telemetry is on.
type Client interface {
	// Track queues an event and returns at once. It never reports an error;
	// a disabled client drops the event.
	Track(event string, properties map[string]any)

	// Close flushes queued events. serve calls it during shutdown, the CLI
	// before exit.
	Close() error
}

// enqueuer is the part of the PostHog SDK the client calls. Tests substitute
// a recorder.
type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// PostHogClient sends events to PostHog. Every event carries the anonymous
// install id as distinct id and no person profile.
type PostHogClient struct {
	client      enqueuer
	config      *Config
	version     string
	mu          sync.RWMutex
	initialized bool
}

// ClientConfig holds what NewClient and NewPostHogClient need.
type ClientConfig struct {
	// APIKey is the PostHog project key (telemetry.apiKey).
	APIKey string

	// Version is reported with every event as "version".
	Version string

	// Config is the persisted opt-in state and anonymous id.
	Config *Config

	// Endpoint is an optional self-hosted PostHog endpoint. Empty means
	// PostHog cloud.
	Endpoint string
}

// NewClient returns a PostHog client when telemetry is enabled and an API
// key is configured, otherwise a NoopClient.
func NewClient(cfg ClientConfig) (Client, error) {
	if cfg.APIKey == "" || !cfg.Config.IsEnabled() {
		return NewNoopClient(), nil
	}
	return NewPostHogClient(cfg)
}

// NewPostHogClient creates the PostHog-backed client. It stays inert when
// APIKey is empty or Config is nil.
func NewPostHogClient(cfg ClientConfig) (*PostHogClient, error) {
	if cfg.APIKey == "" || cfg.Config == nil {
		return &PostHogClient{config: cfg.Config, version: cfg.Version}, nil
	}

	phConfig := posthog.Config{
		// A CLI run emits a handful of events at most.
		BatchSize: 10,
		Interval:  time.Second,
		// Transport warnings must not leak into server logs or CLI output.
		Logger: quietPostHogLogger{},
	}
	if cfg.Endpoint != "" {
		phConfig.Endpoint = cfg.Endpoint
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, phConfig)
	if err != nil {
		return nil, err
	}
	return newPostHogClientWithEnqueuer(client, cfg.Config, cfg.Version), nil
}

// newPostHogClientWithEnqueuer builds an initialized client around enq.
func newPostHogClientWithEnqueuer(enq enqueuer, cfg *Config, version string) *PostHogClient {
	return &PostHogClient{
		client:      enq,
		config:      cfg,
		version:     version,
		initialized: true,
	}
}

// Track enqueues event with the caller's properties plus os, arch and
// version. Nothing is sent when the client is uninitialized or the user
// opted out. Callers pass counts and reasons only, never email content.
func (c *PostHogClient) Track(event string, properties map[string]any) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.initialized || !c.config.IsEnabled() {
		return
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}
	props.Set("os", runtime.GOOS)
	props.Set("arch", runtime.GOARCH)
	props.Set("version", c.version)
	// Events stay anonymous: PostHog creates no person profile.
	props.Set("$process_person_profile", false)

	_ = c.client.Enqueue(posthog.Capture{
		DistinctId: c.config.AnonymousID,
		Event:      event,
		Properties: props,
	})
}

// Close flushes pending events. The SDK bounds the flush with its own
// timeouts.
func (c *PostHogClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// NoopClient discards events. NewClient returns it when telemetry is off or
// no API key is configured.
type NoopClient struct{}

// Track does nothing.
func (c *NoopClient) Track(event string, properties map[string]any) {}

// Close does nothing.
func (c *NoopClient) Close() error { return nil }

// NewNoopClient returns a client that does nothing.
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

// quietPostHogLogger drops SDK log output.
type quietPostHogLogger struct{}

func (quietPostHogLogger) Debugf(string, ...interface{}) {}
func (quietPostHogLogger) Logf(string, ...interface{})   {}
func (quietPostHogLogger) Warnf(string, ...interface{})  {}
func (quietPostHogLogger) Errorf(string, ...interface{}) {}
