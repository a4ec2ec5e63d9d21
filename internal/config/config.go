package config

import (
	"os"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Pub/Sub settings
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`

	// Defaults for cmd/client; its -topic and -subscription flags override them.
	PubSubTopic        string `envconfig:"PUBSUB_TOPIC"`
	PubSubSubscription string `envconfig:"PUBSUB_SUBSCRIPTION"`

	// Push subscription authentication. Both must be set outside the emulator.
	PubSubPushAudience            string `envconfig:"PUBSUB_PUSH_AUDIENCE"`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL"`

	// Tracing is disabled when the endpoint is empty.
	TracingEndpoint    string  `envconfig:"TRACING_ENDPOINT"`
	TracingServiceName string  `envconfig:"TRACING_SERVICE_NAME" default:"pubsubfn"`
	TracingSampleRate  float64 `envconfig:"TRACING_SAMPLE_RATE" default:"1.0"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ProjectID returns the configured GCP project, falling back to the
// GOOGLE_CLOUD_PROJECT variable set by the Cloud Functions runtime.
func (c *Config) ProjectID() string {
	if c.GCPProjectID != "" {
		return c.GCPProjectID
	}
	return os.Getenv("GOOGLE_CLOUD_PROJECT")
}

// IsLocal reports whether the service talks to the Pub/Sub emulator.
func (c *Config) IsLocal() bool {
	return c.PubSubEmulatorHost != ""
}

// TracingEnabled reports whether spans should be exported.
func (c *Config) TracingEnabled() bool {
	return c.TracingEndpoint != ""
}
