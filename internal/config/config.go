package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the chat controller.
type Config struct {
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Chat      ChatConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host      string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port      string `envconfig:"SERVER_PORT" default:"8080"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	DSN string `envconfig:"DATABASE_DSN" required:"true"`
}

// RedisConfig holds Redis configuration for the delivery bus bridge.
type RedisConfig struct {
	URI string `envconfig:"REDIS_URI" required:"true"`
}

// KafkaConfig holds the bot-dispatch queue configuration. Only consulted
// when CHAT_ENABLE_QUEUE is true.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"bot-deliveries"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"chat-controller"`
}

// ChatConfig holds conversation behaviour configuration.
type ChatConfig struct {
	// ManagerBot is the name of the bot manager participant added to
	// every conversation. Empty disables moderation entirely.
	ManagerBot string `envconfig:"CHAT_BOT_MANAGER" default:""`
	// EnableQueue switches bot delivery from synchronous in-process
	// calls to the Kafka task queue.
	EnableQueue bool `envconfig:"CHAT_ENABLE_QUEUE" default:"false"`
	// WebhookBots maps bot names to external URLs that receive message
	// and status envelopes over HTTP.
	WebhookBots WebhookBots `envconfig:"CHAT_WEBHOOK_BOTS"`
	Limits      ChatLimits
}

// WebhookBots maps bot names to webhook URLs. It carries its own decoder
// because URL values contain colons: each comma-separated item splits on
// the first colon only ("remote:http://host/hook").
type WebhookBots map[string]string

// Decode implements envconfig.Decoder.
func (w *WebhookBots) Decode(value string) error {
	out := make(WebhookBots)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, url, ok := strings.Cut(item, ":")
		if !ok || name == "" {
			return fmt.Errorf("invalid webhook bot entry %q", item)
		}
		out[strings.TrimSpace(name)] = url
	}
	*w = out
	return nil
}

// ChatLimits caps the declared size of attached files, in bytes.
type ChatLimits struct {
	MaxAttachmentSize int64 `envconfig:"CHAT_MAX_ATTACHMENT_SIZE" default:"10485760"`
	MaxImageSize      int64 `envconfig:"CHAT_MAX_IMAGE_SIZE" default:"5242880"`
	MaxVideoSize      int64 `envconfig:"CHAT_MAX_VIDEO_SIZE" default:"52428800"`
	MaxAudioSize      int64 `envconfig:"CHAT_MAX_AUDIO_SIZE" default:"10485760"`
	MaxVoiceSize      int64 `envconfig:"CHAT_MAX_VOICE_SIZE" default:"5242880"`
}

// ForType returns the configured size limit for a message type, or zero
// when the type carries no limit.
func (l ChatLimits) ForType(messageType string) int64 {
	switch messageType {
	case "attachment":
		return l.MaxAttachmentSize
	case "audio":
		return l.MaxAudioSize
	case "video":
		return l.MaxVideoSize
	case "image":
		return l.MaxImageSize
	case "voice":
		return l.MaxVoiceSize
	default:
		return 0
	}
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration for logical errors beyond required fields.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Chat.EnableQueue && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("CHAT_ENABLE_QUEUE requires KAFKA_BROKERS")
	}
	return nil
}
