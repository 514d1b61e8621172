package mongo

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	defaultURI      = "mongodb://localhost:27017"
	defaultDatabase = "voiceweb3"
	defaultTimeout  = 10 * time.Second
)

// Config carries the transcript store connection settings.
type Config struct {
	URI      string
	Database string
	// Timeout bounds the initial connect and ping.
	Timeout time.Duration
}

// NewConfigFromEnv reads TRANSCRIPT_DB_URI, TRANSCRIPT_DB_NAME and
// TRANSCRIPT_DB_TIMEOUT_SECONDS, falling back to local-development defaults.
func NewConfigFromEnv() Config {
	config := Config{
		URI:      os.Getenv("TRANSCRIPT_DB_URI"),
		Database: os.Getenv("TRANSCRIPT_DB_NAME"),
		Timeout:  defaultTimeout,
	}
	if raw := os.Getenv("TRANSCRIPT_DB_TIMEOUT_SECONDS"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			config.Timeout = time.Duration(seconds) * time.Second
		}
	}
	return config
}

func (c Config) withDefaults() Config {
	if c.URI == "" {
		c.URI = defaultURI
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Client wraps the MongoDB connection behind the transcript store.
type Client struct {
	*mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects to the transcript database and verifies the connection
// with a ping before returning.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	config = config.withDefaults()

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(10).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(30*time.Minute).
		SetServerSelectionTimeout(5*time.Second).
		SetConnectTimeout(config.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to transcript database: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping transcript database: %w", err)
	}

	logger.Info("Transcript database connected",
		zap.String("database", config.Database))

	return &Client{
		Client:   client,
		Database: client.Database(config.Database),
		logger:   logger,
	}, nil
}

// Close disconnects from the transcript database.
func (c *Client) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from transcript database", zap.Error(err))
		return err
	}
	c.logger.Info("Transcript database disconnected")
	return nil
}
