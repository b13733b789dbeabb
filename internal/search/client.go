package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
)

// ClientConfig holds Elasticsearch connection settings.
type ClientConfig struct {
	URL        string
	Username   string
	Password   string
	MaxRetries int
}

// pingTimeout bounds the startup connection check.
const pingTimeout = 10 * time.Second

// NewClient creates an Elasticsearch client and verifies the connection.
func NewClient(ctx context.Context, cfg ClientConfig) (*es.Client, error) {
	clientConfig := es.Config{
		Addresses:  []string{normalizeURL(cfg.URL)},
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	res, err := client.Info(client.Info.WithContext(pingCtx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error response from Elasticsearch: %s", res.String())
	}

	return client, nil
}

// normalizeURL adds an http:// prefix when the scheme is missing.
func normalizeURL(url string) string {
	if url == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}
