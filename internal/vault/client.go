package vault

import (
	"context"
	"fmt"
	"sync"

	"oanda-trading-bot/config"

	"github.com/hashicorp/vault/api"
)

// BrokerCredentials represents the broker credential set stored in Vault.
type BrokerCredentials struct {
	APIKey      string `json:"api_key"`
	AccountID   string `json:"account_id"`
	Environment string `json:"environment"` // "live" or "practice"
}

// Client wraps the HashiCorp Vault client. With Vault disabled it falls back
// to an in-memory store so development setups can run on config-file
// credentials alone.
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cache  map[string]*BrokerCredentials // environment -> credentials cache
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config: cfg,
			cache:  make(map[string]*BrokerCredentials),
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
		cache:  make(map[string]*BrokerCredentials),
	}, nil
}

// StoreCredentials stores broker credentials for an environment in Vault
func (c *Client) StoreCredentials(ctx context.Context, creds BrokerCredentials) error {
	if !c.config.Enabled {
		// Store in local cache only (for development/testing)
		c.mu.Lock()
		c.cache[creds.Environment] = &creds
		c.mu.Unlock()
		return nil
	}

	path := c.secretPath(creds.Environment)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"api_key":     creds.APIKey,
			"account_id":  creds.AccountID,
			"environment": creds.Environment,
		},
	}

	_, err := c.client.Logical().WriteWithContext(ctx, path, secretData)
	if err != nil {
		return fmt.Errorf("failed to store credentials in vault: %w", err)
	}

	// Update cache
	c.mu.Lock()
	c.cache[creds.Environment] = &creds
	c.mu.Unlock()

	return nil
}

// GetCredentials retrieves broker credentials for an environment from Vault
func (c *Client) GetCredentials(ctx context.Context, environment string) (*BrokerCredentials, error) {
	// Check cache first
	c.mu.RLock()
	if cached, ok := c.cache[environment]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("credentials not found and vault is disabled")
	}

	path := c.secretPath(environment)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credentials not found")
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	creds := &BrokerCredentials{
		APIKey:      getString(data, "api_key"),
		AccountID:   getString(data, "account_id"),
		Environment: getString(data, "environment"),
	}

	// Update cache
	c.mu.Lock()
	c.cache[environment] = creds
	c.mu.Unlock()

	return creds, nil
}

// DeleteCredentials deletes broker credentials for an environment from Vault
func (c *Client) DeleteCredentials(ctx context.Context, environment string) error {
	// Remove from cache
	c.mu.Lock()
	delete(c.cache, environment)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	path := c.metadataPath(environment)

	_, err := c.client.Logical().DeleteWithContext(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to delete credentials from vault: %w", err)
	}

	return nil
}

// RotateCredentials updates an existing credential set
func (c *Client) RotateCredentials(ctx context.Context, newCreds BrokerCredentials) error {
	return c.StoreCredentials(ctx, newCreds)
}

// ClearCache clears the in-memory cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]*BrokerCredentials)
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the path for storing a secret
func (c *Client) secretPath(environment string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, environment)
}

// metadataPath returns the metadata path for a secret
func (c *Client) metadataPath(environment string) string {
	return fmt.Sprintf("%s/metadata/%s/%s", c.config.MountPath, c.config.SecretPath, environment)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// NewMockClient creates a disabled client for testing
func NewMockClient() *Client {
	return &Client{
		config: config.VaultConfig{
			Enabled: false,
		},
		cache: make(map[string]*BrokerCredentials),
	}
}
