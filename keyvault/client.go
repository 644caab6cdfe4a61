package keyvault

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/checktick/survey-key-recovery/interfaces"
)

// ComponentSize is the exact size of a vault-held key component.
const ComponentSize = 64

// Config holds the connection and AppRole settings for the Vault client.
type Config struct {
	// Address is the Vault server address, e.g. https://vault.example.com:8200.
	Address string

	// MountPath is the KV v2 mount, e.g. "secret".
	MountPath string

	// DataPath is the path prefix within the mount, e.g. "survey-recovery".
	DataPath string

	// RoleID and SecretID are the AppRole credentials.
	RoleID   string
	SecretID string
}

// Client talks to HashiCorp Vault. It implements interfaces.KeyVault and
// interfaces.KeyEscrow.
type Client struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// NewClient creates a Vault client and performs the AppRole login. The
// returned client holds the session token for its lifetime; the operator
// CLI is short-lived so no renewal loop is run.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	vaultCfg := api.DefaultConfig()
	vaultCfg.Address = cfg.Address
	vaultCfg.Timeout = 30 * time.Second

	client, err := api.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	c := &Client{
		client:    client,
		mountPath: strings.TrimSuffix(cfg.MountPath, "/"),
		dataPath:  strings.Trim(cfg.DataPath, "/"),
		log:       log,
	}

	if cfg.RoleID != "" {
		if err := c.loginAppRole(ctx, cfg.RoleID, cfg.SecretID); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) loginAppRole(ctx context.Context, roleID, secretID string) error {
	secret, err := c.client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return fmt.Errorf("AppRole login failed: %w", err)
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return fmt.Errorf("AppRole login returned no token")
	}

	c.client.SetToken(secret.Auth.ClientToken)
	c.log.Debug("Authenticated to Vault via AppRole",
		slog.String("address", c.client.Address()),
		slog.Int("lease_duration", secret.Auth.LeaseDuration))
	return nil
}

func (c *Client) componentPath(id interfaces.ComponentID) string {
	return fmt.Sprintf("%s/data/%s/components/%s", c.mountPath, c.dataPath, id)
}

func (c *Client) escrowPath(user interfaces.UserID, survey interfaces.SurveyID) string {
	return fmt.Sprintf("%s/data/%s/escrow/%s/%s", c.mountPath, c.dataPath, user, survey)
}

// GetVaultComponent implements interfaces.KeyVault. The component is stored
// as a hex string and must decode to exactly ComponentSize bytes.
func (c *Client) GetVaultComponent(ctx context.Context, id interfaces.ComponentID) ([]byte, error) {
	path := c.componentPath(id)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		c.log.Error("Failed to read component from Vault",
			slog.String("path", path),
			"err", err)
		return nil, fmt.Errorf("failed to read component from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: vault component %s", interfaces.ErrNotFound, id)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid KV v2 response for %s", path)
	}
	encoded, ok := data["component"].(string)
	if !ok {
		return nil, fmt.Errorf("component field missing at %s", path)
	}

	component, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("component at %s is not valid hex: %w", path, err)
	}
	if len(component) != ComponentSize {
		return nil, fmt.Errorf("component at %s has %d bytes, want %d", path, len(component), ComponentSize)
	}

	c.log.Debug("Fetched vault component", slog.String("component_id", string(id)))
	return component, nil
}

// StoreWrappedKey implements interfaces.KeyEscrow.
func (c *Client) StoreWrappedKey(ctx context.Context, user interfaces.UserID, survey interfaces.SurveyID, blob []byte) error {
	path := c.escrowPath(user, survey)

	_, err := c.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"data": map[string]interface{}{
			"wrapped_key": hex.EncodeToString(blob),
			"stored_at":   time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		c.log.Error("Failed to escrow wrapped key",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("failed to escrow wrapped key: %w", err)
	}

	c.log.Info("Escrowed re-wrapped key material",
		slog.String("user_id", string(user)),
		slog.String("survey_id", string(survey)))
	return nil
}

// HealthCheck implements interfaces.KeyVault using Vault's health endpoint.
func (c *Client) HealthCheck(ctx context.Context) (interfaces.VaultHealth, error) {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := c.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		return interfaces.VaultHealth{}, fmt.Errorf("vault health check failed: %w", err)
	}

	return interfaces.VaultHealth{
		Initialized: health.Initialized,
		Sealed:      health.Sealed,
		Standby:     health.Standby,
		Version:     health.Version,
	}, nil
}
