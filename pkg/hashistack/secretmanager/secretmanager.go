package secretmanager

import (
	"os"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

// ProvideVault builds a client from VAULT_ADDR/VAULT_TOKEN. Without VAULT_ADDR it returns nil
// and config is read from yaml and env only.
func ProvideVault() (*vault.Client, error) {
	addr := os.Getenv("VAULT_ADDR")
	if addr == "" {
		return nil, nil
	}

	client, err := vault.New(vault.WithEnvironment())
	if err != nil {
		return nil, err
	}

	zap.L().Info("vault secrets enabled", zap.String("vault_addr", addr))
	return client, nil
}
