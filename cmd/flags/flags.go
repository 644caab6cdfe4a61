package flags

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/checktick/survey-key-recovery/common"
	"github.com/checktick/survey-key-recovery/keyvault"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// VaultConfig collects the Vault connection flags into a client config.
func VaultConfig(cCtx *cli.Context) keyvault.Config {
	return keyvault.Config{
		Address:   cCtx.String(VaultAddrFlag.Name),
		MountPath: cCtx.String(VaultMountFlag.Name),
		DataPath:  cCtx.String(VaultPathFlag.Name),
		RoleID:    cCtx.String(VaultRoleIDFlag.Name),
		SecretID:  cCtx.String(VaultSecretIDFlag.Name),
	}
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var DataDirFlag = &cli.StringFlag{
	Name:  "data-dir",
	Value: "./recovery-data",
	Usage: "directory holding recovery requests and audit chains",
}

var VaultAddrFlag = &cli.StringFlag{
	Name:    "vault-addr",
	Value:   "http://127.0.0.1:8200",
	Usage:   "Vault server address",
	EnvVars: []string{"VAULT_ADDR"},
}
var VaultMountFlag = &cli.StringFlag{
	Name:  "vault-mount",
	Value: "secret",
	Usage: "Vault KV v2 mount path",
}
var VaultPathFlag = &cli.StringFlag{
	Name:  "vault-path",
	Value: "survey-recovery",
	Usage: "path prefix within the Vault mount",
}
var VaultRoleIDFlag = &cli.StringFlag{
	Name:    "vault-role-id",
	Usage:   "AppRole role_id for Vault authentication",
	EnvVars: []string{"VAULT_ROLE_ID"},
}
var VaultSecretIDFlag = &cli.StringFlag{
	Name:    "vault-secret-id",
	Usage:   "AppRole secret_id for Vault authentication",
	EnvVars: []string{"VAULT_SECRET_ID"},
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var VaultFlags = []cli.Flag{
	VaultAddrFlag,
	VaultMountFlag,
	VaultPathFlag,
	VaultRoleIDFlag,
	VaultSecretIDFlag,
}
