package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/checktick/survey-key-recovery/audit"
	"github.com/checktick/survey-key-recovery/cmd/flags"
	"github.com/checktick/survey-key-recovery/interfaces"
	"github.com/checktick/survey-key-recovery/keyvault"
	"github.com/checktick/survey-key-recovery/notify"
	"github.com/checktick/survey-key-recovery/platform"
	"github.com/checktick/survey-key-recovery/recovery"
	"github.com/checktick/survey-key-recovery/shamir"
	"github.com/checktick/survey-key-recovery/storage"
)

var flagCustodianComponent = &cli.StringFlag{
	Name:     "custodian-component",
	Required: true,
	Usage:    "custodian key component as a 128-char hex string",
}
var flagShares = &cli.IntFlag{
	Name:  "shares",
	Value: 4,
	Usage: "total number of shares to generate",
}
var flagThreshold = &cli.IntFlag{
	Name:  "threshold",
	Value: 3,
	Usage: "number of shares required for reconstruction",
}
var flagOriginal = &cli.StringFlag{
	Name:  "original",
	Usage: "original component hex to verify the reconstruction against",
}
var flagRequestID = &cli.StringFlag{
	Name:     "recovery-request-id",
	Required: true,
	Usage:    "recovery request identifier",
}
var flagCustodianShare = &cli.StringSliceFlag{
	Name:  "custodian-share",
	Usage: "custodian share (repeat once per share)",
}
var flagNewPassword = &cli.StringFlag{
	Name:     "new-password",
	Required: true,
	Usage:    "user's new password to wrap the recovered key under",
}
var flagApprovedBy = &cli.StringFlag{
	Name:     "audit-approved-by",
	Required: true,
	Usage:    "administrator who authorized this execution, for the audit record",
}
var flagDryRun = &cli.BoolFlag{
	Name:  "dry-run",
	Usage: "report expired time delays without transitioning them",
}
var flagVerbose = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "list each processed request",
}

func main() {
	app := &cli.App{
		Name:  "recoveryctl",
		Usage: "operator tooling for survey key recovery",
		Commands: []*cli.Command{
			{
				Name:        "split-custodian-component",
				Usage:       "split a custodian key component into distributable shares",
				Description: "Splits the custodian-held key component into n shares of which any t reconstruct it. Run on an air-gapped machine and distribute the shares immediately.",
				Flags:       append([]cli.Flag{flagCustodianComponent, flagShares, flagThreshold}, flags.CommonFlags...),
				Action:      splitCustodianComponent,
			},
			{
				Name:        "test-custodian-reconstruction",
				Usage:       "reconstruct a component from shares and verify it",
				Description: "Combines the shares given as arguments and prints the reconstructed component. With --original, verifies the reconstruction matches.",
				Flags:       append([]cli.Flag{flagOriginal}, flags.CommonFlags...),
				ArgsUsage:   "<share> <share>...",
				Action:      testCustodianReconstruction,
			},
			{
				Name:        "execute-platform-recovery",
				Usage:       "execute a pending platform recovery request",
				Description: "Reconstructs the custodian component from the supplied shares, derives the key-encryption key with the vault-held component, re-wraps it under the user's new password, and completes the request.",
				Flags: append(append([]cli.Flag{
					flagRequestID, flagCustodianShare, flagNewPassword, flagApprovedBy, flags.DataDirFlag,
				}, flags.VaultFlags...), flags.CommonFlags...),
				Action: executePlatformRecovery,
			},
			{
				Name:        "process-time-delays",
				Usage:       "promote recovery requests whose time delay has expired",
				Flags:       append([]cli.Flag{flagDryRun, flagVerbose, flags.DataDirFlag}, flags.CommonFlags...),
				Action:      processTimeDelays,
			},
			{
				Name:        "verify-audit-chain",
				Usage:       "verify the tamper-evident audit chain of a request",
				Flags:       append([]cli.Flag{flagRequestID, flags.DataDirFlag}, flags.CommonFlags...),
				Action:      verifyAuditChain,
			},
			{
				Name:        "vault-check",
				Usage:       "check key vault availability",
				Flags:       append(append([]cli.Flag{}, flags.VaultFlags...), flags.CommonFlags...),
				Action:      vaultCheck,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func splitCustodianComponent(cCtx *cli.Context) error {
	component, err := hex.DecodeString(cCtx.String(flagCustodianComponent.Name))
	if err != nil {
		return fmt.Errorf("custodian component is not valid hex: %w", err)
	}
	total := cCtx.Int(flagShares.Name)
	threshold := cCtx.Int(flagThreshold.Name)

	shares, err := shamir.Split(component, threshold, total)
	if err != nil {
		return err
	}
	platform.Wipe(component)

	fmt.Printf("Splitting custodian component into %d shares (threshold %d)\n\n", total, threshold)
	for i, share := range shares {
		fmt.Printf("Share %d/%d: %s\n", i+1, total, share.String())
	}
	fmt.Printf("\n%d of %d shares required for reconstruction\n", threshold, total)
	fmt.Println()
	fmt.Println("SECURITY INSTRUCTIONS")
	fmt.Println("  - Distribute each share to a different custodian")
	fmt.Println("  - Delete this terminal output after distribution")
	fmt.Println("  - NEVER store the original custodian component")
	return nil
}

func testCustodianReconstruction(cCtx *cli.Context) error {
	if cCtx.NArg() < 2 {
		return fmt.Errorf("at least 2 shares required, got %d", cCtx.NArg())
	}

	shares, err := shamir.ParseShares(cCtx.Args().Slice())
	if err != nil {
		return err
	}

	fmt.Printf("Using %d shares for reconstruction\n", len(shares))
	reconstructed, err := shamir.Reconstruct(shares)
	if err != nil {
		return err
	}
	fmt.Printf("Reconstructed Component (hex): %s\n", hex.EncodeToString(reconstructed))

	if original := cCtx.String(flagOriginal.Name); original != "" {
		want, err := hex.DecodeString(original)
		if err != nil {
			return fmt.Errorf("original component is not valid hex: %w", err)
		}
		if !shamir.VerifyReconstruction(reconstructed, want) {
			fmt.Println("FAILURE: Reconstructed component does NOT match original")
			return cli.Exit("", 1)
		}
		fmt.Println("SUCCESS: Reconstructed component matches original")
	}
	return nil
}

func executePlatformRecovery(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	ctx := context.Background()

	store, err := storage.NewFileStore(cCtx.String(flags.DataDirFlag.Name), logger)
	if err != nil {
		return err
	}

	vault, err := keyvault.NewClient(ctx, flags.VaultConfig(cCtx), logger)
	if err != nil {
		return err
	}

	executor := platform.NewExecutor(store, vault, vault, logger, recovery.DefaultPolicy())
	id := interfaces.RequestID(cCtx.String(flagRequestID.Name))
	approver := interfaces.Actor{ID: cCtx.String(flagApprovedBy.Name), IsAdministrator: true}

	err = executor.Execute(ctx, id, cCtx.StringSlice(flagCustodianShare.Name),
		cCtx.String(flagNewPassword.Name), approver)
	if err != nil {
		return fmt.Errorf("platform recovery failed: %w", err)
	}

	fmt.Printf("Platform recovery executed for request %s\n", id)
	return nil
}

func processTimeDelays(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	ctx := context.Background()

	store, err := storage.NewFileStore(cCtx.String(flags.DataDirFlag.Name), logger)
	if err != nil {
		return err
	}

	svc := recovery.NewService(store, notify.NewLogNotifier(logger), logger, recovery.DefaultPolicy())
	sweeper := recovery.NewSweeper(svc, store, logger).WithDryRun(cCtx.Bool(flagDryRun.Name))

	stats, err := sweeper.ProcessOnce(ctx)
	if err != nil {
		return err
	}

	if cCtx.Bool(flagVerbose.Name) {
		fmt.Printf("Found %d expired time delay(s), %d error(s)\n", stats.Found, stats.Errors)
	}
	if cCtx.Bool(flagDryRun.Name) {
		fmt.Printf("Would process %d recovery request(s)\n", stats.Processed)
	} else {
		fmt.Printf("Processed %d recovery request(s)\n", stats.Processed)
	}
	return nil
}

func verifyAuditChain(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	ctx := context.Background()

	store, err := storage.NewFileStore(cCtx.String(flags.DataDirFlag.Name), logger)
	if err != nil {
		return err
	}

	id := interfaces.RequestID(cCtx.String(flagRequestID.Name))
	chain := audit.NewChain(store, logger)
	ok, err := chain.Verify(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("Audit chain for request %s is BROKEN\n", id)
		return cli.Exit("", 1)
	}

	entries, err := store.AuditEntries(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Audit chain for request %s verified: %d entries intact\n", id, len(entries))
	return nil
}

func vaultCheck(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	ctx := context.Background()

	vault, err := keyvault.NewClient(ctx, flags.VaultConfig(cCtx), logger)
	if err != nil {
		return err
	}

	health, err := vault.HealthCheck(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Initialized: %t\n", health.Initialized)
	fmt.Printf("Sealed:      %t\n", health.Sealed)
	fmt.Printf("Standby:     %t\n", health.Standby)
	fmt.Printf("Version:     %s\n", health.Version)
	if !health.Initialized || health.Sealed {
		return cli.Exit("vault is not available", 1)
	}
	return nil
}
