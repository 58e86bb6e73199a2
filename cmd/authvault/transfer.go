package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/org/authvault/internal/core"
	"github.com/org/authvault/internal/qrcode"
	"github.com/org/authvault/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// --- import-uri ---

func importURICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-uri <otpauth-uri>",
		Short: "Add an account from an otpauth:// URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				acct, err := a.store.ImportURI(args[0])
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Success! Imported account: "+acct.Name)
				printResult(cmd.OutOrStdout(), accountRecord(acct, false))
				return nil
			})
		},
	}
}

// --- qr ---

func qrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qr <id|name>",
		Short: "Show an account as a QR code for another authenticator",
		Long: "Show an account as a QR code. The code encodes the secret; " +
			"with --output it is written as a PNG with owner-only permissions.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issuer, _ := cmd.Flags().GetString("issuer")
			output, _ := cmd.Flags().GetString("output")
			size, _ := cmd.Flags().GetInt("size")
			invert, _ := cmd.Flags().GetBool("invert")
			return withApp(func(a *app) error {
				acct, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				uri, err := a.store.ProvisioningURI(acct.ID, issuer)
				if err != nil {
					return err
				}
				if output == "" {
					art, err := qrcode.Terminal(uri, invert)
					if err != nil {
						return err
					}
					fmt.Fprint(cmd.OutOrStdout(), art)
					return nil
				}
				png, err := qrcode.Generate(uri, size)
				if err != nil {
					return err
				}
				if err := storage.WriteFileAtomic(output, png); err != nil {
					return storage.Wrap("write qr code", output, err)
				}
				printSuccess(cmd.OutOrStdout(), "Success! QR code written to "+output)
				return nil
			})
		},
	}
	cmd.Flags().String("issuer", "", "Issuer shown by the scanning app (default AuthVault)")
	cmd.Flags().StringP("output", "o", "", "Write a PNG image to this file instead of printing")
	cmd.Flags().Int("size", qrcode.DefaultSize, "PNG edge length in pixels")
	cmd.Flags().Bool("invert", false, "Invert colors for light terminal backgrounds")
	return cmd
}

// --- backup / restore ---

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup [path]",
		Short: "Write an encrypted backup of the vault",
		Long: "Write an encrypted backup of the vault. The default path is " +
			"<data_dir>/backups/authvault-<timestamp>.vault. Restoring needs the same key file.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultBackupPath()
			if len(args) > 0 {
				path = args[0]
			}
			return withApp(func(a *app) error {
				if err := a.store.Backup(path); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Success! Backup written to "+path)
				printResult(cmd.OutOrStdout(), map[string]any{"path": path})
				return nil
			})
		},
	}
}

func defaultBackupPath() string {
	name := "authvault-" + now().Format("20060102-150405") + ".vault"
	return filepath.Join(cfg.DataDir, "backups", name)
}

func restoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <path>",
		Short: "Replace the vault with an encrypted backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if err := confirm(cmd, yes, "Replace every account in the vault with the backup?"); err != nil {
				return err
			}
			return withApp(func(a *app) error {
				n, err := a.store.Restore(args[0])
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Success! Restored "+strconv.Itoa(n)+" accounts")
				printResult(cmd.OutOrStdout(), map[string]any{"accounts": n})
				return nil
			})
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// --- export / import ---

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write the vault as unencrypted JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if err := confirm(cmd, yes, "The export contains every secret in plain text. Continue?"); err != nil {
				return err
			}
			return withApp(func(a *app) error {
				if err := a.store.ExportPlain(args[0]); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Success! Vault exported to "+args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Replace the vault with an unencrypted JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if err := confirm(cmd, yes, "Replace every account in the vault with the export?"); err != nil {
				return err
			}
			return withApp(func(a *app) error {
				n, err := a.store.ImportPlain(args[0])
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Success! Imported "+strconv.Itoa(n)+" accounts")
				printResult(cmd.OutOrStdout(), map[string]any{"accounts": n})
				return nil
			})
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// --- config ---

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the effective configuration and whether the key file has been created yet.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keyExists := core.NewKeyManager(cfg.KeyFile, log.Logger).Exists()
			if outputFormat == "json" {
				rec := configRecord()
				rec["key_file_exists"] = keyExists
				printJSON(cmd.OutOrStdout(), rec)
				return nil
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# key file present: %t\n", keyExists)
			return nil
		},
	}
}

func configRecord() map[string]any {
	return map[string]any{
		"data_dir":         cfg.DataDir,
		"vault_file":       cfg.VaultFile,
		"key_file":         cfg.KeyFile,
		"legacy_data_file": cfg.LegacyDataFile,
		"legacy_key_file":  cfg.LegacyKeyFile,
		"strict_load":      cfg.StrictLoad,
		"verify_window":    cfg.VerifyWindow,
		"refresh_interval": cfg.RefreshInterval.String(),
		"audit_log":        cfg.AuditLog,
		"metrics_addr":     cfg.MetricsAddr,
		"log_level":        cfg.LogLevel,
		"log_format":       cfg.LogFormat,
	}
}
