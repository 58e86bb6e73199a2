package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/org/authvault/internal/vault"
	"github.com/spf13/cobra"
)

var listColumns = []string{"id", "name", "note", "created_at"}

// --- add ---

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name> [secret]",
		Short: "Add an account",
		Long:  "Add an account. The Base32 secret is prompted for when not given as an argument.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			note, _ := cmd.Flags().GetString("note")
			var raw string
			if len(args) > 1 {
				raw = args[1]
			} else {
				var err error
				if raw, err = readSecret(cmd, "Secret (Base32): "); err != nil {
					return err
				}
			}
			return withApp(func(a *app) error {
				acct, err := a.store.Add(args[0], raw, note)
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Success! Added account: "+acct.Name)
				printResult(cmd.OutOrStdout(), accountRecord(acct, false))
				return nil
			})
		},
	}
	cmd.Flags().String("note", "", "Free-form note, for example the issuer")
	return cmd
}

// --- list ---

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List accounts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				accounts, err := a.store.List()
				if err != nil {
					return err
				}
				printRows(cmd.OutOrStdout(), listColumns, accountRecords(accounts))
				return nil
			})
		},
	}
}

// --- show ---

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reveal, _ := cmd.Flags().GetBool("reveal")
			return withApp(func(a *app) error {
				acct, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), accountRecord(acct, reveal))
				return nil
			})
		},
	}
	cmd.Flags().Bool("reveal", false, "Include the secret")
	return cmd
}

// --- edit ---

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id|name>",
		Short: "Change the name, secret or note of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("name") && !flags.Changed("secret") && !flags.Changed("note") {
				return errors.New("nothing to change: pass --name, --secret or --note")
			}
			return withApp(func(a *app) error {
				acct, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				name, raw, note := acct.Name, acct.Secret, acct.Note
				if flags.Changed("name") {
					name, _ = flags.GetString("name")
				}
				if flags.Changed("secret") {
					raw, _ = flags.GetString("secret")
				}
				if flags.Changed("note") {
					note, _ = flags.GetString("note")
				}
				updated, err := a.store.Update(acct.ID, name, raw, note)
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Success! Updated account: "+updated.Name)
				printResult(cmd.OutOrStdout(), accountRecord(updated, false))
				return nil
			})
		},
	}
	cmd.Flags().String("name", "", "New name")
	cmd.Flags().String("secret", "", "New Base32 secret")
	cmd.Flags().String("note", "", "New note")
	return cmd
}

// --- delete ---

func deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <id|name>",
		Aliases: []string{"rm"},
		Short:   "Delete an account",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			return withApp(func(a *app) error {
				acct, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				if err := confirm(cmd, yes, fmt.Sprintf("Delete account %q?", acct.Name)); err != nil {
					return err
				}
				if err := a.store.Delete(acct.ID); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Success! Deleted account: "+acct.Name)
				return nil
			})
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// --- search ---

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <keyword>",
		Short: "Find accounts by name or note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				accounts, err := a.store.Search(args[0])
				if err != nil {
					return err
				}
				printRows(cmd.OutOrStdout(), listColumns, accountRecords(accounts))
				return nil
			})
		},
	}
}

// --- stats ---

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				st, err := a.store.Stats()
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), statsRecord(st))
				return nil
			})
		},
	}
}

func statsRecord(st vault.Stats) map[string]any {
	rec := map[string]any{
		"total_accounts":      st.Total,
		"accounts_with_notes": st.WithNotes,
	}
	if st.Oldest != nil {
		rec["oldest_created_at"] = st.Oldest.In(time.Local).Format(time.DateTime)
	}
	if st.Newest != nil {
		rec["newest_created_at"] = st.Newest.In(time.Local).Format(time.DateTime)
	}
	return rec
}
