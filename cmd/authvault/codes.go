package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/org/authvault/internal/api"
	"github.com/org/authvault/internal/totp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var errCodeMismatch = errors.New("code does not match")

var codeColumns = []string{"name", "code", "remaining_seconds"}

// --- code ---

func codeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code <id|name>",
		Short: "Print the current code of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				acct, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				c, err := a.engine.Generate(acct.Secret, now())
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), map[string]any{
					"name":              acct.Name,
					"code":              c.Code,
					"remaining_seconds": c.RemainingSeconds,
					"period":            c.Period,
				})
				return nil
			})
		},
	}
}

// --- codes ---

func codesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes",
		Short: "Print the current codes of all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				accounts, err := a.store.List()
				if err != nil {
					return err
				}
				printCodes(cmd.OutOrStdout(), a.engine.BatchGenerate(accounts, now()))
				return nil
			})
		},
	}
}

func printCodes(w io.Writer, results []totp.Result) {
	rows := make([]map[string]any, len(results))
	for i, r := range results {
		rows[i] = codeRecord(r)
		if r.Err != nil {
			log.Warn().Err(r.Err).Str("account_id", r.AccountID).Msg("cannot generate code")
		}
	}
	printRows(w, codeColumns, rows)
}

// --- verify ---

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <id|name> <code>",
		Short: "Check a code against an account",
		Long:  "Check a code against an account. Exits non-zero when the code does not match.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			window := cfg.VerifyWindow
			if cmd.Flags().Changed("window") {
				window, _ = cmd.Flags().GetInt("window")
			}
			return withApp(func(a *app) error {
				acct, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				ok, err := a.engine.Verify(acct.Secret, args[1], window, now())
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), map[string]any{
					"name":   acct.Name,
					"valid":  ok,
					"window": window,
				})
				if !ok {
					return errCodeMismatch
				}
				return nil
			})
		},
	}
	cmd.Flags().Int("window", 1, "Steps accepted on either side of the current one (default from config)")
	return cmd
}

// --- watch ---

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show all codes, refreshed continuously",
		Long: "Show all codes, refreshed every refresh_interval until interrupted. " +
			"SIGHUP rereads the vault. When metrics_addr is set, /metrics and " +
			"/v1/sys/health are served on it while watching.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			addr := cfg.MetricsAddr
			if cmd.Flags().Changed("metrics-addr") {
				addr, _ = cmd.Flags().GetString("metrics-addr")
			}
			return withApp(func(a *app) error {
				return watch(cmd, a, addr, count)
			})
		},
	}
	cmd.Flags().Int("count", 0, "Stop after this many refreshes (0 runs until interrupted)")
	cmd.Flags().String("metrics-addr", "", "Serve metrics and health on this address (default from config)")
	return cmd
}

func watch(cmd *cobra.Command, a *app, addr string, count int) error {
	accounts, err := a.store.List()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := cmd.OutOrStdout()
	redraw := isTerminal(out) && outputFormat == "table"
	frames := 0
	r := totp.NewRefresher(a.engine, cfg.RefreshInterval, func(results []totp.Result) {
		renderFrame(out, a.engine, results, redraw)
		frames++
		if count > 0 && frames >= count {
			cancel()
		}
	}, totp.WithClock(now))
	r.SetAccounts(accounts)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go reloadOnSignal(ctx, hup, a, r)

	if addr != "" {
		srv := api.NewServer(api.Config{ListenAddr: addr}, func(context.Context) error {
			_, err := a.store.Load()
			return err
		}).WithLogger(log.Logger)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Str("addr", addr).Msg("metrics listener failed")
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("metrics listener shutdown error")
			}
		}()
	}

	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func reloadOnSignal(ctx context.Context, sig <-chan os.Signal, a *app, r *totp.Refresher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			accounts, err := a.store.List()
			if err != nil {
				log.Error().Err(err).Msg("reload failed, keeping previous accounts")
				continue
			}
			r.SetAccounts(accounts)
			log.Info().Int("accounts", len(accounts)).Msg("accounts reloaded")
		}
	}
}

// renderFrame prints one refresh. Table output redraws the screen on a
// terminal; json output is one document per refresh.
func renderFrame(w io.Writer, engine *totp.Engine, results []totp.Result, redraw bool) {
	if outputFormat == "json" {
		rows := make([]map[string]any, len(results))
		for i, r := range results {
			rows[i] = codeRecord(r)
		}
		printJSON(w, rows)
		return
	}
	if redraw {
		fmt.Fprint(w, "\033[H\033[2J")
	}
	printCodes(w, results)
	if outputFormat == "table" {
		fmt.Fprintln(w, progressBar(engine.RemainingFraction(now()), 30))
	}
}

func progressBar(fraction float64, width int) string {
	filled := int(fraction*float64(width) + 0.5)
	filled = max(0, min(filled, width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
