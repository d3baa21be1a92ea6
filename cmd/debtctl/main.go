package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignite/debt-recovery/internal/app"
	"github.com/ignite/debt-recovery/internal/config"
	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/importsource"
	"github.com/ignite/debt-recovery/internal/poller"
	"github.com/ignite/debt-recovery/internal/service/debts"
)

var Version = "dev"

var (
	configPath string
	jsonOut    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "debtctl",
		Short:         "Operate the debt recovery store from the command line",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")

	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(watchCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return nil, err
	}
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Log.Level = "warn"
	}
	app.SetupLogger(cfg.Log)
	return app.New(ctx, cfg)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv|file.xlsx|s3://bucket/key>",
		Short: "Reconcile a debt feed into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var src importsource.RowReader
			if strings.HasPrefix(args[0], "s3://") {
				if a.S3 == nil {
					return fmt.Errorf("S3 is not configured")
				}
				src, err = importsource.OpenS3(ctx, a.S3, args[0])
			} else {
				src, err = importsource.Open(args[0])
			}
			if err != nil {
				return err
			}

			summary, err := a.Importer.Run(ctx, src)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(summary)
			}
			fmt.Printf("Rows:     %d (%d valid, %d invalid)\n", summary.TotalRows, summary.ValidRows, summary.InvalidRows)
			fmt.Printf("Created:  %d\n", summary.Created)
			fmt.Printf("Updated:  %d\n", summary.Updated)
			fmt.Printf("Failed:   %d\n", summary.Failed)
			for _, e := range summary.Errors {
				fmt.Printf("  row %d %s: %s\n", e.Row, e.Email, e.Message)
			}
			return nil
		},
	}
}

func lookup(arg string) debts.Lookup {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return debts.Lookup{ID: id}
	}
	return debts.Lookup{Email: arg}
}

func printDebt(d *domain.Debt) {
	fmt.Printf("ID:        %d\n", d.ID)
	fmt.Printf("Name:      %s\n", d.Name)
	fmt.Printf("Email:     %s\n", d.Email)
	fmt.Printf("Subject:   %s\n", d.Subject)
	fmt.Printf("Amount:    %s\n", d.Amount.StringFixed(2))
	fmt.Printf("Status:    %s\n", d.Status)
	if d.ExternalRef != nil {
		fmt.Printf("Reference: %s\n", *d.ExternalRef)
	}
	fmt.Printf("Updated:   %s\n", d.UpdatedAt.Format(time.RFC3339))
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <email|id>",
		Short: "Show one debt and its payment history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.Debts.Get(ctx, lookup(args[0]))
			if err != nil {
				return err
			}
			payments, err := a.Repo.ListPayments(ctx, d.ID, 0)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(domain.DebtWithPayments{Debt: *d, Payments: payments})
			}
			printDebt(d)
			for _, p := range payments {
				fmt.Printf("  %s  %s  %s  %s\n", p.PaidAt.Format(time.RFC3339), p.Amount.StringFixed(2), p.Status, p.ExternalRef)
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var (
		status, search, sortBy string
		page, limit            int
		asc                    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List debts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Debts.ListWithPayments(ctx, debts.ListFilter{
				Search: search,
				Status: domain.Status(strings.ToUpper(status)),
				SortBy: debts.SortField(sortBy),
				Desc:   !asc,
				Limit:  limit,
			}, page)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(res)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tAMOUNT\tSTATUS\tPAYMENTS")
			for _, d := range res.Debts {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n", d.ID, d.Email, d.Name, d.Amount.StringFixed(2), d.Status, len(d.Payments))
			}
			tw.Flush()
			fmt.Printf("page %d/%d, %d total\n", res.Page, max(res.TotalPages, 1), res.Total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status (PENDING, PAID)")
	cmd.Flags().StringVarP(&search, "search", "q", "", "match name, email or subject")
	cmd.Flags().StringVar(&sortBy, "sort", "createdAt", "sort field")
	cmd.Flags().BoolVar(&asc, "asc", false, "ascending order")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "page size")
	return cmd
}

func watchCmd() *cobra.Command {
	var interval, timeout time.Duration
	cmd := &cobra.Command{
		Use:   "watch <email|id>",
		Short: "Wait until a debt is paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.Debts.Get(ctx, lookup(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("Watching debt %d (%s)...\n", d.ID, d.Status)

			p := poller.New(a.Repo, poller.Config{Interval: interval, Timeout: timeout})
			result, settled, err := p.Watch(ctx, d.ID, func(d *domain.Debt) {
				fmt.Printf("Settled by %s\n", d.Ref())
			})
			if err != nil {
				return err
			}
			switch result {
			case poller.ResultSettled:
				if jsonOut {
					return printJSON(settled)
				}
				printDebt(settled)
				return nil
			case poller.ResultTimedOut:
				return fmt.Errorf("debt %d still pending after %s", d.ID, timeout)
			default:
				return fmt.Errorf("watch cancelled")
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", poller.DefaultInterval, "poll interval")
	cmd.Flags().DurationVar(&timeout, "timeout", poller.DefaultTimeout, "give up after")
	return cmd
}
