// asoctl is the operator CLI for the association ledger service. It talks to
// a running api instance over HTTP.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"asoandina.org/internal/coa"
	"asoandina.org/internal/ledgerclient"
)

var version = "0.3.0"

var addr string

var rootCmd = &cobra.Command{
	Use:     "asoctl",
	Short:   "Operator CLI for the association ledger",
	Version: version,
}

func client() *ledgerclient.Client {
	return ledgerclient.New(addr)
}

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Inspect and administer the chart of accounts",
}

var chartListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		accounts, err := client().ListAccounts(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tDESCRIPTION\tNATURE\tPOSTABLE\tSTATUS")
		for _, a := range accounts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", a.Code, a.Description, a.Nature, a.PermitsPosting, a.Status)
		}
		return w.Flush()
	},
}

var chartAddCmd = &cobra.Command{
	Use:   "add <code>",
	Short: "Add an account; the parent is derived from the code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		nature, _ := cmd.Flags().GetString("nature")
		postable, _ := cmd.Flags().GetBool("postable")
		requiresCp, _ := cmd.Flags().GetBool("requires-counterparty")

		acc, err := client().AddAccount(cmd.Context(), coa.Spec{
			Code:                 args[0],
			Description:          description,
			Nature:               coa.Nature(nature),
			PermitsPosting:       postable,
			RequiresCounterparty: requiresCp,
		})
		if err != nil {
			return err
		}
		fmt.Printf("added %s (%s) under %q\n", acc.Code, acc.Description, acc.ParentCode)
		return nil
	},
}

var chartRetireCmd = &cobra.Command{
	Use:   "retire <code>",
	Short: "Retire an account with no postings and no active children",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().RetireAccount(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("retired %s\n", args[0])
		return nil
	},
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post a journal entry from a JSON file (or stdin with -f -)",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		var raw []byte
		var err error
		if file == "-" || file == "" {
			raw, err = os.ReadFile("/dev/stdin")
		} else {
			raw, err = os.ReadFile(file)
		}
		if err != nil {
			return err
		}
		var req ledgerclient.EntryRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("parse entry file: %w", err)
		}

		entry, err := client().PostEntry(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Printf("posted entry %s (sequence %d)\n", entry.ID, entry.Sequence)
		return nil
	},
}

var reverseCmd = &cobra.Command{
	Use:   "reverse <entry-id>",
	Short: "Post the reversal of an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reversal, err := client().Reverse(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("reversed %s with %s\n", args[0], reversal.ID)
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <code>",
	Short: "Show an account's current natural-signed balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bal, err := client().AccountBalance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", bal.AccountCode, bal.Balance)
		return nil
	},
}

var trialBalanceCmd = &cobra.Command{
	Use:   "trial-balance",
	Short: "Print the trial balance, groups aggregated bottom-up",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, _ := cmd.Flags().GetString("as-of")
		tb, err := client().TrialBalance(cmd.Context(), asOf)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tDESCRIPTION\tNATURE\tBALANCE")
		for _, row := range tb.Rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.AccountCode, row.Description, row.Nature, row.Balance)
		}
		return w.Flush()
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger <code>",
	Short: "Page through an account's ledger with running balances",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		limit, _ := cmd.Flags().GetInt("limit")
		after, _ := cmd.Flags().GetUint64("after")

		page, err := client().AccountLedger(cmd.Context(), args[0], from, to, limit, after)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tENTRY\tMEMO\tDEBIT\tCREDIT\tRUNNING")
		for _, ln := range page.Lines {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				ln.Date.Format("2006-01-02"), ln.EntryID, ln.Memo, ln.DebitCents, ln.CreditCents, ln.Running)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if page.NextAfter > 0 {
			fmt.Printf("next page: --after %d\n", page.NextAfter)
		}
		return nil
	},
}

// smoke posts a membership dues entry, checks the aggregated balances, then
// reverses it and checks they return to where they started.
var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Run an end-to-end posting and reversal against a live instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		ctx := cmd.Context()
		date, _ := cmd.Flags().GetString("date")

		before, err := c.AccountBalance(ctx, "410505")
		if err != nil {
			return fmt.Errorf("read starting balance: %w", err)
		}

		entry, err := c.PostEntry(ctx, ledgerclient.EntryRequest{
			Date:        date,
			Type:        "ingreso",
			Description: "Smoke: cuota de afiliación",
			Lines: []ledgerclient.EntryLine{
				{AccountCode: "1105", CostCenter: "01", Memo: "Efectivo", Debit: "25000.00"},
				{AccountCode: "410505", CostCenter: "01", Counterparty: "M-0001", Credit: "25000.00"},
			},
		})
		if err != nil {
			return fmt.Errorf("post: %w", err)
		}

		mid, err := c.AccountBalance(ctx, "410505")
		if err != nil {
			return err
		}
		if mid.BalanceCents != before.BalanceCents+2500000 {
			return fmt.Errorf("balance did not move: before=%d after=%d", before.BalanceCents, mid.BalanceCents)
		}

		if _, err := c.Reverse(ctx, entry.ID); err != nil {
			return fmt.Errorf("reverse: %w", err)
		}
		after, err := c.AccountBalance(ctx, "410505")
		if err != nil {
			return err
		}
		if after.BalanceCents != before.BalanceCents {
			return fmt.Errorf("reversal did not restore balance: before=%d after=%d", before.BalanceCents, after.BalanceCents)
		}

		fmt.Printf("smoke test passed: entry %s posted and reversed\n", entry.ID)
		return nil
	},
}

func init() {
	defaultAddr := os.Getenv("ASO_API_ADDR")
	if defaultAddr == "" {
		defaultAddr = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", defaultAddr, "Base URL of the ledger api")

	chartAddCmd.Flags().String("description", "", "Account description")
	chartAddCmd.Flags().String("nature", "", "Natural balance side: debit or credit")
	chartAddCmd.Flags().Bool("postable", false, "Whether entries may post directly to the account")
	chartAddCmd.Flags().Bool("requires-counterparty", false, "Whether lines must name a counterparty")
	chartCmd.AddCommand(chartListCmd, chartAddCmd, chartRetireCmd)

	postCmd.Flags().StringP("file", "f", "", "Path to the entry JSON file ('-' for stdin)")

	trialBalanceCmd.Flags().String("as-of", "", "Cutoff date (YYYY-MM-DD, default today)")

	ledgerCmd.Flags().String("from", "", "Period start (YYYY-MM-DD)")
	ledgerCmd.Flags().String("to", "", "Period end (YYYY-MM-DD)")
	ledgerCmd.Flags().Int("limit", 50, "Lines per page")
	ledgerCmd.Flags().Uint64("after", 0, "Resume after this entry sequence")

	smokeCmd.Flags().String("date", "2026-01-15", "Entry date for the smoke posting")

	rootCmd.AddCommand(chartCmd, postCmd, reverseCmd, balanceCmd, trialBalanceCmd, ledgerCmd, smokeCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
