package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mustafabeshara/Dashboard2-sub000/handlers"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/ratelimit"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured LLM providers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var out []handlers.ProviderInfo
		if err := client.getJSON(cmd.Context(), "/api/v1/providers", &out); err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), out)
		}
		formatProviders(cmd.OutOrStdout(), out)
		return nil
	},
}

var rateLimitsCmd = &cobra.Command{
	Use:   "ratelimits",
	Short: "Show per-provider request quotas",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var out []ratelimit.RateLimitStatus
		if err := client.getJSON(cmd.Context(), "/api/v1/ratelimits", &out); err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), out)
		}
		formatRateLimits(cmd.OutOrStdout(), out)
		return nil
	},
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show spend against the budget ceilings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var out handlers.BudgetResponse
		if err := client.getJSON(cmd.Context(), "/api/v1/budget", &out); err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), out)
		}
		formatBudget(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(rateLimitsCmd)
	rootCmd.AddCommand(budgetCmd)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatProviders(w io.Writer, list []handlers.ProviderInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tNAME\tMODEL\tVISION\tPDF\tRPM\tRPD")
	for _, p := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\t%s\t%s\n",
			p.Priority, p.Name, p.Model, p.Capabilities.Vision, p.Capabilities.NativePDF,
			limitString(p.RateLimitPerMinute), limitString(p.RateLimitPerDay))
	}
	_ = tw.Flush()
}

func formatRateLimits(w io.Writer, list []ratelimit.RateLimitStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMINUTE\tDAY\tELIGIBLE\tMINUTE RESET")
	for _, s := range list {
		reset := "-"
		if !s.MinuteResetAt.IsZero() {
			reset = s.MinuteResetAt.Local().Format(time.TimeOnly)
		}
		fmt.Fprintf(tw, "%s\t%d/%s\t%d/%s\t%t\t%s\n",
			s.Provider, s.RequestsThisMinute, limitString(s.MinuteLimit),
			s.RequestsToday, limitString(s.DayLimit), s.Eligible, reset)
	}
	_ = tw.Flush()
}

func formatBudget(w io.Writer, b handlers.BudgetResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SCOPE\tSPENT (%s)\tLIMIT\tUSED\t\n", b.Currency)
	for _, s := range b.Statuses {
		flag := ""
		if s.Warning {
			flag = "WARNING"
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%.2f\t%.1f%%\t%s\n", s.Scope, s.Spent, s.Limit, s.PercentUsed, flag)
	}
	_ = tw.Flush()
}

func limitString(n int) string {
	if n <= 0 {
		return "∞"
	}
	return fmt.Sprint(n)
}
