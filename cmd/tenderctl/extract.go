package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/handlers"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/extraction"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a structured tender record",
	Long: `Extract reference, title, organization, closing date and line items from
a tender. Records that need a human look are flagged for review.

Examples:
  # Extract from a text file
  tenderctl extract text notice.txt

  # Extract from stdin
  pdftotext tender.pdf - | tenderctl extract text -

  # Upload a scanned tender
  tenderctl extract file scan.jpg

  # Let the gateway fetch the document
  tenderctl extract url https://moh.example.gov/tenders/45-2024.pdf`,
}

var extractTextCmd = &cobra.Command{
	Use:   "text <file|->",
	Short: "Extract from plain text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		var result extraction.Result
		if err := client.postJSON(cmd.Context(), "/api/v1/extractions/text",
			handlers.TextExtractionRequest{Text: string(text)}, &result); err != nil {
			return err
		}
		return printResult(cmd, &result)
	},
}

var extractFileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Upload a PDF or image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}
		mimeType, _ := cmd.Flags().GetString("mime-type")

		var result extraction.Result
		if err := client.upload(cmd.Context(), "/api/v1/extractions/document", args[0], data, mimeType, &result); err != nil {
			return err
		}
		return printResult(cmd, &result)
	},
}

var extractURLCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Have the gateway fetch and extract a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mimeType, _ := cmd.Flags().GetString("mime-type")

		var result extraction.Result
		if err := client.postJSON(cmd.Context(), "/api/v1/extractions/document",
			handlers.DocumentExtractionRequest{URL: args[0], MimeType: mimeType}, &result); err != nil {
			return err
		}
		return printResult(cmd, &result)
	},
}

func init() {
	extractFileCmd.Flags().String("mime-type", "", "override the detected media type")
	extractURLCmd.Flags().String("mime-type", "", "override the served media type")

	extractCmd.AddCommand(extractTextCmd)
	extractCmd.AddCommand(extractFileCmd)
	extractCmd.AddCommand(extractURLCmd)
	rootCmd.AddCommand(extractCmd)
}

// readInput reads a file, or stdin when name is "-"
func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, eris.Wrap(err, "read stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", name)
	}
	return data, nil
}

func printResult(cmd *cobra.Command, result *extraction.Result) error {
	logger.Debug("extraction finished",
		zap.String("id", result.ID),
		zap.String("provider", result.Provider),
		zap.Int("attempts", result.Attempts))

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	formatResult(cmd.OutOrStdout(), result)
	return nil
}

// formatResult writes a human-readable summary of an extraction
func formatResult(w io.Writer, r *extraction.Result) {
	t := r.Extraction
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Reference:\t%s\t(%.2f)\n", orDash(t.Reference), t.Confidence.Reference)
	fmt.Fprintf(tw, "Title:\t%s\t(%.2f)\n", orDash(t.Title), t.Confidence.Title)
	fmt.Fprintf(tw, "Organization:\t%s\t(%.2f)\n", orDash(t.Organization), t.Confidence.Organization)
	fmt.Fprintf(tw, "Closing date:\t%s\t(%.2f)\n", orDash(t.ClosingDate), t.Confidence.ClosingDate)
	fmt.Fprintf(tw, "Language:\t%s\t\n", orDash(t.Language))
	fmt.Fprintf(tw, "Confidence:\t%.2f\t\n", t.Confidence.Overall)
	fmt.Fprintf(tw, "Quality score:\t%d/100\t\n", r.Validation.Score)
	fmt.Fprintf(tw, "Provider:\t%s\t%d attempt(s)\n", orDash(r.Provider), r.Attempts)
	_ = tw.Flush()

	if len(t.Items) > 0 {
		fmt.Fprintln(w)
		iw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(iw, "#\tDESCRIPTION\tQTY\tUNIT")
		for i, item := range t.Items {
			fmt.Fprintf(iw, "%d\t%s\t%d\t%s\n", i+1, truncate(item.Description, 60), item.Quantity, item.Unit)
		}
		_ = iw.Flush()
	}

	for _, e := range r.Validation.Errors {
		fmt.Fprintf(w, "error: %s: %s\n", e.Field, e.Message)
	}
	for _, warn := range r.Validation.Warnings {
		fmt.Fprintf(w, "warning: %s: %s\n", warn.Field, warn.Message)
	}
	if r.ErrorCode != "" {
		fmt.Fprintf(w, "failed: %s (%s)\n", r.Error, r.ErrorCode)
	}
	if r.Partial {
		fmt.Fprintln(w, "note: partial record recovered from a malformed response")
	}
	if r.NeedsReview {
		fmt.Fprintf(w, "NEEDS REVIEW: %s\n", strings.Join(r.ReviewReasons, "; "))
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
