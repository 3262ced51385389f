package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/talent-pipeline/internal/fingerprint"
	"github.com/jonathan/talent-pipeline/internal/types"
)

var fingerprintStrict bool

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint [candidate.json]",
	Short: "Compute the identity fingerprint of a candidate",
	Long: `Reads one candidate as JSON from a file (or stdin when no file or "-" is given)
and prints the fingerprint the indexer would store for it, with the field it was derived from.

--strict refuses candidates without a LinkedIn URL, GitHub URL or email instead of
hashing the full content.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open candidate file: %w", err)
			}
			defer f.Close()
			in = f
		}
		return printFingerprint(in, cmd.OutOrStdout(), fingerprintStrict)
	},
}

func init() {
	fingerprintCmd.Flags().BoolVar(&fingerprintStrict, "strict", false, "Require an identity field (no content fallback)")
	rootCmd.AddCommand(fingerprintCmd)
}

func printFingerprint(in io.Reader, out io.Writer, strict bool) error {
	var candidate types.Candidate
	if err := json.NewDecoder(in).Decode(&candidate); err != nil {
		return fmt.Errorf("failed to parse candidate JSON: %w", err)
	}

	policy := fingerprint.Default
	if strict {
		policy = fingerprint.Intake
	}
	basis, value, err := fingerprint.Select(candidate, policy)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "%s\t%s\n", fingerprint.Hash(value), basis)
	return err
}
