package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/buildforge/internal/calc"
	"github.com/vietddude/buildforge/internal/core/domain"
)

var calculateCmd = &cobra.Command{
	Use:   "calculate [build.json]",
	Short: "Calculate the statistics of a build file (stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCalculate,
}

func init() {
	rootCmd.AddCommand(calculateCmd)
}

func runCalculate(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open build file: %w", err)
		}
		defer f.Close()
		in = f
	}

	stats, err := calculate(in, calc.New(nil, cfg.Calculator))
	if err != nil {
		var cErr *domain.CalculationError
		if errors.As(err, &cErr) {
			_ = printJSON(cmd.ErrOrStderr(), cErr.Breakdown)
		}
		return err
	}
	return printJSON(cmd.OutOrStdout(), stats)
}

func calculate(r io.Reader, c *calc.Calculator) (*domain.BuildStats, error) {
	var build domain.BuildConfig
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&build); err != nil {
		return nil, fmt.Errorf("decode build: %w", err)
	}
	return c.Calculate(build)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
