// Command jsonhiststat inspects a serialized json-flex column histogram
// from the command line. It has two subcommands: "selectivity", which
// loads a histogram file and estimates the selectivity of a single
// predicate (--path, --op, --value, with --func and --type controlling
// how the path and comparands are interpreted), and "ndv", which reports
// the aggregated distinct-value count for a path across its typed
// siblings. Both accept -v to enable zap diagnostic logging.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/optiflex/jsonhist"
)

type statFlags struct {
	path          string
	op            string
	comparands    []string
	funcShape     string
	comparandType string
	verbose       bool
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "jsonhiststat",
		Short: "Inspect a json-flex column histogram and estimate predicate selectivity",
	}

	rootCmd.AddCommand(selectivityCmd())
	rootCmd.AddCommand(ndvCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func selectivityCmd() *cobra.Command {
	flags := &statFlags{}
	cmd := &cobra.Command{
		Use:   "selectivity <histogram.json>",
		Short: "Estimate the selectivity of a predicate against a serialized histogram",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSelectivity(args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.path, "path", "", "JSON path expression, e.g. $.a.b[0]")
	cmd.Flags().StringVar(&flags.op, "op", "EQ", "operator: EQ, NEQ, LT, LE, GT, GE, BETWEEN, NOT_BETWEEN, IN, NOT_IN, IS_NULL, IS_NOT_NULL")
	cmd.Flags().StringSliceVar(&flags.comparands, "value", nil, "comparand value(s); repeat for BETWEEN/IN")
	cmd.Flags().StringVar(&flags.funcShape, "func", "JSON_UNQUOTE", "surrounding function: JSON_EXTRACT, JSON_UNQUOTE, JSON_VALUE")
	cmd.Flags().StringVar(&flags.comparandType, "type", "string", "comparand type: int, float, bool, string")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable diagnostic logging")
	cmd.MarkFlagRequired("path")

	return cmd
}

func ndvCmd() *cobra.Command {
	var path string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "ndv <histogram.json>",
		Short: "Report the aggregated NDV for a path across its typed siblings",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runNDV(args[0], path, verbose)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "JSON path expression, e.g. $.a.b[0]")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable diagnostic logging")
	cmd.MarkFlagRequired("path")
	return cmd
}

func runSelectivity(file string, flags *statFlags) error {
	logger := newLogger(flags.verbose)
	defer logger.Sync()

	h, err := loadHistogram(file)
	if err != nil {
		return err
	}

	funcKind, err := resolveFuncFlag(flags.funcShape)
	if err != nil {
		return err
	}
	op, err := resolveOpFlag(flags.op)
	if err != nil {
		return err
	}
	comparands, err := parseComparands(flags.comparands, flags.comparandType)
	if err != nil {
		return err
	}

	fn := jsonhist.Func{Kind: funcKind, Path: []byte(flags.path)}
	logger.Debug("evaluating selectivity", zap.String("path", flags.path), zap.String("op", flags.op))

	sel, err := h.Selectivity(fn, op, comparands)
	if err != nil {
		return fmt.Errorf("jsonhiststat: selectivity: %w", err)
	}
	fmt.Printf("%.6f\n", sel)
	return nil
}

func runNDV(file, path string, verbose bool) error {
	logger := newLogger(verbose)
	defer logger.Sync()

	h, err := loadHistogram(file)
	if err != nil {
		return err
	}
	ndv, ok := h.NDV(jsonhist.Func{Path: []byte(path)})
	if !ok {
		fmt.Println("none")
		return nil
	}
	fmt.Println(*ndv)
	return nil
}

func loadHistogram(file string) (*jsonhist.Histogram, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("jsonhiststat: reading %s: %w", file, err)
	}
	h, err := jsonhist.FromJSON(raw, jsonhist.BinaryCollator{})
	if err != nil {
		return nil, fmt.Errorf("jsonhiststat: parsing %s: %w", file, err)
	}
	return h, nil
}

func resolveFuncFlag(s string) (jsonhist.FuncKind, error) {
	switch s {
	case "JSON_EXTRACT":
		return jsonhist.FuncJSONExtract, nil
	case "JSON_UNQUOTE":
		return jsonhist.FuncJSONUnquoteExtract, nil
	case "JSON_VALUE":
		return jsonhist.FuncJSONValue, nil
	default:
		return 0, fmt.Errorf("jsonhiststat: unknown --func %q", s)
	}
}

func resolveOpFlag(s string) (jsonhist.Operator, error) {
	switch s {
	case "EQ":
		return jsonhist.OpEQ, nil
	case "NEQ":
		return jsonhist.OpNEQ, nil
	case "LT":
		return jsonhist.OpLT, nil
	case "LE":
		return jsonhist.OpLE, nil
	case "GT":
		return jsonhist.OpGT, nil
	case "GE":
		return jsonhist.OpGE, nil
	case "BETWEEN":
		return jsonhist.OpBetween, nil
	case "NOT_BETWEEN":
		return jsonhist.OpNotBetween, nil
	case "IN":
		return jsonhist.OpIn, nil
	case "NOT_IN":
		return jsonhist.OpNotIn, nil
	case "IS_NULL":
		return jsonhist.OpIsNull, nil
	case "IS_NOT_NULL":
		return jsonhist.OpIsNotNull, nil
	default:
		return 0, fmt.Errorf("jsonhiststat: unknown --op %q", s)
	}
}

func parseComparands(raw []string, typ string) ([]jsonhist.Primitive, error) {
	out := make([]jsonhist.Primitive, 0, len(raw))
	for _, s := range raw {
		switch typ {
		case "int":
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("jsonhiststat: parsing int comparand %q: %w", s, err)
			}
			out = append(out, jsonhist.IntPrimitive(v))
		case "float":
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("jsonhiststat: parsing float comparand %q: %w", s, err)
			}
			out = append(out, jsonhist.FloatPrimitive(v))
		case "bool":
			v, err := strconv.ParseBool(s)
			if err != nil {
				return nil, fmt.Errorf("jsonhiststat: parsing bool comparand %q: %w", s, err)
			}
			out = append(out, jsonhist.BoolPrimitive(v))
		case "string":
			out = append(out, jsonhist.StringPrimitive(jsonhist.NewBucketString([]byte(s), jsonhist.BinaryCollator{})))
		default:
			return nil, fmt.Errorf("jsonhiststat: unknown --type %q", typ)
		}
	}
	return out, nil
}
