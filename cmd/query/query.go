// Package query provides the read-only commands: score, rate, frequency and summary.
package query

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/runtime"
)

// Output formats
const (
	OutputYAML = "yaml"
	OutputJSON = "json"
)

// Commands creates and returns the query commands
func Commands(rt *runtime.Runtime) []*cobra.Command {
	return []*cobra.Command{
		scoreCommand(rt),
		rateCommand(rt),
		frequencyCommand(rt),
		summaryCommand(rt),
	}
}

func scoreCommand(rt *runtime.Runtime) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "score <camera> <class> [timestamp]",
		Short: "Score a detection against the learned baseline",
		Long: `Score prints whether a detection of class on camera at timestamp (RFC 3339,
default now) is anomalous, with its score in [0,1]. Cameras without enough
history for that hour get a neutral score of 0.5.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts := time.Now()
			if len(args) == 3 {
				parsed, err := time.Parse(time.RFC3339Nano, args[2])
				if err != nil {
					return argumentError("timestamp", args[2], "expected RFC 3339")
				}
				ts = parsed
			}

			verdict, err := rt.Engine.IsAnomalous(cmd.Context(), args[0], args[1], ts)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, verdict)
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func rateCommand(rt *runtime.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "rate <camera> <hour> <day>",
		Short: "Print the decayed activity rate for an hour (0-23) and weekday (0=Sunday)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			hour, err := parseInt("hour", args[1])
			if err != nil {
				return err
			}
			day, err := parseInt("day", args[2])
			if err != nil {
				return err
			}

			rate, err := rt.Engine.GetActivityRate(cmd.Context(), args[0], hour, day)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(rate, 'f', 6, 64))
			return nil
		},
	}
}

func frequencyCommand(rt *runtime.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "frequency <camera> <class> <hour>",
		Short: "Print the decayed frequency of a detection class at an hour (0-23)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			hour, err := parseInt("hour", args[2])
			if err != nil {
				return err
			}

			freq, err := rt.Engine.GetClassFrequency(cmd.Context(), args[0], args[1], hour)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(freq, 'f', 6, 64))
			return nil
		},
	}
}

func summaryCommand(rt *runtime.Runtime) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "summary <camera>",
		Short: "Print the baseline summary of a camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := rt.Engine.GetCameraBaselineSummary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, summary)
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func addOutputFlag(cmd *cobra.Command, output *string) {
	cmd.Flags().StringVarP(output, "output", "o", OutputYAML, "Output format: yaml or json")
}

// render writes v to w as YAML or indented JSON
func render(w io.Writer, format string, v any) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return argumentError("output", format, "expected yaml or json")
	}
}

func parseInt(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, argumentError(name, value, "expected an integer")
	}
	return n, nil
}

func argumentError(name, value, expected string) error {
	return errors.Newf("invalid %s %q: %s", name, value, expected).
		Component("cli").
		Category(errors.CategoryValidation).
		Context("argument", name).
		Build()
}
