// Package cli implements schedulectl, the operator tool for the schedule
// engine and its supporting services.
//
//	schedulectl
//	├── recalc -f FILE [--now] [-o json|yaml]   recalculate a schedule file offline
//	├── calendar
//	│   ├── show [-o json|yaml]                 print the normalized calendar
//	│   ├── next-working-day DATE               align a date to the calendar
//	│   └── add-days DATE N                     add N business days
//	├── apikey hash [KEY]                       bcrypt an API key for config
//	├── token --org ORG [--role]                sign a development JWT
//	└── outbox replay [--event-id|--limit]      republish failed outbox events
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"obraflow/pkg/schedule"
)

const version = "1.0.0"

// BuildCLI assembles the command tree.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "schedulectl",
		Short:         "Schedule recalculation toolkit",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config-dir", "config", "directory holding base.yaml and <env>.yaml")
	rootCmd.PersistentFlags().String("env", "", "config environment (defaults to CONFIG_ENV or local)")

	rootCmd.AddCommand(
		buildRecalcCommand(),
		buildCalendarCommand(),
		buildAPIKeyCommand(),
		buildTokenCommand(),
		buildOutboxCommand(),
	)
	return rootCmd
}

// recalcInput is the file format accepted by recalc.
type recalcInput struct {
	Now          *time.Time               `json:"now,omitempty" yaml:"now,omitempty"`
	Calendar     *schedule.CalendarConfig `json:"calendar,omitempty" yaml:"calendar,omitempty"`
	Items        []schedule.Item          `json:"items" yaml:"items"`
	Dependencies []schedule.Dependency    `json:"dependencies" yaml:"dependencies"`
}

func buildRecalcCommand() *cobra.Command {
	var (
		file   string
		now    string
		output string
	)

	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Recalculate a schedule described in a JSON or YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readRecalcInput(file)
			if err != nil {
				return err
			}

			at := time.Now()
			if in.Now != nil {
				at = *in.Now
			}
			if now != "" {
				if at, err = parseInstant(now); err != nil {
					return err
				}
			}

			result := schedule.RecalculateAt(at, in.Items, in.Dependencies, in.Calendar)
			return writeOutput(cmd.OutOrStdout(), output, result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "schedule file (.json, .yaml or .yml); - reads JSON from stdin")
	cmd.Flags().StringVar(&now, "now", "", "evaluation instant, RFC3339 or YYYY-MM-DD (UTC midnight)")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readRecalcInput(path string) (*recalcInput, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}

	var in recalcInput
	if err := decodeFile(path, data, &in); err != nil {
		return nil, fmt.Errorf("decode schedule file: %w", err)
	}
	return &in, nil
}

func decodeFile(path string, data []byte, out any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, out)
	default:
		return json.Unmarshal(data, out)
	}
}

func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func parseInstant(s string) (time.Time, error) {
	if d := schedule.ParseDate(s); d.Valid() {
		return d.Time(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid instant %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
