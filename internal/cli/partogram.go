package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/medassist/clinical-core/internal/fhir/mapper"
	"github.com/medassist/clinical-core/internal/partogram"
)

// ChartInput is the JSON accepted by --input.
type ChartInput struct {
	StartTime    *time.Time              `json:"startTime,omitempty"`
	Observations []partogram.Observation `json:"observations"`
	Config       *partogram.Config       `json:"config,omitempty"`
}

// NewPartogramCmd creates the partogram command
func NewPartogramCmd() *cobra.Command {
	var (
		input   string
		points  []string
		start   string
		format  string
		patient string
	)

	cmd := &cobra.Command{
		Use:   "partogram",
		Short: "Compute a partogram chart",
		Long:  "Compute the alert and action lines and the crossing flags for a set of cervical\ndilation assessments. Points are HOURS:CM pairs, or a JSON document via --input\nwhose observations carry timestamps when startTime is set.",
		Example: `  clinicalctl partogram --point 1:4 --point 5:4
  clinicalctl partogram --input labor.json --format fhir`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			var in ChartInput
			if input != "" {
				if err := readInput(cmd, input, &in); err != nil {
					return err
				}
			}
			if start != "" {
				t, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("invalid start time %q: %w", start, err)
				}
				in.StartTime = &t
			}
			obs := in.Observations
			if in.StartTime != nil {
				obs = partogram.PrepareObservations(*in.StartTime, obs)
			}
			for _, p := range points {
				o, err := parsePoint(p)
				if err != nil {
					return err
				}
				obs = append(obs, o)
			}

			cfg := cliCtx.Config.Partogram
			if in.Config != nil {
				cfg = *in.Config
			}

			series, err := partogram.ComputeChartSeries(obs, cfg)
			if err != nil {
				return err
			}
			cliCtx.Logger.Debug("chart computed",
				zap.Int("observations", len(series.Observed)),
				zap.Bool("crosses_action_line", series.CrossesActionLine),
			)

			switch format {
			case "json":
				return printJSON(cmd.OutOrStdout(), series, cliCtx.Pretty)
			case "fhir":
				opts := mapper.Options{PatientRef: patient}
				if in.StartTime != nil {
					opts.Effective = *in.StartTime
				}
				return printJSON(cmd.OutOrStdout(), mapper.PartogramBundle(series, cfg, opts), cliCtx.Pretty)
			default:
				return fmt.Errorf("invalid format: %s (must be json/fhir)", format)
			}
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&input, "input", "", "JSON chart input file, - for stdin")
	fs.StringArrayVar(&points, "point", nil, "assessment as HOURS:CM, repeatable")
	fs.StringVar(&start, "start", "", "start of active labor (RFC 3339); recomputes hours of --input observations")
	fs.StringVar(&format, "format", "json", "output format (json/fhir)")
	fs.StringVar(&patient, "patient", "", "patient reference for FHIR output")
	return cmd
}

// parsePoint reads an HOURS:CM pair.
func parsePoint(s string) (partogram.Observation, error) {
	h, d, ok := strings.Cut(s, ":")
	if !ok {
		return partogram.Observation{}, fmt.Errorf("invalid point %q: expected HOURS:CM", s)
	}
	hours, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return partogram.Observation{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	cm, err := strconv.ParseFloat(strings.TrimSpace(d), 64)
	if err != nil {
		return partogram.Observation{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return partogram.Observation{HoursFromStart: hours, DilationCm: cm}, nil
}
