package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/medassist/clinical-core/internal/acidbase"
	"github.com/medassist/clinical-core/internal/fhir/mapper"
)

// sampleFlags binds one float flag per sample field.
var sampleFlags = []struct {
	name  string
	usage string
	field func(*acidbase.Sample) **float64
}{
	{"ph", "arterial pH", func(s *acidbase.Sample) **float64 { return &s.PH }},
	{"paco2", "PaCO2 (mmHg)", func(s *acidbase.Sample) **float64 { return &s.PaCO2 }},
	{"hco3", "bicarbonate (mEq/L)", func(s *acidbase.Sample) **float64 { return &s.HCO3 }},
	{"na", "sodium (mEq/L)", func(s *acidbase.Sample) **float64 { return &s.Na }},
	{"cl", "chloride (mEq/L)", func(s *acidbase.Sample) **float64 { return &s.Cl }},
	{"k", "potassium (mEq/L)", func(s *acidbase.Sample) **float64 { return &s.K }},
	{"albumin", "albumin (g/dL)", func(s *acidbase.Sample) **float64 { return &s.Albumin }},
	{"pao2", "PaO2 (mmHg)", func(s *acidbase.Sample) **float64 { return &s.PaO2 }},
	{"fio2", "FiO2 as a fraction, e.g. 0.21", func(s *acidbase.Sample) **float64 { return &s.FiO2 }},
	{"age", "age (years)", func(s *acidbase.Sample) **float64 { return &s.Age }},
	{"ph-venous", "venous pH", func(s *acidbase.Sample) **float64 { return &s.PHVenous }},
	{"pvco2", "venous PCO2 (mmHg)", func(s *acidbase.Sample) **float64 { return &s.PvCO2 }},
}

// NewBloodGasCmd creates the bloodgas command
func NewBloodGasCmd() *cobra.Command {
	var (
		input            string
		arterial         bool
		includePotassium bool
		format           string
		patient          string
	)
	values := make([]float64, len(sampleFlags))

	cmd := &cobra.Command{
		Use:   "bloodgas",
		Short: "Interpret a blood gas sample",
		Long:  "Interpret an arterial or venous blood gas. Values come from flags or from a JSON\nsample (--input, \"-\" for stdin); flags override the file. Absent values are\nreported as missing, never guessed.",
		Example: `  clinicalctl bloodgas --arterial --ph 7.2 --paco2 30 --hco3 15 --na 140 --cl 100
  echo '{"pHVenous":7.3,"pvCO2":50,"hco3":24}' | clinicalctl bloodgas --input - --format fhir`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			var sample acidbase.Sample
			if input != "" {
				if err := readInput(cmd, input, &sample); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("arterial") {
				sample.IsArterial = arterial
			}
			for i, f := range sampleFlags {
				if cmd.Flags().Changed(f.name) {
					*f.field(&sample) = acidbase.Float(values[i])
				}
			}

			opts := cliCtx.Config.AcidBase.Options()
			if cmd.Flags().Changed("include-potassium") {
				opts.IncludePotassium = includePotassium
			}
			engine, err := acidbase.NewEngine(opts)
			if err != nil {
				return err
			}

			in, err := engine.Interpret(sample)
			if err != nil {
				return err
			}
			cliCtx.Logger.Debug("interpreted",
				zap.String("sample_type", string(in.SampleType)),
				zap.Strings("missing", in.Missing),
			)

			switch format {
			case "json":
				return printJSON(cmd.OutOrStdout(), in, cliCtx.Pretty)
			case "fhir":
				return printJSON(cmd.OutOrStdout(), mapper.BloodGasBundle(in, mapper.Options{
					PatientRef: patient,
					Effective:  time.Now(),
				}), cliCtx.Pretty)
			case "text":
				_, err := fmt.Fprintln(cmd.OutOrStdout(), in.Narrative)
				return err
			default:
				return fmt.Errorf("invalid format: %s (must be json/fhir/text)", format)
			}
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&input, "input", "", "JSON sample file, - for stdin")
	fs.BoolVar(&arterial, "arterial", false, "the sample is arterial")
	fs.BoolVar(&includePotassium, "include-potassium", false, "add potassium to the anion gap")
	fs.StringVar(&format, "format", "json", "output format (json/fhir/text)")
	fs.StringVar(&patient, "patient", "", "patient reference for FHIR output")
	for i, f := range sampleFlags {
		fs.Float64Var(&values[i], f.name, 0, f.usage)
	}
	return cmd
}
