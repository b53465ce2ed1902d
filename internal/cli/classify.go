package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewClassifyCmd creates the classify command
func NewClassifyCmd() *cobra.Command {
	var (
		policy  string
		lexicon string
	)

	cmd := &cobra.Command{
		Use:   "classify TEXT...",
		Short: "Classify a free-text clinician query",
		Long:  "Route a query to a score, calculator, protocol or documentation entry. The intent\npolicy scores keywords, context terms and indicators; the score policy requires a\nkeyword confirmed by context or an explicit score request.",
		Example: `  clinicalctl classify "calcular CURB-65 na pneumonia"
  clinicalctl classify --policy score "apgar do recém-nascido"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			cc := cliCtx.Config.Classifier
			switch policy {
			case "intent":
				if lexicon != "" {
					cc.IntentLexiconPath = lexicon
				}
			case "score":
				if lexicon != "" {
					cc.ScoreLexiconPath = lexicon
				}
			default:
				return fmt.Errorf("invalid policy: %s (must be intent/score)", policy)
			}

			intent, score, err := cc.Build()
			if err != nil {
				return err
			}
			c := intent
			if policy == "score" {
				c = score
			}

			res := c.Classify(strings.Join(args, " "))
			cliCtx.Logger.Debug("classified",
				zap.String("policy", res.Policy),
				zap.String("category", string(res.Category)),
				zap.String("slug", res.Slug),
			)
			return printJSON(cmd.OutOrStdout(), res, cliCtx.Pretty)
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "intent", "selection policy (intent/score)")
	cmd.Flags().StringVar(&lexicon, "lexicon", "", "YAML lexicon overriding the configured one")
	return cmd
}
