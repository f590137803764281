package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/model"
)

var queryAgent string

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question over the indexed knowledge base",
	Long:  "Runs hybrid retrieval over the built indexes, generates an answer, parses it into the strict payload contract and validates any numeric metrics. The payload is printed as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question := args[0]

		if err := cfg.Validate("query"); err != nil {
			return err
		}

		env, err := initQueryEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		payload, _, err := env.Answer(ctx, question, resolveAgent(queryAgent))
		if err != nil {
			// The caller still gets a well-formed payload on stdout even
			// when the pipeline itself failed.
			zap.L().Error("query failed", zap.String("question", question), zap.Error(err))
			printPayload(model.Unavailable())
			return eris.Wrap(err, "query")
		}

		return printPayload(payload)
	},
}

func printPayload(payload model.AnswerPayload) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func init() {
	queryCmd.Flags().StringVar(&queryAgent, "agent", "", "answer persona: dev, product or test (default from config)")
	rootCmd.AddCommand(queryCmd)
}
