package main

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/index"
)

var evalThreshold float64

// evalCase is one line of the JSONL evaluation file.
type evalCase struct {
	Question       string  `json:"question"`
	ExpectedAnswer string  `json:"expected_answer"`
	MinConfidence  float64 `json:"min_confidence"`
	Agent          string  `json:"agent,omitempty"`
}

// evalResult is the per-case outcome.
type evalResult struct {
	Question   string  `json:"question"`
	Confidence float64 `json:"confidence"`
	Similarity float64 `json:"similarity"`
	Passed     bool    `json:"passed"`
}

// evalReport aggregates a whole evaluation run.
type evalReport struct {
	Total         int          `json:"total"`
	Passed        int          `json:"passed"`
	PassRate      float64      `json:"pass_rate"`
	AvgConfidence float64      `json:"avg_confidence"`
	AvgSimilarity float64      `json:"avg_similarity"`
	Results       []evalResult `json:"results"`
}

var evalCmd = &cobra.Command{
	Use:   "eval <cases.jsonl>",
	Short: "Evaluate answer quality against a JSONL case file",
	Long:  "Runs every case question through the full pipeline and scores the answer against the expected text by embedding similarity, falling back to keyword overlap when embeddings are unavailable. A case passes when both the similarity threshold and its minimum confidence are met.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("eval"); err != nil {
			return err
		}

		cases, err := loadEvalCases(args[0])
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			return eris.Errorf("no cases in %s", args[0])
		}

		env, err := initQueryEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		embedder := initEmbedder()

		report := evalReport{Total: len(cases)}
		for _, c := range cases {
			payload, _, err := env.Answer(ctx, c.Question, resolveAgent(c.Agent))
			if err != nil {
				zap.L().Warn("eval case failed", zap.String("question", c.Question), zap.Error(err))
				report.Results = append(report.Results, evalResult{Question: c.Question})
				continue
			}

			sim := similarity(ctx, embedder, payload.Answer, c.ExpectedAnswer)
			passed := sim >= evalThreshold && payload.Confidence >= c.MinConfidence

			if passed {
				report.Passed++
			}
			report.AvgConfidence += payload.Confidence
			report.AvgSimilarity += sim
			report.Results = append(report.Results, evalResult{
				Question:   c.Question,
				Confidence: payload.Confidence,
				Similarity: sim,
				Passed:     passed,
			})
		}

		report.PassRate = float64(report.Passed) / float64(report.Total)
		report.AvgConfidence /= float64(report.Total)
		report.AvgSimilarity /= float64(report.Total)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

// loadEvalCases reads a JSONL case file, skipping blank lines.
func loadEvalCases(path string) ([]evalCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open cases %s", path)
	}
	defer f.Close() //nolint:errcheck

	var cases []evalCase
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c evalCase
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, eris.Wrapf(err, "decode case at line %d", line)
		}
		if c.Question == "" {
			return nil, eris.Errorf("case at line %d has no question", line)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "read cases %s", path)
	}
	return cases, nil
}

// similarity scores how close the answer is to the expected text in [0,1].
// Embedding cosine similarity when the embedder works, keyword overlap
// otherwise.
func similarity(ctx context.Context, embedder index.Embedder, answer, expected string) float64 {
	a, errA := embedder.Embed(ctx, answer)
	b, errB := embedder.Embed(ctx, expected)
	if errA == nil && errB == nil && len(a) == len(b) {
		return cosine(a, b)
	}

	zap.L().Warn("eval: embedding unavailable, using keyword overlap")
	return keywordOverlap(answer, expected)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// keywordOverlap reports the fraction of expected terms present in the
// answer.
func keywordOverlap(answer, expected string) float64 {
	terms := strings.Fields(strings.ToLower(expected))
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(answer)
	hits := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func init() {
	evalCmd.Flags().Float64Var(&evalThreshold, "similarity-threshold", 0.7, "minimum answer similarity for a case to pass")
	rootCmd.AddCommand(evalCmd)
}
