package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/assessment"
	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/questions"
)

var (
	assessRequestFile   string
	assessQuestionsFile string
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Run a visibility assessment for a single company",
	Long:  "Loads an assessment request from a JSON file, runs the full query/analysis/scoring pipeline, and prints the completed run as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := loadRequest(assessRequestFile)
		if err != nil {
			return err
		}

		// A questions file replaces any battery in the request.
		qfile := assessQuestionsFile
		if qfile == "" && len(req.Questions) == 0 {
			qfile = cfg.Assessment.QuestionsFile
		}
		if qfile != "" {
			battery, err := questions.Load(qfile)
			if err != nil {
				return err
			}
			req.Questions = battery
		}

		env, err := initPipeline(ctx, stderrProgress)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Engine.Run(ctx, req)
		if err != nil {
			if run == nil {
				return eris.Wrap(err, "assess")
			}
			// A partial run was persisted; report it alongside the error.
			zap.L().Error("assessment failed", zap.String("run_id", run.ID), zap.Error(err))
		}

		if run.Score != nil {
			zap.L().Info("assessment complete",
				zap.String("run_id", run.ID),
				zap.String("company", run.Company.Domain),
				zap.Float64("score", run.Score.Overall),
				zap.Float64("cost_usd", run.CostUSD),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// loadRequest reads an AssessmentRequest from a JSON file.
func loadRequest(path string) (model.AssessmentRequest, error) {
	var req model.AssessmentRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, eris.Wrapf(err, "assess: read request %s", path)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, eris.Wrap(err, "assess: parse request")
	}
	if req.Company.ID == "" {
		req.Company.ID = uuid.NewString()
	}
	return req, nil
}

// stderrProgress prints pipeline checkpoints without polluting stdout JSON.
func stderrProgress(p model.Progress) {
	if p.Total > 0 {
		fmt.Fprintf(os.Stderr, "[%s] %d/%d %s\n", p.Stage, p.Completed, p.Total, p.Message)
		return
	}
	fmt.Fprintf(os.Stderr, "[%s] %s\n", p.Stage, p.Message)
}

var _ assessment.ProgressFunc = stderrProgress

func init() {
	assessCmd.Flags().StringVar(&assessRequestFile, "request", "", "path to assessment request JSON (required)")
	assessCmd.Flags().StringVar(&assessQuestionsFile, "questions", "", "path to a question battery YAML (overrides the request's questions)")
	_ = assessCmd.MarkFlagRequired("request")
	rootCmd.AddCommand(assessCmd)
}
