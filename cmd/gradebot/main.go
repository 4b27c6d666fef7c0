package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gradebot-go/internal/config"
	"github.com/noah-isme/gradebot-go/internal/dto"
	"github.com/noah-isme/gradebot-go/internal/grading"
	"github.com/noah-isme/gradebot-go/internal/loader"
	"github.com/noah-isme/gradebot-go/pkg/ai"
	"github.com/noah-isme/gradebot-go/pkg/textanalysis"
)

type cliFlags struct {
	configPath  string
	submissions string
	rubricPath  string
	mode        string
	outPath     string
}

// batchEntry is one graded submission in the -out file.
type batchEntry struct {
	SubmissionID string                 `json:"submission_id"`
	Result       *grading.GradingResult `json:"result,omitempty"`
	Score        *grading.ScoreOutcome  `json:"score,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

func main() {
	var flags cliFlags
	flag.StringVar(&flags.configPath, "config", "", "path to a JSON or YAML config file")
	flag.StringVar(&flags.submissions, "submissions", "", "directory of submissions (overrides grading.submission_path)")
	flag.StringVar(&flags.rubricPath, "rubric", "", "rubric CSV file (overrides grading.rubric_path)")
	flag.StringVar(&flags.mode, "mode", dto.ModeRubric, "grading mode: rubric or score")
	flag.StringVar(&flags.outPath, "out", "", "write results as a JSON array to this file instead of stdout")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags, logger); err != nil {
		logger.Error().Err(err).Msg("grading failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, flags cliFlags, logger zerolog.Logger) error {
	if flags.mode != dto.ModeRubric && flags.mode != dto.ModeScore {
		return fmt.Errorf("unknown mode %q", flags.mode)
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	rubricPath := firstSet(flags.rubricPath, cfg.Grading.RubricPath)
	submissionDir := firstSet(flags.submissions, cfg.Grading.SubmissionPath)
	if rubricPath == "" || submissionDir == "" {
		return errors.New("both a rubric file and a submissions directory are required")
	}

	rubric, err := loader.LoadRubric(rubricPath)
	if err != nil {
		return err
	}
	submissions, err := loader.NewSubmissionLoader(cfg.Grading.MaxSubmissionBytes, logger).LoadDir(submissionDir)
	if err != nil {
		return err
	}

	providers, err := ai.NewProviders(cfg.Providers, logger)
	if err != nil {
		return err
	}
	opts, err := cfg.Grading.Options()
	if err != nil {
		return err
	}
	grader, err := grading.NewGrader(opts, textanalysis.NewAnalyzer(), logger)
	if err != nil {
		return err
	}

	logger.Info().
		Int("submissions", len(submissions)).
		Int("criteria", rubric.Len()).
		Int("providers", len(providers)).
		Str("method", string(opts.Method)).
		Msg("grading batch")

	entries := make([]batchEntry, 0, len(submissions))
	failed := 0
	for _, submission := range submissions {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry := batchEntry{SubmissionID: submission.ID}
		if flags.mode == dto.ModeScore {
			entry.Score, err = grader.Score(ctx, submission.ID, submission.Text, rubric, providers)
		} else {
			entry.Result, err = grader.GradeSubmission(ctx, submission.ID, submission.Text, rubric, providers)
		}
		if err != nil {
			if errors.Is(err, grading.ErrNoProviders) {
				return err
			}
			failed++
			entry.Error = err.Error()
			logger.Error().Err(err).Str("submission_id", submission.ID).Msg("submission not graded")
		}
		entries = append(entries, entry)
	}

	if flags.outPath != "" {
		if err := writeJSON(flags.outPath, entries); err != nil {
			return err
		}
		logger.Info().Str("path", flags.outPath).Msg("results written")
	} else if err := printEntries(os.Stdout, entries); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d submissions failed", failed, len(entries))
	}
	return nil
}

func printEntries(w io.Writer, entries []batchEntry) error {
	for _, entry := range entries {
		var (
			payload interface{}
			grade   string
		)
		switch {
		case entry.Error != "":
			fmt.Fprintf(w, "%s: error: %s\n\n", entry.SubmissionID, entry.Error)
			continue
		case entry.Score != nil:
			payload = entry.Score
			grade = "n/a"
			if entry.Score.Grade != nil {
				grade = fmt.Sprintf("%g", *entry.Score.Grade)
			}
		default:
			payload = entry.Result.AggregatedResponse
			grade = fmt.Sprintf("%g/%d (%s)", entry.Result.Grade, entry.Result.OutOf, entry.Result.Status)
		}

		body, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n%s\n\n", entry.SubmissionID, grade, body); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, entries []batchEntry) error {
	body, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(body, '\n'), 0o644)
}

func firstSet(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
