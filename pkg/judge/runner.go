package judge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type languageConfig struct {
	Image    string
	FileName string
	Command  string
}

// RunnerConfig describes execution configuration knobs for the judge runner.
type RunnerConfig struct {
	ExecutionTimeout time.Duration
	MemoryLimitMB    int
	CPUShares        int
	WorkspaceRoot    string
}

type runner struct {
	executor  Executor
	logger    zerolog.Logger
	config    RunnerConfig
	languages map[string]languageConfig
}

// NewRunner builds a judge Service on top of a container executor. Each test
// case gets its own container run with the test input piped to stdin.
func NewRunner(executor Executor, logger zerolog.Logger, cfg RunnerConfig) Service {
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}

	return &runner{
		executor: executor,
		logger:   logger.With().Str("component", "judge_runner").Logger(),
		config:   cfg,
		languages: map[string]languageConfig{
			"python": {
				Image:    "python:3.11-alpine",
				FileName: "main.py",
				Command:  "python main.py",
			},
			"javascript": {
				Image:    "node:20-alpine",
				FileName: "main.js",
				Command:  "node main.js",
			},
			"go": {
				Image:    "golang:1.22-alpine",
				FileName: "main.go",
				Command:  "go run main.go",
			},
		},
	}
}

// ErrUnsupportedLanguage indicates the requested language is not allowed.
var ErrUnsupportedLanguage = fmt.Errorf("unsupported language")

func (r *runner) Execute(ctx context.Context, req ExecuteRequest) (RunReport, error) {
	langCfg, ok := r.languages[strings.ToLower(strings.TrimSpace(req.Language))]
	if !ok {
		return RunReport{}, ErrUnsupportedLanguage
	}

	report := RunReport{IsCompiled: true, IsPassed: true, Results: make([]TestResult, 0, len(req.Tests))}

	for i, test := range req.Tests {
		result, err := r.runOnce(ctx, langCfg, req.Code, test.Input)
		if err != nil {
			// Infrastructure failure: report it as a failed run rather than
			// propagating, so students see actionable feedback.
			r.logger.Error().Err(err).Msg("judge execution failed")
			report.Results = append(report.Results, TestResult{
				Input:          test.Input,
				ExpectedOutput: test.ExpectedOutput,
				Passed:         false,
				Stderr:         err.Error(),
			})
			report.IsPassed = false
			if i == 0 {
				report.IsCompiled = false
			}
			continue
		}

		outcome := TestResult{
			Input:          test.Input,
			ExpectedOutput: test.ExpectedOutput,
			ActualOutput:   result.Stdout,
			TimedOut:       result.TimedOut,
			Stderr:         result.Stderr,
		}

		if i == 0 && result.ExitCode != 0 && strings.TrimSpace(result.Stdout) == "" {
			report.IsCompiled = false
		}

		outcome.Passed = result.ExitCode == 0 && !result.TimedOut && outputsMatch(result.Stdout, test.ExpectedOutput)
		if !outcome.Passed {
			report.IsPassed = false
		}

		report.Results = append(report.Results, outcome)
	}

	if len(req.Tests) == 0 {
		report.IsPassed = false
	}

	return report, nil
}

func (r *runner) RunInput(ctx context.Context, code, language, input string) (TestResult, error) {
	langCfg, ok := r.languages[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		return TestResult{}, ErrUnsupportedLanguage
	}

	result, err := r.runOnce(ctx, langCfg, code, input)
	if err != nil {
		return TestResult{Input: input, Stderr: err.Error()}, nil
	}

	return TestResult{
		Input:        input,
		ActualOutput: result.Stdout,
		Passed:       result.ExitCode == 0 && !result.TimedOut,
		TimedOut:     result.TimedOut,
		Stderr:       result.Stderr,
	}, nil
}

func (r *runner) runOnce(ctx context.Context, langCfg languageConfig, code, input string) (ExecutionResult, error) {
	workspace, err := os.MkdirTemp(r.config.WorkspaceRoot, "judge-")
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	if err := os.WriteFile(filepath.Join(workspace, langCfg.FileName), []byte(code), 0600); err != nil {
		return ExecutionResult{}, fmt.Errorf("write source: %w", err)
	}

	if err := os.WriteFile(filepath.Join(workspace, "input.txt"), []byte(input), 0600); err != nil {
		return ExecutionResult{}, fmt.Errorf("write input: %w", err)
	}

	req := ExecutionRequest{
		Image:         langCfg.Image,
		Cmd:           []string{"sh", "-c", langCfg.Command + " < input.txt"},
		Timeout:       r.config.ExecutionTimeout,
		Workspace:     workspace,
		WorkingDir:    "/workspace",
		MemoryLimitMB: int64(r.config.MemoryLimitMB),
		CPUShares:     int64(r.config.CPUShares),
	}

	return r.executor.Run(ctx, req)
}

// outputsMatch compares program output to the expected output ignoring
// trailing whitespace on each line and trailing blank lines.
func outputsMatch(actual, expected string) bool {
	return normalizeOutput(actual) == normalizeOutput(expected)
}

func normalizeOutput(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	joined := strings.Join(lines, "\n")
	return strings.TrimRight(joined, "\n")
}
