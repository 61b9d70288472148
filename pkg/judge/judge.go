package judge

import "context"

// TestCase is one input/expected-output pair to run code against.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// TestResult reports the outcome of one test case execution.
type TestResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Passed         bool   `json:"passed"`
	TimedOut       bool   `json:"timed_out"`
	Stderr         string `json:"stderr,omitempty"`
}

// RunReport summarises a full judge run.
type RunReport struct {
	IsCompiled bool         `json:"is_compiled"`
	IsPassed   bool         `json:"is_passed"`
	Results    []TestResult `json:"results"`
}

// ExecuteRequest describes code to run against a set of test cases.
type ExecuteRequest struct {
	Code     string
	Language string
	Tests    []TestCase
}

// Service runs student or reference code against test cases. Infrastructure
// failures surface as failed results in the report, never as transport errors,
// so callers can show actionable feedback.
type Service interface {
	Execute(ctx context.Context, req ExecuteRequest) (RunReport, error)
	RunInput(ctx context.Context, code, language, input string) (TestResult, error)
}
