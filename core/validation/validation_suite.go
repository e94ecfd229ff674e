package validation

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"edudiff/core"

	"github.com/fatih/color"
)

// ValidationStep is one executed check.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus is the outcome of a check.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

var stepStatusNames = [...]string{"pending", "running", "passed", "failed", "warning", "skipped"}

func (s StepStatus) String() string {
	if s < 0 || int(s) >= len(stepStatusNames) {
		return "unknown"
	}
	return stepStatusNames[s]
}

// SuiteResult aggregates the steps of one Validate run.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// ValidationSuite runs the startup checks for a loaded configuration and
// prints coloured progress. Warnings never fail the suite: a missing API
// key or an unreachable endpoint is reported at generation time instead.
type ValidationSuite struct {
	cfg          *core.Config
	output       io.Writer
	checker      *ConfigChecker
	connectivity *ConnectivityChecker
	showProgress bool
	skipNetwork  bool
	failFast     bool
}

// NewValidationSuite checks cfg, printing progress to stdout.
func NewValidationSuite(cfg *core.Config) *ValidationSuite {
	return &ValidationSuite{
		cfg:          cfg,
		output:       os.Stdout,
		checker:      NewConfigChecker(cfg),
		connectivity: NewConnectivityChecker().WithAllowInsecure(cfg.AllowInsecureHTTP),
		showProgress: true,
	}
}

func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithTimeout bounds the connectivity probe.
func (s *ValidationSuite) WithTimeout(timeout time.Duration) *ValidationSuite {
	s.connectivity.WithTimeout(timeout)
	return s
}

func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithSkipNetwork skips the backend connectivity probe.
func (s *ValidationSuite) WithSkipNetwork(skip bool) *ValidationSuite {
	s.skipNetwork = skip
	return s
}

// WithFailFast stops at the first failed step.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

// WithEnvPath overrides the ".env" location.
func (s *ValidationSuite) WithEnvPath(path string) *ValidationSuite {
	s.checker.WithEnvPath(path)
	return s
}

// Validate runs every check in order. Only failures make Success false.
func (s *ValidationSuite) Validate() SuiteResult {
	start := time.Now()
	steps := make([]ValidationStep, 0, 6)

	if s.showProgress {
		s.printHeader("EduDiff Configuration Validation")
	}

	checks := []struct {
		name string
		fn   func() CheckResult
	}{
		{"Environment File", s.checker.CheckEnvFile},
		{"Backend Credentials", s.checker.CheckCredentials},
		{"Output Directory", s.checker.CheckOutputDir},
		{"Disk Space", s.checker.CheckDiskSpace},
		{"Local Diffusion Library", s.checker.CheckLocalLibrary},
	}

	for _, check := range checks {
		step := s.runStep(check.name, check.fn)
		steps = append(steps, step)
		if s.failFast && step.Status == StepFailed {
			return s.buildResult(steps, start)
		}
	}

	// probe the backend only once the configuration holds together
	steps = append(steps, s.runStep("Backend Connectivity", func() CheckResult {
		switch {
		case s.skipNetwork || s.cfg.Backend == core.BackendLocal:
			return CheckResult{Status: StepSkipped, Message: "Not applicable"}
		case !s.hasAllPassed(steps):
			return CheckResult{Status: StepSkipped, Message: "Skipped due to configuration errors"}
		}
		return s.connectivity.CheckBackend(s.cfg)
	}))

	result := s.buildResult(steps, start)

	if s.showProgress {
		s.printSummary(result)
	}

	return result
}

// runStep times fn and prints its outcome.
func (s *ValidationSuite) runStep(name string, fn func() CheckResult) ValidationStep {
	if s.showProgress {
		fmt.Fprintf(s.output, "  ◌ %s...", name)
	}

	start := time.Now()
	res := fn()
	step := ValidationStep{
		Name:    name,
		Status:  res.Status,
		Message: res.Message,
		Error:   res.Error,
		Latency: time.Since(start),
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func (s *ValidationSuite) hasAllPassed(steps []ValidationStep) bool {
	for _, step := range steps {
		if step.Status == StepFailed {
			return false
		}
	}
	return true
}

func (s *ValidationSuite) buildResult(steps []ValidationStep, start time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(start),
	}
	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
		case StepWarning:
			result.Warnings++
		}
	}
	result.Success = result.FailedSteps == 0
	return result
}

type stepStyle struct {
	icon  string
	color *color.Color
}

var stepStyles = map[StepStatus]stepStyle{
	StepPassed:  {"✓", color.New(color.FgGreen)},
	StepFailed:  {"✗", color.New(color.FgRed)},
	StepWarning: {"!", color.New(color.FgYellow)},
	StepSkipped: {"○", color.New(color.FgHiBlack)},
}

var (
	dimColor    = color.New(color.FgHiBlack)
	headerColor = color.New(color.FgCyan, color.Bold)
)

func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	headerColor.Fprintf(s.output, "━━━ %s ━━━\n\n", title)
}

func (s *ValidationSuite) printStep(step ValidationStep) {
	style, ok := stepStyles[step.Status]
	if !ok {
		style = stepStyle{"?", color.New(color.FgWhite)}
	}

	fmt.Fprint(s.output, "\r")
	style.color.Fprintf(s.output, "  %s %s", style.icon, step.Name)
	if step.Message != "" {
		dimColor.Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Error != nil && (step.Status == StepFailed || step.Status == StepWarning) {
		style.color.Fprintf(s.output, "    └─ %s\n", step.Error)
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	verdict, clr := "Passed", color.New(color.FgGreen, color.Bold)
	if !result.Success {
		verdict, clr = "Failed", color.New(color.FgRed, color.Bold)
	}

	fmt.Fprintln(s.output)
	clr.Fprintf(s.output, "━━━ Validation %s ", verdict)
	dimColor.Fprintf(s.output, "(%s)", result.counts())
	clr.Fprintln(s.output, " ━━━")
	fmt.Fprintln(s.output)
}

func (r SuiteResult) counts() string {
	parts := []string{fmt.Sprintf("%d/%d checks passed", r.PassedSteps, r.TotalSteps)}
	if r.FailedSteps > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.FailedSteps))
	}
	if r.Warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warnings", r.Warnings))
	}
	return strings.Join(parts, ", ") + fmt.Sprintf(" in %v", r.Duration.Round(time.Millisecond))
}

// GetFirstError returns the error of the first failed step, or nil.
func (r SuiteResult) GetFirstError() error {
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Error != nil {
			return step.Error
		}
	}
	return nil
}

// Summary is a one-line report, e.g. for logs.
func (r SuiteResult) Summary() string {
	verdict := "Passed"
	if !r.Success {
		verdict = "Failed"
	}
	return "Validation " + verdict + ": " + r.counts()
}
