// Package executor runs the per-file coverage pipeline over a batch of source
// files and turns the collected reports into persisted artifacts or a
// consolidated verdict.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/harrison/covrun/internal/coverage"
	"github.com/harrison/covrun/internal/models"
)

// Logger defines the interface for logging orchestrator progress and results.
type Logger interface {
	LogRunStart(files []string, format models.ReportFormat)
	LogFileStart(filePath string)
	LogTargets(filePath string, targets []string)
	LogFileResult(report models.CoverageReport, duration time.Duration)
	LogProgress(completed, total int)
	LogSummary(result models.RunResult)
	LogWarn(message string)
}

// ExemptionChecker decides whether a file skips the coverage check.
type ExemptionChecker interface {
	Check(filePath string) *models.CoverageExemption
}

// TargetLocator maps a source file to the test targets that exercise it.
type TargetLocator interface {
	Locate(ctx context.Context, sourcePath string) ([]string, error)
}

// CoverageRetriever measures coverage for one test target.
type CoverageRetriever interface {
	Retrieve(ctx context.Context, target string) ([]models.CoverageReport, error)
}

// Renderer writes a consolidated report and returns its verdict.
type Renderer interface {
	Render(ctx context.Context, container models.CoverageReportContainer, format models.ReportFormat) (models.CoverageCheck, error)
}

// ReportWriter persists one file's report in PROTO mode.
type ReportWriter interface {
	WriteReport(filePath string, report models.CoverageReport) error
}

// Recorder stores a summary of each run.
type Recorder interface {
	RecordRun(ctx context.Context, result *models.RunResult) error
}

// Collaborators bundles the pipeline stages. Exemptions, Locator and
// Retriever are required; Renderer and Writer are required only by the
// formats that use them.
type Collaborators struct {
	Exemptions ExemptionChecker
	Locator    TargetLocator
	Retriever  CoverageRetriever
	Renderer   Renderer
	Writer     ReportWriter
}

// Orchestrator coordinates a coverage run, handles graceful shutdown, and aggregates results.
type Orchestrator struct {
	exemptions     ExemptionChecker
	locator        TargetLocator
	retriever      CoverageRetriever
	renderer       Renderer
	writer         ReportWriter
	recorder       Recorder
	logger         Logger
	maxConcurrency int
	bazelSlots     *semaphore.Weighted
	handleSignals  bool
}

// NewOrchestrator creates a new Orchestrator instance.
// The logger parameter is optional and can be nil.
func NewOrchestrator(c Collaborators, logger Logger) *Orchestrator {
	if c.Exemptions == nil || c.Locator == nil || c.Retriever == nil {
		panic("exemption checker, target locator and coverage retriever are required")
	}
	if logger == nil {
		logger = discardLogger{}
	}

	return &Orchestrator{
		exemptions:     c.Exemptions,
		locator:        c.Locator,
		retriever:      c.Retriever,
		renderer:       c.Renderer,
		writer:         c.Writer,
		logger:         logger,
		maxConcurrency: 1,
		bazelSlots:     semaphore.NewWeighted(1),
		handleSignals:  true,
	}
}

// SetRecorder enables run history. A nil recorder disables it.
func (o *Orchestrator) SetRecorder(recorder Recorder) {
	o.recorder = recorder
}

// SetMaxConcurrency sets the number of file workers and the per-file target
// fan-out. Locator and retriever calls share one pool of n slots, so at most
// n build tool processes run at once. Values below 1 select 1.
func (o *Orchestrator) SetMaxConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	o.maxConcurrency = n
	o.bazelSlots = semaphore.NewWeighted(int64(n))
}

// SetSignalHandling toggles SIGINT/SIGTERM cancellation of the run.
func (o *Orchestrator) SetSignalHandling(enabled bool) {
	o.handleSignals = enabled
}

// Run analyzes filePaths and emits results in the requested format.
//
// In PROTO mode every file's report is persisted and the result carries no
// verdict. In HTML and MARKDOWN mode the reports are rendered in input order;
// a FAIL verdict returns the result together with a *CoverageCheckError.
// A consistency violation aborts the run with an *AbortError and no result.
func (o *Orchestrator) Run(ctx context.Context, filePaths []string, format models.ReportFormat) (*models.RunResult, error) {
	switch {
	case format == models.FormatProto && o.writer == nil:
		return nil, fmt.Errorf("format %s requires a report writer", format)
	case format.Consolidated() && o.renderer == nil:
		return nil, fmt.Errorf("format %s requires a renderer", format)
	case format != models.FormatProto && !format.Consolidated():
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.handleSignals {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		go func() {
			select {
			case <-sigChan:
				o.logger.LogWarn("Received interrupt signal, shutting down gracefully...")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	startTime := time.Now()
	result := &models.RunResult{
		RunID:  uuid.New().String(),
		Format: format,
	}
	o.logger.LogRunStart(filePaths, format)

	reports, err := o.processFiles(ctx, cancel, filePaths, format)
	if err != nil {
		return nil, err
	}
	result.Reports = reports

	if format.Consolidated() {
		check, err := o.renderer.Render(ctx, models.CoverageReportContainer{Reports: reports}, format)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s report: %w", format, err)
		}
		result.Check = check
	}
	result.Duration = time.Since(startTime)

	if o.recorder != nil {
		if err := o.recorder.RecordRun(ctx, result); err != nil {
			GracefulWarn(o.logger, "History: failed to record run %s: %v", result.RunID, err)
		}
	}
	o.logger.LogSummary(*result)

	if result.Check == models.CheckFail {
		return result, &CoverageCheckError{
			FailedFiles: o.failedFiles(reports),
			TotalFiles:  len(reports),
		}
	}
	return result, nil
}

// processFiles runs every file on a dispatcher scoped to this call. Reports
// are stored by input index. The first fatal error cancels the remaining
// files and is returned once all workers have stopped.
func (o *Orchestrator) processFiles(ctx context.Context, cancel context.CancelFunc, filePaths []string, format models.ReportFormat) ([]models.CoverageReport, error) {
	dispatcher := NewDispatcher(o.maxConcurrency)
	defer dispatcher.Close()

	reports := make([]models.CoverageReport, len(filePaths))
	var (
		mu        sync.Mutex
		fatal     error
		completed int
	)
	setFatal := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if fatal == nil {
			fatal = err
			cancel()
		}
	}

	for i, filePath := range filePaths {
		i, filePath := i, filePath
		err := dispatcher.Submit(ctx, func() {
			if ctx.Err() != nil {
				return
			}
			report, err := o.CoverageForFile(ctx, filePath)
			if err != nil {
				setFatal(&AbortError{FilePath: filePath, Err: err})
				return
			}
			if format == models.FormatProto {
				if err := o.writer.WriteReport(filePath, report); err != nil {
					setFatal(&AbortError{FilePath: filePath, Err: err})
					return
				}
			}
			reports[i] = report

			mu.Lock()
			completed++
			done := completed
			mu.Unlock()
			o.logger.LogProgress(done, len(filePaths))
		})
		if err != nil {
			break
		}
	}
	dispatcher.Close()

	if fatal != nil {
		return nil, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("coverage run cancelled: %w", err)
	}
	return reports, nil
}

// CoverageForFile drives one file through the pipeline:
// exempted, or located then retrieved per target then aggregated.
// Discovery and retrieval problems become failure reports; only
// cancellation and consistency violations are returned as errors.
func (o *Orchestrator) CoverageForFile(ctx context.Context, filePath string) (models.CoverageReport, error) {
	start := time.Now()
	o.logger.LogFileStart(filePath)

	report, err := o.coverageForFile(ctx, filePath)
	if err != nil {
		return models.CoverageReport{}, err
	}
	o.logger.LogFileResult(report, time.Since(start))
	return report, nil
}

func (o *Orchestrator) coverageForFile(ctx context.Context, filePath string) (models.CoverageReport, error) {
	if exemption := o.exemptions.Check(filePath); exemption != nil {
		return models.NewExemptionReport(*exemption), nil
	}

	targets, err := o.locate(ctx, filePath)
	if err != nil {
		if ctx.Err() != nil {
			return models.CoverageReport{}, ctx.Err()
		}
		return models.NewFailureReport(models.CoverageFailure{
			FilePath: filePath,
			Message:  err.Error(),
		}), nil
	}
	o.logger.LogTargets(filePath, targets)

	perTarget, err := o.retrieveAll(ctx, filePath, targets)
	if err != nil {
		return models.CoverageReport{}, err
	}

	report, err := coverage.Aggregate(filePath, perTarget)
	if err != nil {
		return models.CoverageReport{}, fmt.Errorf("failed to aggregate coverage for %s: %w", filePath, err)
	}
	// A target's failure is about the file under analysis, whatever path the
	// retriever guessed for it.
	if failure, ok := report.Failure(); ok && failure.FilePath != filePath {
		failure.FilePath = filePath
		report = models.NewFailureReport(failure)
	}
	return report, nil
}

func (o *Orchestrator) locate(ctx context.Context, filePath string) ([]string, error) {
	if err := o.bazelSlots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer o.bazelSlots.Release(1)
	return o.locator.Locate(ctx, filePath)
}

func (o *Orchestrator) retrieve(ctx context.Context, target string) ([]models.CoverageReport, error) {
	if err := o.bazelSlots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer o.bazelSlots.Release(1)
	return o.retriever.Retrieve(ctx, target)
}

// retrieveAll measures every target concurrently and returns their reports
// in target order. A retriever error becomes a failure carrying the target.
func (o *Orchestrator) retrieveAll(ctx context.Context, filePath string, targets []string) ([]models.CoverageReport, error) {
	results := make([][]models.CoverageReport, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrency)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			reports, err := o.retrieve(gctx, target)
			switch {
			case err != nil && ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				reports = []models.CoverageReport{targetFailure(filePath, target, err.Error())}
			case len(reports) == 0:
				reports = []models.CoverageReport{targetFailure(filePath, target,
					fmt.Sprintf("No coverage data produced by %s.", target))}
			}
			results[i] = reports
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.CoverageReport
	for _, reports := range results {
		all = append(all, reports...)
	}
	return all, nil
}

func targetFailure(filePath, target, message string) models.CoverageReport {
	return models.NewFailureReport(models.CoverageFailure{
		FilePath:   filePath,
		TestTarget: target,
		Message:    message,
	})
}

// fileChecker is implemented by renderers that can judge a single file.
type fileChecker interface {
	Passes(report models.CoverageReport) bool
}

// failedFiles lists the files behind a FAIL verdict. Without a fileChecker
// only failure reports are listed.
func (o *Orchestrator) failedFiles(reports []models.CoverageReport) []string {
	checker, _ := o.renderer.(fileChecker)
	var files []string
	for _, r := range reports {
		failed := r.Kind() == models.KindFailure
		if checker != nil {
			failed = !checker.Passes(r)
		}
		if failed {
			files = append(files, r.FilePath())
		}
	}
	return files
}

type discardLogger struct{}

func (discardLogger) LogRunStart([]string, models.ReportFormat)           {}
func (discardLogger) LogFileStart(string)                                 {}
func (discardLogger) LogTargets(string, []string)                         {}
func (discardLogger) LogFileResult(models.CoverageReport, time.Duration) {}
func (discardLogger) LogProgress(int, int)                                {}
func (discardLogger) LogSummary(models.RunResult)                         {}
func (discardLogger) LogWarn(string)                                      {}
