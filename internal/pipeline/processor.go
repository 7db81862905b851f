package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"omrpipe/internal/cleaning"
	"omrpipe/internal/config"
	"omrpipe/internal/fileutil"
	"omrpipe/internal/ledger"
	"omrpipe/internal/logging"
	"omrpipe/internal/notifications"
	"omrpipe/internal/outcome"
	"omrpipe/internal/pageio"
	"omrpipe/internal/raster"
	"omrpipe/internal/services"
	"omrpipe/internal/services/audiveris"
	"omrpipe/internal/skew"
)

// Converter runs the engine for a job.
type Converter interface {
	Convert(ctx context.Context, job audiveris.Job) (outcome.Outcome, error)
}

// Recorder persists conversion results.
type Recorder interface {
	Record(ctx context.Context, entry ledger.Entry) (int64, error)
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger attaches a logger; the processor logs under the "pipeline" component.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.base = logger
		p.logger = logging.NewComponentLogger(logger, "pipeline")
	}
}

// WithRecorder records every conversion outcome.
func WithRecorder(rec Recorder) Option {
	return func(p *Processor) {
		p.recorder = rec
	}
}

// WithNotifier announces every recorded job.
func WithNotifier(svc notifications.Service) Option {
	return func(p *Processor) {
		p.notifier = svc
	}
}

// WithJobIDs overrides job ID generation (primarily for tests).
func WithJobIDs(next func() string) Option {
	return func(p *Processor) {
		if next != nil {
			p.newID = next
		}
	}
}

// Processor runs documents through the page stages and the engine.
type Processor struct {
	cfg        *config.Config
	rasterizer *raster.Rasterizer
	cleaner    *cleaning.Cleaner
	estimator  *skew.Estimator
	deskewer   *skew.Deskewer
	converter  Converter
	recorder   Recorder
	notifier   notifications.Service
	format     pageio.Format
	bundle     bool
	newID      func() string
	base       *slog.Logger
	logger     *slog.Logger
}

// New builds the stage components from cfg. converter may be nil for
// processors that only clean pages.
func New(cfg *config.Config, converter Converter, opts ...Option) (*Processor, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "configure", "config required", nil)
	}
	format, err := pageio.ParseFormat(cfg.Output.PageFormat)
	if err != nil {
		return nil, err
	}
	p := &Processor{
		cfg:       cfg,
		converter: converter,
		format:    format,
		bundle:    cfg.Output.Bundle != "none",
		newID:     uuid.NewString,
		logger:    logging.NewComponentLogger(nil, "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.rasterizer = raster.New(raster.WithDPI(cfg.Raster.DPI), raster.WithLogger(p.base))
	p.cleaner, err = cleaning.New(cleaning.Params{
		BilateralDiameter: cfg.Cleaning.BilateralDiameter,
		SigmaColor:        cfg.Cleaning.SigmaColor,
		SigmaSpace:        cfg.Cleaning.SigmaSpace,
		BlockSize:         cfg.Cleaning.BlockSize,
		Offset:            cfg.Cleaning.Offset,
	}, cleaning.WithLogger(p.base))
	if err != nil {
		return nil, err
	}
	p.estimator = skew.NewEstimator(skew.Params{
		CannyLow:       cfg.Skew.CannyLow,
		CannyHigh:      cfg.Skew.CannyHigh,
		HoughThreshold: cfg.Skew.HoughThreshold,
	}, skew.WithLogger(p.base))
	p.deskewer = skew.NewDeskewer(byte(cfg.Skew.BorderValue), skew.WithLogger(p.base))
	return p, nil
}

// Report summarizes one processed document.
type Report struct {
	JobID    string
	Source   string
	Original string
	Layout   Layout
	Pages    []PageResult
	Skipped  []PageFailure
	// EngineInputs are the files handed to the engine: the bundle, or the pages.
	EngineInputs []string
	Outcome      outcome.Outcome
	Elapsed      time.Duration
}

// Succeeded reports whether the document produced a score.
func (r Report) Succeeded() bool {
	return r.Outcome.Succeeded()
}

// CleanFile cleans every page of the document at source and writes the pages
// (and the bundle, when enabled) into outDir.
func (p *Processor) CleanFile(ctx context.Context, source, outDir string) (Report, error) {
	data, err := p.readSource(source)
	if err != nil {
		return Report{Source: source}, err
	}
	report := Report{Source: source}
	if err := p.cleanInto(ctx, data, Stem(source), outDir, &report); err != nil {
		return report, err
	}
	return report, nil
}

// Process runs the whole pipeline for one document: archive, clean, bundle,
// convert, and record. A conversion failure is reported through
// Report.Outcome; the error covers everything that stops the job before the
// engine gives a verdict.
func (p *Processor) Process(ctx context.Context, source string) (Report, error) {
	start := time.Now()
	jobID := p.newID()
	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, p.logger)
	report := Report{JobID: jobID, Source: source, Layout: NewLayout(p.cfg, jobID)}

	if p.converter == nil {
		return report, services.Wrap(services.ErrConfiguration, "pipeline", "process", "no converter configured", nil)
	}

	data, err := p.readSource(source)
	if err != nil {
		return report, err
	}
	if err := report.Layout.Create(); err != nil {
		return report, services.Wrap(services.ErrConfiguration, "pipeline", "layout", "create work directories", err)
	}
	logger.Info("document accepted",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("source", source),
		logging.Int64("bytes", int64(len(data))),
	)

	report.Original = filepath.Join(report.Layout.Originals, filepath.Base(source))
	if err := fileutil.CopyFileVerified(source, report.Original); err != nil {
		err = services.Wrap(services.ErrValidation, "pipeline", "archive", "copy original", err)
		p.record(ctx, report, err)
		return report, err
	}

	stem := Stem(source)
	if err := p.cleanInto(ctx, data, stem, report.Layout.Processed, &report); err != nil {
		p.record(ctx, report, err)
		return report, err
	}

	convertCtx := services.WithStage(ctx, "convert")
	out, err := p.converter.Convert(convertCtx, audiveris.Job{
		Inputs:    report.EngineInputs,
		OutputDir: report.Layout.Scores,
	})
	if err != nil {
		p.record(ctx, report, err)
		return report, err
	}
	report.Outcome = out
	report.Elapsed = time.Since(start)
	p.record(ctx, report, nil)

	logger.Info("document finished",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("outcome", string(out.Kind)),
		logging.String("artifact", out.Path()),
		logging.Int("pages", len(report.Pages)),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func (p *Processor) readSource(source string) ([]byte, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "read", source, err)
	}
	if !info.Mode().IsRegular() {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "read", fmt.Sprintf("%s is not a regular file", source), nil)
	}
	if limit := p.cfg.Raster.MaxBytes; limit > 0 && info.Size() > limit {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "read",
			fmt.Sprintf("%s is %d bytes, limit is %d", source, info.Size(), limit), nil)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "read", source, err)
	}
	if _, err := raster.Sniff(data, p.cfg.Raster.MaxBytes); err != nil {
		return nil, err
	}
	return data, nil
}

func (p *Processor) cleanInto(ctx context.Context, data []byte, stem, outDir string, report *Report) error {
	pages, failures, err := p.CleanPages(ctx, data)
	report.Skipped = failures
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(pages))
	for i := range pages {
		path, err := pageio.WritePage(outDir, stem, pages[i].Page, p.format)
		if err != nil {
			return err
		}
		pages[i].Path = path
		paths = append(paths, path)
	}
	report.Pages = pages

	if !p.bundle {
		report.EngineInputs = paths
		return nil
	}
	bundle := filepath.Join(outDir, pageio.BundleName(stem))
	if err := pageio.Bundle(paths, bundle); err != nil {
		return err
	}
	report.EngineInputs = []string{bundle}
	logging.WithContext(ctx, p.logger).Debug("pages bundled",
		logging.String("bundle", bundle),
		logging.Int("pages", len(paths)),
	)
	return nil
}

func (p *Processor) record(ctx context.Context, report Report, jobErr error) {
	entry := ledger.Entry{
		JobID:        report.JobID,
		Source:       report.Source,
		OriginalPath: report.Original,
		ProcessedDir: report.Layout.Processed,
		OutputDir:    report.Layout.Scores,
		Pages:        len(report.Pages),
		Kind:         report.Outcome.Kind,
		Artifact:     report.Outcome.Path(),
		ExitCode:     report.Outcome.ExitCode,
		Elapsed:      report.Outcome.Elapsed,
		Detail:       report.Outcome.Cause,
		Signal:       report.Outcome.Signal,
	}
	if batchID, ok := services.BatchIDFromContext(ctx); ok {
		entry.BatchID = batchID
	}
	if conv, ok := p.converter.(interface{ Preset() audiveris.Preset }); ok {
		entry.Preset = conv.Preset().Name
	}
	if jobErr != nil {
		// Jobs that never reached the engine are recorded as crashes.
		entry.Kind = outcome.KindCrash
		entry.Detail = strings.TrimSpace(jobErr.Error())
		entry.ExitCode = -1
	}
	if p.recorder != nil {
		if _, err := p.recorder.Record(ctx, entry); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, p.logger), "ledger write failed", "ledger_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ledger_path permissions"),
				logging.String(logging.FieldImpact, "job missing from history"),
			)
		}
	}
	if p.notifier != nil {
		err := p.notifier.NotifyConversion(ctx, notifications.Conversion{
			JobID:    entry.JobID,
			Document: entry.Source,
			Pages:    entry.Pages,
			Kind:     entry.Kind,
			Artifact: entry.Artifact,
			Detail:   entry.Detail,
		})
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, p.logger), "notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}
}
