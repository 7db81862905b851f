package pipeline

import (
	"context"

	"omrpipe/internal/logging"
	"omrpipe/internal/page"
	"omrpipe/internal/services"
	"omrpipe/internal/skew"
)

// PageResult is one page after cleaning and deskewing.
type PageResult struct {
	Index int
	Page  page.Binary
	Skew  skew.Estimate
	// Path is set once the page has been written to disk.
	Path string
}

// PageFailure records a page that was dropped.
type PageFailure struct {
	Index int
	Err   error
}

// cleanPage runs clean, estimate, and deskew on one rasterized page.
func (p *Processor) cleanPage(ctx context.Context, raw page.Raster) (PageResult, error) {
	ctx = services.WithPage(ctx, raw.Index)
	logger := logging.WithContext(ctx, p.logger)

	binary, err := p.cleaner.Clean(raw)
	if err != nil {
		return PageResult{}, err
	}
	est, err := p.estimator.Estimate(binary)
	if err != nil {
		return PageResult{}, err
	}
	straight, err := p.deskewer.Apply(binary, est)
	if err != nil {
		return PageResult{}, err
	}
	if est.Present {
		logger.Debug("page deskewed",
			logging.Float64("angle", est.Angle),
			logging.Int("lines", est.Lines),
		)
	} else {
		logger.Debug("no lines detected; page left unrotated")
	}
	return PageResult{Index: raw.Index, Page: straight, Skew: est}, nil
}

// CleanPages rasterizes data and cleans every page. Page-local failures are
// collected rather than returned; the error is non-nil only when the document
// cannot be opened, the context ends, or no page survives.
func (p *Processor) CleanPages(ctx context.Context, data []byte) ([]PageResult, []PageFailure, error) {
	stageCtx := services.WithStage(ctx, "clean")
	logger := logging.WithContext(stageCtx, p.logger)

	var results []PageResult
	var failures []PageFailure
	_, err := p.rasterizer.Each(stageCtx, data, func(index int, raw page.Raster, err error) error {
		if err == nil {
			var result PageResult
			if result, err = p.cleanPage(stageCtx, raw); err == nil {
				results = append(results, result)
				return nil
			}
		}
		if !services.PageLocal(err) {
			return err
		}
		failures = append(failures, PageFailure{Index: index, Err: err})
		logging.WarnWithContext(logging.WithContext(services.WithPage(stageCtx, index), p.logger),
			"page skipped", "page_skipped",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the page could not be rendered or decoded; rescan it"),
			logging.String(logging.FieldImpact, "page omitted from the score"),
		)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(results) == 0 {
		return nil, failures, services.Wrap(services.ErrRasterization, "pipeline", "clean",
			"no page of the document could be rendered", firstErr(failures))
	}
	logger.Info("pages cleaned",
		logging.Int("pages", len(results)),
		logging.Int("skipped", len(failures)),
	)
	return results, failures, nil
}

func firstErr(failures []PageFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return failures[0].Err
}
