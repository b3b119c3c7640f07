package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/feed"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/model"
)

const (
	logEventRunStarted       = "import_run_started"
	logEventRunFinished      = "import_run_finished"
	logEventRunFailed        = "import_run_failed"
	logEventNoActiveTemplate = "import_no_active_templates"
	logEventTemplateFailed   = "import_template_failed"
	logEventTemplateDone     = "import_template_done"
	logEventMarkRunFailed    = "import_mark_run_failed"
	logEventRecordSkipped    = "import_record_skipped"
	logEventPublishFailed    = "import_publish_failed"
	logFieldTemplateID       = "template_id"
	logFieldTemplateName     = "template_name"
	logFieldRecordIndex      = "record_index"
	logFieldPublished        = "published"
	logFieldSkipped          = "skipped"
	logFieldTemplates        = "templates"
	logFieldSucceeded        = "succeeded"
)

var ErrLoadTemplates = errors.New("importer: load active templates")

// TemplateSource supplies the templates to run and records completed runs.
type TemplateSource interface {
	ListActive(ctx context.Context) ([]model.ImportTemplate, error)
	MarkRun(ctx context.Context, id string, runAt time.Time) error
}

// FeedFetcher downloads a feed document.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) (feed.Document, error)
}

// Summary reports the outcome of one importer run.
type Summary struct {
	Templates       int
	Succeeded       int
	OffersPublished int
	RecordsSkipped  int
}

// Importer runs every active import template once per call to Run.
type Importer struct {
	templates TemplateSource
	fetcher   FeedFetcher
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an Importer.
func New(templates TemplateSource, fetcher FeedFetcher, publisher Publisher, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		templates: templates,
		fetcher:   fetcher,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source used for received_at and last_run_at.
func (importer *Importer) WithClock(now func() time.Time) *Importer {
	if now != nil {
		importer.now = now
	}
	return importer
}

// Run processes all active templates. A failing template is logged and does not stop the others.
func (importer *Importer) Run(ctx context.Context) (Summary, error) {
	importer.logger.Info(logEventRunStarted)

	templates, listErr := importer.templates.ListActive(ctx)
	if listErr != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrLoadTemplates, listErr)
	}
	summary := Summary{Templates: len(templates)}
	if len(templates) == 0 {
		importer.logger.Info(logEventNoActiveTemplate)
		return summary, nil
	}

	for _, template := range templates {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		published, skipped, processErr := importer.processTemplate(ctx, template)
		summary.OffersPublished += published
		summary.RecordsSkipped += skipped
		if processErr != nil {
			importer.logger.Warn(logEventTemplateFailed,
				zap.String(logFieldTemplateID, template.ID),
				zap.String(logFieldTemplateName, template.Name),
				zap.Error(processErr),
			)
			continue
		}
		if markErr := importer.templates.MarkRun(ctx, template.ID, importer.now()); markErr != nil {
			importer.logger.Warn(logEventMarkRunFailed, zap.String(logFieldTemplateID, template.ID), zap.Error(markErr))
		}
		summary.Succeeded++
	}

	importer.logger.Info(logEventRunFinished,
		zap.Int(logFieldTemplates, summary.Templates),
		zap.Int(logFieldSucceeded, summary.Succeeded),
		zap.Int(logFieldPublished, summary.OffersPublished),
		zap.Int(logFieldSkipped, summary.RecordsSkipped),
	)
	return summary, nil
}

// RunAndLog adapts Run to the scheduler's runner signature.
func (importer *Importer) RunAndLog(ctx context.Context) {
	if _, runErr := importer.Run(ctx); runErr != nil {
		importer.logger.Error(logEventRunFailed, zap.Error(runErr))
	}
}

func (importer *Importer) processTemplate(ctx context.Context, template model.ImportTemplate) (int, int, error) {
	if importer.publisher == nil {
		return 0, 0, ErrPublisherMissing
	}
	schema, schemaErr := template.Mapping()
	if schemaErr != nil {
		return 0, 0, schemaErr
	}
	document, fetchErr := importer.fetcher.Fetch(ctx, template.FeedURL)
	if fetchErr != nil {
		return 0, 0, fetchErr
	}

	records := document.Records()
	receivedAt := importer.now()
	published := 0
	skipped := 0
	for index, record := range records {
		offer, mapErr := MapRecord(record, schema, template.ID, receivedAt)
		if mapErr != nil {
			skipped++
			importer.logger.Debug(logEventRecordSkipped,
				zap.String(logFieldTemplateID, template.ID),
				zap.Int(logFieldRecordIndex, index),
				zap.Error(mapErr),
			)
			continue
		}
		if publishErr := importer.publisher.Publish(ctx, offer); publishErr != nil {
			skipped++
			importer.logger.Warn(logEventPublishFailed,
				zap.String(logFieldTemplateID, template.ID),
				zap.Int(logFieldRecordIndex, index),
				zap.Error(publishErr),
			)
			continue
		}
		published++
	}

	// A single-object feed that cannot be mapped fails the whole template.
	if !document.IsArray() && published == 0 {
		return published, skipped, fmt.Errorf("importer: no offer produced from %s", template.Name)
	}

	importer.logger.Info(logEventTemplateDone,
		zap.String(logFieldTemplateID, template.ID),
		zap.String(logFieldTemplateName, template.Name),
		zap.Int(logFieldPublished, published),
		zap.Int(logFieldSkipped, skipped),
	)
	return published, skipped, nil
}
