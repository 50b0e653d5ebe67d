package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samobrien878/Williams-Data-Pipline/internal/config"
	"github.com/samobrien878/Williams-Data-Pipline/internal/dataprocessing"
	apperrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/internal/files"
	"github.com/samobrien878/Williams-Data-Pipline/internal/infrastructure"
	"github.com/samobrien878/Williams-Data-Pipline/internal/store"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/events"
)

const TracerName = "williams.ingestion"

// Skip reasons reported in logs, metrics and events.
const (
	ReasonFilename = "filename"
	ReasonUnstable = "unstable"
	ReasonContent  = "content"
	ReasonSchema   = "schema"
	ReasonEmpty    = "empty"
)

// Notifier receives ingestion events. *websocket.Hub implements it.
type Notifier interface {
	Broadcast(msgType events.MessageType, traceID string, data interface{})
}

// Result describes what happened to one file.
type Result struct {
	SourceFile string
	Skipped    bool
	Reason     string
	Trials     int
	Summaries  int
	Duration   time.Duration
}

// Pipeline turns one metrics file into stored trial documents and a daily
// summary document. It is built once and shared by the startup scan and the
// watch consumer; calls must not overlap.
type Pipeline struct {
	store    store.Store
	parser   *dataprocessing.FilenameParser
	loader   *dataprocessing.Loader
	deriver  *dataprocessing.Deriver
	metrics  *infrastructure.IngestMetrics
	notifier Notifier
	tracer   trace.Tracer

	settleAttempts uint
	settleDelay    time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// NewPipeline builds a pipeline from the ingest settings. metrics and
// notifier may be set later with SetMetrics and SetNotifier.
func NewPipeline(cfg config.IngestConfig, st store.Store, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	cutoff, err := time.ParseInLocation(config.DateLayout, cfg.Cutoff, time.UTC)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid ingest cutoff "+cfg.Cutoff, err)
	}

	return &Pipeline{
		store:          st,
		parser:         dataprocessing.NewFilenameParser(cfg.MinRatID, cfg.MaxRatID),
		loader:         dataprocessing.NewLoader(cfg.SampleBytes, logger),
		deriver:        dataprocessing.NewDeriver(cutoff, logger),
		tracer:         otel.Tracer(TracerName),
		settleAttempts: cfg.SettleAttempts,
		settleDelay:    cfg.SettleDelay,
		logger:         infrastructure.WithComponent(logger, "ingestion"),
		now:            time.Now,
	}, nil
}

// SetMetrics attaches the ingestion instruments.
func (p *Pipeline) SetMetrics(m *infrastructure.IngestMetrics) { p.metrics = m }

// SetNotifier attaches the event sink for ingested and skipped files.
func (p *Pipeline) SetNotifier(n Notifier) { p.notifier = n }

// ProcessFile ingests the file at path. Files that cannot be parsed or hold
// no usable rows are skipped with a nil error; only store failures and
// cancellation are returned.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	name := filepath.Base(path)
	ctx = infrastructure.IngestContext(ctx, name)

	ctx, span := p.tracer.Start(ctx, "ingest.file",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("ingest.file", name)),
	)
	defer span.End()

	result := Result{SourceFile: name}

	meta, err := p.parser.Parse(path)
	if err != nil {
		return p.skip(ctx, result, ReasonFilename, err), nil
	}
	span.SetAttributes(
		attribute.Int("ingest.rat_id", meta.RatID),
		attribute.Int("ingest.stage", int(meta.Stage)),
		attribute.Int("ingest.session", meta.Session),
	)

	if p.settleAttempts > 0 {
		if _, err := files.WaitStable(ctx, path, p.settleAttempts, p.settleDelay); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			return p.skip(ctx, result, ReasonUnstable, err), nil
		}
	}

	table, err := p.loader.Load(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return p.skip(ctx, result, ReasonContent, err), nil
	}

	records, err := p.deriver.Derive(ctx, meta, table)
	if err != nil {
		reason := ReasonContent
		if errors.Is(err, apperrors.ErrSchemaIncomplete) {
			reason = ReasonSchema
		}
		return p.skip(ctx, result, reason, err), nil
	}
	if len(records) == 0 {
		return p.skip(ctx, result, ReasonEmpty, apperrors.ErrNoRows), nil
	}

	written, err := p.store.WriteTrials(ctx, records)
	if err != nil {
		return result, p.writeFailed(ctx, "raw", name, err)
	}
	result.Trials = written

	summaries := dataprocessing.Aggregate(records)
	doc := domain.SummaryDocument{
		SourceFile:   name,
		IngestedAt:   p.now().UTC(),
		DailySummary: summaries,
	}
	if err := p.store.WriteSummary(ctx, doc); err != nil {
		return result, p.writeFailed(ctx, "summary", name, err)
	}
	result.Summaries = len(summaries)
	result.Duration = time.Since(start)

	p.metrics.RecordFileIngested(ctx, result.Trials, result.Summaries, result.Duration)
	p.logger.InfoContext(ctx, "file ingested",
		slog.Int("rat_id", meta.RatID),
		slog.Int("stage", int(meta.Stage)),
		slog.Int("session", meta.Session),
		slog.Int("trials", result.Trials),
		slog.Int("summaries", result.Summaries),
		slog.Duration("duration", result.Duration))

	p.notify(ctx, events.MessageTypeFileIngested, events.FileIngested{
		SourceFile: name,
		RatID:      meta.RatID,
		Stage:      int(meta.Stage),
		Session:    meta.Session,
		Date:       meta.Date().Format(config.DateLayout),
		Trials:     result.Trials,
		Summaries:  result.Summaries,
		DurationMS: result.Duration.Milliseconds(),
	})

	return result, nil
}

func (p *Pipeline) skip(ctx context.Context, result Result, reason string, err error) Result {
	result.Skipped = true
	result.Reason = reason

	level := slog.LevelWarn
	if reason == ReasonEmpty {
		level = slog.LevelInfo
	}
	infrastructure.WithError(p.logger, err).Log(ctx, level, "file skipped",
		slog.String("reason", reason))

	p.metrics.RecordFileSkipped(ctx, reason)
	p.notify(ctx, events.MessageTypeFileSkipped, events.FileSkipped{
		SourceFile: result.SourceFile,
		Reason:     reason,
		Error:      err.Error(),
	})
	return result
}

func (p *Pipeline) writeFailed(ctx context.Context, target, name string, err error) error {
	infrastructure.RecordError(ctx, err)
	p.metrics.RecordWriteError(ctx, target)

	infrastructure.WithError(p.logger, err).ErrorContext(ctx, "store write failed",
		slog.String("target", target))

	if !apperrors.IsType(err, apperrors.ErrTypeStorage) {
		err = apperrors.NewStorageError("write "+target, err)
	}
	return fmt.Errorf("ingest %s: %w", name, err)
}

func (p *Pipeline) notify(ctx context.Context, msgType events.MessageType, data interface{}) {
	if p.notifier == nil {
		return
	}
	p.notifier.Broadcast(msgType, infrastructure.GetTraceID(ctx), data)
}
