package registration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/registrations/internal/media"
)

// Recorder receives per-step timings and per-submission outcomes.
type Recorder interface {
	ObserveStep(step string, err error, d time.Duration)
	ObserveSubmission(outcome string)
}

// StepResult records one executed step.
type StepResult struct {
	Step     Step
	Err      error
	Duration time.Duration
}

// Result is what a successful (or partially successful) submission produced.
type Result struct {
	SubmissionID string
	ImageURL     string
	Row          SheetRow
	Notified     bool
	NotifyErr    error
	Steps        []StepResult
}

// Pipeline runs submissions and listings against the configured backends.
type Pipeline struct {
	blobs         BlobStore
	sheet         Sheet
	notifier      Notifier
	logger        *slog.Logger
	recorder      Recorder
	tracer        trace.Tracer
	stripMetadata bool
	newID         func() string
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithTracerProvider sets where step spans go. The global provider is
// used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) {
		if tp != nil {
			p.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithMetadataStripping re-encodes JPEG and PNG uploads before they are
// stored, dropping EXIF and GPS data.
func WithMetadataStripping(enabled bool) Option {
	return func(p *Pipeline) { p.stripMetadata = enabled }
}

// NewPipeline wires the backends together. A nil notifier disables the
// confirmation email.
func NewPipeline(blobs BlobStore, sheet Sheet, notifier Notifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		blobs:    blobs,
		sheet:    sheet,
		notifier: notifier,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit parses rawForm, uploads file, appends the row and sends the
// confirmation. Steps run strictly in that order and the first failure
// stops the run, except the confirmation: a failed email is reported in
// Result.NotifyErr and Submit still succeeds because the row is already
// committed. Nothing is rolled back.
func (p *Pipeline) Submit(ctx context.Context, rawForm string, file *File) (*Result, error) {
	res := &Result{SubmissionID: p.newID()}
	log := p.loggerFor(ctx).With("submission_id", res.SubmissionID)

	ctx, span := p.tracer.Start(ctx, "registration.submit",
		trace.WithAttributes(attribute.String("submission.id", res.SubmissionID)))
	defer span.End()

	var sub Submission
	err := p.run(ctx, res, log, StepParse, ErrMalformedInput, func(context.Context) error {
		var err error
		sub, err = ParseSubmission(rawForm, file)
		return err
	})
	if err != nil {
		return nil, err
	}

	upload := *file
	if p.stripMetadata {
		_ = p.run(ctx, res, log, StepNormalize, nil, func(context.Context) error {
			data, err := media.StripMetadata(upload.Data, upload.ContentType)
			if err != nil {
				// Keep the original bytes; stripping is best effort.
				log.Warn("could not strip image metadata", "content_type", upload.ContentType, "err", err)
				return nil
			}
			upload.Data = data
			return nil
		})
	}

	var stored StoredImage
	err = p.run(ctx, res, log, StepUpload, ErrUpload, func(ctx context.Context) error {
		var err error
		stored, err = p.blobs.Upload(ctx, upload)
		return err
	})
	if err != nil {
		return nil, err
	}
	res.ImageURL = stored.URL
	log.Info("image uploaded", "file_id", stored.ID, "size", len(upload.Data))

	res.Row = sub.Row(stored.URL)
	err = p.run(ctx, res, log, StepAppend, ErrAppend, func(ctx context.Context) error {
		return p.sheet.Append(ctx, res.Row)
	})
	if err != nil {
		return nil, err
	}

	if p.notifier == nil {
		p.recorder.ObserveSubmission("ok")
		log.Info("registration stored")
		return res, nil
	}

	err = p.run(ctx, res, log, StepNotify, ErrNotify, func(ctx context.Context) error {
		return p.notifier.SendConfirmation(ctx, Confirmation{
			To:       string(sub.Email),
			Name:     string(sub.Name),
			ImageURL: stored.URL,
		})
	})
	if err != nil {
		res.NotifyErr = err
		span.SetAttributes(attribute.Bool("notification.sent", false))
		p.recorder.ObserveSubmission("notify_failed")
		return res, nil
	}

	res.Notified = true
	p.recorder.ObserveSubmission("ok")
	log.Info("registration stored", "notified", true)
	return res, nil
}

// List returns every row of the sheet as a record, header row included when
// the sheet has one. An empty sheet yields an empty, non-nil slice.
func (p *Pipeline) List(ctx context.Context) ([]SheetRecord, error) {
	log := p.loggerFor(ctx)

	ctx, span := p.tracer.Start(ctx, "registration.list")
	defer span.End()

	start := time.Now()
	rows, err := p.sheet.Rows(ctx)
	p.recorder.ObserveStep(string(StepRead), err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(StepRead))
		log.Error("failed to read registrations", "step", StepRead, "err", err)
		return nil, &StepError{Step: StepRead, Kind: ErrRead, Err: err}
	}

	records := make([]SheetRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, RecordFromRow(row))
	}
	span.SetAttributes(attribute.Int("rows", len(records)))
	if len(records) == 0 {
		log.Info("no registrations found")
	}
	return records, nil
}

// loggerFor adds the chi request ID carried by ctx, if any.
func (p *Pipeline) loggerFor(ctx context.Context) *slog.Logger {
	if reqID := chimw.GetReqID(ctx); reqID != "" {
		return p.logger.With("request_id", reqID)
	}
	return p.logger
}

// run executes one step in its own span, records it, and converts a
// failure into a *StepError of the given kind.
func (p *Pipeline) run(ctx context.Context, res *Result, log *slog.Logger, step Step, kind error, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "registration."+string(step))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)

	res.Steps = append(res.Steps, StepResult{Step: step, Err: err, Duration: d})
	p.recorder.ObserveStep(string(step), err, d)
	if err == nil {
		return nil
	}

	level := slog.LevelError
	if errors.Is(kind, ErrMalformedInput) || errors.Is(kind, ErrNotify) {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, "registration step failed", "step", step, "err", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(step))

	if step != StepNotify {
		p.recorder.ObserveSubmission(string(step) + "_failed")
	}
	return &StepError{Step: step, Kind: kind, Err: err}
}

const tracerName = "github.com/registrations/internal/registration"

type nopRecorder struct{}

func (nopRecorder) ObserveStep(string, error, time.Duration) {}
func (nopRecorder) ObserveSubmission(string)                 {}
