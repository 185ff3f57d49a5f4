package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cyface-de/cyup/internal/domain"
	"github.com/cyface-de/cyup/internal/ports"
	"github.com/cyface-de/cyup/pkg/ccyf"
)

// DefaultMaxAttempts bounds the failed attempts of one upload run.
const DefaultMaxAttempts = 5

// maxMessageBody bounds how much of a response body ends up in an event.
const maxMessageBody = 200

// DeviceInfo describes the uploading device in pre-request metadata.
type DeviceInfo struct {
	ID         string
	OSVersion  string
	DeviceType string
	AppVersion string
}

// ProcessConfig contains configuration for the upload process.
type ProcessConfig struct {
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// MaxRetryAfter caps server requested delays on 429 responses.
	MaxRetryAfter time.Duration

	Device DeviceInfo
}

// Process drives the resumable upload protocol for measurements.
// Upload may be called concurrently; runs for the same measurement are
// serialized.
type Process struct {
	config    ProcessConfig
	collector ports.Collector
	registry  ports.SessionRegistry
	factory   *Factory
	logger    ports.Logger
	locks     *keyLock
	now       func() time.Time
}

// NewProcess creates a new upload process with the given dependencies.
func NewProcess(
	config ProcessConfig,
	collector ports.Collector,
	registry ports.SessionRegistry,
	factory *Factory,
	logger ports.Logger,
) *Process {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.BackoffInitial <= 0 {
		config.BackoffInitial = DefaultBackoffInitial
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = DefaultBackoffMax
	}
	if config.MaxRetryAfter <= 0 {
		config.MaxRetryAfter = config.BackoffMax
	}
	return &Process{
		config:    config,
		collector: collector,
		registry:  registry,
		factory:   factory,
		logger:    logger,
		locks:     newKeyLock(),
		now:       time.Now,
	}
}

// Upload transfers a finished measurement to the collector.
//
// Ordinary network and server failures do not produce an error: they are
// reported through the returned Upload (Status, FailedUploadsCounter,
// LastError) and the session stays registered for a later call. An error is
// returned for rejected credentials (domain.ErrUnauthorized), defects
// (domain.ErrCorruptPayload, domain.ErrInvalidEndpoint), registry failures
// during lookup, and context cancellation.
func (p *Process) Upload(ctx context.Context, m domain.Measurement, token string) (*Upload, error) {
	if !m.Finished {
		return nil, fmt.Errorf("%w: %d", domain.ErrMeasurementNotFinished, m.ID)
	}

	unlock, err := p.locks.Lock(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	upload, err := p.lookup(ctx, m)
	if err != nil {
		return nil, err
	}

	return p.run(ctx, upload, token)
}

// lookup resumes the registered session or registers a new one.
func (p *Process) lookup(ctx context.Context, m domain.Measurement) (*Upload, error) {
	session, ok, err := p.registry.Get(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup session %d: %w", m.ID, err)
	}
	if ok {
		p.logger.Info("resuming upload session",
			ports.Uint64("measurement", m.ID),
			ports.Bool("has_location", session.HasLocation()),
			ports.Int("events", len(session.Events)),
		)
		return p.factory.Resume(m, session), nil
	}

	upload := p.factory.New(m)
	if err := p.registry.Register(ctx, upload.Session); err != nil {
		return nil, fmt.Errorf("register session %d: %w", m.ID, err)
	}
	return upload, nil
}

func (p *Process) run(ctx context.Context, upload *Upload, token string) (*Upload, error) {
	state := StatePreRequest
	if upload.Session.HasLocation() {
		// Nothing is known about what reached the server before.
		state = StateStatusCheck
	}
	back := newBackoff(p.config.BackoffInitial, p.config.BackoffMax)

	for {
		if err := ctx.Err(); err != nil {
			return p.cancelled(upload, err)
		}

		var t transition
		switch state {
		case StatePreRequest:
			t = p.preRequest(ctx, upload, token)
		case StateTransfer:
			t = p.transfer(ctx, upload, token)
		case StateStatusCheck:
			t = p.statusCheck(ctx, upload, token)
		default:
			return upload, fmt.Errorf("upload %d: invalid protocol state %s", upload.Measurement.ID, state)
		}

		p.logger.Debug("protocol step",
			ports.Uint64("measurement", upload.Measurement.ID),
			ports.String("from", state.String()),
			ports.String("to", t.next.String()),
		)

		switch t.next {
		case StateFinalize:
			p.finalize(ctx, upload)
			return upload, nil

		case StateUnauthorized:
			upload.FailedUploadsCounter++
			upload.Status = StatusFailed
			upload.LastError = t.cause
			return upload, t.cause

		case StateFailed:
			// Defects: corrupt payload or an unusable location.
			upload.Status = StatusFailed
			upload.LastError = t.cause
			return upload, t.cause

		case StateRetry:
			if err := ctx.Err(); err != nil {
				return p.cancelled(upload, err)
			}
			upload.FailedUploadsCounter++
			upload.LastError = t.cause
			if upload.FailedUploadsCounter >= p.config.MaxAttempts {
				return p.fail(upload), nil
			}

			delay := back.Next()
			if t.retryAfter > 0 {
				delay = min(t.retryAfter, p.config.MaxRetryAfter)
			}
			p.logger.Warn("upload attempt failed",
				ports.Uint64("measurement", upload.Measurement.ID),
				ports.Int("attempt", upload.FailedUploadsCounter),
				ports.Duration("retry_in", delay),
				ports.Err(t.cause),
			)
			if err := sleepContext(ctx, delay); err != nil {
				return p.cancelled(upload, err)
			}
			state = t.resume

		default:
			state = t.next
		}
	}
}

func (p *Process) preRequest(ctx context.Context, upload *Upload, token string) transition {
	payload, err := upload.Payload()
	if err != nil {
		return transition{next: StateFailed, cause: err}
	}

	resp, err := p.collector.PreRequest(ctx, ports.PreRequest{
		Token:       token,
		PayloadSize: len(payload),
		Metadata:    p.metadata(upload.Measurement),
	})
	if err != nil {
		return p.transportFailure(ctx, upload, domain.RequestPreRequest, StatePreRequest, err)
	}
	p.record(ctx, upload, domain.RequestPreRequest, resp, nil)

	switch c := classify(resp.StatusCode); c {
	case classSuccess:
		location := resp.Header.Get("Location")
		if location == "" {
			return retry(StatePreRequest, fmt.Errorf("pre-request: %d without Location header", resp.StatusCode))
		}
		upload.Session.Location = location
		if err := p.registry.Register(ctx, upload.Session); err != nil {
			// The run can continue; a crash now costs a new pre-request.
			p.logger.Error("failed to persist upload location",
				ports.Uint64("measurement", upload.Measurement.ID),
				ports.Err(err),
			)
		}
		return advance(StateTransfer)
	case classConflict:
		return advance(StateFinalize)
	default:
		return p.failure(c, domain.RequestPreRequest, resp, StatePreRequest)
	}
}

func (p *Process) transfer(ctx context.Context, upload *Upload, token string) transition {
	payload, err := upload.Payload()
	if err != nil {
		return transition{next: StateFailed, cause: err}
	}

	resp, err := p.collector.Transfer(ctx, ports.Transfer{
		Token:    token,
		Location: upload.Session.Location,
		Payload:  payload,
	})
	if err != nil {
		// The payload may or may not have arrived; ask before resending.
		return p.transportFailure(ctx, upload, domain.RequestUpload, StateStatusCheck, err)
	}
	p.record(ctx, upload, domain.RequestUpload, resp, nil)

	switch c := classify(resp.StatusCode); c {
	case classSuccess, classConflict:
		return advance(StateFinalize)
	case classResumeIncomplete:
		return retry(StateStatusCheck, fmt.Errorf("upload: server holds partial payload (%s)", resp.Header.Get("Range")))
	case classGone:
		p.forgetLocation(ctx, upload)
		return retry(StatePreRequest, fmt.Errorf("upload: session expired (%d)", resp.StatusCode))
	default:
		return p.failure(c, domain.RequestUpload, resp, StateTransfer)
	}
}

func (p *Process) statusCheck(ctx context.Context, upload *Upload, token string) transition {
	payload, err := upload.Payload()
	if err != nil {
		return transition{next: StateFailed, cause: err}
	}

	resp, err := p.collector.StatusCheck(ctx, ports.StatusCheck{
		Token:       token,
		Location:    upload.Session.Location,
		PayloadSize: len(payload),
	})
	if err != nil {
		return p.transportFailure(ctx, upload, domain.RequestStatusCheck, StateStatusCheck, err)
	}
	p.record(ctx, upload, domain.RequestStatusCheck, resp, nil)

	switch c := classify(resp.StatusCode); c {
	case classSuccess, classConflict:
		return advance(StateFinalize)
	case classResumeIncomplete:
		return advance(StateTransfer)
	case classGone:
		p.forgetLocation(ctx, upload)
		return retry(StatePreRequest, fmt.Errorf("status check: session expired (%d)", resp.StatusCode))
	default:
		return p.failure(c, domain.RequestStatusCheck, resp, StateStatusCheck)
	}
}

// failure maps a non-progress status class to a transition.
func (p *Process) failure(c class, rt domain.RequestType, resp ports.Response, resume State) transition {
	cause := fmt.Errorf("%s: %s", rt, describe(resp))
	switch c {
	case classUnauthorized:
		return transition{next: StateUnauthorized, cause: fmt.Errorf("%w: %v", domain.ErrUnauthorized, cause)}
	case classRateLimited:
		t := retry(resume, cause)
		t.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), p.now())
		return t
	default:
		return retry(resume, cause)
	}
}

// transportFailure handles requests that produced no response. Timeouts and
// connection errors are transient; invalid locations are defects.
func (p *Process) transportFailure(ctx context.Context, upload *Upload, rt domain.RequestType, resume State, err error) transition {
	if errors.Is(err, domain.ErrInvalidEndpoint) {
		return transition{next: StateFailed, cause: err}
	}
	if ctx.Err() != nil {
		return retry(resume, ctx.Err())
	}
	p.record(ctx, upload, rt, ports.Response{}, err)
	return retry(resume, err)
}

func (p *Process) forgetLocation(ctx context.Context, upload *Upload) {
	upload.Session.Location = ""
	if err := p.registry.Register(ctx, upload.Session); err != nil {
		p.logger.Error("failed to reset upload location",
			ports.Uint64("measurement", upload.Measurement.ID),
			ports.Err(err),
		)
	}
}

func (p *Process) finalize(ctx context.Context, upload *Upload) {
	upload.Status = StatusSucceeded
	upload.LastError = nil
	upload.Release()

	if err := p.registry.Remove(ctx, upload.Measurement.ID); err != nil {
		// A stale session only costs a status check on the next call.
		p.logger.Warn("failed to remove finished session",
			ports.Uint64("measurement", upload.Measurement.ID),
			ports.Err(err),
		)
	}
	p.logger.Info("upload finished",
		ports.Uint64("measurement", upload.Measurement.ID),
		ports.Int("bytes", upload.PayloadSize),
		ports.Int("failed_attempts", upload.FailedUploadsCounter),
	)
}

func (p *Process) fail(upload *Upload) *Upload {
	upload.Status = StatusFailed
	upload.LastError = fmt.Errorf("%w: measurement %d after %d attempts: %v",
		domain.ErrUploadFailed, upload.Measurement.ID, upload.FailedUploadsCounter, upload.LastError)
	upload.Release()

	p.logger.Error("upload gave up",
		ports.Uint64("measurement", upload.Measurement.ID),
		ports.Int("attempts", upload.FailedUploadsCounter),
		ports.Err(upload.LastError),
	)
	return upload
}

func (p *Process) cancelled(upload *Upload, err error) (*Upload, error) {
	upload.Status = StatusFailed
	upload.LastError = err
	upload.Release()
	return upload, err
}

// record appends an event to the session log. Failures only affect
// diagnostics and never abort the upload.
func (p *Process) record(ctx context.Context, upload *Upload, rt domain.RequestType, resp ports.Response, cause error) {
	event := domain.Event{
		RequestType: rt,
		StatusCode:  resp.StatusCode,
		Time:        p.now(),
	}
	if cause != nil {
		event.Error = cause.Error()
	} else {
		event.Message = describe(resp)
	}
	upload.Session.Events = append(upload.Session.Events, event)

	if err := p.registry.Record(context.WithoutCancel(ctx), upload.Measurement.ID, event); err != nil {
		p.logger.Warn("failed to record protocol event",
			ports.Uint64("measurement", upload.Measurement.ID),
			ports.String("request", string(rt)),
			ports.Err(err),
		)
	}
}

func (p *Process) metadata(m domain.Measurement) ports.Metadata {
	meta := ports.Metadata{
		DeviceID:      p.config.Device.ID,
		MeasurementID: strconv.FormatUint(m.ID, 10),
		OSVersion:     p.config.Device.OSVersion,
		DeviceType:    p.config.Device.DeviceType,
		AppVersion:    p.config.Device.AppVersion,
		Length:        m.Distance,
		LocationCount: m.LocationCount(),
		Modality:      m.Modality,
		FormatVersion: int(ccyf.Version),
	}
	if l, ok := m.FirstLocation(); ok {
		meta.StartLocation = &ports.GeoMeta{Latitude: l.Latitude, Longitude: l.Longitude, Timestamp: l.Timestamp}
	}
	if l, ok := m.LastLocation(); ok {
		meta.EndLocation = &ports.GeoMeta{Latitude: l.Latitude, Longitude: l.Longitude, Timestamp: l.Timestamp}
	}
	return meta
}

// describe renders a response as "<code> <text>: <body>" for events and errors.
func describe(resp ports.Response) string {
	msg := strconv.Itoa(resp.StatusCode) + " " + http.StatusText(resp.StatusCode)
	body := strings.TrimSpace(string(resp.Body))
	if len(body) > maxMessageBody {
		cut := maxMessageBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	if body != "" {
		msg += ": " + body
	}
	return msg
}
