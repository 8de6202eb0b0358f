package detection

import (
	"context"
	"errors"
	"sync"

	"github.com/suPer8Hu/agroguard/internal/ai"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrAnalysisInFlight is returned when an analysis is already running.
var ErrAnalysisInFlight = errors.New("analysis already in progress")

type State string

const (
	StateIdle          State = "idle"
	StateImageSelected State = "image_selected"
	StateAnalyzing     State = "analyzing"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

type Diagnoser interface {
	Diagnose(ctx context.Context, image []byte) (*ai.DiagnosisResult, error)
}

type Recorder interface {
	AppendDetection(ctx context.Context, rec models.DetectionRecord) (*models.DetectionRecord, error)
}

type ImageStore interface {
	Save(ctx context.Context, data []byte, mimeType string) (string, error)
	Remove(ref string) error
}

type Sessions interface {
	Require() (models.Session, error)
}

// Notifier is told about every persisted record. Failures are logged only.
type Notifier interface {
	NotifyDetection(ctx context.Context, rec models.DetectionRecord) error
}

type Option func(*Controller)

func WithNotifier(n Notifier) Option { return func(c *Controller) { c.notifier = n } }

func WithLogger(log *zap.Logger) Option { return func(c *Controller) { c.log = log } }

func WithMaxImageBytes(n int64) Option { return func(c *Controller) { c.maxBytes = n } }

// Status is a snapshot of the controller.
type Status struct {
	State  State                   `json:"state"`
	Record *models.DetectionRecord `json:"record,omitempty"`
	Err    error                   `json:"-"`
}

// Controller runs capture, diagnosis and persistence for one device. At most
// one analysis runs at a time.
type Controller struct {
	gateway  Diagnoser
	records  Recorder
	images   ImageStore
	sessions Sessions
	notifier Notifier
	log      *zap.Logger
	maxBytes int64

	inflight *semaphore.Weighted

	mu     sync.Mutex
	state  State
	gen    uint64
	image  []byte
	mime   string
	last   *models.DetectionRecord
	err    error
	cancel context.CancelFunc
}

func NewController(gw Diagnoser, records Recorder, images ImageStore, sessions Sessions, opts ...Option) *Controller {
	c := &Controller{
		gateway:  gw,
		records:  records,
		images:   images,
		sessions: sessions,
		log:      zap.NewNop(),
		maxBytes: ai.DefaultMaxImageBytes,
		inflight: semaphore.NewWeighted(1),
		state:    StateIdle,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, Record: c.last, Err: c.err}
}

// Select validates and holds an image for analysis. A rejected image leaves
// the controller idle.
func (c *Controller) Select(image []byte) error {
	if !c.inflight.TryAcquire(1) {
		return ErrAnalysisInFlight
	}
	defer c.inflight.Release(1)
	return c.selectImage(image)
}

func (c *Controller) selectImage(image []byte) error {
	const op = "detection.Select"

	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()

	mime, err := ai.CheckImage(op, image, c.maxBytes)
	if err != nil {
		return err
	}
	c.image = append([]byte(nil), image...)
	c.mime = mime
	c.state = StateImageSelected
	return nil
}

// Analyze diagnoses the selected image and records the result. It needs an
// active session. Cancellation through Cancel or ctx returns the controller
// to ImageSelected without recording anything.
func (c *Controller) Analyze(ctx context.Context) (*models.DetectionRecord, error) {
	if !c.inflight.TryAcquire(1) {
		return nil, ErrAnalysisInFlight
	}
	defer c.inflight.Release(1)
	return c.analyze(ctx)
}

// Submit selects and analyzes image while holding the in-flight slot for
// both steps, so concurrent callers never analyze each other's uploads.
func (c *Controller) Submit(ctx context.Context, image []byte) (*models.DetectionRecord, error) {
	if !c.inflight.TryAcquire(1) {
		return nil, ErrAnalysisInFlight
	}
	defer c.inflight.Release(1)

	if _, err := c.sessions.Require(); err != nil {
		return nil, err
	}
	if err := c.selectImage(image); err != nil {
		return nil, err
	}
	return c.analyze(ctx)
}

// analyze expects the caller to hold the in-flight slot.
func (c *Controller) analyze(ctx context.Context) (*models.DetectionRecord, error) {
	const op = "detection.Analyze"

	sess, err := c.sessions.Require()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.state != StateImageSelected || len(c.image) == 0 {
		c.mu.Unlock()
		return nil, common.Validation(op, "select an image first")
	}
	actx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancel = cancel
	c.state = StateAnalyzing
	gen := c.gen
	image, mime := c.image, c.mime
	c.mu.Unlock()

	rec, err := c.run(actx, sess.ID, image, mime)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = nil
	if gen != c.gen {
		// Reset while running; the result belongs to nobody.
		if err == nil {
			return rec, nil
		}
		return nil, err
	}
	switch {
	case err == nil:
		c.state, c.last, c.err = StateCompleted, rec, nil
		c.image, c.mime = nil, ""
		c.notify(rec)
		return rec, nil
	case errors.Is(err, context.Canceled):
		c.state = StateImageSelected
		return nil, err
	default:
		c.state, c.err = StateFailed, err
		c.image, c.mime = nil, ""
		c.log.Info("analysis failed", zap.String("kind", string(common.KindOf(err))), zap.Error(err))
		return nil, err
	}
}

func (c *Controller) run(ctx context.Context, ownerID string, image []byte, mime string) (*models.DetectionRecord, error) {
	res, err := c.gateway.Diagnose(ctx, image)
	if err != nil {
		return nil, err
	}
	ref, err := c.images.Save(ctx, image, mime)
	if err != nil {
		return nil, err
	}
	rec, err := c.records.AppendDetection(ctx, res.Record(ownerID, ref))
	if err != nil {
		if rmErr := c.images.Remove(ref); rmErr != nil {
			c.log.Warn("remove orphaned image", zap.String("ref", ref), zap.Error(rmErr))
		}
		return nil, err
	}
	return rec, nil
}

func (c *Controller) notify(rec *models.DetectionRecord) {
	if c.notifier == nil {
		return
	}
	ev := *rec
	go func() {
		if err := c.notifier.NotifyDetection(context.Background(), ev); err != nil {
			c.log.Warn("publish detection event", zap.String("detection_id", ev.ID), zap.Error(err))
		}
	}()
}

// Cancel aborts the running analysis. It reports whether one was running.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// Reset cancels any running analysis and returns to Idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.clearLocked()
}

func (c *Controller) clearLocked() {
	c.state = StateIdle
	c.image, c.mime = nil, ""
	c.last, c.err = nil, nil
}
