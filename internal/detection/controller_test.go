package detection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/agroguard/internal/ai"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/models"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// opencensus, pulled in through the genai SDK, starts a worker in init
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var pngImage = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

type fakeGateway struct {
	fn func(ctx context.Context) (*ai.DiagnosisResult, error)
}

func (g *fakeGateway) Diagnose(ctx context.Context, image []byte) (*ai.DiagnosisResult, error) {
	return g.fn(ctx)
}

func blight() *ai.DiagnosisResult {
	return &ai.DiagnosisResult{
		CropType:        models.CropTomato,
		DiseaseName:     "Late Blight",
		ConfidenceScore: 140,
		SeverityLevel:   models.SeveritySevere,
		CitationLinks:   []models.Link{{Title: "guide", URI: "https://example.com"}},
	}
}

type memRecorder struct {
	mu   sync.Mutex
	recs []models.DetectionRecord
	err  error
}

func (r *memRecorder) AppendDetection(ctx context.Context, rec models.DetectionRecord) (*models.DetectionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	rec.ID = "rec-1"
	rec.ConfidenceScore = models.ClampConfidence(rec.ConfidenceScore)
	r.recs = append(r.recs, rec)
	return &rec, nil
}

func (r *memRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

type memImages struct {
	mu      sync.Mutex
	saved   map[string]string
	removed []string
}

func (s *memImages) Save(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = map[string]string{}
	}
	ref := "file:///images/1.png"
	s.saved[ref] = mimeType
	return ref, nil
}

func (s *memImages) Remove(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, ref)
	s.removed = append(s.removed, ref)
	return nil
}

type fakeSessions struct{ id string }

var errNoSession = errors.New("no session")

func (s fakeSessions) Require() (models.Session, error) {
	if s.id == "" {
		return models.Session{}, errNoSession
	}
	return models.Session{ID: s.id}, nil
}

type chanNotifier chan models.DetectionRecord

func (n chanNotifier) NotifyDetection(ctx context.Context, rec models.DetectionRecord) error {
	n <- rec
	return nil
}

func newController(gw Diagnoser, rec *memRecorder, img *memImages, opts ...Option) *Controller {
	return NewController(gw, rec, img, fakeSessions{id: "u_1"}, opts...)
}

func TestSelectRejectsInvalidImage(t *testing.T) {
	c := newController(&fakeGateway{}, &memRecorder{}, &memImages{}, WithMaxImageBytes(32))

	assert.ErrorIs(t, c.Select(nil), common.ErrValidation)
	assert.ErrorIs(t, c.Select([]byte("plain text, not an image")), common.ErrValidation)
	assert.ErrorIs(t, c.Select(pngImage), common.ErrValidation)
	assert.Equal(t, StateIdle, c.Status().State)
}

func TestAnalyzeSuccess(t *testing.T) {
	rec, img := &memRecorder{}, &memImages{}
	events := make(chanNotifier, 1)
	c := newController(&fakeGateway{fn: func(context.Context) (*ai.DiagnosisResult, error) { return blight(), nil }},
		rec, img, WithNotifier(events))

	require.NoError(t, c.Select(pngImage))
	assert.Equal(t, StateImageSelected, c.Status().State)

	got, err := c.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u_1", got.OwnerID)
	assert.Equal(t, 100.0, got.ConfidenceScore)
	assert.Equal(t, "file:///images/1.png", got.ImageReference)
	assert.Len(t, got.CitationLinks, 1)

	st := c.Status()
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, got, st.Record)
	assert.Equal(t, "image/png", img.saved[got.ImageReference])

	select {
	case ev := <-events:
		assert.Equal(t, got.ID, ev.ID)
	case <-time.After(time.Second):
		t.Fatal("no detection event")
	}

	// a new selection after completion starts over
	require.NoError(t, c.Select(pngImage))
	assert.Nil(t, c.Status().Record)
}

func TestAnalyzeRequiresSessionAndImage(t *testing.T) {
	gw := &fakeGateway{fn: func(context.Context) (*ai.DiagnosisResult, error) { return blight(), nil }}

	anon := NewController(gw, &memRecorder{}, &memImages{}, fakeSessions{})
	require.NoError(t, anon.Select(pngImage))
	_, err := anon.Analyze(context.Background())
	assert.ErrorIs(t, err, errNoSession)
	assert.Equal(t, StateImageSelected, anon.Status().State)

	c := newController(gw, &memRecorder{}, &memImages{})
	_, err = c.Analyze(context.Background())
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestAnalyzeFailureKeepsKind(t *testing.T) {
	rec, img := &memRecorder{}, &memImages{}
	c := newController(&fakeGateway{fn: func(context.Context) (*ai.DiagnosisResult, error) {
		return nil, common.Network("ai.Diagnose", errors.New("timeout"))
	}}, rec, img)

	require.NoError(t, c.Select(pngImage))
	_, err := c.Analyze(context.Background())
	assert.ErrorIs(t, err, common.ErrNetwork)

	st := c.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.ErrorIs(t, st.Err, common.ErrNetwork)
	assert.Zero(t, rec.count())
	assert.Empty(t, img.saved)
}

func TestAppendFailureRemovesImage(t *testing.T) {
	rec := &memRecorder{err: common.Storage("append detection", errors.New("disk full"))}
	img := &memImages{}
	c := newController(&fakeGateway{fn: func(context.Context) (*ai.DiagnosisResult, error) { return blight(), nil }}, rec, img)

	require.NoError(t, c.Select(pngImage))
	_, err := c.Analyze(context.Background())
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.Equal(t, StateFailed, c.Status().State)
	assert.Empty(t, img.saved)
	assert.Equal(t, []string{"file:///images/1.png"}, img.removed)
}

// blockingGateway holds Diagnose until released or cancelled.
func blockingGateway(started chan<- struct{}, release <-chan struct{}) *fakeGateway {
	return &fakeGateway{fn: func(ctx context.Context) (*ai.DiagnosisResult, error) {
		close(started)
		select {
		case <-release:
			return blight(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
}

func TestAnalyzeIsSingleFlight(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	rec := &memRecorder{}
	c := newController(blockingGateway(started, release), rec, &memImages{})
	require.NoError(t, c.Select(pngImage))

	done := make(chan error, 1)
	go func() {
		_, err := c.Analyze(context.Background())
		done <- err
	}()
	<-started

	assert.Equal(t, StateAnalyzing, c.Status().State)
	_, err := c.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrAnalysisInFlight)
	assert.ErrorIs(t, c.Select(pngImage), ErrAnalysisInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, StateCompleted, c.Status().State)
}

func TestCancelReturnsToImageSelected(t *testing.T) {
	started := make(chan struct{})
	rec, img := &memRecorder{}, &memImages{}
	c := newController(blockingGateway(started, nil), rec, img)
	require.NoError(t, c.Select(pngImage))

	assert.False(t, c.Cancel())

	done := make(chan error, 1)
	go func() {
		_, err := c.Analyze(context.Background())
		done <- err
	}()
	<-started
	assert.True(t, c.Cancel())

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, StateImageSelected, c.Status().State)
	assert.Zero(t, rec.count())
	assert.Empty(t, img.saved)
}

func TestResetDuringAnalysis(t *testing.T) {
	started := make(chan struct{})
	rec := &memRecorder{}
	c := newController(blockingGateway(started, nil), rec, &memImages{})
	require.NoError(t, c.Select(pngImage))

	done := make(chan error, 1)
	go func() {
		_, err := c.Analyze(context.Background())
		done <- err
	}()
	<-started
	c.Reset()

	assert.Error(t, <-done)
	assert.Equal(t, StateIdle, c.Status().State)
	assert.Zero(t, rec.count())
}

// imageGateway records every image it is asked to diagnose and blocks until
// released.
type imageGateway struct {
	mu      sync.Mutex
	images  [][]byte
	started chan struct{}
	release chan struct{}
}

func (g *imageGateway) Diagnose(ctx context.Context, image []byte) (*ai.DiagnosisResult, error) {
	g.mu.Lock()
	g.images = append(g.images, append([]byte(nil), image...))
	g.mu.Unlock()
	close(g.started)
	select {
	case <-g.release:
		return blight(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSubmitKeepsUploadAcrossConcurrentRequests(t *testing.T) {
	first := pngImage
	second := append(append([]byte(nil), pngImage...), 0xAA, 0xBB)

	gw := &imageGateway{started: make(chan struct{}), release: make(chan struct{})}
	rec := &memRecorder{}
	c := newController(gw, rec, &memImages{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), first)
		done <- err
	}()
	<-gw.started

	// a second upload arriving mid-analysis must not replace the first
	assert.ErrorIs(t, c.Select(second), ErrAnalysisInFlight)
	_, err := c.Submit(context.Background(), second)
	assert.ErrorIs(t, err, ErrAnalysisInFlight)

	close(gw.release)
	require.NoError(t, <-done)

	gw.mu.Lock()
	defer gw.mu.Unlock()
	require.Len(t, gw.images, 1)
	assert.Equal(t, first, gw.images[0])
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, StateCompleted, c.Status().State)
}

func TestSubmitRequiresSession(t *testing.T) {
	gw := &fakeGateway{fn: func(context.Context) (*ai.DiagnosisResult, error) { return blight(), nil }}
	c := NewController(gw, &memRecorder{}, &memImages{}, fakeSessions{})

	_, err := c.Submit(context.Background(), pngImage)
	assert.ErrorIs(t, err, errNoSession)
	assert.Equal(t, StateIdle, c.Status().State)
}

func TestFinishedAnalysisReleasesImage(t *testing.T) {
	heldImage := func(c *Controller) []byte {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.image
	}

	ok := newController(&fakeGateway{fn: func(context.Context) (*ai.DiagnosisResult, error) { return blight(), nil }},
		&memRecorder{}, &memImages{})
	_, err := ok.Submit(context.Background(), pngImage)
	require.NoError(t, err)
	assert.Nil(t, heldImage(ok))
	// nothing left to re-run once completed
	_, err = ok.Analyze(context.Background())
	assert.ErrorIs(t, err, common.ErrValidation)

	failed := newController(&fakeGateway{fn: func(context.Context) (*ai.DiagnosisResult, error) {
		return nil, common.Malformed("ai.Diagnose", errors.New("not json"))
	}}, &memRecorder{}, &memImages{})
	_, err = failed.Submit(context.Background(), pngImage)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
	assert.Nil(t, heldImage(failed))
	assert.Equal(t, StateFailed, failed.Status().State)

	// a cancelled run keeps the selection for a retry
	started := make(chan struct{})
	cancelled := newController(blockingGateway(started, nil), &memRecorder{}, &memImages{})
	require.NoError(t, cancelled.Select(pngImage))
	done := make(chan error, 1)
	go func() {
		_, err := cancelled.Analyze(context.Background())
		done <- err
	}()
	<-started
	cancelled.Cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, pngImage, heldImage(cancelled))
}

func TestSummarize(t *testing.T) {
	recs := []models.DetectionRecord{
		{ID: "6", CropType: models.CropCorn, SeverityLevel: models.SeveritySevere},
		{ID: "5", CropType: models.CropTomato, SeverityLevel: models.SeverityMild},
		{ID: "4", CropType: models.CropTomato, SeverityLevel: models.SeveritySevere},
		{ID: "3", CropType: models.CropCorn, SeverityLevel: models.SeverityModerate},
		{ID: "2", CropType: models.CropRice, SeverityLevel: models.SeverityMild},
	}
	in := Summarize(recs)
	assert.Equal(t, 5, in.Total)
	assert.Equal(t, 2, in.Severe)
	assert.Equal(t, models.CropCorn, in.TopCrop)
	require.Len(t, in.Recent, 4)
	assert.Equal(t, "6", in.Recent[0].ID)

	empty := Summarize(nil)
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.TopCrop)
	assert.NotNil(t, empty.Recent)
}
