package ingest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"ansifier-server/internal/ansify"
	"ansifier-server/internal/apperr"
	"ansifier-server/internal/domain"
	"ansifier-server/internal/moderation"
)

type fakeConverter struct {
	lastOpts ansify.Options
	output   string
	err      error
}

func (f *fakeConverter) Convert(ctx context.Context, path string, opts ansify.Options) (string, error) {
	f.lastOpts = opts
	if f.err != nil {
		return "", f.err
	}
	if f.output == "" {
		return "rendered", nil
	}
	return f.output, nil
}

type fakeGallery struct {
	inserted []domain.Artifact
	failWith error
}

func (f *fakeGallery) InsertArtifact(ctx context.Context, content string, format domain.ArtifactFormat, owner *string) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.inserted = append(f.inserted, domain.Artifact{Content: content, Format: format, Owner: owner})
	if owner == nil {
		return "public-uid", nil
	}
	return "private-uid", nil
}

func (f *fakeGallery) GetArtifact(ctx context.Context, uid string) (*domain.Artifact, error) {
	return nil, apperr.New(apperr.KindNotFound, "artifact %s not found", uid)
}

func (f *fakeGallery) ListRecentArtifacts(ctx context.Context, n int) ([]domain.Artifact, error) {
	return nil, nil
}

func (f *fakeGallery) ListArtifactsByOwner(ctx context.Context, owner string, n int) ([]domain.Artifact, error) {
	return nil, nil
}

func (f *fakeGallery) DeleteArtifact(ctx context.Context, uid string) error { return nil }

func (f *fakeGallery) CreateUser(ctx context.Context, username, password string) error { return nil }

func (f *fakeGallery) Login(ctx context.Context, username, password string) (bool, error) {
	return false, nil
}

func (f *fakeGallery) DeleteUser(ctx context.Context, username string) (bool, error) {
	return false, nil
}

func (f *fakeGallery) Close() error { return nil }

type scoreClassifier struct{ score float64 }

func (c scoreClassifier) Classify(ctx context.Context, path string) (float64, error) {
	return c.score, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testPNGBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, converter ansify.Converter, gate *moderation.Gate, gallery *fakeGallery) *Pipeline {
	t.Helper()
	cfg := Config{
		ScratchPath:  filepath.Join(t.TempDir(), "imagefile"),
		MaxBytes:     1_000_000,
		DimensionMin: 20,
		DimensionMax: 1000,
	}
	fetcher := NewFetcher(NewSizeLimiter(cfg.MaxBytes), time.Second)
	return NewPipeline(cfg, fetcher, converter, gate, gallery, nil, quietLogger())
}

func TestPipelineNeitherInput(t *testing.T) {
	gallery := &fakeGallery{}
	p := newTestPipeline(t, &fakeConverter{}, nil, gallery)

	_, err := p.Run(context.Background(), Request{Public: true})
	if err == nil {
		t.Fatal("expected failure without file or url")
	}
	if apperr.KindOf(err) != apperr.KindClientInput {
		t.Fatalf("kind = %v, want client input", apperr.KindOf(err))
	}
	if len(gallery.inserted) != 0 {
		t.Fatal("no storage write may happen without input")
	}
}

func TestPipelineDimensionClamp(t *testing.T) {
	converter := &fakeConverter{}
	p := newTestPipeline(t, converter, nil, &fakeGallery{})

	_, err := p.Run(context.Background(), Request{
		FileData: testPNGBytes(t),
		Width:    10000,
		Height:   3,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if converter.lastOpts.Width != 1000 {
		t.Fatalf("width = %d, want clamp to 1000", converter.lastOpts.Width)
	}
	if converter.lastOpts.Height != 20 {
		t.Fatalf("height = %d, want clamp up to 20", converter.lastOpts.Height)
	}
}

func TestPipelineOptionDefaults(t *testing.T) {
	converter := &fakeConverter{}
	p := newTestPipeline(t, converter, nil, &fakeGallery{})

	_, err := p.Run(context.Background(), Request{FileData: testPNGBytes(t)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if converter.lastOpts.Format != domain.FormatANSIEscaped {
		t.Fatalf("format = %q, want default ansi-escaped", converter.lastOpts.Format)
	}
	if string(converter.lastOpts.Characters) != ansify.DefaultCharacters {
		t.Fatalf("characters = %q, want default set", string(converter.lastOpts.Characters))
	}
	if converter.lastOpts.Width != 20 || converter.lastOpts.Height != 20 {
		t.Fatalf("dimensions = %dx%d, want minimum 20x20", converter.lastOpts.Width, converter.lastOpts.Height)
	}
}

func TestPipelineOversizedUpload(t *testing.T) {
	gallery := &fakeGallery{}
	p := newTestPipeline(t, &fakeConverter{}, nil, gallery)

	_, err := p.Run(context.Background(), Request{
		FileData: bytes.Repeat([]byte{0x01}, 1_000_001),
		Public:   true,
	})
	if err == nil {
		t.Fatal("expected oversize failure")
	}
	if apperr.KindOf(err) != apperr.KindClientInput {
		t.Fatalf("kind = %v, want client input", apperr.KindOf(err))
	}
	if len(gallery.inserted) != 0 {
		t.Fatal("no storage write may happen for an oversized upload")
	}
	if _, statErr := os.Stat(p.cfg.ScratchPath); !os.IsNotExist(statErr) {
		t.Fatal("oversized payload must not be materialized")
	}
}

func TestPipelineModerationRejection(t *testing.T) {
	gallery := &fakeGallery{}
	gate := moderation.NewGate(scoreClassifier{score: 0.99}, 0.85)
	p := newTestPipeline(t, &fakeConverter{}, gate, gallery)

	_, err := p.Run(context.Background(), Request{FileData: testPNGBytes(t), Public: true})
	if err == nil {
		t.Fatal("expected moderation rejection")
	}
	if apperr.KindOf(err) != apperr.KindModeration {
		t.Fatalf("kind = %v, want moderation", apperr.KindOf(err))
	}
	if len(gallery.inserted) != 0 {
		t.Fatal("moderation rejection must precede any persistence")
	}
}

func TestPipelineModerationPass(t *testing.T) {
	gate := moderation.NewGate(scoreClassifier{score: 0.1}, 0.85)
	p := newTestPipeline(t, &fakeConverter{}, gate, &fakeGallery{})

	if _, err := p.Run(context.Background(), Request{FileData: testPNGBytes(t)}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestPipelineGallerySubmission(t *testing.T) {
	gallery := &fakeGallery{}
	p := newTestPipeline(t, &fakeConverter{output: "art"}, nil, gallery)

	username := "alice"
	result, err := p.Run(context.Background(), Request{
		FileData: testPNGBytes(t),
		Public:   true,
		Private:  true,
		Username: &username,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.PublicUID != "public-uid" || result.PrivateUID != "private-uid" {
		t.Fatalf("uids = %q/%q", result.PublicUID, result.PrivateUID)
	}
	if len(gallery.inserted) != 2 {
		t.Fatalf("inserted %d rows, want 2", len(gallery.inserted))
	}
	if gallery.inserted[0].Owner != nil {
		t.Fatal("public insert must omit owner")
	}
	if gallery.inserted[1].Owner == nil || *gallery.inserted[1].Owner != "alice" {
		t.Fatal("private insert must carry the owner")
	}
	for _, artifact := range gallery.inserted {
		if artifact.Content != "art" {
			t.Fatalf("stored content %q, want rendered output", artifact.Content)
		}
	}
}

func TestPipelinePrivateWithoutLogin(t *testing.T) {
	gallery := &fakeGallery{}
	p := newTestPipeline(t, &fakeConverter{}, nil, gallery)

	_, err := p.Run(context.Background(), Request{FileData: testPNGBytes(t), Private: true})
	if err == nil {
		t.Fatal("expected failure for anonymous private submission")
	}
	if apperr.KindOf(err) != apperr.KindClientInput {
		t.Fatalf("kind = %v, want client input", apperr.KindOf(err))
	}
}

func TestPipelineFilePriorityOverURL(t *testing.T) {
	converter := &fakeConverter{}
	p := newTestPipeline(t, converter, nil, &fakeGallery{})

	// the url is invalid; the file must win, so no url validation runs
	_, err := p.Run(context.Background(), Request{
		FileData: testPNGBytes(t),
		URL:      "http://insecure.example.com/cat.png",
	})
	if err != nil {
		t.Fatalf("file flow must take priority over url: %v", err)
	}
}

func TestPipelineEndToEndRenderer(t *testing.T) {
	p := newTestPipeline(t, ansify.NewRenderer(), nil, &fakeGallery{})

	result, err := p.Run(context.Background(), Request{
		FileData: testPNGBytes(t),
		Width:    100,
		Height:   100,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Output == "" {
		t.Fatal("expected rendered output")
	}
	if result.Format != domain.FormatANSIEscaped {
		t.Fatalf("format = %q", result.Format)
	}
}
