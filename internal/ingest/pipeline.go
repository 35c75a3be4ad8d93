package ingest

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"ansifier-server/internal/ansify"
	"ansifier-server/internal/apperr"
	"ansifier-server/internal/domain"
	"ansifier-server/internal/moderation"
	"ansifier-server/internal/store"
)

const (
	// DefaultDimensionMin doubles as the default for absent dimensions.
	DefaultDimensionMin = 20
	DefaultDimensionMax = 1000
)

// Archiver mirrors persisted artifacts into external object storage.
// Failures are logged, never surfaced: archival is best-effort.
type Archiver interface {
	StoreArtifact(ctx context.Context, uid string, format domain.ArtifactFormat, content string) (string, error)
}

// Request is one ingestion attempt. FileData wins over URL when both are
// present; neither present is a client-input error.
type Request struct {
	FileData []byte
	URL      string

	Format     string
	Characters string
	Width      int // 0 means absent
	Height     int // 0 means absent

	Public   bool
	Private  bool
	Username *string // authenticated caller, required for Private
}

// Result carries the rendered output plus any gallery uids generated for it.
// The uids are out-of-band metadata, never mixed into the content.
type Result struct {
	Output     string
	Format     domain.ArtifactFormat
	PublicUID  string
	PrivateUID string
}

// Config tunes the pipeline's bounds and scratch location.
type Config struct {
	ScratchPath  string
	MaxBytes     int64
	DimensionMin int
	DimensionMax int
}

// Pipeline runs the two ingestion flows: validation stages in strict order,
// short-circuiting on the first failure, then conversion, then optional
// persistence. No stage retries; every failure is terminal for the request.
type Pipeline struct {
	cfg       Config
	limiter   SizeLimiter
	fetcher   *Fetcher
	converter ansify.Converter
	gate      *moderation.Gate
	gallery   store.Gallery
	archiver  Archiver
	logger    *logrus.Logger
}

func NewPipeline(cfg Config, fetcher *Fetcher, converter ansify.Converter, gate *moderation.Gate, gallery store.Gallery, archiver Archiver, logger *logrus.Logger) *Pipeline {
	if cfg.DimensionMin <= 0 {
		cfg.DimensionMin = DefaultDimensionMin
	}
	if cfg.DimensionMax < cfg.DimensionMin {
		cfg.DimensionMax = DefaultDimensionMax
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.ScratchPath == "" {
		cfg.ScratchPath = "IMAGEFILE"
	}
	return &Pipeline{
		cfg:       cfg,
		limiter:   NewSizeLimiter(cfg.MaxBytes),
		fetcher:   fetcher,
		converter: converter,
		gate:      gate,
		gallery:   gallery,
		archiver:  archiver,
		logger:    logger,
	}
}

// Run selects the flow, executes it to a terminal outcome, and returns the
// rendered output plus generated gallery uids.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	switch {
	case len(req.FileData) > 0:
		p.logger.Infof("processing uploaded file (%d bytes)", len(req.FileData))
		if err := p.limiter.CheckActual(int64(len(req.FileData))); err != nil {
			return nil, err
		}
		if err := p.materialize(req.FileData); err != nil {
			return nil, err
		}
	case req.URL != "":
		p.logger.Infof("processing url %s", req.URL)
		validated, err := ValidateURL(req.URL)
		if err != nil {
			return nil, err
		}
		body, err := p.fetcher.Fetch(ctx, validated)
		if err != nil {
			return nil, err
		}
		if err := p.materialize(body); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.New(apperr.KindClientInput, "please supply a valid file or URL to ansify")
	}

	if err := p.gate.Check(ctx, p.cfg.ScratchPath); err != nil {
		return nil, err
	}

	opts, err := p.buildOptions(req)
	if err != nil {
		return nil, err
	}

	p.logger.Infof("converting %s at %dx%d", opts.Format, opts.Width, opts.Height)
	output, err := p.converter.Convert(ctx, p.cfg.ScratchPath, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{Output: output, Format: opts.Format}
	if err := p.persist(ctx, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) materialize(data []byte) error {
	if dir := filepath.Dir(p.cfg.ScratchPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Wrap(apperr.KindStorage, err, "create scratch dir")
		}
	}
	if err := os.WriteFile(p.cfg.ScratchPath, data, 0o644); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "save image to scratch path")
	}
	p.logger.Infof("saved %d bytes to %s", len(data), p.cfg.ScratchPath)
	return nil
}

// buildOptions applies defaults and clamps dimensions into the configured
// inclusive range; absent dimensions take the minimum.
func (p *Pipeline) buildOptions(req Request) (ansify.Options, error) {
	format := domain.FormatANSIEscaped
	if req.Format != "" {
		format = domain.ArtifactFormat(req.Format)
	}

	characters := []rune(ansify.DefaultCharacters)
	if req.Characters != "" {
		characters = []rune(req.Characters)
	}

	if req.Width < 0 || req.Height < 0 {
		return ansify.Options{}, apperr.New(apperr.KindClientInput, "dimensions must not be negative")
	}

	return ansify.Options{
		Format:     format,
		Characters: characters,
		Width:      p.clamp(req.Width),
		Height:     p.clamp(req.Height),
	}, nil
}

func (p *Pipeline) clamp(dim int) int {
	if dim == 0 || dim < p.cfg.DimensionMin {
		return p.cfg.DimensionMin
	}
	if dim > p.cfg.DimensionMax {
		return p.cfg.DimensionMax
	}
	return dim
}

func (p *Pipeline) persist(ctx context.Context, req Request, result *Result) error {
	if !req.Public && !req.Private {
		return nil
	}
	if p.gallery == nil {
		return apperr.New(apperr.KindStorage, "gallery storage is not configured")
	}

	if req.Public {
		uid, err := p.gallery.InsertArtifact(ctx, result.Output, result.Format, nil)
		if err != nil {
			return err
		}
		result.PublicUID = uid
		p.archive(ctx, uid, result)
	}

	if req.Private {
		if req.Username == nil || *req.Username == "" {
			return apperr.New(apperr.KindClientInput, "private gallery submission requires login")
		}
		uid, err := p.gallery.InsertArtifact(ctx, result.Output, result.Format, req.Username)
		if err != nil {
			return err
		}
		result.PrivateUID = uid
		p.archive(ctx, uid, result)
	}
	return nil
}

func (p *Pipeline) archive(ctx context.Context, uid string, result *Result) {
	if p.archiver == nil {
		return
	}
	location, err := p.archiver.StoreArtifact(ctx, uid, result.Format, result.Output)
	if err != nil {
		p.logger.Warnf("archive artifact %s: %v", uid, err)
		return
	}
	p.logger.Infof("archived artifact %s to %s", uid, location)
}
