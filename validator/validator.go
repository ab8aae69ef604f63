package validator

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/productlens/engine"
	"github.com/use-agent/productlens/extract"
	"github.com/use-agent/productlens/models"
	"github.com/use-agent/productlens/simhash"
)

// Rejection names why a candidate was dropped. The empty value means accepted.
type Rejection string

const (
	Accepted        Rejection = ""
	RejectFetch     Rejection = "fetch_failed"
	RejectStatus    Rejection = "bad_status"
	RejectType      Rejection = "unsupported_type"
	RejectTooSmall  Rejection = "too_small"
	RejectPixel     Rejection = "placeholder"
	RejectUndecoded Rejection = "undecodable"
	RejectTiny      Rejection = "too_few_pixels"
	RejectDuplicate Rejection = "duplicate"
)

// Observer is notified of every validation outcome.
type Observer interface {
	ObserveImage(outcome string)
}

// Options configures a Validator.
type Options struct {
	// Concurrency bounds in-flight fetches; excess candidates queue.
	Concurrency int
	// Timeout is the per-image deadline.
	Timeout time.Duration
	// MinBytes rejects smaller payloads.
	MinBytes int
	// MinDimension rejects images whose decoded width or height is smaller.
	MinDimension int
	// MaxImages truncates the validated survivors.
	MaxImages int
	// Dedup drops survivors whose perceptual fingerprint lies within
	// DedupDistance bits of an earlier survivor. It costs a full decode.
	Dedup         bool
	DedupDistance int
}

// Validator fetches candidate images and keeps only real, supported,
// non-placeholder rasters.
type Validator struct {
	fetcher  engine.AssetFetcher
	opts     Options
	observer Observer
}

// New creates a Validator. observer may be nil.
func New(fetcher engine.AssetFetcher, opts Options, observer Observer) *Validator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Validator{fetcher: fetcher, opts: opts, observer: observer}
}

// Validate checks every candidate concurrently and returns the survivors in
// discovery order, truncated to MaxImages. Individual failures are logged
// and dropped; Validate itself never fails.
func (v *Validator) Validate(ctx context.Context, candidates []extract.Candidate) []models.ImageAsset {
	slots := make([]*checked, len(candidates))

	var g errgroup.Group
	g.SetLimit(v.opts.Concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			result, reason := v.check(ctx, c)
			if reason != Accepted {
				v.observe(reason)
				slog.Debug("image rejected", "url", c.URL, "reason", string(reason))
				return nil
			}
			slots[i] = result
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.ImageAsset, 0, len(candidates))
	var prints []uint64
	for _, s := range slots {
		if s == nil {
			continue
		}
		if v.opts.Dedup && v.seen(prints, s.print) {
			v.observe(RejectDuplicate)
			slog.Debug("image rejected", "url", s.asset.SourceURL, "reason", string(RejectDuplicate))
			continue
		}
		prints = append(prints, s.print)
		v.observe(Accepted)
		if v.opts.MaxImages <= 0 || len(out) < v.opts.MaxImages {
			out = append(out, *s.asset)
		}
	}
	return out
}

func (v *Validator) seen(prints []uint64, fp uint64) bool {
	for _, p := range prints {
		if simhash.Similar(p, fp, v.opts.DedupDistance) {
			return true
		}
	}
	return false
}

func (v *Validator) observe(r Rejection) {
	if v.observer != nil {
		v.observer.ObserveImage(outcome(r))
	}
}

func outcome(r Rejection) string {
	if r == Accepted {
		return "accepted"
	}
	return string(r)
}

// checked is an accepted asset with its perceptual fingerprint, which is
// zero unless Dedup is on.
type checked struct {
	asset *models.ImageAsset
	print uint64
}

// Check fetches and validates a single candidate under its own deadline.
func (v *Validator) Check(ctx context.Context, c extract.Candidate) (*models.ImageAsset, Rejection) {
	result, reason := v.check(ctx, c)
	if reason != Accepted {
		return nil, reason
	}
	return result.asset, Accepted
}

func (v *Validator) check(ctx context.Context, c extract.Candidate) (*checked, Rejection) {
	ctx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	defer cancel()

	asset, err := v.fetcher.FetchAsset(ctx, c.URL)
	if err != nil {
		if models.IsFetchKind(err, models.FetchKindStatus) {
			return nil, RejectStatus
		}
		return nil, RejectFetch
	}
	if asset.StatusCode < 200 || asset.StatusCode > 299 {
		return nil, RejectStatus
	}

	body := asset.Body
	if IsPlaceholder(body) {
		return nil, RejectPixel
	}
	mediaType, ok := MediaType(asset.ContentType, body)
	if !ok {
		return nil, RejectType
	}
	if len(body) < v.opts.MinBytes {
		return nil, RejectTooSmall
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return nil, RejectUndecoded
	}
	decoded, ok := formatMediaType[format]
	if !ok {
		return nil, RejectType
	}
	if cfg.Width < v.opts.MinDimension || cfg.Height < v.opts.MinDimension {
		return nil, RejectTiny
	}
	// The decoded format wins over a mislabelled header.
	mediaType = decoded

	var fp uint64
	if v.opts.Dedup {
		img, _, err := image.Decode(bytes.NewReader(body))
		if err != nil {
			return nil, RejectUndecoded
		}
		fp = simhash.Image(img)
	}

	return &checked{
		asset: &models.ImageAsset{
			SourceURL: c.URL,
			AltText:   c.Alt,
			Payload:   body,
			MediaType: mediaType,
			Width:     cfg.Width,
			Height:    cfg.Height,
		},
		print: fp,
	}, Accepted
}

var formatMediaType = map[string]string{
	"jpeg": models.MediaTypeJPEG,
	"png":  models.MediaTypePNG,
	"webp": models.MediaTypeWebP,
}

var declaredMediaType = map[string]string{
	"image/jpeg":  models.MediaTypeJPEG,
	"image/jpg":   models.MediaTypeJPEG,
	"image/pjpeg": models.MediaTypeJPEG,
	"image/png":   models.MediaTypePNG,
	"image/x-png": models.MediaTypePNG,
	"image/webp":  models.MediaTypeWebP,
}

// MediaType maps a declared Content-Type onto the supported set. Generic or
// missing declarations are resolved by sniffing the payload.
func MediaType(contentType string, body []byte) (string, bool) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	if mt == "" || mt == "application/octet-stream" || mt == "binary/octet-stream" {
		mt, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}
	canonical, ok := declaredMediaType[mt]
	return canonical, ok
}

// IsPlaceholder reports whether body is a 1x1 GIF or PNG, the usual
// lazy-load stand-ins.
func IsPlaceholder(body []byte) bool {
	switch {
	case len(body) >= 10 && (bytes.HasPrefix(body, []byte("GIF87a")) || bytes.HasPrefix(body, []byte("GIF89a"))):
		w := binary.LittleEndian.Uint16(body[6:8])
		h := binary.LittleEndian.Uint16(body[8:10])
		return w <= 1 && h <= 1
	case len(body) >= 24 && bytes.HasPrefix(body, pngSignature) && string(body[12:16]) == "IHDR":
		w := binary.BigEndian.Uint32(body[16:20])
		h := binary.BigEndian.Uint32(body[20:24])
		return w <= 1 && h <= 1
	}
	return false
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
