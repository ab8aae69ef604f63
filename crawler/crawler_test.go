package crawler

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/productlens/backend"
	"github.com/use-agent/productlens/engine"
	"github.com/use-agent/productlens/extract"
	"github.com/use-agent/productlens/metrics"
	"github.com/use-agent/productlens/models"
	"github.com/use-agent/productlens/validator"
)

// spacerGIF is a 43-byte 1x1 transparent GIF.
var spacerGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0xff, 0xff, 0xff,
	0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

var (
	photoOnce sync.Once
	photo     []byte
)

// productPhoto is a 160x160 PNG of varied pixels, large enough to pass every
// validator threshold.
func productPhoto(t *testing.T) []byte {
	t.Helper()
	photoOnce.Do(func() {
		rng := rand.New(rand.NewSource(7))
		img := image.NewNRGBA(image.Rect(0, 0, 160, 160))
		for y := 0; y < 160; y++ {
			for x := 0; x < 160; x++ {
				img.Set(x, y, color.NRGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			photo = buf.Bytes()
		}
	})
	require.NotEmpty(t, photo)
	return photo
}

// fakePages serves canned HTML by URL.
type fakePages struct {
	pages  map[string]string
	titles map[string]string
	calls  atomic.Int32
}

func (f *fakePages) FetchPage(_ context.Context, url string) (*engine.Page, error) {
	f.calls.Add(1)
	html, ok := f.pages[url]
	if !ok {
		return nil, &models.FetchError{Kind: models.FetchKindStatus, URL: url, StatusCode: 404}
	}
	return &engine.Page{HTML: html, Title: f.titles[url], StatusCode: 200, FinalURL: url}, nil
}

// fakeAssets serves canned image bodies by URL.
type fakeAssets struct {
	bodies map[string][]byte
}

func (f *fakeAssets) FetchAsset(_ context.Context, url string) (*engine.Asset, error) {
	body, ok := f.bodies[url]
	if !ok {
		return nil, &models.FetchError{Kind: models.FetchKindStatus, URL: url, StatusCode: 404}
	}
	ct := "image/png"
	if bytes.HasPrefix(body, []byte("GIF8")) {
		ct = "image/gif"
	}
	return &engine.Asset{Body: body, ContentType: ct, StatusCode: 200}, nil
}

// fakeBackend answers with a canned response or blocks until cancelled.
type fakeBackend struct {
	resp  *backend.Response
	err   error
	hang  bool
	calls atomic.Int32
}

func (f *fakeBackend) Scrape(ctx context.Context, _ string) (*backend.Response, error) {
	f.calls.Add(1)
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

type fixture struct {
	pages   *fakePages
	assets  *fakeAssets
	memory  *engine.DomainMemory
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := engine.NewDomainMemory(time.Minute)
	t.Cleanup(mem.Stop)
	return &fixture{
		pages:   &fakePages{pages: map[string]string{}},
		assets:  &fakeAssets{bodies: map[string][]byte{}},
		memory:  mem,
		metrics: metrics.New(),
	}
}

func (f *fixture) crawler(b Backend, deadline time.Duration) *Crawler {
	v := validator.New(f.assets, validator.Options{
		Concurrency:  4,
		Timeout:      time.Second,
		MinBytes:     1000,
		MinDimension: 100,
		MaxImages:    10,
	}, f.metrics)
	d := Deps{
		Pages:           f.pages,
		Validator:       v,
		Memory:          f.memory,
		Metrics:         f.metrics,
		BackendDeadline: deadline,
		CandidateLimit:  20,
		SiblingViews:    3,
		MinDimension:    100,
	}
	if b != nil {
		d.Backend = b
	}
	return New(d)
}

func imageURLs(assets []models.ImageAsset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.SourceURL
	}
	return out
}

const triumphURL = "https://www.triumph.com/en/product/amourette-charm-10214534.html"

const triumphPage = `<html><head>
<title>Amourette Charm | Triumph</title>
<meta name="description" content="Delicate lace with a soft feel.">
</head><body>
<h1>Amourette Charm</h1>
<div class="headline headline--h9-rs">Non-wired bra<meta itemprop="sku" content="10214534"></div>
<div class="product-detail__main-image">
  <img src="//images.triumph.com/Triumph/10214534_0004_MOD01.jpg" alt="Front">
</div>
<p>Our Amourette Charm is made of soft lace that sits comfortably all day long without wires.</p>
</body></html>`

func triumphImage(n int) string {
	return fmt.Sprintf("https://images.triumph.com/Triumph/10214534_0004_MOD%02d.jpg", n)
}

func TestCrawl_ScenarioA_PathLocaleAndHeadline(t *testing.T) {
	f := newFixture(t)
	f.pages.pages[triumphURL] = triumphPage
	for _, n := range []int{1, 2, 3} {
		f.assets.bodies[triumphImage(n)] = productPhoto(t)
	}

	res, err := f.crawler(nil, 0).Crawl(context.Background(), triumphURL)
	require.NoError(t, err)

	assert.Equal(t, "en", res.Language)
	assert.Equal(t, "Non-wired bra", res.Category)
	assert.Equal(t, []string{triumphImage(1), triumphImage(2), triumphImage(3)}, imageURLs(res.Images))
	assert.Equal(t, "Front", res.Images[0].AltText)
	assert.Equal(t, models.MediaTypePNG, res.Images[0].MediaType)
	assert.Equal(t, models.SourceDirect, res.Source)
	assert.Equal(t, "Amourette Charm | Triumph", res.Title)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.StrategyHits.WithLabelValues("category", "headline")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CrawlsTotal.WithLabelValues(models.SourceDirect, "ok")))

	in := res.DescribeInput()
	assert.Len(t, in.Images, 3)
	assert.Equal(t, "Non-wired bra", in.Category)
}

func TestCrawl_ScenarioB_BrandBreadcrumbFallsThrough(t *testing.T) {
	const pageURL = "https://www.sloggi.com/gb/p/zero-feel-10198765"
	f := newFixture(t)
	f.pages.pages[pageURL] = `<html><head><title>ZERO Feel | sloggi</title></head><body>
<nav aria-label="Breadcrumb"><ol><li><a href="/">Home</a></li><li><a href="/gb">Sloggi</a></li></ol></nav>
<h1>sloggi ZERO Feel Bralette</h1>
<div class="product-carousel">
  <img src="/media/10198765_0003_MOD01.jpg">
  <img src="/media/10198765_0003_MOD01.jpg?wid=2000">
  <img src="/media/10198765_0003_MOD02.jpg">
</div>
</body></html>`
	f.assets.bodies["https://www.sloggi.com/media/10198765_0003_MOD01.jpg"] = productPhoto(t)
	f.assets.bodies["https://www.sloggi.com/media/10198765_0003_MOD02.jpg"] = productPhoto(t)

	res, err := f.crawler(nil, 0).Crawl(context.Background(), pageURL)
	require.NoError(t, err)

	assert.Equal(t, "en", res.Language)
	assert.Equal(t, "Bralette", res.Category)
	assert.Equal(t, []string{
		"https://www.sloggi.com/media/10198765_0003_MOD01.jpg",
		"https://www.sloggi.com/media/10198765_0003_MOD02.jpg",
	}, imageURLs(res.Images))
}

func TestCrawl_ScenarioC_PlaceholdersExcludedBeforeCap(t *testing.T) {
	const pageURL = "https://shop.example.com/de/p/lace-body"
	f := newFixture(t)

	var b strings.Builder
	b.WriteString(`<html lang="fr"><head><title>Lace Bodysuit</title></head><body><div class="product-images">`)
	var want []string
	for i := 1; i <= 13; i++ {
		src := fmt.Sprintf("https://shop.example.com/img/%02d.png", i)
		fmt.Fprintf(&b, `<img src="%s">`, src)
		if i == 2 || i == 6 || i == 9 {
			f.assets.bodies[src] = spacerGIF
			continue
		}
		f.assets.bodies[src] = productPhoto(t)
		want = append(want, src)
	}
	b.WriteString(`</div></body></html>`)
	f.pages.pages[pageURL] = b.String()

	res, err := f.crawler(nil, 0).Crawl(context.Background(), pageURL)
	require.NoError(t, err)

	require.Len(t, res.Images, 10)
	assert.Equal(t, want, imageURLs(res.Images))
	assert.Equal(t, "de", res.Language, "url locale outranks html lang")
	assert.Equal(t, "Body", res.Category)
	assert.Equal(t, float64(3), testutil.ToFloat64(f.metrics.ImageOutcomes.WithLabelValues(string(validator.RejectPixel))))
}

func TestCrawl_HangingBackendFallsBackToDirect(t *testing.T) {
	f := newFixture(t)
	f.pages.pages[triumphURL] = triumphPage
	f.assets.bodies[triumphImage(1)] = productPhoto(t)
	be := &fakeBackend{hang: true}
	c := f.crawler(be, 50*time.Millisecond)

	start := time.Now()
	res, err := c.Crawl(context.Background(), triumphURL)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, models.SourceDirect, res.Source)
	assert.Equal(t, "Non-wired bra", res.Category)
	assert.Equal(t, []string{triumphImage(1)}, imageURLs(res.Images))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.BackendOutcomes.WithLabelValues("deadline")))
	assert.True(t, f.memory.Skip(triumphURL), "host should cool down after a missed deadline")

	_, err = c.Crawl(context.Background(), triumphURL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), be.calls.Load(), "cooling host must not reach the backend")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.BackendOutcomes.WithLabelValues("skipped")))
}

func TestCrawl_BackendErrorFallsBackImmediately(t *testing.T) {
	f := newFixture(t)
	f.pages.pages[triumphURL] = triumphPage
	f.assets.bodies[triumphImage(1)] = productPhoto(t)
	be := &fakeBackend{err: models.NewCrawlError(models.ErrCodeBackendFailed, "backend returned HTTP 502", nil)}

	start := time.Now()
	res, err := f.crawler(be, 10*time.Second).Crawl(context.Background(), triumphURL)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, models.SourceDirect, res.Source)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.BackendOutcomes.WithLabelValues("error")))
}

func TestCrawl_BackendMissUsesDirectWithoutCooldown(t *testing.T) {
	f := newFixture(t)
	f.pages.pages[triumphURL] = triumphPage
	f.assets.bodies[triumphImage(1)] = productPhoto(t)
	be := &fakeBackend{resp: &backend.Response{Kind: backend.Miss}}

	res, err := f.crawler(be, time.Second).Crawl(context.Background(), triumphURL)
	require.NoError(t, err)

	assert.Equal(t, models.SourceDirect, res.Source)
	assert.False(t, f.memory.Skip(triumphURL))
}

func TestCrawl_StructuredHitSkipsPageFetch(t *testing.T) {
	const pageURL = "https://www.triumph.com/p/amourette-charm-10214534"
	f := newFixture(t)
	f.assets.bodies[triumphImage(1)] = productPhoto(t)
	f.assets.bodies[triumphImage(2)] = productPhoto(t)
	be := &fakeBackend{resp: &backend.Response{
		Kind:     backend.StructuredHit,
		Category: "wired bras",
		Images: []extract.MarkdownImage{
			{URL: triumphImage(1), Alt: "Front"},
			{URL: triumphImage(1) + "?wid=1200"},
			{URL: triumphImage(2)},
		},
		Language: "de-AT",
		Title:    "Amourette Charm",
		Markdown: "# Amourette Charm",
	}}

	res, err := f.crawler(be, time.Second).Crawl(context.Background(), pageURL)
	require.NoError(t, err)

	assert.Equal(t, models.SourceAdvanced, res.Source)
	assert.Equal(t, "Wired bra", res.Category)
	assert.Equal(t, "de", res.Language)
	assert.Equal(t, []string{triumphImage(1), triumphImage(2)}, imageURLs(res.Images))
	assert.Equal(t, "# Amourette Charm", res.Markdown)
	assert.Equal(t, int32(0), f.pages.calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.BackendOutcomes.WithLabelValues("structured")))
}

func TestCrawl_PartialHitSupplementsImagesFromPage(t *testing.T) {
	f := newFixture(t)
	f.pages.pages[triumphURL] = triumphPage
	f.assets.bodies[triumphImage(1)] = productPhoto(t)
	be := &fakeBackend{resp: &backend.Response{Kind: backend.PartialHit, Category: "Padded bra"}}

	res, err := f.crawler(be, time.Second).Crawl(context.Background(), triumphURL)
	require.NoError(t, err)

	assert.Equal(t, models.SourceMixed, res.Source)
	assert.Equal(t, "Padded bra", res.Category, "backend category is kept")
	assert.Equal(t, []string{triumphImage(1)}, imageURLs(res.Images))
	assert.Equal(t, "Amourette Charm | Triumph", res.Title)
	assert.Equal(t, int32(1), f.pages.calls.Load())
}

func TestCrawl_PartialHitKeepsSignalsWhenPageUnreachable(t *testing.T) {
	f := newFixture(t)
	f.assets.bodies[triumphImage(1)] = productPhoto(t)
	be := &fakeBackend{resp: &backend.Response{
		Kind:   backend.PartialHit,
		Images: []extract.MarkdownImage{{URL: triumphImage(1)}},
	}}

	res, err := f.crawler(be, time.Second).Crawl(context.Background(), triumphURL)
	require.NoError(t, err)

	assert.Equal(t, models.SourceAdvanced, res.Source)
	assert.Empty(t, res.Category)
	assert.Len(t, res.Images, 1)
}

func TestCrawl_FetchFailure(t *testing.T) {
	f := newFixture(t)

	res, err := f.crawler(nil, 0).Crawl(context.Background(), "https://shop.example.com/p/gone")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, models.HasCode(err, models.ErrCodeFetchFailed))
	assert.True(t, models.IsFetchKind(err, models.FetchKindStatus))
}

func TestCrawl_NoImagesReturnsAssembledResult(t *testing.T) {
	f := newFixture(t)
	f.pages.pages[triumphURL] = triumphPage

	res, err := f.crawler(nil, 0).Crawl(context.Background(), triumphURL)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeNoImages))
	require.NotNil(t, res)
	assert.Equal(t, "Non-wired bra", res.Category)
	assert.Equal(t, "en", res.Language)
	assert.NotNil(t, res.Images)
	assert.Empty(t, res.Images)
}

func TestCrawl_InvalidURL(t *testing.T) {
	f := newFixture(t)
	for _, raw := range []string{"", "ftp://shop.example.com/p/1", "/relative/path"} {
		_, err := f.crawler(nil, 0).Crawl(context.Background(), raw)
		assert.True(t, models.HasCode(err, models.ErrCodeInvalidInput), raw)
	}
	assert.Equal(t, int32(0), f.pages.calls.Load())
}

func TestCrawl_NoisyCategoryOverriddenForVendor(t *testing.T) {
	f := newFixture(t)
	f.pages.pages[triumphURL] = strings.Replace(triumphPage, "<h1>Amourette Charm</h1>", "<h1>Amourette Charm Wired Bra</h1>", 1)
	f.assets.bodies[triumphImage(1)] = productPhoto(t)

	c := f.crawler(nil, 0)
	c.categories = &extract.CategoryExtractor{Strategies: []extract.CategoryStrategy{
		{Name: "leaky", Run: func(*extract.Page, *extract.SiteProfile) string { return "Bestseller Bras" }},
	}}

	res, err := c.Crawl(context.Background(), triumphURL)
	require.NoError(t, err)
	assert.Equal(t, "Wired bra", res.Category)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.StrategyHits.WithLabelValues("category", "override")))
}

func TestCrawl_NoisyCategoryKeptForGenericSite(t *testing.T) {
	const pageURL = "https://shop.example.com/p/1"
	f := newFixture(t)
	f.pages.pages[pageURL] = `<html><body><h1>Wired Bra</h1><div class="product-images"><img src="/a.png"></div></body></html>`
	f.assets.bodies["https://shop.example.com/a.png"] = productPhoto(t)

	c := f.crawler(nil, 0)
	c.categories = &extract.CategoryExtractor{Strategies: []extract.CategoryStrategy{
		{Name: "leaky", Run: func(*extract.Page, *extract.SiteProfile) string { return "Bestseller Bras" }},
	}}

	res, err := c.Crawl(context.Background(), pageURL)
	require.NoError(t, err)
	assert.Equal(t, "Bestseller Bras", res.Category)
}

func TestCrawl_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.pages.pages[triumphURL] = triumphPage
	be := &fakeBackend{hang: true}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.crawler(be, time.Second).Crawl(ctx, triumphURL)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeInternal))
	assert.False(t, f.memory.Skip(triumphURL))
}

type recordingDescriber struct {
	mu    sync.Mutex
	ids   []string
	input []models.DescribeInput
}

func (d *recordingDescriber) Describe(requestID string, in models.DescribeInput) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, requestID)
	d.input = append(d.input, in)
}

func TestCrawl_DescriberReceivesValidatedImages(t *testing.T) {
	f := newFixture(t)
	f.pages.pages[triumphURL] = triumphPage
	for _, n := range []int{1, 2} {
		f.assets.bodies[triumphImage(n)] = productPhoto(t)
	}
	d := &recordingDescriber{}
	c := f.crawler(nil, 0)
	c.describer = d

	res, err := c.Crawl(context.Background(), triumphURL)
	require.NoError(t, err)

	require.Len(t, d.input, 1)
	assert.Equal(t, res.RequestID, d.ids[0])
	assert.Equal(t, "en", d.input[0].Language)
	assert.Len(t, d.input[0].Images, 2)
}

func TestCrawl_DescriberSkippedWithoutImages(t *testing.T) {
	f := newFixture(t)
	f.pages.pages[triumphURL] = triumphPage
	d := &recordingDescriber{}
	c := f.crawler(nil, 0)
	c.describer = d

	_, err := c.Crawl(context.Background(), triumphURL)
	require.True(t, models.HasCode(err, models.ErrCodeNoImages))
	assert.Empty(t, d.input)
}

func TestCrawl_FetchedTitlePreferred(t *testing.T) {
	f := newFixture(t)
	f.pages.pages[triumphURL] = triumphPage
	f.pages.titles = map[string]string{triumphURL: "Amourette Charm Non-wired bra | Triumph"}
	f.assets.bodies[triumphImage(1)] = productPhoto(t)

	res, err := f.crawler(nil, 0).Crawl(context.Background(), triumphURL)
	require.NoError(t, err)
	assert.Equal(t, "Amourette Charm Non-wired bra | Triumph", res.Title)
}
