package imagepipe

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
	"time"

	"github.com/brogergvhs/noveld/internal/fetch"
	"github.com/brogergvhs/noveld/internal/fetch/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const base = "https://www.esjzone.cc/forum/1/2.html"

func pngBytes(t *testing.T, w, h int, noisy bool) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	r := rand.New(rand.NewSource(1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 200, G: 10, B: 10, A: 128}
			if noisy {
				c = color.NRGBA{R: uint8(r.Intn(256)), G: uint8(r.Intn(256)), B: uint8(r.Intn(256)), A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newPipeline(t *testing.T, opts Options) (*Pipeline, *mocks.MockFetcher) {
	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)
	opts.Backoff = time.Millisecond
	return New(f, opts, nil), f
}

func TestProcess_MixedOutcomes(t *testing.T) {
	p, f := newPipeline(t, Options{})
	small := pngBytes(t, 2, 2, false)

	f.EXPECT().Fetch(gomock.Any(), "https://www.esjzone.cc/uploads/ok.png", gomock.Any()).
		Return(&fetch.Response{StatusCode: 200, ContentType: "image/png", Body: small}, nil)
	f.EXPECT().Fetch(gomock.Any(), "https://cdn.example.com/broken.jpg", gomock.Any()).
		Return(nil, &fetch.HTTPStatusError{Code: 404}).Times(DefaultAttempts)

	markup := `<p>text before</p>` +
		`<img src="/uploads/ok.png" srcset="x 2x" loading="lazy">` +
		`<img src="https://cdn.example.com/broken.jpg" alt="pic">` +
		`<img src="http://[::1">` +
		`<img src="">` +
		`<p>text after</p>`

	res := p.Process(context.Background(), markup, 4, base)

	assert.False(t, res.Cancelled)
	assert.Equal(t, 2, res.Failures)
	require.Len(t, res.Images, 1)
	assert.Equal(t, "img_4_0.png", res.Images[0].ID)
	assert.Equal(t, "image/png", res.Images[0].MediaType)
	assert.Equal(t, small, res.Images[0].Data)

	assert.Contains(t, res.Markup, `src="img_4_0.png"`)
	assert.NotContains(t, res.Markup, "srcset")
	assert.NotContains(t, res.Markup, "loading")
	assert.Contains(t, res.Markup, `alt="pic (image download failed, using remote link)"`)
	assert.Contains(t, res.Markup, "text before")
	assert.Contains(t, res.Markup, "text after")
}

func TestProcess_RetriesThenSucceeds(t *testing.T) {
	p, f := newPipeline(t, Options{})
	small := pngBytes(t, 2, 2, false)

	gomock.InOrder(
		f.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, fetch.ErrTimeout),
		f.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&fetch.Response{StatusCode: 200, Body: small}, nil),
	)

	res := p.Process(context.Background(), `<img src="https://x.test/a">`, 0, base)

	assert.Zero(t, res.Failures)
	require.Len(t, res.Images, 1)
	assert.Equal(t, "img_0_0.png", res.Images[0].ID, "media type sniffed from body")
}

func TestProcess_AnonymousShortTimeout(t *testing.T) {
	p, f := newPipeline(t, Options{})

	f.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, opts fetch.Options) (*fetch.Response, error) {
			assert.True(t, opts.Anonymous)
			assert.Equal(t, DefaultTimeout, opts.Timeout)
			return &fetch.Response{Body: pngBytes(t, 1, 1, false)}, nil
		})

	p.Process(context.Background(), `<img src="https://x.test/a">`, 0, base)
}

func TestProcess_CancellationIsNotAFailure(t *testing.T) {
	p, f := newPipeline(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	f.EXPECT().Fetch(gomock.Any(), "https://x.test/1", gomock.Any()).
		DoAndReturn(func(context.Context, string, fetch.Options) (*fetch.Response, error) {
			cancel()
			return nil, fetch.ErrUserAborted
		}).Times(1)

	res := p.Process(ctx, `<img src="https://x.test/1"><img src="https://x.test/2">`, 1, base)

	assert.True(t, res.Cancelled)
	assert.Zero(t, res.Failures)
	assert.Empty(t, res.Images)
}

func TestProcess_LargePayloadIsRecompressed(t *testing.T) {
	p, f := newPipeline(t, Options{MaxWidth: 100})
	big := pngBytes(t, 400, 200, true)
	require.Greater(t, len(big), DefaultThreshold)

	f.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&fetch.Response{ContentType: "image/png", Body: big}, nil)

	res := p.Process(context.Background(), `<img src="big.png">`, 3, base)

	require.Len(t, res.Images, 1)
	assert.Equal(t, "img_3_0.jpg", res.Images[0].ID)
	assert.Equal(t, "image/jpeg", res.Images[0].MediaType)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(res.Images[0].Data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestProcess_UndecodableLargePayloadKept(t *testing.T) {
	p, f := newPipeline(t, Options{})
	junk := bytes.Repeat([]byte{0x42}, DefaultThreshold+1)

	f.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&fetch.Response{ContentType: "image/webp", Body: junk}, nil)

	res := p.Process(context.Background(), `<img src="a.webp">`, 0, base)

	require.Len(t, res.Images, 1)
	assert.Equal(t, junk, res.Images[0].Data)
	assert.Equal(t, "img_0_0.webp", res.Images[0].ID)
	assert.Zero(t, res.Failures)
}

func TestCompress_Garbage(t *testing.T) {
	in := []byte("definitely not an image")
	out, ok := Compress(in, 800, 70, DefaultMaxPixels)

	assert.False(t, ok)
	assert.Equal(t, in, out)
}

// pngHeader returns a PNG whose IHDR declares w x h RGBA pixels, followed by
// pad bytes of junk instead of image data.
func pngHeader(w, h uint32, pad int) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolor with alpha

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	buf.Write(bytes.Repeat([]byte{0}, pad))
	return buf.Bytes()
}

func TestCompress_RejectsOversizedDimensions(t *testing.T) {
	in := pngHeader(100000, 100000, 0)

	cfg, err := png.DecodeConfig(bytes.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 100000, cfg.Width)

	out, ok := Compress(in, 800, 70, DefaultMaxPixels)
	assert.False(t, ok)
	assert.Equal(t, in, out)
}

func TestCompress_PixelCap(t *testing.T) {
	in := pngBytes(t, 40, 30, false)

	_, ok := Compress(in, 800, 70, 40*30-1)
	assert.False(t, ok)

	_, ok = Compress(in, 800, 70, 40*30)
	assert.True(t, ok)
}

func TestProcess_OversizedImageKeptAsIs(t *testing.T) {
	p, f := newPipeline(t, Options{})
	huge := pngHeader(100000, 100000, DefaultThreshold)

	f.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&fetch.Response{ContentType: "image/png", Body: huge}, nil)

	res := p.Process(context.Background(), `<img src="huge.png">`, 1, base)

	require.Len(t, res.Images, 1)
	assert.Equal(t, "img_1_0.png", res.Images[0].ID)
	assert.Equal(t, huge, res.Images[0].Data)
	assert.Zero(t, res.Failures)
}

func TestFit(t *testing.T) {
	w, h := fit(1600, 1200, 800)
	assert.Equal(t, []int{800, 600}, []int{w, h})

	w, h = fit(600, 2400, 800)
	assert.Equal(t, []int{200, 800}, []int{w, h})

	w, h = fit(300, 200, 800)
	assert.Equal(t, []int{300, 200}, []int{w, h})
}

func TestAbsoluteURL(t *testing.T) {
	u, err := absoluteURL(base, "../img/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://www.esjzone.cc/forum/img/a.jpg", u)

	_, err = absoluteURL(base, "javascript:void(0)")
	assert.True(t, errors.Is(err, ErrURLFormat))

	_, err = absoluteURL("", "/relative.png")
	assert.ErrorIs(t, err, ErrURLFormat)
}

func TestStripImages(t *testing.T) {
	out := StripImages(`<p>a<img src="x.png">b</p><img src="y.png">`)

	assert.NotContains(t, out, "<img")
	assert.Contains(t, out, "<p>ab</p>")
}
