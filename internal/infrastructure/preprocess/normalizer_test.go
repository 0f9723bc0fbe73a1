package preprocess

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func normalizedWhite(c int) float32 {
	return (1 - channelMean[c]) / channelStd[c]
}

func policies() []domain.PreprocessPolicy {
	return []domain.PreprocessPolicy{
		{Name: domain.PolicyCenterCrop, Version: 1},
		{Name: domain.PolicyPadSquare, Version: 1},
	}
}

func TestNormalize_ShapeForArbitrarySizes(t *testing.T) {
	sizes := [][2]int{{1, 1}, {224, 224}, {640, 480}, {37, 301}, {300, 10}, {1024, 1024}}

	for _, policy := range policies() {
		n := NewNormalizer(policy, nil, logger.NewNopLogger())
		for _, s := range sizes {
			raw := domain.NewRawImage("img.png", "image/png", encodePNG(t, solid(s[0], s[1], color.NRGBA{R: 10, G: 200, B: 30, A: 255})))

			tensor, err := n.Normalize(context.Background(), raw)
			require.NoError(t, err, "%s %v", policy, s)
			assert.Len(t, tensor, domain.TensorLen, "%s %v", policy, s)
		}
	}
}

func TestNormalize_TransparentBecomesWhite(t *testing.T) {
	transparent := solid(50, 80, color.NRGBA{R: 0, G: 0, B: 0, A: 0})

	for _, policy := range policies() {
		n := NewNormalizer(policy, nil, logger.NewNopLogger())
		tensor, err := n.Normalize(context.Background(), domain.NewRawImage("a.png", "image/png", encodePNG(t, transparent)))
		require.NoError(t, err)

		const plane = domain.TensorSide * domain.TensorSide
		for c := 0; c < domain.TensorChannels; c++ {
			assert.InDelta(t, normalizedWhite(c), tensor[c*plane], 1e-5)
			assert.InDelta(t, normalizedWhite(c), tensor[c*plane+plane/2+domain.TensorSide/2], 1e-5)
		}
	}
}

func TestNormalize_PadSquareKeepsWhiteBorders(t *testing.T) {
	// Широкое чёрное изображение: после вписывания сверху и снизу остаются белые поля.
	wide := solid(400, 100, color.NRGBA{A: 255})

	n := NewNormalizer(domain.PreprocessPolicy{Name: domain.PolicyPadSquare, Version: 1}, nil, logger.NewNopLogger())
	tensor, err := n.Normalize(context.Background(), domain.NewRawImage("wide.png", "", encodePNG(t, wide)))
	require.NoError(t, err)

	center := (domain.TensorSide/2)*domain.TensorSide + domain.TensorSide/2
	assert.InDelta(t, normalizedWhite(0), tensor[0], 1e-5)
	assert.InDelta(t, -channelMean[0]/channelStd[0], tensor[center], 1e-3)
}

func TestNormalize_CenterCropFillsFrame(t *testing.T) {
	black := solid(400, 100, color.NRGBA{A: 255})

	n := NewNormalizer(domain.DefaultPreprocessPolicy(), nil, logger.NewNopLogger())
	tensor, err := n.Normalize(context.Background(), domain.NewRawImage("wide.png", "", encodePNG(t, black)))
	require.NoError(t, err)

	assert.InDelta(t, -channelMean[0]/channelStd[0], tensor[0], 1e-3)
}

func TestNormalize_JPEG(t *testing.T) {
	n := NewNormalizer(domain.DefaultPreprocessPolicy(), nil, logger.NewNopLogger())
	tensor, err := n.Normalize(context.Background(), domain.NewRawImage("a.jpg", "image/jpeg", encodeJPEG(t, solid(320, 240, color.NRGBA{R: 255, G: 255, B: 255, A: 255}))))
	require.NoError(t, err)
	assert.InDelta(t, normalizedWhite(1), tensor[domain.TensorSide*domain.TensorSide], 2e-2)
}

func TestNormalize_Deterministic(t *testing.T) {
	data := encodePNG(t, solid(123, 77, color.NRGBA{R: 12, G: 34, B: 56, A: 128}))
	n := NewNormalizer(domain.DefaultPreprocessPolicy(), nil, logger.NewNopLogger())

	first, err := n.Normalize(context.Background(), domain.NewRawImage("x.png", "", data))
	require.NoError(t, err)
	second, err := n.Normalize(context.Background(), domain.NewRawImage("x.png", "", data))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalize_Failures(t *testing.T) {
	n := NewNormalizer(domain.DefaultPreprocessPolicy(), nil, logger.NewNopLogger())

	heic := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
	heic = append(heic, make([]byte, 16)...)

	tests := []struct {
		name string
		raw  *domain.RawImage
		err  error
	}{
		{"empty", domain.NewRawImage("empty.png", "image/png", nil), e.ErrEmptyImage},
		{"garbage", domain.NewRawImage("notes.txt", "text/plain", []byte("definitely not an image")), e.ErrUnsupportedFormat},
		{"broken heic", domain.NewRawImage("IMG_1.bin", "", heic), e.ErrUndecodableImage},
		{"declared heic with foreign content", domain.NewRawImage("IMG_2.heic", "image/heic", []byte{1, 2, 3}), e.ErrUnsupportedFormat},
		{"truncated png", domain.NewRawImage("cut.png", "image/png", encodePNG(t, solid(20, 20, color.White))[:40]), e.ErrUndecodableImage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := n.Normalize(context.Background(), tc.raw)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

type fakeIsolator struct {
	out []byte
	err error
	n   int
}

func (f *fakeIsolator) RemoveBackground(_ context.Context, _ []byte) ([]byte, error) {
	f.n++
	return f.out, f.err
}

func TestNormalize_BackgroundRemoval(t *testing.T) {
	original := encodePNG(t, solid(64, 64, color.NRGBA{A: 255}))
	cutout := encodePNG(t, solid(64, 64, color.NRGBA{A: 0}))

	iso := &fakeIsolator{out: cutout}
	n := NewNormalizer(domain.DefaultPreprocessPolicy(), iso, logger.NewNopLogger())

	tensor, err := n.Normalize(context.Background(), domain.NewRawImage("p.png", "image/png", original))
	require.NoError(t, err)
	assert.Equal(t, 1, iso.n)
	assert.InDelta(t, normalizedWhite(0), tensor[0], 1e-5)
}

func TestNormalize_BackgroundRemovalFallsBack(t *testing.T) {
	original := encodePNG(t, solid(64, 64, color.NRGBA{A: 255}))

	for _, iso := range []*fakeIsolator{
		{err: errors.New("segmenter down")},
		{out: []byte("not a png")},
	} {
		n := NewNormalizer(domain.DefaultPreprocessPolicy(), iso, logger.NewNopLogger())

		tensor, err := n.Normalize(context.Background(), domain.NewRawImage("p.png", "image/png", original))
		require.NoError(t, err)
		assert.InDelta(t, -channelMean[0]/channelStd[0], tensor[0], 1e-3)
	}
}
