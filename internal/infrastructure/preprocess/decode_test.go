package preprocess

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image/color"
	"testing"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/infrastructure/inference"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader возвращает начало PNG с корректным IHDR: заголовка достаточно для DecodeConfig.
func pngHeader(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // глубина
	ihdr[9] = 0 // grayscale

	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))

	return buf.Bytes()
}

func TestDecode_RejectsHugeDimensionsBeforeDecoding(t *testing.T) {
	data := pngHeader(12000, 12000)

	_, format, err := decode(data, "image/png", DefaultMaxPixels)
	require.ErrorIs(t, err, e.ErrTooManyPixels)
	assert.Equal(t, "png", format)
	assert.Equal(t, e.ErrTooManyPixels.Error(), inference.SkipReason(err))
}

func TestNormalize_PixelLimit(t *testing.T) {
	small := encodePNG(t, solid(20, 20, color.White))

	limited := NewNormalizer(domain.DefaultPreprocessPolicy(), nil, logger.NewNopLogger(), WithMaxPixels(399))
	_, err := limited.Normalize(context.Background(), domain.NewRawImage("a.png", "image/png", small))
	assert.ErrorIs(t, err, e.ErrTooManyPixels)

	exact := NewNormalizer(domain.DefaultPreprocessPolicy(), nil, logger.NewNopLogger(), WithMaxPixels(400))
	_, err = exact.Normalize(context.Background(), domain.NewRawImage("a.png", "image/png", small))
	assert.NoError(t, err)

	huge := NewNormalizer(domain.DefaultPreprocessPolicy(), nil, logger.NewNopLogger())
	_, err = huge.Normalize(context.Background(), domain.NewRawImage("big.png", "image/png", pngHeader(12000, 12000)))
	assert.ErrorIs(t, err, e.ErrTooManyPixels)
}

func TestNormalize_SegmenterOutputIsLimited(t *testing.T) {
	original := encodePNG(t, solid(16, 16, color.NRGBA{A: 255}))
	iso := &fakeIsolator{out: pngHeader(12000, 12000)}
	n := NewNormalizer(domain.DefaultPreprocessPolicy(), iso, logger.NewNopLogger())

	tensor, err := n.Normalize(context.Background(), domain.NewRawImage("p.png", "image/png", original))
	require.NoError(t, err)
	assert.Equal(t, 1, iso.n)
	assert.InDelta(t, -channelMean[0]/channelStd[0], tensor[0], 1e-3)
}

func TestDecode_HEICIsRoutedToDecoder(t *testing.T) {
	for _, brand := range heifBrands {
		t.Run(brand, func(t *testing.T) {
			data := append([]byte{0, 0, 0, 24}, []byte("ftyp"+brand)...)
			data = append(data, make([]byte, 16)...)

			_, format, err := decode(data, "image/heic", DefaultMaxPixels)
			assert.Equal(t, "heic", format)
			assert.ErrorIs(t, err, e.ErrUndecodableImage)
			assert.NotErrorIs(t, err, e.ErrUnsupportedFormat)
		})
	}
}
