package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/DRSN-tech/product-vision/internal/infrastructure"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels совпадает с порогом защиты от decompression bomb в Pillow.
const DefaultMaxPixels int64 = 89_478_485

// heifBrands — major brand контейнера ISO BMFF, по которым распознаются HEIC/HEIF.
var heifBrands = []string{"heic", "heix", "hevc", "hevx", "heim", "heis", "mif1", "msf1"}

func init() {
	for _, brand := range heifBrands {
		image.RegisterFormat("heic", "????ftyp"+brand, heic.Decode, heic.DecodeConfig)
	}
}

// decode декодирует изображение по содержимому. Размеры проверяются по заголовку
// до декодирования: изображение больше maxPixels пикселей не декодируется.
func decode(data []byte, mime string, maxPixels int64) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", e.ErrEmptyImage
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, format, decodeError(err, mime)
	}
	if err := checkDimensions(cfg, maxPixels); err != nil {
		return nil, format, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, decodeError(err, mime)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, format, e.ErrEmptyImage
	}

	return img, format, nil
}

func checkDimensions(cfg image.Config, maxPixels int64) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return e.ErrEmptyImage
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", e.ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// decodeError различает неизвестный формат и повреждённые данные известного формата.
func decodeError(err error, mime string) error {
	if errors.Is(err, image.ErrFormat) {
		if declared, mimeErr := infrastructure.FormatFromMIME(mime); mimeErr == nil {
			return fmt.Errorf("%w: content does not match declared %s", e.ErrUnsupportedFormat, declared)
		}
		return e.ErrUnsupportedFormat
	}
	return fmt.Errorf("%w: %v", e.ErrUndecodableImage, err)
}
