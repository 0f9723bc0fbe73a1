package preprocess

import (
	"fmt"
	"image"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/e"
)

var (
	channelMean = [domain.TensorChannels]float32{0.485, 0.456, 0.406}
	channelStd  = [domain.TensorChannels]float32{0.229, 0.224, 0.225}
)

// toTensor переводит RGBA TensorSide×TensorSide в CHW float32 с нормализацией по каналам.
// Альфа-канал должен быть уже непрозрачным.
func toTensor(img *image.RGBA) (domain.Tensor, error) {
	b := img.Bounds()
	if b.Dx() != domain.TensorSide || b.Dy() != domain.TensorSide {
		return nil, fmt.Errorf("%w: got %dx%d", e.ErrUnexpectedChannels, b.Dx(), b.Dy())
	}

	const plane = domain.TensorSide * domain.TensorSide
	out := make(domain.Tensor, domain.TensorLen)

	for y := 0; y < domain.TensorSide; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+domain.TensorSide*4]
		for x := 0; x < domain.TensorSide; x++ {
			px := row[x*4 : x*4+4]
			i := y*domain.TensorSide + x
			for c := 0; c < domain.TensorChannels; c++ {
				out[c*plane+i] = (float32(px[c])/255 - channelMean[c]) / channelStd[c]
			}
		}
	}

	return out, nil
}
