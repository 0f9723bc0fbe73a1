package ml_service

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/e"
)

const float32Size = 4

// encodeBatch упаковывает тензоры подряд в little-endian float32: форма (N, 3, 224, 224).
func encodeBatch(batch []domain.Tensor) ([]byte, error) {
	buf := make([]byte, 0, len(batch)*domain.TensorLen*float32Size)
	for i, t := range batch {
		if len(t) != domain.TensorLen {
			return nil, fmt.Errorf("%w: tensor %d has %d values, expected %d", e.ErrBatchShapeMismatch, i, len(t), domain.TensorLen)
		}
		for _, v := range t {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	return buf, nil
}

// decodeEmbeddings разбирает ответ формы (n, dim).
func decodeEmbeddings(data []byte, n, dim int) ([]domain.Embedding, error) {
	if want := n * dim * float32Size; len(data) != want {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d for %dx%d", e.ErrBatchShapeMismatch, len(data), want, n, dim)
	}

	out := make([]domain.Embedding, n)
	for i := range out {
		vec := make(domain.Embedding, dim)
		offset := i * dim * float32Size
		for d := range vec {
			vec[d] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset+d*float32Size:]))
		}
		out[i] = vec
	}
	return out, nil
}
