package converter

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/DRSN-tech/product-vision/internal/domain"
)

// EmbeddingConverter переводит вектор в компактное бинарное представление для Redis:
// uint32 размерность, затем компоненты float32 в little-endian.
type EmbeddingConverter interface {
	ToRedisModel(embedding domain.Embedding) []byte
	ToEntity(data []byte) (domain.Embedding, error)
}

type EmbeddingConverterImpl struct{}

func NewEmbeddingConverterImpl() *EmbeddingConverterImpl {
	return &EmbeddingConverterImpl{}
}

func (c *EmbeddingConverterImpl) ToRedisModel(embedding domain.Embedding) []byte {
	buf := make([]byte, 4+4*len(embedding))
	binary.LittleEndian.PutUint32(buf, uint32(len(embedding)))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[4+4*i:], math.Float32bits(v))
	}

	return buf
}

func (c *EmbeddingConverterImpl) ToEntity(data []byte) (domain.Embedding, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("cached embedding too short: %d bytes", len(data))
	}

	dim := int(binary.LittleEndian.Uint32(data))
	if len(data) != 4+4*dim {
		return nil, fmt.Errorf("cached embedding has %d bytes, want %d", len(data), 4+4*dim)
	}

	embedding := make(domain.Embedding, dim)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4+4*i:]))
	}

	return embedding, nil
}
