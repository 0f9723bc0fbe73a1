package domain

// QdrantPoint описывает запись вектора продукта в Qdrant
type QdrantPoint struct {
	ID       uint64
	Vectors  []float32
	Payloads map[string]any
}

// NewProductPoint строит точку, идентификатор которой совпадает с идентификатором продукта,
// поэтому повторная запись перезаписывает предыдущий вектор.
func NewProductPoint(productID int64, vector Embedding, payload Payload) *QdrantPoint {
	return &QdrantPoint{
		ID:       uint64(productID),
		Vectors:  vector,
		Payloads: payload,
	}
}
