package domain

import "time"

// DefaultEmbeddingDim — размерность вектора признаков экстрактора по умолчанию.
const DefaultEmbeddingDim = 2048

// Embedding — вектор признаков одного изображения или агрегированный вектор продукта.
type Embedding []float32

// Payload описывает дополнительную информацию вектора в векторном хранилище.
type Payload map[string]any

func NewPayload(productID int64, imagesProcessed int, policy string, model string) Payload {
	return Payload{
		"product_id":        productID,
		"images_processed":  imagesProcessed,
		"preprocess_policy": policy,
		"model":             model,
		"created_at":        time.Now().UTC().UnixNano(),
	}
}
