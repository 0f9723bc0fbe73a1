package domain

import "time"

// ProductFeature — агрегированный вектор признаков продукта. Одна запись на продукт.
type ProductFeature struct {
	ID               int64
	ProductID        int64
	Vector           Embedding
	PreprocessPolicy string // пусто для записей, созданных до появления политики
	CreatedAt        time.Time
}

func NewProductFeature(productID int64, vector Embedding, policy string) *ProductFeature {
	return &ProductFeature{
		ProductID:        productID,
		Vector:           vector,
		PreprocessPolicy: policy,
	}
}

// Conforms сообщает, можно ли использовать вектор в кластеризации с текущими настройками.
func (f *ProductFeature) Conforms(dim int, policy string) bool {
	if len(f.Vector) != dim {
		return false
	}
	return f.PreprocessPolicy == "" || f.PreprocessPolicy == policy
}
