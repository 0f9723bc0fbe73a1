// Package vecmath содержит операции над векторами признаков.
package vecmath

import (
	"errors"
	"fmt"
)

var (
	ErrNoVectors         = errors.New("vecmath: at least one vector is required")
	ErrDimensionMismatch = errors.New("vecmath: vectors have different dimensions")
	ErrEmptyVector       = errors.New("vecmath: vector is empty")
)

// Mean возвращает поэлементное среднее арифметическое векторов.
// Накопление идёт во float64, порядок входных векторов на результат не влияет
// (с точностью до округления float32).
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, ErrNoVectors
	}

	dims := len(vectors[0])
	if dims == 0 {
		return nil, ErrEmptyVector
	}

	sums := make([]float64, dims)
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: vector %d has %d, expected %d", ErrDimensionMismatch, i, len(v), dims)
		}
		for d, x := range v {
			sums[d] += float64(x)
		}
	}

	n := float64(len(vectors))
	mean := make([]float32, dims)
	for d, s := range sums {
		mean[d] = float32(s / n)
	}

	return mean, nil
}

// SquaredEuclidean возвращает квадрат евклидова расстояния между векторами одинаковой длины.
func SquaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// ToFloat64 копирует float32-вектор в float64 без потери точности.
func ToFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
