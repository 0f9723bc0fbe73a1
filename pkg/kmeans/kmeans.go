// Package kmeans реализует детерминированную кластеризацию k-means.
//
// Инициализация центроидов — k-means++ от генератора с фиксированным seed,
// несколько перезапусков, из которых выбирается разбиение с минимальной
// инерцией (суммой квадратов расстояний до центроидов).
//
// Одинаковые данные, K и Options всегда дают одинаковые метки и центроиды.
package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/DRSN-tech/product-vision/pkg/vecmath"
)

var (
	ErrNoData            = errors.New("kmeans: no data points")
	ErrInvalidK          = errors.New("kmeans: k must be positive")
	ErrDimensionMismatch = errors.New("kmeans: data points have different dimensions")
	ErrEmptyPoint        = errors.New("kmeans: data points must not be empty")
)

const (
	DefaultSeed          = 42
	DefaultRestarts      = 10
	DefaultMaxIterations = 300
	DefaultTolerance     = 1e-4
)

// Options управляет процедурой обучения.
type Options struct {
	// Seed инициализирует генератор для k-means++.
	Seed int64
	// Restarts — количество независимых инициализаций (n_init).
	Restarts int
	// MaxIterations ограничивает число итераций Ллойда в одном перезапуске.
	MaxIterations int
	// Tolerance — порог сходимости относительно средней дисперсии признаков.
	Tolerance float64
}

// DefaultOptions возвращает параметры по умолчанию.
func DefaultOptions() Options {
	return Options{
		Seed:          DefaultSeed,
		Restarts:      DefaultRestarts,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

// Result — результат кластеризации.
type Result struct {
	// Labels[i] — номер кластера для data[i], в диапазоне [0, K).
	Labels []int
	// Centroids содержит K центроидов той же размерности, что и входные данные.
	Centroids [][]float64
	// Inertia — сумма квадратов расстояний точек до их центроидов.
	Inertia float64
	// K — фактическое число кластеров после ограничения по числу точек.
	K int
	// Iterations — число итераций Ллойда у выбранного перезапуска.
	Iterations int
}

// EffectiveK возвращает число кластеров, которое реально будет использовано для n точек.
func EffectiveK(n, k int) int {
	if n < k {
		return max(1, n)
	}
	return k
}

// Fit разбивает data на k кластеров. Если точек меньше, чем k, k молча уменьшается до max(1, len(data)).
func Fit(data [][]float64, k int, opts Options) (*Result, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(data) == 0 {
		return nil, ErrNoData
	}

	dims := len(data[0])
	if dims == 0 {
		return nil, ErrEmptyPoint
	}
	for i, p := range data {
		if len(p) != dims {
			return nil, fmt.Errorf("%w: point %d has %d, expected %d", ErrDimensionMismatch, i, len(p), dims)
		}
	}

	opts = normalizeOptions(opts)
	k = EffectiveK(len(data), k)
	tol := opts.Tolerance * meanVariance(data)
	rng := rand.New(rand.NewSource(opts.Seed))

	var best *Result
	for run := 0; run < opts.Restarts; run++ {
		centroids := initCentroidsKMeansPlusPlus(data, k, rng)
		res := lloyd(data, centroids, opts.MaxIterations, tol)

		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}

	best.K = k
	return best, nil
}

// Nearest возвращает индекс ближайшего центроида и квадрат расстояния до него.
// Возвращает -1, если centroids пуст или размерности не совпадают ни с одним центроидом.
func Nearest(point []float64, centroids [][]float64) (int, float64) {
	bestIdx := -1
	bestDist := math.Inf(1)
	for i, c := range centroids {
		if len(c) != len(point) {
			continue
		}
		if d := vecmath.SquaredEuclidean(point, c); d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return bestIdx, bestDist
}

func normalizeOptions(opts Options) Options {
	if opts.Restarts <= 0 {
		opts.Restarts = DefaultRestarts
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Tolerance < 0 {
		opts.Tolerance = 0
	}
	return opts
}

// lloyd выполняет итерации Ллойда от заданных центроидов до сходимости.
func lloyd(data [][]float64, centroids [][]float64, maxIter int, tol float64) *Result {
	n := len(data)
	labels := make([]int, n)
	distances := make([]float64, n)

	iterations := 0
	for iter := 0; iter < maxIter; iter++ {
		iterations++
		assign(data, centroids, labels, distances)

		updated := updateCentroids(data, labels, distances, len(centroids))
		shift := 0.0
		for j := range centroids {
			shift += vecmath.SquaredEuclidean(centroids[j], updated[j])
		}
		centroids = updated

		if shift <= tol {
			break
		}
	}

	// Финальное назначение, чтобы метки соответствовали итоговым центроидам.
	inertia := assign(data, centroids, labels, distances)

	return &Result{
		Labels:     labels,
		Centroids:  centroids,
		Inertia:    inertia,
		Iterations: iterations,
	}
}

// assign назначает каждой точке ближайший центроид и возвращает инерцию.
// При равенстве расстояний выбирается центроид с меньшим индексом.
func assign(data [][]float64, centroids [][]float64, labels []int, distances []float64) float64 {
	inertia := 0.0
	for i, p := range data {
		best := 0
		bestDist := vecmath.SquaredEuclidean(p, centroids[0])
		for j := 1; j < len(centroids); j++ {
			if d := vecmath.SquaredEuclidean(p, centroids[j]); d < bestDist {
				best = j
				bestDist = d
			}
		}
		labels[i] = best
		distances[i] = bestDist
		inertia += bestDist
	}
	return inertia
}

// updateCentroids пересчитывает центроиды как средние назначенных точек.
// Среднее накапливается инкрементно, поэтому большие конечные координаты не переполняют сумму.
// Пустой кластер получает точку, наиболее удалённую от своего центроида.
func updateCentroids(data [][]float64, labels []int, distances []float64, k int) [][]float64 {
	dims := len(data[0])
	means := make([][]float64, k)
	for j := range means {
		means[j] = make([]float64, dims)
	}
	counts := make([]int, k)

	for i, p := range data {
		c := labels[i]
		counts[c]++
		n := float64(counts[c])
		for d, x := range p {
			means[c][d] += x/n - means[c][d]/n
		}
	}

	taken := make(map[int]bool)
	for j := 0; j < k; j++ {
		if counts[j] > 0 {
			continue
		}

		far := farthestPoint(distances, taken)
		taken[far] = true
		copy(means[j], data[far])
	}

	return means
}

func farthestPoint(distances []float64, taken map[int]bool) int {
	idx := -1
	best := -1.0
	for i, d := range distances {
		if taken[i] {
			continue
		}
		if d > best {
			best = d
			idx = i
		}
	}
	if idx < 0 {
		return 0
	}
	return idx
}

// initCentroidsKMeansPlusPlus выбирает начальные центроиды с вероятностью,
// пропорциональной квадрату расстояния до ближайшего уже выбранного.
func initCentroidsKMeansPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	centroids := make([][]float64, 0, k)

	first := rng.Intn(n)
	centroids = append(centroids, clone(data[first]))

	minDistances := make([]float64, n)
	for i, p := range data {
		minDistances[i] = vecmath.SquaredEuclidean(p, centroids[0])
	}

	for c := 1; c < k; c++ {
		total := 0.0
		for _, d := range minDistances {
			total += d
		}

		var selected int
		if total == 0 {
			// Все точки совпадают с уже выбранными центроидами.
			selected = rng.Intn(n)
		} else {
			target := rng.Float64() * total
			cum := 0.0
			selected = n - 1
			for i, d := range minDistances {
				cum += d
				if d > 0 && cum >= target {
					selected = i
					break
				}
			}
		}

		centroid := clone(data[selected])
		centroids = append(centroids, centroid)

		for i, p := range data {
			if d := vecmath.SquaredEuclidean(p, centroid); d < minDistances[i] {
				minDistances[i] = d
			}
		}
	}

	return centroids
}

// meanVariance возвращает среднюю по признакам дисперсию данных.
func meanVariance(data [][]float64) float64 {
	n := float64(len(data))
	dims := len(data[0])

	total := 0.0
	for d := 0; d < dims; d++ {
		mean := 0.0
		for _, p := range data {
			mean += p[d]
		}
		mean /= n

		variance := 0.0
		for _, p := range data {
			diff := p[d] - mean
			variance += diff * diff
		}
		total += variance / n
	}

	return total / float64(dims)
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
