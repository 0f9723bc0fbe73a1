package domain

import (
	"fmt"
	"time"
)

// Cluster — кластер продуктов в рамках одной версии кластеризации. После создания не изменяется.
type Cluster struct {
	ID        int64
	Name      string
	Version   int
	Centroid  []float64
	CreatedAt time.Time
}

// ClusterName возвращает отображаемое имя кластера с индексом index (от нуля).
func ClusterName(index int, version int) string {
	return fmt.Sprintf("Cluster %d (v%d)", index+1, version)
}

func NewCluster(index int, version int, centroid []float64) *Cluster {
	return &Cluster{
		Name:     ClusterName(index, version),
		Version:  version,
		Centroid: centroid,
	}
}

// ClusterMembership связывает продукт с кластером
type ClusterMembership struct {
	ClusterID int64
	ProductID int64
}

// ClusterAssignment — результат кластеризации до записи в хранилище.
// Labels[i] — индекс центроида для ProductIDs[i].
type ClusterAssignment struct {
	ProductIDs []int64
	Labels     []int
	Centroids  [][]float64
}

// ClusterRun — сохранённая версия кластеризации
type ClusterRun struct {
	Version    int
	Clusters   []*Cluster
	Members    int
	PrunedUpTo int // 0, если старые версии не удалялись
}

// ClusterVersionCreated — событие о новой версии кластеризации
type ClusterVersionCreated struct {
	Version   int       `json:"version"`
	K         int       `json:"k"`
	Products  int       `json:"products"`
	Policy    string    `json:"preprocess_policy"`
	CreatedAt time.Time `json:"created_at"`
}
