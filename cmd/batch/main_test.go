package main

import (
	"errors"
	"testing"

	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func TestClusterError(t *testing.T) {
	log := logger.NewNopLogger()

	assert.NoError(t, clusterError(e.Wrap("ClusterUseCase.RunClustering", e.ErrNoFeatures), log))

	assert.ErrorIs(t, clusterError(e.Wrap("ClusterUseCase.RunClustering", e.ErrInvalidK), log), e.ErrInvalidK)

	boom := errors.New("connection reset")
	assert.ErrorIs(t, clusterError(boom, log), boom)
}
