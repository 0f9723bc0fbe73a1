package ml_service

import (
	"errors"

	"github.com/DRSN-tech/product-vision/internal/usecase"
)

type usecaseExtractor = usecase.FeatureExtractor

// errorsUnwrapAll снимает обёртки e.Wrap, чтобы status.Code увидел исходную gRPC-ошибку.
func errorsUnwrapAll(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
