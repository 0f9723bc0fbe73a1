package http

import (
	"net/http"

	"github.com/DRSN-tech/product-vision/internal/cfg"
	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/usecase"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
)

const imagesField = "files"

type EmbeddingHandler struct {
	embeddingUC usecase.EmbeddingUC
	cfg         *cfg.HTTPConfig
	logger      logger.Logger
}

func NewEmbeddingHandler(embeddingUC usecase.EmbeddingUC, cfg *cfg.HTTPConfig, logger logger.Logger) *EmbeddingHandler {
	return &EmbeddingHandler{embeddingUC: embeddingUC, cfg: cfg, logger: logger}
}

// extractEmbedding
//
//	@Summary		Вектор признаков продукта
//	@Description	Возвращает средний вектор признаков по всем успешно обработанным фотографиям
//	@Tags			embeddings
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			files	formData	file				true	"Фотографии продукта"
//	@Success		200		{object}	EmbeddingResponse	"Агрегированный вектор"
//	@Failure		400		{object}	ErrorResponse		"Нет изображений или ни одно не удалось обработать"
//	@Failure		413		{object}	ErrorResponse		"Слишком большой запрос"
//	@Failure		500		{object}	ErrorResponse		"Ошибка инференса"
//	@Router			/embeddings [post]
func (h *EmbeddingHandler) extractEmbedding(w http.ResponseWriter, r *http.Request) {
	images, dropped, ok := readUploadedImages(w, r, h.cfg, h.logger)
	if !ok {
		return
	}

	res, err := h.embeddingUC.ExtractEmbedding(r.Context(), usecase.NewExtractEmbeddingReq(images))
	if err != nil {
		logUseCaseError(h.logger, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toEmbeddingResponse(res, dropped))
}

// readUploadedImages разбирает multipart-запрос и пишет ответ об ошибке сам. ok=false — ответ уже отправлен.
func readUploadedImages(w http.ResponseWriter, r *http.Request, cfg *cfg.HTTPConfig, log logger.Logger) ([]*domain.RawImage, []domain.SkippedImage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxRequestSize)

	if err := ensureMultipartForm(r); err != nil {
		log.Warnf("%d %s: %v", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err)
		WriteError(w, err)
		return nil, nil, false
	}

	images, dropped, err := parseImages(r.MultipartForm.File[imagesField], cfg.MaxImagesPerRequest, cfg.MaxImageSize)
	if err != nil {
		log.Warnf("%d %s: %v", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err)
		WriteError(w, err)
		return nil, nil, false
	}

	for _, d := range dropped {
		log.Warnf("image %q dropped: %s", d.Name, d.Reason)
	}

	if len(images) == 0 {
		WriteError(w, e.ErrNoValidImages)
		return nil, nil, false
	}

	return images, dropped, true
}

func logUseCaseError(log logger.Logger, err error) {
	if code, _ := ToHTTPResponse(err); code >= http.StatusInternalServerError {
		log.Errorf(err, "request failed")
		return
	}
	log.Warnf("%v", err)
}
