package http

import (
	"net/http"

	"github.com/DRSN-tech/product-vision/internal/cfg"
	"github.com/DRSN-tech/product-vision/internal/usecase"
	"github.com/DRSN-tech/product-vision/pkg/logger"
)

type ClusterHandler struct {
	embeddingUC usecase.EmbeddingUC
	classifyUC  usecase.ClassifyUC // nil, если база не настроена
	cfg         *cfg.HTTPConfig
	logger      logger.Logger
}

func NewClusterHandler(embeddingUC usecase.EmbeddingUC, classifyUC usecase.ClassifyUC, cfg *cfg.HTTPConfig, logger logger.Logger) *ClusterHandler {
	return &ClusterHandler{embeddingUC: embeddingUC, classifyUC: classifyUC, cfg: cfg, logger: logger}
}

// clusterFeatures
//
//	@Summary		Кластеризация векторов
//	@Description	Разбивает переданные векторы на k кластеров методом k-means. Если векторов меньше k, число кластеров уменьшается
//	@Tags			clusters
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ClusterRequest	true	"Векторы и число кластеров"
//	@Success		200		{object}	ClusterResponse	"Метки и центроиды"
//	@Failure		400		{object}	ErrorResponse	"Пустой список, k <= 0 или разная размерность"
//	@Router			/clusters [post]
func (h *ClusterHandler) clusterFeatures(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestSize)

	var req ClusterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Warnf("%v", err)
		WriteError(w, err)
		return
	}

	res, err := h.embeddingUC.ClusterFeatures(r.Context(), usecase.NewClusterFeaturesReq(req.Features, req.K))
	if err != nil {
		logUseCaseError(h.logger, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toClusterResponse(res))
}

// classify
//
//	@Summary		Классификация продукта
//	@Description	Относит фотографии продукта к ближайшему кластеру последней сохранённой версии
//	@Tags			clusters
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			files	formData	file				true	"Фотографии продукта"
//	@Success		200		{object}	ClassifyResponse	"Ближайший кластер"
//	@Failure		400		{object}	ErrorResponse		"Нет изображений или ни одно не удалось обработать"
//	@Failure		404		{object}	ErrorResponse		"Кластеризация ещё не выполнялась"
//	@Router			/clusters/classify [post]
func (h *ClusterHandler) classify(w http.ResponseWriter, r *http.Request) {
	images, dropped, ok := readUploadedImages(w, r, h.cfg, h.logger)
	if !ok {
		return
	}

	res, err := h.classifyUC.Classify(r.Context(), usecase.NewExtractEmbeddingReq(images))
	if err != nil {
		logUseCaseError(h.logger, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toClassifyResponse(res, dropped))
}
