package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/jimlawless/whereami"
)

// multipartMaxMemory — часть формы, которая держится в памяти, остальное уходит во временные файлы.
const multipartMaxMemory = 32 << 20

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// clientErrors — ошибки, которые отдаются клиенту как есть.
var clientErrors = []struct {
	err  error
	code int
}{
	{e.ErrRequestEntityTooLarge, http.StatusRequestEntityTooLarge},
	{e.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType},
	{e.ErrNoClusters, http.StatusNotFound},
	{e.ErrExpectedMultipart, http.StatusBadRequest},
	{e.ErrNoImages, http.StatusBadRequest},
	{e.ErrTooManyImages, http.StatusBadRequest},
	{e.ErrNoValidImages, http.StatusBadRequest},
	{e.ErrNoFeatures, http.StatusBadRequest},
	{e.ErrInvalidK, http.StatusBadRequest},
	{e.ErrDimensionMismatch, http.StatusBadRequest},
	{e.ErrInvalidJSON, http.StatusBadRequest},
	{e.ErrInvalidProductID, http.StatusBadRequest},
	{e.ErrStatusBadRequest, http.StatusBadRequest},
}

// ToHTTPResponse возвращает статус и сообщение для клиента. Детали внутренних ошибок не раскрываются.
func ToHTTPResponse(err error) (int, string) {
	for _, ce := range clientErrors {
		if errors.Is(err, ce.err) {
			return ce.code, ce.err.Error()
		}
	}

	return http.StatusInternalServerError, e.ErrInternalServerError.Error()
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

// WriteSuccess кодирует ответ до отправки заголовка: если данные не сериализуются
// (например, NaN или Inf), клиент получает 500, а не пустой 200.
func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		WriteError(w, fmt.Errorf("encode response: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func ensureMultipartForm(r *http.Request) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}

	if err := r.ParseMultipartForm(multipartMaxMemory); err != nil {
		return bodyError(err)
	}

	return nil
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if tooLarge := bodyError(err); errors.Is(tooLarge, e.ErrRequestEntityTooLarge) {
			return tooLarge
		}
		return e.Wrap(err.Error(), e.ErrInvalidJSON)
	}

	return nil
}

// bodyError отличает превышение MaxBytesReader от испорченного тела запроса.
func bodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return e.Wrap(whereami.WhereAmI(), e.ErrRequestEntityTooLarge)
	}

	return e.Wrap(err.Error(), e.ErrStatusBadRequest)
}

// parseImages читает файлы формы. Файлы больше maxFileSize не читаются и попадают в skipped.
func parseImages(files []*multipart.FileHeader, maxCount int, maxFileSize int64) ([]*domain.RawImage, []domain.SkippedImage, error) {
	if len(files) == 0 {
		return nil, nil, e.ErrNoImages
	}
	if len(files) > maxCount {
		return nil, nil, e.ErrTooManyImages
	}

	images := make([]*domain.RawImage, 0, len(files))
	var skipped []domain.SkippedImage
	for _, fh := range files {
		if fh.Size > maxFileSize {
			skipped = append(skipped, domain.SkippedImage{Name: fh.Filename, Reason: e.ErrFileTooLarge.Error()})
			continue
		}

		data, err := readFile(fh, maxFileSize)
		if err != nil {
			if errors.Is(err, e.ErrFileTooLarge) {
				skipped = append(skipped, domain.SkippedImage{Name: fh.Filename, Reason: e.ErrFileTooLarge.Error()})
				continue
			}
			return nil, nil, err
		}

		images = append(images, domain.NewRawImage(fh.Filename, detectMIME(fh, data), data))
	}

	return images, skipped, nil
}

func readFile(fh *multipart.FileHeader, maxSize int64) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if int64(len(data)) > maxSize {
		return nil, e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	return data, nil
}

// detectMIME предпочитает заявленный клиентом тип изображения, иначе определяет по содержимому.
func detectMIME(fh *multipart.FileHeader, data []byte) string {
	if declared := fh.Header.Get("Content-Type"); strings.HasPrefix(declared, "image/") {
		return declared
	}

	return http.DetectContentType(data[:min(len(data), 512)])
}
