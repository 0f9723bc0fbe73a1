package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Внутренние ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
	ErrMissingDBConfig      = fmt.Errorf("database connection string is not configured")

	// Ошибки изображений (пропуск одного изображения, не всего запроса)
	ErrUndecodableImage    = fmt.Errorf("image cannot be decoded")
	ErrUnsupportedFormat   = fmt.Errorf("unsupported image format")
	ErrUnexpectedChannels  = fmt.Errorf("unexpected channel layout")
	ErrFileTooLarge        = fmt.Errorf("file too large")
	ErrTooManyPixels       = fmt.Errorf("image dimensions too large")
	ErrEmptyImage          = fmt.Errorf("image is empty")
	ErrBackgroundRemoval   = fmt.Errorf("background removal failed")
	ErrImageSourceNotFound = fmt.Errorf("image source not found")

	// Ошибки инференса (500)
	ErrInference          = fmt.Errorf("feature extraction failed")
	ErrBatchShapeMismatch = fmt.Errorf("batch shape mismatch")
	ErrExtractorNotReady  = fmt.Errorf("feature extractor is not loaded")

	// 400 Bad Request
	ErrStatusBadRequest      = fmt.Errorf("bad request")
	ErrExpectedMultipart     = fmt.Errorf("expected multipart/form-data")
	ErrNoImages              = fmt.Errorf("no images provided")
	ErrTooManyImages         = fmt.Errorf("too many images")
	ErrNoValidImages         = fmt.Errorf("no valid images processed")
	ErrNoFeatures            = fmt.Errorf("no features provided")
	ErrInvalidK              = fmt.Errorf("k must be a positive integer")
	ErrDimensionMismatch     = fmt.Errorf("feature vectors have different dimensions")
	ErrInvalidJSON           = fmt.Errorf("invalid JSON body")
	ErrInvalidProductID      = fmt.Errorf("product id must be positive")
	ErrUnsupportedMediaType  = fmt.Errorf("unsupported media type")
	ErrRequestEntityTooLarge = fmt.Errorf("request entity too large")

	// 404 Not Found
	ErrNoClusters = fmt.Errorf("no clusters available")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
