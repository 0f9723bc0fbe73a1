package infrastructure

import (
	"path/filepath"
	"strings"

	"github.com/DRSN-tech/product-vision/pkg/e"
)

// FormatFromMIME возвращает название формата по MIME-типу изображения.
// Для неизвестных типов возвращает e.ErrUnsupportedMediaType.
func FormatFromMIME(mime string) (string, error) {
	mime, _, _ = strings.Cut(strings.ToLower(strings.TrimSpace(mime)), ";")
	switch mime {
	case "image/jpeg", "image/jpg":
		return "jpeg", nil
	case "image/png":
		return "png", nil
	case "image/gif":
		return "gif", nil
	case "image/webp":
		return "webp", nil
	case "image/bmp", "image/x-ms-bmp":
		return "bmp", nil
	case "image/tiff":
		return "tiff", nil
	case "image/heic", "image/heif":
		return "heic", nil
	default:
		return "", e.ErrUnsupportedMediaType
	}
}

// MIMEFromPath угадывает MIME-тип по расширению файла или ключа объекта.
// Возвращает пустую строку для неизвестных расширений: формат определится по содержимому.
func MIMEFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return ""
	}
}
