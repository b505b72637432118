package util

import (
	"bytes"
	"net/http"
)

// SniffImageMIME detects the image type from the first bytes of an upload.
// Formats Tesseract reads but net/http does not know are checked first.
func SniffImageMIME(b []byte) string {
	switch {
	case len(b) >= 4 && (bytes.Equal(b[:4], []byte("II*\x00")) || bytes.Equal(b[:4], []byte("MM\x00*"))):
		return "image/tiff"
	case len(b) >= 2 && b[0] == 'P' && b[1] >= '1' && b[1] <= '6':
		return "image/x-portable-anymap"
	}
	return http.DetectContentType(b)
}

// ImageExt maps the sniffed type to a file extension, empty when unknown.
func ImageExt(b []byte) string {
	switch SniffImageMIME(b) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/webp":
		return ".webp"
	case "image/tiff":
		return ".tif"
	case "image/x-portable-anymap":
		return ".pnm"
	default:
		return ""
	}
}
