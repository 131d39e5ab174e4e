package storage

import (
	"fmt"
	"path"
	"strings"
)

// Content types of the files the service stores.
const (
	ContentTypeZip  = "application/zip"
	ContentTypeCSV  = "text/csv"
	ContentTypeText = "text/plain"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AllowedContentTypes defines the allowed MIME types for uploads.
var AllowedContentTypes = map[string]bool{
	// Survey extracts
	ContentTypeZip:                 true,
	"application/x-zip-compressed": true,
	"application/octet-stream":     true,
	ContentTypeText:                true,

	// Basket tables
	ContentTypeCSV:  true,
	ContentTypeXLSX: true,
}

// ValidateContentType checks if the content type is allowed.
func (s *MinIOService) ValidateContentType(contentType string) error {
	return validateContentType(contentType)
}

func validateContentType(contentType string) error {
	// Normalize content type (remove parameters like charset)
	normalized := strings.Split(contentType, ";")[0]
	normalized = strings.TrimSpace(strings.ToLower(normalized))

	if !AllowedContentTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func (s *MinIOService) ValidateFileSize(sizeBytes int64) error {
	return validateFileSize(sizeBytes, s.maxFileSize)
}

func validateFileSize(sizeBytes, maxFileSize int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if sizeBytes > maxFileSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, maxFileSize)
	}
	return nil
}

// ContentTypeFor guesses the content type of a stored file from its extension.
func ContentTypeFor(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".zip":
		return ContentTypeZip
	case ".csv":
		return ContentTypeCSV
	case ".txt":
		return ContentTypeText
	case ".xlsx":
		return ContentTypeXLSX
	default:
		return "application/octet-stream"
	}
}

// IsArchive reports whether a file name looks like a zipped extract.
func IsArchive(fileName string) bool {
	return strings.EqualFold(path.Ext(fileName), ".zip")
}
