package middleware

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Input validation and sanitization utilities

// MaxUploadBytes caps one multipart upload request.
const MaxUploadBytes = 32 << 20

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ValidateImageFile checks the upload file name against the accepted formats.
func ValidateImageFile(fileName string) error {
	if fileName == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedImageExts[ext] {
		return fmt.Errorf("unsupported image type %q (allowed: jpg, jpeg, png)", ext)
	}
	return nil
}

// SanitizeString removes null bytes and control characters from form input.
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidatePhone applies a loose format check; the store keeps the value as
// entered.
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil // required-ness is enforced at save time
	}
	for _, r := range phone {
		if (r < '0' || r > '9') && r != '+' && r != ' ' && r != '-' {
			return fmt.Errorf("invalid character in phone number")
		}
	}
	return nil
}

// ValidateNationalID accepts the DNI (8 digits) and RUC (11 digits) formats
// plus free-form values for foreign documents.
func ValidateNationalID(id string) error {
	if len(id) > 32 {
		return fmt.Errorf("document number too long")
	}
	return nil
}
