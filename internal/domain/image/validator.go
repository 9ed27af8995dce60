package image

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"blog-image-server/internal/platform/logging"
)

// ValidatorLimits bounds what an upload may contain. Zero values disable a check.
type ValidatorLimits struct {
	MaxFileSize    int64
	MaxWidth       int
	MaxHeight      int
	AllowedFormats []string
}

// SecurityValidator checks uploaded bytes before they are stored.
type SecurityValidator struct {
	limits ValidatorLimits
	logger *logging.Logger
}

// NewSecurityValidator constructs a validator.
func NewSecurityValidator(limits ValidatorLimits, logger *logging.Logger) *SecurityValidator {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &SecurityValidator{
		limits: limits,
		logger: logger,
	}
}

var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"jpg":  {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46},
}

// suspicious prefixes: PE executables, PDF, zip, gzip
var rejectedPrefixes = [][]byte{
	{0x4D, 0x5A},
	{0x25, 0x50, 0x44, 0x46},
	{0x50, 0x4B, 0x03, 0x04},
	{0x1F, 0x8B, 0x08},
}

// ValidateBytes validates raw upload bytes. declaredFormat usually comes from
// the file extension and may be empty.
func (v *SecurityValidator) ValidateBytes(raw []byte, declaredFormat string) ValidationResult {
	result := ValidationResult{}
	declaredFormat = strings.ToLower(strings.TrimPrefix(declaredFormat, "."))

	if len(raw) == 0 {
		result.Error = fmt.Errorf("empty image payload")
		return result
	}

	if v.limits.MaxFileSize > 0 && int64(len(raw)) > v.limits.MaxFileSize {
		result.Error = fmt.Errorf("file size exceeds limit: %d bytes (max %d bytes)", len(raw), v.limits.MaxFileSize)
		result.SecurityRisk = "file too large"
		v.logger.WarnTag("UPLOAD", "oversized image: size=%d max_size=%d", len(raw), v.limits.MaxFileSize)
		return result
	}

	for _, prefix := range rejectedPrefixes {
		if bytes.HasPrefix(raw, prefix) {
			result.Error = fmt.Errorf("payload is not an image")
			result.SecurityRisk = "suspicious content"
			v.logger.WarnTag("UPLOAD", "rejected payload with signature %x", prefix)
			return result
		}
	}

	if declaredFormat != "" && !v.isFormatAllowed(declaredFormat) {
		result.Error = fmt.Errorf("unsupported format: %s", declaredFormat)
		result.SecurityRisk = "unapproved format"
		return result
	}

	cfg, actual, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		result.Error = fmt.Errorf("decode image config: %w", err)
		result.SecurityRisk = "corrupted image data"
		if declaredFormat != "" && !hasSignature(raw, declaredFormat) {
			v.logger.WarnTag("UPLOAD", "signature mismatch: declared=%s header=%x", declaredFormat, raw[:min(len(raw), 16)])
		}
		return result
	}
	result.Format = actual

	if !v.isFormatAllowed(actual) {
		result.Error = fmt.Errorf("unsupported format: %s", actual)
		result.SecurityRisk = "unapproved format"
		return result
	}

	if (v.limits.MaxWidth > 0 && cfg.Width > v.limits.MaxWidth) ||
		(v.limits.MaxHeight > 0 && cfg.Height > v.limits.MaxHeight) {
		result.Error = fmt.Errorf("dimensions exceed limit: %dx%d (max %dx%d)",
			cfg.Width, cfg.Height, v.limits.MaxWidth, v.limits.MaxHeight)
		result.SecurityRisk = "dimensions too large"
		return result
	}

	result.IsValid = true
	result.Width = cfg.Width
	result.Height = cfg.Height
	result.FileSize = int64(len(raw))
	v.logger.DebugTag("UPLOAD", "validated %s %dx%d (%d bytes)", result.Format, result.Width, result.Height, result.FileSize)
	return result
}

func (v *SecurityValidator) isFormatAllowed(format string) bool {
	if len(v.limits.AllowedFormats) == 0 || format == "" {
		return true
	}
	format = strings.ToLower(format)
	for _, allowed := range v.limits.AllowedFormats {
		a := strings.ToLower(allowed)
		if a == format || (a == "jpg" && format == "jpeg") || (a == "jpeg" && format == "jpg") {
			return true
		}
	}
	return false
}

func hasSignature(raw []byte, format string) bool {
	signature, ok := imageSignatures[format]
	if !ok {
		return true
	}
	return bytes.HasPrefix(raw, signature)
}
