package storage

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/oggyb/socialtinder/internal/validation"
)

const (
	KB = 1024
	MB = 1024 * KB
)

// File is an upload that has been fully read from the request.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// Rule is an extension allowlist plus a size cap.
type Rule struct {
	Extensions []string
	MaxBytes   int64
	// Image requires the sniffed content type to be image/*.
	Image bool
}

var (
	ProfilePhotoRule = Rule{Extensions: []string{"jpeg", "png", "jpg", "gif"}, MaxBytes: 2 * MB, Image: true}
	GalleryPhotoRule = Rule{Extensions: []string{"jpeg", "png", "jpg", "gif"}, MaxBytes: 5 * MB, Image: true}
	ImageRule        = Rule{Extensions: []string{"jpeg", "png", "jpg", "gif"}, MaxBytes: 2 * MB, Image: true}
	AttachmentRule   = Rule{
		Extensions: []string{"jpeg", "png", "jpg", "gif", "pdf", "doc", "docx", "xls", "xlsx", "txt"},
		MaxBytes:   10 * MB,
	}
)

// Check validates f and records failures on errs under field.
func (r Rule) Check(errs validation.Errors, field string, f File) {
	label := validation.Label(field)
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(f.Name)), ".")
	allowed := false
	for _, e := range r.Extensions {
		if e == ext {
			allowed = true
			break
		}
	}
	if allowed && r.Image && !strings.HasPrefix(http.DetectContentType(f.Data), "image/") {
		allowed = false
	}
	if !allowed {
		errs.Add(field, fmt.Sprintf("The %s field must be a file of type: %s.", label, strings.Join(r.Extensions, ", ")))
	}
	if f.Size > r.MaxBytes {
		errs.Add(field, fmt.Sprintf("The %s field must not be greater than %d kilobytes.", label, r.MaxBytes/KB))
	}
}

// CheckAll validates a list field: item failures go under field.N and the
// count limit under field.
func (r Rule) CheckAll(errs validation.Errors, field string, files []File, maxCount int) {
	if maxCount > 0 && len(files) > maxCount {
		errs.Add(field, fmt.Sprintf("The %s field must not have more than %d items.", validation.Label(field), maxCount))
	}
	for i, f := range files {
		r.Check(errs, fmt.Sprintf("%s.%d", field, i), f)
	}
}
