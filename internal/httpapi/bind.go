package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-chi/chi/v5"

	"github.com/oggyb/socialtinder/internal/auth"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
	"github.com/oggyb/socialtinder/internal/validation"
)

const (
	// maxMultipartMemory is what ParseMultipartForm keeps in memory before
	// spilling file parts to disk.
	maxMultipartMemory = 32 << 20
	// maxRequestBytes bounds any request body: five 10 MB attachments plus
	// form fields.
	maxRequestBytes = 64 << 20
	// sniffBytes is all that is read from a part already over its cap.
	sniffBytes = 512
)

func badBody() error {
	return svcErr.Validation(map[string][]string{"body": {"The request body is invalid."}})
}

func mediaType(r *http.Request) string {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt
}

func isForm(r *http.Request) bool {
	switch mediaType(r) {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		return true
	}
	return false
}

// flatten merges "tags[]" into "tags" so array fields bind the same way from
// bracketed and plain repeated keys.
func flatten(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		k = strings.TrimSuffix(k, "[]")
		out[k] = append(out[k], v...)
	}
	return out
}

// bodyError reports a body over maxRequestBytes by size and anything else as
// unreadable.
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return svcErr.Validation(map[string][]string{
			"body": {fmt.Sprintf("The request body must not be greater than %d kilobytes.", tooLarge.Limit/storage.KB)},
		})
	}
	return badBody()
}

func parseMultipart(r *http.Request) error {
	if r.MultipartForm != nil {
		return nil
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return bodyError(err)
	}
	return nil
}

func formValues(r *http.Request) (map[string][]string, error) {
	if mediaType(r) == "multipart/form-data" {
		if err := parseMultipart(r); err != nil {
			return nil, err
		}
		return flatten(r.MultipartForm.Value), nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, bodyError(err)
	}
	return flatten(r.PostForm), nil
}

// jsonError turns a decode failure into a validation error, naming the field
// when the decoder knows it.
func jsonError(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return svcErr.Validation(map[string][]string{
			te.Field: {fmt.Sprintf("The %s field is invalid.", validation.Label(te.Field))},
		})
	}
	return badBody()
}

func mapForm(dst any, form map[string][]string) error {
	if err := binding.MapFormWithTag(dst, form, "json"); err != nil {
		return badBody()
	}
	return nil
}

// decode fills dst from a JSON, urlencoded or multipart body. Form keys use
// the json tag names.
func decode(r *http.Request, dst any) error {
	if isForm(r) {
		form, err := formValues(r)
		if err != nil {
			return err
		}
		return mapForm(dst, form)
	}
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return bodyError(err)
	}
	return jsonError(err)
}

// patchFrom reads the body now and returns a Patch that lays it over an
// input the service has pre-filled. Keys that are absent leave the stored
// value alone. A nil Patch means an empty body.
func patchFrom(r *http.Request) (validation.Patch, error) {
	if isForm(r) {
		form, err := formValues(r)
		if err != nil {
			return nil, err
		}
		return func(dst any) error { return mapForm(dst, form) }, nil
	}
	if r.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, bodyError(err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, badBody()
	}
	return func(dst any) error { return jsonError(json.Unmarshal(raw, dst)) }, nil
}

// readFile loads an upload into memory. A part larger than rule allows is
// not buffered: only its first bytes are kept so the rule can still name
// both the size and the type failure.
func readFile(fh *multipart.FileHeader, rule storage.Rule) (storage.File, error) {
	src, err := fh.Open()
	if err != nil {
		return storage.File{}, err
	}
	defer src.Close()

	var body io.Reader = src
	if fh.Size > rule.MaxBytes {
		body = io.LimitReader(src, sniffBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.File{}, err
	}
	return storage.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Data:        data,
	}, nil
}

// filesFrom reads every upload under field (or field[]) that fits rule.
func filesFrom(r *http.Request, field string, rule storage.Rule) ([]storage.File, error) {
	if mediaType(r) != "multipart/form-data" {
		return nil, nil
	}
	if err := parseMultipart(r); err != nil {
		return nil, err
	}
	var out []storage.File
	for _, key := range []string{field, field + "[]"} {
		for _, fh := range r.MultipartForm.File[key] {
			f, err := readFile(fh, rule)
			if err != nil {
				return nil, svcErr.Internal(fmt.Errorf("read upload %s: %w", key, err))
			}
			out = append(out, f)
		}
	}
	return out, nil
}

// fileFrom returns the first upload under field, or nil.
func fileFrom(r *http.Request, field string, rule storage.Rule) (*storage.File, error) {
	files, err := filesFrom(r, field, rule)
	if err != nil || len(files) == 0 {
		return nil, err
	}
	return &files[0], nil
}

// query fills dst from the query string using json tag names.
func query(r *http.Request, dst any) error {
	if err := binding.MapFormWithTag(dst, flatten(r.URL.Query()), "json"); err != nil {
		return svcErr.Validation(map[string][]string{"query": {"The query string is invalid."}})
	}
	return nil
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(validation.DateLayout, v)
	if err != nil {
		return nil, svcErr.Validation(map[string][]string{
			name: {fmt.Sprintf("The %s field must be a valid date.", validation.Label(name))},
		})
	}
	return &t, nil
}

// pathID reads a numeric route parameter. Anything that is not a positive
// id cannot match a row, so it is a 404.
func pathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, svcErr.NotFound("Resource not found")
	}
	return id, nil
}

// nestedIDs reads the parent {id} and a child route parameter, as in
// /posts/{id}/comments/{commentId}.
func nestedIDs(r *http.Request, child string) (parentID, childID uint64, err error) {
	if parentID, err = pathID(r, "id"); err != nil {
		return 0, 0, err
	}
	childID, err = pathID(r, child)
	return parentID, childID, err
}

func pageOf(r *http.Request) int {
	return pagination.Parse(r.URL.Query().Get("page"), 0).Page
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
