package httpapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/socialtinder/internal/auth"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/storage"
)

func TestLimiterRefillsAndSweeps(t *testing.T) {
	l := newLimiter(1, 2)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.allow("ip:a", now))
	assert.True(t, l.allow("ip:a", now))
	assert.False(t, l.allow("ip:a", now))
	assert.True(t, l.allow("ip:b", now), "buckets are per client")

	assert.True(t, l.allow("ip:a", now.Add(time.Second)))

	l.allow("ip:c", now.Add(idleClientTTL+2*time.Second))
	assert.NotContains(t, l.clients, "ip:b")
	assert.Contains(t, l.clients, "ip:c")
}

func TestClientKeyPrefersIdentity(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "ip:10.0.0.7", clientKey(req))

	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: 42}))
	assert.Equal(t, "user:42", clientKey(req))
}

func TestFlattenMergesBracketKeys(t *testing.T) {
	out := flatten(map[string][]string{"tags[]": {"a"}, "tags": {"b"}, "name": {"x"}})
	assert.ElementsMatch(t, []string{"a", "b"}, out["tags"])
	assert.Equal(t, []string{"x"}, out["name"])
}

func TestOversizedPartKeepsOnlyItsHead(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("photo", "big.png")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte{'x'}, 3*storage.KB))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rule := storage.Rule{Extensions: []string{"png"}, MaxBytes: storage.KB}
	f, err := fileFrom(req, "photo", rule)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, int64(3*storage.KB), f.Size)
	assert.Len(t, f.Data, sniffBytes)

	f, err = fileFrom(req, "photo", storage.Rule{MaxBytes: 4 * storage.KB})
	require.NoError(t, err)
	assert.Len(t, f.Data, 3*storage.KB, "parts within the cap are read whole")
}

func TestBodyOverLimitIsAValidationError(t *testing.T) {
	body := `{"content":"` + strings.Repeat("a", 4*storage.KB) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Body = http.MaxBytesReader(httptest.NewRecorder(), req.Body, 2*storage.KB)

	var dst struct {
		Content string `json:"content"`
	}
	e := svcErr.Map(decode(req, &dst))
	require.NotNil(t, e)
	assert.Equal(t, svcErr.KindValidation, e.Kind)
	assert.Equal(t, []string{"The request body must not be greater than 2 kilobytes."}, e.Fields["body"])
}
