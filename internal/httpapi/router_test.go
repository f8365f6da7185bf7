package httpapi_test

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/config"
	"github.com/oggyb/socialtinder/internal/httpapi"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/testutil"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// APISuite drives the full router over sqlite, miniredis and an in-memory
// blob store.
type APISuite struct {
	suite.Suite
	app    *app.AppContext
	clock  *testutil.Clock
	store  *storage.MemoryStore
	jwt    *auth.JWTService
	router http.Handler
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.app, s.clock, s.store = testutil.NewApp(s.T())
	s.jwt = auth.NewJWTService("test-secret", "socialtinder", time.Hour, s.clock.Now)
	s.router = s.newRouter(0, 0)
}

func (s *APISuite) newRouter(rps, burst int) http.Handler {
	cfg := &config.Config{}
	cfg.HTTP.AllowedOrigins = []string{"*"}
	cfg.HTTP.RateLimit = rps
	cfg.HTTP.RateBurst = burst
	return httpapi.NewRouter(httpapi.Deps{App: s.app, JWT: s.jwt, Config: cfg})
}

type session struct {
	User struct {
		ID uint64 `json:"id"`
	} `json:"user"`
	Token struct {
		AccessToken string `json:"access_token"`
	} `json:"token"`
}

func (s *APISuite) register(email string) session {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", map[string]any{
		"name": "Ann", "email": email, "password": "password123",
		"country": "Netherlands", "phone_number": "0612345678",
	})
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.DecodeData[session](s.T(), rr)
}

func (s *APISuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	if token != "" {
		testutil.WithBearer(req, token)
	}
	return testutil.DoRequest(s.router, req)
}

type part struct {
	name, value string
	file        []byte
}

func multipartRequest(t *testing.T, method, path, token string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.file != nil {
			fw, err := mw.CreateFormFile(p.name, p.value)
			require.NoError(t, err)
			_, err = fw.Write(p.file)
			require.NoError(t, err)
			continue
		}
		require.NoError(t, mw.WriteField(p.name, p.value))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testutil.WithBearer(req, token)
}

func (s *APISuite) TestHealth() {
	rr := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Require().Equal(http.StatusOK, rr.Code)

	checks := testutil.DecodeData[map[string]string](s.T(), rr)
	s.Equal("up", checks["database"])
	s.Equal("up", checks["redis"])
}

func (s *APISuite) TestMetricsAreLabelledByRoutePattern() {
	s.do(http.MethodGet, "/api/posts/7", "", nil)

	rr := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Require().Equal(http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	s.Require().NoError(err)
	s.Contains(string(body), `route="/api/posts/{id}"`)
	s.NotContains(string(body), `route="/api/posts/7"`)
}

func (s *APISuite) TestUnknownRouteUsesEnvelope() {
	rr := s.do(http.MethodGet, "/api/nope", "", nil)
	s.Equal(http.StatusNotFound, rr.Code)
	env := testutil.DecodeEnvelope(s.T(), rr)
	s.False(env.Status)
}

func (s *APISuite) TestProtectedRoutesNeedAToken() {
	for _, tok := range []string{"", "not-a-jwt"} {
		rr := s.do(http.MethodGet, "/api/profile", tok, nil)
		s.Equal(http.StatusUnauthorized, rr.Code)
		s.Equal("Unauthenticated.", testutil.DecodeEnvelope(s.T(), rr).Message)
	}
}

func (s *APISuite) TestExpiredTokenIsRejected() {
	sess := s.register("ann@example.com")
	s.clock.Advance(2 * time.Hour)

	rr := s.do(http.MethodGet, "/api/profile", sess.Token.AccessToken, nil)
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *APISuite) TestLogoutRevokesToken() {
	sess := s.register("ann@example.com")
	tok := sess.Token.AccessToken

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/profile", tok, nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/api/logout", tok, nil).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/profile", tok, nil).Code)
}

func (s *APISuite) TestValidationErrorsUseEnvelope() {
	rr := s.do(http.MethodPost, "/api/register", "", map[string]any{"email": "nope"})
	s.Require().Equal(http.StatusUnprocessableEntity, rr.Code)

	env := testutil.DecodeEnvelope(s.T(), rr)
	s.False(env.Status)
	s.Contains(env.Errors, "email")
	s.Contains(env.Errors, "name")
}

func (s *APISuite) TestMalformedBodyIsAValidationError() {
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusUnprocessableEntity, rr.Code)
	s.Contains(testutil.DecodeEnvelope(s.T(), rr).Errors, "body")
}

func (s *APISuite) TestWrongFieldTypeNamesTheField() {
	rr := s.do(http.MethodPost, "/api/login", "", map[string]any{"email": 42, "password": "x"})
	s.Equal(http.StatusUnprocessableEntity, rr.Code)
	s.Contains(testutil.DecodeEnvelope(s.T(), rr).Errors, "email")
}

func (s *APISuite) TestNonNumericIDIsNotFound() {
	sess := s.register("ann@example.com")
	rr := s.do(http.MethodGet, "/api/posts/abc", sess.Token.AccessToken, nil)
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *APISuite) TestProfileUpdateFromMultipartKeepsOtherFields() {
	sess := s.register("ann@example.com")
	tok := sess.Token.AccessToken

	rr := s.do(http.MethodPut, "/api/profile", tok, map[string]any{"bio": "hello", "interests": []string{"jazz"}})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	req := multipartRequest(s.T(), http.MethodPost, "/api/profile", tok,
		part{name: "description", value: "about me"},
		part{name: "profile_photo", value: "me.png", file: pngBytes},
	)
	rr = testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	out := testutil.DecodeData[map[string]any](s.T(), rr)
	s.Equal("hello", out["bio"])
	s.Equal("about me", out["description"])
	s.NotEmpty(out["profile_photo_url"])
	s.Equal(1, s.store.Len())
}

func (s *APISuite) TestOversizedUploadIsRejectedBeforeStorage() {
	tok := s.register("ann@example.com").Token.AccessToken
	big := append(bytes.Clone(pngBytes), make([]byte, 5*storage.MB)...)

	req := multipartRequest(s.T(), http.MethodPost, "/api/photos", tok,
		part{name: "photo", value: "huge.png", file: big},
	)
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusUnprocessableEntity, rr.Code, rr.Body.String())

	env := testutil.DecodeEnvelope(s.T(), rr)
	s.Equal([]string{"The photo field must not be greater than 5120 kilobytes."}, env.Errors["photo"])
	s.Zero(s.store.Len())
}

func (s *APISuite) TestConversationCreateFindsExistingThread() {
	ann := s.register("ann@example.com")
	bob := s.register("bob@example.com")
	body := map[string]any{"participants": []uint64{bob.User.ID}, "message": "hi"}

	rr := s.do(http.MethodPost, "/api/conversations", ann.Token.AccessToken, body)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	first := testutil.DecodeData[map[string]map[string]any](s.T(), rr)

	rr = s.do(http.MethodPost, "/api/conversations", ann.Token.AccessToken, body)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.Equal("Message sent to existing conversation", testutil.DecodeEnvelope(s.T(), rr).Message)
	second := testutil.DecodeData[map[string]map[string]any](s.T(), rr)
	s.Equal(first["conversation"]["id"], second["conversation"]["id"])
}

type eventOut struct {
	ID       uint64  `json:"id"`
	ImageURL *string `json:"image_url"`
	Tickets  []struct {
		ID       uint64 `json:"id"`
		Name     string `json:"name"`
		Quantity int    `json:"quantity_available"`
	} `json:"tickets"`
}

func eventBody() map[string]any {
	return map[string]any{
		"title": "Canal Jazz", "description": "Live jazz on the water", "category": "music",
		"location": "Amsterdam", "venue": "Pier 5",
		"start_date": "2026-06-01", "end_date": "2026-06-01",
		"start_time": "19:00", "end_time": "23:00",
		"organizer_name": "Jazz Co", "organizer_email": "jazz@example.com",
		"ticket_types": []map[string]any{{"name": "GA", "price": "12.50", "quantity": 3}},
	}
}

func (s *APISuite) TestPurchaseTicketsOverHTTP() {
	org := s.register("org@example.com")
	buyer := s.register("buyer@example.com")

	rr := s.do(http.MethodPost, "/api/events", org.Token.AccessToken, eventBody())
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	ev := testutil.DecodeData[eventOut](s.T(), rr)
	s.Require().Len(ev.Tickets, 1)

	purchase := "/api/events/" + itoa(ev.ID) + "/tickets/" + itoa(ev.Tickets[0].ID) + "/purchase"
	order := map[string]any{"quantity": 2, "payment_method": "paypal", "payment_details": map[string]any{"email": "b@example.com"}}

	rr = s.do(http.MethodPost, purchase, buyer.Token.AccessToken, order)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	s.Equal("Tickets purchased successfully", testutil.DecodeEnvelope(s.T(), rr).Message)
	receipt := testutil.DecodeData[map[string]any](s.T(), rr)
	s.Equal("25", receipt["total_amount"])

	rr = s.do(http.MethodPost, purchase, buyer.Token.AccessToken, order)
	s.Equal(http.StatusUnprocessableEntity, rr.Code)

	rr = s.do(http.MethodGet, "/api/my-tickets", buyer.Token.AccessToken, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Len(testutil.DecodeData[[]map[string]any](s.T(), rr), 1)
}

func (s *APISuite) TestCreateEventFromMultipartForm() {
	org := s.register("org@example.com")

	parts := []part{{name: "image", value: "poster.png", file: pngBytes}}
	for k, v := range eventBody() {
		if k == "ticket_types" {
			continue
		}
		parts = append(parts, part{name: k, value: v.(string)})
	}
	parts = append(parts,
		part{name: "ticket_types[]", value: `{"name":"GA","price":"10","quantity":50}`},
		part{name: "ticket_types[]", value: `{"name":"VIP","price":"40","quantity":5}`},
	)

	rr := testutil.DoRequest(s.router, multipartRequest(s.T(), http.MethodPost, "/api/events", org.Token.AccessToken, parts...))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

	ev := testutil.DecodeData[eventOut](s.T(), rr)
	s.Require().Len(ev.Tickets, 2)
	s.Equal("VIP", ev.Tickets[1].Name)
	s.Require().NotNil(ev.ImageURL)
	s.Contains(*ev.ImageURL, "event_images/")
}

func (s *APISuite) TestEventListRejectsBadDateFilter() {
	sess := s.register("ann@example.com")
	rr := s.do(http.MethodGet, "/api/events?date_from=yesterday", sess.Token.AccessToken, nil)
	s.Equal(http.StatusUnprocessableEntity, rr.Code)
	s.Contains(testutil.DecodeEnvelope(s.T(), rr).Errors, "date_from")
}

func (s *APISuite) TestRateLimitAppliesPerClient() {
	router := s.newRouter(1, 1)
	login := func() int {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/login", map[string]any{})
		return testutil.DoRequest(router, req).Code
	}

	s.Equal(http.StatusUnprocessableEntity, login())
	s.Equal(http.StatusTooManyRequests, login())
}

func itoa(n uint64) string { return strconv.FormatUint(n, 10) }

func TestCORSPreflight(t *testing.T) {
	appCtx, clock, _ := testutil.NewApp(t)
	cfg := &config.Config{}
	cfg.HTTP.AllowedOrigins = []string{"https://app.example.com"}
	router := httpapi.NewRouter(httpapi.Deps{App: appCtx, JWT: auth.NewJWTService("k", "socialtinder", time.Hour, clock.Now), Config: cfg})

	req := httptest.NewRequest(http.MethodOptions, "/api/events", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := testutil.DoRequest(router, req)

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
