package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/everafterhq/everafter/internal/auth"
	"github.com/everafterhq/everafter/internal/cache"
	"github.com/everafterhq/everafter/internal/enquiry"
	"github.com/everafterhq/everafter/internal/invite"
	"github.com/everafterhq/everafter/internal/media"
	"github.com/everafterhq/everafter/internal/rsvp"
	"github.com/everafterhq/everafter/internal/users"
)

const (
	testSigningSecret = "test-signing-secret"
	testSessionIssuer = "everafter-auth"
	testCookieName    = "ea_session"
)

type testEnvironment struct {
	engine *gin.Engine
	issuer *auth.TokenIssuer
	now    *time.Time
}

func newTestEnvironment(t *testing.T) *testEnvironment {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access connection pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&invite.WeddingRecord{}, &rsvp.Response{}, &enquiry.Enquiry{}, &users.Identity{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	now := time.Date(2026, 6, 20, 9, 0, 0, 0, time.UTC)
	clockNow := &now
	clock := func() time.Time { return *clockNow }

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testSessionIssuer,
		CookieName:    testCookieName,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}

	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        "everafter-api",
		Audience:      "everafter-dashboard",
		TokenTTL:      30 * time.Minute,
		Clock:         clock,
	})

	identityService, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to construct identity service: %v", err)
	}

	inviteService, err := invite.NewService(invite.ServiceConfig{
		Database: db,
		Cache:    cache.NewMemory(),
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("failed to construct invite service: %v", err)
	}

	rsvpService, err := rsvp.NewService(rsvp.ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: rsvp.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct rsvp service: %v", err)
	}

	enquiryService, err := enquiry.NewService(enquiry.ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: enquiry.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct enquiry service: %v", err)
	}

	mediaStore, err := media.NewFileStore(media.FileStoreConfig{
		Directory: t.TempDir(),
		BaseURL:   "/media",
	})
	if err != nil {
		t.Fatalf("failed to construct media store: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		SessionVerifier: validator,
		TokenManager:    issuer,
		Identities:      identityService,
		InviteService:   inviteService,
		RsvpService:     rsvpService,
		EnquiryService:  enquiryService,
		MediaStore:      mediaStore,
		MediaDirectory:  mediaStore.Directory(),
		MediaBasePath:   "/media",
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	engine, ok := handler.(*gin.Engine)
	if !ok {
		t.Fatalf("expected gin engine handler, got %T", handler)
	}

	return &testEnvironment{
		engine: engine,
		issuer: issuer,
		now:    clockNow,
	}
}

func (env *testEnvironment) advanceClock(d time.Duration) {
	*env.now = env.now.Add(d)
}

func (env *testEnvironment) adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := env.issuer.IssueDashboardToken(context.Background(), "admin-1", []string{auth.RoleAdmin})
	if err != nil {
		t.Fatalf("failed to issue admin token: %v", err)
	}
	return token
}

func (env *testEnvironment) guestToken(t *testing.T) string {
	t.Helper()
	token, _, err := env.issuer.IssueDashboardToken(context.Background(), "guest-1", []string{"guest"})
	if err != nil {
		t.Fatalf("failed to issue guest token: %v", err)
	}
	return token
}

func (env *testEnvironment) sessionCookie(t *testing.T, userID string, roles []string) *http.Cookie {
	t.Helper()
	claims := auth.SessionClaims{
		UserID:    userID,
		UserEmail: userID + "@example.com",
		UserRoles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testSessionIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(env.now.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(env.now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(env.now.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign session token: %v", err)
	}
	return &http.Cookie{Name: testCookieName, Value: signed}
}

func (env *testEnvironment) performJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	env.engine.ServeHTTP(recorder, request)
	return recorder
}

type multipartFilePart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func (env *testEnvironment) performMultipart(t *testing.T, path, token string, fields map[string]string, files []multipartFilePart) *httptest.ResponseRecorder {
	t.Helper()
	buffer := &bytes.Buffer{}
	writer := multipart.NewWriter(buffer)
	for field, value := range fields {
		if err := writer.WriteField(field, value); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	for _, file := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.filename+`"`)
		header.Set("Content-Type", file.contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create file part: %v", err)
		}
		if _, err := part.Write(file.data); err != nil {
			t.Fatalf("failed to write file part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to finalize multipart body: %v", err)
	}

	request := httptest.NewRequest(http.MethodPost, path, buffer)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	env.engine.ServeHTTP(recorder, request)
	return recorder
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	payload := map[string]any{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response body %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func envelopeData(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	envelope := decodeEnvelope(t, recorder)
	data, ok := envelope["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected object data in envelope, got %v", envelope["data"])
	}
	return data
}

func (env *testEnvironment) createInvite(t *testing.T, id string, document map[string]any) {
	t.Helper()
	encoded, err := json.Marshal(document)
	if err != nil {
		t.Fatalf("failed to encode document: %v", err)
	}
	recorder := env.performMultipart(t, "/invite", env.adminToken(t), map[string]string{
		"document": string(encoded),
		"id":       id,
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("failed to create invite, status %d body %s", recorder.Code, recorder.Body.String())
	}
}

func requireStatus(t *testing.T, recorder *httptest.ResponseRecorder, want int) map[string]any {
	t.Helper()
	envelope := decodeEnvelope(t, recorder)
	if recorder.Code != want {
		t.Fatalf("unexpected status %d (want %d), body %s", recorder.Code, want, recorder.Body.String())
	}
	if int(envelope["statusCode"].(float64)) != want {
		t.Fatalf("envelope statusCode %v does not match response status %d", envelope["statusCode"], want)
	}
	success, _ := envelope["success"].(bool)
	if want < 400 && !success {
		t.Fatalf("expected success envelope, got %s", recorder.Body.String())
	}
	if want >= 400 && success {
		t.Fatalf("expected error envelope, got %s", recorder.Body.String())
	}
	return envelope
}
