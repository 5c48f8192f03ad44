package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	authdomain "github.com/timehug/timehug/internal/auth/domain"
	authrepo "github.com/timehug/timehug/internal/auth/repository"
	authservice "github.com/timehug/timehug/internal/auth/service"
	"github.com/timehug/timehug/internal/auth/session"
	"github.com/timehug/timehug/internal/clock"
	creditdomain "github.com/timehug/timehug/internal/credit/domain"
	creditservice "github.com/timehug/timehug/internal/credit/service"
	"github.com/timehug/timehug/internal/config"
	generationdomain "github.com/timehug/timehug/internal/generation/domain"
	generationrepo "github.com/timehug/timehug/internal/generation/repository"
	generationservice "github.com/timehug/timehug/internal/generation/service"
	profiledomain "github.com/timehug/timehug/internal/profile/domain"
	profilerepo "github.com/timehug/timehug/internal/profile/repository"
	"github.com/timehug/timehug/internal/storage"
	templatedomain "github.com/timehug/timehug/internal/template/domain"
	templaterepo "github.com/timehug/timehug/internal/template/repository"
	templateservice "github.com/timehug/timehug/internal/template/service"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type testServer struct {
	server *Server
	clock  *clock.FakeClock
}

func TestGenerateRequiresSession(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, "POST", "/api/generate", "", map[string]string{
		"recentImagePath":  "a/person_1.jpg",
		"youngerImagePath": "a/child_1.jpg",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGenerateFlow(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.signup(t, "ana@example.com", "correct horse")

	person := ts.upload(t, cookie, storage.TypePerson)
	child := ts.upload(t, cookie, storage.TypeChild)

	rec := ts.doJSON(t, "POST", "/api/generate", cookie, map[string]string{
		"recentImagePath":  person,
		"youngerImagePath": child,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Success      bool   `json:"success"`
		GenerationID string `json:"generationId"`
		Status       string `json:"status"`
		Message      string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Success)
	require.Equal(t, generationdomain.StatusPending, created.Status)
	require.NotEmpty(t, created.GenerationID)
	require.Equal(t, "Generation queued for processing", created.Message)

	// The signup grant covered the charge.
	rec = ts.doJSON(t, "GET", "/api/credits", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var credits struct {
		Balance      int64 `json:"balance"`
		Transactions []struct {
			Type   string `json:"type"`
			Amount int64  `json:"amount"`
		} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &credits))
	require.Equal(t, int64(2), credits.Balance)
	require.Len(t, credits.Transactions, 2)

	// The owner reads the row back.
	rec = ts.doJSON(t, "GET", "/api/generate?id="+created.GenerationID, cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched struct {
		Generation generationView `json:"generation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	require.Equal(t, created.GenerationID, fetched.Generation.ID)
	require.Equal(t, []string{person, child}, fetched.Generation.InputImages)

	// Anyone else reads 404.
	other := ts.signup(t, "ben@example.com", "correct horse")
	rec = ts.doJSON(t, "GET", "/api/generate?id="+created.GenerationID, other, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.doJSON(t, "GET", "/api/history", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Generations []generationView `json:"generations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Generations, 1)
}

func TestGenerateValidation(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.signup(t, "ana@example.com", "correct horse")
	person := ts.upload(t, cookie, storage.TypePerson)

	rec := ts.doJSON(t, "POST", "/api/generate", cookie, map[string]string{
		"recentImagePath": person,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "recentImagePath and youngerImagePath")

	// Paths outside the caller's prefix are rejected.
	rec = ts.doJSON(t, "POST", "/api/generate", cookie, map[string]string{
		"recentImagePath":  person,
		"youngerImagePath": "999999/child_1.jpg",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "your own uploads")
}

func TestGenerateUnknownTemplate(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.signup(t, "ana@example.com", "correct horse")
	person := ts.upload(t, cookie, storage.TypePerson)
	child := ts.upload(t, cookie, storage.TypeChild)

	rec := ts.doJSON(t, "POST", "/api/generate", cookie, map[string]string{
		"recentImagePath":  person,
		"youngerImagePath": child,
		"templateId":       "no-such-template",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "Template not found")
}

func TestGenerateInsufficientCredits(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.signup(t, "ana@example.com", "correct horse")
	person := ts.upload(t, cookie, storage.TypePerson)
	child := ts.upload(t, cookie, storage.TypeChild)

	body := map[string]string{
		"recentImagePath":  person,
		"youngerImagePath": child,
	}
	// Drain the signup grant.
	for i := 0; i < 3; i++ {
		rec := ts.doJSON(t, "POST", "/api/generate", cookie, body)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.doJSON(t, "POST", "/api/generate", cookie, body)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var denied struct {
		Error     string `json:"error"`
		Required  int64  `json:"required"`
		Available int64  `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &denied))
	require.Equal(t, "Insufficient credits", denied.Error)
	require.Equal(t, int64(1), denied.Required)
	require.Equal(t, int64(0), denied.Available)

	// The denied attempt never shows up in history.
	rec = ts.doJSON(t, "GET", "/api/history", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Generations []generationView `json:"generations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Generations, 3)
}

func TestGetGenerationBadID(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.signup(t, "ana@example.com", "correct horse")

	// No id at all is a request error, not a lookup miss.
	rec := ts.doJSON(t, "GET", "/api/generate", cookie, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Generation ID required")

	rec = ts.doJSON(t, "GET", "/api/generate?id=not-an-id", cookie, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.doJSON(t, "GET", "/api/generate?id=123456789", cookie, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTemplates(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.signup(t, "ana@example.com", "correct horse")

	rec := ts.doJSON(t, "GET", "/api/templates", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Templates []templateView `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Templates, 1)
	require.Equal(t, templatedomain.DefaultSlug, payload.Templates[0].Slug)
}

func TestUploadValidation(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.signup(t, "ana@example.com", "correct horse")

	rec := ts.doUpload(t, cookie, "avatar", "image/jpeg", []byte("jpeg"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.doUpload(t, cookie, storage.TypePerson, "application/pdf", []byte("%PDF"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeStoredObject(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.signup(t, "ana@example.com", "correct horse")
	key := ts.upload(t, cookie, storage.TypePerson)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/storage/generations/"+key, nil)
	ts.server.Engine().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []byte("jpeg-bytes"), rec.Body.Bytes())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/storage/other-bucket/"+key, nil)
	ts.server.Engine().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthMe(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.signup(t, "ana@example.com", "correct horse")

	rec := ts.doJSON(t, "GET", "/auth/me", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ana@example.com")

	rec = ts.doJSON(t, "POST", "/auth/logout", cookie, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.doJSON(t, "GET", "/auth/me", cookie, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&profiledomain.Profile{},
		&creditdomain.CreditTransaction{},
		&templatedomain.Template{},
		&generationdomain.Generation{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)

	cfg := config.Config{
		HTTPAddr: ":0",
		Storage: config.StorageConfig{
			Root:          t.TempDir(),
			Bucket:        "generations",
			PublicBaseURL: "http://localhost:8080/storage",
			MaxUploadSize: 1024 * 1024,
		},
		Bootstrap: config.BootstrapConfig{
			SignupCreditGrant: 3,
		},
	}

	template := &templatedomain.Template{
		ID:         node.Generate(),
		Slug:       templatedomain.DefaultSlug,
		Name:       "Hug Your Younger Self",
		Prompt:     "A warm embrace across time.",
		CreditCost: 1,
		IsActive:   true,
		CreatedAt:  fakeClock.Now(),
		UpdatedAt:  fakeClock.Now(),
	}
	require.NoError(t, db.Create(template).Error)

	userRepo, sessionRepo := authrepo.New(db)
	authsvc := authservice.New(log, userRepo, sessionRepo, node, fakeClock)
	creditSvc := creditservice.NewService(creditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
	})
	templateSvc := templateservice.New(log, templaterepo.New(db))
	generationSvc := generationservice.NewService(generationservice.Params{
		DB:          db,
		Log:         log,
		Repo:        generationrepo.New(db),
		TemplateSvc: templateSvc,
		CreditSvc:   creditSvc,
		GenID:       node,
		Clock:       fakeClock,
	})
	store := storage.NewLocal(log, cfg, fakeClock)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	server := NewServer(ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		DB:            db,
		Authsvc:       authsvc,
		Sessions:      session.NewManager(cfg),
		GenID:         node,
		ProfileRepo:   profilerepo.New(db),
		CreditSvc:     creditSvc,
		TemplateSvc:   templateSvc,
		GenerationSvc: generationSvc,
		Store:         store,
	})

	return &testServer{server: server, clock: fakeClock}
}

func (ts *testServer) signup(t *testing.T, email, password string) string {
	t.Helper()

	rec := ts.doJSON(t, "POST", "/auth/signup", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName && c.Value != "" {
			return c.Name + "=" + c.Value
		}
	}
	t.Fatal("signup did not set a session cookie")
	return ""
}

func (ts *testServer) doJSON(t *testing.T, method, path, cookie string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	rec := httptest.NewRecorder()
	ts.server.Engine().ServeHTTP(rec, req)
	return rec
}

// upload stores a small jpeg and returns its object key. Each upload gets a
// distinct timestamped key.
func (ts *testServer) upload(t *testing.T, cookie, imageType string) string {
	t.Helper()
	ts.clock.Advance(time.Millisecond)

	rec := ts.doUpload(t, cookie, imageType, "image/jpeg", []byte("jpeg-bytes"))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Path)
	return payload.Path
}

func (ts *testServer) doUpload(t *testing.T, cookie, imageType, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("type", imageType))

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="photo.jpg"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/uploads", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	rec := httptest.NewRecorder()
	ts.server.Engine().ServeHTTP(rec, req)
	return rec
}
