package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"thesis-service/internal/middleware"
	"thesis-service/internal/model"
	"thesis-service/internal/service"
	"thesis-service/pkg/database"
	"thesis-service/pkg/jwtutil"
	"thesis-service/pkg/ratelimit"
)

type testServer struct {
	e      *echo.Echo
	db     *gorm.DB
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	seed := []interface{}{
		&[]model.Student{
			{ID: "s10001", FirstName: "Alice", LastName: "Martin", Email: "alice@studenti.example.edu"},
			{ID: "s10002", FirstName: "Bob", LastName: "Ferrari", Email: "bob@studenti.example.edu"},
		},
		&[]model.Teacher{
			{ID: 1, FirstName: "Marco", LastName: "Rossi", Email: "rossi@example.edu"},
			{ID: 2, FirstName: "Giulia", LastName: "Bianchi", Email: "bianchi@example.edu"},
		},
	}
	for _, s := range seed {
		if err := db.Create(s).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "handler-test", ExpirationHours: 1})
	tokens := map[string]string{}
	for name, claims := range map[string][3]string{
		"alice": {"s10001", "alice@studenti.example.edu", "student"},
		"bob":   {"s10002", "bob@studenti.example.edu", "student"},
		"rossi": {"1", "rossi@example.edu", "teacher"},
		"admin": {"admin", "office@example.edu", "admin"},
	} {
		token, err := jwt.GenerateToken(claims[0], claims[1], claims[2])
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		tokens[name] = token
	}

	applications := service.NewApplicationService(db, nil)
	e := echo.New()
	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = HTTPErrorHandler
	RegisterRoutes(e, Routes{
		Health:       NewHealthHandler(db, "thesis-service"),
		Applications: NewThesisApplicationHandler(applications),
		Theses:       NewThesisHandler(service.NewThesisService(db)),
		Auth:         middleware.AuthMiddleware(jwt),
		SubmitLimit:  middleware.SubmissionRateLimit(ratelimit.NewMemoryLimiter(), 3, time.Minute),
	})

	return &testServer{e: e, db: db, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.tokens[user])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func createBody(topic string) map[string]interface{} {
	return map[string]interface{}{
		"topic":         topic,
		"supervisor":    map[string]interface{}{"id": 1},
		"coSupervisors": []map[string]interface{}{{"id": 2}},
		"company":       map[string]interface{}{"name": "Acme Robotics", "address": "Via Roma 1"},
		"status":        "accepted",
	}
}
