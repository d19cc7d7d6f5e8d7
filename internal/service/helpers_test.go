package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"thesis-service/internal/model"
	"thesis-service/pkg/database"
	"thesis-service/pkg/notify"
)

var (
	admin    = model.Caller{ID: "admin", Role: model.RoleAdmin}
	alice    = model.Caller{ID: "s10001", Email: "alice@studenti.example.edu", Role: model.RoleStudent}
	bob      = model.Caller{ID: "s10002", Email: "bob@studenti.example.edu", Role: model.RoleStudent}
	rossi    = model.Caller{ID: "1", Role: model.RoleTeacher}
	bianchi  = model.Caller{ID: "2", Role: model.RoleTeacher}
	outsider = model.Caller{ID: "3", Role: model.RoleTeacher}
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (r *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingNotifier) messages() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.sent...)
}

func newTestDB(t *testing.T) *gorm.DB {
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
	// One connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fixtures := []interface{}{
		&[]model.Student{
			{ID: "s10001", FirstName: "Alice", LastName: "Martin", Email: "alice@studenti.example.edu", Degree: "LM-32"},
			{ID: "s10002", FirstName: "Bob", LastName: "Ferrari", Email: "bob@studenti.example.edu", Degree: "LM-32"},
		},
		&[]model.Teacher{
			{ID: 1, FirstName: "Marco", LastName: "Rossi", Email: "rossi@example.edu", Role: "professor", Facility: "DAUIN"},
			{ID: 2, FirstName: "Giulia", LastName: "Bianchi", Email: "bianchi@example.edu", Role: "researcher", Facility: "DAUIN"},
			{ID: 3, FirstName: "Luca", LastName: "Verdi", Email: "verdi@example.edu", Role: "professor", Facility: "DET"},
		},
		&[]model.ThesisProposal{
			{ID: 10, Topic: "Distributed ledgers for supply chains", Description: "Survey and prototype"},
		},
	}
	for _, f := range fixtures {
		if err := db.Create(f).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return db
}

// newTestService returns a service whose clock advances one minute per call.
func newTestService(t *testing.T) (*ApplicationService, *recordingNotifier, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	rec := &recordingNotifier{}
	svc := NewApplicationService(db, rec)

	var mu sync.Mutex
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, rec, db
}

func newApplication(topic string) NewApplication {
	return NewApplication{
		Topic:           topic,
		SupervisorID:    1,
		CoSupervisorIDs: []uint{2},
	}
}

func mustCreate(t *testing.T, svc *ApplicationService, caller model.Caller, in NewApplication) *model.ThesisApplication {
	t.Helper()
	app, err := svc.Create(context.Background(), caller, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return app
}

func mustTransition(t *testing.T, svc *ApplicationService, caller model.Caller, id uint, status string) *model.ThesisApplication {
	t.Helper()
	app, err := svc.Transition(context.Background(), caller, id, status, nil)
	if err != nil {
		t.Fatalf("Transition(%d, %s): %v", id, status, err)
	}
	return app
}

func countRows(t *testing.T, db *gorm.DB, m interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(m)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
