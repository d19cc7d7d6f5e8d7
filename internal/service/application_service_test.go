package service

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"thesis-service/internal/apperr"
	"thesis-service/internal/lifecycle"
	"thesis-service/internal/model"
)

func TestCreateStoresPendingApplication(t *testing.T) {
	svc, rec, db := newTestService(t)

	address := "Via Roma 1, Torino"
	in := newApplication("Edge inference on microcontrollers")
	in.CoSupervisorIDs = []uint{3, 2}
	in.Company = &CompanyInput{Name: "Acme Robotics", Address: &address}
	proposal := uint(10)
	in.ThesisProposalID = &proposal

	app := mustCreate(t, svc, alice, in)

	if app.Status != lifecycle.Pending {
		t.Fatalf("status = %s, want pending", app.Status)
	}
	if app.StudentID != alice.ID || app.Student.Email != alice.Email {
		t.Fatalf("student not resolved from caller: %+v", app.Student)
	}
	if app.Company == nil || app.Company.Name != "Acme Robotics" {
		t.Fatalf("company not linked: %+v", app.Company)
	}
	if app.ThesisProposal == nil || app.ThesisProposal.ID != 10 {
		t.Fatalf("proposal not linked: %+v", app.ThesisProposal)
	}

	if len(app.Supervisors) != 3 {
		t.Fatalf("supervisor links = %d, want 3", len(app.Supervisors))
	}
	supervisors := 0
	for _, link := range app.Supervisors {
		if link.IsSupervisor {
			supervisors++
			if link.TeacherID != 1 {
				t.Errorf("supervisor = %d, want 1", link.TeacherID)
			}
		}
	}
	if supervisors != 1 {
		t.Fatalf("links flagged as supervisor = %d, want 1", supervisors)
	}

	history, err := svc.History(context.Background(), alice, app.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].OldStatus != nil || history[0].NewStatus != lifecycle.Pending {
		t.Fatalf("unexpected initial history: %+v", history)
	}

	svc.Wait()
	msgs := rec.messages()
	if len(msgs) != 1 || msgs[0].To[0] != "rossi@example.edu" {
		t.Fatalf("supervisor not notified: %+v", msgs)
	}

	if n := countRows(t, db, &model.Thesis{}, ""); n != 0 {
		t.Fatalf("pending application must not create a thesis, got %d", n)
	}
}

func TestCreateReusesCompanyByName(t *testing.T) {
	svc, _, db := newTestService(t)

	in := newApplication("First")
	in.Company = &CompanyInput{Name: "Acme Robotics"}
	first := mustCreate(t, svc, alice, in)

	in = newApplication("Second")
	in.Company = &CompanyInput{Name: " Acme Robotics "}
	second := mustCreate(t, svc, bob, in)

	if *first.CompanyID != *second.CompanyID {
		t.Fatalf("company ids differ: %d vs %d", *first.CompanyID, *second.CompanyID)
	}
	if n := countRows(t, db, &model.Company{}, ""); n != 1 {
		t.Fatalf("companies = %d, want 1", n)
	}
}

func TestCreateRejectsIneligibleStudent(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()

	first := mustCreate(t, svc, alice, newApplication("First"))

	_, err := svc.Create(ctx, alice, newApplication("Second"))
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if n := countRows(t, db, &model.ThesisApplication{}, "student_id = ?", alice.ID); n != 1 {
		t.Fatalf("applications = %d, want 1", n)
	}

	if _, err := svc.Cancel(ctx, alice, first.ID, nil); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	mustCreate(t, svc, alice, newApplication("Second"))
}

func TestCreateValidation(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()

	long := make([]rune, maxTopicLength+1)
	for i := range long {
		long[i] = 'x'
	}
	missingProposal := uint(99)

	cases := []struct {
		name   string
		caller model.Caller
		in     NewApplication
		kind   apperr.Kind
	}{
		{"empty topic", alice, NewApplication{Topic: "  ", SupervisorID: 1}, apperr.KindValidation},
		{"long topic", alice, NewApplication{Topic: string(long), SupervisorID: 1}, apperr.KindValidation},
		{"missing supervisor", alice, NewApplication{Topic: "T"}, apperr.KindValidation},
		{"supervisor repeated as co-supervisor", alice, NewApplication{Topic: "T", SupervisorID: 1, CoSupervisorIDs: []uint{1}}, apperr.KindValidation},
		{"duplicate co-supervisor", alice, NewApplication{Topic: "T", SupervisorID: 1, CoSupervisorIDs: []uint{2, 2}}, apperr.KindValidation},
		{"unknown supervisor", alice, NewApplication{Topic: "T", SupervisorID: 42}, apperr.KindValidation},
		{"unknown co-supervisor", alice, NewApplication{Topic: "T", SupervisorID: 1, CoSupervisorIDs: []uint{42}}, apperr.KindValidation},
		{"unknown proposal", alice, NewApplication{Topic: "T", SupervisorID: 1, ThesisProposalID: &missingProposal}, apperr.KindValidation},
		{"unknown student", admin, NewApplication{StudentID: "s99999", Topic: "T", SupervisorID: 1}, apperr.KindValidation},
		{"admin without student", admin, NewApplication{Topic: "T", SupervisorID: 1}, apperr.KindValidation},
		{"student for someone else", alice, NewApplication{StudentID: bob.ID, Topic: "T", SupervisorID: 1}, apperr.KindForbidden},
		{"teacher", rossi, NewApplication{StudentID: alice.ID, Topic: "T", SupervisorID: 1}, apperr.KindForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.caller, tc.in)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := apperr.KindOf(err); got != tc.kind {
				t.Fatalf("kind = %v, want %v (%v)", got, tc.kind, err)
			}
		})
	}

	if n := countRows(t, db, &model.ThesisApplication{}, ""); n != 0 {
		t.Fatalf("applications = %d, want 0", n)
	}
}

func TestCreateAdminForStudent(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := newApplication("Filed by the office")
	in.StudentID = bob.ID
	app := mustCreate(t, svc, admin, in)
	if app.StudentID != bob.ID {
		t.Fatalf("student = %s, want %s", app.StudentID, bob.ID)
	}
}

func TestCreateIsAtomic(t *testing.T) {
	svc, _, db := newTestService(t)

	injected := errors.New("injected supervisor failure")
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_supervisor_links", func(tx *gorm.DB) {
		if tx.Statement.Table == (model.SupervisorLink{}).TableName() {
			tx.AddError(injected)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	in := newApplication("Doomed")
	in.Company = &CompanyInput{Name: "Never Inc"}
	_, err = svc.Create(context.Background(), alice, in)
	if !errors.Is(err, injected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if apperr.KindOf(err) != apperr.KindInternal {
		t.Fatalf("kind = %v, want internal", apperr.KindOf(err))
	}

	for _, m := range []interface{}{&model.ThesisApplication{}, &model.SupervisorLink{}, &model.StatusHistoryEntry{}, &model.Company{}} {
		if n := countRows(t, db, m, ""); n != 0 {
			t.Errorf("%T rows = %d after rollback, want 0", m, n)
		}
	}

	eligible, err := svc.IsEligible(context.Background(), alice.ID)
	if err != nil || !eligible {
		t.Fatalf("student should stay eligible after a failed intake: %v %v", eligible, err)
	}
}

func TestIsEligible(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	check := func(want bool) {
		t.Helper()
		got, err := svc.IsEligible(ctx, alice.ID)
		if err != nil {
			t.Fatalf("IsEligible: %v", err)
		}
		if got != want {
			t.Fatalf("IsEligible = %v, want %v", got, want)
		}
	}

	check(true)

	first := mustCreate(t, svc, alice, newApplication("First"))
	check(false)

	mustTransition(t, svc, rossi, first.ID, "rejected")
	check(true)

	second := mustCreate(t, svc, alice, newApplication("Second"))
	mustTransition(t, svc, rossi, second.ID, "accepted")
	check(false)
	mustTransition(t, svc, alice, second.ID, "conclusion_requested")
	check(false)
	mustTransition(t, svc, rossi, second.ID, "conclusion_accepted")
	check(false)
	mustTransition(t, svc, rossi, second.ID, "done")
	check(true)

	other, err := svc.IsEligible(ctx, bob.ID)
	if err != nil || !other {
		t.Fatalf("other student should be eligible: %v %v", other, err)
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	svc, _, db := newTestService(t)
	app := mustCreate(t, svc, alice, newApplication("T"))

	_, err := svc.Transition(context.Background(), admin, app.ID, "bogus", nil)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	var stored model.ThesisApplication
	if err := db.First(&stored, app.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != lifecycle.Pending {
		t.Fatalf("status changed to %s", stored.Status)
	}
	if n := countRows(t, db, &model.StatusHistoryEntry{}, "thesis_application_id = ?", app.ID); n != 1 {
		t.Fatalf("history rows = %d, want 1", n)
	}
}

func TestTransitionIllegal(t *testing.T) {
	svc, _, db := newTestService(t)
	app := mustCreate(t, svc, alice, newApplication("T"))

	_, err := svc.Transition(context.Background(), admin, app.ID, "done", nil)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	var stored model.ThesisApplication
	if err := db.First(&stored, app.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != lifecycle.Pending {
		t.Fatalf("status changed to %s", stored.Status)
	}

	mustTransition(t, svc, admin, app.ID, "canceled")
	if _, err := svc.Transition(context.Background(), admin, app.ID, "accepted", nil); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("terminal status must not move, got %v", err)
	}
}

func TestTransitionNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Transition(context.Background(), admin, 404, "accepted", nil)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransitionHistoryChain(t *testing.T) {
	svc, rec, db := newTestService(t)
	ctx := context.Background()
	app := mustCreate(t, svc, alice, newApplication("Chained"))

	steps := []struct {
		caller model.Caller
		status string
	}{
		{rossi, "accepted"},
		{alice, "conclusion_requested"},
		{bianchi, "conclusion_accepted"},
		{admin, "done"},
	}
	for _, step := range steps {
		before, err := svc.History(ctx, admin, app.ID)
		if err != nil {
			t.Fatalf("History: %v", err)
		}

		updated := mustTransition(t, svc, step.caller, app.ID, step.status)
		if updated.Status.String() != step.status {
			t.Fatalf("status = %s, want %s", updated.Status, step.status)
		}

		after, err := svc.History(ctx, admin, app.ID)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(after) != len(before)+1 {
			t.Fatalf("history grew by %d, want 1", len(after)-len(before))
		}
		last := after[len(after)-1]
		prev := after[len(after)-2]
		if last.OldStatus == nil || *last.OldStatus != prev.NewStatus {
			t.Fatalf("old status %v does not chain to %s", last.OldStatus, prev.NewStatus)
		}
	}

	var stored model.ThesisApplication
	if err := db.First(&stored, app.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.RequestConclusion == nil || stored.ConclusionConfirmation == nil {
		t.Fatalf("conclusion dates not set: %+v", stored)
	}

	var thesis model.Thesis
	if err := db.Where("thesis_application_id = ?", app.ID).First(&thesis).Error; err != nil {
		t.Fatalf("thesis: %v", err)
	}
	if thesis.Status != model.ThesisConclusionApproved {
		t.Fatalf("thesis status = %s", thesis.Status)
	}
	if thesis.ConclusionRequestDate == nil || thesis.ConclusionConfirmationDate == nil {
		t.Fatalf("thesis conclusion dates not set: %+v", thesis)
	}

	svc.Wait()
	// one submission e-mail plus one per transition
	if got := len(rec.messages()); got != 1+len(steps) {
		t.Fatalf("notifications = %d, want %d", got, 1+len(steps))
	}
}

func TestTransitionNoteIsRecorded(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	app := mustCreate(t, svc, alice, newApplication("T"))

	note := "  topic overlaps with an ongoing thesis  "
	if _, err := svc.Transition(ctx, rossi, app.ID, "REJECTED", &note); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	history, err := svc.History(ctx, alice, app.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	last := history[len(history)-1]
	if last.NewStatus != lifecycle.Rejected {
		t.Fatalf("new status = %s", last.NewStatus)
	}
	if last.Note == nil || *last.Note != "topic overlaps with an ongoing thesis" {
		t.Fatalf("note = %v", last.Note)
	}
}

func TestAcceptCreatesExactlyOneThesis(t *testing.T) {
	svc, _, db := newTestService(t)
	in := newApplication("Promoted")
	in.Company = &CompanyInput{Name: "Acme Robotics"}
	app := mustCreate(t, svc, alice, in)

	mustTransition(t, svc, rossi, app.ID, "accepted")

	if n := countRows(t, db, &model.Thesis{}, "thesis_application_id = ?", app.ID); n != 1 {
		t.Fatalf("theses = %d, want 1", n)
	}

	thesis, err := NewThesisService(db).Get(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ThesisService.Get: %v", err)
	}
	if thesis.Topic != "Promoted" || thesis.Status != model.ThesisOngoing {
		t.Fatalf("unexpected thesis: %+v", thesis)
	}
	if thesis.Company == nil || thesis.Company.Name != "Acme Robotics" {
		t.Fatalf("company not copied: %+v", thesis.Company)
	}
	if len(thesis.Supervisors) != 2 {
		t.Fatalf("thesis supervisors = %d, want 2", len(thesis.Supervisors))
	}

	mustTransition(t, svc, alice, app.ID, "conclusion_requested")
	if n := countRows(t, db, &model.Thesis{}, ""); n != 1 {
		t.Fatalf("sync must reuse the thesis, got %d", n)
	}
}

func TestTransitionAuthorization(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	app := mustCreate(t, svc, alice, newApplication("T"))

	forbidden := []struct {
		name   string
		caller model.Caller
		status string
	}{
		{"student accepts own", alice, "accepted"},
		{"other student cancels", bob, "canceled"},
		{"unlinked teacher accepts", outsider, "accepted"},
		{"linked teacher cancels", rossi, "canceled"},
		{"unknown role", model.Caller{ID: "x", Role: "guest"}, "accepted"},
	}
	for _, tc := range forbidden {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Transition(ctx, tc.caller, app.ID, tc.status, nil)
			if apperr.KindOf(err) != apperr.KindForbidden {
				t.Fatalf("expected forbidden, got %v", err)
			}
		})
	}

	mustTransition(t, svc, bianchi, app.ID, "accepted")
}

func TestCancel(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	app := mustCreate(t, svc, alice, newApplication("T"))

	if _, err := svc.Cancel(ctx, rossi, app.ID, nil); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("teacher cancel: expected forbidden, got %v", err)
	}
	if _, err := svc.Cancel(ctx, bob, app.ID, nil); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("other student cancel: expected forbidden, got %v", err)
	}

	note := "changed my mind"
	canceled, err := svc.Cancel(ctx, alice, app.ID, &note)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.Status != lifecycle.Canceled {
		t.Fatalf("status = %s", canceled.Status)
	}
}

func TestGetAndHistoryAccess(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	app := mustCreate(t, svc, alice, newApplication("T"))

	if _, err := svc.Get(ctx, bob, app.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.History(ctx, bob, app.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, rossi, app.ID); err != nil {
		t.Fatalf("teacher Get: %v", err)
	}
	if _, err := svc.Get(ctx, admin, 999); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.History(ctx, admin, 999); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLastAndDeleteLast(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Last(ctx, alice.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.DeleteLast(ctx, alice); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	first := mustCreate(t, svc, alice, newApplication("First"))
	mustTransition(t, svc, rossi, first.ID, "rejected")
	second := mustCreate(t, svc, alice, newApplication("Second"))

	last, err := svc.Last(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if last.ID != second.ID {
		t.Fatalf("last = %d, want %d", last.ID, second.ID)
	}

	if err := svc.DeleteLast(ctx, alice); err != nil {
		t.Fatalf("DeleteLast: %v", err)
	}
	if n := countRows(t, db, &model.ThesisApplication{}, "id = ?", second.ID); n != 0 {
		t.Fatal("application not deleted")
	}
	if n := countRows(t, db, &model.SupervisorLink{}, "thesis_application_id = ?", second.ID); n != 0 {
		t.Fatal("supervisor links not deleted")
	}
	if n := countRows(t, db, &model.StatusHistoryEntry{}, "thesis_application_id = ?", second.ID); n != 0 {
		t.Fatal("history not deleted")
	}
	if n := countRows(t, db, &model.ThesisApplication{}, "id = ?", first.ID); n != 1 {
		t.Fatal("older application must survive")
	}

	third := mustCreate(t, svc, alice, newApplication("Third"))
	mustTransition(t, svc, rossi, third.ID, "accepted")
	if err := svc.DeleteLast(ctx, alice); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("promoted application: expected conflict, got %v", err)
	}
}

func TestCountByStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first := mustCreate(t, svc, alice, newApplication("First"))
	mustTransition(t, svc, rossi, first.ID, "accepted")
	mustCreate(t, svc, bob, newApplication("Second"))

	counts, err := svc.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if len(counts) != len(lifecycle.All()) {
		t.Fatalf("counts cover %d statuses, want %d", len(counts), len(lifecycle.All()))
	}
	if counts[lifecycle.Accepted] != 1 || counts[lifecycle.Pending] != 1 || counts[lifecycle.Done] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestThesisServiceNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := NewThesisService(db).Get(context.Background(), alice.ID)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
