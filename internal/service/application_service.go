// Package service implements thesis application intake, the status lifecycle
// and thesis promotion on top of gorm.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"thesis-service/internal/apperr"
	"thesis-service/internal/lifecycle"
	"thesis-service/internal/model"
	"thesis-service/pkg/notify"
	"thesis-service/prometheus"
)

const (
	maxTopicLength      = 255
	notificationTimeout = 30 * time.Second
	notifySubmitted     = "submitted"
	notifyStatusChanged = "status_changed"
)

// ApplicationService owns the thesis application aggregate.
type ApplicationService struct {
	db       *gorm.DB
	notifier notify.Notifier
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewApplicationService creates the service. A nil notifier disables e-mail.
func NewApplicationService(db *gorm.DB, notifier notify.Notifier) *ApplicationService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &ApplicationService{
		db:       db,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CompanyInput names the hosting company of an external thesis.
type CompanyInput struct {
	Name    string
	Address *string
}

// NewApplication is the intake payload.
type NewApplication struct {
	StudentID        string
	Topic            string
	SupervisorID     uint
	CoSupervisorIDs  []uint
	Company          *CompanyInput
	ThesisProposalID *uint
	IsEmbargo        *bool
}

// Create files a new pending application for the student in one transaction.
func (s *ApplicationService) Create(ctx context.Context, caller model.Caller, in NewApplication) (*model.ThesisApplication, error) {
	defer prometheus.TrackDBOperation("create_application")(time.Now())

	studentID, err := s.resolveStudent(caller, in.StudentID)
	if err != nil {
		return nil, err
	}
	in.StudentID = studentID
	in.Topic = strings.TrimSpace(in.Topic)
	if err := validateNewApplication(in); err != nil {
		return nil, err
	}

	now := s.now()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	// Serialize intake per student so the eligibility check cannot race
	var student model.Student
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&student, "id = ?", in.StudentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation("unknown student", map[string]string{"studentId": "no student with this id"})
		}
		return nil, err
	}

	eligible, err := isEligible(tx, in.StudentID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, apperr.Conflict("student already has an active thesis application")
	}

	if err := checkTeachersExist(tx, in.SupervisorID, in.CoSupervisorIDs); err != nil {
		return nil, err
	}
	if in.ThesisProposalID != nil {
		if err := tx.Select("id").First(&model.ThesisProposal{}, *in.ThesisProposalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Validation("unknown thesis proposal", map[string]string{"thesisProposal": "no thesis proposal with this id"})
			}
			return nil, err
		}
	}

	var companyID *uint
	if in.Company != nil && strings.TrimSpace(in.Company.Name) != "" {
		company := model.Company{}
		err := tx.Where(model.Company{Name: strings.TrimSpace(in.Company.Name)}).
			Attrs(model.Company{Address: in.Company.Address}).
			FirstOrCreate(&company).Error
		if err != nil {
			return nil, fmt.Errorf("find or create company: %w", err)
		}
		companyID = &company.ID
	}

	app := model.ThesisApplication{
		StudentID:        in.StudentID,
		ThesisProposalID: in.ThesisProposalID,
		Topic:            in.Topic,
		SubmissionDate:   now,
		Status:           lifecycle.Pending,
		CompanyID:        companyID,
		IsEmbargo:        in.IsEmbargo,
	}
	if err := tx.Omit(clause.Associations).Create(&app).Error; err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}

	links := make([]model.SupervisorLink, 0, 1+len(in.CoSupervisorIDs))
	links = append(links, model.SupervisorLink{ThesisApplicationID: app.ID, TeacherID: in.SupervisorID, IsSupervisor: true})
	for _, id := range in.CoSupervisorIDs {
		links = append(links, model.SupervisorLink{ThesisApplicationID: app.ID, TeacherID: id})
	}
	if err := tx.Omit(clause.Associations).Create(&links).Error; err != nil {
		return nil, fmt.Errorf("create supervisor links: %w", err)
	}

	entry := model.StatusHistoryEntry{
		ThesisApplicationID: app.ID,
		NewStatus:           lifecycle.Pending,
		ChangeDate:          now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("create status history: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	prometheus.RecordApplicationOperation("create")

	created, err := s.load(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	if email := supervisorEmail(created); email != "" {
		s.sendNotification(notifySubmitted, notify.ApplicationSubmitted([]string{email}, created.ID, created.StudentID, created.Topic))
	}
	return created, nil
}

// IsEligible reports whether the student may file a new application.
func (s *ApplicationService) IsEligible(ctx context.Context, studentID string) (bool, error) {
	defer prometheus.TrackDBOperation("eligibility")(time.Now())
	return isEligible(s.db.WithContext(ctx), studentID)
}

// Transition moves an application to a new status, appends the history row and
// keeps the derived thesis in step, all in one transaction.
func (s *ApplicationService) Transition(ctx context.Context, caller model.Caller, id uint, rawStatus string, note *string) (*model.ThesisApplication, error) {
	defer prometheus.TrackDBOperation("transition")(time.Now())

	next, err := lifecycle.Parse(rawStatus)
	if err != nil {
		prometheus.RecordTransitionRejected("invalid_status")
		return nil, apperr.Validation("invalid status", map[string]string{"status": "must be one of " + joinStatuses(lifecycle.All())})
	}
	note = trimNote(note)

	now := s.now()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	var app model.ThesisApplication
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("thesis application not found")
		}
		return nil, err
	}
	if err := tx.Where("thesis_application_id = ?", app.ID).Find(&app.Supervisors).Error; err != nil {
		return nil, err
	}

	if err := authorizeTransition(caller, &app, next); err != nil {
		prometheus.RecordTransitionRejected("forbidden")
		return nil, err
	}

	previous := app.Status
	if !previous.CanTransitionTo(next) {
		prometheus.RecordTransitionRejected("illegal_transition")
		return nil, apperr.Conflict(fmt.Sprintf("cannot move thesis application from %s to %s", previous, next))
	}

	updates := map[string]interface{}{"status": next}
	switch next {
	case lifecycle.ConclusionRequested:
		updates["request_conclusion"] = now
	case lifecycle.ConclusionAccepted:
		updates["conclusion_confirmation"] = now
	}
	if err := tx.Model(&model.ThesisApplication{}).Where("id = ?", app.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	entry := model.StatusHistoryEntry{
		ThesisApplicationID: app.ID,
		OldStatus:           &previous,
		NewStatus:           next,
		Note:                note,
		ChangeDate:          now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("append status history: %w", err)
	}

	app.Status = next
	if err := syncThesis(tx, &app, now); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	prometheus.RecordStatusTransition(previous.String(), next.String())

	updated, err := s.load(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	if updated.Student.Email != "" {
		s.sendNotification(notifyStatusChanged, notify.StatusChanged([]string{updated.Student.Email}, updated.ID, previous.String(), next.String(), note))
	}
	return updated, nil
}

// Cancel lets a student withdraw their own application.
func (s *ApplicationService) Cancel(ctx context.Context, caller model.Caller, id uint, note *string) (*model.ThesisApplication, error) {
	if !caller.IsStudent() {
		return nil, apperr.Forbidden("only the owning student can cancel an application")
	}
	return s.Transition(ctx, caller, id, lifecycle.Canceled.String(), note)
}

// Get returns one application with its relations.
func (s *ApplicationService) Get(ctx context.Context, caller model.Caller, id uint) (*model.ThesisApplication, error) {
	defer prometheus.TrackDBOperation("get_application")(time.Now())

	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.IsStudent() && app.StudentID != caller.ID {
		return nil, apperr.Forbidden("thesis application belongs to another student")
	}
	return app, nil
}

// Last returns the student's most recent application.
func (s *ApplicationService) Last(ctx context.Context, studentID string) (*model.ThesisApplication, error) {
	defer prometheus.TrackDBOperation("last_application")(time.Now())

	var app model.ThesisApplication
	err := preloadApplication(s.db.WithContext(ctx)).
		Where("student_id = ?", studentID).
		Order("submission_date DESC").
		Order("id DESC").
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no thesis application found for student")
		}
		return nil, err
	}
	return &app, nil
}

// History returns the status log of an application, oldest first.
func (s *ApplicationService) History(ctx context.Context, caller model.Caller, id uint) ([]model.StatusHistoryEntry, error) {
	defer prometheus.TrackDBOperation("status_history")(time.Now())

	db := s.db.WithContext(ctx)
	var app model.ThesisApplication
	if err := db.Select("id", "student_id").First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("thesis application not found")
		}
		return nil, err
	}
	if caller.IsStudent() && app.StudentID != caller.ID {
		return nil, apperr.Forbidden("thesis application belongs to another student")
	}

	var entries []model.StatusHistoryEntry
	err := db.Where("thesis_application_id = ?", id).
		Order("change_date ASC").
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteLast removes the caller's most recent application together with its
// supervisor links and history.
func (s *ApplicationService) DeleteLast(ctx context.Context, caller model.Caller) error {
	defer prometheus.TrackDBOperation("delete_application")(time.Now())

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	var app model.ThesisApplication
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ?", caller.ID).
		Order("submission_date DESC").
		Order("id DESC").
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("no thesis application found for student")
		}
		return err
	}

	var theses int64
	if err := tx.Model(&model.Thesis{}).Where("thesis_application_id = ?", app.ID).Count(&theses).Error; err != nil {
		return err
	}
	if theses > 0 {
		return apperr.Conflict("thesis application was already promoted to a thesis")
	}

	if err := tx.Where("thesis_application_id = ?", app.ID).Delete(&model.SupervisorLink{}).Error; err != nil {
		return fmt.Errorf("delete supervisor links: %w", err)
	}
	if err := tx.Where("thesis_application_id = ?", app.ID).Delete(&model.StatusHistoryEntry{}).Error; err != nil {
		return fmt.Errorf("delete status history: %w", err)
	}
	if err := tx.Delete(&model.ThesisApplication{}, app.ID).Error; err != nil {
		return fmt.Errorf("delete application: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}
	prometheus.RecordApplicationOperation("delete")
	return nil
}

// CountByStatus returns the number of applications per status. Statuses
// without applications are reported as zero.
func (s *ApplicationService) CountByStatus(ctx context.Context) (map[lifecycle.Status]int64, error) {
	defer prometheus.TrackDBOperation("count_by_status")(time.Now())

	var rows []struct {
		Status lifecycle.Status
		Total  int64
	}
	err := s.db.WithContext(ctx).Model(&model.ThesisApplication{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[lifecycle.Status]int64, len(lifecycle.All()))
	for _, st := range lifecycle.All() {
		counts[st] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// Wait blocks until in-flight notifications have been handed off.
func (s *ApplicationService) Wait() {
	s.wg.Wait()
}

func (s *ApplicationService) load(ctx context.Context, id uint) (*model.ThesisApplication, error) {
	var app model.ThesisApplication
	if err := preloadApplication(s.db.WithContext(ctx)).First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("thesis application not found")
		}
		return nil, err
	}
	return &app, nil
}

func (s *ApplicationService) resolveStudent(caller model.Caller, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	switch {
	case caller.IsAdmin():
		if requested == "" {
			return "", apperr.Validation("studentId is required", map[string]string{"studentId": "required"})
		}
		return requested, nil
	case caller.IsStudent():
		if requested != "" && requested != caller.ID {
			return "", apperr.Forbidden("students can only apply for themselves")
		}
		return caller.ID, nil
	default:
		return "", apperr.Forbidden("only students can submit thesis applications")
	}
}

// sendNotification sends msg off the request goroutine. Failures are logged and counted.
func (s *ApplicationService) sendNotification(kind string, msg notify.Message) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
		defer cancel()
		if err := s.notifier.Send(ctx, msg); err != nil {
			zap.L().Warn("Failed to send notification", zap.String("kind", kind), zap.Error(err))
			prometheus.RecordNotification(kind, "failed")
			return
		}
		prometheus.RecordNotification(kind, "sent")
	}()
}

func preloadApplication(db *gorm.DB) *gorm.DB {
	return db.Preload("Student").
		Preload("Company").
		Preload("ThesisProposal").
		Preload("Supervisors.Teacher")
}

func isEligible(db *gorm.DB, studentID string) (bool, error) {
	var active int64
	err := db.Model(&model.ThesisApplication{}).
		Where("student_id = ? AND status NOT IN ?", studentID, statusStrings(lifecycle.Terminal())).
		Count(&active).Error
	if err != nil {
		return false, err
	}
	return active == 0, nil
}

func validateNewApplication(in NewApplication) error {
	fields := map[string]string{}
	if in.Topic == "" {
		fields["topic"] = "required"
	} else if len([]rune(in.Topic)) > maxTopicLength {
		fields["topic"] = fmt.Sprintf("must be at most %d characters", maxTopicLength)
	}
	if in.SupervisorID == 0 {
		fields["supervisor"] = "required"
	}
	seen := map[uint]bool{in.SupervisorID: true}
	for _, id := range in.CoSupervisorIDs {
		if id == 0 {
			fields["coSupervisors"] = "teacher ids must be positive"
			break
		}
		if seen[id] {
			fields["coSupervisors"] = "must be distinct and must not repeat the supervisor"
			break
		}
		seen[id] = true
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid thesis application", fields)
	}
	return nil
}

func checkTeachersExist(tx *gorm.DB, supervisorID uint, coSupervisorIDs []uint) error {
	ids := append([]uint{supervisorID}, coSupervisorIDs...)
	var found []uint
	if err := tx.Model(&model.Teacher{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return err
	}
	known := make(map[uint]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	if !known[supervisorID] {
		return apperr.Validation("unknown supervisor", map[string]string{"supervisor": "no teacher with id " + strconv.FormatUint(uint64(supervisorID), 10)})
	}
	for _, id := range coSupervisorIDs {
		if !known[id] {
			return apperr.Validation("unknown co-supervisor", map[string]string{"coSupervisors": "no teacher with id " + strconv.FormatUint(uint64(id), 10)})
		}
	}
	return nil
}

func supervisorEmail(app *model.ThesisApplication) string {
	for _, link := range app.Supervisors {
		if link.IsSupervisor {
			return link.Teacher.Email
		}
	}
	return ""
}

func trimNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func statusStrings(statuses []lifecycle.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, st.String())
	}
	return out
}

func joinStatuses(statuses []lifecycle.Status) string {
	return strings.Join(statusStrings(statuses), ", ")
}
