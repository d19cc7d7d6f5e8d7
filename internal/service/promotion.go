package service

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"thesis-service/internal/lifecycle"
	"thesis-service/internal/model"
	"thesis-service/prometheus"
)

// syncThesis keeps the thesis derived from app in step with its new status.
// Entering accepted promotes the application; the conclusion steps are
// mirrored on the thesis. Must run inside the transition transaction.
func syncThesis(tx *gorm.DB, app *model.ThesisApplication, now time.Time) error {
	switch app.Status {
	case lifecycle.Accepted:
		_, err := promote(tx, app, now)
		return err
	case lifecycle.ConclusionRequested:
		thesis, err := promote(tx, app, now)
		if err != nil {
			return err
		}
		return tx.Model(thesis).Updates(map[string]interface{}{
			"thesis_status":                  model.ThesisConclusionRequested,
			"thesis_conclusion_request_date": now,
		}).Error
	case lifecycle.ConclusionAccepted:
		thesis, err := promote(tx, app, now)
		if err != nil {
			return err
		}
		return tx.Model(thesis).Updates(map[string]interface{}{
			"thesis_status":                       model.ThesisConclusionApproved,
			"thesis_conclusion_confirmation_date": now,
		}).Error
	}
	return nil
}

// promote returns the thesis for app, creating it from the application and its
// supervisor links if it does not exist yet.
func promote(tx *gorm.DB, app *model.ThesisApplication, now time.Time) (*model.Thesis, error) {
	var thesis model.Thesis
	err := tx.Where("thesis_application_id = ?", app.ID).First(&thesis).Error
	if err == nil {
		return &thesis, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	thesis = model.Thesis{
		StudentID:           app.StudentID,
		ThesisApplicationID: app.ID,
		Topic:               app.Topic,
		CompanyID:           app.CompanyID,
		Status:              model.ThesisOngoing,
		StartDate:           now,
	}
	if err := tx.Omit(clause.Associations).Create(&thesis).Error; err != nil {
		return nil, fmt.Errorf("create thesis: %w", err)
	}

	if len(app.Supervisors) > 0 {
		links := make([]model.ThesisSupervisor, 0, len(app.Supervisors))
		for _, l := range app.Supervisors {
			links = append(links, model.ThesisSupervisor{ThesisID: thesis.ID, TeacherID: l.TeacherID, IsSupervisor: l.IsSupervisor})
		}
		if err := tx.Omit(clause.Associations).Create(&links).Error; err != nil {
			return nil, fmt.Errorf("copy thesis supervisors: %w", err)
		}
	}

	prometheus.RecordThesisPromotion()
	return &thesis, nil
}
