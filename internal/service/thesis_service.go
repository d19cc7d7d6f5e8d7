package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"thesis-service/internal/apperr"
	"thesis-service/internal/model"
	"thesis-service/prometheus"
)

// ThesisService reads theses promoted from accepted applications.
type ThesisService struct {
	db *gorm.DB
}

func NewThesisService(db *gorm.DB) *ThesisService {
	return &ThesisService{db: db}
}

// Get returns the student's most recent thesis.
func (s *ThesisService) Get(ctx context.Context, studentID string) (*model.Thesis, error) {
	defer prometheus.TrackDBOperation("get_thesis")(time.Now())

	var thesis model.Thesis
	err := s.db.WithContext(ctx).
		Preload("Student").
		Preload("Company").
		Preload("Supervisors.Teacher").
		Where("student_id = ?", studentID).
		Order("id DESC").
		First(&thesis).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no thesis found for student")
		}
		return nil, err
	}
	return &thesis, nil
}
