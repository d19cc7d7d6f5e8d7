package service

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"thesis-service/internal/model"
	"thesis-service/prometheus"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// sortColumns maps the public sort keys to columns.
var sortColumns = map[string]string{
	"submissiondate": "submission_date",
	"status":         "status",
	"topic":          "topic",
	"id":             "id",
	"studentid":      "student_id",
}

// ListFilter narrows an application listing. Empty fields do not filter.
type ListFilter struct {
	Status           string
	StudentID        string
	ThesisProposalID *uint
}

// Pagination selects the page and ordering of a listing.
type Pagination struct {
	Page    int
	Limit   int
	SortBy  string
	OrderBy string
}

// Page is one page of applications.
type Page struct {
	Page         int
	Limit        int
	TotalItems   int64
	TotalPages   int
	Applications []model.ThesisApplication
}

// List returns one page of applications matching filter. Unknown sort keys
// and directions fall back to id ascending.
func (s *ApplicationService) List(ctx context.Context, filter ListFilter, p Pagination) (*Page, error) {
	defer prometheus.TrackDBOperation("list_applications")(time.Now())

	page, limit := normalizePage(p.Page, p.Limit)
	db := s.db.WithContext(ctx)

	var total int64
	if err := applyFilter(db.Model(&model.ThesisApplication{}), filter).Count(&total).Error; err != nil {
		return nil, err
	}

	apps := []model.ThesisApplication{}
	err := applyFilter(preloadApplication(db), filter).
		Order(orderBy(p.SortBy, p.OrderBy)).
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&apps).Error
	if err != nil {
		return nil, err
	}

	prometheus.RecordApplicationOperation("list")
	return &Page{
		Page:         page,
		Limit:        limit,
		TotalItems:   total,
		TotalPages:   int((total + int64(limit) - 1) / int64(limit)),
		Applications: apps,
	}, nil
}

func applyFilter(db *gorm.DB, filter ListFilter) *gorm.DB {
	if status := strings.ToLower(strings.TrimSpace(filter.Status)); status != "" {
		db = db.Where("status = ?", status)
	}
	if studentID := strings.TrimSpace(filter.StudentID); studentID != "" {
		db = db.Where("student_id = ?", studentID)
	}
	if filter.ThesisProposalID != nil {
		db = db.Where("thesis_proposal_id = ?", *filter.ThesisProposalID)
	}
	return db
}

func orderBy(sortBy, direction string) clause.OrderBy {
	column, ok := sortColumns[strings.ToLower(strings.TrimSpace(sortBy))]
	if !ok {
		column = "id"
	}
	desc := strings.EqualFold(strings.TrimSpace(direction), "DESC")

	columns := []clause.OrderByColumn{{Column: clause.Column{Name: column}, Desc: desc}}
	if column != "id" {
		columns = append(columns, clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	}
	return clause.OrderBy{Columns: columns}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
