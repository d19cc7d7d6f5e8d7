package model

import (
	"time"

	"thesis-service/internal/lifecycle"
)

// ThesisApplication is a student's request to undertake a thesis.
type ThesisApplication struct {
	ID                     uint             `json:"id" gorm:"primaryKey"`
	StudentID              string           `json:"student_id" gorm:"type:varchar(6);not null;index"`
	ThesisProposalID       *uint            `json:"thesis_proposal_id" gorm:"index"`
	Topic                  string           `json:"topic" gorm:"type:varchar(255);not null"`
	SubmissionDate         time.Time        `json:"submission_date" gorm:"not null"`
	Status                 lifecycle.Status `json:"status" gorm:"type:varchar(32);not null;default:pending;index"`
	CompanyID              *uint            `json:"company_id" gorm:"index"`
	IsEmbargo              *bool            `json:"is_embargo"`
	RequestConclusion      *time.Time       `json:"request_conclusion"`
	ConclusionConfirmation *time.Time       `json:"conclusion_confirmation"`

	// Relations
	Student        Student          `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Company        *Company         `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
	ThesisProposal *ThesisProposal  `json:"thesis_proposal,omitempty" gorm:"foreignKey:ThesisProposalID"`
	Supervisors    []SupervisorLink `json:"supervisors,omitempty" gorm:"foreignKey:ThesisApplicationID"`
}

func (ThesisApplication) TableName() string {
	return "thesis_application"
}

// SupervisorLink ties a teacher to an application. Exactly one link per
// application carries IsSupervisor; the others are co-supervisors. Where the
// dialect supports partial indexes, SingleSupervisorIndex enforces this.
type SupervisorLink struct {
	ThesisApplicationID uint `json:"thesis_application_id" gorm:"primaryKey;autoIncrement:false"`
	TeacherID           uint `json:"teacher_id" gorm:"primaryKey;autoIncrement:false"`
	IsSupervisor        bool `json:"is_supervisor" gorm:"not null;default:false"`

	Teacher Teacher `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
}

func (SupervisorLink) TableName() string {
	return "thesis_application_supervisor"
}

// StatusHistoryEntry is one row of the append-only status audit log.
// OldStatus is nil for the entry written when the application is created.
type StatusHistoryEntry struct {
	ID                  uint              `json:"id" gorm:"primaryKey"`
	ThesisApplicationID uint              `json:"thesis_application_id" gorm:"not null;index"`
	OldStatus           *lifecycle.Status `json:"old_status" gorm:"type:varchar(32)"`
	NewStatus           lifecycle.Status  `json:"new_status" gorm:"type:varchar(32);not null"`
	Note                *string           `json:"note" gorm:"type:text"`
	ChangeDate          time.Time         `json:"change_date" gorm:"not null"`
}

func (StatusHistoryEntry) TableName() string {
	return "thesis_application_status_history"
}

// SingleSupervisorIndex is the partial unique index allowing one supervisor per application.
const SingleSupervisorIndex = "CREATE UNIQUE INDEX IF NOT EXISTS idx_thesis_application_single_supervisor " +
	"ON thesis_application_supervisor (thesis_application_id) WHERE is_supervisor = true"
