package model

import "time"

// ThesisStatus tracks an ongoing thesis after its application was accepted.
type ThesisStatus string

const (
	ThesisOngoing             ThesisStatus = "ongoing"
	ThesisConclusionRequested ThesisStatus = "conclusion_requested"
	ThesisConclusionApproved  ThesisStatus = "conclusion_approved"
	ThesisConclusionRejected  ThesisStatus = "conclusion_rejected"
)

// Thesis is created from an accepted application.
type Thesis struct {
	ID                         uint         `json:"id" gorm:"primaryKey"`
	StudentID                  string       `json:"student_id" gorm:"type:varchar(6);not null;index"`
	ThesisApplicationID        uint         `json:"thesis_application_id" gorm:"not null;uniqueIndex"`
	Topic                      string       `json:"topic" gorm:"type:varchar(255);not null"`
	CompanyID                  *uint        `json:"company_id"`
	Status                     ThesisStatus `json:"thesis_status" gorm:"column:thesis_status;type:varchar(32);not null;default:ongoing"`
	StartDate                  time.Time    `json:"thesis_start_date" gorm:"column:thesis_start_date;not null"`
	ConclusionRequestDate      *time.Time   `json:"thesis_conclusion_request_date" gorm:"column:thesis_conclusion_request_date"`
	ConclusionConfirmationDate *time.Time   `json:"thesis_conclusion_confirmation_date" gorm:"column:thesis_conclusion_confirmation_date"`

	// Relations
	Student     Student            `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Company     *Company           `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
	Supervisors []ThesisSupervisor `json:"supervisors,omitempty" gorm:"foreignKey:ThesisID"`
}

func (Thesis) TableName() string {
	return "thesis"
}

// ThesisSupervisor mirrors SupervisorLink for a promoted thesis.
type ThesisSupervisor struct {
	ThesisID     uint `json:"thesis_id" gorm:"primaryKey;autoIncrement:false"`
	TeacherID    uint `json:"teacher_id" gorm:"primaryKey;autoIncrement:false"`
	IsSupervisor bool `json:"is_supervisor" gorm:"not null;default:false"`

	Teacher Teacher `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
}

func (ThesisSupervisor) TableName() string {
	return "thesis_supervisor_cosupervisor"
}
