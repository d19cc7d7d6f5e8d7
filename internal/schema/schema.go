// Package schema shapes storage rows into the camelCase documents returned by the API.
package schema

import (
	"sort"
	"time"

	"thesis-service/internal/model"
)

type Student struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Degree    string `json:"degree,omitempty"`
}

type Teacher struct {
	ID        uint   `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
	Facility  string `json:"facility,omitempty"`
}

type Company struct {
	ID      uint    `json:"id"`
	Name    string  `json:"name"`
	Address *string `json:"address"`
}

type ThesisProposal struct {
	ID          uint   `json:"id"`
	Topic       string `json:"topic"`
	Description string `json:"description,omitempty"`
}

type ThesisApplication struct {
	ID                     uint            `json:"id"`
	Topic                  string          `json:"topic"`
	Status                 string          `json:"status"`
	SubmissionDate         time.Time       `json:"submissionDate"`
	IsEmbargo              *bool           `json:"isEmbargo"`
	RequestConclusion      *time.Time      `json:"requestConclusion"`
	ConclusionConfirmation *time.Time      `json:"conclusionConfirmation"`
	Student                *Student        `json:"student,omitempty"`
	Company                *Company        `json:"company"`
	ThesisProposal         *ThesisProposal `json:"thesisProposal"`
	Supervisor             *Teacher        `json:"supervisor"`
	CoSupervisors          []Teacher       `json:"coSupervisors"`
}

type StatusHistoryEntry struct {
	ID         uint      `json:"id"`
	OldStatus  *string   `json:"oldStatus"`
	NewStatus  string    `json:"newStatus"`
	Note       *string   `json:"note"`
	ChangeDate time.Time `json:"changeDate"`
}

type Thesis struct {
	ID                               uint       `json:"id"`
	Topic                            string     `json:"topic"`
	Status                           string     `json:"status"`
	ThesisApplicationID              uint       `json:"thesisApplicationId"`
	Student                          *Student   `json:"student"`
	Supervisor                       *Teacher   `json:"supervisor"`
	CoSupervisors                    []Teacher  `json:"coSupervisors"`
	Company                          *Company   `json:"company"`
	ThesisStartDate                  time.Time  `json:"thesisStartDate"`
	ThesisConclusionRequestDate      *time.Time `json:"thesisConclusionRequestDate"`
	ThesisConclusionConfirmationDate *time.Time `json:"thesisConclusionConfirmationDate"`
}

// ApplicationPage is one page of a filtered application listing.
type ApplicationPage struct {
	Page         int                 `json:"page"`
	Limit        int                 `json:"limit"`
	TotalItems   int64               `json:"totalItems"`
	TotalPages   int                 `json:"totalPages"`
	Applications []ThesisApplication `json:"applications"`
}

func FromStudent(s model.Student) *Student {
	if s.ID == "" {
		return nil
	}
	return &Student{
		ID:        s.ID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
		Degree:    s.Degree,
	}
}

func FromTeacher(t model.Teacher) Teacher {
	return Teacher{
		ID:        t.ID,
		FirstName: t.FirstName,
		LastName:  t.LastName,
		Email:     t.Email,
		Role:      t.Role,
		Facility:  t.Facility,
	}
}

func FromCompany(c *model.Company) *Company {
	if c == nil {
		return nil
	}
	return &Company{ID: c.ID, Name: c.Name, Address: c.Address}
}

func FromThesisProposal(p *model.ThesisProposal) *ThesisProposal {
	if p == nil {
		return nil
	}
	return &ThesisProposal{ID: p.ID, Topic: p.Topic, Description: p.Description}
}

// FromApplication shapes an application loaded with its relations.
func FromApplication(app model.ThesisApplication) ThesisApplication {
	out := ThesisApplication{
		ID:                     app.ID,
		Topic:                  app.Topic,
		Status:                 app.Status.String(),
		SubmissionDate:         app.SubmissionDate,
		IsEmbargo:              app.IsEmbargo,
		RequestConclusion:      app.RequestConclusion,
		ConclusionConfirmation: app.ConclusionConfirmation,
		Student:                FromStudent(app.Student),
		Company:                FromCompany(app.Company),
		ThesisProposal:         FromThesisProposal(app.ThesisProposal),
		CoSupervisors:          []Teacher{},
	}
	for _, link := range app.Supervisors {
		teacher := FromTeacher(link.Teacher)
		if teacher.ID == 0 {
			teacher.ID = link.TeacherID
		}
		if link.IsSupervisor {
			out.Supervisor = &teacher
			continue
		}
		out.CoSupervisors = append(out.CoSupervisors, teacher)
	}
	sortTeachers(out.CoSupervisors)
	return out
}

func FromApplications(apps []model.ThesisApplication) []ThesisApplication {
	out := make([]ThesisApplication, 0, len(apps))
	for _, app := range apps {
		out = append(out, FromApplication(app))
	}
	return out
}

func FromHistory(entries []model.StatusHistoryEntry) []StatusHistoryEntry {
	out := make([]StatusHistoryEntry, 0, len(entries))
	for _, e := range entries {
		var old *string
		if e.OldStatus != nil {
			s := e.OldStatus.String()
			old = &s
		}
		out = append(out, StatusHistoryEntry{
			ID:         e.ID,
			OldStatus:  old,
			NewStatus:  e.NewStatus.String(),
			Note:       e.Note,
			ChangeDate: e.ChangeDate,
		})
	}
	return out
}

// FromThesis shapes a thesis loaded with its relations.
func FromThesis(t model.Thesis) Thesis {
	out := Thesis{
		ID:                               t.ID,
		Topic:                            t.Topic,
		Status:                           string(t.Status),
		ThesisApplicationID:              t.ThesisApplicationID,
		Student:                          FromStudent(t.Student),
		Company:                          FromCompany(t.Company),
		CoSupervisors:                    []Teacher{},
		ThesisStartDate:                  t.StartDate,
		ThesisConclusionRequestDate:      t.ConclusionRequestDate,
		ThesisConclusionConfirmationDate: t.ConclusionConfirmationDate,
	}
	for _, link := range t.Supervisors {
		teacher := FromTeacher(link.Teacher)
		if teacher.ID == 0 {
			teacher.ID = link.TeacherID
		}
		if link.IsSupervisor {
			out.Supervisor = &teacher
			continue
		}
		out.CoSupervisors = append(out.CoSupervisors, teacher)
	}
	sortTeachers(out.CoSupervisors)
	return out
}

func sortTeachers(teachers []Teacher) {
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].ID < teachers[j].ID })
}
