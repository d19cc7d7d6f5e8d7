// Package seed loads the student, teacher and proposal registry from a YAML fixture.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"thesis-service/internal/model"
)

type Student struct {
	ID        string `yaml:"id"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Email     string `yaml:"email"`
	Degree    string `yaml:"degree"`
}

type Teacher struct {
	ID        uint   `yaml:"id"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Email     string `yaml:"email"`
	Role      string `yaml:"role"`
	Facility  string `yaml:"facility"`
}

type ThesisProposal struct {
	ID          uint   `yaml:"id"`
	Topic       string `yaml:"topic"`
	Description string `yaml:"description"`
}

type Company struct {
	Name    string  `yaml:"name"`
	Address *string `yaml:"address"`
}

// Fixture is the on-disk registry document.
type Fixture struct {
	Students        []Student        `yaml:"students"`
	Teachers        []Teacher        `yaml:"teachers"`
	ThesisProposals []ThesisProposal `yaml:"thesisProposals"`
	Companies       []Company        `yaml:"companies"`
}

// Counts reports how many rows of each kind were applied.
type Counts struct {
	Students        int
	Teachers        int
	ThesisProposals int
	Companies       int
}

// LoadFile reads and validates a fixture.
func LoadFile(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes a fixture, rejecting unknown keys and rows without ids.
func Parse(raw []byte) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for i, s := range f.Students {
		if s.ID == "" || len(s.ID) > 6 {
			return nil, fmt.Errorf("students[%d]: id must be 1 to 6 characters", i)
		}
	}
	for i, t := range f.Teachers {
		if t.ID == 0 {
			return nil, fmt.Errorf("teachers[%d]: id is required", i)
		}
	}
	for i, p := range f.ThesisProposals {
		if p.ID == 0 {
			return nil, fmt.Errorf("thesisProposals[%d]: id is required", i)
		}
	}
	for i, c := range f.Companies {
		if c.Name == "" {
			return nil, fmt.Errorf("companies[%d]: name is required", i)
		}
	}
	return &f, nil
}

// Apply upserts the fixture in one transaction. Existing rows are overwritten.
func Apply(ctx context.Context, db *gorm.DB, f *Fixture) (Counts, error) {
	var counts Counts
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(f.Students) > 0 {
			rows := make([]model.Student, 0, len(f.Students))
			for _, s := range f.Students {
				rows = append(rows, model.Student{ID: s.ID, FirstName: s.FirstName, LastName: s.LastName, Email: s.Email, Degree: s.Degree})
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
				return fmt.Errorf("students: %w", err)
			}
			counts.Students = len(rows)
		}

		if len(f.Teachers) > 0 {
			rows := make([]model.Teacher, 0, len(f.Teachers))
			for _, t := range f.Teachers {
				rows = append(rows, model.Teacher{ID: t.ID, FirstName: t.FirstName, LastName: t.LastName, Email: t.Email, Role: t.Role, Facility: t.Facility})
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
				return fmt.Errorf("teachers: %w", err)
			}
			counts.Teachers = len(rows)
		}

		if len(f.ThesisProposals) > 0 {
			rows := make([]model.ThesisProposal, 0, len(f.ThesisProposals))
			for _, p := range f.ThesisProposals {
				rows = append(rows, model.ThesisProposal{ID: p.ID, Topic: p.Topic, Description: p.Description})
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
				return fmt.Errorf("thesis proposals: %w", err)
			}
			counts.ThesisProposals = len(rows)
		}

		// Companies have generated ids and are matched by name
		for _, c := range f.Companies {
			company := model.Company{}
			if err := tx.Where(model.Company{Name: c.Name}).Assign(model.Company{Address: c.Address}).FirstOrCreate(&company).Error; err != nil {
				return fmt.Errorf("company %q: %w", c.Name, err)
			}
			counts.Companies++
		}
		return nil
	})
	return counts, err
}
