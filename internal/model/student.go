package model

// Student is a read-only reference record loaded from the registry fixture.
type Student struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(6)"`
	FirstName string `json:"first_name" gorm:"type:varchar(100);not null"`
	LastName  string `json:"last_name" gorm:"type:varchar(100);not null"`
	Email     string `json:"email" gorm:"type:varchar(100)"`
	Degree    string `json:"degree" gorm:"type:varchar(100)"`
}

func (Student) TableName() string {
	return "student"
}
