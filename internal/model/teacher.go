package model

// Teacher is a read-only reference record. Teachers supervise applications and theses.
type Teacher struct {
	ID        uint   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	FirstName string `json:"first_name" gorm:"type:varchar(100);not null"`
	LastName  string `json:"last_name" gorm:"type:varchar(100);not null"`
	Email     string `json:"email" gorm:"type:varchar(100)"`
	Role      string `json:"role" gorm:"type:varchar(50)"`
	Facility  string `json:"facility" gorm:"type:varchar(100)"`
}

func (Teacher) TableName() string {
	return "teacher"
}
