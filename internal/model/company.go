package model

// Company hosts an external thesis. Rows are found or created by name at intake.
type Company struct {
	ID      uint    `json:"id" gorm:"primaryKey"`
	Name    string  `json:"name" gorm:"type:varchar(100);not null;uniqueIndex"`
	Address *string `json:"address" gorm:"type:varchar(255)"`
}

func (Company) TableName() string {
	return "company"
}
