package model

// ThesisProposal is a topic published by a teacher that an application may refer to.
type ThesisProposal struct {
	ID          uint   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Topic       string `json:"topic" gorm:"type:varchar(255);not null"`
	Description string `json:"description" gorm:"type:text"`
}

func (ThesisProposal) TableName() string {
	return "thesis_proposal"
}
