package domain

import "time"

// Class is the part of a class record the relay needs.
type Class struct {
	ID      string   `json:"id"`
	OwnerID string   `json:"owner_id"`
	Members []string `json:"members"`
}

// HasMember reports whether userID is enrolled. The owner is not implied.
func (c *Class) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// ClassModel is the GORM model for the classes table. The relay only reads it.
type ClassModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Name      string    `gorm:"type:varchar(200);not null"`
	OwnerID   string    `gorm:"type:varchar(36);index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ClassModel.
func (ClassModel) TableName() string {
	return "classes"
}

// ClassMemberModel is the GORM model for the class_members join table.
type ClassMemberModel struct {
	ClassID  string    `gorm:"type:varchar(36);primaryKey"`
	UserID   string    `gorm:"type:varchar(36);primaryKey;index"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ClassMemberModel.
func (ClassMemberModel) TableName() string {
	return "class_members"
}
