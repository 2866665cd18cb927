package specification

import "gorm.io/gorm"

type ByCategory struct {
	Category string
}

func (s ByCategory) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("category = ?", s.Category)
}

// VisibleTo matches the user's own documents and shared ones.
type VisibleTo struct {
	UserID string
}

func (s VisibleTo) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ? OR user_id = ''", s.UserID)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}
