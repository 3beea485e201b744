package repository

import (
	"gorm.io/gorm"
)

// Active filters soft-deactivated rows (Active flag, not soft-delete)
func Active() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("active = ?", true)
	}
}

// SearchILike applies a case-insensitive substring match over the given
// columns. An empty term leaves the query untouched.
func SearchILike(term string, columns ...string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if term == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + term + "%"
		clause := ""
		args := make([]interface{}, 0, len(columns))
		for i, col := range columns {
			if i > 0 {
				clause += " OR "
			}
			clause += col + " ILIKE ?"
			args = append(args, pattern)
		}
		return db.Where(clause, args...)
	}
}
