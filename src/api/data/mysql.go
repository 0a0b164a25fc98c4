package data

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/concord-assembly/concord/src/api/types"
)

func MustMySQL(dsn string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	return db
}

// Migrate creates or updates the portal schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Country{},
		&types.Treaty{},
		&types.Article{},
		&types.Amendment{},
		&types.Vote{},
		&types.Motion{},
		&types.ModVote{},
		&types.DiscussionThread{},
		&types.DiscussionPost{},
		&types.Sanction{},
		&types.ChairActionLog{},
		&types.Setting{},
	)
}
