package models

import (
	"log"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Analyst{}, &Store{},
		&ShiftProfile{}, &DayOverride{},
		&Assignment{},
		&DailyQuota{},
		&StoreAudit{}, &StoreAuditItem{},
		&Issue{}, &IssueEvent{},
		&WeeklyKPI{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
