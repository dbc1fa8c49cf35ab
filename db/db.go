package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"robotics_club_services/models"
)

type Options struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string
	Verbose  bool
}

func (o Options) DSN() string {
	ssl := o.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		o.Host, o.User, o.Password, o.Name, o.Port, ssl,
	)
}

// ConnectDB opens the database and brings the schema up to date.
func ConnectDB(o Options) (*gorm.DB, error) {
	level := logger.Warn
	if o.Verbose {
		level = logger.Info
	}
	gdb, err := gorm.Open(postgres.Open(o.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return gdb, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Device{}, &models.BookingRequest{}, &models.Action{}); err != nil {
		return err
	}

	// a request gets at most one decision
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_decision_per_request
	  ON %s (request_id)
	  WHERE action_type IN ('approve', 'reject');
	`, models.ActionTable, models.ActionTable)).Error; err != nil {
		return err
	}

	// and at most one return
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_return_per_request
	  ON %s (request_id)
	  WHERE action_type = 'return';
	`, models.ActionTable, models.ActionTable)).Error; err != nil {
		return err
	}

	// ledger replay reads one device's log in order
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_device_seq
	  ON %s (device_id, seq);
	`, models.ActionTable, models.ActionTable)).Error; err != nil {
		return err
	}

	return db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_device_created_desc
	  ON %s (device_id, created_at DESC);
	`, models.RequestTable, models.RequestTable)).Error
}
