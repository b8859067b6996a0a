package session

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store keys. Tokens live under their own fixed keys, separate from the
// profile values, matching how the app kept them in platform storage.
const (
	KeyUserID       = "user_id"
	KeyLanguage     = "language"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// Setting is one persisted key-value row.
type Setting struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string `gorm:"type:text"`
}

func (Setting) TableName() string {
	return "settings"
}

// Store is the sqlite-backed key-value store surviving process restarts.
type Store struct {
	db *gorm.DB
}

// Open creates the store file (and its directory) if needed and migrates the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	// Reading an absent key is the normal empty-session case, not an error
	// worth a trace.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.New(log.New(os.Stderr, "", log.LstdFlags), logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Setting{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Get returns the stored value for key, or "" when the key is absent.
func (s *Store) Get(key string) (string, error) {
	var row Setting
	err := s.db.First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

// Set writes key unconditionally, inserting or replacing.
func (s *Store) Set(key, value string) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Key: key, Value: value}).Error
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	return s.db.Delete(&Setting{}, "key = ?", key).Error
}
