// Package sqlrepo stores the session tokens as rows of a SQLite key/value table.
package sqlrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	ierrors "github.com/jrsteele09/go-moto-client/internal/errors"
	"github.com/jrsteele09/go-moto-client/session"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
)

type entry struct {
	Name      string `gorm:"primaryKey;size:32"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (entry) TableName() string {
	return "client_storage"
}

// Repo is a session.Repo over gorm.
type Repo struct {
	db *gorm.DB
}

var _ session.Repo = (*Repo)(nil)

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Repo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("sqlrepo: create directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: open %s: %w", path, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the storage table.
func New(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("sqlrepo: migrate: %w", err)
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Upsert(tokens session.Tokens) error {
	rows := []entry{
		{Name: accessTokenKey, Value: tokens.Access},
		{Name: refreshTokenKey, Value: tokens.Refresh},
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("sqlrepo: upsert: %w", err)
	}
	return nil
}

func (r *Repo) Get() (session.Tokens, error) {
	var rows []entry
	if err := r.db.Where("name IN ?", []string{accessTokenKey, refreshTokenKey}).Find(&rows).Error; err != nil {
		return session.Tokens{}, fmt.Errorf("sqlrepo: get: %w", err)
	}

	var tokens session.Tokens
	for _, row := range rows {
		switch row.Name {
		case accessTokenKey:
			tokens.Access = row.Value
		case refreshTokenKey:
			tokens.Refresh = row.Value
		}
	}
	if tokens.Access == "" && tokens.Refresh == "" {
		return session.Tokens{}, ierrors.ErrSessionNotFound
	}
	return tokens, nil
}

func (r *Repo) Delete() error {
	err := r.db.Where("name IN ?", []string{accessTokenKey, refreshTokenKey}).Delete(&entry{}).Error
	if err != nil {
		return fmt.Errorf("sqlrepo: delete: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Repo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
