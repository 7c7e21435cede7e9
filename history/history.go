// Package history journals finished bulk and metadata runs in a local
// sqlite database so past activity survives across invocations.
package history

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(dbPath string) error {
	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}

	if err := DB.AutoMigrate(&Run{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	return nil
}

type RunStatus string

const (
	StatusSuccess RunStatus = "SUCCESS"
	StatusFailed  RunStatus = "FAILED"
)

// Run is one finished remote job: a bulk ingest, a query, a metadata
// retrieve or deploy.
type Run struct {
	gorm.Model
	JobID     string    `gorm:"not null"`
	Kind      string    `gorm:"not null"` // bulk, query, retrieve, deploy
	Operation string
	Object    string
	Status    RunStatus `gorm:"not null"`
	State     string
	Processed int
	Failed    int
	ErrMsg    string
	RanAt     time.Time `gorm:"not null"`
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Save(run Run) error {
	if run.RanAt.IsZero() {
		run.RanAt = time.Now()
	}

	return DB.Create(&run).Error
}

type Stats struct {
	Total   int64
	Success int64
	Failed  int64
}

func (r *Repository) GetStats() (Stats, error) {
	var stats Stats
	if err := DB.Model(&Run{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	if err := DB.Model(&Run{}).
		Where("status = ?", StatusSuccess).
		Count(&stats.Success).Error; err != nil {
		return stats, err
	}

	stats.Failed = stats.Total - stats.Success
	return stats, nil
}

func (r *Repository) GetRecent(limit int) ([]Run, error) {
	var runs []Run
	result := DB.
		Order("ran_at desc").
		Limit(limit).
		Find(&runs)

	return runs, result.Error
}

func (r *Repository) GetFailed() ([]Run, error) {
	var runs []Run
	result := DB.
		Where("status = ?", StatusFailed).
		Order("ran_at desc").
		Find(&runs)

	return runs, result.Error
}
