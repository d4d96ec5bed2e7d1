package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"telecopy/internal/model"
)

var errJobNotFound = errors.New("job not found")

// JobRecord is the stub's persisted job row. The real service owns this
// shape; the stub only needs enough of it to serve the client API.
type JobRecord struct {
	ID             string `gorm:"primaryKey"`
	Owner          string `gorm:"index;not null"`
	SourceChannel  string `gorm:"not null"`
	TargetChannel  string `gorm:"not null"`
	Status         string `gorm:"not null"`
	RealTime       bool
	CopyMedia      bool
	MessagesCopied int
	MessagesFailed int
	ErrorMessage   string
	StatusMessage  string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

func (JobRecord) TableName() string {
	return "jobs"
}

func (r JobRecord) toJob() model.Job {
	return model.Job{
		ID:             r.ID,
		Owner:          r.Owner,
		SourceChannel:  r.SourceChannel,
		TargetChannel:  r.TargetChannel,
		Status:         model.JobStatus(r.Status),
		RealTime:       r.RealTime,
		CopyMedia:      r.CopyMedia,
		MessagesCopied: r.MessagesCopied,
		MessagesFailed: r.MessagesFailed,
		ErrorMessage:   r.ErrorMessage,
		StatusMessage:  r.StatusMessage,
		CreatedAt:      r.CreatedAt,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
	}
}

type Store struct {
	db *gorm.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.AutoMigrate(&JobRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Create(rec *JobRecord) error {
	return s.db.Create(rec).Error
}

func (s *Store) ByOwner(owner string) ([]JobRecord, error) {
	var recs []JobRecord
	err := s.db.Where("owner = ?", owner).Order("created_at desc").Find(&recs).Error
	return recs, err
}

func (s *Store) ByID(id string) (JobRecord, error) {
	var rec JobRecord
	err := s.db.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return JobRecord{}, errJobNotFound
	}
	return rec, err
}

func (s *Store) NonTerminal() ([]JobRecord, error) {
	var recs []JobRecord
	err := s.db.
		Where("status IN ?", []string{
			string(model.JobStatusPending),
			string(model.JobStatusRunning),
			string(model.JobStatusPaused),
		}).
		Find(&recs).Error
	return recs, err
}

func (s *Store) Update(rec JobRecord) error {
	return s.db.Save(&rec).Error
}
