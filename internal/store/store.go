// Package store is the device-local persistence layer: the current session,
// theme preference, farm profiles and the detection history.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SchemaVersion is bumped whenever a persisted layout changes.
const SchemaVersion = 1

const (
	keySchemaVersion = "schema_version"
	keyTheme         = "theme"
)

var ErrNotFound = errors.New("not found")

type setting struct {
	Key       string `gorm:"primaryKey;column:setting_key;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (setting) TableName() string { return "app_settings" }

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the timestamp source for created records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New migrates the schema and refuses databases written by a newer schema.
func New(ctx context.Context, db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if err := db.WithContext(ctx).AutoMigrate(&setting{}, &models.Session{}, &models.FarmProfile{}, &models.DetectionRecord{}); err != nil {
		return nil, common.Storage("migrate", err)
	}
	if err := s.checkSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) checkSchema(ctx context.Context) error {
	v, err := s.getSetting(ctx, keySchemaVersion)
	if errors.Is(err, ErrNotFound) {
		return s.putSetting(ctx, keySchemaVersion, strconv.Itoa(SchemaVersion))
	}
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return common.Storage("schema version", fmt.Errorf("unreadable version %q", v))
	}
	if n > SchemaVersion {
		return common.Storage("schema version", fmt.Errorf("store written by schema %d, this build supports %d", n, SchemaVersion))
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Session

func (s *Store) GetSession(ctx context.Context) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).Order("created_at DESC").First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, common.Storage("get session", err)
	}
	return &sess, nil
}

// SetSession makes sess the only current session.
func (s *Store) SetSession(ctx context.Context, sess models.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now().UTC()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return tx.Create(&sess).Error
	})
	return common.Storage("set session", err)
}

func (s *Store) ClearSession(ctx context.Context) error {
	err := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.Session{}).Error
	return common.Storage("clear session", err)
}

// Theme

func (s *Store) GetTheme(ctx context.Context) (models.Theme, error) {
	v, err := s.getSetting(ctx, keyTheme)
	if errors.Is(err, ErrNotFound) {
		return models.ThemeLight, nil
	}
	if err != nil {
		return "", err
	}
	if th, ok := models.ParseTheme(v); ok {
		return th, nil
	}
	return models.ThemeLight, nil
}

func (s *Store) SetTheme(ctx context.Context, theme models.Theme) error {
	th, ok := models.ParseTheme(string(theme))
	if !ok {
		return common.Validation("set theme", "theme must be light or dark")
	}
	return s.putSetting(ctx, keyTheme, string(th))
}

// Profile

func (s *Store) GetProfile(ctx context.Context, ownerID string) (*models.FarmProfile, error) {
	var p models.FarmProfile
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, common.Storage("get profile", err)
	}
	return &p, nil
}

// SaveProfile replaces the stored profile of p.OwnerID with p.
func (s *Store) SaveProfile(ctx context.Context, p models.FarmProfile) error {
	if p.OwnerID == "" {
		return common.Validation("save profile", "profile has no owner")
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&p).Error
	return common.Storage("save profile", err)
}

// Detections

// ListDetections returns the owner's records, newest first.
func (s *Store) ListDetections(ctx context.Context, ownerID string) ([]models.DetectionRecord, error) {
	var out []models.DetectionRecord
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, common.Storage("list detections", err)
	}
	return out, nil
}

func (s *Store) GetDetection(ctx context.Context, ownerID, id string) (*models.DetectionRecord, error) {
	var rec models.DetectionRecord
	err := s.db.WithContext(ctx).Where("owner_id = ? AND id = ?", ownerID, id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, common.Storage("get detection", err)
	}
	return &rec, nil
}

// AppendDetection assigns id and creation time, clamps the confidence score
// and persists the record. Any id or timestamp on rec is ignored.
func (s *Store) AppendDetection(ctx context.Context, rec models.DetectionRecord) (*models.DetectionRecord, error) {
	if rec.OwnerID == "" {
		return nil, common.Validation("append detection", "detection has no owner")
	}
	now := s.now().UTC()
	id, err := common.NewULIDAt(now)
	if err != nil {
		return nil, common.Storage("append detection", err)
	}
	rec.ID = id
	rec.CreatedAt = now
	rec.ConfidenceScore = models.ClampConfidence(rec.ConfidenceScore)

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, common.Storage("append detection", err)
	}
	return &rec, nil
}

// DeleteOwnerData removes the profile and history of one owner.
func (s *Store) DeleteOwnerData(ctx context.Context, ownerID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", ownerID).Delete(&models.DetectionRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("owner_id = ?", ownerID).Delete(&models.FarmProfile{}).Error
	})
	return common.Storage("delete owner data", err)
}

// Reset wipes everything except the schema version.
func (s *Store) Reset(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&models.DetectionRecord{}, &models.FarmProfile{}, &models.Session{}} {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Where("setting_key <> ?", keySchemaVersion).Delete(&setting{}).Error
	})
	return common.Storage("reset", err)
}

func (s *Store) getSetting(ctx context.Context, key string) (string, error) {
	var st setting
	err := s.db.WithContext(ctx).Where("setting_key = ?", key).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", common.Storage("get setting", err)
	}
	return st.Value, nil
}

func (s *Store) putSetting(ctx context.Context, key, value string) error {
	st := setting{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&st).Error
	return common.Storage("put setting", err)
}
