// Package repositories provides data access for the node's persisted state.
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/bbernstein/dmxnet-go/internal/database/models"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
)

// ControllerRepository handles controller history access.
type ControllerRepository struct {
	db *gorm.DB
}

// NewControllerRepository creates a new ControllerRepository.
func NewControllerRepository(db *gorm.DB) *ControllerRepository {
	return &ControllerRepository{db: db}
}

// RecordPoll stores one accepted ArtPoll. The first poll from an IP creates
// the row; later polls refresh the flags and bump PollCount.
func (r *ControllerRepository) RecordPoll(ctx context.Context, poll models.Controller) (*models.Controller, error) {
	var existing models.Controller
	result := r.db.WithContext(ctx).First(&existing, "ip = ?", poll.IP)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		poll.ID = cuid.New()
		poll.FirstSeen = poll.LastPoll
		poll.PollCount = 1
		if err := r.db.WithContext(ctx).Create(&poll).Error; err != nil {
			return nil, err
		}
		return &poll, nil
	} else if result.Error != nil {
		return nil, result.Error
	}

	existing.Family = poll.Family
	existing.LastPoll = poll.LastPoll
	existing.PollCount++
	existing.DiagnosticUnicast = poll.DiagnosticUnicast
	existing.DiagnosticEnable = poll.DiagnosticEnable
	existing.Unilateral = poll.Unilateral
	existing.Priority = poll.Priority
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// FindAll returns every controller, most recently seen first.
func (r *ControllerRepository) FindAll(ctx context.Context) ([]models.Controller, error) {
	var controllers []models.Controller
	result := r.db.WithContext(ctx).
		Order("last_poll DESC").
		Find(&controllers)
	return controllers, result.Error
}

// FindByIP returns the controller with the given IP, or nil.
func (r *ControllerRepository) FindByIP(ctx context.Context, ip string) (*models.Controller, error) {
	var controller models.Controller
	result := r.db.WithContext(ctx).First(&controller, "ip = ?", ip)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &controller, nil
}

// DeleteSeenBefore removes controllers whose last poll is older than cutoff
// and returns how many were removed.
func (r *ControllerRepository) DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("last_poll < ?", cutoff).Delete(&models.Controller{})
	return result.RowsAffected, result.Error
}

// Count returns the number of stored controllers.
func (r *ControllerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Controller{}).Count(&count).Error
	return count, err
}
