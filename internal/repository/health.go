package repository

import (
	"time"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"gorm.io/gorm"
)

// SystemHealthRepositoryImpl implements SystemHealthRepository
type SystemHealthRepositoryImpl struct {
	db *gorm.DB
}

func NewSystemHealthRepository(db *gorm.DB) models.SystemHealthRepository {
	return &SystemHealthRepositoryImpl{db: db}
}

func (r *SystemHealthRepositoryImpl) UpdateServiceHealth(serviceName, status string, responseTime int, errorMsg string) error {
	return r.db.Create(&models.SystemHealth{
		ServiceName:    serviceName,
		Status:         status,
		ResponseTimeMs: responseTime,
		ErrorMessage:   errorMsg,
		CheckedAt:      time.Now(),
	}).Error
}

// GetAllServicesHealth returns the latest check per service
func (r *SystemHealthRepositoryImpl) GetAllServicesHealth() ([]models.SystemHealth, error) {
	var health []models.SystemHealth
	latest := r.db.Model(&models.SystemHealth{}).
		Select("MAX(id)").
		Group("service_name")
	err := r.db.Where("id IN (?)", latest).
		Order("service_name").
		Find(&health).Error
	return health, err
}
