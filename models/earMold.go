package models

import "time"

type EarMold struct {
	ID             uint       `gorm:"primary_key" json:"id"`
	CenterID       uint       `gorm:"not null;index" json:"center_id"`
	Center         Center     `json:"-"`
	PatientName    string     `gorm:"size:100" json:"patient_name"`
	PatientSurname string     `gorm:"size:100" json:"patient_surname"`
	MoldType       string     `gorm:"size:30" json:"mold_type"`
	Status         MoldStatus `gorm:"size:20;not null;index;default:waiting" json:"status"`
	ScanFile       string     `gorm:"size:255" json:"scan_file"`
	QualityScore   *int       `json:"quality_score"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type RevisionRequest struct {
	ID           uint           `gorm:"primary_key" json:"id"`
	CenterID     uint           `gorm:"not null;index" json:"center_id"`
	EarMoldID    *uint          `gorm:"index" json:"ear_mold_id"`
	RevisionType string         `gorm:"size:30" json:"revision_type"`
	Title        string         `gorm:"size:200" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Status       RevisionStatus `gorm:"size:20;not null;index;default:pending" json:"status"`
	Priority     OrderPriority  `gorm:"size:10;not null;default:normal" json:"priority"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
