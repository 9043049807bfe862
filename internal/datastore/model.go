package datastore

import (
	"time"
)

// Table names
const (
	tableCameras            = "cameras"
	tableActivityBaselines  = "activity_baselines"
	tableClassBaselines     = "class_baselines"
	columnAvgCount          = "avg_count"
	columnFrequency         = "frequency"
	columnSampleCount       = "sample_count"
	columnLastUpdated       = "last_updated"
	columnVersion           = "version"
	maxCameraIDLength       = 64
	maxDetectionClassLength = 64
)

// Camera owns every baseline row recorded for it. Deleting a camera cascades.
type Camera struct {
	ID                string             `gorm:"primaryKey;size:64"`
	Name              string             `gorm:"size:255"`
	CreatedAt         time.Time          `gorm:"autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"autoUpdateTime"`
	ActivityBaselines []ActivityBaseline `gorm:"foreignKey:CameraID;constraint:OnDelete:CASCADE"`
	ClassBaselines    []ClassBaseline    `gorm:"foreignKey:CameraID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name
func (Camera) TableName() string { return tableCameras }

// Aggregate holds the bookkeeping columns shared by both baseline stores.
// Version increments on every write and guards compare-and-swap updates.
type Aggregate struct {
	ID          uint      `gorm:"primaryKey"`
	SampleCount int64     `gorm:"not null;default:0"`
	LastUpdated time.Time `gorm:"not null"`
	Version     int64     `gorm:"not null;default:1"`
}

// ActivityBaseline is the decayed activity average for one camera, hour and weekday.
type ActivityBaseline struct {
	Aggregate
	CameraID  string  `gorm:"size:64;not null;uniqueIndex:idx_activity_key,priority:1"`
	Hour      int     `gorm:"not null;uniqueIndex:idx_activity_key,priority:2"`
	DayOfWeek int     `gorm:"not null;uniqueIndex:idx_activity_key,priority:3"`
	AvgCount  float64 `gorm:"not null;default:0"`
}

// TableName overrides the table name
func (ActivityBaseline) TableName() string { return tableActivityBaselines }

// ClassBaseline is the decayed frequency of one detection class for a camera and hour.
type ClassBaseline struct {
	Aggregate
	CameraID       string  `gorm:"size:64;not null;uniqueIndex:idx_class_key,priority:1;index:idx_class_camera_hour,priority:1"`
	DetectionClass string  `gorm:"size:64;not null;uniqueIndex:idx_class_key,priority:2"`
	Hour           int     `gorm:"not null;uniqueIndex:idx_class_key,priority:3;index:idx_class_camera_hour,priority:2"`
	Frequency      float64 `gorm:"not null;default:0"`
}

// TableName overrides the table name
func (ClassBaseline) TableName() string { return tableClassBaselines }

// Baseline is implemented by both baseline stores so that one fold routine
// can load, insert and swap either kind of row.
type Baseline interface {
	TableName() string
	// KeyConditions returns the composite unique key as column conditions.
	// A map keeps zero values such as hour 0 in the WHERE clause.
	KeyConditions() map[string]any
	// ValueColumn names the EWMA column.
	ValueColumn() string
	Value() float64
	SetValue(v float64)
	Meta() *Aggregate
}

// NewActivityKey returns an ActivityBaseline carrying only its key.
func NewActivityKey(cameraID string, hour, dayOfWeek int) *ActivityBaseline {
	return &ActivityBaseline{CameraID: cameraID, Hour: hour, DayOfWeek: dayOfWeek}
}

func (b *ActivityBaseline) KeyConditions() map[string]any {
	return map[string]any{"camera_id": b.CameraID, "hour": b.Hour, "day_of_week": b.DayOfWeek}
}

func (b *ActivityBaseline) ValueColumn() string { return columnAvgCount }
func (b *ActivityBaseline) Value() float64      { return b.AvgCount }
func (b *ActivityBaseline) SetValue(v float64)  { b.AvgCount = v }
func (b *ActivityBaseline) Meta() *Aggregate    { return &b.Aggregate }

// NewClassKey returns a ClassBaseline carrying only its key.
func NewClassKey(cameraID, detectionClass string, hour int) *ClassBaseline {
	return &ClassBaseline{CameraID: cameraID, DetectionClass: detectionClass, Hour: hour}
}

func (b *ClassBaseline) KeyConditions() map[string]any {
	return map[string]any{"camera_id": b.CameraID, "detection_class": b.DetectionClass, "hour": b.Hour}
}

func (b *ClassBaseline) ValueColumn() string { return columnFrequency }
func (b *ClassBaseline) Value() float64      { return b.Frequency }
func (b *ClassBaseline) SetValue(v float64)  { b.Frequency = v }
func (b *ClassBaseline) Meta() *Aggregate    { return &b.Aggregate }
