package datastore

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
)

// repository implements Repository against either the pooled connection or
// an open transaction.
type repository struct {
	db      *gorm.DB
	dialect string
	metrics *Metrics
	log     logger.Logger
	inTx    bool
	// deferHook queues AfterCommit callbacks; nil runs them immediately
	deferHook func(fn func())
}

func (r *repository) ready() error {
	if r.db == nil {
		return ErrNotInitialized
	}
	return nil
}

// lockingRead reports whether loads should take row locks. SQLite transactions
// already hold the database write lock from BEGIN IMMEDIATE.
func (r *repository) lockingRead() bool {
	return r.inTx && r.dialect != "sqlite"
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func (r *repository) LoadBaseline(ctx context.Context, b Baseline) error {
	if err := r.ready(); err != nil {
		return err
	}

	q := r.db.WithContext(ctx).Where(b.KeyConditions())
	if r.lockingRead() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	if err := q.Take(b).Error; err != nil {
		if isRecordNotFound(err) {
			return notFoundError(ErrBaselineNotFound, "table", b.TableName())
		}
		return dbError(err, "load_baseline", errors.PriorityHigh, "table", b.TableName())
	}
	return nil
}

func (r *repository) InsertBaseline(ctx context.Context, b Baseline) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(b)
	if res.Error != nil {
		if isForeignKeyViolation(res.Error) {
			return false, notFoundError(ErrCameraNotFound, "camera_id", b.KeyConditions()["camera_id"])
		}
		return false, dbError(res.Error, "insert_baseline", errors.PriorityHigh, "table", b.TableName())
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SwapBaseline(ctx context.Context, b Baseline, expectedVersion int64) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}

	meta := b.Meta()
	res := r.db.WithContext(ctx).
		Table(b.TableName()).
		Where("id = ? AND "+columnVersion+" = ?", meta.ID, expectedVersion).
		Updates(map[string]any{
			b.ValueColumn():   b.Value(),
			columnSampleCount: meta.SampleCount,
			columnLastUpdated: meta.LastUpdated,
			columnVersion:     expectedVersion + 1,
		})
	if res.Error != nil {
		return false, dbError(res.Error, "swap_baseline", errors.PriorityHigh,
			"table", b.TableName(),
			"id", meta.ID)
	}
	if res.RowsAffected == 0 {
		if r.metrics != nil {
			r.metrics.RecordTransactionRetry(b.TableName())
		}
		return false, nil
	}

	meta.Version = expectedVersion + 1
	return true, nil
}

func (r *repository) ListActivityBaselines(ctx context.Context, cameraID string) ([]ActivityBaseline, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	var rows []ActivityBaseline
	if err := r.db.WithContext(ctx).
		Where("camera_id = ?", cameraID).
		Order("hour, day_of_week").
		Find(&rows).Error; err != nil {
		return nil, dbError(err, "list_activity_baselines", errors.PriorityMedium, "camera_id", cameraID)
	}
	return rows, nil
}

func (r *repository) ListClassBaselines(ctx context.Context, cameraID string) ([]ClassBaseline, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	var rows []ClassBaseline
	if err := r.db.WithContext(ctx).
		Where("camera_id = ?", cameraID).
		Order("detection_class, hour").
		Find(&rows).Error; err != nil {
		return nil, dbError(err, "list_class_baselines", errors.PriorityMedium, "camera_id", cameraID)
	}
	return rows, nil
}

func (r *repository) ListClassBaselinesByHour(ctx context.Context, cameraID string, hour int) ([]ClassBaseline, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	var rows []ClassBaseline
	if err := r.db.WithContext(ctx).
		Where("camera_id = ? AND hour = ?", cameraID, hour).
		Order("detection_class").
		Find(&rows).Error; err != nil {
		return nil, dbError(err, "list_class_baselines_by_hour", errors.PriorityMedium,
			"camera_id", cameraID,
			"hour", hour)
	}
	return rows, nil
}

func validateCameraID(id string) error {
	if id == "" {
		return validationError("camera id must not be empty", "camera_id", id)
	}
	if len(id) > maxCameraIDLength {
		return validationError(fmt.Sprintf("camera id exceeds %d characters", maxCameraIDLength), "camera_id", id)
	}
	return nil
}

// SaveCamera creates or updates a camera by id
func (r *repository) SaveCamera(ctx context.Context, camera *Camera) error {
	if err := r.ready(); err != nil {
		return err
	}
	if camera == nil {
		return validationError("camera must not be nil", "camera", nil)
	}
	if err := validateCameraID(camera.ID); err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).
		Create(camera).Error; err != nil {
		return dbError(err, "save_camera", errors.PriorityMedium, "camera_id", camera.ID)
	}
	return nil
}

// EnsureCamera creates the camera if it does not exist and leaves it untouched otherwise
func (r *repository) EnsureCamera(ctx context.Context, id, name string) error {
	if err := r.ready(); err != nil {
		return err
	}
	if err := validateCameraID(id); err != nil {
		return err
	}
	if name == "" {
		name = id
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Camera{ID: id, Name: name}).Error; err != nil {
		return dbError(err, "ensure_camera", errors.PriorityMedium, "camera_id", id)
	}
	return nil
}

func (r *repository) GetCamera(ctx context.Context, id string) (*Camera, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	var camera Camera
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&camera).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, notFoundError(ErrCameraNotFound, "camera_id", id)
		}
		return nil, dbError(err, "get_camera", errors.PriorityMedium, "camera_id", id)
	}
	return &camera, nil
}

func (r *repository) ListCameras(ctx context.Context) ([]Camera, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	var cameras []Camera
	if err := r.db.WithContext(ctx).Order("id").Find(&cameras).Error; err != nil {
		return nil, dbError(err, "list_cameras", errors.PriorityMedium)
	}
	return cameras, nil
}

// DeleteCamera removes a camera together with all of its baseline rows
func (r *repository) DeleteCamera(ctx context.Context, id string) error {
	if err := r.ready(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).
		Select(clause.Associations).
		Delete(&Camera{ID: id})
	if res.Error != nil {
		return dbError(res.Error, "delete_camera", errors.PriorityMedium, "camera_id", id)
	}
	if res.RowsAffected == 0 {
		return notFoundError(ErrCameraNotFound, "camera_id", id)
	}

	r.log.Debug("camera deleted", logger.String("camera_id", id))
	return nil
}

func (r *repository) AfterCommit(fn func()) {
	if fn == nil {
		return
	}
	if r.deferHook != nil {
		r.deferHook(fn)
		return
	}
	fn()
}
