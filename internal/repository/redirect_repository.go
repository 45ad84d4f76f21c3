package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quizpath_backend/internal/model"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const redirectCacheTTL = 5 * time.Minute

// RedirectRepository looks up post-attempt content redirects. Lookups are
// cached in redis; authoring writes invalidate by key.
type RedirectRepository struct {
	DB  *gorm.DB
	RDB *redis.Client
}

func NewRedirectRepository(db *gorm.DB, rdb *redis.Client) *RedirectRepository {
	return &RedirectRepository{DB: db, RDB: rdb}
}

func redirectCacheKey(assignmentID uint, level string, sessionID *uint) string {
	if sessionID != nil {
		return fmt.Sprintf("redirect:%d:%s:%d", assignmentID, level, *sessionID)
	}
	return fmt.Sprintf("redirect:%d:%s", assignmentID, level)
}

// Find resolves (assignment, level, optional session). A session-scoped
// redirect wins over an assignment-wide one.
func (r *RedirectRepository) Find(ctx context.Context, assignmentID uint, level string, sessionID *uint) (*model.ContentRedirect, error) {
	key := redirectCacheKey(assignmentID, level, sessionID)

	if r.RDB != nil {
		if cached, err := r.RDB.Get(ctx, key).Result(); err == nil {
			var cr model.ContentRedirect
			if json.Unmarshal([]byte(cached), &cr) == nil {
				return &cr, nil
			}
		}
	}

	var cr model.ContentRedirect
	query := r.DB.Where("assignment_id = ? AND level = ?", assignmentID, level)
	if sessionID != nil {
		query = query.Where("session_id = ? OR session_id IS NULL", *sessionID).
			Order("session_id desc")
	} else {
		query = query.Where("session_id IS NULL")
	}
	if err := query.First(&cr).Error; err != nil {
		return nil, err
	}

	if r.RDB != nil {
		if data, err := json.Marshal(&cr); err == nil {
			r.RDB.Set(ctx, key, data, redirectCacheTTL)
		}
	}

	return &cr, nil
}

func (r *RedirectRepository) Create(ctx context.Context, cr *model.ContentRedirect) error {
	if err := r.DB.Create(cr).Error; err != nil {
		return err
	}
	r.invalidate(ctx, cr)
	return nil
}

func (r *RedirectRepository) Delete(ctx context.Context, id uint) error {
	var cr model.ContentRedirect
	if err := r.DB.First(&cr, id).Error; err != nil {
		return err
	}
	if err := r.DB.Delete(&model.ContentRedirect{}, id).Error; err != nil {
		return err
	}
	r.invalidate(ctx, &cr)
	return nil
}

func (r *RedirectRepository) invalidate(ctx context.Context, cr *model.ContentRedirect) {
	if r.RDB == nil {
		return
	}
	r.RDB.Del(ctx,
		redirectCacheKey(cr.AssignmentID, cr.Level, cr.SessionID),
		redirectCacheKey(cr.AssignmentID, cr.Level, nil),
	)
}
