package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"deptdesk/internal/model"
	pkgerrors "deptdesk/pkg/errors"
)

// ProfileRepository 教师资料数据访问
type ProfileRepository interface {
	// GetWithUser 加载账号并预加载资料（尚未保存时为 nil）
	GetWithUser(ctx context.Context, userID string) (*model.User, error)
	// Save 在同一事务中更新账号姓名/邮箱并 upsert 资料
	Save(ctx context.Context, user *model.User, profile *model.LecturerProfile) error
}

type profileRepo struct {
	db *gorm.DB
}

// NewProfileRepo 创建 ProfileRepository
func NewProfileRepo(db *gorm.DB) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) GetWithUser(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Profile").
		Where("user_id = ?", userID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *profileRepo) Save(ctx context.Context, user *model.User, profile *model.LecturerProfile) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).
			Where("user_id = ?", user.UserID).
			Updates(map[string]interface{}{
				"name":       user.Name,
				"email":      user.Email,
				"updated_at": gorm.Expr("NOW()"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		profile.UserID = user.UserID
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"title":         profile.Title,
				"department":    profile.Department,
				"qualification": profile.Qualification,
				"phone":         profile.Phone,
				"office":        profile.Office,
				"research":      profile.Research,
				"profile_image": profile.ProfileImage,
				"updated_at":    gorm.Expr("NOW()"),
			}),
		}).Create(profile).Error
	})
	return pkgerrors.TranslateDB(err)
}
