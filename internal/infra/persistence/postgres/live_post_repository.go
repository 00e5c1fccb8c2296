package postgres

import (
	"context"
	"time"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/repository"
	"hotspot/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// livePostRepository implements the repository.LivePostRepository interface.
type livePostRepository struct {
	db *gorm.DB
}

// NewLivePostRepository is the constructor for livePostRepository.
func NewLivePostRepository(db *gorm.DB) repository.LivePostRepository {
	return &livePostRepository{db: db}
}

// CreateLivePost persists a new post.
func (repo *livePostRepository) CreateLivePost(ctx context.Context, post *entity.LivePost) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	postM := fromLivePostDomain(post)

	if err := repo.db.WithContext(ctx).Create(postM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicate
		}

		return errors.Wrap(err, "failed to create live post")
	}

	post.CreatedAt = postM.CreatedAt
	post.UpdatedAt = postM.UpdatedAt

	return nil
}

// UpdateLivePostContent changes the content of a post. CreatedAt is never touched.
func (repo *livePostRepository) UpdateLivePostContent(ctx context.Context, id uuid.UUID, content string) (*entity.LivePost, error) {
	var postM model.LivePostModel

	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.LivePostModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"content": content, "updated_at": now()})
		if result.Error != nil {
			return errors.Wrap(result.Error, "failed to update live post")
		}
		if result.RowsAffected == 0 {
			return repository.ErrNotFound
		}

		return tx.Where("id = ?", id).First(&postM).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}

		return nil, err
	}

	return toLivePostDomain(&postM), nil
}

// DeleteLivePost removes a post.
func (repo *livePostRepository) DeleteLivePost(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&model.LivePostModel{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete live post")
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// FindLivePostByID retrieves a post by its unique ID.
func (repo *livePostRepository) FindLivePostByID(ctx context.Context, id uuid.UUID) (*entity.LivePost, error) {
	var postM model.LivePostModel

	if err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&postM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}

		return nil, errors.Wrap(err, "failed to find live post by ID")
	}

	return toLivePostDomain(&postM), nil
}

// FindLivePostsSince lists posts created after since, newest first.
func (repo *livePostRepository) FindLivePostsSince(ctx context.Context, since time.Time) ([]*entity.LivePost, error) {
	var postModels []*model.LivePostModel

	if err := repo.db.WithContext(ctx).
		Where("created_at > ?", since.UTC()).
		Order("created_at DESC").
		Find(&postModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find live posts")
	}

	posts := make([]*entity.LivePost, 0, len(postModels))
	for _, postM := range postModels {
		posts = append(posts, toLivePostDomain(postM))
	}

	return posts, nil
}

func toLivePostDomain(data *model.LivePostModel) *entity.LivePost {
	if data == nil {
		return nil
	}

	return &entity.LivePost{
		ID:        data.ID,
		UserID:    data.UserID,
		PlaceID:   data.PlaceID,
		Content:   data.Content,
		CreatedAt: data.CreatedAt.UTC(),
		UpdatedAt: data.UpdatedAt.UTC(),
	}
}

func fromLivePostDomain(data *entity.LivePost) *model.LivePostModel {
	if data == nil {
		return nil
	}

	return &model.LivePostModel{
		ID:        data.ID,
		UserID:    data.UserID,
		PlaceID:   data.PlaceID,
		Content:   data.Content,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}
