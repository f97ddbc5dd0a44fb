// Package service holds the application's business rules, one service per
// aggregate, each depending only on repository interfaces.
package service

import (
	"context"

	"agora/internal/models"
	"agora/internal/repository"
)

type PostService struct {
	postRepo repository.PostRepository
	isAdmin  func(ctx context.Context, userID uint) (bool, error)
}

type CreatePostInput struct {
	UserID      uint
	Title       string
	Description string
	ImageURL    string
}

type ListPostsInput struct {
	Sort   string
	Limit  int
	Offset int
}

type UpdatePostInput struct {
	UserID      uint
	PostID      uint
	Title       string
	Description string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(
	postRepo repository.PostRepository,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *PostService {
	return &PostService{
		postRepo: postRepo,
		isAdmin:  isAdmin,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.Title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if in.Description == "" {
		return nil, models.NewValidationError("Description is required")
	}

	post := &models.Post{
		Title:       in.Title,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		UserID:      in.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	sort := in.Sort
	if sort == "" {
		sort = repository.SortNewest
	}
	if sort != repository.SortNewest && sort != repository.SortOldest {
		return nil, models.NewValidationError("Invalid sort order")
	}

	limit := in.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := in.Offset
	if offset < 0 {
		offset = 0
	}

	return s.postRepo.List(ctx, sort, limit, offset)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	if err := s.requireOwnerOrAdmin(ctx, post.UserID, in.UserID, "You can only update your own posts"); err != nil {
		return nil, err
	}

	if in.Title != "" {
		post.Title = in.Title
	}
	if in.Description != "" {
		post.Description = in.Description
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, in.PostID)
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return err
	}

	if err := s.requireOwnerOrAdmin(ctx, post.UserID, in.UserID, "You can only delete your own posts"); err != nil {
		return err
	}

	return s.postRepo.Delete(ctx, in.PostID)
}

// requireOwnerOrAdmin gates mutations on the acting user owning the resource,
// with an admin override when an isAdmin check is wired in.
func (s *PostService) requireOwnerOrAdmin(ctx context.Context, ownerID, actorID uint, message string) error {
	if ownerID == actorID {
		return nil
	}
	if s.isAdmin == nil {
		return models.NewForbiddenError(message)
	}
	admin, err := s.isAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewForbiddenError(message)
	}
	return nil
}
