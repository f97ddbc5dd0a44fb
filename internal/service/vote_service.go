package service

import (
	"context"

	"agora/internal/cache"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
)

// VoteService fronts the vote ledger. All counter movement happens inside the
// repository transaction; the service validates input, keeps the cache honest
// and records transition metrics.
type VoteService struct {
	voteRepo repository.VoteRepository
	postRepo repository.PostRepository
}

type CastVoteInput struct {
	UserID uint
	PostID uint
	Kind   models.VoteKind
}

// VoteResult is the state returned to the caller after a cast: the vote as
// stored plus the post's counters from the same consistent view.
type VoteResult struct {
	Vote      *models.Vote      `json:"vote"`
	Aggregate *models.Aggregate `json:"aggregate"`
	Outcome   string            `json:"outcome"`
}

func NewVoteService(voteRepo repository.VoteRepository, postRepo repository.PostRepository) *VoteService {
	return &VoteService{
		voteRepo: voteRepo,
		postRepo: postRepo,
	}
}

func (s *VoteService) CastVote(ctx context.Context, in CastVoteInput) (*VoteResult, error) {
	if !in.Kind.Valid() {
		return nil, models.NewValidationError("Vote kind must be 'upvote' or 'downvote'")
	}
	if _, err := s.postRepo.GetByID(ctx, in.PostID); err != nil {
		return nil, err
	}

	vote, outcome, err := s.voteRepo.Cast(ctx, in.PostID, in.UserID, in.Kind)
	if err != nil {
		return nil, err
	}
	middleware.VoteTransitions.WithLabelValues(string(outcome)).Inc()

	if outcome != repository.VoteUnchanged {
		cache.InvalidatePost(ctx, in.PostID)
		cache.InvalidatePostsList(ctx)
	}

	agg, err := s.voteRepo.GetAggregate(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	return &VoteResult{Vote: vote, Aggregate: agg, Outcome: string(outcome)}, nil
}

// GetUserVote reports the user's current vote on a post, VoteNone when the
// user has never voted.
func (s *VoteService) GetUserVote(ctx context.Context, postID, userID uint) (models.VoteKind, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return "", err
	}
	vote, err := s.voteRepo.GetByPostAndUser(ctx, postID, userID)
	if err != nil {
		return "", err
	}
	if vote == nil {
		return models.VoteNone, nil
	}
	return vote.Kind, nil
}

func (s *VoteService) GetAggregate(ctx context.Context, postID uint) (*models.Aggregate, error) {
	return s.voteRepo.GetAggregate(ctx, postID)
}

// Reconcile recomputes a post's counters from its vote rows. Admin-only
// repair path; the HTTP layer enforces the gate.
func (s *VoteService) Reconcile(ctx context.Context, postID uint) (*models.Aggregate, error) {
	agg, err := s.voteRepo.Recount(ctx, postID)
	if err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, postID)
	cache.InvalidatePostsList(ctx)
	return agg, nil
}
