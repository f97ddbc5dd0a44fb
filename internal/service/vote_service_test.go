package service

import (
	"context"
	"testing"

	"agora/internal/models"
	"agora/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// voteRepoStub is a stub for repository.VoteRepository.
type voteRepoStub struct {
	castFn             func(context.Context, uint, uint, models.VoteKind) (*models.Vote, repository.VoteOutcome, error)
	getByPostAndUserFn func(context.Context, uint, uint) (*models.Vote, error)
	getAggregateFn     func(context.Context, uint) (*models.Aggregate, error)
	recountFn          func(context.Context, uint) (*models.Aggregate, error)
}

func (s *voteRepoStub) Cast(ctx context.Context, postID, userID uint, kind models.VoteKind) (*models.Vote, repository.VoteOutcome, error) {
	return s.castFn(ctx, postID, userID, kind)
}
func (s *voteRepoStub) GetByPostAndUser(ctx context.Context, postID, userID uint) (*models.Vote, error) {
	return s.getByPostAndUserFn(ctx, postID, userID)
}
func (s *voteRepoStub) GetAggregate(ctx context.Context, postID uint) (*models.Aggregate, error) {
	return s.getAggregateFn(ctx, postID)
}
func (s *voteRepoStub) Recount(ctx context.Context, postID uint) (*models.Aggregate, error) {
	return s.recountFn(ctx, postID)
}

func noopVoteRepo() *voteRepoStub {
	return &voteRepoStub{
		castFn: func(_ context.Context, postID, userID uint, kind models.VoteKind) (*models.Vote, repository.VoteOutcome, error) {
			return &models.Vote{PostID: postID, UserID: userID, Kind: kind}, repository.VoteCreated, nil
		},
		getByPostAndUserFn: func(_ context.Context, _, _ uint) (*models.Vote, error) { return nil, nil },
		getAggregateFn: func(_ context.Context, _ uint) (*models.Aggregate, error) {
			return &models.Aggregate{}, nil
		},
		recountFn: func(_ context.Context, _ uint) (*models.Aggregate, error) {
			return &models.Aggregate{}, nil
		},
	}
}

func TestVoteService_CastVote(t *testing.T) {
	voteRepo := noopVoteRepo()
	voteRepo.getAggregateFn = func(_ context.Context, _ uint) (*models.Aggregate, error) {
		return &models.Aggregate{Likes: 1}, nil
	}
	svc := NewVoteService(voteRepo, noopPostRepo())

	res, err := svc.CastVote(context.Background(), CastVoteInput{UserID: 2, PostID: 1, Kind: models.VoteUp})
	require.NoError(t, err)
	assert.Equal(t, models.VoteUp, res.Vote.Kind)
	assert.Equal(t, 1, res.Aggregate.Likes)
	assert.Equal(t, string(repository.VoteCreated), res.Outcome)
}

func TestVoteService_CastVote_InvalidKind(t *testing.T) {
	voteRepo := noopVoteRepo()
	cast := false
	voteRepo.castFn = func(_ context.Context, _, _ uint, _ models.VoteKind) (*models.Vote, repository.VoteOutcome, error) {
		cast = true
		return nil, "", nil
	}
	svc := NewVoteService(voteRepo, noopPostRepo())

	for _, kind := range []models.VoteKind{"", "like", "UPVOTE", models.VoteNone} {
		_, err := svc.CastVote(context.Background(), CastVoteInput{UserID: 2, PostID: 1, Kind: kind})
		assertCode(t, err, models.CodeValidation)
	}
	assert.False(t, cast)
}

func TestVoteService_CastVote_MissingPost(t *testing.T) {
	postRepo := noopPostRepo()
	postRepo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return nil, models.NewNotFoundError("Post", id)
	}
	svc := NewVoteService(noopVoteRepo(), postRepo)

	_, err := svc.CastVote(context.Background(), CastVoteInput{UserID: 2, PostID: 404, Kind: models.VoteUp})
	assertCode(t, err, models.CodeNotFound)
}

func TestVoteService_CastVote_RepeatedIsIdempotent(t *testing.T) {
	voteRepo := noopVoteRepo()
	voteRepo.castFn = func(_ context.Context, postID, userID uint, kind models.VoteKind) (*models.Vote, repository.VoteOutcome, error) {
		return &models.Vote{PostID: postID, UserID: userID, Kind: kind}, repository.VoteUnchanged, nil
	}
	voteRepo.getAggregateFn = func(_ context.Context, _ uint) (*models.Aggregate, error) {
		return &models.Aggregate{Likes: 1}, nil
	}
	svc := NewVoteService(voteRepo, noopPostRepo())

	res, err := svc.CastVote(context.Background(), CastVoteInput{UserID: 2, PostID: 1, Kind: models.VoteUp})
	require.NoError(t, err)
	assert.Equal(t, string(repository.VoteUnchanged), res.Outcome)
	assert.Equal(t, 1, res.Aggregate.Likes)
}

// ledgerFake is an in-memory VoteRepository that applies real transition
// semantics, so tests can assert absolute counter values across calls.
type ledgerFake struct {
	votes map[[2]uint]models.VoteKind
	agg   models.Aggregate
}

func newLedgerFake(likes, dislikes int) *ledgerFake {
	return &ledgerFake{
		votes: make(map[[2]uint]models.VoteKind),
		agg:   models.Aggregate{Likes: likes, Dislikes: dislikes},
	}
}

func (l *ledgerFake) Cast(_ context.Context, postID, userID uint, kind models.VoteKind) (*models.Vote, repository.VoteOutcome, error) {
	key := [2]uint{postID, userID}
	prev, voted := l.votes[key]

	switch {
	case !voted:
		l.votes[key] = kind
		l.bump(kind, +1)
		return &models.Vote{PostID: postID, UserID: userID, Kind: kind}, repository.VoteCreated, nil
	case prev == kind:
		return &models.Vote{PostID: postID, UserID: userID, Kind: kind}, repository.VoteUnchanged, nil
	default:
		l.votes[key] = kind
		l.bump(prev, -1)
		l.bump(kind, +1)
		return &models.Vote{PostID: postID, UserID: userID, Kind: kind}, repository.VoteSwitched, nil
	}
}

func (l *ledgerFake) bump(kind models.VoteKind, sign int) {
	if kind == models.VoteUp {
		l.agg.Likes += sign
	} else {
		l.agg.Dislikes += sign
	}
}

func (l *ledgerFake) GetByPostAndUser(_ context.Context, postID, userID uint) (*models.Vote, error) {
	kind, ok := l.votes[[2]uint{postID, userID}]
	if !ok {
		return nil, nil
	}
	return &models.Vote{PostID: postID, UserID: userID, Kind: kind}, nil
}

func (l *ledgerFake) GetAggregate(_ context.Context, _ uint) (*models.Aggregate, error) {
	agg := l.agg
	return &agg, nil
}

func (l *ledgerFake) Recount(_ context.Context, _ uint) (*models.Aggregate, error) {
	agg := l.agg
	return &agg, nil
}

func TestVoteService_CastVote_CounterTrajectory(t *testing.T) {
	ledger := newLedgerFake(3, 1)
	svc := NewVoteService(ledger, noopPostRepo())
	ctx := context.Background()

	res, err := svc.CastVote(ctx, CastVoteInput{UserID: 7, PostID: 5, Kind: models.VoteUp})
	require.NoError(t, err)
	assert.Equal(t, string(repository.VoteCreated), res.Outcome)
	assert.Equal(t, &models.Aggregate{Likes: 4, Dislikes: 1}, res.Aggregate)

	res, err = svc.CastVote(ctx, CastVoteInput{UserID: 7, PostID: 5, Kind: models.VoteDown})
	require.NoError(t, err)
	assert.Equal(t, string(repository.VoteSwitched), res.Outcome)
	assert.Equal(t, &models.Aggregate{Likes: 3, Dislikes: 2}, res.Aggregate)

	res, err = svc.CastVote(ctx, CastVoteInput{UserID: 7, PostID: 5, Kind: models.VoteDown})
	require.NoError(t, err)
	assert.Equal(t, string(repository.VoteUnchanged), res.Outcome)
	assert.Equal(t, &models.Aggregate{Likes: 3, Dislikes: 2}, res.Aggregate)
}

func TestVoteService_GetUserVote(t *testing.T) {
	voteRepo := noopVoteRepo()
	svc := NewVoteService(voteRepo, noopPostRepo())

	kind, err := svc.GetUserVote(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.VoteNone, kind)

	voteRepo.getByPostAndUserFn = func(_ context.Context, postID, userID uint) (*models.Vote, error) {
		return &models.Vote{PostID: postID, UserID: userID, Kind: models.VoteDown}, nil
	}
	kind, err = svc.GetUserVote(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.VoteDown, kind)
}

func TestVoteService_Reconcile(t *testing.T) {
	voteRepo := noopVoteRepo()
	voteRepo.recountFn = func(_ context.Context, _ uint) (*models.Aggregate, error) {
		return &models.Aggregate{Likes: 4, Dislikes: 2}, nil
	}
	svc := NewVoteService(voteRepo, noopPostRepo())

	agg, err := svc.Reconcile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &models.Aggregate{Likes: 4, Dislikes: 2}, agg)
}
