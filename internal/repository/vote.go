// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"

	"agora/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteOutcome describes what a Cast call did to the ledger.
type VoteOutcome string

const (
	// VoteCreated means no prior vote existed and a new row was inserted.
	VoteCreated VoteOutcome = "created"
	// VoteSwitched means an existing vote changed kind in place.
	VoteSwitched VoteOutcome = "switched"
	// VoteUnchanged means the existing vote already had the requested kind.
	VoteUnchanged VoteOutcome = "unchanged"
)

// CounterDelta is a relative adjustment to a post's denormalized counters.
type CounterDelta struct {
	Likes    int
	Dislikes int
}

// VoteRepository is the storage side of the vote ledger. Cast owns the full
// read-decide-write transition; callers never compute counter values.
type VoteRepository interface {
	Cast(ctx context.Context, postID, userID uint, kind models.VoteKind) (*models.Vote, VoteOutcome, error)
	GetByPostAndUser(ctx context.Context, postID, userID uint) (*models.Vote, error)
	GetAggregate(ctx context.Context, postID uint) (*models.Aggregate, error)
	Recount(ctx context.Context, postID uint) (*models.Aggregate, error)
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository returns a new VoteRepository implementation.
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Cast records or updates the user's vote on a post and keeps the post's
// likes/dislikes counters consistent with the vote row, all within a single
// transaction. The vote row is locked FOR UPDATE so concurrent casts for the
// same (post, user) pair serialize, and counter changes are expressed as
// relative deltas in one UPDATE statement so concurrent voters on the same
// post never lose an increment and readers never observe a half-applied pair.
func (r *voteRepository) Cast(ctx context.Context, postID, userID uint, kind models.VoteKind) (*models.Vote, VoteOutcome, error) {
	var vote *models.Vote
	var outcome VoteOutcome

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Vote
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("post_id = ? AND user_id = ?", postID, userID).
			First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			created := models.Vote{PostID: postID, UserID: userID, Kind: kind}
			if createErr := tx.Create(&created).Error; createErr != nil {
				if isUniqueViolation(createErr) {
					// A concurrent cast for the same pair won the insert race.
					return models.NewConflictError("Vote already recorded for this post and user")
				}
				if isForeignKeyViolation(createErr) {
					// Post existence is checked upstream, so a rejected
					// reference means the user row is gone.
					return models.NewNotFoundError("User", userID)
				}
				return createErr
			}
			if deltaErr := applyCounterDelta(tx, postID, deltaFor(kind, +1)); deltaErr != nil {
				return deltaErr
			}
			vote, outcome = &created, VoteCreated
			return nil
		}
		if err != nil {
			return err
		}

		if existing.Kind == kind {
			// Idempotent: repeated identical votes never double-count.
			vote, outcome = &existing, VoteUnchanged
			return nil
		}

		previous := existing.Kind
		if updateErr := tx.Model(&existing).Update("kind", kind).Error; updateErr != nil {
			return updateErr
		}

		delta := deltaFor(kind, +1)
		opposite := deltaFor(previous, -1)
		delta.Likes += opposite.Likes
		delta.Dislikes += opposite.Dislikes
		if deltaErr := applyCounterDelta(tx, postID, delta); deltaErr != nil {
			return deltaErr
		}

		existing.Kind = kind
		vote, outcome = &existing, VoteSwitched
		return nil
	})

	if err != nil {
		return nil, "", asStoreError(err)
	}
	return vote, outcome, nil
}

func (r *voteRepository) GetByPostAndUser(ctx context.Context, postID, userID uint) (*models.Vote, error) {
	var vote models.Vote
	err := readDB(r.db).WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		First(&vote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewStoreError(err)
	}
	return &vote, nil
}

func (r *voteRepository) GetAggregate(ctx context.Context, postID uint) (*models.Aggregate, error) {
	var agg models.Aggregate
	err := readDB(r.db).WithContext(ctx).
		Model(&models.Post{}).
		Select("likes", "dislikes").
		Where("id = ?", postID).
		Take(&agg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, models.NewStoreError(err)
	}
	return &agg, nil
}

// Recount recomputes both counters from the vote population and writes them
// back in one transaction, holding the post row lock so in-flight casts
// cannot interleave. This is the repair path for the counters-as-cache
// invariant; a healthy ledger makes it a no-op.
func (r *voteRepository) Recount(ctx context.Context, postID uint) (*models.Aggregate, error) {
	var agg models.Aggregate

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", postID)
			}
			return err
		}

		var likes, dislikes int64
		if err := tx.Model(&models.Vote{}).
			Where("post_id = ? AND kind = ?", postID, models.VoteUp).
			Count(&likes).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Vote{}).
			Where("post_id = ? AND kind = ?", postID, models.VoteDown).
			Count(&dislikes).Error; err != nil {
			return err
		}

		agg = models.Aggregate{Likes: int(likes), Dislikes: int(dislikes)}
		return tx.Model(&models.Post{}).
			Where("id = ?", postID).
			Updates(map[string]interface{}{
				"likes":    agg.Likes,
				"dislikes": agg.Dislikes,
			}).Error
	})

	if err != nil {
		return nil, asStoreError(err)
	}
	return &agg, nil
}

// deltaFor returns the counter adjustment for one vote of the given kind,
// with sign +1 (adding the vote) or -1 (removing its contribution).
func deltaFor(kind models.VoteKind, sign int) CounterDelta {
	if kind == models.VoteUp {
		return CounterDelta{Likes: sign}
	}
	return CounterDelta{Dislikes: sign}
}

// applyCounterDelta moves both counters in a single UPDATE using relative SQL
// expressions. The WHERE guard refuses any update that would drive a counter
// negative: the ledger only issues deltas backed by a vote transition, so a
// rejected update is an invariant violation, not a value to clamp.
func applyCounterDelta(tx *gorm.DB, postID uint, delta CounterDelta) error {
	if delta.Likes == 0 && delta.Dislikes == 0 {
		return nil
	}

	res := tx.Model(&models.Post{}).
		Where("id = ?", postID).
		Where("likes + ? >= 0 AND dislikes + ? >= 0", delta.Likes, delta.Dislikes).
		Updates(map[string]interface{}{
			"likes":    gorm.Expr("likes + ?", delta.Likes),
			"dislikes": gorm.Expr("dislikes + ?", delta.Dislikes),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError("Counter update rejected: post missing or counter would go negative")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// asStoreError wraps raw storage failures while letting already-classified
// application errors pass through unchanged in kind.
func asStoreError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewStoreError(err)
}
