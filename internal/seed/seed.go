// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"agora/internal/models"
	"agora/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
}

// Seeder populates the database with demo data. Votes are cast through the
// vote repository so the seeded counters are always consistent with the
// seeded vote rows.
type Seeder struct {
	db       *gorm.DB
	voteRepo repository.VoteRepository
	rng      *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:       db,
		voteRepo: repository.NewVoteRepository(db),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes all seeded data. Votes and comments cascade off posts.
func (s *Seeder) ClearAll() error {
	for _, table := range []string{"votes", "comments", "posts", "users"} {
		if err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// Seed populates the database with users, posts, comments and votes.
func (s *Seeder) Seed(ctx context.Context, opts Options) error {
	log.Printf("Seeding %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return err
		}
	}

	users, err := s.seedUsers(opts.NumUsers)
	if err != nil {
		return err
	}
	posts, err := s.seedPosts(users, opts.NumPosts)
	if err != nil {
		return err
	}
	if err := s.seedComments(users, posts); err != nil {
		return err
	}
	if err := s.seedVotes(ctx, users, posts); err != nil {
		return err
	}

	log.Println("Seeding complete")
	return nil
}

func (s *Seeder) seedUsers(n int) ([]*models.User, error) {
	// One well-known login for manual testing, admin included.
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, n+1)
	admin := &models.User{
		FirstName: "Admin",
		LastName:  "User",
		Email:     "admin@agora.dev",
		Password:  string(hashed),
		IsAdmin:   true,
	}
	users = append(users, admin)

	for i := 0; i < n; i++ {
		person := gofakeit.Person()
		users = append(users, &models.User{
			FirstName: person.FirstName,
			LastName:  person.LastName,
			Email:     fmt.Sprintf("%d.%s", i, gofakeit.Email()),
			Password:  string(hashed),
		})
	}

	if err := s.db.CreateInBatches(users, 100).Error; err != nil {
		return nil, fmt.Errorf("seeding users: %w", err)
	}
	return users, nil
}

func (s *Seeder) seedPosts(users []*models.User, n int) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		author := users[s.rng.Intn(len(users))]
		post := &models.Post{
			Title:       padTo(gofakeit.Sentence(8), 30),
			Description: padTo(gofakeit.Paragraph(2, 4, 10, "\n"), 250),
			UserID:      author.ID,
		}
		if s.rng.Intn(3) == 0 {
			post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", gofakeit.UUID())
		}
		// realistic created_at spread over the last 90 days
		daysBack := s.rng.Intn(90)
		hoursBack := s.rng.Intn(24)
		post.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour)
		posts = append(posts, post)
	}

	if err := s.db.CreateInBatches(posts, 100).Error; err != nil {
		return nil, fmt.Errorf("seeding posts: %w", err)
	}
	return posts, nil
}

func (s *Seeder) seedComments(users []*models.User, posts []*models.Post) error {
	var comments []*models.Comment
	for _, post := range posts {
		for i := 0; i < s.rng.Intn(6); i++ {
			commenter := users[s.rng.Intn(len(users))]
			comments = append(comments, &models.Comment{
				PostID:    post.ID,
				UserID:    commenter.ID,
				Content:   gofakeit.Sentence(12),
				CreatedAt: post.CreatedAt.Add(time.Duration(i+1) * time.Hour),
			})
		}
	}
	if len(comments) == 0 {
		return nil
	}
	if err := s.db.CreateInBatches(comments, 200).Error; err != nil {
		return fmt.Errorf("seeding comments: %w", err)
	}
	return nil
}

func (s *Seeder) seedVotes(ctx context.Context, users []*models.User, posts []*models.Post) error {
	for _, post := range posts {
		voters := s.rng.Intn(len(users))
		for _, idx := range s.rng.Perm(len(users))[:voters] {
			kind := models.VoteUp
			if s.rng.Intn(4) == 0 {
				kind = models.VoteDown
			}
			if _, _, err := s.voteRepo.Cast(ctx, post.ID, users[idx].ID, kind); err != nil {
				return fmt.Errorf("seeding vote on post %d: %w", post.ID, err)
			}
		}
	}
	return nil
}

// padTo repeats the text until it reaches the minimum length the API enforces.
func padTo(text string, min int) string {
	for len(text) < min {
		text = text + " " + strings.TrimSpace(gofakeit.Sentence(10))
	}
	return text
}
