package server

import (
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CastVote handles PUT /api/posts/:id/votes. The verb is PUT because a cast
// replaces whatever vote the user had; repeating the same request is a no-op.
func (s *Server) CastVote(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Kind string `json:"kind"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.voteService.CastVote(c.UserContext(), service.CastVoteInput{
		UserID: userID,
		PostID: postID,
		Kind:   models.VoteKind(req.Kind),
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, result)
}

// GetVotes handles GET /api/posts/:id/votes
func (s *Server) GetVotes(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	agg, err := s.voteService.GetAggregate(c.UserContext(), postID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, agg)
}

// GetMyVote handles GET /api/posts/:id/votes/me
func (s *Server) GetMyVote(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	kind, err := s.voteService.GetUserVote(c.UserContext(), postID, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"kind": kind})
}

// ReconcileVotes handles POST /api/posts/:id/votes/reconcile. Admin-only
// repair path that recomputes the post's counters from the vote rows.
func (s *Server) ReconcileVotes(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	agg, err := s.voteService.Reconcile(c.UserContext(), postID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, agg)
}
