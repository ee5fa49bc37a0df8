package server

import (
	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/posts/:id/comments. Passing parent_id
// creates a reply; replies are rejected once the thread hits the configured
// depth bound.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := c.Locals("userID").(uint)

	var req struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.CreateComment(c.Context(), service.CreateCommentInput{
		UserID:   userID,
		PostID:   postID,
		ParentID: req.ParentID,
		Content:  req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	s.publisher.Publish(c.Context(), events.Event{
		Type:      events.TypeCommentCreated,
		ActorID:   userID,
		PostID:    postID,
		CommentID: comment.ID,
	})

	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComments handles GET /api/posts/:id/comments. Only top-level comments
// are returned; replies are fetched per comment via GetReplies.
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, defaultCommentPageSize)

	comments, total, err := s.commentService.ListRootComments(c.Context(), postID, p.Limit, p.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"comments":    comments,
		"total":       total,
		"total_pages": totalPages(total, p.Limit),
	})
}

// GetReplies handles GET /api/comments/:id/replies
func (s *Server) GetReplies(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	replies, err := s.commentService.ListReplies(c.Context(), commentID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"replies": replies})
}

// DeleteComment handles DELETE /api/comments/:id. Deleting a comment removes
// its entire reply subtree.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := c.Locals("userID").(uint)

	comment, err := s.commentService.GetComment(c.Context(), commentID)
	if err != nil {
		return respondServiceError(c, err)
	}

	removed, err := s.commentService.DeleteComment(c.Context(), service.DeleteCommentInput{
		UserID:    userID,
		CommentID: commentID,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	s.publisher.Publish(c.Context(), events.Event{
		Type:      events.TypeCommentDeleted,
		ActorID:   userID,
		PostID:    comment.PostID,
		CommentID: commentID,
	})

	return c.JSON(fiber.Map{
		"message": "Comment deleted",
		"removed": removed,
	})
}
