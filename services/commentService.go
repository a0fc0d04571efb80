package services

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/apperrors"
	"civicreport-be/models"
	"civicreport-be/repositories"
)

type CommentService struct {
	comments repositories.CommentRepository
	issues   repositories.IssueRepository
}

func NewCommentService(comments repositories.CommentRepository, issues repositories.IssueRepository) *CommentService {
	return &CommentService{comments: comments, issues: issues}
}

// Create adds a comment to an existing issue. Text must be non-empty
// after trimming.
func (s *CommentService) Create(ctx context.Context, actor Actor, issueIDHex, text string) (*models.Comment, error) {
	issueID, err := parseID(issueIDHex)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("text", "Text is required")
	}

	if _, err := s.issues.FindByID(ctx, issueID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:        primitive.NewObjectID(),
		Issue:     issueID,
		Author:    actor.ID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// List returns the issue's comments newest-first with the author's
// display name attached.
func (s *CommentService) List(ctx context.Context, issueIDHex string) ([]models.CommentWithAuthor, error) {
	issueID, err := parseID(issueIDHex)
	if err != nil {
		return nil, err
	}
	return s.comments.ListByIssue(ctx, issueID)
}
