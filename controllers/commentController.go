package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"civicreport-be/apperrors"
	"civicreport-be/services"
)

type CommentController struct {
	comments *services.CommentService
}

func NewCommentController(comments *services.CommentService) *CommentController {
	return &CommentController{comments: comments}
}

// Create adds a comment to an issue.
func (ctrl *CommentController) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthenticated)
		return
	}

	var input struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindingError(c, err)
		return
	}

	comment, err := ctrl.comments.Create(c.Request.Context(), actor, c.Param("id"), input.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// List returns an issue's comments, newest first.
func (ctrl *CommentController) List(c *gin.Context) {
	comments, err := ctrl.comments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}
