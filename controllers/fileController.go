package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/utils"
)

type FileController struct {
	uploads *utils.Uploader
}

func NewFileController(uploads *utils.Uploader) *FileController {
	return &FileController{uploads: uploads}
}

// Get streams a stored image back to the client.
func (ctrl *FileController) Get(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"id": "Invalid ID"}})
		return
	}

	stream, err := ctrl.uploads.Open(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	defer stream.Close()

	c.DataFromReader(http.StatusOK, stream.GetFile().Length, "application/octet-stream", stream, nil)
}
