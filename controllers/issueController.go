package controllers

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"civicreport-be/apperrors"
	"civicreport-be/models"
	"civicreport-be/services"
	"civicreport-be/utils"
)

type IssueController struct {
	issues  *services.IssueService
	uploads *utils.Uploader
}

func NewIssueController(issues *services.IssueService, uploads *utils.Uploader) *IssueController {
	return &IssueController{issues: issues, uploads: uploads}
}

// imageFiles pulls the uploaded "images" files out of a multipart
// request; JSON requests simply yield none.
func imageFiles(c *gin.Context) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File["images"]
}

func (ctrl *IssueController) storeImages(c *gin.Context) ([]models.IssueImage, bool) {
	files := imageFiles(c)
	if len(files) == 0 {
		return nil, true
	}
	images, err := ctrl.uploads.SaveAll(files)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return images, true
}

// Create handles the creation of a new issue from a multipart form with
// optional image files.
func (ctrl *IssueController) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthenticated)
		return
	}

	var input struct {
		Title       string   `form:"title"`
		Description string   `form:"description"`
		Address     string   `form:"address"`
		Lat         *float64 `form:"lat"`
		Lng         *float64 `form:"lng"`
	}
	if err := c.ShouldBind(&input); err != nil {
		respondBindingError(c, err)
		return
	}

	images, ok := ctrl.storeImages(c)
	if !ok {
		return
	}

	issue, err := ctrl.issues.Create(c.Request.Context(), actor, services.CreateIssueInput{
		Title:       input.Title,
		Description: input.Description,
		Address:     input.Address,
		Lat:         input.Lat,
		Lng:         input.Lng,
		Images:      images,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

// List is the public filtered/paginated/geo search.
func (ctrl *IssueController) List(c *gin.Context) {
	result, err := ctrl.issues.Search(c.Request.Context(), services.SearchInput{
		Status: c.Query("status"),
		Query:  c.Query("q"),
		Page:   c.Query("page"),
		Limit:  c.Query("limit"),
		Lng:    c.Query("lng"),
		Lat:    c.Query("lat"),
		Radius: c.Query("radius"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (ctrl *IssueController) Get(c *gin.Context) {
	issue, err := ctrl.issues.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// Update applies a partial update; new image files are appended to the
// existing sequence.
func (ctrl *IssueController) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthenticated)
		return
	}

	var input struct {
		Title       *string  `form:"title"`
		Description *string  `form:"description"`
		Address     *string  `form:"address"`
		Lat         *float64 `form:"lat"`
		Lng         *float64 `form:"lng"`
	}
	if err := c.ShouldBind(&input); err != nil {
		respondBindingError(c, err)
		return
	}

	images, ok := ctrl.storeImages(c)
	if !ok {
		return
	}

	issue, err := ctrl.issues.Update(c.Request.Context(), actor, c.Param("id"), services.UpdateIssueInput{
		Title:       input.Title,
		Description: input.Description,
		Address:     input.Address,
		Lat:         input.Lat,
		Lng:         input.Lng,
		Images:      images,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// UpdateStatus is the admin-only transition endpoint.
func (ctrl *IssueController) UpdateStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthenticated)
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindingError(c, err)
		return
	}

	issue, err := ctrl.issues.UpdateStatus(c.Request.Context(), actor, c.Param("id"), input.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (ctrl *IssueController) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthenticated)
		return
	}

	if err := ctrl.issues.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted"})
}

// Stats returns aggregate issue counts.
func (ctrl *IssueController) Stats(c *gin.Context) {
	stats, err := ctrl.issues.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
