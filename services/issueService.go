package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/apperrors"
	"civicreport-be/models"
	"civicreport-be/repositories"
)

// Notifier is the outbound mail side-channel. Implementations must treat
// an empty recipient set as a no-op.
type Notifier interface {
	Send(to []string, subject, html string) error
}

// CreateIssueInput carries the fields of a new issue. Images come from
// the upload side-channel, already stored.
type CreateIssueInput struct {
	Title       string
	Description string
	Address     string
	Lat         *float64
	Lng         *float64
	Images      []models.IssueImage
}

// UpdateIssueInput has partial-update semantics: nil means "leave
// unchanged". Images are appended, never replaced.
type UpdateIssueInput struct {
	Title       *string
	Description *string
	Address     *string
	Lat         *float64
	Lng         *float64
	Images      []models.IssueImage
}

// SearchInput is the raw query-string shape; Search validates and parses
// every field, reporting all violations at once.
type SearchInput struct {
	Status string
	Query  string
	Page   string
	Limit  string
	Lng    string
	Lat    string
	Radius string
}

type SearchResult struct {
	Items     []models.Issue `json:"items"`
	Page      int            `json:"page"`
	Limit     int            `json:"limit"`
	Total     int64          `json:"total"`
	PageCount int64          `json:"pageCount"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type IssueStats struct {
	ByStatus map[models.IssueStatus]int64 `json:"byStatus"`
	Total    int64                        `json:"total"`
	Open     int64                        `json:"open"`
	Last7    []DailyCount                 `json:"last7Days"`
}

type IssueService struct {
	issues   repositories.IssueRepository
	users    repositories.UserRepository
	comments repositories.CommentRepository
	mailer   Notifier
	log      *logrus.Logger
}

func NewIssueService(
	issues repositories.IssueRepository,
	users repositories.UserRepository,
	comments repositories.CommentRepository,
	mailer Notifier,
	log *logrus.Logger,
) *IssueService {
	return &IssueService{issues: issues, users: users, comments: comments, mailer: mailer, log: log}
}

// Create builds a pending issue owned and watched by the caller.
// Coordinates default to (0,0) unless both lng and lat are supplied;
// callers depend on this fallback, do not "fix" it.
func (s *IssueService) Create(ctx context.Context, actor Actor, in CreateIssueInput) (*models.Issue, error) {
	verr := apperrors.NewValidationError()
	if strings.TrimSpace(in.Title) == "" {
		verr.Add("title", "Title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		verr.Add("description", "Description is required")
	}
	if in.Lat != nil && (*in.Lat < -90 || *in.Lat > 90) {
		verr.Add("lat", "Invalid lat")
	}
	if in.Lng != nil && (*in.Lng < -180 || *in.Lng > 180) {
		verr.Add("lng", "Invalid lng")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	coordinates := []float64{0, 0}
	if in.Lng != nil && in.Lat != nil {
		coordinates = []float64{*in.Lng, *in.Lat}
	}

	images := in.Images
	if images == nil {
		images = []models.IssueImage{}
	}

	now := time.Now()
	issue := &models.Issue{
		ID:          primitive.NewObjectID(),
		Title:       in.Title,
		Description: in.Description,
		Images:      images,
		Status:      models.StatusPending,
		Location: models.Location{
			Type:        "Point",
			Coordinates: coordinates,
			Address:     in.Address,
		},
		CreatedBy: actor.ID,
		Watchers:  []primitive.ObjectID{actor.ID},
		History:   []models.StatusChange{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// Search validates the raw query, runs it and computes the page count.
func (s *IssueService) Search(ctx context.Context, in SearchInput) (*SearchResult, error) {
	filter := repositories.SearchFilter{Page: 1, Limit: 10, Query: in.Query}
	verr := apperrors.NewValidationError()

	if in.Status != "" {
		status := models.IssueStatus(in.Status)
		if !status.Valid() {
			verr.Add("status", "Invalid status")
		} else {
			filter.Status = &status
		}
	}

	if in.Page != "" {
		page, err := strconv.Atoi(in.Page)
		if err != nil || page < 1 {
			verr.Add("page", "Page must be an integer >= 1")
		} else {
			filter.Page = page
		}
	}

	if in.Limit != "" {
		limit, err := strconv.Atoi(in.Limit)
		if err != nil || limit < 1 || limit > 100 {
			verr.Add("limit", "Limit must be between 1 and 100")
		} else {
			filter.Limit = limit
		}
	}

	var lng, lat, radius *float64
	if in.Lng != "" {
		v, err := strconv.ParseFloat(in.Lng, 64)
		if err != nil || v < -180 || v > 180 {
			verr.Add("lng", "Invalid lng")
		} else {
			lng = &v
		}
	}
	if in.Lat != "" {
		v, err := strconv.ParseFloat(in.Lat, 64)
		if err != nil || v < -90 || v > 90 {
			verr.Add("lat", "Invalid lat")
		} else {
			lat = &v
		}
	}
	if in.Radius != "" {
		v, err := strconv.ParseFloat(in.Radius, 64)
		if err != nil || v < 1 {
			verr.Add("radius", "Radius must be a positive number of meters")
		} else {
			radius = &v
		}
	}

	if verr.HasErrors() {
		return nil, verr
	}

	// The geo filter applies only when all three parameters are present,
	// and then takes sort precedence.
	if lng != nil && lat != nil && radius != nil {
		filter.Geo = &repositories.GeoFilter{Lng: *lng, Lat: *lat, RadiusMeters: *radius}
	}

	items, total, err := s.issues.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	pageCount := (total + int64(filter.Limit) - 1) / int64(filter.Limit)
	return &SearchResult{
		Items:     items,
		Page:      filter.Page,
		Limit:     filter.Limit,
		Total:     total,
		PageCount: pageCount,
	}, nil
}

func (s *IssueService) Get(ctx context.Context, idHex string) (*models.Issue, error) {
	id, err := parseID(idHex)
	if err != nil {
		return nil, err
	}
	return s.issues.FindByID(ctx, id)
}

// Update applies partial changes. Existence is checked before
// entitlement, so probing a missing id yields NotFound rather than
// Forbidden. Coordinates replace only as a pair; a single supplied axis
// leaves them untouched while the address may still merge.
func (s *IssueService) Update(ctx context.Context, actor Actor, idHex string, in UpdateIssueInput) (*models.Issue, error) {
	id, err := parseID(idHex)
	if err != nil {
		return nil, err
	}

	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue.CreatedBy != actor.ID && !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}

	verr := apperrors.NewValidationError()
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		verr.Add("title", "Title cannot be empty")
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		verr.Add("description", "Description cannot be empty")
	}
	if in.Lat != nil && (*in.Lat < -90 || *in.Lat > 90) {
		verr.Add("lat", "Invalid lat")
	}
	if in.Lng != nil && (*in.Lng < -180 || *in.Lng > 180) {
		verr.Add("lng", "Invalid lng")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	if in.Title != nil {
		issue.Title = *in.Title
	}
	if in.Description != nil {
		issue.Description = *in.Description
	}
	if in.Address != nil || in.Lat != nil || in.Lng != nil {
		coordinates := issue.Location.Coordinates
		if in.Lng != nil && in.Lat != nil {
			coordinates = []float64{*in.Lng, *in.Lat}
		}
		address := issue.Location.Address
		if in.Address != nil {
			address = *in.Address
		}
		issue.Location = models.Location{Type: "Point", Coordinates: coordinates, Address: address}
	}
	if len(in.Images) > 0 {
		issue.Images = append(issue.Images, in.Images...)
	}
	issue.UpdatedAt = time.Now()

	if err := s.issues.Update(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// UpdateStatus performs an admin status transition. A same-status request
// is an idempotent no-op: no history entry, no notification. Watchers are
// notified after the write is persisted; a failed notification is logged
// and never undoes the transition.
func (s *IssueService) UpdateStatus(ctx context.Context, actor Actor, idHex, status string) (*models.Issue, error) {
	to := models.IssueStatus(status)
	if !to.Valid() {
		return nil, apperrors.Validation("status", "Invalid status")
	}

	id, err := parseID(idHex)
	if err != nil {
		return nil, err
	}

	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}

	from := issue.Status
	if from == to {
		return issue, nil
	}

	issue.Status = to
	issue.History = append(issue.History, models.StatusChange{
		From: from,
		To:   to,
		At:   time.Now(),
		By:   actor.ID,
	})
	issue.UpdatedAt = time.Now()

	if err := s.issues.Update(ctx, issue); err != nil {
		return nil, err
	}

	s.notifyWatchers(ctx, issue, from, to)
	return issue, nil
}

func (s *IssueService) notifyWatchers(ctx context.Context, issue *models.Issue, from, to models.IssueStatus) {
	watchers, err := s.users.FindManyByID(ctx, issue.Watchers)
	if err != nil {
		s.log.WithError(err).WithField("issue", issue.ID.Hex()).Warn("resolving watchers failed")
		return
	}

	recipients := make([]string, 0, len(watchers))
	for _, w := range watchers {
		if w.Email != "" {
			recipients = append(recipients, w.Email)
		}
	}

	subject := fmt.Sprintf("Issue %q status updated: %s", issue.Title, to)
	body := fmt.Sprintf("<p>Status changed from <b>%s</b> to <b>%s</b>.</p>", from, to)
	if err := s.mailer.Send(recipients, subject, body); err != nil {
		s.log.WithError(err).WithField("issue", issue.ID.Hex()).Warn("watcher notification failed")
	}
}

// Delete removes the issue and, transitively, its comments.
func (s *IssueService) Delete(ctx context.Context, actor Actor, idHex string) error {
	id, err := parseID(idHex)
	if err != nil {
		return err
	}

	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if issue.CreatedBy != actor.ID && !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}

	if err := s.issues.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.comments.DeleteByIssue(ctx, id); err != nil {
		s.log.WithError(err).WithField("issue", id.Hex()).Warn("comment cleanup failed")
	}
	return nil
}

// Stats summarizes issue counts by status and the last seven days of
// reports.
func (s *IssueService) Stats(ctx context.Context) (*IssueStats, error) {
	byStatus, err := s.issues.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, n := range byStatus {
		total += n
	}

	stats := &IssueStats{
		ByStatus: byStatus,
		Total:    total,
		Open:     byStatus[models.StatusPending] + byStatus[models.StatusInProgress],
		Last7:    make([]DailyCount, 0, 7),
	}

	for i := 6; i >= 0; i-- {
		day := time.Now().AddDate(0, 0, -i)
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		count, err := s.issues.CountCreatedBetween(ctx, start, start.AddDate(0, 0, 1))
		if err != nil {
			count = 0
		}
		stats.Last7 = append(stats.Last7, DailyCount{Date: start.Format("2006-01-02"), Count: count})
	}
	return stats, nil
}

func parseID(idHex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return primitive.NilObjectID, apperrors.Validation("id", "Invalid ID")
	}
	return id, nil
}
