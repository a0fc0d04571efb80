package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/apperrors"
	"civicreport-be/models"
	"civicreport-be/repositories"
)

// In-memory repository implementations backing the service tests.

type memIssueRepo struct {
	issues map[primitive.ObjectID]*models.Issue
	seq    map[primitive.ObjectID]int
	next   int
}

func newMemIssueRepo() *memIssueRepo {
	return &memIssueRepo{
		issues: map[primitive.ObjectID]*models.Issue{},
		seq:    map[primitive.ObjectID]int{},
	}
}

func (r *memIssueRepo) Create(_ context.Context, issue *models.Issue) error {
	clone := *issue
	r.issues[issue.ID] = &clone
	r.next++
	r.seq[issue.ID] = r.next
	return nil
}

func (r *memIssueRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	issue, ok := r.issues[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	clone := *issue
	return &clone, nil
}

func (r *memIssueRepo) Update(_ context.Context, issue *models.Issue) error {
	if _, ok := r.issues[issue.ID]; !ok {
		return apperrors.ErrNotFound
	}
	clone := *issue
	r.issues[issue.ID] = &clone
	return nil
}

func (r *memIssueRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := r.issues[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.issues, id)
	return nil
}

func haversineMeters(lng1, lat1, lng2, lat2 float64) float64 {
	const earthRadius = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}

func (r *memIssueRepo) Search(_ context.Context, filter repositories.SearchFilter) ([]models.Issue, int64, error) {
	matched := make([]models.Issue, 0)
	for _, issue := range r.issues {
		if filter.Status != nil && issue.Status != *filter.Status {
			continue
		}
		if filter.Query != "" {
			q := strings.ToLower(filter.Query)
			if !strings.Contains(strings.ToLower(issue.Title), q) &&
				!strings.Contains(strings.ToLower(issue.Description), q) {
				continue
			}
		}
		if filter.Geo != nil {
			c := issue.Location.Coordinates
			if len(c) != 2 {
				continue
			}
			if haversineMeters(filter.Geo.Lng, filter.Geo.Lat, c[0], c[1]) > filter.Geo.RadiusMeters {
				continue
			}
		}
		matched = append(matched, *issue)
	}

	if filter.Geo != nil {
		sort.Slice(matched, func(i, j int) bool {
			ci, cj := matched[i].Location.Coordinates, matched[j].Location.Coordinates
			di := haversineMeters(filter.Geo.Lng, filter.Geo.Lat, ci[0], ci[1])
			dj := haversineMeters(filter.Geo.Lng, filter.Geo.Lat, cj[0], cj[1])
			return di < dj
		})
	} else {
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return r.seq[matched[i].ID] > r.seq[matched[j].ID]
			}
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
	}

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		return []models.Issue{}, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *memIssueRepo) CountByStatus(_ context.Context) (map[models.IssueStatus]int64, error) {
	counts := map[models.IssueStatus]int64{}
	for _, issue := range r.issues {
		counts[issue.Status]++
	}
	return counts, nil
}

func (r *memIssueRepo) CountCreatedBetween(_ context.Context, from, to time.Time) (int64, error) {
	var n int64
	for _, issue := range r.issues {
		if !issue.CreatedAt.Before(from) && issue.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

type memUserRepo struct {
	users map[primitive.ObjectID]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[primitive.ObjectID]*models.User{}}
}

func (r *memUserRepo) Create(_ context.Context, user *models.User) error {
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return apperrors.ErrConflict
		}
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memUserRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) FindManyByID(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	found := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			found = append(found, *user)
		}
	}
	return found, nil
}

type memCommentRepo struct {
	comments []models.Comment
	users    *memUserRepo
}

func newMemCommentRepo(users *memUserRepo) *memCommentRepo {
	return &memCommentRepo{users: users}
}

func (r *memCommentRepo) Create(_ context.Context, comment *models.Comment) error {
	r.comments = append(r.comments, *comment)
	return nil
}

func (r *memCommentRepo) ListByIssue(_ context.Context, issueID primitive.ObjectID) ([]models.CommentWithAuthor, error) {
	listed := make([]models.CommentWithAuthor, 0)
	for _, comment := range r.comments {
		if comment.Issue != issueID {
			continue
		}
		author := models.CommentAuthor{ID: comment.Author}
		if user, ok := r.users.users[comment.Author]; ok {
			author.Username = user.Username
		}
		listed = append(listed, models.CommentWithAuthor{
			ID:        comment.ID,
			Issue:     comment.Issue,
			Author:    author,
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt,
		})
	}
	sort.SliceStable(listed, func(i, j int) bool {
		return listed[i].CreatedAt.After(listed[j].CreatedAt)
	})
	return listed, nil
}

func (r *memCommentRepo) DeleteByIssue(_ context.Context, issueID primitive.ObjectID) error {
	kept := r.comments[:0]
	for _, comment := range r.comments {
		if comment.Issue != issueID {
			kept = append(kept, comment)
		}
	}
	r.comments = kept
	return nil
}

type sentMail struct {
	to      []string
	subject string
	html    string
}

type capturingMailer struct {
	sent []sentMail
}

func (m *capturingMailer) Send(to []string, subject, html string) error {
	m.sent = append(m.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

type failingMailer struct {
	calls int
}

func (m *failingMailer) Send([]string, string, string) error {
	m.calls++
	return errors.New("smtp unreachable")
}
