package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/apperrors"
	"civicreport-be/models"
)

func ptr(v float64) *float64 { return &v }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type issueFixture struct {
	svc     *IssueService
	issues  *memIssueRepo
	users   *memUserRepo
	mailer  *capturingMailer
	member  Actor
	admin   Actor
	strange Actor
}

func newIssueFixture(t *testing.T) *issueFixture {
	t.Helper()

	users := newMemUserRepo()
	issues := newMemIssueRepo()
	comments := newMemCommentRepo(users)
	mailer := &capturingMailer{}

	member := &models.User{ID: primitive.NewObjectID(), Username: "alice", Email: "alice@example.com", Role: models.RoleMember}
	admin := &models.User{ID: primitive.NewObjectID(), Username: "root", Email: "root@example.com", Role: models.RoleAdmin}
	stranger := &models.User{ID: primitive.NewObjectID(), Username: "mallory", Email: "mallory@example.com", Role: models.RoleMember}
	for _, u := range []*models.User{member, admin, stranger} {
		if err := users.Create(context.Background(), u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	return &issueFixture{
		svc:     NewIssueService(issues, users, comments, mailer, quietLogger()),
		issues:  issues,
		users:   users,
		mailer:  mailer,
		member:  Actor{ID: member.ID, Role: models.RoleMember},
		admin:   Actor{ID: admin.ID, Role: models.RoleAdmin},
		strange: Actor{ID: stranger.ID, Role: models.RoleMember},
	}
}

func TestCreateRoundTrip(t *testing.T) {
	f := newIssueFixture(t)

	created, err := f.svc.Create(context.Background(), f.member, CreateIssueInput{
		Title:       "Broken streetlight",
		Description: "Dark corner at night",
		Address:     "Elm St 5",
		Lng:         ptr(12.5),
		Lat:         ptr(55.0),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fetched, err := f.svc.Get(context.Background(), created.ID.Hex())
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if fetched.Title != "Broken streetlight" || fetched.Description != "Dark corner at night" {
		t.Fatalf("round trip mismatch: %+v", fetched)
	}
	if fetched.Status != models.StatusPending {
		t.Fatalf("expected pending status, got %s", fetched.Status)
	}
	if len(fetched.History) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(fetched.History))
	}
	if got := fetched.Location.Coordinates; got[0] != 12.5 || got[1] != 55.0 {
		t.Fatalf("coordinates not stored verbatim: %v", got)
	}
	if fetched.CreatedBy != f.member.ID {
		t.Fatal("createdBy is not the caller")
	}
	if len(fetched.Watchers) != 1 || fetched.Watchers[0] != f.member.ID {
		t.Fatalf("reporter not auto-watching: %v", fetched.Watchers)
	}
}

func TestCreateDefaultsCoordinatesWhenAxisMissing(t *testing.T) {
	f := newIssueFixture(t)

	// Lone lng falls back to (0,0); callers depend on this.
	created, err := f.svc.Create(context.Background(), f.member, CreateIssueInput{
		Title:       "Pothole",
		Description: "Deep one",
		Lng:         ptr(12.5),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := created.Location.Coordinates; got[0] != 0 || got[1] != 0 {
		t.Fatalf("expected (0,0) fallback, got %v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newIssueFixture(t)

	_, err := f.svc.Create(context.Background(), f.member, CreateIssueInput{
		Title:       "  ",
		Description: "",
		Lat:         ptr(123.0),
	})

	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"title", "description", "lat"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("missing violation for %q: %v", field, verr.Fields)
		}
	}
}

func TestSearchValidationAggregatesAllViolations(t *testing.T) {
	f := newIssueFixture(t)

	_, err := f.svc.Search(context.Background(), SearchInput{
		Status: "bogus",
		Page:   "0",
		Limit:  "500",
		Lat:    "91",
	})

	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 4 {
		t.Fatalf("expected 4 violations, got %v", verr.Fields)
	}
}

func TestSearchPagination(t *testing.T) {
	f := newIssueFixture(t)
	for i := 0; i < 5; i++ {
		if _, err := f.svc.Create(context.Background(), f.member, CreateIssueInput{
			Title:       "Issue",
			Description: "Body",
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	result, err := f.svc.Search(context.Background(), SearchInput{Limit: "2"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 5 || result.PageCount != 3 {
		t.Fatalf("expected total=5 pageCount=3, got %d/%d", result.Total, result.PageCount)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items on page 1, got %d", len(result.Items))
	}

	beyond, err := f.svc.Search(context.Background(), SearchInput{Limit: "2", Page: "4"})
	if err != nil {
		t.Fatalf("search beyond range: %v", err)
	}
	if len(beyond.Items) != 0 {
		t.Fatalf("expected empty page, got %d items", len(beyond.Items))
	}
	if beyond.Total != 5 {
		t.Fatalf("total changed on out-of-range page: %d", beyond.Total)
	}
}

func TestSearchGeoNearestFirst(t *testing.T) {
	f := newIssueFixture(t)

	exact, _ := f.svc.Create(context.Background(), f.member, CreateIssueInput{
		Title: "At the point", Description: "x", Lng: ptr(12.5), Lat: ptr(55.0),
	})
	near, _ := f.svc.Create(context.Background(), f.member, CreateIssueInput{
		Title: "A block away", Description: "x", Lng: ptr(12.5), Lat: ptr(55.001),
	})
	if _, err := f.svc.Create(context.Background(), f.member, CreateIssueInput{
		Title: "Across town", Description: "x", Lng: ptr(12.5), Lat: ptr(55.09),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := f.svc.Search(context.Background(), SearchInput{
		Lng: "12.5", Lat: "55.0", Radius: "5000",
	})
	if err != nil {
		t.Fatalf("geo search: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("expected 2 issues within radius, got %d", result.Total)
	}
	if result.Items[0].ID != exact.ID || result.Items[1].ID != near.ID {
		t.Fatalf("not sorted nearest-first: %v", result.Items)
	}
}

func TestUpdateAuthorization(t *testing.T) {
	f := newIssueFixture(t)
	issue, _ := f.svc.Create(context.Background(), f.member, CreateIssueInput{Title: "t", Description: "d"})

	title := "changed"
	_, err := f.svc.Update(context.Background(), f.strange, issue.ID.Hex(), UpdateIssueInput{Title: &title})
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("stranger on existing issue: expected ErrForbidden, got %v", err)
	}

	// A missing id must read as NotFound even for non-owners.
	_, err = f.svc.Update(context.Background(), f.strange, primitive.NewObjectID().Hex(), UpdateIssueInput{Title: &title})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("stranger on missing issue: expected ErrNotFound, got %v", err)
	}

	if _, err := f.svc.Update(context.Background(), f.admin, issue.ID.Hex(), UpdateIssueInput{Title: &title}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
}

func TestUpdatePartialSemantics(t *testing.T) {
	f := newIssueFixture(t)
	issue, _ := f.svc.Create(context.Background(), f.member, CreateIssueInput{
		Title: "t", Description: "d", Address: "old", Lng: ptr(12.5), Lat: ptr(55.0),
		Images: []models.IssueImage{{URL: "/api/files/a", StorageID: "a"}},
	})

	// Single axis: coordinates stay, address alone merges.
	address := "new address"
	updated, err := f.svc.Update(context.Background(), f.member, issue.ID.Hex(), UpdateIssueInput{
		Lng:     ptr(99.0),
		Address: &address,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := updated.Location.Coordinates; got[0] != 12.5 || got[1] != 55.0 {
		t.Fatalf("lone-axis update changed coordinates: %v", got)
	}
	if updated.Location.Address != "new address" {
		t.Fatalf("address not merged: %q", updated.Location.Address)
	}
	if updated.Title != "t" || updated.Description != "d" {
		t.Fatal("untouched fields changed")
	}

	// Full pair replaces; new images append.
	updated, err = f.svc.Update(context.Background(), f.member, issue.ID.Hex(), UpdateIssueInput{
		Lng:    ptr(10.0),
		Lat:    ptr(50.0),
		Images: []models.IssueImage{{URL: "/api/files/b", StorageID: "b"}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := updated.Location.Coordinates; got[0] != 10.0 || got[1] != 50.0 {
		t.Fatalf("pair update did not replace coordinates: %v", got)
	}
	if len(updated.Images) != 2 || updated.Images[0].StorageID != "a" || updated.Images[1].StorageID != "b" {
		t.Fatalf("images not appended in order: %v", updated.Images)
	}
}

func TestStatusTransitionIdempotent(t *testing.T) {
	f := newIssueFixture(t)
	issue, _ := f.svc.Create(context.Background(), f.member, CreateIssueInput{Title: "t", Description: "d"})

	for i := 0; i < 3; i++ {
		result, err := f.svc.UpdateStatus(context.Background(), f.admin, issue.ID.Hex(), "pending")
		if err != nil {
			t.Fatalf("same-status transition: %v", err)
		}
		if len(result.History) != 0 {
			t.Fatalf("no-op transition appended history: %d", len(result.History))
		}
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("no-op transition sent mail: %d", len(f.mailer.sent))
	}
}

func TestStatusTransitionAuditAndNotification(t *testing.T) {
	f := newIssueFixture(t)
	issue, _ := f.svc.Create(context.Background(), f.member, CreateIssueInput{Title: "Leak", Description: "d"})

	first, err := f.svc.UpdateStatus(context.Background(), f.admin, issue.ID.Hex(), "in-progress")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	second, err := f.svc.UpdateStatus(context.Background(), f.admin, issue.ID.Hex(), "resolved")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}

	if len(first.History) != 1 || len(second.History) != 2 {
		t.Fatalf("history growth wrong: %d then %d", len(first.History), len(second.History))
	}
	// Each entry's from equals the status immediately prior to the write.
	if second.History[0].From != models.StatusPending || second.History[0].To != models.StatusInProgress {
		t.Fatalf("bad first entry: %+v", second.History[0])
	}
	if second.History[1].From != models.StatusInProgress || second.History[1].To != models.StatusResolved {
		t.Fatalf("bad second entry: %+v", second.History[1])
	}
	if second.History[1].By != f.admin.ID {
		t.Fatal("changedBy is not the admin")
	}

	if len(f.mailer.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(f.mailer.sent))
	}
	if got := f.mailer.sent[0].to; len(got) != 1 || got[0] != "alice@example.com" {
		t.Fatalf("wrong recipients: %v", got)
	}
}

func TestStatusTransitionRequiresAdmin(t *testing.T) {
	f := newIssueFixture(t)
	issue, _ := f.svc.Create(context.Background(), f.member, CreateIssueInput{Title: "t", Description: "d"})

	_, err := f.svc.UpdateStatus(context.Background(), f.member, issue.ID.Hex(), "resolved")
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	_, err = f.svc.UpdateStatus(context.Background(), f.admin, primitive.NewObjectID().Hex(), "resolved")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusNotificationFailureIsSwallowed(t *testing.T) {
	f := newIssueFixture(t)
	mailer := &failingMailer{}
	f.svc.mailer = mailer

	issue, _ := f.svc.Create(context.Background(), f.member, CreateIssueInput{Title: "t", Description: "d"})

	updated, err := f.svc.UpdateStatus(context.Background(), f.admin, issue.ID.Hex(), "resolved")
	if err != nil {
		t.Fatalf("transition must not fail on mail error: %v", err)
	}
	if updated.Status != models.StatusResolved || len(updated.History) != 1 {
		t.Fatalf("transition not persisted: %+v", updated)
	}
	if mailer.calls != 1 {
		t.Fatalf("mailer not invoked: %d", mailer.calls)
	}
}

func TestDeleteAuthorizationAndCascade(t *testing.T) {
	f := newIssueFixture(t)
	comments := newMemCommentRepo(f.users)
	f.svc.comments = comments

	issue, _ := f.svc.Create(context.Background(), f.member, CreateIssueInput{Title: "t", Description: "d"})
	if err := comments.Create(context.Background(), &models.Comment{
		ID: primitive.NewObjectID(), Issue: issue.ID, Author: f.strange.ID, Text: "me too",
	}); err != nil {
		t.Fatalf("seed comment: %v", err)
	}

	if err := f.svc.Delete(context.Background(), f.strange, issue.ID.Hex()); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), f.strange, primitive.NewObjectID().Hex()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := f.svc.Delete(context.Background(), f.member, issue.ID.Hex()); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), issue.ID.Hex()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("issue still present after delete: %v", err)
	}
	listed, err := comments.ListByIssue(context.Background(), issue.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("comments not cascaded: %d", len(listed))
	}
}
