package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"civicreport-be/apperrors"
	"civicreport-be/models"
)

// earthRadiusMeters converts a $centerSphere radius to radians.
const earthRadiusMeters = 6378137.0

// GeoFilter restricts a search to issues within RadiusMeters of the
// point, sorted nearest-first.
type GeoFilter struct {
	Lng          float64
	Lat          float64
	RadiusMeters float64
}

// SearchFilter is a validated issue query. Page is 1-based.
type SearchFilter struct {
	Status *models.IssueStatus
	Query  string
	Geo    *GeoFilter
	Page   int
	Limit  int
}

// IssueRepository is the persistence contract for issues. Search returns
// the requested page plus the total match count independent of paging.
type IssueRepository interface {
	Create(ctx context.Context, issue *models.Issue) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	Update(ctx context.Context, issue *models.Issue) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	Search(ctx context.Context, filter SearchFilter) ([]models.Issue, int64, error)
	CountByStatus(ctx context.Context) (map[models.IssueStatus]int64, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
}

type MongoIssueRepository struct {
	col *mongo.Collection
}

func NewMongoIssueRepository(db *mongo.Database) *MongoIssueRepository {
	return &MongoIssueRepository{col: db.Collection("issues")}
}

func (r *MongoIssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	_, err := r.col.InsertOne(ctx, issue)
	return err
}

func (r *MongoIssueRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &issue, nil
}

func (r *MongoIssueRepository) Update(ctx context.Context, issue *models.Issue) error {
	// Whole-document replace: the store's per-document atomicity is the
	// only coordination, last write wins.
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": issue.ID}, issue)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *MongoIssueRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// buildSearchQuery translates a SearchFilter into the find filter, the
// count filter and the find options. The two filters differ only for geo
// queries: $nearSphere is not allowed in count queries, so the count
// uses an equivalent $geoWithin.
func buildSearchQuery(filter SearchFilter) (bson.M, bson.M, *options.FindOptions) {
	find := bson.M{}
	if filter.Status != nil {
		find["status"] = *filter.Status
	}
	if filter.Query != "" {
		find["$text"] = bson.M{"$search": filter.Query}
	}

	count := bson.M{}
	for k, v := range find {
		count[k] = v
	}

	skip := int64(filter.Page-1) * int64(filter.Limit)
	opts := options.Find().SetSkip(skip).SetLimit(int64(filter.Limit))

	switch {
	case filter.Geo != nil:
		// $nearSphere orders nearest-first; geo sort takes precedence
		// over everything else.
		find["location.coordinates"] = bson.M{
			"$nearSphere": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{filter.Geo.Lng, filter.Geo.Lat},
				},
				"$maxDistance": filter.Geo.RadiusMeters,
			},
		}
		count["location.coordinates"] = bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": []interface{}{
					[]float64{filter.Geo.Lng, filter.Geo.Lat},
					filter.Geo.RadiusMeters / earthRadiusMeters,
				},
			},
		}
	case filter.Query != "":
		opts.SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}})
		opts.SetSort(bson.D{
			{Key: "score", Value: bson.M{"$meta": "textScore"}},
			{Key: "createdAt", Value: -1},
		})
	default:
		opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})
	}

	return find, count, opts
}

func (r *MongoIssueRepository) Search(ctx context.Context, filter SearchFilter) ([]models.Issue, int64, error) {
	find, count, opts := buildSearchQuery(filter)

	total, err := r.col.CountDocuments(ctx, count)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := r.col.Find(ctx, find, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	issues := make([]models.Issue, 0)
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, err
	}
	return issues, total, nil
}

func (r *MongoIssueRepository) CountByStatus(ctx context.Context) (map[models.IssueStatus]int64, error) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.IssueStatus `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[models.IssueStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *MongoIssueRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{
		"createdAt": bson.M{"$gte": from, "$lt": to},
	})
}
