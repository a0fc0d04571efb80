package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"civicreport-be/models"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.CommentWithAuthor, error)
	DeleteByIssue(ctx context.Context, issueID primitive.ObjectID) error
}

type MongoCommentRepository struct {
	col *mongo.Collection
}

func NewMongoCommentRepository(db *mongo.Database) *MongoCommentRepository {
	return &MongoCommentRepository{col: db.Collection("comments")}
}

func (r *MongoCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	_, err := r.col.InsertOne(ctx, comment)
	return err
}

// ListByIssue returns the issue's comments newest-first, each joined with
// the author's username in a single aggregation round trip.
func (r *MongoCommentRepository) ListByIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.CommentWithAuthor, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"issue": issueID}},
		{"$sort": bson.M{"createdAt": -1}},
		{"$lookup": bson.M{
			"from":         "users",
			"localField":   "author",
			"foreignField": "_id",
			"as":           "author",
		}},
		{"$unwind": bson.M{
			"path":                       "$author",
			"preserveNullAndEmptyArrays": true,
		}},
		{"$project": bson.M{
			"issue":     1,
			"text":      1,
			"createdAt": 1,
			"author": bson.M{
				"_id":      "$author._id",
				"username": "$author.username",
			},
		}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	comments := make([]models.CommentWithAuthor, 0)
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *MongoCommentRepository) DeleteByIssue(ctx context.Context, issueID primitive.ObjectID) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"issue": issueID})
	return err
}
