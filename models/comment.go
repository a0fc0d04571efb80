package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment is immutable once created and only ever removed together with
// its issue.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Issue     primitive.ObjectID `bson:"issue" json:"issue"`
	Author    primitive.ObjectID `bson:"author" json:"author"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// CommentAuthor is the denormalized author info attached to listed
// comments.
type CommentAuthor struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Username string             `bson:"username" json:"username"`
}

// CommentWithAuthor is the read model returned by comment listings.
type CommentWithAuthor struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Issue     primitive.ObjectID `bson:"issue" json:"issue"`
	Author    CommentAuthor      `bson:"author" json:"author"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
