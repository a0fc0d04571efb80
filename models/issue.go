package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueStatus enum
type IssueStatus string

const (
	StatusPending    IssueStatus = "pending"
	StatusInProgress IssueStatus = "in-progress"
	StatusResolved   IssueStatus = "resolved"
)

func (s IssueStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// IssueImage is one uploaded image, addressed by its storage id.
type IssueImage struct {
	URL       string `bson:"url" json:"url"`
	StorageID string `bson:"storageId" json:"storageId"`
}

// Location is a GeoJSON Point plus a human-readable address.
// Coordinates are [longitude, latitude].
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address" json:"address"`
}

// StatusChange is one audited status transition.
type StatusChange struct {
	From IssueStatus        `bson:"from" json:"from"`
	To   IssueStatus        `bson:"to" json:"to"`
	At   time.Time          `bson:"at" json:"at"`
	By   primitive.ObjectID `bson:"by" json:"by"`
}

// Issue represents a civic issue reported by a user. The reporter is
// always a watcher; history grows by one entry per accepted transition.
type Issue struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description" json:"description"`
	Images      []IssueImage         `bson:"images" json:"images"`
	Status      IssueStatus          `bson:"status" json:"status"`
	Location    Location             `bson:"location" json:"location"`
	CreatedBy   primitive.ObjectID   `bson:"createdBy" json:"createdBy"`
	AssignedTo  *primitive.ObjectID  `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Watchers    []primitive.ObjectID `bson:"watchers" json:"watchers"`
	History     []StatusChange       `bson:"history" json:"history"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}
