package utils

import (
	"mime/multipart"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"civicreport-be/models"
)

// Uploader stores uploaded images in a GridFS bucket and hands back the
// {url, storageId} pairs the issue handlers embed.
type Uploader struct {
	bucket *gridfs.Bucket
}

func NewUploader(db *mongo.Database) (*Uploader, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName("uploads"))
	if err != nil {
		return nil, err
	}
	return &Uploader{bucket: bucket}, nil
}

// SaveAll stores each file and returns the images in upload order.
func (u *Uploader) SaveAll(files []*multipart.FileHeader) ([]models.IssueImage, error) {
	images := make([]models.IssueImage, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			return nil, err
		}

		id, err := u.bucket.UploadFromStream(header.Filename, file)
		file.Close()
		if err != nil {
			return nil, err
		}

		images = append(images, models.IssueImage{
			URL:       "/api/files/" + id.Hex(),
			StorageID: id.Hex(),
		})
	}
	return images, nil
}

// Open returns a download stream for a stored file.
func (u *Uploader) Open(id primitive.ObjectID) (*gridfs.DownloadStream, error) {
	return u.bucket.OpenDownloadStream(id)
}
