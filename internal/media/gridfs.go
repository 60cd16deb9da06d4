package media

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// GridFSStore keeps blobs in a MongoDB GridFS bucket.
type GridFSStore struct {
	bucket *mongo.GridFSBucket
}

// NewGridFSStore returns a store backed by bucket.
func NewGridFSStore(bucket *mongo.GridFSBucket) *GridFSStore {
	return &GridFSStore{bucket: bucket}
}

// Put uploads r in chunks. The content type is kept in the file metadata.
func (s *GridFSStore) Put(ctx context.Context, name, contentType string, r io.Reader, _ int64) error {
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	if _, err := s.bucket.UploadFromStream(ctx, name, r, opts); err != nil {
		return fmt.Errorf("gridfs upload %q: %w", name, err)
	}
	return nil
}

// Get opens the newest revision stored under name.
func (s *GridFSStore) Get(ctx context.Context, name string) (*Object, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(ctx, name)
	if err != nil {
		if errors.Is(err, mongo.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("gridfs open %q: %w", name, err)
	}

	obj := &Object{Name: name, Size: -1, Body: stream}
	if f := stream.GetFile(); f != nil {
		obj.Size = f.Length
		if len(f.Metadata) > 0 {
			if ct, ok := f.Metadata.Lookup("contentType").StringValueOK(); ok {
				obj.ContentType = ct
			}
		}
	}
	return obj, nil
}
