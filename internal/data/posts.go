package data

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// PostsStore persists feed posts. Attachment bytes live in the blob store;
// posts only reference them by name.
type PostsStore struct {
	coll *mongo.Collection
}

// NewPostsStore returns a PostsStore using the provided collection.
func NewPostsStore(coll *mongo.Collection) *PostsStore {
	return &PostsStore{coll: coll}
}

// CreatePost inserts p with a server-assigned creation time.
func (s *PostsStore) CreatePost(ctx context.Context, p *Post) (*Post, error) {
	if p.ImageFiles == nil {
		p.ImageFiles = []Attachment{}
	}
	if p.VideoFiles == nil {
		p.VideoFiles = []Attachment{}
	}
	p.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	result, err := s.coll.InsertOne(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	p.ID = result.InsertedID.(bson.ObjectID)
	return p, nil
}

// ListPosts returns every post, oldest first.
func (s *PostsStore) ListPosts(ctx context.Context) ([]*Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []*Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
