// Package db manages MongoDB connections and collections.
package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"go.mongodb.org/mongo-driver/v2/bson"           // Index key documents
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference
)

const (
	usersColl    = "users"
	contactsColl = "contacts"
	messagesColl = "messages"
	postsColl    = "posts"
)

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db is the application database; collections are created lazily on first write
	db *mongo.Database
}

// New connects to MongoDB and returns a Client bound to dbName.
func New(ctx context.Context, mongoURI, dbName string) (*Client, error) {
	// Create MongoDB client options from connection URI
	// SetConnectTimeout: fail fast if MongoDB is unreachable
	opts := options.Client().
		ApplyURI(mongoURI).                 // Parse connection string
		SetConnectTimeout(10 * time.Second) // Max time to connect

	// Establish connection to MongoDB server
	// This doesn't actually connect yet, just creates the client
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Create a context with timeout for the ping operation
	// If ping doesn't complete in 5 seconds, fail
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel() // Ensure context is cancelled (cleanup)

	// Ping MongoDB to verify connection is working
	// This is the actual connection test
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		// Release the pool the client opened before giving up
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	// Return wrapped client with both MongoDB client and database references
	// The database itself is lazy-loaded: not created until first write
	return &Client{
		client: client,                  // Keep reference to close connection later
		db:     client.Database(dbName), // Use this to access collections
	}, nil
}

// Ping verifies the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	// Created if doesn't exist (MongoDB creates on first write)
	return c.db.Collection(usersColl)
}

// ContactsCollection returns the contacts collection.
func (c *Client) ContactsCollection() *mongo.Collection {
	// Address book entries, separate from login accounts
	return c.db.Collection(contactsColl)
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	// Created if doesn't exist (MongoDB creates on first write)
	return c.db.Collection(messagesColl)
}

// PostsCollection returns the posts collection.
func (c *Client) PostsCollection() *mongo.Collection {
	// Post documents only; attachment bytes live in GridFS or S3
	return c.db.Collection(postsColl)
}

// GridFSBucket returns the chunked blob bucket with the given name
// (stored as <name>.files and <name>.chunks).
func (c *Client) GridFSBucket(name string) *mongo.GridFSBucket {
	return c.db.GridFSBucket(options.GridFSBucket().SetName(name))
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	// Disconnect closes the MongoDB connection
	// ctx can have timeout if you want to force shutdown after N seconds
	return c.client.Disconnect(ctx)
}

// DropAll drops the application collections. Used by integration tests.
func (c *Client) DropAll(ctx context.Context) error {
	for _, name := range []string{usersColl, contactsColl, messagesColl, postsColl} {
		if err := c.db.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return nil
}

// CreateIndexes creates the uniqueness and ordering indexes the stores rely on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== UNIQUENESS =====
	// users and contacts are independent record spaces with the same rules:
	// username and email are each unique
	unique := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := c.UsersCollection().Indexes().CreateMany(ctx, unique); err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}
	if _, err := c.ContactsCollection().Indexes().CreateMany(ctx, unique); err != nil {
		return fmt.Errorf("failed to create contacts indexes: %w", err)
	}

	// ===== MESSAGES =====
	// participant lookups sorted by timestamp ascending
	messageIndexes := []mongo.IndexModel{
		// Used by: MessagesFor (sent side)
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "timestamp", Value: 1}}},
		// Used by: MessagesFor (received side)
		{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "timestamp", Value: 1}}},
		// Used by: Conversation
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "recipient", Value: 1}, {Key: "timestamp", Value: 1}}},
	}
	if _, err := c.MessagesCollection().Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	// ===== POSTS =====
	// Used by: ListPosts (oldest first)
	if _, err := c.PostsCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create posts index: %w", err)
	}

	return nil
}
