package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore is the append-only chat message log.
type MessagesStore struct {
	// coll is reference to "messages" collection in MongoDB
	coll *mongo.Collection
	now  func() time.Time
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll, now: time.Now}
}

// chronological orders by timestamp, then by _id for timestamps that collide
var chronological = bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}

// SaveMessage inserts a message document stamped with the server time and
// returns the saved record.
func (m *MessagesStore) SaveMessage(ctx context.Context, sender, recipient, content string) (*Message, error) {
	msg := &Message{
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		// Mongo stores millisecond precision; truncate so the returned
		// record matches what a later read produces
		Timestamp: m.now().UTC().Truncate(time.Millisecond),
	}

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}

	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// MessagesFor returns every message username sent or received, oldest first.
func (m *MessagesStore) MessagesFor(ctx context.Context, username string) ([]*Message, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender": username},
			bson.M{"recipient": username},
		},
	}
	return m.find(ctx, filter)
}

// Conversation returns the messages exchanged between user1 and user2 in
// either direction, oldest first.
func (m *MessagesStore) Conversation(ctx context.Context, user1, user2 string) ([]*Message, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender": user1, "recipient": user2},
			bson.M{"sender": user2, "recipient": user1},
		},
	}
	return m.find(ctx, filter)
}

func (m *MessagesStore) find(ctx context.Context, filter bson.M) ([]*Message, error) {
	cursor, err := m.coll.Find(ctx, filter, options.Find().SetSort(chronological))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []*Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
