package data

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ContactsStore provides CRUD over the contacts collection.
type ContactsStore struct {
	coll *mongo.Collection
}

// NewContactsStore returns a ContactsStore using the provided collection.
func NewContactsStore(coll *mongo.Collection) *ContactsStore {
	return &ContactsStore{coll: coll}
}

// CreateContact inserts c and returns it with its generated id.
func (s *ContactsStore) CreateContact(ctx context.Context, c *Contact) (*Contact, error) {
	c.ID = bson.ObjectID{}
	result, err := s.coll.InsertOne(ctx, c)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateContact
		}
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	c.ID = result.InsertedID.(bson.ObjectID)
	return c, nil
}

// ListContacts returns every contact, unfiltered.
func (s *ContactsStore) ListContacts(ctx context.Context) ([]*Contact, error) {
	cursor, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	contacts := []*Contact{}
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// UpdateContact replaces the editable fields of the contact with id and
// returns the updated document.
func (s *ContactsStore) UpdateContact(ctx context.Context, id bson.ObjectID, c *Contact) (*Contact, error) {
	update := bson.M{"$set": bson.M{
		"username": c.Username,
		"email":    c.Email,
		"phone":    c.Phone,
		"address":  c.Address,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Contact
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, ErrContactNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, ErrDuplicateContact
		}
		return nil, fmt.Errorf("update contact: %w", err)
	}
	return &updated, nil
}

// DeleteContact removes the contact with id. Deleting an absent id is not an error.
func (s *ContactsStore) DeleteContact(ctx context.Context, id bson.ObjectID) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return nil
}
