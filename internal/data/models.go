package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User maps to users collection. Password only ever holds the bcrypt hash.
type User struct {
	ID         bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username   string        `bson:"username" json:"username"`
	Email      string        `bson:"email" json:"email"`
	Phone      string        `bson:"phone" json:"phone"`
	Password   string        `bson:"password" json:"-"`
	Gender     string        `bson:"gender" json:"gender"`
	DOB        time.Time     `bson:"dob" json:"dob"`
	Profession string        `bson:"profession" json:"profession"`
	Address    string        `bson:"address" json:"address"`
	CreatedAt  time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Contact maps to contacts collection, a record space independent of users.
type Contact struct {
	ID       bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username string        `bson:"username" json:"username"`
	Email    string        `bson:"email" json:"email"`
	Phone    string        `bson:"phone" json:"phone"`
	Address  string        `bson:"address" json:"address"`
}

// Message maps to messages collection (sender, recipient, content, timestamp)
type Message struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Sender    string        `bson:"sender" json:"sender"`
	Recipient string        `bson:"recipient" json:"recipient"`
	Content   string        `bson:"content" json:"content"`
	Timestamp time.Time     `bson:"timestamp" json:"timestamp"`
}

// Attachment references an object in the blob store by name.
type Attachment struct {
	Filename    string `bson:"filename" json:"filename"`
	ContentType string `bson:"contentType" json:"contentType"`
}

// Post maps to posts collection.
type Post struct {
	ID         bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Text       string        `bson:"text" json:"text"`
	ImageFiles []Attachment  `bson:"imageFiles" json:"imageFiles"`
	VideoFiles []Attachment  `bson:"videoFiles" json:"videoFiles"`
	CreatedAt  time.Time     `bson:"createdAt" json:"createdAt"`
}
