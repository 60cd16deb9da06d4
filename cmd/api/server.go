package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/media"
)

// userStore is the subset of data.UsersStore the handlers use.
type userStore interface {
	CreateUser(ctx context.Context, user *data.User) (*data.User, error)
	GetUserByUsername(ctx context.Context, username string) (*data.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, email, hashedPassword string) error
}

type contactStore interface {
	CreateContact(ctx context.Context, c *data.Contact) (*data.Contact, error)
	ListContacts(ctx context.Context) ([]*data.Contact, error)
	UpdateContact(ctx context.Context, id bson.ObjectID, c *data.Contact) (*data.Contact, error)
	DeleteContact(ctx context.Context, id bson.ObjectID) error
}

type messageStore interface {
	SaveMessage(ctx context.Context, sender, recipient, content string) (*data.Message, error)
	MessagesFor(ctx context.Context, username string) ([]*data.Message, error)
	Conversation(ctx context.Context, user1, user2 string) ([]*data.Message, error)
}

type postStore interface {
	CreatePost(ctx context.Context, p *data.Post) (*data.Post, error)
	ListPosts(ctx context.Context) ([]*data.Post, error)
}

// publisher hands a persisted chat message to the cross-instance relay.
// When set, local delivery happens when the relay echoes the message back.
type publisher interface {
	Publish(ctx context.Context, m *data.Message) error
}

// Server holds the stores, token manager and live connection hub used by
// the HTTP and socket handlers.
type Server struct {
	users    userStore
	contacts contactStore
	msgs     messageStore
	posts    postStore
	files    media.Store
	auth     *auth.JWTManager
	hub      *ConnectionHub
	relay    publisher
	log      logrus.FieldLogger

	chatRate  float64
	chatBurst int
}

// newServer returns a ready-to-use Server. relay may be nil.
func newServer(users userStore, contacts contactStore, msgs messageStore, posts postStore,
	files media.Store, authMgr *auth.JWTManager, hub *ConnectionHub, log logrus.FieldLogger) *Server {
	return &Server{
		users:     users,
		contacts:  contacts,
		msgs:      msgs,
		posts:     posts,
		files:     files,
		auth:      authMgr,
		hub:       hub,
		log:       log,
		chatRate:  5,
		chatBurst: 10,
	}
}

// deliver fans a persisted message out, through the relay when one is
// configured and straight to the local hub otherwise.
func (s *Server) deliver(ctx context.Context, m *data.Message) {
	if s.relay != nil {
		err := s.relay.Publish(ctx, m)
		if err == nil {
			return
		}
		s.log.WithError(err).Warn("relay publish failed, broadcasting locally")
	}
	s.broadcastLocal(m)
}

// broadcastLocal sends m to every peer connected to this instance.
func (s *Server) broadcastLocal(m *data.Message) {
	ev, err := newEvent(eventChatMessage, chatPayload{
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Content:   m.Content,
	})
	if err != nil {
		s.log.WithError(err).Error("encode chat event")
		return
	}
	if err := s.hub.Broadcast(ev); err != nil {
		s.log.WithError(err).Debug("broadcast reached only some peers")
	}
}
