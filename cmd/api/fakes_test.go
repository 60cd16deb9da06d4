package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/media"
)

// fakeUsers is an in-memory userStore keyed by username.
type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*data.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: map[string]*data.User{}} }

func (f *fakeUsers) CreateUser(_ context.Context, u *data.User) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return nil, data.ErrDuplicateUser
		}
	}
	cp := *u
	cp.ID = bson.NewObjectID()
	f.users[cp.Username] = &cp
	return &cp, nil
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, data.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) EmailExists(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, email, hashed string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			u.Password = hashed
			return nil
		}
	}
	return data.ErrUserNotFound
}

type fakeContacts struct {
	mu       sync.Mutex
	contacts map[bson.ObjectID]*data.Contact
}

func newFakeContacts() *fakeContacts {
	return &fakeContacts{contacts: map[bson.ObjectID]*data.Contact{}}
}

func (f *fakeContacts) conflicts(id bson.ObjectID, c *data.Contact) bool {
	for otherID, o := range f.contacts {
		if otherID != id && (o.Username == c.Username || o.Email == c.Email) {
			return true
		}
	}
	return false
}

func (f *fakeContacts) CreateContact(_ context.Context, c *data.Contact) (*data.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts(bson.ObjectID{}, c) {
		return nil, data.ErrDuplicateContact
	}
	cp := *c
	cp.ID = bson.NewObjectID()
	f.contacts[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeContacts) ListContacts(context.Context) ([]*data.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*data.Contact, 0, len(f.contacts))
	for _, c := range f.contacts {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeContacts) UpdateContact(_ context.Context, id bson.ObjectID, c *data.Contact) (*data.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contacts[id]; !ok {
		return nil, data.ErrContactNotFound
	}
	if f.conflicts(id, c) {
		return nil, data.ErrDuplicateContact
	}
	cp := *c
	cp.ID = id
	f.contacts[id] = &cp
	return &cp, nil
}

func (f *fakeContacts) DeleteContact(_ context.Context, id bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.contacts, id)
	return nil
}

// fakeMsgs is an append-only message log with a strictly increasing clock.
type fakeMsgs struct {
	mu   sync.Mutex
	msgs []*data.Message
	now  time.Time
	fail bool
}

func newFakeMsgs() *fakeMsgs {
	return &fakeMsgs{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeMsgs) SaveMessage(_ context.Context, sender, recipient, content string) (*data.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("write failed")
	}
	f.now = f.now.Add(time.Second)
	m := &data.Message{ID: bson.NewObjectID(), Sender: sender, Recipient: recipient, Content: content, Timestamp: f.now}
	f.msgs = append(f.msgs, m)
	return m, nil
}

func (f *fakeMsgs) filter(keep func(*data.Message) bool) []*data.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*data.Message{}
	for _, m := range f.msgs {
		if keep(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (f *fakeMsgs) MessagesFor(_ context.Context, username string) ([]*data.Message, error) {
	return f.filter(func(m *data.Message) bool { return m.Sender == username || m.Recipient == username }), nil
}

func (f *fakeMsgs) Conversation(_ context.Context, a, b string) ([]*data.Message, error) {
	if f.fail {
		return nil, errors.New("read failed")
	}
	return f.filter(func(m *data.Message) bool {
		return (m.Sender == a && m.Recipient == b) || (m.Sender == b && m.Recipient == a)
	}), nil
}

func (f *fakeMsgs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fakePosts struct {
	mu    sync.Mutex
	posts []*data.Post
}

func (f *fakePosts) CreatePost(_ context.Context, p *data.Post) (*data.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	cp.ID = bson.NewObjectID()
	cp.CreatedAt = time.Now().UTC()
	f.posts = append(f.posts, &cp)
	return &cp, nil
}

func (f *fakePosts) ListPosts(context.Context) ([]*data.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*data.Post(nil), f.posts...), nil
}

type storedFile struct {
	contentType string
	body        []byte
}

// fakeFiles is an in-memory media.Store.
type fakeFiles struct {
	mu    sync.Mutex
	files map[string]storedFile
}

func newFakeFiles() *fakeFiles { return &fakeFiles{files: map[string]storedFile{}} }

func (f *fakeFiles) Put(_ context.Context, name, contentType string, r io.Reader, _ int64) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = storedFile{contentType: contentType, body: b}
	return nil
}

func (f *fakeFiles) Get(_ context.Context, name string) (*media.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sf, ok := f.files[name]
	if !ok {
		return nil, media.ErrNotFound
	}
	return &media.Object{
		Name:        name,
		ContentType: sf.contentType,
		Size:        int64(len(sf.body)),
		Body:        io.NopCloser(bytes.NewReader(sf.body)),
	}, nil
}

// testEnv bundles a Server with the fakes behind it.
type testEnv struct {
	srv      *Server
	users    *fakeUsers
	contacts *fakeContacts
	msgs     *fakeMsgs
	posts    *fakePosts
	files    *fakeFiles
	jwt      *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{
		users:    newFakeUsers(),
		contacts: newFakeContacts(),
		msgs:     newFakeMsgs(),
		posts:    &fakePosts{},
		files:    newFakeFiles(),
		jwt:      auth.NewJWTManager("test-secret", time.Hour),
	}
	env.srv = newServer(env.users, env.contacts, env.msgs, env.posts, env.files, env.jwt, NewConnectionHub(), log)
	return env
}
