// Package mongo is the MongoDB account driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/internal/userspace/store"
)

// CollectionName is the collection holding accounts.
const CollectionName = "accounts"

const (
	emailIndex    = "email_unique"
	usernameIndex = "username_unique"
)

type document[X any] struct {
	ID                  string     `bson:"_id"`
	Username            string     `bson:"username,omitempty"`
	Email               string     `bson:"email"`
	PasswordHash        string     `bson:"password_hash"`
	PasswordSalt        string     `bson:"password_salt"`
	Verified            bool       `bson:"verified"`
	VerificationToken   string     `bson:"verification_token,omitempty"`
	RecoveryToken       string     `bson:"recovery_token,omitempty"`
	RecoveryRequestedAt *time.Time `bson:"recovery_requested_at,omitempty"`
	Extras              X          `bson:"extras"`
	CreatedAt           time.Time  `bson:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at"`
}

// Store keeps accounts in a single collection.
type Store[X any] struct {
	client *mongo.Client
	coll   *mongo.Collection
	owned  bool
}

var _ store.Driver[struct{}] = (*Store[struct{}])(nil)

// Open connects to uri and prepares the accounts collection in database.
// The returned Store owns the client and disconnects it on Close.
func Open[X any](ctx context.Context, uri, database string) (*Store[X], error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	s, err := NewStore[X](ctx, client, database)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewStore uses an existing client. The caller keeps ownership of client.
func NewStore[X any](ctx context.Context, client *mongo.Client, database string) (*Store[X], error) {
	s := &Store[X]{
		client: client,
		coll:   client.Database(database).Collection(CollectionName),
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique and lookup indexes. It is idempotent.
func (s *Store[X]) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(emailIndex).SetUnique(true),
		},
		{
			// Accounts without a username must not collide on the missing field.
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().
				SetName(usernameIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"username": bson.M{"$type": "string"}}),
		},
		{
			Keys:    bson.D{{Key: "verification_token", Value: 1}},
			Options: options.Index().SetName("verification_token").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "recovery_token", Value: 1}},
			Options: options.Index().SetName("recovery_token").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "recovery_requested_at", Value: 1}},
			Options: options.Index().SetName("recovery_requested_at").SetSparse(true),
		},
	}

	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("mongo: create indexes: %w", err)
	}
	return nil
}

func (s *Store[X]) Close(ctx context.Context) error {
	if !s.owned {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Ping verifies the primary is reachable.
func (s *Store[X]) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store[X]) Insert(ctx context.Context, a domain.Account[X]) error {
	_, err := s.coll.InsertOne(ctx, toDocument(a))
	return mapWriteError(err)
}

func (s *Store[X]) Find(ctx context.Context, f store.Filter) (domain.Account[X], error) {
	filter, err := match(f)
	if err != nil {
		return domain.Account[X]{}, err
	}

	var doc document[X]
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Account[X]{}, store.ErrNotFound
		}
		return domain.Account[X]{}, err
	}
	return doc.account(), nil
}

func (s *Store[X]) Exists(ctx context.Context, f store.Filter) (bool, error) {
	filter, err := match(f)
	if err != nil {
		return false, err
	}

	n, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store[X]) Update(ctx context.Context, f store.Filter, c store.Changes[X]) error {
	filter, err := match(f)
	if err != nil {
		return err
	}

	res, err := s.coll.UpdateOne(ctx, filter, updateDocument(c))
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store[X]) Delete(ctx context.Context, f store.Filter) error {
	filter, err := match(f)
	if err != nil {
		return err
	}

	res, err := s.coll.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store[X]) ClearRecoveryBefore(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"recovery_requested_at": bson.M{"$lte": cutoff}},
		bson.M{
			"$unset": bson.M{"recovery_token": "", "recovery_requested_at": ""},
			"$set":   bson.M{"updated_at": now},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func updateDocument[X any](c store.Changes[X]) bson.M {
	set := bson.M{"updated_at": c.UpdatedAt}
	unset := bson.M{}

	setOrUnset := func(key string, v *string) {
		if v == nil {
			return
		}
		if *v == "" {
			unset[key] = ""
			return
		}
		set[key] = *v
	}

	if c.Email != nil {
		set["email"] = *c.Email
	}
	setOrUnset("username", c.Username)
	if c.Credentials != nil {
		set["password_hash"] = c.Credentials.Hash
		set["password_salt"] = c.Credentials.Salt
	}
	if c.Verified != nil {
		set["verified"] = *c.Verified
	}
	setOrUnset("verification_token", c.VerificationToken)
	switch {
	case c.Recovery != nil:
		set["recovery_token"] = c.Recovery.Token
		set["recovery_requested_at"] = c.Recovery.RequestedAt
	case c.ClearRecovery:
		unset["recovery_token"] = ""
		unset["recovery_requested_at"] = ""
	}
	if c.Extras != nil {
		set["extras"] = *c.Extras
	}

	update := bson.M{"$set": set}
	// An empty $unset is rejected by the server.
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func match(f store.Filter) (bson.M, error) {
	switch f.Field {
	case store.FieldID:
		return bson.M{"_id": f.Value}, nil
	case store.FieldEmail:
		return bson.M{"email": f.Value}, nil
	case store.FieldUsername:
		return bson.M{"username": f.Value}, nil
	case store.FieldVerificationToken:
		return bson.M{"verification_token": f.Value}, nil
	case store.FieldRecoveryToken:
		return bson.M{"recovery_token": f.Value}, nil
	default:
		return nil, fmt.Errorf("mongo: unsupported filter field %d", f.Field)
	}
}

// mapWriteError identifies the violated unique index by name. Only the
// "index: <name> " part of each server message is matched, since the
// duplicated key value is echoed in the same message.
func mapWriteError(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	for _, msg := range duplicateKeyMessages(err) {
		switch {
		case strings.Contains(msg, "index: "+emailIndex+" "):
			return store.ErrDuplicateEmail
		case strings.Contains(msg, "index: "+usernameIndex+" "):
			return store.ErrDuplicateUsername
		}
	}
	return err
}

func isDuplicateKeyCode(code int) bool {
	return code == 11000 || code == 11001 || code == 12582
}

// duplicateKeyMessages collects the server messages of every duplicate key
// error carried by err.
func duplicateKeyMessages(err error) []string {
	var msgs []string

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if isDuplicateKeyCode(e.Code) {
				msgs = append(msgs, e.Message)
			}
		}
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if isDuplicateKeyCode(e.Code) {
				msgs = append(msgs, e.Message)
			}
		}
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) && isDuplicateKeyCode(int(ce.Code)) {
		msgs = append(msgs, ce.Message)
	}
	return msgs
}

func toDocument[X any](a domain.Account[X]) document[X] {
	return document[X]{
		ID:                  a.ID,
		Username:            a.Username,
		Email:               a.Email,
		PasswordHash:        a.PasswordHash,
		PasswordSalt:        a.PasswordSalt,
		Verified:            a.Verified,
		VerificationToken:   a.VerificationToken,
		RecoveryToken:       a.RecoveryToken,
		RecoveryRequestedAt: a.RecoveryRequestedAt,
		Extras:              a.Extras,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

func (d document[X]) account() domain.Account[X] {
	a := domain.Account[X]{
		ID:                d.ID,
		Username:          d.Username,
		Email:             d.Email,
		PasswordHash:      d.PasswordHash,
		PasswordSalt:      d.PasswordSalt,
		Verified:          d.Verified,
		VerificationToken: d.VerificationToken,
		RecoveryToken:     d.RecoveryToken,
		Extras:            d.Extras,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
	if d.RecoveryRequestedAt != nil {
		t := d.RecoveryRequestedAt.UTC()
		a.RecoveryRequestedAt = &t
	}
	return a
}
