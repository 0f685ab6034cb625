package txn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dalemusser/studyhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func TestIsNotSupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unrelated", errors.New("group name taken"), false},
		{"standalone server", mongo.CommandError{Code: 20, Message: "Transaction numbers are only allowed on a replica set member or mongos"}, true},
		{"illegal operation", mongo.CommandError{Code: 51, Message: "Illegal operation"}, true},
		{"operation not allowed in transaction", mongo.CommandError{Code: 263, Message: "Cannot run in a multi-document transaction"}, true},
		{"wrapped", fmt.Errorf("insert owner: %w", mongo.CommandError{Code: 20, Message: "x"}), true},
		{"duplicate key", mongo.CommandError{Code: 11000, Message: "E11000 duplicate key"}, false},
		{"message names replica set", errors.New("Transaction failed: not a REPLICA SET member"), true},
		{"message names session support", errors.New("sessions are not supported by this deployment"), true},
		{"single keyword", errors.New("transaction aborted"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotSupported(tt.err); got != tt.want {
				t.Errorf("IsNotSupported(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRun_CommitsWrites(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := Run(ctx, db, zap.NewNop(), func(ctx context.Context) error {
		if _, err := db.Collection("groups").InsertOne(ctx, bson.M{"name": "a"}); err != nil {
			return err
		}
		_, err := db.Collection("group_members").InsertOne(ctx, bson.M{"user_id": "u"})
		return err
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	n, err := db.Collection("group_members").CountDocuments(ctx, bson.M{"user_id": "u"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 member row, got %d", n)
	}
}

func TestRun_PropagatesBodyError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	boom := errors.New("boom")
	err := Run(ctx, db, zap.NewNop(), func(ctx context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected body error, got %v", err)
	}
}
