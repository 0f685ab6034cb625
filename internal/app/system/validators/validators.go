// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// collections lists every collection the service writes, with its schema.
// oauth_states has no validator but must exist before a transaction
// touches it.
var collections = []struct {
	name   string
	schema func() bson.M
}{
	{"users", usersSchema},
	{"groups", groupsSchema},
	{"group_members", groupMembersSchema},
	{"group_messages", groupMessagesSchema},
	{"oauth_states", nil},
}

// EnsureAll creates missing collections and attaches JSON-Schema validators
// (moderate level, so legacy documents are not rejected on unrelated
// updates). Deployments without collMod support are logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	existing, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		// Fall through: CreateCollection below tolerates NamespaceExists.
		zap.L().Warn("listCollections failed", zap.Error(err))
	}
	have := make(map[string]bool, len(existing))
	for _, n := range existing {
		have[n] = true
	}

	var problems []string
	for _, c := range collections {
		if !have[c.name] {
			if err := db.CreateCollection(ctx, c.name); err != nil && !hasCode(err, 48, "already exists", "namespace exists") {
				problems = append(problems, c.name+": "+err.Error())
				continue
			}
			zap.L().Info("created collection", zap.String("collection", c.name))
		}
		if c.schema == nil {
			continue
		}
		err := db.RunCommand(ctx, bson.D{
			{Key: "collMod", Value: c.name},
			{Key: "validator", Value: c.schema()},
			{Key: "validationLevel", Value: "moderate"},
			{Key: "validationAction", Value: "error"},
		}).Err()
		switch {
		case err == nil:
			zap.L().Debug("validator ensured", zap.String("collection", c.name))
		case hasCode(err, 59, "no such command") || hasCode(err, 115, "not implemented", "not supported"):
			zap.L().Info("validator skipped (unsupported)", zap.String("collection", c.name))
		default:
			problems = append(problems, c.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// hasCode matches a server command error by code, or by message when the
// deployment reports a different code for the same condition.
func hasCode(err error, code int32, phrases ...string) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == code {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "provider"},
			"properties": bson.M{
				"email":    bson.M{"bsonType": "string"},
				"provider": bson.M{"bsonType": "string", "minLength": 1},
				"user_id":  bson.M{"bsonType": "string", "pattern": "^[a-z0-9_-]{3,30}$"},
				"status": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"state": bson.M{"enum": bson.A{models.StatusStudying, models.StatusBusy, models.StatusOffline}},
					},
				},
			},
		},
	}
}

func groupsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "owner_id", "visibility", "invite_code", "member_count"},
			"properties": bson.M{
				"name":         bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci":      bson.M{"bsonType": "string", "minLength": 1},
				"owner_id":     bson.M{"bsonType": "string", "minLength": 3},
				"visibility":   bson.M{"enum": bson.A{models.VisibilityPublic, models.VisibilityPrivate}},
				"invite_code":  bson.M{"bsonType": "string", "pattern": "^[A-Z0-9]{6}$"},
				"member_count": bson.M{"bsonType": bson.A{"int", "long"}},
				"max_members":  bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
			},
		},
	}
}

func groupMembersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"group_id", "user_id", "role", "joined_at"},
			"properties": bson.M{
				"group_id": bson.M{"bsonType": "objectId"},
				"user_id":  bson.M{"bsonType": "string", "minLength": 3},
				"role":     bson.M{"enum": bson.A{models.RoleOwner, models.RoleAdmin, models.RoleMember}},
				"status":   bson.M{"enum": bson.A{models.MemberActive, models.MemberPending}},
				"location": bson.M{
					"bsonType": "object",
					"required": bson.A{"lat", "lng"},
					"properties": bson.M{
						"lat": bson.M{"bsonType": "double", "minimum": -90, "maximum": 90},
						"lng": bson.M{"bsonType": "double", "minimum": -180, "maximum": 180},
					},
				},
			},
		},
	}
}

func groupMessagesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"group_id", "user_id", "content", "message_type", "created_at"},
			"properties": bson.M{
				"group_id":     bson.M{"bsonType": "objectId"},
				"content":      bson.M{"bsonType": "string", "minLength": 1, "maxLength": models.MaxMessageLength},
				"message_type": bson.M{"enum": bson.A{models.MessageText, models.MessageSystem}},
			},
		},
	}
}
