package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/arkind/identity-api/internal/core/domain"
)

const auditCollection = "auth_events"

type MongoAuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *MongoAuditRepository {
	return &MongoAuditRepository{coll: db.Collection(auditCollection)}
}

type auditDoc struct {
	AccountID  string `bson:"account_id,omitempty"`
	Email      string `bson:"email,omitempty"`
	Action     string `bson:"action"`
	Success    bool   `bson:"success"`
	IP         string `bson:"ip,omitempty"`
	UserAgent  string `bson:"user_agent,omitempty"`
	OccurredAt int64  `bson:"occurred_at"`
}

func (r *MongoAuditRepository) Insert(ctx context.Context, event *domain.AuthEvent) error {
	doc := auditDoc{
		AccountID:  event.AccountID,
		Email:      event.Email,
		Action:     string(event.Action),
		Success:    event.Success,
		IP:         event.IP,
		UserAgent:  event.UserAgent,
		OccurredAt: event.At.Unix(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}
