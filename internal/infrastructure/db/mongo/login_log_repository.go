package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hvill/identity-service/internal/core/domain"
)

const collectionLoginLogs = "login_logs"

// LoginLogRepository appends authentication audit entries.
type LoginLogRepository struct {
	col *mongo.Collection
}

func NewLoginLogRepository(db *mongo.Database) *LoginLogRepository {
	return &LoginLogRepository{col: db.Collection(collectionLoginLogs)}
}

func (r *LoginLogRepository) Append(ctx context.Context, log *domain.LoginLog) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, bson.M{
		"identity_id": log.IdentityID,
		"email":       log.Email,
		"firstname":   log.Firstname,
		"lastname":    log.Lastname,
		"at":          log.At,
	})
	if err != nil {
		return fmt.Errorf("insert login log: %w", err)
	}
	return nil
}
