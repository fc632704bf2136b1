package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hvill/identity-service/internal/core/domain"
)

const collectionVerifications = "id_verifications"

// VerificationRepository persists ID-verification records, one per identity.
type VerificationRepository struct {
	col *mongo.Collection
}

func NewVerificationRepository(db *mongo.Database) *VerificationRepository {
	return &VerificationRepository{col: db.Collection(collectionVerifications)}
}

type mongoVerification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	IdentityID  string             `bson:"identity_id"`
	DocumentRef string             `bson:"document_ref"`
	FullName    string             `bson:"full_name,omitempty"`
	BirthDate   *time.Time         `bson:"birth_date,omitempty"`
	DocNumber   string             `bson:"document_number,omitempty"`
	Status      string             `bson:"status"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func toDomainVerification(m *mongoVerification) *domain.IDVerification {
	return &domain.IDVerification{
		ID:          m.ID.Hex(),
		IdentityID:  m.IdentityID,
		DocumentRef: m.DocumentRef,
		Extracted: domain.ExtractedFields{
			FullName:       m.FullName,
			BirthDate:      m.BirthDate,
			DocumentNumber: m.DocNumber,
		},
		Status:    domain.VerificationStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (r *VerificationRepository) Create(ctx context.Context, v *domain.IDVerification) (*domain.IDVerification, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoVerification{
		IdentityID:  v.IdentityID,
		DocumentRef: v.DocumentRef,
		FullName:    v.Extracted.FullName,
		BirthDate:   v.Extracted.BirthDate,
		DocNumber:   v.Extracted.DocumentNumber,
		Status:      string(v.Status),
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert verification: %w", err)
	}

	out := *v
	out.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return &out, nil
}

func (r *VerificationRepository) FindByIdentity(ctx context.Context, identityID string) (*domain.IDVerification, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoVerification
	err := r.col.FindOne(ctx, bson.M{"identity_id": identityID}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find verification: %w", err)
	}
	return toDomainVerification(&m), nil
}

// SetExtracted stores the OCR result and moves the record to status.
func (r *VerificationRepository) SetExtracted(ctx context.Context, id string, fields domain.ExtractedFields, status domain.VerificationStatus) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrIdentityNotFound
	}

	set := bson.M{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}
	if fields.FullName != "" {
		set["full_name"] = fields.FullName
	}
	if fields.BirthDate != nil {
		set["birth_date"] = *fields.BirthDate
	}
	if fields.DocumentNumber != "" {
		set["document_number"] = fields.DocumentNumber
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

func (r *VerificationRepository) SetStatus(ctx context.Context, id string, status domain.VerificationStatus) error {
	return r.SetExtracted(ctx, id, domain.ExtractedFields{}, status)
}

// EnsureIndexes creates the 1:1 identity index.
func (r *VerificationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "identity_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
