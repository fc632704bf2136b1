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
	"github.com/hvill/identity-service/internal/core/ports"
)

const collectionIdentities = "identities"

const maxStaffPageSize = 100

// IdentityRepository persists identities in the identities collection.
//
// The email uniqueness constraint is enforced by a partial unique index
// scoped to {is_draft: false}. Drafts may freely collide with each other and
// with a verified identity; the index fires the moment a promotion makes a
// colliding document non-draft, which is what makes Promote atomic with
// respect to concurrent promotions.
type IdentityRepository struct {
	col *mongo.Collection
}

func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{col: db.Collection(collectionIdentities)}
}

type mongoIdentity struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Firstname    string             `bson:"firstname"`
	Middlename   string             `bson:"middlename,omitempty"`
	Lastname     string             `bson:"lastname"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Phone        string             `bson:"phone,omitempty"`
	Gender       string             `bson:"gender,omitempty"`
	Role         string             `bson:"role"`
	Department   string             `bson:"department,omitempty"`

	IsDraft    bool `bson:"is_draft"`
	IsVerified bool `bson:"is_verified"`
	IsActive   bool `bson:"is_active"`

	RegistrationStep     string `bson:"registration_step"`
	FaceEnrollmentStatus string `bson:"face_enrollment_status"`
	FaceRef              string `bson:"face_ref,omitempty"`
	FaceEnrollmentError  string `bson:"face_enrollment_error,omitempty"`

	IDVerificationID string `bson:"id_verification_id,omitempty"`

	RegistrationStarted   time.Time  `bson:"registration_started"`
	RegistrationCompleted *time.Time `bson:"registration_completed,omitempty"`
	CreatedAt             time.Time  `bson:"created_at"`
	UpdatedAt             time.Time  `bson:"updated_at"`
}

func toDomainIdentity(m *mongoIdentity) *domain.Identity {
	return &domain.Identity{
		ID:                    m.ID.Hex(),
		Firstname:             m.Firstname,
		Middlename:            m.Middlename,
		Lastname:              m.Lastname,
		Email:                 m.Email,
		PasswordHash:          m.PasswordHash,
		Phone:                 m.Phone,
		Gender:                m.Gender,
		Role:                  m.Role,
		Department:            m.Department,
		IsDraft:               m.IsDraft,
		IsVerified:            m.IsVerified,
		IsActive:              m.IsActive,
		RegistrationStep:      domain.RegistrationStep(m.RegistrationStep),
		FaceEnrollmentStatus:  domain.FaceEnrollmentStatus(m.FaceEnrollmentStatus),
		FaceRef:               m.FaceRef,
		FaceEnrollmentError:   m.FaceEnrollmentError,
		IDVerificationID:      m.IDVerificationID,
		RegistrationStarted:   m.RegistrationStarted,
		RegistrationCompleted: m.RegistrationCompleted,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

// Create inserts a new identity document and returns it with its assigned id.
func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoIdentity{
		Firstname:             identity.Firstname,
		Middlename:            identity.Middlename,
		Lastname:              identity.Lastname,
		Email:                 identity.Email,
		PasswordHash:          identity.PasswordHash,
		Phone:                 identity.Phone,
		Gender:                identity.Gender,
		Role:                  identity.Role,
		Department:            identity.Department,
		IsDraft:               identity.IsDraft,
		IsVerified:            identity.IsVerified,
		IsActive:              identity.IsActive,
		RegistrationStep:      string(identity.RegistrationStep),
		FaceEnrollmentStatus:  string(identity.FaceEnrollmentStatus),
		IDVerificationID:      identity.IDVerificationID,
		RegistrationStarted:   identity.RegistrationStarted,
		RegistrationCompleted: identity.RegistrationCompleted,
		CreatedAt:             identity.CreatedAt,
		UpdatedAt:             identity.UpdatedAt,
	}

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}

	out := *identity
	out.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return &out, nil
}

// FindByID retrieves an identity by its id, draft or not.
func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrIdentityNotFound
	}

	var m mongoIdentity
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return toDomainIdentity(&m), nil
}

// FindNonDraftByEmail looks up an identity by email among non-draft records.
func (r *IdentityRepository) FindNonDraftByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoIdentity
	err := r.col.FindOne(ctx, bson.M{"email": email, "is_draft": false}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find identity by email: %w", err)
	}
	return toDomainIdentity(&m), nil
}

// UpdateFields applies the non-nil fields of update as a targeted $set so
// concurrent writers never overwrite each other's fields.
func (r *IdentityRepository) UpdateFields(ctx context.Context, id string, update ports.IdentityUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrIdentityNotFound
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if update.RegistrationStep != nil {
		set["registration_step"] = string(*update.RegistrationStep)
	}
	if update.FaceEnrollmentStatus != nil {
		set["face_enrollment_status"] = string(*update.FaceEnrollmentStatus)
	}
	if update.FaceRef != nil {
		set["face_ref"] = *update.FaceRef
	}
	if update.FaceEnrollmentError != nil {
		set["face_enrollment_error"] = *update.FaceEnrollmentError
	}
	if update.IDVerificationID != nil {
		set["id_verification_id"] = *update.IDVerificationID
	}
	if update.IsActive != nil {
		set["is_active"] = *update.IsActive
	}
	if update.Firstname != nil {
		set["firstname"] = *update.Firstname
	}
	if update.Middlename != nil {
		set["middlename"] = *update.Middlename
	}
	if update.Lastname != nil {
		set["lastname"] = *update.Lastname
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.Gender != nil {
		set["gender"] = *update.Gender
	}
	if update.Role != nil {
		set["role"] = *update.Role
	}
	if update.Department != nil {
		set["department"] = *update.Department
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		// Rewriting the email of a non-draft document can trip the
		// partial unique index.
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("update identity: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

// Promote flips a draft to a verified identity in a single compare-and-swap.
// The filter only matches an unpromoted draft, so registration_completed is
// set at most once; the partial unique index rejects the write when another
// non-draft identity already holds the email.
func (r *IdentityRepository) Promote(ctx context.Context, id string, completedAt time.Time) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrIdentityNotFound
	}

	filter := bson.M{"_id": oid, "is_draft": true, "is_verified": false}
	update := bson.M{"$set": bson.M{
		"is_draft":               false,
		"is_verified":            true,
		"registration_step":      string(domain.StepCompleted),
		"registration_completed": completedAt,
		"updated_at":             completedAt,
	}}

	var m mongoIdentity
	err = r.col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrConflict
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("promote identity: %w", err)
	}
	return toDomainIdentity(&m), nil
}

// ListStaff returns a page of non-draft identities matching filter plus the
// total count. Search matches firstname, lastname, or email case-insensitively.
func (r *IdentityRepository) ListStaff(ctx context.Context, filter ports.ListStaffFilter) ([]*domain.Identity, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := bson.M{"is_draft": false}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.Active != nil {
		query["is_active"] = *filter.Active
	}
	if filter.Search != "" {
		regex := bson.M{"$regex": filter.Search, "$options": "i"}
		query["$or"] = bson.A{
			bson.M{"firstname": regex},
			bson.M{"lastname": regex},
			bson.M{"email": regex},
		}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > maxStaffPageSize {
		limit = maxStaffPageSize
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.Identity
	for cur.Next(ctx) {
		var m mongoIdentity
		if err := cur.Decode(&m); err != nil {
			return nil, 0, fmt.Errorf("decode identity: %w", err)
		}
		out = append(out, toDomainIdentity(&m))
	}
	if err := cur.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate staff: %w", err)
	}
	return out, total, nil
}

// Statistics aggregates non-draft identity counts by role and active flag.
func (r *IdentityRepository) Statistics(ctx context.Context) (*ports.StaffStatistics, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	base := bson.M{"is_draft": false}
	stats := &ports.StaffStatistics{ByRole: make(map[string]int64)}

	total, err := r.col.CountDocuments(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("count identities: %w", err)
	}
	stats.Total = total

	for _, role := range []string{domain.RoleDoctor, domain.RoleNurse, domain.RoleReceptionist, domain.RoleAdmin, domain.RoleSuperAdmin} {
		n, err := r.col.CountDocuments(ctx, bson.M{"is_draft": false, "role": role})
		if err != nil {
			return nil, fmt.Errorf("count role %s: %w", role, err)
		}
		stats.ByRole[role] = n
	}

	active, err := r.col.CountDocuments(ctx, bson.M{"is_draft": false, "is_active": true})
	if err != nil {
		return nil, fmt.Errorf("count active: %w", err)
	}
	stats.Active = active
	stats.Inactive = total - active

	return stats, nil
}

// DeleteDraftsBefore reclaims drafts whose registration started before cutoff.
func (r *IdentityRepository) DeleteDraftsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{
		"is_draft":             true,
		"registration_started": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("delete stale drafts: %w", err)
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates the indexes the repository relies on, most notably
// the partial unique index that scopes email uniqueness to non-draft records.
func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_draft": false}),
		},
		{Keys: bson.D{{Key: "role", Value: 1}}},
		{Keys: bson.D{{Key: "is_draft", Value: 1}, {Key: "registration_started", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
