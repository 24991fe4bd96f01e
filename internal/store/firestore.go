package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dietTrackerAPI/internal/streak"
	"dietTrackerAPI/internal/types/activity"
	"dietTrackerAPI/internal/types/user"
)

const (
	profilesCollection   = "profiles"
	clerkIndexCollection = "clerkIndex"
	activitiesCollection = "activities"
)

type FirestoreOptions struct {
	ProjectID       string
	CredentialsFile string
	// CredentialsJSON is a base64 encoded service account key; it wins over
	// CredentialsFile when set.
	CredentialsJSON string
}

// FirestoreStore keeps profiles as documents in profiles/{id}, a clerkIndex/{clerkID}
// document pointing at each profile, and entries under profiles/{id}/activities.
type FirestoreStore struct {
	client *firestore.Client
	logger *zap.Logger
}

type firestoreProfile struct {
	ClerkID       string     `firestore:"clerkId"`
	Email         string     `firestore:"email"`
	Username      string     `firestore:"username"`
	FirstName     string     `firestore:"firstName"`
	LastName      string     `firestore:"lastName"`
	ImageURL      string     `firestore:"imageUrl"`
	EmailVerified bool       `firestore:"emailVerified"`
	CurrentStreak int        `firestore:"currentStreak"`
	LastLogDate   *time.Time `firestore:"lastLogDate"`
	CreatedAt     time.Time  `firestore:"createdAt"`
	UpdatedAt     time.Time  `firestore:"updatedAt"`
}

type firestoreClerkIndex struct {
	ProfileID string `firestore:"profileId"`
}

type firestoreActivity struct {
	Kind            string    `firestore:"kind"`
	Name            string    `firestore:"name"`
	MealType        string    `firestore:"mealType"`
	Calories        int       `firestore:"calories"`
	ProteinG        float64   `firestore:"proteinG"`
	CarbsG          float64   `firestore:"carbsG"`
	FatG            float64   `firestore:"fatG"`
	WaterML         int       `firestore:"waterMl"`
	DurationMinutes int       `firestore:"durationMinutes"`
	LoggedAt        time.Time `firestore:"loggedAt"`
}

// NewFirestoreStore initializes a Firebase app and its Firestore client. It
// first tries base64 credentials from opts.CredentialsJSON and falls back to the
// key file at opts.CredentialsFile.
func NewFirestoreStore(ctx context.Context, opts FirestoreOptions, logger *zap.Logger) (*FirestoreStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var clientOpts []option.ClientOption
	switch {
	case os.Getenv("FIRESTORE_EMULATOR_HOST") != "":
		logger.Info("firestore: using emulator", zap.String("host", os.Getenv("FIRESTORE_EMULATOR_HOST")))
	case opts.CredentialsJSON != "":
		decoded, err := base64.StdEncoding.DecodeString(opts.CredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsJSON(decoded))
		logger.Info("firestore: initializing from FIREBASE_SERVICE_ACCOUNT_JSON")
	default:
		if _, err := os.Stat(opts.CredentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("local firebase file not found: %s, and FIREBASE_SERVICE_ACCOUNT_JSON is not set", opts.CredentialsFile)
		}
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
		logger.Info("firestore: initializing from local file", zap.String("path", opts.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}
	return NewFirestoreStoreFromClient(client, logger), nil
}

func NewFirestoreStoreFromClient(client *firestore.Client, logger *zap.Logger) *FirestoreStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirestoreStore{client: client, logger: logger}
}

// Migrate is a no-op: Firestore collections are schemaless.
func (s *FirestoreStore) Migrate(ctx context.Context) error {
	return nil
}

func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.client.Collection(profilesCollection).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *FirestoreStore) profileRef(id string) *firestore.DocumentRef {
	return s.client.Collection(profilesCollection).Doc(id)
}

func (s *FirestoreStore) clerkRef(clerkID string) *firestore.DocumentRef {
	return s.client.Collection(clerkIndexCollection).Doc(clerkID)
}

func toProfile(id string, doc firestoreProfile) *user.Profile {
	return &user.Profile{
		ID:            id,
		ClerkID:       doc.ClerkID,
		Email:         doc.Email,
		Username:      doc.Username,
		FirstName:     doc.FirstName,
		LastName:      doc.LastName,
		ImageURL:      doc.ImageURL,
		EmailVerified: doc.EmailVerified,
		CurrentStreak: doc.CurrentStreak,
		LastLogDate:   doc.LastLogDate,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

func (s *FirestoreStore) CreateProfile(ctx context.Context, profile *user.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	now := storedInstant(time.Now())
	profile.CreatedAt = now
	profile.UpdatedAt = now
	profile.CurrentStreak = 0
	profile.LastLogDate = nil

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(s.clerkRef(profile.ClerkID)); err == nil {
			return user.ErrDuplicateProfile
		} else if !isNotFound(err) {
			return err
		}
		if err := tx.Create(s.clerkRef(profile.ClerkID), firestoreClerkIndex{ProfileID: profile.ID}); err != nil {
			return err
		}
		return tx.Create(s.profileRef(profile.ID), firestoreProfile{
			ClerkID:       profile.ClerkID,
			Email:         profile.Email,
			Username:      profile.Username,
			FirstName:     profile.FirstName,
			LastName:      profile.LastName,
			ImageURL:      profile.ImageURL,
			EmailVerified: profile.EmailVerified,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateProfile) {
			return err
		}
		return unavailable("create profile", err)
	}
	return nil
}

func (s *FirestoreStore) profileIDForClerk(ctx context.Context, clerkID string) (string, error) {
	snap, err := s.clerkRef(clerkID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return "", streak.ErrProfileNotFound
		}
		return "", unavailable("resolve clerk id", err)
	}
	var idx firestoreClerkIndex
	if err := snap.DataTo(&idx); err != nil {
		return "", unavailable("decode clerk index", err)
	}
	return idx.ProfileID, nil
}

func (s *FirestoreStore) GetProfileByClerkID(ctx context.Context, clerkID string) (*user.Profile, error) {
	id, err := s.profileIDForClerk(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	snap, err := s.profileRef(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, streak.ErrProfileNotFound
		}
		return nil, unavailable("get profile", err)
	}
	var doc firestoreProfile
	if err := snap.DataTo(&doc); err != nil {
		return nil, unavailable("decode profile", err)
	}
	return toProfile(id, doc), nil
}

func (s *FirestoreStore) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.Profile, error) {
	id, err := s.profileIDForClerk(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	var updated *user.Profile
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.profileRef(id))
		if err != nil {
			return err
		}
		var doc firestoreProfile
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		p := toProfile(id, doc)
		applyProfileUpdate(p, req)
		p.UpdatedAt = storedInstant(time.Now())
		updated = p
		return tx.Update(s.profileRef(id), []firestore.Update{
			{Path: "username", Value: p.Username},
			{Path: "firstName", Value: p.FirstName},
			{Path: "lastName", Value: p.LastName},
			{Path: "imageUrl", Value: p.ImageURL},
			{Path: "updatedAt", Value: p.UpdatedAt},
		})
	})
	if err != nil {
		if isNotFound(err) {
			return nil, streak.ErrProfileNotFound
		}
		return nil, unavailable("update profile", err)
	}
	return updated, nil
}

func (s *FirestoreStore) DeleteProfileByClerkID(ctx context.Context, clerkID string) error {
	id, err := s.profileIDForClerk(ctx, clerkID)
	if err != nil {
		return err
	}

	bw := s.client.BulkWriter(ctx)
	iter := s.profileRef(id).Collection(activitiesCollection).DocumentRefs(ctx)
	for {
		ref, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return unavailable("list activities for delete", err)
		}
		if _, err := bw.Delete(ref); err != nil {
			bw.End()
			return unavailable("delete activity", err)
		}
	}
	bw.End()

	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Delete(s.profileRef(id)); err != nil {
			return err
		}
		return tx.Delete(s.clerkRef(clerkID))
	})
	if err != nil {
		return unavailable("delete profile", err)
	}
	return nil
}

func (s *FirestoreStore) LoadStreak(ctx context.Context, userID string) (streak.State, error) {
	snap, err := s.profileRef(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return streak.State{}, streak.ErrProfileNotFound
		}
		return streak.State{}, unavailable("load streak", err)
	}
	var doc firestoreProfile
	if err := snap.DataTo(&doc); err != nil {
		return streak.State{}, unavailable("decode streak", err)
	}
	return streak.State{CurrentStreak: doc.CurrentStreak, LastLogDate: doc.LastLogDate}, nil
}

// SwapStreak re-reads the profile inside a Firestore transaction and writes
// next only when the stored pair still matches prev.
func (s *FirestoreStore) SwapStreak(ctx context.Context, userID string, prev, next streak.State) error {
	ref := s.profileRef(userID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return streak.ErrProfileNotFound
			}
			return err
		}
		var doc firestoreProfile
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		current := streak.State{CurrentStreak: doc.CurrentStreak, LastLogDate: doc.LastLogDate}
		expected := streak.State{CurrentStreak: prev.CurrentStreak, LastLogDate: storedInstantPtr(prev.LastLogDate)}
		if !current.Equal(expected) {
			return streak.ErrConflict
		}

		var lastLog any
		if next.LastLogDate != nil {
			lastLog = storedInstant(*next.LastLogDate)
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "currentStreak", Value: next.CurrentStreak},
			{Path: "lastLogDate", Value: lastLog},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, streak.ErrProfileNotFound) || errors.Is(err, streak.ErrConflict) {
		return err
	}
	return unavailable("swap streak", err)
}

func (s *FirestoreStore) InsertActivity(ctx context.Context, entry *activity.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.LoggedAt = storedInstant(entry.LoggedAt)

	if _, err := s.profileRef(entry.UserID).Get(ctx); err != nil {
		if isNotFound(err) {
			return streak.ErrProfileNotFound
		}
		return unavailable("insert activity", err)
	}

	_, err := s.profileRef(entry.UserID).Collection(activitiesCollection).Doc(entry.ID.String()).Create(ctx, firestoreActivity{
		Kind:            string(entry.Kind),
		Name:            entry.Name,
		MealType:        string(entry.MealType),
		Calories:        entry.Calories,
		ProteinG:        entry.ProteinG,
		CarbsG:          entry.CarbsG,
		FatG:            entry.FatG,
		WaterML:         entry.WaterML,
		DurationMinutes: entry.DurationMinutes,
		LoggedAt:        entry.LoggedAt,
	})
	if err != nil {
		return unavailable("insert activity", err)
	}
	return nil
}

func (s *FirestoreStore) ListActivities(ctx context.Context, userID string, from, to time.Time) ([]activity.Entry, error) {
	iter := s.profileRef(userID).Collection(activitiesCollection).
		Where("loggedAt", ">=", from).
		Where("loggedAt", "<", to).
		OrderBy("loggedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	entries := make([]activity.Entry, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, unavailable("list activities", err)
		}
		var doc firestoreActivity
		if err := snap.DataTo(&doc); err != nil {
			return nil, unavailable("decode activity", err)
		}
		id, err := uuid.Parse(snap.Ref.ID)
		if err != nil {
			return nil, unavailable("decode activity", err)
		}
		entries = append(entries, activity.Entry{
			ID:              id,
			UserID:          userID,
			Kind:            activity.Kind(doc.Kind),
			Name:            doc.Name,
			MealType:        activity.MealType(doc.MealType),
			Calories:        doc.Calories,
			ProteinG:        doc.ProteinG,
			CarbsG:          doc.CarbsG,
			FatG:            doc.FatG,
			WaterML:         doc.WaterML,
			DurationMinutes: doc.DurationMinutes,
			LoggedAt:        doc.LoggedAt,
		})
	}
	return entries, nil
}
