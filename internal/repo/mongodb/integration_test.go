package mongodb

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/casehub/internal/domain/legalcase"
	"github.com/geocoder89/casehub/internal/domain/otp"
	"github.com/geocoder89/casehub/internal/domain/user"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// openTestDB connects to TEST_MONGO_URI and returns a throwaway database.
func openTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping mongo integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, db, err := Connect(ctx, uri, "casehub_test_"+uuid.NewString()[:8])
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func TestUsersRepo_UniqueMobile(t *testing.T) {
	db := openTestDB(t)
	repo := NewUsersRepo(db, nil)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	u := user.User{ID: uuid.NewString(), Name: "Asha", Mobile: "9876543210", PINHash: "x", Role: user.RoleAdvocate, IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := u
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, dup); !errors.Is(err, user.ErrMobileAlreadyUsed) {
		t.Fatalf("expected ErrMobileAlreadyUsed, got %v", err)
	}

	if err := repo.TouchLastLogin(ctx, u.ID, now); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetByMobile(ctx, "9876543210")
	if err != nil || got.LastLogin == nil || !got.LastLogin.Equal(now) {
		t.Fatalf("get: %+v %v", got, err)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOTPsRepo_ConsumeAndExhaust(t *testing.T) {
	db := openTestDB(t)
	repo := NewOTPsRepo(db, nil)
	ctx := context.Background()

	rec := otp.Record{Mobile: "9876543210", Code: "482913", ExpiresAt: time.Now().Add(10 * time.Minute)}
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Code = "111111"
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Consume(ctx, "9876543210", "482913"); !errors.Is(err, otp.ErrNotFound) {
		t.Fatalf("replaced code still valid: %v", err)
	}

	_ = repo.RecordFailure(ctx, "9876543210", 2)
	_ = repo.RecordFailure(ctx, "9876543210", 2)
	if _, err := repo.Consume(ctx, "9876543210", "111111"); !errors.Is(err, otp.ErrNotFound) {
		t.Fatalf("exhausted code still valid: %v", err)
	}
}

func TestCasesRepo_CreateListAndHearings(t *testing.T) {
	db := openTestDB(t)
	repo := NewCasesRepo(db, nil)
	ctx := context.Background()

	req := legalcase.CreateCaseRequest{
		Title:      "State v. Rao",
		Client:     legalcase.Client{Name: "Rao"},
		Court:      "High Court",
		CaseType:   "criminal",
		FilingDate: time.Now(),
	}
	a, err := repo.Create(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	req.Title = "Mehta v. Mehta"
	b, err := repo.Create(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if a.CaseNumber == b.CaseNumber {
		t.Fatalf("case numbers collide: %s", a.CaseNumber)
	}

	search := "mehta"
	got, total, err := repo.List(ctx, legalcase.ListFilter{Search: &search, Limit: 10})
	if err != nil || total != 1 || got[0].ID != b.ID {
		t.Fatalf("list: total=%d err=%v", total, err)
	}

	h := legalcase.NewHearing(legalcase.AddHearingRequest{Date: time.Now(), Time: "10:00", Court: "Court 2"})
	if _, err := repo.AddHearing(ctx, a.ID, h); err != nil {
		t.Fatal(err)
	}
	updated, err := repo.UpdateHearingStatus(ctx, a.ID, h.ID, "completed")
	if err != nil || updated.Hearings[0].Status != "completed" {
		t.Fatalf("update hearing: %v", err)
	}
	if _, err := repo.UpdateHearingStatus(ctx, a.ID, "nope", "completed"); !errors.Is(err, legalcase.ErrHearingNotFound) {
		t.Fatalf("expected ErrHearingNotFound, got %v", err)
	}
	if _, err := repo.AddNote(ctx, "missing", legalcase.Note{}); !errors.Is(err, legalcase.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
