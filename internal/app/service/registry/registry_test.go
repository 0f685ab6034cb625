package registry

import (
	"errors"
	"strings"
	"testing"
	"time"

	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/passwords"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/studyhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() { passwords.Cost = bcrypt.MinCost }

func newTestService(t *testing.T, cfg Config) (*Service, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return New(db, cfg, zap.NewNop()), db
}

// scripted returns codes in order, repeating the last one.
func scripted(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}

func ptr(n int) *int { return &n }

func TestCreate_PrivateWithPassword(t *testing.T) {
	svc, db := newTestService(t, Config{})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	d, err := svc.Create(ctx, "owner", CreateInput{Name: "Study A", Visibility: "private", Password: "abc123"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.MemberCount != 1 || d.Role != models.RoleOwner {
		t.Errorf("detail = %+v", d)
	}
	if len(d.InviteCode) != 6 {
		t.Errorf("InviteCode = %q", d.InviteCode)
	}
	if d.IsPasswordless {
		t.Error("group with a password is not passwordless")
	}

	g, _ := groupstore.New(db).GetByID(ctx, d.ID)
	if g.PasswordHash == "abc123" || !passwords.Matches(g.PasswordHash, "abc123") {
		t.Error("password must be stored hashed")
	}
	if g.MemberCount != 1 {
		t.Errorf("stored MemberCount = %d", g.MemberCount)
	}
	m, err := membershipstore.New(db).Get(ctx, d.ID, "owner")
	if err != nil || m.Role != models.RoleOwner {
		t.Errorf("owner row = %+v, %v", m, err)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}
	tests := []struct {
		name string
		in   CreateInput
		want *apperr.Error
	}{
		{"empty name", CreateInput{Name: "   "}, apperr.InvalidGroup},
		{"markup only", CreateInput{Name: "<b></b>"}, apperr.InvalidGroup},
		{"long name", CreateInput{Name: string(long)}, apperr.InvalidGroup},
		{"bad visibility", CreateInput{Name: "x", Visibility: "secret"}, apperr.InvalidGroup},
		{"private without password", CreateInput{Name: "x", Visibility: "private"}, apperr.PasswordRequired},
		{"short password", CreateInput{Name: "x", Password: "abc"}, apperr.InvalidGroup},
		{"cap too small", CreateInput{Name: "x", MaxMembers: ptr(1)}, apperr.InvalidGroup},
		{"cover not a url", CreateInput{Name: "x", CoverImage: "javascript:alert(1)"}, apperr.InvalidGroup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "owner", tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %s", err, tt.want.Reason)
			}
		})
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, name := range []string{"Same", "invite_code study"} {
		if _, err := svc.Create(ctx, "a", CreateInput{Name: name}); err != nil {
			t.Fatal(err)
		}
		_, err := svc.Create(ctx, "b", CreateInput{Name: strings.ToLower(name)})
		if !errors.Is(err, apperr.GroupNameTaken) {
			t.Errorf("%q: err = %v, want group_name_taken", name, err)
		}
		if ae := apperr.As(err); ae.Status != 409 {
			t.Errorf("%q: status = %d, want 409", name, ae.Status)
		}
	}
}

func TestCreate_RetriesCollidingCodes(t *testing.T) {
	svc, db := newTestService(t, Config{InviteCodeAttempts: 5})
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateGroup(ctx, "Taken1", "x", testutil.GroupOptions{InviteCode: "AAAAAA"})
	fx.CreateGroup(ctx, "Taken2", "x", testutil.GroupOptions{InviteCode: "BBBBBB"})

	svc.UseCodes(scripted("AAAAAA", "BBBBBB", "CCCCCC"))
	d, err := svc.Create(ctx, "owner", CreateInput{Name: "Fresh"})
	if err != nil {
		t.Fatal(err)
	}
	if d.InviteCode != "CCCCCC" {
		t.Errorf("InviteCode = %q, want CCCCCC", d.InviteCode)
	}
}

func TestCreate_CodeExhaustion(t *testing.T) {
	svc, db := newTestService(t, Config{InviteCodeAttempts: 3})
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateGroup(ctx, "Taken", "x", testutil.GroupOptions{InviteCode: "AAAAAA"})
	svc.UseCodes(scripted("AAAAAA"))

	_, err := svc.Create(ctx, "owner", CreateInput{Name: "Unlucky"})
	if !errors.Is(err, apperr.InviteCodeExhausted) {
		t.Fatalf("err = %v, want invite_code_exhausted", err)
	}
	if ae := apperr.As(err); ae.Status != 500 {
		t.Errorf("status = %d, want 500", ae.Status)
	}
}

// A crash after the group insert leaves a group with no owner row and a
// zero count. The reconciler test covers the repair.
func TestCreate_CrashWindow(t *testing.T) {
	svc, db := newTestService(t, Config{})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	var stranded models.Group
	svc.afterGroupInsert = func(g models.Group) error {
		stranded = g
		return errors.New("process died")
	}
	if _, err := svc.Create(ctx, "owner", CreateInput{Name: "Half Made"}); err == nil {
		t.Fatal("expected failure")
	}

	g, err := groupstore.New(db).GetByID(ctx, stranded.ID)
	if err != nil {
		t.Fatalf("group should exist: %v", err)
	}
	if g.MemberCount != 0 {
		t.Errorf("MemberCount = %d, want 0", g.MemberCount)
	}
	if _, err := membershipstore.New(db).Get(ctx, g.ID, "owner"); err != mongo.ErrNoDocuments {
		t.Errorf("owner row should be missing, got %v", err)
	}
}

func TestCreate_OwnerRowRestoredByReconciler(t *testing.T) {
	svc, db := newTestService(t, Config{})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// The reconciler runs between the group insert and the owner row.
	svc.afterGroupInsert = func(g models.Group) error {
		if _, err := membershipstore.New(db).EnsureOwner(ctx, g.ID, "owner", time.Now().UTC()); err != nil {
			return err
		}
		_, err := groupstore.New(db).SetMemberCount(ctx, g.ID, 0, 1)
		return err
	}

	d, err := svc.Create(ctx, "owner", CreateInput{Name: "Raced"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.Role != models.RoleOwner || d.MemberCount != 1 {
		t.Errorf("detail = %+v", d)
	}

	g, err := groupstore.New(db).GetByID(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if g.MemberCount != 1 {
		t.Errorf("MemberCount = %d, want 1", g.MemberCount)
	}
	m, err := membershipstore.New(db).Get(ctx, g.ID, "owner")
	if err != nil || m.Role != models.RoleOwner {
		t.Errorf("owner row = %+v, %v", m, err)
	}
}

func TestFindByIDOrInviteCode(t *testing.T) {
	svc, db := newTestService(t, Config{})
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fx.CreateGroup(ctx, "Find Me", "o", testutil.GroupOptions{InviteCode: "XYZ234"})

	got, byID, err := svc.FindByIDOrInviteCode(ctx, g.ID.Hex())
	if err != nil || !byID || got.ID != g.ID {
		t.Errorf("by id = %v, %v, %v", got.ID, byID, err)
	}
	got, byID, err = svc.FindByIDOrInviteCode(ctx, " xyz234 ")
	if err != nil || byID || got.ID != g.ID {
		t.Errorf("by code = %v, %v, %v", got.ID, byID, err)
	}
	for _, miss := range []string{primitive.NewObjectID().Hex(), "NOPE99", "garbage"} {
		if _, _, err := svc.FindByIDOrInviteCode(ctx, miss); !errors.Is(err, apperr.GroupNotFound) {
			t.Errorf("%q: err = %v", miss, err)
		}
	}
}

func TestListBrowseable_PasswordlessIgnoresVisibility(t *testing.T) {
	svc, db := newTestService(t, Config{})
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash, _ := passwords.Hash("secret")
	fx.CreateGroup(ctx, "Private Open", "o", testutil.GroupOptions{Visibility: models.VisibilityPrivate})
	fx.CreateGroup(ctx, "Public Locked", "o", testutil.GroupOptions{Visibility: models.VisibilityPublic, PasswordHash: hash})

	list, err := svc.ListBrowseable(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]Summary{}
	for _, s := range list {
		got[s.Name] = s
	}
	if !got["Private Open"].IsPasswordless || got["Private Open"].Visibility != models.VisibilityPrivate {
		t.Errorf("private group without password should list as passwordless: %+v", got["Private Open"])
	}
	if got["Public Locked"].IsPasswordless {
		t.Error("public group with a password is not passwordless")
	}
}

func TestGet_InviteCodeOnlyForMembers(t *testing.T) {
	svc, db := newTestService(t, Config{})
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fx.CreateGroup(ctx, "Detail", "olive", testutil.GroupOptions{})
	fx.AddPending(ctx, g.ID, "pia")

	d, err := svc.Get(ctx, "olive", g.ID)
	if err != nil || d.InviteCode != g.InviteCode || d.Role != models.RoleOwner {
		t.Errorf("owner detail = %+v, %v", d, err)
	}
	d, _ = svc.Get(ctx, "pia", g.ID)
	if d.InviteCode != "" || d.Status != models.MemberPending {
		t.Errorf("pending detail = %+v", d)
	}
	d, _ = svc.Get(ctx, "stranger", g.ID)
	if d.InviteCode != "" || d.Role != "" {
		t.Errorf("stranger detail = %+v", d)
	}
	if _, err := svc.Get(ctx, "olive", primitive.NewObjectID()); !errors.Is(err, apperr.GroupNotFound) {
		t.Errorf("missing group err = %v", err)
	}
}
