package documents

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachly/backend/internal/audit"
	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/internal/storage/sqlite"
)

type fixture struct {
	svc    *Service
	store  *sqlite.Client
	admin  *models.User
	member *models.User
	loner  *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	c := &models.Company{Name: "Acme", CreatedAt: time.Now()}
	require.NoError(t, store.CreateCompany(ctx, c))
	admin := &models.User{Email: "boss@acme.test", CompanyID: &c.ID, AuthProvider: "local", IsAdmin: true, CreatedAt: time.Now()}
	member := &models.User{Email: "dev@acme.test", CompanyID: &c.ID, AuthProvider: "local", CreatedAt: time.Now()}
	loner := &models.User{Email: "solo@example.com", AuthProvider: "local", CreatedAt: time.Now()}
	for _, u := range []*models.User{admin, member, loner} {
		require.NoError(t, store.CreateUser(ctx, u, "de"))
	}
	return &fixture{svc: NewService(store, audit.New(store)), store: store, admin: admin, member: member, loner: loner}
}

func TestUpload_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, f.member.ID, Upload{Filename: "big.txt", Data: make([]byte, MaxSize+1)})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.svc.Upload(ctx, f.member.ID, Upload{Filename: "", Data: []byte("hi")})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.svc.Upload(ctx, f.member.ID, Upload{Filename: "a.txt", Data: []byte("hi"), Category: "secret"})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.svc.Upload(ctx, f.member.ID, Upload{Filename: "empty.txt"})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.svc.Upload(ctx, f.member.ID, Upload{Filename: "policy.md", Data: []byte("# Policy"), Category: models.DocumentCompany})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestUpload_PersonalAndCompany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, f.member.ID, Upload{Filename: "../notes.txt", Data: []byte("Mein Ziel ist mehr Fokus.")})
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Equal(t, models.DocumentPersonal, doc.Category)
	assert.Nil(t, doc.CompanyID)
	assert.NotEmpty(t, doc.ID)
	assert.Contains(t, doc.ExtractedText, "Fokus")

	policy, err := f.svc.Upload(ctx, f.admin.ID, Upload{Filename: "values.md", Data: []byte("# Values\n\nWe give feedback openly."), Category: models.DocumentCompany, IP: "10.0.0.1"})
	require.NoError(t, err)
	require.NotNil(t, policy.CompanyID)

	docs, err := f.svc.List(ctx, f.member.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, doc.ID, docs[0].ID)
	assert.Equal(t, policy.ID, docs[1].ID)

	docs, err = f.svc.List(ctx, f.loner.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	trail, err := audit.New(f.store).List(ctx, models.AuditFilter{Action: audit.ActionDocumentUpload})
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, f.admin.ID, trail[0].ActorID)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, f.member.ID, Upload{Filename: "notes.txt", Data: []byte("private")})
	require.NoError(t, err)
	policy, err := f.svc.Upload(ctx, f.admin.ID, Upload{Filename: "values.txt", Data: []byte("shared"), Category: models.DocumentCompany})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.loner.ID, doc.ID, ""), models.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.member.ID, policy.ID, ""), models.ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.loner.ID, policy.ID, ""), models.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, f.member.ID, doc.ID, ""))
	require.NoError(t, f.svc.Delete(ctx, f.admin.ID, policy.ID, ""))

	_, err = f.store.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	trail, err := audit.New(f.store).List(ctx, models.AuditFilter{Action: audit.ActionDocumentDelete})
	require.NoError(t, err)
	assert.Len(t, trail, 1)
}
