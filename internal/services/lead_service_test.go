package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/tokkosync/internal/credential"
	"github.com/stwalsh4118/tokkosync/internal/logger"
	"github.com/stwalsh4118/tokkosync/internal/models"
)

type leadFixture struct {
	svc      LeadService
	listings *fakeListingRepo
	users    *fakeUserRepo
	feed     *fakeFeed
	factory  *fakeFeedFactory
	sealer   *credential.Sealer
}

func newLeadFixture(t *testing.T) *leadFixture {
	t.Helper()

	sealer, err := credential.NewSealer(testSealKey)
	require.NoError(t, err)

	f := &leadFixture{
		listings: newFakeListingRepo(),
		users:    newFakeUserRepo(),
		feed:     &fakeFeed{},
		sealer:   sealer,
	}
	f.factory = &fakeFeedFactory{feed: f.feed}
	f.svc = NewLeadService(f.listings, f.users, f.factory, sealer, logger.Nop())
	return f
}

func (f *leadFixture) seedProperty(t *testing.T, withCredential bool) int64 {
	t.Helper()
	ctx := context.Background()

	owner := &models.User{}
	if withCredential {
		sealed, err := f.sealer.Seal(testCredential)
		require.NoError(t, err)
		owner.TokkoAPIKeyEncrypted = &sealed
	}
	require.NoError(t, f.users.Create(ctx, owner))

	id, err := f.listings.UpsertProperty(ctx, models.Property{UserID: owner.ID, TokkoID: 4321})
	require.NoError(t, err)
	return id
}

func TestCreateLead_ForwardsWithOwnerCredential(t *testing.T) {
	f := newLeadFixture(t)
	propertyID := f.seedProperty(t, true)

	err := f.svc.CreateLead(context.Background(), LeadRequest{
		PropertyID: propertyID,
		Name:       " Laura ",
		Email:      "laura@example.com",
		Phone:      "+54 11 5555 0000",
		Message:    "Me interesa visitar la propiedad",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{testCredential}, f.factory.keys)
	require.Len(t, f.feed.contacts, 1)
	contact := f.feed.contacts[0]
	assert.Equal(t, "Laura", contact.Name)
	assert.Equal(t, []int64{4321}, contact.Properties)
	assert.Equal(t, "Me interesa visitar la propiedad", contact.Text)
	assert.Equal(t, []string{leadTag}, contact.Tags)
}

func TestCreateLead_Errors(t *testing.T) {
	t.Run("unknown property", func(t *testing.T) {
		f := newLeadFixture(t)
		err := f.svc.CreateLead(context.Background(), LeadRequest{PropertyID: 99})
		assert.ErrorIs(t, err, ErrPropertyNotFound)
	})

	t.Run("owner without credential", func(t *testing.T) {
		f := newLeadFixture(t)
		propertyID := f.seedProperty(t, false)
		err := f.svc.CreateLead(context.Background(), LeadRequest{PropertyID: propertyID, Name: "x"})
		assert.ErrorIs(t, err, ErrNoCredential)
		assert.Empty(t, f.factory.keys)
	})

	t.Run("provider rejects", func(t *testing.T) {
		f := newLeadFixture(t)
		propertyID := f.seedProperty(t, true)
		f.feed.contactErr = errors.New("tokko webcontact: unexpected status 400")

		err := f.svc.CreateLead(context.Background(), LeadRequest{PropertyID: propertyID, Name: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to forward lead")
	})
}
