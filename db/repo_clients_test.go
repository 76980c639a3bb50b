package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"constructlink/db"
	"constructlink/models"
	"constructlink/testfixtures"
)

func TestClientCreateRejectsDuplicateName(t *testing.T) {
	gdb := testfixtures.DB(t)
	repo := db.NewClientRepo(gdb)
	ctx := context.Background()

	res, err := repo.Create(ctx, &models.Client{Name: "Acme Builders", CompanyType: "Contractor"})
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = repo.Create(ctx, &models.Client{Name: "acme builders "})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors, "name")
}

func TestClientUpdateKeepsOwnName(t *testing.T) {
	gdb := testfixtures.DB(t)
	repo := db.NewClientRepo(gdb)
	ctx := context.Background()

	c := &models.Client{Name: "Acme"}
	_, err := repo.Create(ctx, c)
	require.NoError(t, err)
	other := &models.Client{Name: "Beta"}
	_, err = repo.Create(ctx, other)
	require.NoError(t, err)

	c.Phone = "555-0100"
	res, err := repo.Update(ctx, c)
	require.NoError(t, err)
	assert.True(t, res.Success)

	other.Name = "ACME"
	res, err = repo.Update(ctx, other)
	require.NoError(t, err)
	assert.False(t, res.Success)

	_, err = repo.Update(ctx, &models.Client{ID: 999, Name: "Ghost"})
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestClientSearchFilters(t *testing.T) {
	gdb := testfixtures.DB(t)
	repo := db.NewClientRepo(gdb)
	ctx := context.Background()

	for _, c := range []models.Client{
		{Name: "Alpha Steel", CompanyType: "Supplier"},
		{Name: "Bravo Homes", CompanyType: "Developer"},
		{Name: "Charlie Steelworks", CompanyType: "Supplier"},
	} {
		c := c
		_, err := repo.Create(ctx, &c)
		require.NoError(t, err)
	}
	_, _, err := repo.ToggleStatus(ctx, 3)
	require.NoError(t, err)

	page, err := repo.Search(ctx, db.ClientFilter{Q: "steel"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = repo.Search(ctx, db.ClientFilter{Q: "steel", Status: "active"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Alpha Steel", page.Items[0].Name)

	page, err = repo.Search(ctx, db.ClientFilter{CompanyType: "Developer"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Bravo Homes", page.Items[0].Name)

	page, err = repo.Search(ctx, db.ClientFilter{Size: 1000})
	require.NoError(t, err)
	assert.Equal(t, db.MaxPageSize, page.Size)
	assert.Equal(t, 1, page.Pages())
}

func TestClientToggleStatus(t *testing.T) {
	gdb := testfixtures.DB(t)
	repo := db.NewClientRepo(gdb)
	ctx := context.Background()

	c := &models.Client{Name: "Acme"}
	_, err := repo.Create(ctx, c)
	require.NoError(t, err)

	got, res, err := repo.ToggleStatus(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, got.IsActive)

	got, _, err = repo.ToggleStatus(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	_, _, err = repo.ToggleStatus(ctx, 42)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestClientDeleteBlockedByAssets(t *testing.T) {
	gdb := testfixtures.DB(t)
	repo := db.NewClientRepo(gdb)
	ctx := context.Background()

	linked := &models.Client{Name: "Linked"}
	_, err := repo.Create(ctx, linked)
	require.NoError(t, err)
	require.NoError(t, gdb.Create(&models.Asset{Ref: "A-1", Name: "Drill", ClientID: &linked.ID}).Error)

	res, err := repo.Delete(ctx, linked.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Deactivate")

	assets, err := repo.Assets(ctx, linked.ID)
	require.NoError(t, err)
	assert.Len(t, assets, 1)

	free := &models.Client{Name: "Free"}
	_, err = repo.Create(ctx, free)
	require.NoError(t, err)
	res, err = repo.Delete(ctx, free.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = repo.Find(ctx, free.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = repo.Delete(ctx, free.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestClientActiveForDropdown(t *testing.T) {
	gdb := testfixtures.DB(t)
	repo := db.NewClientRepo(gdb)
	ctx := context.Background()

	for _, n := range []string{"Zulu", "Alpha", "Mike"} {
		_, err := repo.Create(ctx, &models.Client{Name: n})
		require.NoError(t, err)
	}
	_, _, err := repo.ToggleStatus(ctx, 3)
	require.NoError(t, err)

	cs, err := repo.Active(ctx)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "Alpha", cs[0].Name)
	assert.Equal(t, "Zulu", cs[1].Name)
}
