package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"constructlink/db"
	"constructlink/models"
	"constructlink/testfixtures"
)

func TestBrandAndDisciplineUniqueness(t *testing.T) {
	gdb := testfixtures.DB(t)
	ctx := context.Background()

	brands := db.NewBrandRepo(gdb)
	res, err := brands.Create(ctx, &models.Brand{OfficialName: "Makita", Country: "Japan"})
	require.NoError(t, err)
	require.True(t, res.Success)
	res, err = brands.Create(ctx, &models.Brand{OfficialName: "MAKITA"})
	require.NoError(t, err)
	assert.Contains(t, res.Errors, "official_name")

	disciplines := db.NewDisciplineRepo(gdb)
	d := &models.Discipline{Code: "civ", Name: "Civil"}
	res, err = disciplines.Create(ctx, d)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "CIV", d.Code)

	res, err = disciplines.Create(ctx, &models.Discipline{Code: "Civ", Name: "Civil works"})
	require.NoError(t, err)
	assert.Contains(t, res.Errors, "code")
}

func TestUserRepo(t *testing.T) {
	gdb := testfixtures.DB(t)
	repo := db.NewRepo(gdb)
	ctx := context.Background()

	ok, err := repo.AdminExists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	admin := testfixtures.CreateUser(t, gdb, "admin", models.RoleSystemAdmin, "password1")
	ok, err = repo.AdminExists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	testfixtures.Deactivate(t, gdb, admin.ID)
	ok, err = repo.AdminExists(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "inactive admins do not count")

	u, err := repo.FindUserByEmail(ctx, " ADMIN@example.com")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, u.ID)

	_, err = repo.FindUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, db.ErrNotFound)

	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.TouchUserLogin(ctx, admin.ID, at))
	u, err = repo.FindUserByID(ctx, admin.ID)
	require.NoError(t, err)
	require.NotNil(t, u.LastLoginAt)
	assert.True(t, at.Equal(*u.LastLoginAt))
	assert.EqualValues(t, 1, u.LoginCount)

	require.NoError(t, repo.UpdatePassword(ctx, admin.ID, "new-hash"))
	assert.ErrorIs(t, repo.UpdatePassword(ctx, 999, "x"), db.ErrNotFound)
}

func TestEquipmentTypesByCategory(t *testing.T) {
	gdb := testfixtures.DB(t)
	repo := db.NewEquipmentTypeRepo(gdb)
	ctx := context.Background()

	for _, et := range []models.EquipmentType{
		{Name: "Rotary Hammer", Category: models.CategoryPowerTools, IsActive: true},
		{Name: "Angle Grinder", Category: models.CategoryPowerTools, IsActive: true},
		{Name: "Claw Hammer", Category: models.CategoryHandTools, IsActive: true},
	} {
		et := et
		require.NoError(t, gdb.Create(&et).Error)
	}

	power, err := repo.ByCategory(ctx, models.CategoryPowerTools)
	require.NoError(t, err)
	require.Len(t, power, 2)
	assert.Equal(t, "Angle Grinder", power[0].Name)

	hand, err := repo.ByCategory(ctx, models.CategoryHandTools)
	require.NoError(t, err)
	assert.Len(t, hand, 1)
}

func TestBatchVisibilityAndPrintStamp(t *testing.T) {
	gdb := testfixtures.DB(t)
	repo := db.NewBatchRepo(gdb)
	ctx := context.Background()

	p1 := testfixtures.CreateProject(t, gdb, "P1")
	p2 := testfixtures.CreateProject(t, gdb, "P2")
	b := testfixtures.CreateBatch(t, gdb, "BT-0001", p1.ID, "A-1", "A-2")

	got, err := repo.FindForPrint(ctx, b.ID, db.Visibility{All: true})
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	require.NotNil(t, got.Items[0].Asset)
	assert.Equal(t, "A-1", got.Items[0].Asset.Ref)
	assert.Equal(t, "P1", got.Project.Code)

	_, err = repo.FindForPrint(ctx, b.ID, db.Visibility{ProjectID: &p1.ID})
	assert.NoError(t, err)
	_, err = repo.FindForPrint(ctx, b.ID, db.Visibility{ProjectID: &p2.ID})
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = repo.FindForPrint(ctx, b.ID, db.Visibility{})
	assert.ErrorIs(t, err, db.ErrNotFound)

	first := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	require.NoError(t, repo.MarkPrinted(ctx, b.ID, first))
	require.NoError(t, repo.MarkPrinted(ctx, b.ID, second))

	got, err = repo.FindForPrint(ctx, b.ID, db.Visibility{All: true})
	require.NoError(t, err)
	require.NotNil(t, got.PrintedAt)
	assert.True(t, second.Equal(*got.PrintedAt), "reprint overwrites printed_at")
	for i, it := range got.Items {
		assert.Equal(t, b.Items[i].Status, it.Status)
		assert.Equal(t, b.Items[i].Quantity, it.Quantity)
		assert.Equal(t, b.Items[i].Condition, it.Condition)
		assert.Nil(t, it.ReturnedAt)
	}

	assert.ErrorIs(t, repo.MarkPrinted(ctx, 999, first), db.ErrNotFound)
}
