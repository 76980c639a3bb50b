package views

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct{ role string }

func (f *fakeIdentity) HasRole(roles ...string) bool {
	for _, r := range roles {
		if r == f.role {
			return true
		}
	}
	return false
}

func TestLoadParsesEveryPage(t *testing.T) {
	tpl, err := Load()
	require.NoError(t, err)

	pages := []string{
		"error", "login", "forgot_password", "reset_password", "change_password",
		"dashboard", "profile", "install",
		"clients_index", "clients_form", "clients_view",
		"brands_index", "brands_form", "brands_view",
		"disciplines_index", "disciplines_form", "disciplines_view",
		"borrowed_tools_print", "borrowed_tools_print_blank",
	}
	for _, p := range pages {
		assert.NotNil(t, tpl.Lookup(p), p)
	}
}

func TestErrorPageEscapesMessage(t *testing.T) {
	tpl, err := Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tpl.ExecuteTemplate(&buf, "error", map[string]any{
		"AppName": "ConstructLink",
		"Code":    404,
		"Title":   "Not found",
		"Message": "<script>alert(1)</script>",
	}))
	assert.Contains(t, buf.String(), "&lt;script&gt;")
	assert.NotContains(t, buf.String(), "<script>alert")
}

func TestFuncs(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	date := Funcs["date"].(func(any) string)
	datetime := Funcs["datetime"].(func(any) string)

	assert.Equal(t, "2024-03-09", date(ts))
	assert.Equal(t, "2024-03-09 14:05", datetime(&ts))
	assert.Equal(t, "", date((*time.Time)(nil)))
	assert.Equal(t, "", date(nil))

	assert.True(t, hasRole(&fakeIdentity{role: "Warehouseman"}, "System Admin", "Warehouseman"))
	assert.False(t, hasRole(&fakeIdentity{role: "Warehouseman"}, "System Admin"))
	assert.False(t, hasRole(nil, "System Admin"))
}
