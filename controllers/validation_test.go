package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formContext(t *testing.T, target string, form url.Values) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req
	return c
}

func TestBindFormClient(t *testing.T) {
	cases := []struct {
		name   string
		form   url.Values
		errors FieldErrors
	}{
		{
			name:   "missing name",
			form:   url.Values{"email": {"ops@acme.test"}},
			errors: FieldErrors{"name": "This field is required."},
		},
		{
			name: "bad email and company type",
			form: url.Values{"name": {"Acme"}, "email": {"nope"}, "company_type": {"Pirate"}},
			errors: FieldErrors{
				"email":        "Please enter a valid email address.",
				"company_type": "Please choose one of the listed options.",
			},
		},
		{
			name:   "too long",
			form:   url.Values{"name": {strings.Repeat("x", 201)}},
			errors: FieldErrors{"name": "Must be at most 200 characters."},
		},
		{
			name:   "valid",
			form:   url.Values{"name": {"Acme"}, "company_type": {"Supplier"}},
			errors: FieldErrors{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var f ClientForm
			got := bindForm(formContext(t, "/clients/create", tc.form), &f)
			assert.Equal(t, tc.errors, got)
		})
	}
}

func TestBindFormSanitizes(t *testing.T) {
	var f ClientForm
	errs := bindForm(formContext(t, "/clients/create", url.Values{
		"name":    {"<b>Acme</b> Builders"},
		"address": {`<script>alert(1)</script>Cebu`},
	}), &f)
	assert.Empty(t, errs)
	assert.Equal(t, "Acme Builders", f.Name)
	assert.NotContains(t, f.Address, "<script>")
}

func TestBindFormKeepsPasswords(t *testing.T) {
	var f loginForm
	errs := bindForm(formContext(t, "/auth/login", url.Values{
		"username": {"admin"},
		"password": {"<p@ss>"},
	}), &f)
	assert.Empty(t, errs)
	assert.Equal(t, "<p@ss>", f.Password)
}

func TestFieldErrorsFromOtherError(t *testing.T) {
	assert.Equal(t, FieldErrors{formErrorKey: "Invalid input."}, FieldErrorsFrom(errors.New("boom")))
	assert.Empty(t, FieldErrorsFrom(nil))
}

func TestParseID(t *testing.T) {
	cases := map[string]struct {
		target string
		form   url.Values
		id     uint
		ok     bool
	}{
		"query":    {target: "/clients/view?id=7", id: 7, ok: true},
		"form":     {target: "/clients/delete", form: url.Values{"id": {"9"}}, id: 9, ok: true},
		"zero":     {target: "/clients/view?id=0"},
		"negative": {target: "/clients/view?id=-3"},
		"text":     {target: "/clients/view?id=abc"},
		"missing":  {target: "/clients/view"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			id, ok := parseID(formContext(t, tc.target, tc.form))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.id, id)
		})
	}
}

func TestLocalPath(t *testing.T) {
	assert.True(t, localPath("/?route=clients/edit&id=1"))
	assert.True(t, localPath("/dashboard"))
	assert.False(t, localPath("//evil.example/x"))
	assert.False(t, localPath(`/\evil.example`))
	assert.False(t, localPath("https://evil.example/"))
	assert.False(t, localPath(""))
}
