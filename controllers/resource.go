package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"constructlink/app"
	"constructlink/db"
)

type Action string

const (
	ActionIndex  Action = "index"
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionToggle Action = "toggle"
)

// Policy maps each action to the roles allowed to perform it. An action
// missing from the map is denied to everyone.
type Policy map[Action][]string

func (p Policy) Allows(c *gin.Context, a Action) bool {
	roles, ok := p[a]
	return ok && app.IdentityFrom(c).HasRole(roles...)
}

// Store is the repository surface a Resource needs.
type Store[T db.Entity] interface {
	List(ctx context.Context, q db.ListQuery) (db.Page[T], error)
	Find(ctx context.Context, id uint) (*T, error)
	Create(ctx context.Context, v *T) (db.Result, error)
	Update(ctx context.Context, v *T) (db.Result, error)
}

// Resource serves index/view/create/edit/delete for one entity. F is the
// form struct bound from the POST body.
type Resource[T db.Entity, F any] struct {
	*Srv

	Name   string // route prefix and template prefix
	Title  string
	Policy Policy
	Store  Store[T]

	// Delete is nil for entities that cannot be deleted.
	Delete func(ctx context.Context, id uint) (db.Result, error)
	// Search overrides Store.List for the index page.
	Search func(c *gin.Context, q db.ListQuery) (db.Page[T], error)

	ToForm func(v *T) F
	Apply  func(f *F, v *T)
	// Check adds rules the binding tags cannot express.
	Check func(f *F) FieldErrors
	// Extra adds page data such as dropdown options.
	Extra func(c *gin.Context, data app.H)
}

func (r *Resource[T, F]) template(page string) string { return r.Name + "_" + page }

func (r *Resource[T, F]) viewURL(id uint, msg string) string {
	return fmt.Sprintf("/?route=%s/view&id=%d&message=%s", r.Name, id, msg)
}

// guard 未授权直接 403，不调用仓库
func (r *Resource[T, F]) guard(c *gin.Context, a Action) bool {
	if r.Policy.Allows(c, a) {
		return true
	}
	r.errorPage(c, http.StatusForbidden, "Access denied", "You do not have permission to perform this action.")
	return false
}

func (r *Resource[T, F]) page(c *gin.Context, data app.H) app.H {
	data["Resource"] = r.Name
	data["Title"] = r.Title
	data["CanCreate"] = r.Policy.Allows(c, ActionCreate)
	data["CanEdit"] = r.Policy.Allows(c, ActionEdit)
	data["CanDelete"] = r.Delete != nil && r.Policy.Allows(c, ActionDelete)
	data["CanToggle"] = r.Policy.Allows(c, ActionToggle)
	if r.Extra != nil {
		r.Extra(c, data)
	}
	return data
}

func (r *Resource[T, F]) Index(c *gin.Context) {
	if !r.guard(c, ActionIndex) {
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))
	q := db.ListQuery{Q: c.Query("q"), Page: page, Size: size}

	var (
		res db.Page[T]
		err error
	)
	if r.Search != nil {
		res, err = r.Search(c, q)
	} else {
		res, err = r.Store.List(c.Request.Context(), q)
	}
	if err != nil {
		r.serverError(c, err)
		return
	}
	r.render(c, http.StatusOK, r.template("index"), r.page(c, app.H{
		"Page":   res,
		"Pages":  res.Pages(),
		"Query":  c.Request.URL.Query(),
		"Search": q.Q,
	}))
}

// load 读取 id 对应记录；失败时已写好响应
func (r *Resource[T, F]) load(c *gin.Context) (*T, bool) {
	id, ok := parseID(c)
	if !ok {
		r.notFound(c)
		return nil, false
	}
	v, err := r.Store.Find(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		r.notFound(c)
		return nil, false
	}
	if err != nil {
		r.serverError(c, err)
		return nil, false
	}
	return v, true
}

func (r *Resource[T, F]) View(c *gin.Context) {
	if !r.guard(c, ActionView) {
		return
	}
	v, ok := r.load(c)
	if !ok {
		return
	}
	r.render(c, http.StatusOK, r.template("view"), r.page(c, app.H{"Item": v}))
}

func (r *Resource[T, F]) Create(c *gin.Context) {
	if !r.guard(c, ActionCreate) {
		return
	}
	if c.Request.Method == http.MethodGet {
		var form F
		r.renderForm(c, nil, form, nil)
		return
	}
	r.submit(c, nil)
}

func (r *Resource[T, F]) Edit(c *gin.Context) {
	if !r.guard(c, ActionEdit) {
		return
	}
	v, ok := r.load(c)
	if !ok {
		return
	}
	if c.Request.Method == http.MethodGet {
		r.renderForm(c, v, r.ToForm(v), nil)
		return
	}
	r.submit(c, v)
}

func (r *Resource[T, F]) renderForm(c *gin.Context, existing *T, form F, errs FieldErrors) {
	data := app.H{"Form": form, "Errors": errs, "Editing": existing != nil}
	if existing != nil {
		data["Item"] = existing
	}
	r.render(c, http.StatusOK, r.template("form"), r.page(c, data))
}

// submit runs the POST pipeline: CSRF, bind and sanitize, validate, store.
// existing is nil on create.
func (r *Resource[T, F]) submit(c *gin.Context, existing *T) {
	var form F
	csrfErr := r.checkCSRF(c)
	errs := bindForm(c, &form)
	if csrfErr != nil {
		r.renderForm(c, existing, form, FieldErrors{formErrorKey: MsgSecurity})
		return
	}
	if r.Check != nil {
		for k, msg := range r.Check(&form) {
			if _, ok := errs[k]; !ok {
				errs[k] = msg
			}
		}
	}
	if len(errs) > 0 {
		r.renderForm(c, existing, form, errs)
		return
	}

	target := new(T)
	if existing != nil {
		*target = *existing
	}
	r.Apply(&form, target)

	ctx := c.Request.Context()
	var (
		res db.Result
		err error
		msg = "created"
	)
	if existing == nil {
		res, err = r.Store.Create(ctx, target)
	} else {
		msg = "updated"
		res, err = r.Store.Update(ctx, target)
	}
	if errors.Is(err, db.ErrNotFound) {
		r.notFound(c)
		return
	}
	if err != nil {
		r.serverError(c, err)
		return
	}
	if !res.Success {
		r.renderForm(c, existing, form, resultErrors(res))
		return
	}
	r.redirect(c, r.viewURL((*target).Key(), msg))
}

func (r *Resource[T, F]) Remove(c *gin.Context) {
	if r.Delete == nil {
		r.notFound(c)
		return
	}
	if !r.guard(c, ActionDelete) {
		return
	}
	v, ok := r.load(c)
	if !ok {
		return
	}
	if err := r.checkCSRF(c); err != nil {
		r.render(c, http.StatusOK, r.template("view"), r.page(c, app.H{"Item": v, "Error": MsgSecurity}))
		return
	}
	res, err := r.Delete(c.Request.Context(), (*v).Key())
	if errors.Is(err, db.ErrNotFound) {
		r.notFound(c)
		return
	}
	if err != nil {
		r.serverError(c, err)
		return
	}
	if !res.Success {
		r.render(c, http.StatusOK, r.template("view"), r.page(c, app.H{"Item": v, "Error": res.Message}))
		return
	}
	r.redirect(c, fmt.Sprintf("/?route=%s&message=deleted", r.Name))
}

func resultErrors(res db.Result) FieldErrors {
	errs := FieldErrors{}
	for k, v := range res.Errors {
		errs[k] = v
	}
	if res.Message != "" {
		errs[formErrorKey] = res.Message
	}
	return errs
}
