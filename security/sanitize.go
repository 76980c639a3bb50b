package security

import (
	"html"
	"reflect"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Sanitize trims s, drops control characters (newlines and tabs are kept) and
// strips any markup. The result is plain text; escaping happens at render.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	// 实体编码的标签解码后会重新变成标签，所以反复清理直到结果不再变化
	for i := 0; i < maxSanitizePasses; i++ {
		out := strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
		if out == s {
			return out
		}
		s = out
	}
	return strings.TrimSpace(strict.Sanitize(s))
}

const maxSanitizePasses = 8

// SanitizeStruct runs Sanitize over every exported string or *string field of
// the struct v points to. Fields tagged `sanitize:"-"` are left alone.
func SanitizeStruct(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() || f.Tag.Get("sanitize") == "-" {
			continue
		}
		fv := rv.Field(i)
		switch {
		case fv.Kind() == reflect.String:
			fv.SetString(Sanitize(fv.String()))
		case fv.Kind() == reflect.Pointer && !fv.IsNil() && fv.Elem().Kind() == reflect.String:
			fv.Elem().SetString(Sanitize(fv.Elem().String()))
		case fv.Kind() == reflect.Struct && f.Anonymous:
			SanitizeStruct(fv.Addr().Interface())
		}
	}
}
