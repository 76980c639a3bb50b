package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"constructlink/auth"
	"constructlink/db"
	"constructlink/models"
	"constructlink/testfixtures"
)

func TestTouchLastSeenThrottles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gdb := testfixtures.DB(t)
	rdb, mr := testfixtures.Redis(t)
	u := testfixtures.CreateUser(t, gdb, "clerk", models.RoleSiteInventoryClerk, "clerk-pass-123")

	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	signedIn := true

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if signedIn {
			c.Set(ctxIdentity, auth.NewIdentity(&u))
		}
	})
	r.Use(TouchLastSeen(db.NewRepo(gdb), rdb, time.Minute, func() time.Time { return now }))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}
	lastSeen := func() *time.Time {
		var got models.User
		require.NoError(t, gdb.First(&got, u.ID).Error)
		return got.LastSeenAt
	}

	hit()
	first := now
	require.NotNil(t, lastSeen())
	assert.True(t, lastSeen().Equal(first))

	// 节流窗口内不再写库
	now = now.Add(30 * time.Second)
	hit()
	assert.True(t, lastSeen().Equal(first))

	mr.FastForward(time.Minute)
	now = now.Add(time.Minute)
	hit()
	assert.True(t, lastSeen().Equal(now))

	// 未登录请求不碰 Redis
	signedIn = false
	mr.FlushAll()
	hit()
	assert.Empty(t, mr.Keys())
}
