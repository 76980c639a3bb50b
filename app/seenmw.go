package app

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"constructlink/db"
)

// LastSeenThrottle is the minimum gap between two last_seen_at writes.
const LastSeenThrottle = 5 * time.Minute

// TouchLastSeen 节流更新 last_seen_at（每用户每 throttle 最多一次）
func TouchLastSeen(repo *db.Repo, rdb *redis.Client, throttle time.Duration, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := IdentityFrom(c)
		if id == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("cl:lastseen:%d", id.UserID)
		ok, err := rdb.SetNX(ctx, key, "1", throttle).Result()
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("last seen throttle")
		}
		if ok {
			// 忽略错误，不阻塞请求
			if err := repo.TouchUserSeen(ctx, id.UserID, now()); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Uint("user_id", id.UserID).Msg("touch last seen")
			}
		}
		c.Next()
	}
}
