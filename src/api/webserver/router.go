package webserver

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/concord-assembly/concord/src/api/config"
	"github.com/concord-assembly/concord/src/api/session"
)

func attachRoutes(g *gin.Engine, cfg config.Config, db *gorm.DB, rdb *redis.Client, reg *session.Registry) {
	secret := []byte(cfg.JWTSecret)

	auth := NewAuth(rdb, secret, db)
	amendments := NewAmendments(db)
	votes := NewVotes(db)
	motions := NewMotions(db)
	chair := NewChair(db)
	queue := NewQueue(db, reg)
	ws := NewSocket(reg)

	v1 := g.Group("/v1")
	{
		v1.POST("/auth/challenge", auth.Challenge)
		v1.POST("/auth/verify", auth.Verify)

		v1.GET("/amendments", amendments.List)
		v1.GET("/amendments/:slug", amendments.Get)
		v1.GET("/queue/:threadId", queue.Get)
		v1.GET("/session/ws", ws.Serve)

		secured := v1.Group("", JWT(secret))
		{
			secured.POST("/amendments", amendments.Create)
			secured.POST("/amendments/:slug/close", amendments.Close)
			secured.POST("/amendments/:slug/apply", amendments.Apply)
			secured.POST("/amendments/:slug/vote", votes.Cast)
			secured.GET("/amendments/:slug/votes", votes.Summary)

			secured.POST("/motions", motions.Create)
			secured.GET("/motions/:id", motions.Get)
			secured.POST("/motions/:id/second", motions.Second)
			secured.POST("/motions/:id/vote", motions.Vote)
			secured.POST("/motions/:id/withdraw", motions.Withdraw)

			secured.POST("/chair/rule", chair.Rule)
			secured.POST("/chair/emergency", chair.Emergency)

			secured.POST("/queue/request", queue.Request)
			secured.POST("/queue/recognize", queue.Recognize)
			secured.POST("/queue/skip", queue.Skip)
		}
	}
}
