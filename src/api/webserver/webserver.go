package webserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/concord-assembly/concord/src/api/config"
	"github.com/concord-assembly/concord/src/api/session"
)

func New(cfg config.Config, db *gorm.DB, rdb *redis.Client, reg *session.Registry) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	g.Use(cors.New(corsCfg))

	attachRoutes(g, cfg, db, rdb, reg)
	return g
}
