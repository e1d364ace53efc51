package main

import (
	"context"
	"net/http"
	"os"

	"github.com/Luismorlan/picfeed/server"
	"github.com/Luismorlan/picfeed/server/middlewares"
	"github.com/Luismorlan/picfeed/session"
	"github.com/Luismorlan/picfeed/store"
	. "github.com/Luismorlan/picfeed/utils"
	"github.com/Luismorlan/picfeed/utils/dotenv"
	. "github.com/Luismorlan/picfeed/utils/flag"
	. "github.com/Luismorlan/picfeed/utils/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

func cleanup() {
	if !IsDevelopment {
		CloseProfiler()
	}
	CloseTracer()
	Log.Info("api server shutdown")
}

// getKeyValueCache connects to Redis, falling back to an embedded Redis in development
// when no REDIS_HOST is set.
func getKeyValueCache(ctx context.Context) *RedisKeyValueStore {
	if os.Getenv("REDIS_HOST") == "" && IsDevelopment {
		Log.Warn("REDIS_HOST not set, using embedded redis")
		cache, err := GetEmbeddedKeyValueStore()
		if err != nil {
			Log.Fatal("fail to start embedded redis : ", err)
		}
		return cache
	}
	cache, err := GetRedisKeyValueStore(ctx)
	if err != nil {
		Log.Fatal("fail to connect redis : ", err)
	}
	return cache
}

func main() {
	Parse()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	InitLogger()

	StartTracer()
	if !IsDevelopment {
		StartProfiler()
	}
	defer cleanup()

	db, err := GetDBConnection()
	if err != nil {
		Log.Fatal("fail to connect database : ", err)
	}
	if err := DatabaseSetupAndMigration(db); err != nil {
		Log.Fatal("fail to migrate database : ", err)
	}

	if ByPassAuth && !IsDevelopment {
		Log.Fatal("-bypass_auth is only allowed with -dev")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" && !ByPassAuth {
		Log.Fatal("JWT_SECRET must be set")
	}

	entityStore := store.NewGormStore(db)
	cache := getKeyValueCache(context.Background())
	defer cache.Close()
	users := session.NewUserCache(cache, entityStore)

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()

	router.Use(cors.Default())
	router.Use(middlewares.RequestId())
	router.Use(gintrace.Middleware(ServiceName))
	if ByPassAuth {
		Log.Warn("session auth bypassed, trusting ", middlewares.ByPassUserIdHeader)
		router.Use(middlewares.ByPassSession())
	} else {
		router.Use(middlewares.Session([]byte(secret)))
	}

	server.NewServer(entityStore, users).RegisterRoutes(router)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	Log.Info("api server starts up")
	if err := router.Run(ListenAddr); err != nil {
		Log.Fatal("api server stopped : ", err)
	}
}
