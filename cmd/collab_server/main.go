package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"collabedit/config"
	"collabedit/internal/httpapi/handlers"
	"collabedit/internal/store"
	"collabedit/internal/ws"
)

func initConfig() (*config.Server, error) {
	cfg := &config.Server{}
	v := viper.New()
	v.SetConfigName("serverConfig")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.SetDefault("running.port", 8080)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// No config file: run on defaults.
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	cfg, err := initConfig()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}

	docs := store.NewDocumentStore()
	hub := ws.NewHub()
	presence := ws.NewPresence()
	manager := ws.NewManager(hub, presence, docs)
	api := handlers.NewAPI(docs)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.Cors.Origins) > 0 {
		corsCfg.AllowOrigins = cfg.Cors.Origins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-Node-Id")
	r.Use(cors.New(corsCfg))

	r.POST("/api", api.Handle)
	r.GET("/ws", manager.WebSocketConnect)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	port := cfg.Running.Port
	log.Printf("collab server listening on :%d", port)
	if err := r.Run(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
