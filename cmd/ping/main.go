package main

import (
	"log"
	"net/http"

	"github.com/aura-studio/lambda-bridge/engine"
	"github.com/aura-studio/lambda-bridge/server"
	"github.com/gin-gonic/gin"
)

func routes(r *gin.Engine) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": 200})
	})
}

func main() {
	opts := []server.Option{
		server.WithEngineOptions(engine.WithRoutes(routes)),
	}
	// bridge.yaml next to the binary selects the mode; without one the
	// defaults serve REST API events.
	if _, err := server.FindDefaultConfigFile(); err == nil {
		opts = append(opts, server.WithDefaultConfigFile())
	}

	if err := server.Serve(opts...); err != nil {
		log.Fatal(err)
	}
}
