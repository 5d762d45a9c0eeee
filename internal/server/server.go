// Package server exposes the backend supervisor over a small local HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/devmarvs/bebo"
	"github.com/devmarvs/bebo/middleware"
)

const statusTimeout = 3 * time.Second

type StartResponse struct {
	Status string `json:"status"`
	Pid    int    `json:"pid,omitempty"`
	Error  string `json:"error,omitempty"`
}

func New(d Deps, port int) *bebo.App {
	cfg := bebo.DefaultConfig()
	cfg.Address = fmt.Sprintf("127.0.0.1:%d", port)
	app := bebo.New(bebo.WithConfig(cfg))

	app.Use(middleware.RequestID(), middleware.Recover(), middleware.Logger())

	app.GET("/health", func(ctx *bebo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	app.GET("/api/backend/status", func(ctx *bebo.Context) error {
		reqCtx, cancel := context.WithTimeout(context.Background(), statusTimeout)
		defer cancel()
		return ctx.JSON(http.StatusOK, BuildStatus(reqCtx, d))
	})

	app.GET("/api/backend/logs", func(ctx *bebo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"logs": d.Backend.TailLogs(logTailLines)})
	})

	app.POST("/api/backend/logs/clear", func(ctx *bebo.Context) error {
		d.Backend.ClearLogs()
		return ctx.JSON(http.StatusOK, map[string]string{"status": "cleared"})
	})

	app.POST("/api/backend/start", func(ctx *bebo.Context) error {
		code, resp := handleStart(d)
		return ctx.JSON(code, resp)
	})

	app.POST("/api/backend/stop", func(ctx *bebo.Context) error {
		if !d.Backend.Stop() {
			return ctx.JSON(http.StatusOK, map[string]string{"status": "not_running"})
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "stopping"})
	})

	return app
}

func handleStart(d Deps) (int, StartResponse) {
	h, err := d.Controller.StartBackend()
	if err != nil {
		return startStatus(err), StartResponse{Status: "failed", Error: err.Error()}
	}
	resp := StartResponse{Status: "started"}
	if h != nil {
		resp.Pid = h.Pid
	}
	return http.StatusOK, resp
}
