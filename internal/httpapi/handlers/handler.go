package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/macrolog/internal/app"
	"github.com/suPer8Hu/macrolog/internal/chat"
	"github.com/suPer8Hu/macrolog/internal/common"
	"github.com/suPer8Hu/macrolog/internal/images"
	"github.com/suPer8Hu/macrolog/internal/logbook"
	"github.com/suPer8Hu/macrolog/internal/nutrition"
)

// JobPublisher hands an async turn job to the worker queue.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Handler struct {
	Logbook   *logbook.Service
	Nutrition *nutrition.Provider
	Uploader  *images.Uploader
	Chat      *chat.Service
	// Jobs is nil when async turns are disabled.
	Jobs JobPublisher
}

func NewHandler(a *app.App, jobs JobPublisher) *Handler {
	return &Handler{
		Logbook:   a.Logbook,
		Nutrition: a.Nutrition,
		Uploader:  a.Uploader,
		Chat:      a.Chat,
		Jobs:      jobs,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid "+name)
		return 0, false
	}
	return id, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
