package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/macrolog/internal/common"
	"github.com/suPer8Hu/macrolog/internal/httpapi/handlers"
	"github.com/suPer8Hu/macrolog/internal/httpapi/middleware"
	"github.com/suPer8Hu/macrolog/internal/images"
)

// NewRouter mounts every route. uploadDir is served under /uploads.
func NewRouter(h *handlers.Handler, uploadDir string) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	// logbook
	r.GET("/daily", h.GetDaily)
	r.POST("/daily", h.SaveDaily)
	r.GET("/foods", h.GetFoods)
	r.POST("/foods", h.AddFood)
	r.GET("/foods/suggest", h.SuggestFoods)
	r.DELETE("/foods/:id", h.DeleteFood)
	r.POST("/foods/:id/duplicate", h.DuplicateFood)
	r.GET("/config", h.GetConfig)
	r.POST("/config", h.UpdateConfig)

	r.POST("/nutrition", h.LookupNutrition)

	// images
	r.POST("/uploads", h.Upload)
	r.Static(images.URLPrefix, uploadDir)

	// chat
	r.GET("/personas", h.ListPersonas)
	r.POST("/chat", h.StatelessChat)
	r.GET("/chat/rooms", h.ListChatRooms)
	r.POST("/chat/rooms", h.CreateChatRoom)
	r.PATCH("/chat/rooms/:id", h.UpdateChatRoom)
	r.DELETE("/chat/rooms/:id", h.DeleteChatRoom)
	r.GET("/chat/rooms/:id/messages", h.ListChatMessages)
	r.POST("/chat/rooms/:id/messages", h.AppendChatMessage)
	r.POST("/chat/rooms/:id/turns", h.SendTurn)
	r.POST("/chat/rooms/:id/turns/async", h.SendTurnAsync)
	r.GET("/chat/jobs/:job_id", h.GetChatJob)

	return r
}
