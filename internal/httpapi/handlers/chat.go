package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/macrolog/internal/chat"
	"github.com/suPer8Hu/macrolog/internal/common"
	"github.com/suPer8Hu/macrolog/internal/httpapi/middleware"
	"github.com/suPer8Hu/macrolog/internal/persona"
)

func (h *Handler) ListPersonas(c *gin.Context) {
	common.OK(c, gin.H{
		"default":  persona.DefaultKey,
		"personas": persona.All(),
	})
}

// ---- rooms ----

func (h *Handler) ListChatRooms(c *gin.Context) {
	rooms, err := h.Chat.ListRooms(c.Request.Context())
	if err != nil {
		failErr(c, "ListChatRooms", err)
		return
	}
	common.OK(c, gin.H{"rooms": rooms})
}

type roomReq struct {
	Title   *string `json:"title"`
	Persona *string `json:"persona"`
}

func (h *Handler) CreateChatRoom(c *gin.Context) {
	var req roomReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	var title, key string
	if req.Title != nil {
		title = *req.Title
	}
	if req.Persona != nil {
		key = *req.Persona
	}
	room, err := h.Chat.CreateRoom(c.Request.Context(), title, key)
	if err != nil {
		failErr(c, "CreateChatRoom", err)
		return
	}
	common.OK(c, room)
}

func (h *Handler) UpdateChatRoom(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req roomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	room, err := h.Chat.UpdateRoom(c.Request.Context(), id, req.Title, req.Persona)
	if err != nil {
		failErr(c, "UpdateChatRoom", err)
		return
	}
	common.OK(c, room)
}

func (h *Handler) DeleteChatRoom(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Chat.DeleteRoom(c.Request.Context(), id); err != nil {
		failErr(c, "DeleteChatRoom", err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.Chat.ListMessages(c.Request.Context(), id)
	if err != nil {
		failErr(c, "ListChatMessages", err)
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

type appendMessageReq struct {
	Role     string `json:"role" binding:"required"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

// AppendChatMessage stores a message as-is; the AI is not called.
func (h *Handler) AppendChatMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req appendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	m, err := h.Chat.AppendMessage(c.Request.Context(), id, req.Role, req.Content, req.ImageURL)
	if err != nil {
		failErr(c, "AppendChatMessage", err)
		return
	}
	common.OK(c, m)
}

// ---- turns ----

type turnReq struct {
	Message  string `json:"message"`
	ImageURL string `json:"image_url"`
	Date     string `json:"date"`
	Persona  string `json:"persona"`
}

func (r turnReq) input(roomID int64) chat.TurnInput {
	return chat.TurnInput{
		RoomID:   roomID,
		Message:  r.Message,
		ImageURL: r.ImageURL,
		Date:     r.Date,
		Persona:  r.Persona,
	}
}

func (h *Handler) SendTurn(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req turnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	// persona comes from the room
	req.Persona = ""

	res, err := h.Chat.SendTurn(c.Request.Context(), req.input(id))
	if err != nil {
		failErr(c, "SendTurn", err)
		return
	}
	common.OK(c, res)
}

// StatelessChat answers one turn without a room; nothing is stored.
func (h *Handler) StatelessChat(c *gin.Context) {
	var req turnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	res, err := h.Chat.SendTurn(c.Request.Context(), req.input(0))
	if err != nil {
		failErr(c, "StatelessChat", err)
		return
	}
	common.OK(c, gin.H{"reply": res.Reply})
}

func (h *Handler) SendTurnAsync(c *gin.Context) {
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async turns are not enabled")
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req turnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.Persona = ""

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}

	ctx := c.Request.Context()
	job, created, err := h.Chat.EnqueueTurn(ctx, req.input(id), idempoKey)
	if err != nil {
		failErr(c, "SendTurnAsync", err)
		return
	}

	// enqueue only when a new job was created
	if created {
		if err := h.Jobs.PublishJob(ctx, job.ID); err != nil {
			log.Printf("[SendTurnAsync] PublishJob failed request_id=%s room_id=%d job_id=%s err=%v",
				c.GetString(middleware.RequestIDKey), id, job.ID, err)
			if markErr := h.Chat.Repo().MarkJobFailed(ctx, job.ID, "enqueue failed"); markErr != nil {
				log.Printf("[SendTurnAsync] MarkJobFailed failed job_id=%s err=%v", job.ID, markErr)
			}
			common.Fail(c, http.StatusInternalServerError, 50003, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{
		"job_id":          job.ID,
		"status":          job.Status,
		"user_message_id": job.UserMessageID,
	})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("job_id"))
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}
	j, err := h.Chat.GetJob(c.Request.Context(), jobID)
	if err != nil {
		failErr(c, "GetChatJob", err)
		return
	}
	common.OK(c, gin.H{
		"job": gin.H{
			"id":                j.ID,
			"room_id":           j.RoomID,
			"user_message_id":   j.UserMessageID,
			"status":            j.Status,
			"result_message_id": j.ResultMessageID,
			"error":             j.Error,
			"created_at":        j.CreatedAt,
			"updated_at":        j.UpdatedAt,
		},
	})
}
