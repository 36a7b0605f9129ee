package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/macrolog/internal/ai"
	"github.com/suPer8Hu/macrolog/internal/chat"
	"github.com/suPer8Hu/macrolog/internal/common"
	"github.com/suPer8Hu/macrolog/internal/httpapi/middleware"
	"github.com/suPer8Hu/macrolog/internal/images"
	"github.com/suPer8Hu/macrolog/internal/logbook"
	"github.com/suPer8Hu/macrolog/internal/nutrition"
	"github.com/suPer8Hu/macrolog/internal/store"
)

// failErr maps a service error onto a status, code and readable message.
// Anything unrecognized is logged and reported as a 500.
func failErr(c *gin.Context, op string, err error) {
	var imgErr *chat.ImageLoadError
	var aiErr *ai.Error

	switch {
	case errors.Is(err, logbook.ErrInvalid),
		errors.Is(err, nutrition.ErrInvalid),
		errors.Is(err, chat.ErrEmptyTurn),
		errors.Is(err, chat.ErrInvalidRole):
		common.Fail(c, http.StatusBadRequest, 40001, err.Error())
	case errors.Is(err, chat.ErrRoomNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "chat room not found")
	case errors.Is(err, chat.ErrJobNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
	case errors.Is(err, store.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40403, "record not found")
	case errors.Is(err, chat.ErrPersonaLocked):
		common.Fail(c, http.StatusConflict, 40901, err.Error())
	case errors.Is(err, images.ErrTooLarge):
		common.Fail(c, http.StatusRequestEntityTooLarge, 41301, "file is too large")
	case errors.Is(err, images.ErrNotImage):
		common.Fail(c, http.StatusUnsupportedMediaType, 41501, "only image files can be uploaded")
	case errors.Is(err, images.ErrEmpty):
		common.Fail(c, http.StatusBadRequest, 40002, "file is empty")
	case errors.As(err, &imgErr):
		log.Printf("[%s] image load failed request_id=%s ref=%q err=%v", op, c.GetString(middleware.RequestIDKey), imgErr.Ref, imgErr.Err)
		common.Fail(c, http.StatusUnprocessableEntity, 42201, "could not read the attached image, please upload it again")
	case errors.As(err, &aiErr):
		failAI(c, op, aiErr)
	default:
		log.Printf("[%s] failed request_id=%s err=%v", op, c.GetString(middleware.RequestIDKey), err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

func failAI(c *gin.Context, op string, e *ai.Error) {
	log.Printf("[%s] completion failed request_id=%s provider=%s kind=%s status=%d detail=%q err=%v",
		op, c.GetString(middleware.RequestIDKey), e.Provider, e.Kind, e.Status, e.Detail, e.Err)

	switch e.Kind {
	case ai.KindContentFilter:
		common.Fail(c, http.StatusUnprocessableEntity, 42202, "the reply was blocked by the content filter, please rephrase your question")
	case ai.KindTimeout:
		common.Fail(c, http.StatusGatewayTimeout, 50401, "the AI did not answer in time, please try again")
	case ai.KindNetwork:
		common.Fail(c, http.StatusBadGateway, 50201, "could not reach the AI service, please try again")
	case ai.KindHTTP:
		common.FailWith(c, http.StatusBadGateway, 50202, "the AI service returned an error", gin.H{
			"status":  e.Status,
			"details": e.Detail,
		})
	case ai.KindMalformed:
		common.Fail(c, http.StatusBadGateway, 50203, "the AI service returned an unreadable response")
	case ai.KindCanceled:
		common.Fail(c, http.StatusServiceUnavailable, 50302, "the request was cancelled before the AI answered, please try again")
	case ai.KindConfig:
		common.Fail(c, http.StatusInternalServerError, 50002, "the AI service is not configured")
	default:
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
