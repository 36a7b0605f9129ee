package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/macrolog/internal/common"
)

// multipart framing on top of the file itself
const multipartSlack = 64 << 10

func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Uploader.MaxBytes()+multipartSlack)

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			common.Fail(c, http.StatusRequestEntityTooLarge, 41301, "file is too large")
			return
		}
		common.Fail(c, http.StatusBadRequest, 10003, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		failErr(c, "Upload", err)
		return
	}
	defer f.Close()

	up, err := h.Uploader.Save(c.Request.Context(), f)
	if err != nil {
		failErr(c, "Upload", err)
		return
	}
	common.OK(c, up)
}
