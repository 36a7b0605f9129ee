package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/macrolog/internal/common"
	"github.com/suPer8Hu/macrolog/internal/nutrition"
)

func (h *Handler) LookupNutrition(c *gin.Context) {
	var req nutrition.Query
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	res, err := h.Nutrition.Lookup(c.Request.Context(), req)
	if err != nil {
		failErr(c, "LookupNutrition", err)
		return
	}
	common.OK(c, res)
}
