package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/macrolog/internal/common"
	"github.com/suPer8Hu/macrolog/internal/logbook"
)

// windowQuery reads ?days=N. ok is false when days is absent; a bad value
// has already been answered with 400.
func windowQuery(c *gin.Context) (days int, present bool, ok bool) {
	v := c.Query("days")
	if v == "" {
		return 0, false, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "days must be an integer")
		return 0, true, false
	}
	return logbook.ClampDays(n), true, true
}

// GET /daily?date=YYYY-MM-DD | ?days=N
func (h *Handler) GetDaily(c *gin.Context) {
	ctx := c.Request.Context()
	if date := c.Query("date"); date != "" {
		rec, err := h.Logbook.Daily(ctx, date)
		if err != nil {
			failErr(c, "GetDaily", err)
			return
		}
		common.OK(c, rec)
		return
	}

	days, present, ok := windowQuery(c)
	if !ok {
		return
	}
	if !present {
		common.Fail(c, http.StatusBadRequest, 10002, "date or days is required")
		return
	}
	recs, err := h.Logbook.RecentDaily(ctx, days)
	if err != nil {
		failErr(c, "GetDaily", err)
		return
	}
	common.OK(c, gin.H{"days": days, "records": nonNil(recs)})
}

func (h *Handler) SaveDaily(c *gin.Context) {
	var req logbook.DailyPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	rec, err := h.Logbook.SaveDaily(c.Request.Context(), req)
	if err != nil {
		failErr(c, "SaveDaily", err)
		return
	}
	common.OK(c, rec)
}

// GET /foods?date=YYYY-MM-DD | ?days=N
func (h *Handler) GetFoods(c *gin.Context) {
	ctx := c.Request.Context()
	if date := c.Query("date"); date != "" {
		foods, totals, err := h.Logbook.FoodsOn(ctx, date)
		if err != nil {
			failErr(c, "GetFoods", err)
			return
		}
		common.OK(c, gin.H{"foods": foods, "totals": totals})
		return
	}

	days, present, ok := windowQuery(c)
	if !ok {
		return
	}
	if !present {
		common.Fail(c, http.StatusBadRequest, 10002, "date or days is required")
		return
	}
	totals, err := h.Logbook.FoodTotals(ctx, days)
	if err != nil {
		failErr(c, "GetFoods", err)
		return
	}
	common.OK(c, gin.H{"days": days, "totals": nonNil(totals)})
}

func (h *Handler) AddFood(c *gin.Context) {
	var req logbook.FoodLog
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	f, err := h.Logbook.AddFood(c.Request.Context(), req)
	if err != nil {
		failErr(c, "AddFood", err)
		return
	}
	common.OK(c, f)
}

func (h *Handler) DeleteFood(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Logbook.DeleteFood(c.Request.Context(), id); err != nil {
		failErr(c, "DeleteFood", err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}

func (h *Handler) DuplicateFood(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Date string `json:"date"`
	}
	// body is optional
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
			return
		}
	}
	f, err := h.Logbook.DuplicateFood(c.Request.Context(), id, req.Date)
	if err != nil {
		failErr(c, "DuplicateFood", err)
		return
	}
	common.OK(c, f)
}

func (h *Handler) SuggestFoods(c *gin.Context) {
	names, err := h.Logbook.Suggest(c.Request.Context(), c.Query("q"))
	if err != nil {
		failErr(c, "SuggestFoods", err)
		return
	}
	common.OK(c, gin.H{"suggestions": names})
}

func (h *Handler) GetConfig(c *gin.Context) {
	cfg, err := h.Logbook.Config(c.Request.Context())
	if err != nil {
		failErr(c, "GetConfig", err)
		return
	}
	common.OK(c, cfg)
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var req logbook.ConfigPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	cfg, err := h.Logbook.UpdateConfig(c.Request.Context(), req)
	if err != nil {
		failErr(c, "UpdateConfig", err)
		return
	}
	common.OK(c, cfg)
}
