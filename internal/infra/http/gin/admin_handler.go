package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/admin"
)

type AdminHandler struct {
	Commands commands.Bus
}

type upsertResourceRequest struct {
	Kind      string   `json:"kind"`
	Title     string   `json:"title"`
	City      string   `json:"city"`
	Capacity  int      `json:"capacity"`
	BasePrice int64    `json:"base_price"`
	Currency  string   `json:"currency"`
	Slots     []string `json:"slots"`
	Active    *bool    `json:"active"`
}

func (h AdminHandler) UpsertResource(c *gin.Context) {
	var req upsertResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	cmd := admin.UpsertResourceCommand{
		ID:        c.Param("id"),
		Kind:      req.Kind,
		Title:     req.Title,
		City:      req.City,
		Capacity:  req.Capacity,
		BasePrice: req.BasePrice,
		Currency:  req.Currency,
		Slots:     req.Slots,
		Active:    active,
	}
	result, err := commands.Dispatch[admin.UpsertResourceCommand, dto.Resource](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type dateRangeRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Reason   string `json:"reason"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (r dateRangeRequest) bounds() (time.Time, time.Time, error) {
	from, err := parseDate("from", r.From)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate("to", r.To)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func bindRange(c *gin.Context) (dateRangeRequest, time.Time, time.Time, bool) {
	var req dateRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return req, time.Time{}, time.Time{}, false
	}
	from, to, err := req.bounds()
	if err != nil {
		writeError(c, err)
		return req, time.Time{}, time.Time{}, false
	}
	return req, from, to, true
}

func (h AdminHandler) AddBlocks(c *gin.Context) {
	req, from, to, ok := bindRange(c)
	if !ok {
		return
	}
	cmd := admin.AddBlocksCommand{ResourceID: c.Param("id"), From: from, To: to, Reason: req.Reason}
	h.respondRange(c, func() (dto.DateRangeChange, error) {
		return commands.Dispatch[admin.AddBlocksCommand, dto.DateRangeChange](c.Request.Context(), h.Commands, cmd)
	})
}

func (h AdminHandler) RemoveBlocks(c *gin.Context) {
	_, from, to, ok := bindRange(c)
	if !ok {
		return
	}
	cmd := admin.RemoveBlocksCommand{ResourceID: c.Param("id"), From: from, To: to}
	h.respondRange(c, func() (dto.DateRangeChange, error) {
		return commands.Dispatch[admin.RemoveBlocksCommand, dto.DateRangeChange](c.Request.Context(), h.Commands, cmd)
	})
}

func (h AdminHandler) SetPrices(c *gin.Context) {
	req, from, to, ok := bindRange(c)
	if !ok {
		return
	}
	cmd := admin.SetPricesCommand{ResourceID: c.Param("id"), From: from, To: to, Amount: req.Amount, Currency: req.Currency}
	h.respondRange(c, func() (dto.DateRangeChange, error) {
		return commands.Dispatch[admin.SetPricesCommand, dto.DateRangeChange](c.Request.Context(), h.Commands, cmd)
	})
}

func (h AdminHandler) ClearPrices(c *gin.Context) {
	_, from, to, ok := bindRange(c)
	if !ok {
		return
	}
	cmd := admin.ClearPricesCommand{ResourceID: c.Param("id"), From: from, To: to}
	h.respondRange(c, func() (dto.DateRangeChange, error) {
		return commands.Dispatch[admin.ClearPricesCommand, dto.DateRangeChange](c.Request.Context(), h.Commands, cmd)
	})
}

func (h AdminHandler) respondRange(c *gin.Context, run func() (dto.DateRangeChange, error)) {
	result, err := run()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AdminHTTP = AdminHandler{}
