package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	availabilityapp "staybook/internal/app/handlers/availability"
	"staybook/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
}

// Window serves GET /resources/:id/availability?from=&to=&slot=&party=.
func (h AvailabilityHandler) Window(c *gin.Context) {
	from, err := parseDate("from", c.Query("from"))
	if err != nil {
		writeError(c, err)
		return
	}
	to, err := parseDate("to", c.Query("to"))
	if err != nil {
		writeError(c, err)
		return
	}
	party, err := parseInt("party", c.Query("party"), 1)
	if err != nil {
		writeError(c, err)
		return
	}
	query := availabilityapp.WindowQuery{ResourceID: c.Param("id"), From: from, To: to, Slot: c.Query("slot"), PartySize: party}
	result, err := queries.Ask[availabilityapp.WindowQuery, dto.Window](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Check serves the optimistic pre-check shown before checkout. It answers
// 200 either way; the writer decides again on commit.
func (h AvailabilityHandler) Check(c *gin.Context) {
	checkIn, err := parseDate("check_in", c.Query("check_in"))
	if err != nil {
		writeError(c, err)
		return
	}
	checkOut, err := parseDate("check_out", c.Query("check_out"))
	if err != nil {
		writeError(c, err)
		return
	}
	party, err := parseInt("party", c.Query("party"), 1)
	if err != nil {
		writeError(c, err)
		return
	}
	query := availabilityapp.CheckQuery{ResourceID: c.Param("id"), CheckIn: checkIn, CheckOut: checkOut, Slot: c.Query("slot"), PartySize: party}
	result, err := queries.Ask[availabilityapp.CheckQuery, dto.AvailabilityCheck](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Search(c *gin.Context) {
	checkIn, err := parseDate("check_in", c.Query("check_in"))
	if err != nil {
		writeError(c, err)
		return
	}
	checkOut, err := parseDate("check_out", c.Query("check_out"))
	if err != nil {
		writeError(c, err)
		return
	}
	party, err := parseInt("party", c.Query("party"), 1)
	if err != nil {
		writeError(c, err)
		return
	}
	limit, err := parseInt("limit", c.Query("limit"), 0)
	if err != nil {
		writeError(c, err)
		return
	}
	offset, err := parseInt("offset", c.Query("offset"), 0)
	if err != nil {
		writeError(c, err)
		return
	}
	query := availabilityapp.SearchQuery{
		Kind:      c.Query("kind"),
		City:      c.Query("city"),
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		PartySize: party,
		Limit:     limit,
		Offset:    offset,
	}
	result, err := queries.Ask[availabilityapp.SearchQuery, dto.SearchResult](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
