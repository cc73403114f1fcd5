package ginserver

import (
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	reservationapp "staybook/internal/app/handlers/reservations"
	"staybook/internal/app/queries"
	"staybook/internal/domain/shared/domainerr"
)

type ReservationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createReservationRequest struct {
	ResourceID string `json:"resource_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Slot       string `json:"slot"`
	PartySize  int    `json:"party_size"`
	GuestID    string `json:"guest_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

type reservationDates struct {
	in, out time.Time
}

func (r createReservationRequest) dates() (reservationDates, error) {
	in, err := parseDate("check_in", r.CheckIn)
	if err != nil {
		return reservationDates{}, err
	}
	out, err := parseDate("check_out", r.CheckOut)
	if err != nil {
		return reservationDates{}, err
	}
	return reservationDates{in: in, out: out}, nil
}

// Create books for the authenticated caller. Admins may book on behalf of a
// guest by naming guest_id.
func (h ReservationHandler) Create(c *gin.Context) {
	p := principalOf(c)
	if p.Anonymous() {
		writeError(c, &domainerr.ForbiddenError{Action: reservationapp.CommitKey})
		return
	}
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}
	dates, err := req.dates()
	if err != nil {
		writeError(c, err)
		return
	}
	guestID := strings.TrimSpace(req.GuestID)
	if guestID == "" {
		guestID = p.ID
	}
	cmd := reservationapp.CommitCommand{
		ResourceID: req.ResourceID,
		CheckIn:    dates.in,
		CheckOut:   dates.out,
		Slot:       req.Slot,
		PartySize:  req.PartySize,
		GuestID:    guestID,
		GuestName:  req.Name,
		GuestEmail: req.Email,
		RequestKey: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[reservationapp.CommitCommand, dto.ReservationResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(createdStatus(result), result)
}

// GuestCreate is the unauthenticated checkout. The guest is identified by email.
func (h ReservationHandler) GuestCreate(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}
	dates, err := req.dates()
	if err != nil {
		writeError(c, err)
		return
	}
	cmd := reservationapp.GuestCommitCommand{
		ResourceID: req.ResourceID,
		CheckIn:    dates.in,
		CheckOut:   dates.out,
		Slot:       req.Slot,
		PartySize:  req.PartySize,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		RequestKey: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[reservationapp.GuestCommitCommand, dto.ReservationResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(createdStatus(result), result)
}

func (h ReservationHandler) Get(c *gin.Context) {
	result, err := queries.Ask[reservationapp.GetQuery, dto.Reservation](c.Request.Context(), h.Queries, reservationapp.GetQuery{ReservationID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) Mine(c *gin.Context) {
	p := principalOf(c)
	result, err := queries.Ask[reservationapp.ListMineQuery, dto.ReservationCollection](c.Request.Context(), h.Queries, reservationapp.ListMineQuery{GuestID: p.ID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h ReservationHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "body", err)
			return
		}
	}
	cmd := reservationapp.CancelCommand{ReservationID: c.Param("id"), Reason: req.Reason}
	result, err := commands.Dispatch[reservationapp.CancelCommand, dto.Reservation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) Complete(c *gin.Context) {
	cmd := reservationapp.CompleteCommand{ReservationID: c.Param("id")}
	result, err := commands.Dispatch[reservationapp.CompleteCommand, dto.Reservation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func createdStatus(result dto.ReservationResult) int {
	if result.Replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}

var _ ReservationHTTP = ReservationHandler{}
