package roomhandler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomrelay/internal/rooms"
)

// Directory is the read side of the relay the handler needs.
type Directory interface {
	Rooms() []rooms.Summary
	Room(code string) (rooms.Summary, bool)
}

type Handler struct {
	dir Directory
}

func New(dir Directory) *Handler { return &Handler{dir: dir} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.list)
	r.GET("/rooms/:code", h.info)
	r.GET("/healthz", h.health)
}

// @Summary		Liveness probe
// @Tags			Ops
// @Success		200	{object}	HealthResponse
// @Router			/healthz [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Rooms: len(h.dir.Rooms())})
}

// @Summary		Get room details
// @Description	Returns counts and status of a single live room. Message content is never exposed.
// @Tags			Rooms
// @Param			code	path		string	true	"Room code"	default(abc12)
// @Success		200		{object}	rooms.Summary
// @Failure		404		{object}	ErrorResponse
// @Router			/rooms/{code} [get]
func (h *Handler) info(c *gin.Context) {
	summary, ok := h.dir.Room(c.Param("code"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: rooms.ErrRoomNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary		List rooms
// @Description	Lists every live room ordered by code, optionally filtered by status.
// @Tags			Rooms
// @Param			status	query		string	false	"Status filter"	Enums(open,closing)
// @Success		200		{array}		rooms.Summary
// @Failure		400		{object}	ErrorResponse
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	var q ListRoomsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	all := h.dir.Rooms()
	out := make([]rooms.Summary, 0, len(all))
	for _, s := range all {
		if q.Status == "" || s.Status == q.Status {
			out = append(out, s)
		}
	}
	c.JSON(http.StatusOK, out)
}
