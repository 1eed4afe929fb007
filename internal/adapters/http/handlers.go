package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/adapters/identity"
	"github.com/dkeye/SoundSync/internal/adapters/signal"
	"github.com/dkeye/SoundSync/internal/app/orch"
	"github.com/dkeye/SoundSync/internal/domain"
)

type handlers struct {
	orch *orch.Orchestrator
}

var statusOf = map[domain.ErrorKind]int{
	domain.KindNotFound:     http.StatusNotFound,
	domain.KindUnauthorized: http.StatusForbidden,
	domain.KindAlreadyVoted: http.StatusConflict,
	domain.KindVotingClosed: http.StatusGone,
	domain.KindInvalidState: http.StatusConflict,
	domain.KindUnavailable:  http.StatusServiceUnavailable,
	domain.KindInvalidInput: http.StatusBadRequest,
	domain.KindRateLimited:  http.StatusTooManyRequests,
}

func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status, ok := statusOf[kind]
	if !ok {
		status = http.StatusInternalServerError
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("unexpected error")
	}
	c.JSON(status, gin.H{"error": kind, "message": err.Error()})
}

func rateLimit(l *signal.RoomRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(identity.FromContext(c).MemberID) {
			writeError(c, domain.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}

func roomID(c *gin.Context) domain.RoomID {
	return domain.RoomID(c.Param("id"))
}

func (h *handlers) me(c *gin.Context) {
	who := identity.FromContext(c)
	resp := gin.H{"identity": who}
	if id, ok := h.orch.Rooms.RoomOf(who.MemberID); ok {
		resp["room"] = id
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) history(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.History.Of(identity.FromContext(c).MemberID))
}

func (h *handlers) searchTracks(c *gin.Context) {
	tracks, err := h.orch.Sessions.SearchTracks(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracks": tracks})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

// nearby reads ?lat=&lon=&limit=. A missing or invalid position ranks by
// sightings and age only.
func (h *handlers) nearby(c *gin.Context) {
	var self *domain.Location
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat == nil && errLon == nil {
		self = &domain.Location{Latitude: lat, Longitude: lon}
		if !self.Valid() {
			self = nil
		}
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.NearbyRooms(self, limit)})
}

type createRoomRequest struct {
	Name     string           `json:"name"`
	Track    *domain.Track    `json:"track,omitempty"`
	Location *domain.Location `json:"location,omitempty"`
}

func (h *handlers) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.KindInvalidInput, "message": err.Error()})
		return
	}
	snap, err := h.orch.Create(c.Request.Context(), identity.FromContext(c), req.Name, req.Track, req.Location)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h *handlers) getRoom(c *gin.Context) {
	snap, err := h.orch.Rooms.GetRoom(c.Request.Context(), roomID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) closeRoom(c *gin.Context) {
	if err := h.orch.Close(c.Request.Context(), identity.FromContext(c).MemberID, roomID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) joinRoom(c *gin.Context) {
	snap, err := h.orch.Join(c.Request.Context(), identity.FromContext(c), roomID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) leaveRoom(c *gin.Context) {
	if err := h.orch.LeaveRoom(c.Request.Context(), identity.FromContext(c).MemberID, roomID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) setTrack(c *gin.Context) {
	var req struct {
		Track domain.Track `json:"track"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.KindInvalidInput, "message": err.Error()})
		return
	}
	snap, err := h.orch.Sessions.SetCurrentTrack(c.Request.Context(), roomID(c), identity.FromContext(c).MemberID, req.Track)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) play(c *gin.Context) {
	snap, err := h.orch.Sessions.RequestPlay(c.Request.Context(), roomID(c), identity.FromContext(c).MemberID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) pause(c *gin.Context) {
	snap, err := h.orch.Sessions.RequestPause(c.Request.Context(), roomID(c), identity.FromContext(c).MemberID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) voteState(c *gin.Context) {
	snap, err := h.orch.Votes.VoteState(c.Request.Context(), roomID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) castVote(c *gin.Context) {
	var req struct {
		Ballot domain.Ballot `json:"ballot"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.KindInvalidInput, "message": err.Error()})
		return
	}
	snap, err := h.orch.Votes.CastVote(c.Request.Context(), identity.FromContext(c).MemberID, roomID(c), req.Ballot)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
