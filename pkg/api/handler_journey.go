package api

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/convoyhq/convoy/pkg/models"
)

// startGroupJourneyHandler handles POST /group-journey/start.
func (s *Server) startGroupJourneyHandler(c *echo.Context) error {
	var req models.StartGroupJourneyRequest
	if err := c.Bind(&req); err != nil {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "invalid request body")
	}
	if req.GroupID == "" {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "group_id is required")
	}

	detail, err := s.journeys.StartGroupJourney(c.Request().Context(), currentUser(c), req)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

// getJourneyHandler handles GET /group-journey/:id.
func (s *Server) getJourneyHandler(c *echo.Context) error {
	journeyID := c.Param("id")
	if journeyID == "" {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "journey id is required")
	}

	detail, err := s.journeys.GetJourney(c.Request().Context(), currentUser(c), journeyID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

// activeForGroupHandler handles GET /group-journey/active/:groupId.
func (s *Server) activeForGroupHandler(c *echo.Context) error {
	groupID := c.Param("groupId")
	if groupID == "" {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "group id is required")
	}

	journey, err := s.journeys.GetActiveForGroup(c.Request().Context(), currentUser(c), groupID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, journey)
}

// summaryHandler handles GET /group-journey/:id/summary.
func (s *Server) summaryHandler(c *echo.Context) error {
	journeyID := c.Param("id")
	if journeyID == "" {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "journey id is required")
	}

	summary, err := s.journeys.Summary(c.Request().Context(), currentUser(c), journeyID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// listEventsHandler handles GET /group-journey/:id/events.
func (s *Server) listEventsHandler(c *echo.Context) error {
	journeyID := c.Param("id")
	if journeyID == "" {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "journey id is required")
	}

	var since *time.Time
	if v := c.QueryParam("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return newAPIError(http.StatusBadRequest, kindInvalidInput, "since must be RFC 3339")
		}
		since = &t
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return newAPIError(http.StatusBadRequest, kindInvalidInput, "limit must be a positive integer")
		}
		limit = n
	}

	list, err := s.journeys.ListEvents(c.Request().Context(), currentUser(c), journeyID, since, limit)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, list)
}

// postEventHandler handles POST /group-journey/:id/events.
func (s *Server) postEventHandler(c *echo.Context) error {
	journeyID := c.Param("id")
	if journeyID == "" {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "journey id is required")
	}
	var req models.PostRideEventRequest
	if err := c.Bind(&req); err != nil {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "invalid request body")
	}

	event, err := s.journeys.PostEvent(c.Request().Context(), currentUser(c), journeyID, req)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, event)
}
