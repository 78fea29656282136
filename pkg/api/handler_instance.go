package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/convoyhq/convoy/pkg/models"
)

// startInstanceHandler handles POST /group-journey/:id/start-my-instance.
func (s *Server) startInstanceHandler(c *echo.Context) error {
	journeyID := c.Param("id")
	if journeyID == "" {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "journey id is required")
	}
	var req models.StartInstanceRequest
	if err := c.Bind(&req); err != nil {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "invalid request body")
	}

	inst, err := s.journeys.StartInstance(c.Request().Context(), currentUser(c), journeyID, req)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

// myInstanceHandler handles GET /group-journey/:id/my-instance.
func (s *Server) myInstanceHandler(c *echo.Context) error {
	journeyID := c.Param("id")
	if journeyID == "" {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "journey id is required")
	}

	inst, err := s.journeys.GetMyInstance(c.Request().Context(), currentUser(c), journeyID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

// locationHandler handles POST /group-journey/instance/:id/location.
func (s *Server) locationHandler(c *echo.Context) error {
	instanceID := c.Param("id")
	if instanceID == "" {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "instance id is required")
	}
	var req models.LocationUpdateRequest
	if err := c.Bind(&req); err != nil {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "invalid request body")
	}

	inst, err := s.locations.UpdateLocation(c.Request().Context(), currentUser(c), instanceID, req)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

// pauseInstanceHandler handles POST /group-journey/instance/:id/pause.
func (s *Server) pauseInstanceHandler(c *echo.Context) error {
	instanceID := c.Param("id")
	if instanceID == "" {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "instance id is required")
	}

	inst, err := s.journeys.PauseInstance(c.Request().Context(), currentUser(c), instanceID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

// resumeInstanceHandler handles POST /group-journey/instance/:id/resume.
func (s *Server) resumeInstanceHandler(c *echo.Context) error {
	instanceID := c.Param("id")
	if instanceID == "" {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "instance id is required")
	}

	inst, err := s.journeys.ResumeInstance(c.Request().Context(), currentUser(c), instanceID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

// completeInstanceHandler handles POST /group-journey/instance/:id/complete.
func (s *Server) completeInstanceHandler(c *echo.Context) error {
	instanceID := c.Param("id")
	if instanceID == "" {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "instance id is required")
	}
	var req models.CompleteInstanceRequest
	if err := c.Bind(&req); err != nil {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, "invalid request body")
	}

	inst, err := s.journeys.CompleteInstance(c.Request().Context(), currentUser(c), instanceID, req)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, inst)
}
