package controller

import (
	"errors"
	"net/http"

	"github.com/vibast-solutions/ms-go-skywatch/app/apierror"
	httpdto "github.com/vibast-solutions/ms-go-skywatch/app/dto/http"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type SightingController struct {
	sightingService service.SightingService
}

func NewSightingController(sightingService service.SightingService) *SightingController {
	return &SightingController{sightingService: sightingService}
}

func (c *SightingController) List(ctx echo.Context) error {
	req, err := types.NewListSightingsRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind sightings query")
		return apierror.Write(ctx, apierror.Validation("invalid query parameters"))
	}

	if err = req.Validate(); err != nil {
		return apierror.Write(ctx, apierror.Validation(err.Error()))
	}

	page, err := c.sightingService.List(ctx.Request().Context(), req.Filter(), req.Page, req.PerPage)
	if err != nil {
		logrus.WithError(err).Error("List sightings failed")
		return apierror.Write(ctx, apierror.Internal(err))
	}

	return ctx.JSON(http.StatusOK, httpdto.NewSightingListResponse(page))
}

func (c *SightingController) Get(ctx echo.Context) error {
	req, err := types.NewSightingIDRequestFromContext(ctx)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		return apierror.Write(ctx, apierror.Validation("id must be a positive integer"))
	}

	sighting, err := c.sightingService.Get(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrSightingNotFound) {
			return apierror.Write(ctx, apierror.NotFound("Sighting", req.ID))
		}
		logrus.WithError(err).WithField("sighting_id", req.ID).Error("Get sighting failed")
		return apierror.Write(ctx, apierror.Internal(err))
	}

	return ctx.JSON(http.StatusOK, httpdto.NewSightingResponse(sighting))
}

func (c *SightingController) ShapeStats(ctx echo.Context) error {
	counts, err := c.sightingService.ShapeStats(ctx.Request().Context())
	if err != nil {
		logrus.WithError(err).Error("Shape stats failed")
		return apierror.Write(ctx, apierror.Internal(err))
	}

	return ctx.JSON(http.StatusOK, httpdto.NewShapeStatsResponse(counts))
}
