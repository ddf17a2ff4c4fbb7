package controller

import (
	"net/http"

	"github.com/vibast-solutions/ms-go-skywatch/app/apierror"
	httpdto "github.com/vibast-solutions/ms-go-skywatch/app/dto/http"
	"github.com/vibast-solutions/ms-go-skywatch/app/middleware"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// UsageController reports on the key that authenticated the request.
type UsageController struct {
	apiKeyService service.APIKeyService
}

func NewUsageController(apiKeyService service.APIKeyService) *UsageController {
	return &UsageController{apiKeyService: apiKeyService}
}

func (c *UsageController) Stats(ctx echo.Context) error {
	key, ok := middleware.APIKeyFromContext(ctx)
	if !ok {
		return apierror.Write(ctx, apierror.Authentication("API key required"))
	}

	stats, err := c.apiKeyService.UsageStats(ctx.Request().Context(), key)
	if err != nil {
		logrus.WithError(err).WithField("api_key_id", key.ID).Error("Usage stats failed")
		return apierror.Write(ctx, apierror.Internal(err))
	}

	return ctx.JSON(http.StatusOK, httpdto.NewUsageStatsResponse(stats))
}

func (c *UsageController) History(ctx echo.Context) error {
	key, ok := middleware.APIKeyFromContext(ctx)
	if !ok {
		return apierror.Write(ctx, apierror.Authentication("API key required"))
	}

	req, err := types.NewUsageHistoryRequestFromContext(ctx)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		return apierror.Write(ctx, apierror.Validation("limit must be a positive integer"))
	}

	records, err := c.apiKeyService.UsageHistory(ctx.Request().Context(), key, req.Limit)
	if err != nil {
		logrus.WithError(err).WithField("api_key_id", key.ID).Error("Usage history failed")
		return apierror.Write(ctx, apierror.Internal(err))
	}

	return ctx.JSON(http.StatusOK, httpdto.NewUsageHistoryResponse(records))
}
