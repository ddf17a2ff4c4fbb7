package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vibast-solutions/ms-go-skywatch/app/apierror"
	httpdto "github.com/vibast-solutions/ms-go-skywatch/app/dto/http"
	"github.com/vibast-solutions/ms-go-skywatch/app/middleware"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// APIKeyController manages the caller's keys. Routes are JWT protected.
type APIKeyController struct {
	apiKeyService service.APIKeyService
}

func NewAPIKeyController(apiKeyService service.APIKeyService) *APIKeyController {
	return &APIKeyController{apiKeyService: apiKeyService}
}

func (c *APIKeyController) List(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return apierror.Write(ctx, apierror.Authentication("Could not validate credentials"))
	}

	keys, err := c.apiKeyService.List(ctx.Request().Context(), userID, false)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("List api keys failed")
		return apierror.Write(ctx, apierror.Internal(err))
	}

	return ctx.JSON(http.StatusOK, httpdto.NewAPIKeyListResponse(keys))
}

func (c *APIKeyController) Create(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return apierror.Write(ctx, apierror.Authentication("Could not validate credentials"))
	}

	req, err := types.NewCreateAPIKeyRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind create api key request")
		return apierror.Write(ctx, apierror.BadRequest("invalid request body"))
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("user_id", userID).Debug("Create api key validation failed")
		return apierror.Write(ctx, apierror.Validation(err.Error()))
	}

	issued, err := c.apiKeyService.Create(ctx.Request().Context(), userID, req.Name, req.Tier)
	if err != nil {
		var limitErr *service.KeyLimitError
		switch {
		case errors.As(err, &limitErr):
			logrus.WithField("user_id", userID).Warn("Create api key failed: key limit reached")
			return apierror.Write(ctx, apierror.BadRequest(fmt.Sprintf("Maximum number of API keys reached (%d)", limitErr.Max)))
		case errors.Is(err, service.ErrInvalidTier), errors.Is(err, service.ErrAPIKeyNameEmpty):
			return apierror.Write(ctx, apierror.Validation(err.Error()))
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Create api key failed")
		return apierror.Write(ctx, apierror.Internal(err))
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"api_key_id": issued.Key.ID,
		"tier":       issued.Key.Tier,
	}).Info("API key created")

	return ctx.JSON(http.StatusCreated, httpdto.NewAPIKeyCreateResponse(issued))
}

func (c *APIKeyController) Regenerate(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return apierror.Write(ctx, apierror.Authentication("Could not validate credentials"))
	}

	req, err := types.NewAPIKeyIDRequestFromContext(ctx)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		return apierror.Write(ctx, apierror.Validation("id must be a positive integer"))
	}

	issued, err := c.apiKeyService.Regenerate(ctx.Request().Context(), userID, req.ID)
	if err != nil {
		if errors.Is(err, service.ErrAPIKeyNotFound) {
			return apierror.Write(ctx, apierror.NotFound("API key", req.ID))
		}
		logrus.WithError(err).WithField("api_key_id", req.ID).Error("Regenerate api key failed")
		return apierror.Write(ctx, apierror.Internal(err))
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"api_key_id": issued.Key.ID,
	}).Info("API key regenerated")

	return ctx.JSON(http.StatusOK, httpdto.NewAPIKeyCreateResponse(issued))
}

func (c *APIKeyController) Delete(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return apierror.Write(ctx, apierror.Authentication("Could not validate credentials"))
	}

	req, err := types.NewAPIKeyIDRequestFromContext(ctx)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		return apierror.Write(ctx, apierror.Validation("id must be a positive integer"))
	}

	if err = c.apiKeyService.Deactivate(ctx.Request().Context(), userID, req.ID); err != nil {
		if errors.Is(err, service.ErrAPIKeyNotFound) {
			return apierror.Write(ctx, apierror.NotFound("API key", req.ID))
		}
		logrus.WithError(err).WithField("api_key_id", req.ID).Error("Deactivate api key failed")
		return apierror.Write(ctx, apierror.Internal(err))
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"api_key_id": req.ID,
	}).Info("API key deactivated")

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "API key deactivated successfully"})
}
