package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vibast-solutions/ms-go-skywatch/app/apierror"
	httpdto "github.com/vibast-solutions/ms-go-skywatch/app/dto/http"
	"github.com/vibast-solutions/ms-go-skywatch/app/middleware"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type UserAuthController struct {
	userAuthService service.UserAuthService
}

func NewUserAuthController(userAuthService service.UserAuthService) *UserAuthController {
	return &UserAuthController{userAuthService: userAuthService}
}

func (c *UserAuthController) Register(ctx echo.Context) error {
	req, err := types.NewRegisterRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind register request")
		return apierror.Write(ctx, apierror.BadRequest("invalid request body"))
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Register validation failed")
		return apierror.Write(ctx, apierror.Validation(err.Error()))
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	user, err := c.userAuthService.Register(ctx.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			logrus.WithField("email", req.Email).Warn("Register failed: user already exists")
			return apierror.Write(ctx, apierror.BadRequest("Email already registered"))
		}
		if errors.Is(err, service.ErrWeakPassword) {
			logrus.WithField("email", req.Email).Warn("Register failed: weak password")
			return apierror.Write(ctx, apierror.Validation(strings.TrimPrefix(err.Error(), service.ErrWeakPassword.Error()+": ")))
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Register failed")
		return apierror.Write(ctx, apierror.Internal(err))
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User registered")

	return ctx.JSON(http.StatusCreated, httpdto.NewUserResponse(user))
}

func (c *UserAuthController) Login(ctx echo.Context) error {
	req, err := types.NewLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return apierror.Write(ctx, apierror.BadRequest("invalid request body"))
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Login validation failed")
		return apierror.Write(ctx, apierror.Validation(err.Error()))
	}

	result, err := c.userAuthService.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			logrus.WithField("email", req.Email).Warn("Login failed: invalid credentials")
			ctx.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			return apierror.Write(ctx, apierror.Authentication("Incorrect email or password"))
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Login failed")
		return apierror.Write(ctx, apierror.Internal(err))
	}

	logrus.WithField("email", req.Email).Info("Login successful")
	return ctx.JSON(http.StatusOK, httpdto.TokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   result.ExpiresIn,
	})
}

func (c *UserAuthController) Me(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		logrus.Warn("Me failed: missing user_id in context")
		return apierror.Write(ctx, apierror.Authentication("Could not validate credentials"))
	}

	user, err := c.userAuthService.FindByID(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return apierror.Write(ctx, apierror.Authentication("Could not validate credentials"))
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Me failed")
		return apierror.Write(ctx, apierror.Internal(err))
	}
	if !user.IsActive {
		return apierror.Write(ctx, apierror.Authentication("Inactive user"))
	}

	return ctx.JSON(http.StatusOK, httpdto.NewUserResponse(user))
}
