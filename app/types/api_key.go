package types

import (
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-skywatch/app/tier"

	"github.com/labstack/echo/v4"
)

type CreateAPIKeyRequest struct {
	Name string `json:"name"`
	Tier string `json:"tier"`
}

func NewCreateAPIKeyRequestFromContext(ctx echo.Context) (*CreateAPIKeyRequest, error) {
	var body CreateAPIKeyRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *CreateAPIKeyRequest) Validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" || len(name) > maxNameLength {
		return errors.New("name must be between 1 and 100 characters")
	}
	if r.Tier == "" {
		r.Tier = tier.Free
	}
	r.Tier = strings.ToLower(strings.TrimSpace(r.Tier))

	return tier.Validate(r.Tier)
}

type APIKeyIDRequest struct {
	ID uint64
}

func NewAPIKeyIDRequestFromContext(ctx echo.Context) (*APIKeyIDRequest, error) {
	var req APIKeyIDRequest
	if err := echo.PathParamsBinder(ctx).Uint64("id", &req.ID).BindError(); err != nil {
		return nil, err
	}

	return &req, nil
}

func (r *APIKeyIDRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("id must be a positive integer")
	}

	return nil
}
