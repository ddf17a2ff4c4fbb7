package types

import (
	"errors"

	"github.com/vibast-solutions/ms-go-skywatch/app/service"

	"github.com/labstack/echo/v4"
)

type UsageHistoryRequest struct {
	Limit int
}

func NewUsageHistoryRequestFromContext(ctx echo.Context) (*UsageHistoryRequest, error) {
	req := UsageHistoryRequest{Limit: service.DefaultHistoryLimit}
	if err := echo.QueryParamsBinder(ctx).Int("limit", &req.Limit).BindError(); err != nil {
		return nil, err
	}

	return &req, nil
}

func (r *UsageHistoryRequest) Validate() error {
	if r.Limit < 1 {
		return errors.New("limit must be at least 1")
	}

	return nil
}
