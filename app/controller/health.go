package controller

import (
	"net/http"
	"sort"
	"time"

	httpdto "github.com/vibast-solutions/ms-go-skywatch/app/dto/http"

	"github.com/labstack/echo/v4"
)

const Version = "1.0.0"

type HealthController struct {
	routes func() []*echo.Route
}

// NewHealthController takes the route lister used by Docs, normally
// (*echo.Echo).Routes.
func NewHealthController(routes func() []*echo.Route) *HealthController {
	return &HealthController{routes: routes}
}

func (c *HealthController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, httpdto.HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *HealthController) Landing(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"name":    "SkyWatch API",
		"version": Version,
		"docs":    "/docs",
		"health":  "/health",
	})
}

type routeInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Docs lists the registered routes.
func (c *HealthController) Docs(ctx echo.Context) error {
	var routes []routeInfo
	if c.routes != nil {
		for _, r := range c.routes() {
			routes = append(routes, routeInfo{Method: r.Method, Path: r.Path})
		}
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"name":    "SkyWatch API",
		"version": Version,
		"routes":  routes,
	})
}
