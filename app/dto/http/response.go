package http

import (
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/dto"
	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
	"github.com/vibast-solutions/ms-go-skywatch/app/tier"
)

type UserResponse struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUserResponse(user *entity.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// APIKeyResponse describes a key without its secret.
type APIKeyResponse struct {
	ID              uint64     `json:"id"`
	Name            string     `json:"name"`
	KeyPrefix       string     `json:"key_prefix"`
	Tier            string     `json:"tier"`
	HourlyRateLimit int        `json:"hourly_rate_limit"`
	QuotaLimit      int64      `json:"quota_limit"`
	QuotaUsed       int64      `json:"quota_used"`
	QuotaResetDate  time.Time  `json:"quota_reset_date"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	LastUsed        *time.Time `json:"last_used"`
}

func NewAPIKeyResponse(key *entity.APIKey) APIKeyResponse {
	resp := APIKeyResponse{
		ID:              key.ID,
		Name:            key.Name,
		KeyPrefix:       key.KeyPrefix,
		Tier:            key.Tier,
		HourlyRateLimit: tier.HourlyRateLimit(key.Tier),
		QuotaLimit:      key.QuotaLimit,
		QuotaUsed:       key.QuotaUsed,
		QuotaResetDate:  key.QuotaResetDate,
		IsActive:        key.IsActive,
		CreatedAt:       key.CreatedAt,
	}
	if key.LastUsed.Valid {
		lastUsed := key.LastUsed.Time
		resp.LastUsed = &lastUsed
	}
	return resp
}

func NewAPIKeyListResponse(keys []*entity.APIKey) []APIKeyResponse {
	out := make([]APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, NewAPIKeyResponse(key))
	}
	return out
}

// APIKeyCreateResponse is the only response that carries a plaintext key.
type APIKeyCreateResponse struct {
	APIKey  string         `json:"api_key"`
	KeyInfo APIKeyResponse `json:"key_info"`
	Message string         `json:"message"`
}

func NewAPIKeyCreateResponse(issued *dto.IssuedAPIKey) APIKeyCreateResponse {
	return APIKeyCreateResponse{
		APIKey:  issued.PlainKey,
		KeyInfo: NewAPIKeyResponse(issued.Key),
		Message: "Store this key securely. It will not be shown again.",
	}
}

type EndpointCountResponse struct {
	Endpoint string `json:"endpoint"`
	Count    int64  `json:"count"`
}

type UsageStatsResponse struct {
	TotalRequests     int64                   `json:"total_requests"`
	RequestsThisMonth int64                   `json:"requests_this_month"`
	QuotaLimit        int64                   `json:"quota_limit"`
	QuotaUsed         int64                   `json:"quota_used"`
	QuotaRemaining    int64                   `json:"quota_remaining"`
	QuotaResetDate    time.Time               `json:"quota_reset_date"`
	MostUsedEndpoints []EndpointCountResponse `json:"most_used_endpoints"`
}

func NewUsageStatsResponse(stats *dto.UsageStats) UsageStatsResponse {
	endpoints := make([]EndpointCountResponse, 0, len(stats.MostUsedEndpoints))
	for _, e := range stats.MostUsedEndpoints {
		endpoints = append(endpoints, EndpointCountResponse{Endpoint: e.Endpoint, Count: e.Count})
	}
	return UsageStatsResponse{
		TotalRequests:     stats.TotalRequests,
		RequestsThisMonth: stats.RequestsThisMonth,
		QuotaLimit:        stats.QuotaLimit,
		QuotaUsed:         stats.QuotaUsed,
		QuotaRemaining:    stats.QuotaRemaining,
		QuotaResetDate:    stats.QuotaResetDate,
		MostUsedEndpoints: endpoints,
	}
}

type UsageRecordResponse struct {
	ID             uint64    `json:"id"`
	Endpoint       string    `json:"endpoint"`
	Method         string    `json:"method"`
	ResponseStatus int       `json:"response_status"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewUsageHistoryResponse(records []*entity.Usage) []UsageRecordResponse {
	out := make([]UsageRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, UsageRecordResponse{
			ID:             r.ID,
			Endpoint:       r.Endpoint,
			Method:         r.Method,
			ResponseStatus: r.ResponseStatus,
			ResponseTimeMS: r.ResponseTimeMS,
			Timestamp:      r.Timestamp,
		})
	}
	return out
}

type SightingResponse struct {
	ID        uint64    `json:"id"`
	DateTime  time.Time `json:"date_time"`
	City      string    `json:"city"`
	State     *string   `json:"state"`
	Shape     string    `json:"shape"`
	Duration  string    `json:"duration"`
	Summary   string    `json:"summary"`
	Text      string    `json:"text"`
	Posted    time.Time `json:"posted"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
}

func NewSightingResponse(s *entity.Sighting) SightingResponse {
	resp := SightingResponse{
		ID:       s.ID,
		DateTime: s.DateTime,
		City:     s.City,
		Shape:    s.Shape,
		Duration: s.Duration,
		Summary:  s.Summary,
		Text:     s.Text,
		Posted:   s.Posted,
	}
	if s.State.Valid {
		state := s.State.String
		resp.State = &state
	}
	if s.Latitude.Valid {
		lat := s.Latitude.Float64
		resp.Latitude = &lat
	}
	if s.Longitude.Valid {
		lon := s.Longitude.Float64
		resp.Longitude = &lon
	}
	return resp
}

type SightingListResponse struct {
	Sightings []SightingResponse `json:"sightings"`
	Total     int64              `json:"total"`
	Page      int                `json:"page"`
	PerPage   int                `json:"per_page"`
	Pages     int                `json:"pages"`
}

func NewSightingListResponse(page *dto.SightingPage) SightingListResponse {
	sightings := make([]SightingResponse, 0, len(page.Sightings))
	for _, s := range page.Sightings {
		sightings = append(sightings, NewSightingResponse(s))
	}
	return SightingListResponse{
		Sightings: sightings,
		Total:     page.Total,
		Page:      page.Page,
		PerPage:   page.PerPage,
		Pages:     page.Pages,
	}
}

type ShapeCountResponse struct {
	Shape string `json:"shape"`
	Count int64  `json:"count"`
}

type ShapeStatsResponse struct {
	Shapes []ShapeCountResponse `json:"shapes"`
	Total  int64                `json:"total"`
}

func NewShapeStatsResponse(counts []entity.ShapeCount) ShapeStatsResponse {
	resp := ShapeStatsResponse{Shapes: make([]ShapeCountResponse, 0, len(counts))}
	for _, c := range counts {
		resp.Shapes = append(resp.Shapes, ShapeCountResponse{Shape: c.Shape, Count: c.Count})
		resp.Total += c.Count
	}
	return resp
}

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
