package entity

import (
	"database/sql"
	"time"
)

type Usage struct {
	ID             uint64
	APIKeyID       uint64
	Endpoint       string
	Method         string
	ResponseStatus int
	ResponseTimeMS int64
	UserAgent      sql.NullString
	IPAddress      sql.NullString
	Timestamp      time.Time
}

type EndpointCount struct {
	Endpoint string
	Count    int64
}
