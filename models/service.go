package models

import "time"

// Status is the coarse health state of the service
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Health is returned by the health endpoint
type Health struct {
	Status Status            `json:"status"`
	Time   time.Time         `json:"time"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionInfo is returned by the version endpoint
type VersionInfo struct {
	ServiceName          string            `json:"service_name"`
	ServiceVersion       string            `json:"service_version"`
	SupportedAPIVersions []string          `json:"supported_api_versions"`
	Build                map[string]string `json:"build,omitempty"`
}

// SupportedAPIVersions lists the PDP API versions served
var SupportedAPIVersions = []string{"v1"}
