package applications

import "github.com/hilthontt/cheahlytics/internal/domain"

// applicationRequest creates or edits an application
type applicationRequest struct {
	RegisteredApplication struct {
		Name string `json:"name" example:"My Blog"`
		URL  string `json:"url" example:"blog.example.com"`
	} `json:"registeredApplication"`
}

// listResponse wraps the current user's applications
type listResponse[T any] struct {
	Applications []T `json:"applications"`
}

// auditResponse lists ingestion audit entries, newest first
type auditResponse struct {
	Audit []domain.IngestionAuditLog `json:"audit"`
}
