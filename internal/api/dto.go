package api

import (
	"github.com/starford/backlinker/internal/index"
	"github.com/starford/backlinker/internal/models"
	"github.com/starford/backlinker/internal/noteservice"
)

// DocumentListResponse wraps document listings.
type DocumentListResponse struct {
	Documents []index.DocumentRow `json:"documents" validate:"required"`
	Total     int                 `json:"total" example:"42" validate:"required"`
}

// BacklinksResponse is the "mentioned by" list of one document (aliased from the domain layer).
type BacklinksResponse = noteservice.BacklinksDetail

// ConflictsResponse wraps permalink collisions.
type ConflictsResponse struct {
	Conflicts []models.Conflict `json:"conflicts" validate:"required"`
}

// RunResponse is returned after a triggered run (aliased from the domain layer).
type RunResponse = noteservice.RunSummary
