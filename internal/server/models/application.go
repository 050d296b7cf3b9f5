// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/dmitrijs2005/recdocs/internal/models"
)

// Application is the document store record of one protocol application.
// It exclusively owns its DocumentsMeta.
type Application struct {
	// Code is the application's public identifier.
	Code string
	// Status is the current revision state.
	Status string
	// Version is bumped on every documents commit.
	Version int64
	// DocumentsMeta is nil until the first archive has been committed.
	DocumentsMeta *models.DocumentsMeta
	UpdatedAt     time.Time
}
