// Package store defines the persistence contracts used across the
// platform (pipeline job status, cron schedule claims, and the
// submission API's CRUD needs) and concrete adapters under its
// postgres subpackage.
package store

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)
