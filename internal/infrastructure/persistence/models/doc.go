// Package models contains GORM persistence models that map to database tables.
// Domain entities stay free of GORM tags; each model carries its own
// ToDomain / FromDomain mappers used by the repositories.
//
// Structure:
// - base.go: shared columns
// - identity.go: users
// - form.go: forms and form_fields
// - submission.go: form_submissions, form_field_values and files
// - notification.go: notification_channels
package models
