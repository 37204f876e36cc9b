// Package cache holds the short-lived key stores shared by event handlers:
// an in-process map for single instance deployments and Redis for the rest.
package cache
