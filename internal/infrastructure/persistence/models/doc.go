// Package models contains GORM persistence models for the supply ledger tables.
// Domain types in internal/domain/supply carry no ORM tags; each model here has
// ToDomain and FromDomain mappers used by the repositories.
package models
