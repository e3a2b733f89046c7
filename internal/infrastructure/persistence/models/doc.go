// Package models contains the GORM persistence models for the CRM tables.
//
// Each model maps one registry entity. Parents carry has-many collection
// fields that own the foreign key constraint and its ON DELETE action;
// children carry belongs-to back-reference fields. Verify checks that the
// models agree with a schema.Registry so the two declarations cannot drift.
package models
