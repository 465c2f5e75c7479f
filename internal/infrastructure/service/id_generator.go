// Package service contains small infrastructure adapters behind the
// application layer's interfaces.
package service

import "github.com/google/uuid"

// UUIDGenerator implements saga.IDGenerator with random UUIDs.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a new UUIDGenerator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// GenerateID returns a new UUID string.
func (g *UUIDGenerator) GenerateID() string {
	return uuid.NewString()
}
