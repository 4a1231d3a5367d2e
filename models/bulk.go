package models

import (
	"fmt"
	"strings"
)

// BulkKind, toplu işlem türü.
type BulkKind string

const (
	BulkCreate BulkKind = "create"
	BulkUpdate BulkKind = "update"
	BulkDelete BulkKind = "delete"
)

// BulkItem, toplu işlemin tek bir elemanı.
//
//   - create: Create dolu, ID boş
//   - update: ID + Update dolu
//   - delete: sadece ID (soft delete)
type BulkItem struct {
	ID     string             `json:"id,omitempty"`
	Create *CreateUserRequest `json:"create,omitempty"`
	Update *UpdateUserRequest `json:"update,omitempty"`
}

// Key, sonuçta ve batch içi tekrar kontrolünde kullanılan kimlik.
// Create için henüz ID olmadığından username kullanılır.
func (i BulkItem) Key() string {
	if i.ID != "" {
		return i.ID
	}
	if i.Create != nil {
		return strings.ToLower(strings.TrimSpace(i.Create.Username))
	}
	return ""
}

// BulkFailure, başarısız bir elemanın kimliği ve sebebi.
type BulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkOperationResult, toplu işlemin sonucu. Kalıcı değildir.
//
// Succeeded, create için yeni oluşan kullanıcı ID'lerini; update/delete için
// işlenen ID'leri caller sırasıyla taşır.
type BulkOperationResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// BulkRequest, admin bulk endpoint'inin body'si.
type BulkRequest struct {
	Kind  BulkKind   `json:"kind"`
	Items []BulkItem `json:"items"`
}

// MaxBulkItems, tek istekte kabul edilen eleman sayısı.
const MaxBulkItems = 500

func (r *BulkRequest) Validate() error {
	switch r.Kind {
	case BulkCreate, BulkUpdate, BulkDelete:
	default:
		return fmt.Errorf("unknown bulk kind %q", r.Kind)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("items must not be empty")
	}
	if len(r.Items) > MaxBulkItems {
		return fmt.Errorf("at most %d items per request", MaxBulkItems)
	}
	return nil
}
