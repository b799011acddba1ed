package handler

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/internal/api/response"
	"github.com/rentdesk/rentdesk/internal/store"
	"github.com/rentdesk/rentdesk/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	apiKeyPrefix    = "rd_"
	apiKeyRandBytes = 20
	keyPrefixLen    = 8
)

var defaultKeyScopes = []string{"read", "write"}

type createKeyRequest struct {
	Name   string   `json:"name"   validate:"required,max=100"`
	Scopes []string `json:"scopes" validate:"omitempty,dive,oneof=read write admin"`
}

type createKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	KeyPrefix string    `json:"key_prefix"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateAPIKey returns a new raw key and its bcrypt hash.
func GenerateAPIKey() (raw, hash string, err error) {
	buf := make([]byte, apiKeyRandBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	raw = apiKeyPrefix + hex.EncodeToString(buf)
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash api key: %w", err)
	}
	return raw, string(h), nil
}

// NewAPIKey builds a key record for companyID and returns it with the raw
// key. Empty scopes default to read and write.
func NewAPIKey(companyID uuid.UUID, name string, scopes []string) (*models.APIKey, string, error) {
	if len(scopes) == 0 {
		scopes = defaultKeyScopes
	}
	raw, hash, err := GenerateAPIKey()
	if err != nil {
		return nil, "", err
	}
	now := time.Now().UTC()
	return &models.APIKey{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      name,
		KeyHash:   hash,
		KeyPrefix: raw[:keyPrefixLen],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}, raw, nil
}

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/v1/admin/keys.
// The raw key is only ever returned here.
func NewCreateKeyHandler(ks store.APIKeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		var req createKeyRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		key, raw, err := NewAPIKey(cid, req.Name, req.Scopes)
		if err != nil {
			writeStoreError(w, r, err, "API key")
			return
		}
		if err := ks.CreateAPIKey(r.Context(), key); err != nil {
			writeStoreError(w, r, err, "API key")
			return
		}

		response.Created(w, createKeyResponse{
			ID:        key.ID,
			Name:      key.Name,
			Key:       raw,
			KeyPrefix: key.KeyPrefix,
			Scopes:    key.Scopes,
			CreatedAt: key.CreatedAt,
		})
	}
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/admin/keys.
// Hashes are never serialized.
func NewListKeysHandler(ks store.APIKeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		keys, err := ks.ListAPIKeys(r.Context(), cid)
		if err != nil {
			writeStoreError(w, r, err, "API key")
			return
		}
		response.JSON(w, nonNil(keys))
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for
// DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(ks store.APIKeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "keyID")
		if !ok {
			return
		}
		if err := ks.RevokeAPIKey(r.Context(), id, cid); err != nil {
			writeStoreError(w, r, err, "API key")
			return
		}
		response.NoContent(w)
	}
}
