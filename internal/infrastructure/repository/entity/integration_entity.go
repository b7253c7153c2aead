package entity

import (
	"fmt"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"
)

// MongoIntegrationDoc represents the credentials of a store in MongoDB.
// Every secret is stored encrypted.
type MongoIntegrationDoc struct {
	StoreID                string    `bson:"storeId"`
	EncryptedAPIKey        string    `bson:"encryptedApiKey,omitempty"`
	EncryptedAPISecret     string    `bson:"encryptedApiSecret,omitempty"`
	EncryptedAccessToken   string    `bson:"encryptedAccessToken,omitempty"`
	EncryptedWebhookSecret string    `bson:"encryptedWebhookSecret,omitempty"`
	CreatedAt              time.Time `bson:"createdAt"`
	UpdatedAt              time.Time `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity, decrypting its secrets
func (d *MongoIntegrationDoc) ToDomain(enc ports.EncryptionService) (*domain.StoreIntegration, error) {
	integration := &domain.StoreIntegration{
		StoreID:   d.StoreID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	fields := []struct {
		name   string
		sealed string
		dst    *domain.Secret
	}{
		{"api key", d.EncryptedAPIKey, &integration.APIKey},
		{"api secret", d.EncryptedAPISecret, &integration.APISecret},
		{"access token", d.EncryptedAccessToken, &integration.AccessToken},
		{"webhook secret", d.EncryptedWebhookSecret, &integration.WebhookSecret},
	}
	for _, f := range fields {
		if f.sealed == "" {
			continue
		}
		plain, err := enc.Decrypt(f.sealed)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %s: %w", f.name, err)
		}
		*f.dst = domain.Secret(plain)
	}
	return integration, nil
}

// MongoIntegrationDocFromDomain converts a domain entity to a MongoDB document, encrypting its secrets
func MongoIntegrationDocFromDomain(integration *domain.StoreIntegration, enc ports.EncryptionService) (*MongoIntegrationDoc, error) {
	doc := &MongoIntegrationDoc{
		StoreID:   integration.StoreID,
		CreatedAt: integration.CreatedAt,
		UpdatedAt: integration.UpdatedAt,
	}
	fields := []struct {
		name   string
		secret domain.Secret
		dst    *string
	}{
		{"api key", integration.APIKey, &doc.EncryptedAPIKey},
		{"api secret", integration.APISecret, &doc.EncryptedAPISecret},
		{"access token", integration.AccessToken, &doc.EncryptedAccessToken},
		{"webhook secret", integration.WebhookSecret, &doc.EncryptedWebhookSecret},
	}
	for _, f := range fields {
		if f.secret.IsZero() {
			continue
		}
		sealed, err := enc.Encrypt(f.secret.Reveal())
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt %s: %w", f.name, err)
		}
		*f.dst = sealed
	}
	return doc, nil
}
