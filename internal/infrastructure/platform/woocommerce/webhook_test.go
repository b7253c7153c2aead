package woocommerce

import (
	"net/http"
	"testing"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform/signature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wcHeader(topic, delivery, sig string) http.Header {
	h := http.Header{}
	if topic != "" {
		h.Set(headerTopic, topic)
	}
	if delivery != "" {
		h.Set(headerDeliveryID, delivery)
	}
	if sig != "" {
		h.Set(headerSignature, sig)
	}
	return h
}

// ---------------------------------------------------------------------------
// Verify
// ---------------------------------------------------------------------------

func TestWebhookCodec_Verify(t *testing.T) {
	body := []byte(`{"id":15,"name":"Mug"}`)
	secret := domain.Secret("whsec")

	tests := []struct {
		name    string
		sig     string
		secret  domain.Secret
		wantErr bool
	}{
		{"valid signature", signature.Base64(body, "whsec"), secret, false},
		{"signed with another secret", signature.Base64(body, "other"), secret, true},
		{"missing header", "", secret, true},
		{"garbage header", "not-base64!!", secret, true},
		{"store has no secret", signature.Base64(body, ""), "", true},
	}

	codec := WebhookCodec{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := codec.Verify(wcHeader("product.updated", "", tt.sig), body, tt.secret)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidSignature)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWebhookCodec_VerifyTamperedBody(t *testing.T) {
	sig := signature.Base64([]byte(`{"id":15}`), "whsec")
	err := WebhookCodec{}.Verify(wcHeader("product.updated", "", sig), []byte(`{"id":16}`), "whsec")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

// ---------------------------------------------------------------------------
// Decode
// ---------------------------------------------------------------------------

func TestWebhookCodec_DecodeProductUpdated(t *testing.T) {
	body := []byte(`{"id":15,"sku":"MUG-1","name":"Mug","regular_price":"9.50","stock_quantity":4}`)

	event, err := WebhookCodec{}.Decode(wcHeader("product.updated", "d-1", ""), body)
	require.NoError(t, err)

	assert.Equal(t, "d-1", event.ID)
	assert.Equal(t, domain.PlatformWooCommerce, event.Platform)
	assert.Equal(t, domain.DomainProducts, event.Domain)
	assert.Equal(t, domain.ActionUpsert, event.Action)
	assert.Equal(t, "15", event.ExternalID)
	require.NotNil(t, event.Product)
	assert.Equal(t, "MUG-1", event.Product.SKU)
	assert.Equal(t, 4, event.Product.Stock)
	assert.Equal(t, "9.5", event.Product.Price.String())
}

func TestWebhookCodec_DecodeOrderDeleted(t *testing.T) {
	event, err := WebhookCodec{}.Decode(wcHeader("order.deleted", "d-2", ""), []byte(`{"id":"901"}`))
	require.NoError(t, err)

	assert.Equal(t, domain.DomainOrders, event.Domain)
	assert.Equal(t, domain.ActionDelete, event.Action)
	assert.Equal(t, "901", event.ExternalID)
	assert.Nil(t, event.Order)
}

func TestWebhookCodec_DecodeCustomerCreated(t *testing.T) {
	body := []byte(`{"id":7,"email":"","first_name":"Ana","billing":{"email":"ana@example.com","phone":"555"}}`)

	event, err := WebhookCodec{}.Decode(wcHeader("customer.created", "d-3", ""), body)
	require.NoError(t, err)

	require.NotNil(t, event.Customer)
	assert.Equal(t, "ana@example.com", event.Customer.Email)
	assert.Equal(t, "555", event.Customer.Phone)
}

func TestWebhookCodec_DecodePing(t *testing.T) {
	event, err := WebhookCodec{}.Decode(http.Header{}, []byte("webhook_id=42"))
	require.NoError(t, err)

	assert.True(t, event.Ping)
	assert.NotEmpty(t, event.ID)
}

func TestWebhookCodec_IsPing(t *testing.T) {
	codec := WebhookCodec{}

	assert.True(t, codec.IsPing(http.Header{}, []byte("webhook_id=42")))
	assert.True(t, codec.IsPing(http.Header{}, []byte("  webhook_id=42&x=1")))
	assert.False(t, codec.IsPing(wcHeader("product.updated", "", ""), []byte("webhook_id=42")))
	assert.False(t, codec.IsPing(http.Header{}, []byte(`{"id":42}`)))
}

func TestWebhookCodec_DecodeFallsBackToBodyID(t *testing.T) {
	body := []byte(`{"id":15}`)

	first, err := WebhookCodec{}.Decode(wcHeader("product.created", "", ""), body)
	require.NoError(t, err)
	second, err := WebhookCodec{}.Decode(wcHeader("product.created", "", ""), body)
	require.NoError(t, err)

	assert.Equal(t, signature.BodyID(body), first.ID)
	assert.Equal(t, first.ID, second.ID)
}

func TestWebhookCodec_DecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		body  string
	}{
		{"unknown resource", "coupon.updated", `{"id":1}`},
		{"topic without action", "product", `{"id":1}`},
		{"missing record id", "product.updated", `{"name":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WebhookCodec{}.Decode(wcHeader(tt.topic, "d", ""), []byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestWebhookCodec_Topics(t *testing.T) {
	topics := WebhookCodec{}.Topics([]domain.SyncDomain{domain.DomainProducts, domain.DomainInventory})
	assert.Equal(t, []string{"product.created", "product.updated", "product.deleted"}, topics)
}
