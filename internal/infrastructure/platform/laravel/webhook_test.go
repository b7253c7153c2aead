package laravel

import (
	"net/http"
	"testing"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform/signature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookCodec_Verify(t *testing.T) {
	body := []byte(`{"event":"product.updated","data":{"id":1}}`)
	secret := domain.Secret("lv-secret")

	tests := []struct {
		name    string
		header  http.Header
		wantErr bool
	}{
		{"hex signature", http.Header{headerSignature: {signature.Hex(body, "lv-secret")}}, false},
		{"prefixed hex signature", http.Header{headerSignature: {"sha256=" + signature.Hex(body, "lv-secret")}}, false},
		{"wrong signature", http.Header{headerSignature: {signature.Hex(body, "nope")}}, true},
		// A bad signature is not rescued by a correct shared secret
		{"bad signature with secret", http.Header{headerSignature: {"00"}, headerSecret: {"lv-secret"}}, true},
		{"shared secret", http.Header{headerSecret: {"lv-secret"}}, false},
		{"wrong shared secret", http.Header{headerSecret: {"lv-secre"}}, true},
		{"no headers", http.Header{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WebhookCodec{}.Verify(tt.header, body, secret)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidSignature)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWebhookCodec_VerifyEmptySecret(t *testing.T) {
	body := []byte(`{}`)
	err := WebhookCodec{}.Verify(http.Header{headerSecret: {""}}, body, "")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestWebhookCodec_Decode(t *testing.T) {
	tests := []struct {
		name       string
		header     http.Header
		body       string
		wantID     string
		wantDomain domain.SyncDomain
		wantAction domain.WebhookAction
		wantExtID  string
	}{
		{
			name:       "product update",
			body:       `{"event":"product.updated","event_id":"e-1","data":{"id":4,"sku":"LV-4","name":"Lamp","price":"20.00","stock":2}}`,
			wantID:     "e-1",
			wantDomain: domain.DomainProducts,
			wantAction: domain.ActionUpsert,
			wantExtID:  "4",
		},
		{
			name:       "stock update with numeric id",
			body:       `{"event":"stock.updated","id":77,"data":{"product_id":4,"quantity":9}}`,
			wantID:     "77",
			wantDomain: domain.DomainInventory,
			wantAction: domain.ActionUpsert,
			wantExtID:  "4",
		},
		{
			name:       "event from header",
			header:     http.Header{headerEvent: {"order.deleted"}},
			body:       `{"event_id":"e-3","data":{"id":"A-9"}}`,
			wantID:     "e-3",
			wantDomain: domain.DomainOrders,
			wantAction: domain.ActionDelete,
			wantExtID:  "A-9",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == nil {
				header = http.Header{}
			}
			event, err := WebhookCodec{}.Decode(header, []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, event.ID)
			assert.Equal(t, tt.wantDomain, event.Domain)
			assert.Equal(t, tt.wantAction, event.Action)
			assert.Equal(t, tt.wantExtID, event.ExternalID)
		})
	}
}

func TestWebhookCodec_DecodeStockPayload(t *testing.T) {
	event, err := WebhookCodec{}.Decode(http.Header{}, []byte(`{"event":"stock.updated","data":{"product_id":4,"sku":"LV-4","quantity":9}}`))
	require.NoError(t, err)
	require.NotNil(t, event.Stock)
	assert.Equal(t, 9, event.Stock.Quantity)
	assert.Equal(t, "LV-4", event.Stock.SKU)
}

func TestWebhookCodec_DecodeRejects(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"event":"product.updated"}`,
		`{"event":"invoice.paid","data":{"id":1}}`,
		`{"event":"customer.updated","data":{"email":"a@example.com"}}`,
	} {
		_, err := WebhookCodec{}.Decode(http.Header{}, []byte(body))
		assert.Error(t, err, body)
	}
}

func TestWebhookCodec_Topics(t *testing.T) {
	topics := WebhookCodec{}.Topics([]domain.SyncDomain{domain.DomainInventory})
	assert.Equal(t, []string{"stock.updated"}, topics)
}
