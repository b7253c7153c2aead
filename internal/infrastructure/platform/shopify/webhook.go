package shopify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform/signature"
	"store-sync-engine/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

const (
	headerHmac      = "X-Shopify-Hmac-Sha256"
	headerTopic     = "X-Shopify-Topic"
	headerWebhookID = "X-Shopify-Webhook-Id"
	headerEventID   = "X-Shopify-Event-Id"
)

// WebhookCodec verifies and decodes Shopify webhook deliveries, signed with
// base64(HMAC-SHA256(body, secret)) in X-Shopify-Hmac-Sha256
type WebhookCodec struct{}

var _ ports.WebhookCodec = WebhookCodec{}

// Platform implements ports.WebhookCodec
func (WebhookCodec) Platform() domain.PlatformType {
	return domain.PlatformShopify
}

// Verify implements ports.WebhookCodec
func (WebhookCodec) Verify(header http.Header, body []byte, secret domain.Secret) error {
	if !signature.VerifyBase64(body, secret.Reveal(), header.Get(headerHmac)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// Decode implements ports.WebhookCodec. Topics look like "products/update".
func (WebhookCodec) Decode(header http.Header, body []byte) (*domain.WebhookEvent, error) {
	event := &domain.WebhookEvent{
		Platform: domain.PlatformShopify,
		Topic:    header.Get(headerTopic),
		ID:       header.Get(headerWebhookID),
	}
	if event.ID == "" {
		event.ID = header.Get(headerEventID)
	}
	if event.ID == "" {
		event.ID = signature.BodyID(body)
	}

	resource, action, ok := strings.Cut(event.Topic, "/")
	if !ok {
		return nil, fmt.Errorf("unrecognized webhook topic %q", event.Topic)
	}
	event.Action = domain.ActionUpsert
	if action == "delete" {
		event.Action = domain.ActionDelete
	}

	switch resource {
	case "products":
		var p goshopify.Product
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, domain.MappingError("decode webhook", "malformed product payload")
		}
		event.Domain = domain.DomainProducts
		if p.Id != 0 {
			event.ExternalID = formatID(p.Id)
		}
		if event.Action == domain.ActionUpsert {
			rp := toRemoteProduct(p)
			rp.Raw = payload(body)
			event.Product = &rp
		}
	case "orders":
		var o goshopify.Order
		if err := json.Unmarshal(body, &o); err != nil {
			return nil, domain.MappingError("decode webhook", "malformed order payload")
		}
		event.Domain = domain.DomainOrders
		if o.Id != 0 {
			event.ExternalID = formatID(o.Id)
		}
		if event.Action == domain.ActionUpsert {
			ro := toRemoteOrder(o)
			ro.Raw = payload(body)
			if action == "cancelled" {
				ro.Status = domain.OrderStatusCancelled
			}
			event.Order = &ro
		}
	case "customers":
		var cu goshopify.Customer
		if err := json.Unmarshal(body, &cu); err != nil {
			return nil, domain.MappingError("decode webhook", "malformed customer payload")
		}
		event.Domain = domain.DomainCustomers
		if cu.Id != 0 {
			event.ExternalID = formatID(cu.Id)
		}
		if event.Action == domain.ActionUpsert {
			rc := toRemoteCustomer(cu)
			rc.Raw = payload(body)
			event.Customer = &rc
		}
	default:
		return nil, fmt.Errorf("unrecognized webhook topic %q", event.Topic)
	}

	if event.ExternalID == "" {
		return nil, domain.MappingError("decode webhook", "payload has no record id")
	}
	return event, nil
}

// payload copies the verified body so the record keeps the exact remote JSON
func payload(body []byte) json.RawMessage {
	return append(json.RawMessage(nil), body...)
}

// Topics implements ports.WebhookCodec
func (WebhookCodec) Topics(domains []domain.SyncDomain) []string {
	var topics []string
	for _, d := range domains {
		switch d {
		case domain.DomainProducts:
			topics = append(topics, "products/create", "products/update", "products/delete")
		case domain.DomainOrders:
			topics = append(topics, "orders/create", "orders/updated", "orders/cancelled", "orders/delete")
		case domain.DomainCustomers:
			topics = append(topics, "customers/create", "customers/update", "customers/delete")
		}
	}
	return topics
}
