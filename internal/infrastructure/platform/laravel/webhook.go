package laravel

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform/signature"
	"store-sync-engine/internal/infrastructure/platform/transport"
	"store-sync-engine/internal/ports"
)

const (
	headerSignature = "X-Webhook-Signature"
	headerSecret    = "X-Webhook-Secret"
	headerEvent     = "X-Webhook-Event"
)

type lvWebhook struct {
	Event   string          `json:"event"`
	EventID transport.ID    `json:"event_id"`
	ID      transport.ID    `json:"id"`
	Data    json.RawMessage `json:"data"`
}

// WebhookCodec verifies and decodes partner webhooks. Partners either sign the
// body with hex(HMAC-SHA256(body, secret)) in X-Webhook-Signature or echo the
// shared secret in X-Webhook-Secret.
type WebhookCodec struct{}

var _ ports.WebhookCodec = WebhookCodec{}

// Platform implements ports.WebhookCodec
func (WebhookCodec) Platform() domain.PlatformType {
	return domain.PlatformLaravel
}

// Verify implements ports.WebhookCodec
func (WebhookCodec) Verify(header http.Header, body []byte, secret domain.Secret) error {
	if sig := header.Get(headerSignature); sig != "" {
		if signature.VerifyHex(body, secret.Reveal(), sig) {
			return nil
		}
		return domain.ErrInvalidSignature
	}
	if signature.Equal(secret.Reveal(), header.Get(headerSecret)) {
		return nil
	}
	return domain.ErrInvalidSignature
}

// Decode implements ports.WebhookCodec. Events look like "product.updated" and carry
// the record under "data".
func (WebhookCodec) Decode(header http.Header, body []byte) (*domain.WebhookEvent, error) {
	var msg lvWebhook
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, domain.MappingError("decode webhook", "malformed webhook payload")
	}

	event := &domain.WebhookEvent{
		Platform: domain.PlatformLaravel,
		Topic:    msg.Event,
		ID:       string(msg.EventID),
	}
	if event.Topic == "" {
		event.Topic = header.Get(headerEvent)
	}
	if event.ID == "" {
		event.ID = string(msg.ID)
	}
	if event.ID == "" {
		event.ID = signature.BodyID(body)
	}
	if len(msg.Data) == 0 {
		return nil, domain.MappingError("decode webhook", "payload has no data")
	}

	resource, action, ok := strings.Cut(event.Topic, ".")
	if !ok {
		return nil, fmt.Errorf("unrecognized webhook event %q", event.Topic)
	}
	event.Action = domain.ActionUpsert
	if action == "deleted" {
		event.Action = domain.ActionDelete
	}

	switch resource {
	case "product":
		event.Domain = domain.DomainProducts
		p := toRemoteProduct(msg.Data)
		event.ExternalID = p.ExternalID
		event.Product = &p
	case "stock", "inventory":
		event.Domain = domain.DomainInventory
		s := toStockItem(msg.Data)
		event.ExternalID = s.ExternalID
		event.Stock = &s
	case "order":
		event.Domain = domain.DomainOrders
		o := toRemoteOrder(msg.Data)
		event.ExternalID = o.ExternalID
		event.Order = &o
	case "customer":
		event.Domain = domain.DomainCustomers
		cu := toRemoteCustomer(msg.Data)
		event.ExternalID = cu.ExternalID
		event.Customer = &cu
	default:
		return nil, fmt.Errorf("unrecognized webhook event %q", event.Topic)
	}

	if event.ExternalID == "" {
		return nil, domain.MappingError("decode webhook", "payload has no record id")
	}
	if event.Action == domain.ActionDelete {
		event.Product, event.Order, event.Customer, event.Stock = nil, nil, nil, nil
	}
	return event, nil
}

// Topics implements ports.WebhookCodec
func (WebhookCodec) Topics(domains []domain.SyncDomain) []string {
	var topics []string
	for _, d := range domains {
		switch d {
		case domain.DomainProducts:
			topics = append(topics, "product.created", "product.updated", "product.deleted")
		case domain.DomainInventory:
			topics = append(topics, "stock.updated")
		case domain.DomainOrders:
			topics = append(topics, "order.created", "order.updated", "order.deleted")
		case domain.DomainCustomers:
			topics = append(topics, "customer.created", "customer.updated", "customer.deleted")
		}
	}
	return topics
}
