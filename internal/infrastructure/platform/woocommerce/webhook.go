package woocommerce

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform/signature"
	"store-sync-engine/internal/ports"
)

const (
	headerSignature  = "X-WC-Webhook-Signature"
	headerTopic      = "X-WC-Webhook-Topic"
	headerDeliveryID = "X-WC-Webhook-Delivery-ID"
)

// WebhookCodec verifies and decodes WooCommerce webhook deliveries. Deliveries are
// signed with base64(HMAC-SHA256(body, secret)) in X-WC-Webhook-Signature.
type WebhookCodec struct{}

var (
	_ ports.WebhookCodec = WebhookCodec{}
	_ ports.PingDetector = WebhookCodec{}
)

// Platform implements ports.WebhookCodec
func (WebhookCodec) Platform() domain.PlatformType {
	return domain.PlatformWooCommerce
}

// Verify implements ports.WebhookCodec
func (WebhookCodec) Verify(header http.Header, body []byte, secret domain.Secret) error {
	if !signature.VerifyBase64(body, secret.Reveal(), header.Get(headerSignature)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// IsPing implements ports.PingDetector. Saving a webhook in WooCommerce sends an
// unsigned form-encoded body without a topic.
func (WebhookCodec) IsPing(header http.Header, body []byte) bool {
	return header.Get(headerTopic) == "" && bytes.HasPrefix(bytes.TrimSpace(body), []byte("webhook_id="))
}

// Decode implements ports.WebhookCodec. Topics look like "product.updated".
func (WebhookCodec) Decode(header http.Header, body []byte) (*domain.WebhookEvent, error) {
	event := &domain.WebhookEvent{
		Platform: domain.PlatformWooCommerce,
		Topic:    header.Get(headerTopic),
		ID:       header.Get(headerDeliveryID),
	}
	if event.ID == "" {
		event.ID = signature.BodyID(body)
	}

	if (WebhookCodec{}).IsPing(header, body) {
		event.Ping = true
		return event, nil
	}

	resource, action, ok := strings.Cut(event.Topic, ".")
	if !ok {
		return nil, fmt.Errorf("unrecognized webhook topic %q", event.Topic)
	}

	event.Action = domain.ActionUpsert
	if action == "deleted" {
		event.Action = domain.ActionDelete
	}

	switch resource {
	case "product":
		event.Domain = domain.DomainProducts
		p := toRemoteProduct(body)
		event.ExternalID = p.ExternalID
		event.Product = &p
	case "order":
		event.Domain = domain.DomainOrders
		o := toRemoteOrder(body)
		event.ExternalID = o.ExternalID
		event.Order = &o
	case "customer":
		event.Domain = domain.DomainCustomers
		cu := toRemoteCustomer(body)
		event.ExternalID = cu.ExternalID
		event.Customer = &cu
	default:
		return nil, fmt.Errorf("unrecognized webhook topic %q", event.Topic)
	}

	if event.ExternalID == "" {
		return nil, domain.MappingError("decode webhook", "payload has no record id")
	}
	if event.Action == domain.ActionDelete {
		event.Product, event.Order, event.Customer = nil, nil, nil
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
		case domain.DomainOrders:
			topics = append(topics, "order.created", "order.updated", "order.deleted")
		case domain.DomainCustomers:
			topics = append(topics, "customer.created", "customer.updated", "customer.deleted")
		}
	}
	return topics
}
