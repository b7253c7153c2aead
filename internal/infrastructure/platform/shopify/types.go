package shopify

import (
	"encoding/json"
	"strconv"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform/transport"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/shopspring/decimal"
)

// pageOptions is sent as the query string of list calls. Shopify rejects any
// filter next to page_info, so only Limit and PageInfo are set on cursor pages.
type pageOptions struct {
	Limit    int    `url:"limit,omitempty"`
	PageInfo string `url:"page_info,omitempty"`
	Status   string `url:"status,omitempty"`
}

// rawOrders is an orders list page with each order left as sent
type rawOrders struct {
	Orders []json.RawMessage `json:"orders"`
}

type levelOptions struct {
	InventoryItemIDs string `url:"inventory_item_ids"`
	LocationIDs      string `url:"location_ids"`
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func parseID(op, externalID string) (uint64, error) {
	id, err := strconv.ParseUint(externalID, 10, 64)
	if err != nil || id == 0 {
		return 0, domain.MappingError(op, "external id is not a Shopify id")
	}
	return id, nil
}

// toRemoteOrderJSON maps one order and keeps data as its payload
func toRemoteOrderJSON(data json.RawMessage) domain.RemoteOrder {
	var o goshopify.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return domain.RemoteOrder{ExternalID: transport.ProbeID(data), Raw: data, Problem: "malformed order record"}
	}
	ro := toRemoteOrder(o)
	ro.Raw = data
	return ro
}

func raw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// toRemoteProduct maps a Shopify product onto its first variant, which carries
// the SKU, barcode, price and inventory item
func toRemoteProduct(p goshopify.Product) domain.RemoteProduct {
	rp := domain.RemoteProduct{
		ExternalID:  formatID(p.Id),
		Name:        p.Title,
		Description: p.BodyHTML,
		Status:      string(p.Status),
		Raw:         raw(p),
	}
	if len(p.Variants) == 0 {
		rp.Problem = "product has no variants"
		return rp
	}
	v := p.Variants[0]
	rp.SKU = v.Sku
	rp.Barcode = v.Barcode
	rp.Stock = v.InventoryQuantity
	if v.Price != nil {
		rp.Price = *v.Price
	}
	return rp
}

func fromRemoteProduct(p domain.RemoteProduct) goshopify.Product {
	price := p.Price
	return goshopify.Product{
		Title:    p.Name,
		BodyHTML: p.Description,
		Variants: []goshopify.Variant{{
			Sku:     p.SKU,
			Barcode: p.Barcode,
			Price:   &price,
		}},
	}
}

func toRemoteOrder(o goshopify.Order) domain.RemoteOrder {
	ro := domain.RemoteOrder{
		ExternalID: formatID(o.Id),
		Number:     o.Name,
		Status:     string(o.FinancialStatus),
		Currency:   o.Currency,
		Raw:        raw(o),
	}
	if o.CancelledAt != nil {
		ro.Status = domain.OrderStatusCancelled
	}
	if o.CreatedAt != nil {
		ro.CreatedAt = o.CreatedAt.UTC()
	}
	ro.CustomerEmail = o.Email
	if ro.CustomerEmail == "" && o.Customer != nil {
		ro.CustomerEmail = o.Customer.Email
	}

	if o.TotalPrice == nil {
		ro.Problem = "order has no total"
		return ro
	}
	ro.Total = *o.TotalPrice
	ro.Tax = zeroIfNil(o.TotalTax)
	if o.SubtotalPrice != nil {
		ro.Subtotal = *o.SubtotalPrice
	} else {
		ro.Subtotal = ro.Total.Sub(ro.Tax)
	}
	return ro
}

func toRemoteCustomer(c goshopify.Customer) domain.RemoteCustomer {
	return domain.RemoteCustomer{
		ExternalID: formatID(c.Id),
		Email:      c.Email,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Phone:      c.Phone,
		Raw:        raw(c),
	}
}

func fromRemoteCustomer(c domain.RemoteCustomer) goshopify.Customer {
	return goshopify.Customer{
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
	}
}

func zeroIfNil(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
