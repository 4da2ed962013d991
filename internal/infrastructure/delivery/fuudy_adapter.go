package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
)

const defaultFuudyBaseURL = "https://api.fuudy.co/partner/v1"

// FuudyConfig holds the environment-level settings of the Fuudy adapter
type FuudyConfig struct {
	BaseURL string
}

// FuudyAdapter integrates with the Fuudy partner API. Requests authenticate
// with a static API key and restaurant header; webhooks carry an HMAC-SHA256
// signature in hex and can additionally be pinned to credential-stored source
// IP ranges. Fuudy's webhook delivery is best-effort, so tenants typically
// run it with the polling fallback enabled.
type FuudyAdapter struct {
	baseAdapter
	config FuudyConfig
}

// NewFuudyAdapter creates an unbound Fuudy adapter
func NewFuudyAdapter(config FuudyConfig, deps Dependencies) *FuudyAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultFuudyBaseURL
	}
	a := &FuudyAdapter{
		baseAdapter: newBaseAdapter(integration.PlatformCodeFuudy, deps),
		config:      config,
	}
	a.extraIPRanges = func(creds *integration.PlatformCredentials) []string {
		if creds.Fuudy == nil {
			return nil
		}
		return creds.Fuudy.IPAllowlist
	}
	return a
}

// ============================================================================
// Wire types
// ============================================================================

type fuudyWebhookEvent struct {
	Type  string      `json:"type"`
	Order *fuudyOrder `json:"data"`
}

type fuudyOrder struct {
	ID            string      `json:"id"`
	DisplayID     string      `json:"display_id"`
	Status        string      `json:"status"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	Address       string      `json:"address"`
	Note          string      `json:"note"`
	Items         []fuudyItem `json:"items"`
	Subtotal      string      `json:"subtotal"`
	DeliveryFee   string      `json:"delivery_fee"`
	Discount      string      `json:"discount"`
	Total         string      `json:"total"`
	PaymentMethod string      `json:"payment_method"`
	IsPaid        bool        `json:"is_paid"`
	CreatedAt     int64       `json:"created_at"`
}

type fuudyItem struct {
	ProductID string        `json:"product_id"`
	Name      string        `json:"name"`
	Quantity  int           `json:"quantity"`
	UnitPrice string        `json:"unit_price"`
	Total     string        `json:"total"`
	Note      string        `json:"note"`
	Options   []fuudyOption `json:"options"`
}

type fuudyOption struct {
	OptionID string `json:"option_id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
}

type fuudyOrdersResponse struct {
	Orders []fuudyOrder `json:"orders"`
}

type fuudyRestaurantInfo struct {
	IsOpen bool   `json:"is_open"`
	Reason string `json:"reason"`
}

// ============================================================================
// Status mapping
// ============================================================================

func mapFuudyStatus(raw string) integration.PlatformOrderStatus {
	switch raw {
	case "pending":
		return integration.OrderStatusReceived
	case "confirmed":
		return integration.OrderStatusAccepted
	case "rejected":
		return integration.OrderStatusRejected
	case "preparing":
		return integration.OrderStatusPreparing
	case "ready":
		return integration.OrderStatusReady
	case "courier_pickup":
		return integration.OrderStatusPickedUp
	case "completed":
		return integration.OrderStatusDelivered
	case "cancelled":
		return integration.OrderStatusCancelled
	default:
		return integration.OrderStatusReceived
	}
}

func mapToFuudyStatus(status integration.PlatformOrderStatus) (string, bool) {
	switch status {
	case integration.OrderStatusPreparing:
		return "preparing", true
	case integration.OrderStatusReady:
		return "ready", true
	case integration.OrderStatusPickedUp:
		return "courier_pickup", true
	case integration.OrderStatusDelivered:
		return "completed", true
	default:
		return "", false
	}
}

// ============================================================================
// Request plumbing
// ============================================================================

func (a *FuudyAdapter) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
	creds, err := a.credentials()
	if err != nil {
		return nil, err
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", integration.ErrAPIRequest, err)
		}
	}
	headers := map[string]string{
		"X-Api-Key":       creds.Fuudy.APIKey,
		"X-Restaurant-Id": creds.Fuudy.RestaurantID,
	}
	return a.doRequest(ctx, method, a.config.BaseURL+path, headers, body)
}

// ============================================================================
// Orders
// ============================================================================

// TestConnection reads the restaurant record to prove the API key works
func (a *FuudyAdapter) TestConnection(ctx context.Context) (*integration.ConnectionTestResult, error) {
	if err := a.boundCheck(); err != nil {
		return nil, err
	}
	return timeConnection(func() error {
		_, err := a.call(ctx, http.MethodGet, "/restaurant", nil)
		return err
	}), nil
}

// AcceptOrder confirms the order with an estimated preparation time
func (a *FuudyAdapter) AcceptOrder(ctx context.Context, platformOrderID string, estimatedPrepTime int) (*integration.OrderAcceptResult, error) {
	payload := map[string]any{"prep_minutes": estimatedPrepTime}
	_, err := a.call(ctx, http.MethodPost, "/orders/"+platformOrderID+"/confirm", payload)
	if err != nil {
		if isConflict(err) {
			return &integration.OrderAcceptResult{
				Success: true,
				Message: "order already accepted",
			}, nil
		}
		return nil, err
	}
	return &integration.OrderAcceptResult{
		Success:           true,
		EstimatedPrepTime: estimatedPrepTime,
	}, nil
}

// RejectOrder declines the order with the mandatory reason
func (a *FuudyAdapter) RejectOrder(ctx context.Context, platformOrderID, reason string) (*integration.OrderRejectResult, error) {
	if reason == "" {
		return nil, integration.ErrRejectReasonRequired
	}
	payload := map[string]any{"reason": reason}
	if _, err := a.call(ctx, http.MethodPost, "/orders/"+platformOrderID+"/reject", payload); err != nil {
		return nil, err
	}
	return &integration.OrderRejectResult{Success: true}, nil
}

// UpdateOrderStatus pushes a lifecycle transition in Fuudy vocabulary
func (a *FuudyAdapter) UpdateOrderStatus(ctx context.Context, platformOrderID string, status integration.PlatformOrderStatus) (*integration.OrderStatusUpdateResult, error) {
	raw, ok := mapToFuudyStatus(status)
	if !ok {
		return &integration.OrderStatusUpdateResult{
			Success:   true,
			NewStatus: status,
			Message:   "status not pushable to platform",
		}, nil
	}
	payload := map[string]any{"status": raw}
	if _, err := a.call(ctx, http.MethodPut, "/orders/"+platformOrderID+"/status", payload); err != nil {
		return nil, err
	}
	return &integration.OrderStatusUpdateResult{
		Success:   true,
		NewStatus: status,
	}, nil
}

// GetOrderStatus reads the platform's raw status string
func (a *FuudyAdapter) GetOrderStatus(ctx context.Context, platformOrderID string) (string, error) {
	body, err := a.call(ctx, http.MethodGet, "/orders/"+platformOrderID, nil)
	if err != nil {
		return "", err
	}
	var order fuudyOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}
	return order.Status, nil
}

// FetchNewOrders pulls orders created since the given time. This is the
// primary ingestion path for Fuudy tenants.
func (a *FuudyAdapter) FetchNewOrders(ctx context.Context, since time.Time) ([]integration.PlatformOrder, error) {
	path := "/orders?created_after=" + strconv.FormatInt(since.Unix(), 10)
	body, err := a.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var page fuudyOrdersResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}

	orders := make([]integration.PlatformOrder, 0, len(page.Orders))
	for i := range page.Orders {
		order, err := a.convertOrder(&page.Orders[i])
		if err != nil {
			a.deps.Logger.Warn("skipping unconvertible polled order",
				zap.String("platform", a.platform.String()),
				zap.String("platform_order_id", page.Orders[i].ID),
				zap.Error(err),
			)
			continue
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// ============================================================================
// Webhooks
// ============================================================================

// ParseWebhookPayload decodes a verified webhook body
func (a *FuudyAdapter) ParseWebhookPayload(payload []byte) (*integration.PlatformOrder, error) {
	var event fuudyWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrInvalidWebhookPayload, err)
	}

	switch event.Type {
	case "ping":
		return nil, nil
	case "order.created", "order.updated", "order.cancelled":
		if event.Order == nil {
			return nil, fmt.Errorf("%w: event %s without order", integration.ErrInvalidWebhookPayload, event.Type)
		}
		return a.convertOrder(event.Order)
	default:
		// Lifecycle events we do not model are acknowledged, not rejected
		return nil, nil
	}
}

func (a *FuudyAdapter) convertOrder(src *fuudyOrder) (*integration.PlatformOrder, error) {
	if src.ID == "" {
		return nil, fmt.Errorf("%w: missing order id", integration.ErrInvalidWebhookPayload)
	}

	parseAmount := func(s string) decimal.Decimal {
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
		return decimal.Zero
	}

	items := make([]integration.PlatformOrderItem, 0, len(src.Items))
	for _, item := range src.Items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}

		modifiers := make([]integration.PlatformOrderModifier, 0, len(item.Options))
		for _, option := range item.Options {
			modifiers = append(modifiers, integration.PlatformOrderModifier{
				PlatformModifierID: option.OptionID,
				Name:               option.Name,
				Price:              parseAmount(option.Price),
				Quantity:           1,
			})
		}

		items = append(items, integration.PlatformOrderItem{
			PlatformProductID: item.ProductID,
			Name:              item.Name,
			Quantity:          qty,
			UnitPrice:         parseAmount(item.UnitPrice),
			TotalPrice:        parseAmount(item.Total),
			Note:              item.Note,
			Modifiers:         modifiers,
		})
	}

	placedAt := time.Now()
	if src.CreatedAt > 0 {
		placedAt = time.Unix(src.CreatedAt, 0)
	}

	raw := map[string]any{}
	if encoded, err := json.Marshal(src); err == nil {
		_ = json.Unmarshal(encoded, &raw)
	}

	order := &integration.PlatformOrder{
		PlatformOrderID:     src.ID,
		PlatformOrderNumber: src.DisplayID,
		Platform:            integration.PlatformCodeFuudy,
		Status:              mapFuudyStatus(src.Status),
		RawStatus:           src.Status,
		CustomerName:        src.CustomerName,
		CustomerPhone:       src.CustomerPhone,
		DeliveryAddress:     src.Address,
		DeliveryNotes:       src.Note,
		Items:               items,
		Subtotal:            parseAmount(src.Subtotal),
		DeliveryFee:         parseAmount(src.DeliveryFee),
		Discount:            parseAmount(src.Discount),
		Total:               parseAmount(src.Total),
		IsPrepaid:           src.IsPaid,
		PaymentMethod:       src.PaymentMethod,
		PlacedAt:            placedAt,
		RawData:             raw,
	}
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrInvalidWebhookPayload, err)
	}
	return order, nil
}

// ============================================================================
// Menu sync
// ============================================================================

// SyncMenu pushes the menu product by product
func (a *FuudyAdapter) SyncMenu(ctx context.Context, products []integration.ProductSync, categories []integration.CategorySync) (*integration.MenuSyncResult, error) {
	if err := a.boundCheck(); err != nil {
		return nil, err
	}

	categoryIDs := make(map[string]string, len(categories))
	for _, cat := range categories {
		categoryIDs[cat.LocalCategoryID.String()] = cat.PlatformCategoryID
	}

	result := &integration.MenuSyncResult{}
	for _, product := range products {
		optionGroups := make([]map[string]any, 0, len(product.ModifierGroups))
		for _, group := range product.ModifierGroups {
			options := make([]map[string]any, 0, len(group.Modifiers))
			for _, modifier := range group.Modifiers {
				options = append(options, map[string]any{
					"option_id": modifier.PlatformModifierID,
					"name":      modifier.Name,
					"price":     modifier.Price.StringFixed(2),
					"available": modifier.IsAvailable,
				})
			}
			entry := map[string]any{
				"group_id": group.PlatformGroupID,
				"name":     group.Name,
				"min":      group.MinSelections,
				"required": group.IsRequired,
				"options":  options,
			}
			if group.MaxSelections != nil {
				entry["max"] = *group.MaxSelections
			}
			optionGroups = append(optionGroups, entry)
		}

		payload := map[string]any{
			"product_id":    product.PlatformProductID,
			"name":          product.Name,
			"description":   product.Description,
			"price":         product.Price.StringFixed(2),
			"available":     product.IsAvailable,
			"image_url":     product.ImageURL,
			"category_id":   categoryIDs[product.CategoryID.String()],
			"option_groups": optionGroups,
		}

		if _, err := a.call(ctx, http.MethodPut, "/menu/products", payload); err != nil {
			result.AddProductFailure(product.LocalProductID, err.Error())
			continue
		}
		result.SyncedProducts++
		result.SyncedModifiers += len(product.ModifierGroups)
	}
	result.Resolve()
	return result, nil
}

// SyncProductAvailability toggles a single product
func (a *FuudyAdapter) SyncProductAvailability(ctx context.Context, platformProductID string, isAvailable bool) error {
	payload := map[string]any{"available": isAvailable}
	_, err := a.call(ctx, http.MethodPatch, "/menu/products/"+platformProductID, payload)
	return err
}

// SyncProductPrice updates a single product price
func (a *FuudyAdapter) SyncProductPrice(ctx context.Context, platformProductID string, price decimal.Decimal) error {
	payload := map[string]any{"price": price.StringFixed(2)}
	_, err := a.call(ctx, http.MethodPatch, "/menu/products/"+platformProductID, payload)
	return err
}

// ============================================================================
// Restaurant status
// ============================================================================

// SetRestaurantOpen resumes accepting orders
func (a *FuudyAdapter) SetRestaurantOpen(ctx context.Context) error {
	_, err := a.call(ctx, http.MethodPost, "/restaurant/open", nil)
	return err
}

// SetRestaurantClosed pauses the restaurant with an optional reason
func (a *FuudyAdapter) SetRestaurantClosed(ctx context.Context, reason string) error {
	var payload any
	if reason != "" {
		payload = map[string]any{"reason": reason}
	}
	_, err := a.call(ctx, http.MethodPost, "/restaurant/close", payload)
	return err
}

// GetRestaurantStatus reads the restaurant availability
func (a *FuudyAdapter) GetRestaurantStatus(ctx context.Context) (*integration.RestaurantStatus, error) {
	body, err := a.call(ctx, http.MethodGet, "/restaurant", nil)
	if err != nil {
		return nil, err
	}
	var info fuudyRestaurantInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}
	return &integration.RestaurantStatus{
		IsOpen:       info.IsOpen,
		ClosedReason: info.Reason,
	}, nil
}

var _ integration.DeliveryPlatform = (*FuudyAdapter)(nil)
