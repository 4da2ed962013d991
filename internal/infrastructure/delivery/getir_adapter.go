package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
)

const defaultGetirBaseURL = "https://food-external.getir.com/v1"

// Getir order status codes as used by the food API
const (
	getirStatusNew       = 400
	getirStatusVerified  = 500
	getirStatusPreparing = 550
	getirStatusPrepared  = 600
	getirStatusOnTheWay  = 700
	getirStatusDelivered = 900
	getirStatusCancelled = 1000
	getirStatusRejected  = 1100
)

// GetirConfig holds the environment-level settings of the Getir adapter
type GetirConfig struct {
	BaseURL string
}

// GetirAdapter integrates with the GetirYemek external API. Requests
// authenticate with a static API key and restaurant header; webhooks carry an
// HMAC-SHA512 signature in hex. Getir expresses money in kuruş, so every
// amount crosses the boundary divided or multiplied by 100.
type GetirAdapter struct {
	baseAdapter
	config GetirConfig
}

// NewGetirAdapter creates an unbound Getir adapter
func NewGetirAdapter(config GetirConfig, deps Dependencies) *GetirAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultGetirBaseURL
	}
	return &GetirAdapter{
		baseAdapter: newBaseAdapter(integration.PlatformCodeGetir, deps),
		config:      config,
	}
}

// ============================================================================
// Wire types
// ============================================================================

type getirWebhookEvent struct {
	Event string      `json:"event"`
	Order *getirOrder `json:"foodOrder"`
}

type getirOrder struct {
	ID                string         `json:"id"`
	ConfirmationID    string         `json:"confirmationId"`
	Status            int            `json:"status"`
	Client            getirClient    `json:"client"`
	Products          []getirProduct `json:"products"`
	TotalPrice        int64          `json:"totalPrice"`
	DeliveryPrice     int64          `json:"deliveryPrice"`
	DiscountedAmount  int64          `json:"discountedAmount"`
	ClientNote        string         `json:"clientNote"`
	PaymentMethodText string         `json:"paymentMethodText"`
	IsScheduled       bool           `json:"isScheduled"`
	CheckoutDate      string         `json:"checkoutDate"`
}

type getirClient struct {
	Name            string `json:"name"`
	ContactPhone    string `json:"contactPhoneNumber"`
	DeliveryAddress string `json:"deliveryAddress"`
	District        string `json:"district"`
	City            string `json:"city"`
}

type getirProduct struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Count      int                `json:"count"`
	Price      int64              `json:"price"`
	TotalPrice int64              `json:"totalPrice"`
	Note       string             `json:"note"`
	Options    []getirOptionGroup `json:"optionCategories"`
}

type getirOptionGroup struct {
	Name    string        `json:"name"`
	Options []getirOption `json:"options"`
}

type getirOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type getirOrdersResponse struct {
	FoodOrders []getirOrder `json:"foodOrders"`
}

type getirRestaurantInfo struct {
	Status       string `json:"status"`
	ClosedReason string `json:"closedReason"`
}

// ============================================================================
// Money conversion
// ============================================================================

// kurusToDecimal converts Getir minor units to a currency amount
func kurusToDecimal(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

// decimalToKurus converts a currency amount to Getir minor units
func decimalToKurus(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// ============================================================================
// Status mapping
// ============================================================================

func mapGetirStatus(raw int) integration.PlatformOrderStatus {
	switch raw {
	case getirStatusNew:
		return integration.OrderStatusReceived
	case getirStatusVerified:
		return integration.OrderStatusAccepted
	case getirStatusPreparing:
		return integration.OrderStatusPreparing
	case getirStatusPrepared:
		return integration.OrderStatusReady
	case getirStatusOnTheWay:
		return integration.OrderStatusPickedUp
	case getirStatusDelivered:
		return integration.OrderStatusDelivered
	case getirStatusCancelled:
		return integration.OrderStatusCancelled
	case getirStatusRejected:
		return integration.OrderStatusRejected
	default:
		return integration.OrderStatusReceived
	}
}

func mapToGetirStatus(status integration.PlatformOrderStatus) (int, bool) {
	switch status {
	case integration.OrderStatusPreparing:
		return getirStatusPreparing, true
	case integration.OrderStatusReady:
		return getirStatusPrepared, true
	case integration.OrderStatusPickedUp:
		return getirStatusOnTheWay, true
	case integration.OrderStatusDelivered:
		return getirStatusDelivered, true
	default:
		return 0, false
	}
}

// ============================================================================
// Request plumbing
// ============================================================================

func (a *GetirAdapter) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
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
		"X-Api-Key":       creds.Getir.APIKey,
		"X-Restaurant-Id": creds.Getir.RestaurantID,
	}
	return a.doRequest(ctx, method, a.config.BaseURL+path, headers, body)
}

// ============================================================================
// Orders
// ============================================================================

// TestConnection reads the restaurant record to prove the API key works
func (a *GetirAdapter) TestConnection(ctx context.Context) (*integration.ConnectionTestResult, error) {
	if err := a.boundCheck(); err != nil {
		return nil, err
	}
	return timeConnection(func() error {
		_, err := a.call(ctx, http.MethodGet, "/restaurants/status", nil)
		return err
	}), nil
}

// AcceptOrder verifies the order on Getir. Getir expects the verify call
// within its acceptance window; the estimated prep time rides along.
func (a *GetirAdapter) AcceptOrder(ctx context.Context, platformOrderID string, estimatedPrepTime int) (*integration.OrderAcceptResult, error) {
	payload := map[string]any{"preparationTime": estimatedPrepTime}
	_, err := a.call(ctx, http.MethodPost, "/food-orders/"+platformOrderID+"/verify", payload)
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

// RejectOrder cancels the incoming order with the mandatory reason
func (a *GetirAdapter) RejectOrder(ctx context.Context, platformOrderID, reason string) (*integration.OrderRejectResult, error) {
	if reason == "" {
		return nil, integration.ErrRejectReasonRequired
	}
	payload := map[string]any{"cancelNote": reason, "cancelReasonId": "RESTAURANT_REJECTED"}
	if _, err := a.call(ctx, http.MethodPost, "/food-orders/"+platformOrderID+"/cancel", payload); err != nil {
		return nil, err
	}
	return &integration.OrderRejectResult{Success: true}, nil
}

// UpdateOrderStatus pushes a lifecycle transition as a Getir status code
func (a *GetirAdapter) UpdateOrderStatus(ctx context.Context, platformOrderID string, status integration.PlatformOrderStatus) (*integration.OrderStatusUpdateResult, error) {
	code, ok := mapToGetirStatus(status)
	if !ok {
		return &integration.OrderStatusUpdateResult{
			Success:   true,
			NewStatus: status,
			Message:   "status not pushable to platform",
		}, nil
	}
	payload := map[string]any{"status": code}
	if _, err := a.call(ctx, http.MethodPost, "/food-orders/"+platformOrderID+"/status", payload); err != nil {
		return nil, err
	}
	return &integration.OrderStatusUpdateResult{
		Success:   true,
		NewStatus: status,
	}, nil
}

// GetOrderStatus reads the platform's raw status code as a string
func (a *GetirAdapter) GetOrderStatus(ctx context.Context, platformOrderID string) (string, error) {
	body, err := a.call(ctx, http.MethodGet, "/food-orders/"+platformOrderID, nil)
	if err != nil {
		return "", err
	}
	var order getirOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}
	return fmt.Sprintf("%d", order.Status), nil
}

// FetchNewOrders pulls active orders; Getir's listing endpoint has no time
// filter, so the window is applied client-side on the checkout date.
func (a *GetirAdapter) FetchNewOrders(ctx context.Context, since time.Time) ([]integration.PlatformOrder, error) {
	body, err := a.call(ctx, http.MethodGet, "/food-orders/active", nil)
	if err != nil {
		return nil, err
	}

	var page getirOrdersResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}

	orders := make([]integration.PlatformOrder, 0, len(page.FoodOrders))
	for i := range page.FoodOrders {
		order, err := a.convertOrder(&page.FoodOrders[i])
		if err != nil {
			a.deps.Logger.Warn("skipping unconvertible polled order",
				zap.String("platform", a.platform.String()),
				zap.String("platform_order_id", page.FoodOrders[i].ID),
				zap.Error(err),
			)
			continue
		}
		if order.PlacedAt.Before(since) {
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
func (a *GetirAdapter) ParseWebhookPayload(payload []byte) (*integration.PlatformOrder, error) {
	var event getirWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrInvalidWebhookPayload, err)
	}

	switch event.Event {
	case "ping":
		return nil, nil
	case "newOrder", "orderStatusChanged", "orderCancelled":
		if event.Order == nil {
			return nil, fmt.Errorf("%w: event %s without order", integration.ErrInvalidWebhookPayload, event.Event)
		}
		return a.convertOrder(event.Order)
	default:
		// Lifecycle events we do not model are acknowledged, not rejected
		return nil, nil
	}
}

func (a *GetirAdapter) convertOrder(src *getirOrder) (*integration.PlatformOrder, error) {
	if src.ID == "" {
		return nil, fmt.Errorf("%w: missing order id", integration.ErrInvalidWebhookPayload)
	}

	items := make([]integration.PlatformOrderItem, 0, len(src.Products))
	subtotal := decimal.Zero
	for _, product := range src.Products {
		qty := product.Count
		if qty <= 0 {
			qty = 1
		}

		var modifiers []integration.PlatformOrderModifier
		for _, group := range product.Options {
			for _, option := range group.Options {
				modifiers = append(modifiers, integration.PlatformOrderModifier{
					PlatformModifierID: option.ID,
					Name:               group.Name + ": " + option.Name,
					Price:              kurusToDecimal(option.Price),
					Quantity:           1,
				})
			}
		}

		lineTotal := kurusToDecimal(product.TotalPrice)
		if product.TotalPrice == 0 {
			lineTotal = kurusToDecimal(product.Price).Mul(decimal.NewFromInt(int64(qty)))
		}
		subtotal = subtotal.Add(lineTotal)
		items = append(items, integration.PlatformOrderItem{
			PlatformProductID: product.ID,
			Name:              product.Name,
			Quantity:          qty,
			UnitPrice:         kurusToDecimal(product.Price),
			TotalPrice:        lineTotal,
			Note:              product.Note,
			Modifiers:         modifiers,
		})
	}

	placedAt := time.Now()
	if src.CheckoutDate != "" {
		if t, err := time.Parse(time.RFC3339, src.CheckoutDate); err == nil {
			placedAt = t
		}
	}

	address := src.Client.DeliveryAddress
	if src.Client.District != "" {
		address += ", " + src.Client.District
	}
	if src.Client.City != "" {
		address += ", " + src.Client.City
	}

	raw := map[string]any{}
	if encoded, err := json.Marshal(src); err == nil {
		_ = json.Unmarshal(encoded, &raw)
	}

	order := &integration.PlatformOrder{
		PlatformOrderID:     src.ID,
		PlatformOrderNumber: src.ConfirmationID,
		Platform:            integration.PlatformCodeGetir,
		Status:              mapGetirStatus(src.Status),
		RawStatus:           fmt.Sprintf("%d", src.Status),
		CustomerName:        src.Client.Name,
		CustomerPhone:       src.Client.ContactPhone,
		DeliveryAddress:     address,
		DeliveryNotes:       src.ClientNote,
		Items:               items,
		Subtotal:            subtotal,
		DeliveryFee:         kurusToDecimal(src.DeliveryPrice),
		Discount:            kurusToDecimal(src.DiscountedAmount),
		Total:               kurusToDecimal(src.TotalPrice),
		IsPrepaid:           true,
		PaymentMethod:       src.PaymentMethodText,
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

// SyncMenu pushes the catalog product by product in kuruş
func (a *GetirAdapter) SyncMenu(ctx context.Context, products []integration.ProductSync, categories []integration.CategorySync) (*integration.MenuSyncResult, error) {
	if err := a.boundCheck(); err != nil {
		return nil, err
	}

	categoryIDs := make(map[string]string, len(categories))
	for _, cat := range categories {
		categoryIDs[cat.LocalCategoryID.String()] = cat.PlatformCategoryID
	}

	result := &integration.MenuSyncResult{}
	for _, product := range products {
		optionCategories := make([]map[string]any, 0, len(product.ModifierGroups))
		for _, group := range product.ModifierGroups {
			options := make([]map[string]any, 0, len(group.Modifiers))
			for _, modifier := range group.Modifiers {
				options = append(options, map[string]any{
					"id":     modifier.PlatformModifierID,
					"name":   modifier.Name,
					"price":  decimalToKurus(modifier.Price),
					"status": getirProductStatus(modifier.IsAvailable),
				})
			}
			entry := map[string]any{
				"id":       group.PlatformGroupID,
				"name":     group.Name,
				"minCount": group.MinSelections,
				"options":  options,
			}
			if group.MaxSelections != nil {
				entry["maxCount"] = *group.MaxSelections
			}
			optionCategories = append(optionCategories, entry)
		}

		payload := map[string]any{
			"id":               product.PlatformProductID,
			"name":             product.Name,
			"description":      product.Description,
			"price":            decimalToKurus(product.Price),
			"status":           getirProductStatus(product.IsAvailable),
			"imageURL":         product.ImageURL,
			"categoryId":       categoryIDs[product.CategoryID.String()],
			"optionCategories": optionCategories,
		}

		if _, err := a.call(ctx, http.MethodPut, "/products", payload); err != nil {
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
func (a *GetirAdapter) SyncProductAvailability(ctx context.Context, platformProductID string, isAvailable bool) error {
	payload := map[string]any{"status": getirProductStatus(isAvailable)}
	_, err := a.call(ctx, http.MethodPut, "/products/"+platformProductID+"/status", payload)
	return err
}

// SyncProductPrice updates a single product price in kuruş
func (a *GetirAdapter) SyncProductPrice(ctx context.Context, platformProductID string, price decimal.Decimal) error {
	payload := map[string]any{"price": decimalToKurus(price)}
	_, err := a.call(ctx, http.MethodPut, "/products/"+platformProductID+"/price", payload)
	return err
}

func getirProductStatus(available bool) int {
	// 100 active, 200 passive in Getir's product vocabulary
	if available {
		return 100
	}
	return 200
}

// ============================================================================
// Restaurant status
// ============================================================================

// SetRestaurantOpen resumes accepting orders
func (a *GetirAdapter) SetRestaurantOpen(ctx context.Context) error {
	_, err := a.call(ctx, http.MethodPut, "/restaurants/status", map[string]any{"status": "OPEN"})
	return err
}

// SetRestaurantClosed pauses the restaurant
func (a *GetirAdapter) SetRestaurantClosed(ctx context.Context, reason string) error {
	payload := map[string]any{"status": "CLOSED"}
	if reason != "" {
		payload["closedReason"] = reason
	}
	_, err := a.call(ctx, http.MethodPut, "/restaurants/status", payload)
	return err
}

// GetRestaurantStatus reads the restaurant availability
func (a *GetirAdapter) GetRestaurantStatus(ctx context.Context) (*integration.RestaurantStatus, error) {
	body, err := a.call(ctx, http.MethodGet, "/restaurants/status", nil)
	if err != nil {
		return nil, err
	}
	var info getirRestaurantInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}
	return &integration.RestaurantStatus{
		IsOpen:       info.Status == "OPEN",
		ClosedReason: info.ClosedReason,
	}, nil
}

var _ integration.DeliveryPlatform = (*GetirAdapter)(nil)
