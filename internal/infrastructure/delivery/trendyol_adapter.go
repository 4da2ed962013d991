package delivery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
)

const defaultTrendyolBaseURL = "https://api.trendyol.com/yemek/v1"

// TrendyolConfig holds the environment-level settings of the Trendyol
// adapter. Tenant credentials come from the credential repository.
type TrendyolConfig struct {
	BaseURL string
}

// TrendyolAdapter integrates with the Trendyol Yemek partner API. Requests
// authenticate with HTTP Basic over the tenant's API key pair plus the store
// header; webhooks carry an HMAC-SHA256 signature in base64.
type TrendyolAdapter struct {
	baseAdapter
	config TrendyolConfig
}

// NewTrendyolAdapter creates an unbound Trendyol adapter
func NewTrendyolAdapter(config TrendyolConfig, deps Dependencies) *TrendyolAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultTrendyolBaseURL
	}
	return &TrendyolAdapter{
		baseAdapter: newBaseAdapter(integration.PlatformCodeTrendyol, deps),
		config:      config,
	}
}

// ============================================================================
// Wire types
// ============================================================================

type trendyolWebhookEvent struct {
	EventType string         `json:"eventType"`
	Order     *trendyolOrder `json:"order"`
}

type trendyolOrder struct {
	ID           string              `json:"id"`
	OrderNumber  string              `json:"orderNumber"`
	Status       string              `json:"status"`
	Customer     trendyolCustomer    `json:"customer"`
	Address      trendyolAddress     `json:"address"`
	Lines        []trendyolOrderLine `json:"lines"`
	TotalPrice   float64             `json:"totalPrice"`
	DeliveryFee  float64             `json:"deliveryFee"`
	Discount     float64             `json:"totalDiscount"`
	CustomerNote string              `json:"customerNote"`
	PaymentType  string              `json:"paymentType"`
	CreatedDate  int64               `json:"createdDate"`
}

type trendyolCustomer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phoneNumber"`
}

type trendyolAddress struct {
	AddressText string `json:"addressText"`
	District    string `json:"district"`
	City        string `json:"city"`
}

type trendyolOrderLine struct {
	ProductID string             `json:"productId"`
	Name      string             `json:"name"`
	Quantity  int                `json:"quantity"`
	Price     float64            `json:"price"`
	Note      string             `json:"note"`
	Modifiers []trendyolModifier `json:"modifierProducts"`
}

type trendyolModifier struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
}

type trendyolOrdersPage struct {
	Content []trendyolOrder `json:"content"`
}

type trendyolProduct struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	SellingPrice float64 `json:"sellingPrice"`
	Status       string  `json:"status"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	CategoryID   string  `json:"categoryId,omitempty"`
}

type trendyolRestaurantStatus struct {
	WorkingStatus string `json:"workingStatus"`
	ClosedReason  string `json:"closedReason"`
}

// ============================================================================
// Status mapping
// ============================================================================

func mapTrendyolStatus(raw string) integration.PlatformOrderStatus {
	switch raw {
	case "CREATED":
		return integration.OrderStatusReceived
	case "ACCEPTED":
		return integration.OrderStatusAccepted
	case "UNSUPPLIED":
		return integration.OrderStatusRejected
	case "PREPARING":
		return integration.OrderStatusPreparing
	case "READY_FOR_PICKUP":
		return integration.OrderStatusReady
	case "ON_THE_WAY":
		return integration.OrderStatusPickedUp
	case "DELIVERED":
		return integration.OrderStatusDelivered
	case "CANCELLED":
		return integration.OrderStatusCancelled
	default:
		return integration.OrderStatusReceived
	}
}

func mapToTrendyolStatus(status integration.PlatformOrderStatus) (string, bool) {
	switch status {
	case integration.OrderStatusPreparing:
		return "PREPARING", true
	case integration.OrderStatusReady:
		return "READY_FOR_PICKUP", true
	case integration.OrderStatusPickedUp:
		return "ON_THE_WAY", true
	case integration.OrderStatusDelivered:
		return "DELIVERED", true
	default:
		return "", false
	}
}

// ============================================================================
// Request plumbing
// ============================================================================

func (a *TrendyolAdapter) authHeaders(creds *integration.PlatformCredentials) map[string]string {
	t := creds.Trendyol
	token := base64.StdEncoding.EncodeToString([]byte(t.APIKey + ":" + t.APISecret))
	return map[string]string{
		"Authorization": "Basic " + token,
		"X-Store-Id":    t.StoreID,
	}
}

func (a *TrendyolAdapter) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
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
	url := fmt.Sprintf("%s/restaurants/%s%s", a.config.BaseURL, creds.Trendyol.StoreID, path)
	return a.doRequest(ctx, method, url, a.authHeaders(creds), body)
}

// ============================================================================
// Orders
// ============================================================================

// TestConnection fetches the restaurant status to prove the key pair works
func (a *TrendyolAdapter) TestConnection(ctx context.Context) (*integration.ConnectionTestResult, error) {
	if err := a.boundCheck(); err != nil {
		return nil, err
	}
	return timeConnection(func() error {
		_, err := a.call(ctx, http.MethodGet, "/status", nil)
		return err
	}), nil
}

// AcceptOrder confirms the order with the given preparation time in minutes.
// A conflict from the platform means the order was accepted before; that is
// reported as success.
func (a *TrendyolAdapter) AcceptOrder(ctx context.Context, platformOrderID string, estimatedPrepTime int) (*integration.OrderAcceptResult, error) {
	payload := map[string]any{"preparationTime": estimatedPrepTime}
	_, err := a.call(ctx, http.MethodPost, "/orders/"+platformOrderID+"/accept", payload)
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

// RejectOrder marks the order unsupplied with the mandatory reason
func (a *TrendyolAdapter) RejectOrder(ctx context.Context, platformOrderID, reason string) (*integration.OrderRejectResult, error) {
	if reason == "" {
		return nil, integration.ErrRejectReasonRequired
	}
	payload := map[string]any{"reason": reason}
	if _, err := a.call(ctx, http.MethodPost, "/orders/"+platformOrderID+"/unsupplied", payload); err != nil {
		return nil, err
	}
	return &integration.OrderRejectResult{Success: true}, nil
}

// UpdateOrderStatus pushes a local lifecycle transition to Trendyol.
// Transitions the platform has no vocabulary for are acknowledged without a
// network call.
func (a *TrendyolAdapter) UpdateOrderStatus(ctx context.Context, platformOrderID string, status integration.PlatformOrderStatus) (*integration.OrderStatusUpdateResult, error) {
	raw, ok := mapToTrendyolStatus(status)
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

// GetOrderStatus reads the platform's raw status string for diagnostics
func (a *TrendyolAdapter) GetOrderStatus(ctx context.Context, platformOrderID string) (string, error) {
	body, err := a.call(ctx, http.MethodGet, "/orders/"+platformOrderID, nil)
	if err != nil {
		return "", err
	}
	var order trendyolOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}
	return order.Status, nil
}

// FetchNewOrders pulls orders created since the given time. Used by the
// polling fallback when webhooks are degraded.
func (a *TrendyolAdapter) FetchNewOrders(ctx context.Context, since time.Time) ([]integration.PlatformOrder, error) {
	path := fmt.Sprintf("/orders?createdStartDate=%d&size=100", since.UnixMilli())
	body, err := a.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var page trendyolOrdersPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}

	orders := make([]integration.PlatformOrder, 0, len(page.Content))
	for i := range page.Content {
		order, err := a.convertOrder(&page.Content[i])
		if err != nil {
			a.deps.Logger.Warn("skipping unconvertible polled order",
				zap.String("platform", a.platform.String()),
				zap.String("platform_order_id", page.Content[i].ID),
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

// ParseWebhookPayload decodes a verified webhook body. Ping and unmodeled
// lifecycle events return (nil, nil) so the caller acknowledges them
// without creating an order.
func (a *TrendyolAdapter) ParseWebhookPayload(payload []byte) (*integration.PlatformOrder, error) {
	var event trendyolWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrInvalidWebhookPayload, err)
	}

	switch event.EventType {
	case "PING", "TEST":
		return nil, nil
	case "ORDER_CREATED", "ORDER_STATUS_CHANGED", "ORDER_CANCELLED":
		if event.Order == nil {
			return nil, fmt.Errorf("%w: event %s without order", integration.ErrInvalidWebhookPayload, event.EventType)
		}
		return a.convertOrder(event.Order)
	default:
		// Lifecycle events we do not model are acknowledged, not rejected
		return nil, nil
	}
}

func (a *TrendyolAdapter) convertOrder(src *trendyolOrder) (*integration.PlatformOrder, error) {
	if src.ID == "" {
		return nil, fmt.Errorf("%w: missing order id", integration.ErrInvalidWebhookPayload)
	}

	items := make([]integration.PlatformOrderItem, 0, len(src.Lines))
	subtotal := decimal.Zero
	for _, line := range src.Lines {
		qty := line.Quantity
		if qty <= 0 {
			qty = 1
		}
		unitPrice := decimal.NewFromFloat(line.Price)

		modifiers := make([]integration.PlatformOrderModifier, 0, len(line.Modifiers))
		modifierTotal := decimal.Zero
		for _, mod := range line.Modifiers {
			price := decimal.NewFromFloat(mod.Price)
			modifiers = append(modifiers, integration.PlatformOrderModifier{
				PlatformModifierID: mod.ProductID,
				Name:               mod.Name,
				Price:              price,
				Quantity:           1,
			})
			modifierTotal = modifierTotal.Add(price)
		}

		lineTotal := unitPrice.Add(modifierTotal).Mul(decimal.NewFromInt(int64(qty)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, integration.PlatformOrderItem{
			PlatformProductID: line.ProductID,
			Name:              line.Name,
			Quantity:          qty,
			UnitPrice:         unitPrice,
			TotalPrice:        lineTotal,
			Note:              line.Note,
			Modifiers:         modifiers,
		})
	}

	placedAt := time.Now()
	if src.CreatedDate > 0 {
		placedAt = time.UnixMilli(src.CreatedDate)
	}

	address := src.Address.AddressText
	if src.Address.District != "" {
		address += ", " + src.Address.District
	}
	if src.Address.City != "" {
		address += ", " + src.Address.City
	}

	raw := map[string]any{}
	if encoded, err := json.Marshal(src); err == nil {
		_ = json.Unmarshal(encoded, &raw)
	}

	order := &integration.PlatformOrder{
		PlatformOrderID:     src.ID,
		PlatformOrderNumber: src.OrderNumber,
		Platform:            integration.PlatformCodeTrendyol,
		Status:              mapTrendyolStatus(src.Status),
		RawStatus:           src.Status,
		CustomerName:        src.Customer.FirstName + " " + src.Customer.LastName,
		CustomerPhone:       src.Customer.Phone,
		DeliveryAddress:     address,
		DeliveryNotes:       src.CustomerNote,
		Items:               items,
		Subtotal:            subtotal,
		DeliveryFee:         decimal.NewFromFloat(src.DeliveryFee),
		Discount:            decimal.NewFromFloat(src.Discount),
		Total:               decimal.NewFromFloat(src.TotalPrice),
		IsPrepaid:           src.PaymentType != "CASH_ON_DELIVERY",
		PaymentMethod:       src.PaymentType,
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

// SyncMenu pushes the product catalog one product at a time so single
// failures do not abort the batch.
func (a *TrendyolAdapter) SyncMenu(ctx context.Context, products []integration.ProductSync, categories []integration.CategorySync) (*integration.MenuSyncResult, error) {
	if err := a.boundCheck(); err != nil {
		return nil, err
	}

	categoryIDs := make(map[string]string, len(categories))
	for _, cat := range categories {
		categoryIDs[cat.LocalCategoryID.String()] = cat.PlatformCategoryID
	}

	result := &integration.MenuSyncResult{}
	for _, product := range products {
		payload := trendyolProduct{
			ID:           product.PlatformProductID,
			Name:         product.Name,
			Description:  product.Description,
			SellingPrice: product.Price.InexactFloat64(),
			Status:       trendyolAvailability(product.IsAvailable),
			ImageURL:     product.ImageURL,
			CategoryID:   categoryIDs[product.CategoryID.String()],
		}

		var err error
		if product.PlatformProductID == "" {
			_, err = a.call(ctx, http.MethodPost, "/products", payload)
		} else {
			_, err = a.call(ctx, http.MethodPut, "/products/"+product.PlatformProductID, payload)
		}
		if err != nil {
			result.AddProductFailure(product.LocalProductID, err.Error())
			continue
		}
		result.SyncedProducts++
		result.SyncedModifiers += len(product.ModifierGroups)
	}
	result.Resolve()
	return result, nil
}

// SyncProductAvailability toggles a single product on or off the menu
func (a *TrendyolAdapter) SyncProductAvailability(ctx context.Context, platformProductID string, isAvailable bool) error {
	payload := map[string]any{"status": trendyolAvailability(isAvailable)}
	_, err := a.call(ctx, http.MethodPut, "/products/"+platformProductID+"/status", payload)
	return err
}

// SyncProductPrice updates a single product price
func (a *TrendyolAdapter) SyncProductPrice(ctx context.Context, platformProductID string, price decimal.Decimal) error {
	payload := map[string]any{"sellingPrice": price.InexactFloat64()}
	_, err := a.call(ctx, http.MethodPut, "/products/"+platformProductID+"/price", payload)
	return err
}

func trendyolAvailability(available bool) string {
	if available {
		return "ACTIVE"
	}
	return "PASSIVE"
}

// ============================================================================
// Restaurant status
// ============================================================================

// SetRestaurantOpen resumes accepting orders on the platform
func (a *TrendyolAdapter) SetRestaurantOpen(ctx context.Context) error {
	_, err := a.call(ctx, http.MethodPut, "/status", map[string]any{"workingStatus": "OPEN"})
	return err
}

// SetRestaurantClosed pauses the store with an optional reason
func (a *TrendyolAdapter) SetRestaurantClosed(ctx context.Context, reason string) error {
	payload := map[string]any{"workingStatus": "CLOSED"}
	if reason != "" {
		payload["closedReason"] = reason
	}
	_, err := a.call(ctx, http.MethodPut, "/status", payload)
	return err
}

// GetRestaurantStatus reads the current store availability
func (a *TrendyolAdapter) GetRestaurantStatus(ctx context.Context) (*integration.RestaurantStatus, error) {
	body, err := a.call(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return nil, err
	}
	var status trendyolRestaurantStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}
	return &integration.RestaurantStatus{
		IsOpen:       status.WorkingStatus == "OPEN",
		ClosedReason: status.ClosedReason,
	}, nil
}

var _ integration.DeliveryPlatform = (*TrendyolAdapter)(nil)
