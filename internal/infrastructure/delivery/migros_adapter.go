package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
)

const (
	defaultMigrosBaseURL = "https://hemen-api.migros.com.tr/rest/v1"
	migrosTokenSkew      = 60 * time.Second
)

// MigrosConfig holds the environment-level settings of the Migros adapter
type MigrosConfig struct {
	BaseURL string
}

// MigrosAdapter integrates with the Migros Yemek store API. The API is OAuth2
// client-credentials protected with a store code header; webhooks carry an
// HMAC-SHA256 signature in hex. Migros orders are always prepaid and items
// are keyed by SKU rather than a platform product ID.
type MigrosAdapter struct {
	baseAdapter
	config MigrosConfig

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewMigrosAdapter creates an unbound Migros adapter
func NewMigrosAdapter(config MigrosConfig, deps Dependencies) *MigrosAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultMigrosBaseURL
	}
	return &MigrosAdapter{
		baseAdapter: newBaseAdapter(integration.PlatformCodeMigros, deps),
		config:      config,
	}
}

// ============================================================================
// Wire types
// ============================================================================

type migrosTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type migrosWebhookEvent struct {
	EventType string       `json:"eventType"`
	StoreCode string       `json:"storeCode"`
	Order     *migrosOrder `json:"orderDetail"`
}

type migrosOrder struct {
	OrderID       string       `json:"orderId"`
	OrderNo       string       `json:"orderNo"`
	Status        string       `json:"status"`
	CustomerName  string       `json:"customerName"`
	CustomerPhone string       `json:"customerPhone"`
	Address       string       `json:"addressDetail"`
	Note          string       `json:"note"`
	Items         []migrosItem `json:"items"`
	SubTotal      float64      `json:"subTotal"`
	DeliveryFee   float64      `json:"deliveryFee"`
	Discount      float64      `json:"discount"`
	GrandTotal    float64      `json:"grandTotal"`
	PaymentType   string       `json:"paymentType"`
	OrderDate     string       `json:"orderDate"`
}

type migrosItem struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice float64         `json:"unitPrice"`
	Total     float64         `json:"total"`
	Note      string          `json:"note"`
	SubItems  []migrosSubItem `json:"subItems"`
}

type migrosSubItem struct {
	SKU   string  `json:"sku"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type migrosOrdersResponse struct {
	Orders []migrosOrder `json:"orders"`
}

type migrosStoreStatus struct {
	Open   bool   `json:"open"`
	Reason string `json:"reason"`
}

// ============================================================================
// Status mapping
// ============================================================================

func mapMigrosStatus(raw string) integration.PlatformOrderStatus {
	switch raw {
	case "NEW_ORDER":
		return integration.OrderStatusReceived
	case "APPROVED":
		return integration.OrderStatusAccepted
	case "REJECTED":
		return integration.OrderStatusRejected
	case "PICKING":
		return integration.OrderStatusPreparing
	case "PREPARED":
		return integration.OrderStatusReady
	case "SHIPPED":
		return integration.OrderStatusPickedUp
	case "DELIVERED":
		return integration.OrderStatusDelivered
	case "CANCELLED":
		return integration.OrderStatusCancelled
	default:
		return integration.OrderStatusReceived
	}
}

func mapToMigrosStatus(status integration.PlatformOrderStatus) (string, bool) {
	switch status {
	case integration.OrderStatusPreparing:
		return "PICKING", true
	case integration.OrderStatusReady:
		return "PREPARED", true
	case integration.OrderStatusPickedUp:
		return "SHIPPED", true
	case integration.OrderStatusDelivered:
		return "DELIVERED", true
	default:
		return "", false
	}
}

// ============================================================================
// OAuth token cache
// ============================================================================

func (a *MigrosAdapter) token(ctx context.Context) (string, error) {
	creds, err := a.credentials()
	if err != nil {
		return "", err
	}

	a.tokenMu.Lock()
	defer a.tokenMu.Unlock()

	if a.accessToken != "" && time.Now().Add(migrosTokenSkew).Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", creds.Migros.ClientID)
	form.Set("client_secret", creds.Migros.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrAPIRequest, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.deps.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: token endpoint returned HTTP %d", integration.ErrAPIRequest, resp.StatusCode)
	}

	var tokenResp migrosTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", integration.ErrAPIResponse)
	}

	a.accessToken = tokenResp.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	a.deps.Logger.Debug("refreshed platform OAuth token",
		zap.String("platform", a.platform.String()),
		zap.Time("expires_at", a.tokenExpiry),
	)
	return a.accessToken, nil
}

func (a *MigrosAdapter) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
	creds, err := a.credentials()
	if err != nil {
		return nil, err
	}
	token, err := a.token(ctx)
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
		"Authorization": "Bearer " + token,
		"X-Store-Code":  creds.Migros.StoreCode,
	}
	return a.doRequest(ctx, method, a.config.BaseURL+path, headers, body)
}

// ============================================================================
// Orders
// ============================================================================

// TestConnection acquires a token and reads the store status
func (a *MigrosAdapter) TestConnection(ctx context.Context) (*integration.ConnectionTestResult, error) {
	if err := a.boundCheck(); err != nil {
		return nil, err
	}
	return timeConnection(func() error {
		_, err := a.call(ctx, http.MethodGet, "/store/status", nil)
		return err
	}), nil
}

// AcceptOrder approves the order with an estimated preparation time
func (a *MigrosAdapter) AcceptOrder(ctx context.Context, platformOrderID string, estimatedPrepTime int) (*integration.OrderAcceptResult, error) {
	payload := map[string]any{"preparationMinutes": estimatedPrepTime}
	_, err := a.call(ctx, http.MethodPost, "/orders/"+platformOrderID+"/approve", payload)
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

// RejectOrder declines the order. Migros's reject endpoint takes no free-form
// reason; the reason still gates the call and is recorded locally by the
// caller.
func (a *MigrosAdapter) RejectOrder(ctx context.Context, platformOrderID, reason string) (*integration.OrderRejectResult, error) {
	if reason == "" {
		return nil, integration.ErrRejectReasonRequired
	}
	if _, err := a.call(ctx, http.MethodPost, "/orders/"+platformOrderID+"/reject", nil); err != nil {
		return nil, err
	}
	return &integration.OrderRejectResult{
		Success: true,
		Message: "platform does not record reject reasons",
	}, nil
}

// UpdateOrderStatus pushes a lifecycle transition in Migros vocabulary
func (a *MigrosAdapter) UpdateOrderStatus(ctx context.Context, platformOrderID string, status integration.PlatformOrderStatus) (*integration.OrderStatusUpdateResult, error) {
	raw, ok := mapToMigrosStatus(status)
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
func (a *MigrosAdapter) GetOrderStatus(ctx context.Context, platformOrderID string) (string, error) {
	body, err := a.call(ctx, http.MethodGet, "/orders/"+platformOrderID, nil)
	if err != nil {
		return "", err
	}
	var order migrosOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}
	return order.Status, nil
}

// FetchNewOrders pulls orders created since the given time
func (a *MigrosAdapter) FetchNewOrders(ctx context.Context, since time.Time) ([]integration.PlatformOrder, error) {
	path := "/orders?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	body, err := a.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var page migrosOrdersResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}

	orders := make([]integration.PlatformOrder, 0, len(page.Orders))
	for i := range page.Orders {
		order, err := a.convertOrder(&page.Orders[i])
		if err != nil {
			a.deps.Logger.Warn("skipping unconvertible polled order",
				zap.String("platform", a.platform.String()),
				zap.String("platform_order_id", page.Orders[i].OrderID),
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
func (a *MigrosAdapter) ParseWebhookPayload(payload []byte) (*integration.PlatformOrder, error) {
	var event migrosWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrInvalidWebhookPayload, err)
	}

	switch event.EventType {
	case "PING":
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

func (a *MigrosAdapter) convertOrder(src *migrosOrder) (*integration.PlatformOrder, error) {
	if src.OrderID == "" {
		return nil, fmt.Errorf("%w: missing order id", integration.ErrInvalidWebhookPayload)
	}

	items := make([]integration.PlatformOrderItem, 0, len(src.Items))
	subtotal := decimal.Zero
	for _, item := range src.Items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}

		modifiers := make([]integration.PlatformOrderModifier, 0, len(item.SubItems))
		for _, sub := range item.SubItems {
			modifiers = append(modifiers, integration.PlatformOrderModifier{
				PlatformModifierID: sub.SKU,
				Name:               sub.Name,
				Price:              decimal.NewFromFloat(sub.Price),
				Quantity:           1,
			})
		}

		lineTotal := decimal.NewFromFloat(item.Total)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, integration.PlatformOrderItem{
			PlatformProductID: item.SKU,
			Name:              item.Name,
			Quantity:          qty,
			UnitPrice:         decimal.NewFromFloat(item.UnitPrice),
			TotalPrice:        lineTotal,
			Note:              item.Note,
			Modifiers:         modifiers,
		})
	}

	placedAt := time.Now()
	if src.OrderDate != "" {
		if t, err := time.Parse(time.RFC3339, src.OrderDate); err == nil {
			placedAt = t
		}
	}

	raw := map[string]any{}
	if encoded, err := json.Marshal(src); err == nil {
		_ = json.Unmarshal(encoded, &raw)
	}

	// Migros collects payment online for every order
	order := &integration.PlatformOrder{
		PlatformOrderID:     src.OrderID,
		PlatformOrderNumber: src.OrderNo,
		Platform:            integration.PlatformCodeMigros,
		Status:              mapMigrosStatus(src.Status),
		RawStatus:           src.Status,
		CustomerName:        src.CustomerName,
		CustomerPhone:       src.CustomerPhone,
		DeliveryAddress:     src.Address,
		DeliveryNotes:       src.Note,
		Items:               items,
		Subtotal:            subtotal,
		DeliveryFee:         decimal.NewFromFloat(src.DeliveryFee),
		Discount:            decimal.NewFromFloat(src.Discount),
		Total:               decimal.NewFromFloat(src.GrandTotal),
		IsPrepaid:           true,
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

// SyncMenu pushes the catalog entries keyed by SKU
func (a *MigrosAdapter) SyncMenu(ctx context.Context, products []integration.ProductSync, categories []integration.CategorySync) (*integration.MenuSyncResult, error) {
	if err := a.boundCheck(); err != nil {
		return nil, err
	}

	categoryNames := make(map[string]string, len(categories))
	for _, cat := range categories {
		categoryNames[cat.LocalCategoryID.String()] = cat.Name
	}

	result := &integration.MenuSyncResult{}
	for _, product := range products {
		subItems := make([]map[string]any, 0)
		for _, group := range product.ModifierGroups {
			for _, modifier := range group.Modifiers {
				subItems = append(subItems, map[string]any{
					"sku":       modifier.PlatformModifierID,
					"name":      modifier.Name,
					"price":     modifier.Price.InexactFloat64(),
					"groupName": group.Name,
					"available": modifier.IsAvailable,
				})
			}
		}

		payload := map[string]any{
			"sku":         product.PlatformProductID,
			"name":        product.Name,
			"description": product.Description,
			"price":       product.Price.InexactFloat64(),
			"available":   product.IsAvailable,
			"imageUrl":    product.ImageURL,
			"category":    categoryNames[product.CategoryID.String()],
			"subItems":    subItems,
		}

		if _, err := a.call(ctx, http.MethodPut, "/catalog/items", payload); err != nil {
			result.AddProductFailure(product.LocalProductID, err.Error())
			continue
		}
		result.SyncedProducts++
		result.SyncedModifiers += len(product.ModifierGroups)
	}
	result.Resolve()
	return result, nil
}

// SyncProductAvailability toggles a single catalog item
func (a *MigrosAdapter) SyncProductAvailability(ctx context.Context, platformProductID string, isAvailable bool) error {
	payload := map[string]any{"available": isAvailable}
	_, err := a.call(ctx, http.MethodPatch, "/catalog/items/"+platformProductID, payload)
	return err
}

// SyncProductPrice updates a single catalog item price
func (a *MigrosAdapter) SyncProductPrice(ctx context.Context, platformProductID string, price decimal.Decimal) error {
	payload := map[string]any{"price": price.InexactFloat64()}
	_, err := a.call(ctx, http.MethodPatch, "/catalog/items/"+platformProductID, payload)
	return err
}

// ============================================================================
// Restaurant status
// ============================================================================

// SetRestaurantOpen resumes accepting orders
func (a *MigrosAdapter) SetRestaurantOpen(ctx context.Context) error {
	_, err := a.call(ctx, http.MethodPut, "/store/status", map[string]any{"open": true})
	return err
}

// SetRestaurantClosed pauses the store
func (a *MigrosAdapter) SetRestaurantClosed(ctx context.Context, reason string) error {
	payload := map[string]any{"open": false}
	if reason != "" {
		payload["reason"] = reason
	}
	_, err := a.call(ctx, http.MethodPut, "/store/status", payload)
	return err
}

// GetRestaurantStatus reads the store availability
func (a *MigrosAdapter) GetRestaurantStatus(ctx context.Context) (*integration.RestaurantStatus, error) {
	body, err := a.call(ctx, http.MethodGet, "/store/status", nil)
	if err != nil {
		return nil, err
	}
	var status migrosStoreStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}
	return &integration.RestaurantStatus{
		IsOpen:       status.Open,
		ClosedReason: status.Reason,
	}, nil
}

var _ integration.DeliveryPlatform = (*MigrosAdapter)(nil)
