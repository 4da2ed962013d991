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
	defaultYemeksepetiBaseURL = "https://integration.yemeksepeti.com/partner/v2"
	yemeksepetiTokenSkew      = 60 * time.Second
)

// YemeksepetiConfig holds the environment-level settings of the Yemeksepeti
// adapter
type YemeksepetiConfig struct {
	BaseURL string
}

// YemeksepetiAdapter integrates with the Yemeksepeti partner API. The API is
// OAuth2 client-credentials protected; the adapter caches the token per bound
// tenant and refreshes it ahead of expiry. Webhooks carry an HMAC-SHA256
// signature in hex.
type YemeksepetiAdapter struct {
	baseAdapter
	config YemeksepetiConfig

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewYemeksepetiAdapter creates an unbound Yemeksepeti adapter
func NewYemeksepetiAdapter(config YemeksepetiConfig, deps Dependencies) *YemeksepetiAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultYemeksepetiBaseURL
	}
	return &YemeksepetiAdapter{
		baseAdapter: newBaseAdapter(integration.PlatformCodeYemeksepeti, deps),
		config:      config,
	}
}

// ============================================================================
// Wire types
// ============================================================================

type yemeksepetiTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type yemeksepetiWebhookEvent struct {
	Event string            `json:"event"`
	Order *yemeksepetiOrder `json:"order"`
	Meta  map[string]any    `json:"meta"`
}

type yemeksepetiOrder struct {
	Token     string               `json:"token"`
	Code      string               `json:"code"`
	Status    string               `json:"status"`
	Customer  yemeksepetiCustomer  `json:"customer"`
	Delivery  yemeksepetiDelivery  `json:"delivery"`
	Products  []yemeksepetiProduct `json:"products"`
	Price     yemeksepetiPrice     `json:"price"`
	Payment   yemeksepetiPayment   `json:"payment"`
	Comments  string               `json:"comments"`
	CreatedAt string               `json:"createdAt"`
}

type yemeksepetiCustomer struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	MobilePhone string `json:"mobilePhone"`
}

type yemeksepetiDelivery struct {
	Address yemeksepetiAddress `json:"address"`
}

type yemeksepetiAddress struct {
	Street   string `json:"street"`
	Number   string `json:"number"`
	City     string `json:"city"`
	FlatInfo string `json:"flatInfo"`
}

type yemeksepetiProduct struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Quantity         int                  `json:"quantity"`
	UnitPrice        string               `json:"unitPrice"`
	Comment          string               `json:"comment"`
	SelectedToppings []yemeksepetiTopping `json:"selectedToppings"`
}

type yemeksepetiTopping struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type yemeksepetiPrice struct {
	SubTotal      string `json:"subTotal"`
	DeliveryFee   string `json:"deliveryFee"`
	DiscountTotal string `json:"discountTotal"`
	GrandTotal    string `json:"grandTotal"`
}

type yemeksepetiPayment struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type yemeksepetiOrdersResponse struct {
	Orders []yemeksepetiOrder `json:"orders"`
}

type yemeksepetiAvailabilityStatus struct {
	Status        string `json:"availabilityStatus"`
	ClosedReason  string `json:"closedReason"`
	ClosingMinute int    `json:"closingMinutes"`
}

// ============================================================================
// Status mapping
// ============================================================================

func mapYemeksepetiStatus(raw string) integration.PlatformOrderStatus {
	switch raw {
	case "NEW":
		return integration.OrderStatusReceived
	case "ACCEPTED":
		return integration.OrderStatusAccepted
	case "REJECTED":
		return integration.OrderStatusRejected
	case "IN_PREPARATION":
		return integration.OrderStatusPreparing
	case "READY_FOR_COLLECTION":
		return integration.OrderStatusReady
	case "PICKED_UP":
		return integration.OrderStatusPickedUp
	case "DELIVERED":
		return integration.OrderStatusDelivered
	case "CANCELLED":
		return integration.OrderStatusCancelled
	default:
		return integration.OrderStatusReceived
	}
}

func mapToYemeksepetiStatus(status integration.PlatformOrderStatus) (string, bool) {
	switch status {
	case integration.OrderStatusPreparing:
		return "IN_PREPARATION", true
	case integration.OrderStatusReady:
		return "READY_FOR_COLLECTION", true
	case integration.OrderStatusPickedUp:
		return "PICKED_UP", true
	case integration.OrderStatusDelivered:
		return "DELIVERED", true
	default:
		return "", false
	}
}

// ============================================================================
// OAuth token cache
// ============================================================================

func (a *YemeksepetiAdapter) token(ctx context.Context) (string, error) {
	creds, err := a.credentials()
	if err != nil {
		return "", err
	}

	a.tokenMu.Lock()
	defer a.tokenMu.Unlock()

	if a.accessToken != "" && time.Now().Add(yemeksepetiTokenSkew).Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", creds.Yemeksepeti.ClientID)
	form.Set("client_secret", creds.Yemeksepeti.ClientSecret)

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

	var tokenResp yemeksepetiTokenResponse
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

func (a *YemeksepetiAdapter) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
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
		"X-Vendor-Id":   creds.Yemeksepeti.VendorID,
	}
	return a.doRequest(ctx, method, a.config.BaseURL+path, headers, body)
}

// ============================================================================
// Orders
// ============================================================================

// TestConnection acquires a token and reads vendor availability
func (a *YemeksepetiAdapter) TestConnection(ctx context.Context) (*integration.ConnectionTestResult, error) {
	if err := a.boundCheck(); err != nil {
		return nil, err
	}
	return timeConnection(func() error {
		_, err := a.call(ctx, http.MethodGet, "/availability", nil)
		return err
	}), nil
}

// AcceptOrder confirms the order with an estimated preparation time
func (a *YemeksepetiAdapter) AcceptOrder(ctx context.Context, platformOrderID string, estimatedPrepTime int) (*integration.OrderAcceptResult, error) {
	payload := map[string]any{
		"status":             "ACCEPTED",
		"preparationMinutes": estimatedPrepTime,
	}
	_, err := a.call(ctx, http.MethodPost, "/orders/"+platformOrderID+"/status", payload)
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
func (a *YemeksepetiAdapter) RejectOrder(ctx context.Context, platformOrderID, reason string) (*integration.OrderRejectResult, error) {
	if reason == "" {
		return nil, integration.ErrRejectReasonRequired
	}
	payload := map[string]any{
		"status": "REJECTED",
		"reason": reason,
	}
	if _, err := a.call(ctx, http.MethodPost, "/orders/"+platformOrderID+"/status", payload); err != nil {
		return nil, err
	}
	return &integration.OrderRejectResult{Success: true}, nil
}

// UpdateOrderStatus pushes a lifecycle transition in Yemeksepeti vocabulary
func (a *YemeksepetiAdapter) UpdateOrderStatus(ctx context.Context, platformOrderID string, status integration.PlatformOrderStatus) (*integration.OrderStatusUpdateResult, error) {
	raw, ok := mapToYemeksepetiStatus(status)
	if !ok {
		return &integration.OrderStatusUpdateResult{
			Success:   true,
			NewStatus: status,
			Message:   "status not pushable to platform",
		}, nil
	}
	payload := map[string]any{"status": raw}
	if _, err := a.call(ctx, http.MethodPost, "/orders/"+platformOrderID+"/status", payload); err != nil {
		return nil, err
	}
	return &integration.OrderStatusUpdateResult{
		Success:   true,
		NewStatus: status,
	}, nil
}

// GetOrderStatus reads the platform's raw status string
func (a *YemeksepetiAdapter) GetOrderStatus(ctx context.Context, platformOrderID string) (string, error) {
	body, err := a.call(ctx, http.MethodGet, "/orders/"+platformOrderID, nil)
	if err != nil {
		return "", err
	}
	var order yemeksepetiOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}
	return order.Status, nil
}

// FetchNewOrders pulls orders created since the given time
func (a *YemeksepetiAdapter) FetchNewOrders(ctx context.Context, since time.Time) ([]integration.PlatformOrder, error) {
	path := "/orders?createdAfter=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	body, err := a.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var page yemeksepetiOrdersResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}

	orders := make([]integration.PlatformOrder, 0, len(page.Orders))
	for i := range page.Orders {
		order, err := a.convertOrder(&page.Orders[i])
		if err != nil {
			a.deps.Logger.Warn("skipping unconvertible polled order",
				zap.String("platform", a.platform.String()),
				zap.String("platform_order_id", page.Orders[i].Token),
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

// ParseWebhookPayload decodes a verified webhook body. The webhook.verify
// handshake event returns (nil, nil).
func (a *YemeksepetiAdapter) ParseWebhookPayload(payload []byte) (*integration.PlatformOrder, error) {
	var event yemeksepetiWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrInvalidWebhookPayload, err)
	}

	switch event.Event {
	case "webhook.verify", "ping":
		return nil, nil
	case "order.created", "order.updated", "order.cancelled":
		if event.Order == nil {
			return nil, fmt.Errorf("%w: event %s without order", integration.ErrInvalidWebhookPayload, event.Event)
		}
		return a.convertOrder(event.Order)
	default:
		// Lifecycle events we do not model are acknowledged, not rejected
		return nil, nil
	}
}

func (a *YemeksepetiAdapter) convertOrder(src *yemeksepetiOrder) (*integration.PlatformOrder, error) {
	if src.Token == "" {
		return nil, fmt.Errorf("%w: missing order token", integration.ErrInvalidWebhookPayload)
	}

	items := make([]integration.PlatformOrderItem, 0, len(src.Products))
	subtotal := decimal.Zero
	for _, product := range src.Products {
		qty := product.Quantity
		if qty <= 0 {
			qty = 1
		}
		unitPrice, err := decimal.NewFromString(product.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: bad unit price %q", integration.ErrInvalidWebhookPayload, product.UnitPrice)
		}

		modifiers := make([]integration.PlatformOrderModifier, 0, len(product.SelectedToppings))
		modifierTotal := decimal.Zero
		for _, topping := range product.SelectedToppings {
			price, err := decimal.NewFromString(topping.Price)
			if err != nil {
				return nil, fmt.Errorf("%w: bad topping price %q", integration.ErrInvalidWebhookPayload, topping.Price)
			}
			modifiers = append(modifiers, integration.PlatformOrderModifier{
				PlatformModifierID: topping.ID,
				Name:               topping.Name,
				Price:              price,
				Quantity:           1,
			})
			modifierTotal = modifierTotal.Add(price)
		}

		lineTotal := unitPrice.Add(modifierTotal).Mul(decimal.NewFromInt(int64(qty)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, integration.PlatformOrderItem{
			PlatformProductID: product.ID,
			Name:              product.Name,
			Quantity:          qty,
			UnitPrice:         unitPrice,
			TotalPrice:        lineTotal,
			Note:              product.Comment,
			Modifiers:         modifiers,
		})
	}

	parseAmount := func(s string) decimal.Decimal {
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
		return decimal.Zero
	}

	placedAt := time.Now()
	if src.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, src.CreatedAt); err == nil {
			placedAt = t
		}
	}

	address := strings.TrimSpace(src.Delivery.Address.Street + " " + src.Delivery.Address.Number)
	if src.Delivery.Address.FlatInfo != "" {
		address += ", " + src.Delivery.Address.FlatInfo
	}
	if src.Delivery.Address.City != "" {
		address += ", " + src.Delivery.Address.City
	}

	raw := map[string]any{}
	if encoded, err := json.Marshal(src); err == nil {
		_ = json.Unmarshal(encoded, &raw)
	}

	order := &integration.PlatformOrder{
		PlatformOrderID:     src.Token,
		PlatformOrderNumber: src.Code,
		Platform:            integration.PlatformCodeYemeksepeti,
		Status:              mapYemeksepetiStatus(src.Status),
		RawStatus:           src.Status,
		CustomerName:        src.Customer.FirstName + " " + src.Customer.LastName,
		CustomerPhone:       src.Customer.MobilePhone,
		DeliveryAddress:     address,
		DeliveryNotes:       src.Comments,
		Items:               items,
		Subtotal:            parseAmount(src.Price.SubTotal),
		DeliveryFee:         parseAmount(src.Price.DeliveryFee),
		Discount:            parseAmount(src.Price.DiscountTotal),
		Total:               parseAmount(src.Price.GrandTotal),
		IsPrepaid:           src.Payment.Type != "CASH",
		PaymentMethod:       src.Payment.Type,
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

// SyncMenu pushes products one at a time; topping groups ride on the product
// payload, so a modifier failure surfaces as a product failure on Yemeksepeti.
func (a *YemeksepetiAdapter) SyncMenu(ctx context.Context, products []integration.ProductSync, categories []integration.CategorySync) (*integration.MenuSyncResult, error) {
	if err := a.boundCheck(); err != nil {
		return nil, err
	}

	categoryIDs := make(map[string]string, len(categories))
	for _, cat := range categories {
		categoryIDs[cat.LocalCategoryID.String()] = cat.PlatformCategoryID
	}

	result := &integration.MenuSyncResult{}
	for _, product := range products {
		toppingGroups := make([]map[string]any, 0, len(product.ModifierGroups))
		for _, group := range product.ModifierGroups {
			toppings := make([]map[string]any, 0, len(group.Modifiers))
			for _, modifier := range group.Modifiers {
				toppings = append(toppings, map[string]any{
					"id":        modifier.PlatformModifierID,
					"name":      modifier.Name,
					"price":     modifier.Price.StringFixed(2),
					"available": modifier.IsAvailable,
				})
			}
			entry := map[string]any{
				"id":       group.PlatformGroupID,
				"name":     group.Name,
				"type":     string(group.SelectionType),
				"min":      group.MinSelections,
				"required": group.IsRequired,
				"toppings": toppings,
			}
			if group.MaxSelections != nil {
				entry["max"] = *group.MaxSelections
			}
			toppingGroups = append(toppingGroups, entry)
		}

		payload := map[string]any{
			"id":            product.PlatformProductID,
			"name":          product.Name,
			"description":   product.Description,
			"price":         product.Price.StringFixed(2),
			"available":     product.IsAvailable,
			"imageUrl":      product.ImageURL,
			"categoryId":    categoryIDs[product.CategoryID.String()],
			"toppingGroups": toppingGroups,
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
func (a *YemeksepetiAdapter) SyncProductAvailability(ctx context.Context, platformProductID string, isAvailable bool) error {
	payload := map[string]any{"available": isAvailable}
	_, err := a.call(ctx, http.MethodPatch, "/menu/products/"+platformProductID, payload)
	return err
}

// SyncProductPrice updates a single product price
func (a *YemeksepetiAdapter) SyncProductPrice(ctx context.Context, platformProductID string, price decimal.Decimal) error {
	payload := map[string]any{"price": price.StringFixed(2)}
	_, err := a.call(ctx, http.MethodPatch, "/menu/products/"+platformProductID, payload)
	return err
}

// ============================================================================
// Restaurant status
// ============================================================================

// SetRestaurantOpen resumes accepting orders
func (a *YemeksepetiAdapter) SetRestaurantOpen(ctx context.Context) error {
	_, err := a.call(ctx, http.MethodPut, "/availability", map[string]any{"availabilityStatus": "OPEN"})
	return err
}

// SetRestaurantClosed pauses the vendor with an optional reason
func (a *YemeksepetiAdapter) SetRestaurantClosed(ctx context.Context, reason string) error {
	payload := map[string]any{"availabilityStatus": "CLOSED"}
	if reason != "" {
		payload["closedReason"] = reason
	}
	_, err := a.call(ctx, http.MethodPut, "/availability", payload)
	return err
}

// GetRestaurantStatus reads the vendor availability
func (a *YemeksepetiAdapter) GetRestaurantStatus(ctx context.Context) (*integration.RestaurantStatus, error) {
	body, err := a.call(ctx, http.MethodGet, "/availability", nil)
	if err != nil {
		return nil, err
	}
	var status yemeksepetiAvailabilityStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAPIResponse, err)
	}
	return &integration.RestaurantStatus{
		IsOpen:       status.Status == "OPEN",
		ClosedReason: status.ClosedReason,
	}, nil
}

var _ integration.DeliveryPlatform = (*YemeksepetiAdapter)(nil)
