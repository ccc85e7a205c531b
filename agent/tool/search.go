package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	defaultSearchLimit = 8
	maxSearchLimit     = 20
	placeholderValue   = "na"
	contactForPricing  = "Contact Store for Pricing"
	noProductsSummary  = "No products found for that search. Try different keywords."
	searchFailReason   = "Our inventory search is temporarily unavailable. Please try again shortly, or I can connect you with our sales team."
)

type SearchConfig struct {
	WebhookURL string        `envconfig:"WEBHOOK_URL" split_words:"true" required:"true"`
	Timeout    time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	Limit      int           `envconfig:"LIMIT" split_words:"true" default:"8"`
}

type SearchProductsArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// Product is one normalized catalog record. Price is nil when the backend
// price is not numeric.
type Product struct {
	Name        string   `json:"name"`
	Price       *float64 `json:"price"`
	PriceLabel  string   `json:"price_label"`
	URL         string   `json:"url,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Description string   `json:"description,omitempty"`
}

type SearchResults struct {
	Query    string    `json:"query"`
	Products []Product `json:"products"`
}

type searchPayload struct {
	UserMessage   string `json:"User_message"`
	ChatHistory   string `json:"chat_history"`
	ContactID     string `json:"Contact_ID"`
	CustomerEmail string `json:"customer_email"`
}

type rawProduct struct {
	Name        string `json:"product_name"`
	Price       any    `json:"product_price"`
	Description string `json:"product_description"`
	URL         string `json:"product_URL"`
	ImageURL    string `json:"product_image_URL"`
}

type ProductSearcher struct {
	webhookURL   string
	defaultLimit int
	httpClient   *http.Client
	printer      *message.Printer
}

func NewProductSearcher(cfg SearchConfig, httpClient *http.Client) (*ProductSearcher, error) {
	webhook := strings.TrimSpace(cfg.WebhookURL)
	if webhook == "" {
		return nil, fmt.Errorf("%w: search webhook url is required", contractx.ErrConfig)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &ProductSearcher{
		webhookURL:   webhook,
		defaultLimit: clampLimit(cfg.Limit, defaultSearchLimit),
		httpClient:   httpClient,
		printer:      message.NewPrinter(language.English),
	}, nil
}

func NewSearchProductsTool(searcher *ProductSearcher) Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: ToolSearchProducts,
			Desc: "Search the dealership inventory and catalog. Returns matching vehicles and products with prices and links.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "What the customer is looking for, e.g. 2024 Accord hybrid", Required: true},
				"limit": {Type: schema.Integer, Desc: "Maximum results, 1 to 20, default 8"},
			}),
		},
		Handler: func(ctx context.Context, call contractx.ToolCallContext, raw map[string]any) contractx.ToolResult {
			var args SearchProductsArgs
			if err := decodeArgs(raw, &args); err != nil {
				return contractx.Failure(ToolSearchProducts, contractx.FailureValidation, searchFailReason, err)
			}
			return searcher.Search(ctx, call, args)
		},
	}
}

func (s *ProductSearcher) Search(ctx context.Context, call contractx.ToolCallContext, args SearchProductsArgs) contractx.ToolResult {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return contractx.Failure(ToolSearchProducts, contractx.FailureValidation,
			"What kind of vehicle or product should I look for?", fmt.Errorf("%w: query is required", contractx.ErrValidation))
	}
	limit := clampLimit(args.Limit, s.defaultLimit)

	body, err := postJSON(ctx, s.httpClient, s.webhookURL, searchPayload{
		UserMessage:   query,
		ChatHistory:   orPlaceholder(call.History),
		ContactID:     orPlaceholder(call.SessionID),
		CustomerEmail: orPlaceholder(call.Customer.Email),
	}, nil)
	if err != nil {
		return contractx.Failure(ToolSearchProducts, failureKind(err), searchFailReason, err)
	}

	raws, err := extractProducts(body)
	if err != nil {
		return contractx.Failure(ToolSearchProducts, contractx.FailureMalformed, searchFailReason, err)
	}
	if len(raws) > limit {
		raws = raws[:limit]
	}

	results := SearchResults{Query: query, Products: make([]Product, 0, len(raws))}
	for _, rp := range raws {
		results.Products = append(results.Products, s.normalize(rp))
	}
	return contractx.Success(ToolSearchProducts, s.summarize(results.Products), results)
}

// extractProducts accepts the three reply shapes the webhook is known to
// produce. An empty body or a shape without a product list is zero results.
// A message that is not an encoded object falls back to its sibling fields.
func extractProducts(body []byte) ([]rawProduct, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: search reply: %v", contractx.ErrMalformedResponse, err)
	}

	switch v := doc.(type) {
	case []any:
		if len(v) == 0 {
			return nil, nil
		}
		first, ok := v[0].(map[string]any)
		if !ok {
			return nil, nil
		}
		if msg, ok := first["message"].(string); ok {
			// A plain-text message is a note from the webhook, not an encoded reply.
			var inner map[string]any
			if err := json.Unmarshal([]byte(msg), &inner); err == nil {
				if _, ok := inner["products"]; ok {
					return productList(inner)
				}
			}
		}
		return productList(first)
	case map[string]any:
		return productList(v)
	default:
		return nil, nil
	}
}

func productList(obj map[string]any) ([]rawProduct, error) {
	list, ok := obj["products"].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]rawProduct, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var rp rawProduct
		if err := decodeArgs(m, &rp); err != nil {
			return nil, fmt.Errorf("%w: product record: %v", contractx.ErrMalformedResponse, err)
		}
		out = append(out, rp)
	}
	return out, nil
}

func (s *ProductSearcher) normalize(rp rawProduct) Product {
	p := Product{
		Name:        firstNonBlank(strings.TrimSpace(rp.Name), "Unknown"),
		URL:         strings.TrimSpace(rp.URL),
		ImageURL:    strings.TrimSpace(rp.ImageURL),
		Description: strings.TrimSpace(rp.Description),
		PriceLabel:  contactForPricing,
	}
	if price, ok := parsePrice(rp.Price); ok {
		p.Price = &price
		p.PriceLabel = "Starting at $" + s.formatPrice(price)
	}
	return p
}

// parsePrice strips currency symbols and thousands separators.
func parsePrice(raw any) (float64, bool) {
	var text string
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case string:
		text = v
	default:
		text = fmt.Sprint(v)
	}
	text = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(text))
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func (s *ProductSearcher) formatPrice(price float64) string {
	if price == float64(int64(price)) {
		return s.printer.Sprintf("%d", int64(price))
	}
	return s.printer.Sprintf("%.2f", price)
}

func (s *ProductSearcher) summarize(products []Product) string {
	if len(products) == 0 {
		return noProductsSummary
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d products:", len(products))
	for i, p := range products {
		fmt.Fprintf(&b, "\n%d. %s - %s", i+1, p.Name, p.PriceLabel)
		if p.Description != "" {
			fmt.Fprintf(&b, "\n   Description: %s", p.Description)
		}
		if p.URL != "" {
			fmt.Fprintf(&b, "\n   Link: %s", p.URL)
		}
		if p.ImageURL != "" {
			fmt.Fprintf(&b, "\n   Image: %s", p.ImageURL)
		}
	}
	return b.String()
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return limit
}

func orPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return placeholderValue
	}
	return v
}
