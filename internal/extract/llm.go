package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/model"
	"github.com/sells-group/rent-cli/internal/scrape"
	"github.com/sells-group/rent-cli/pkg/anthropic"
)

// ErrUnparsable is returned when the model's reply holds no JSON object.
var ErrUnparsable = eris.New("extract: model response is not a JSON object")

const llmSystemPrompt = `You extract structured rental listing information from housing website pages.
Reply with ONLY a JSON object. Use null for any field you cannot find.`

const llmPrompt = `Extract these fields from the page below as JSON with exactly these keys:

{
  "title": "listing title or address",
  "price_eur": 1500,
  "address": "full street address",
  "city": "city name",
  "neighborhood": "neighborhood or district",
  "postal_code": "1234AB",
  "surface_m2": 75,
  "rooms": 3,
  "bedrooms": 2,
  "bathrooms": 1,
  "floor": "2nd floor",
  "furnished": "Furnished/Unfurnished/Upholstered",
  "property_type": "Apartment/Studio/House/Room",
  "deposit_eur": 1500,
  "available_date": "2024-03-01 or Immediately",
  "minimum_contract_months": 12,
  "pets_allowed": "Yes/No/Unknown",
  "smoking_allowed": "Yes/No/Unknown",
  "energy_label": "A/B/C/D/E/F/G",
  "building_year": 1990,
  "landlord_name": "name if shown",
  "landlord_phone": "phone if shown",
  "agency": "real estate agency name",
  "description_summary": "2-3 sentence summary of the listing",
  "pros": "key positive aspects",
  "cons": "red flags or downsides"
}

Numbers are plain numbers. price_eur is the monthly rent only.

Page URL: %s
Page content:
%s`

// LLMOptions configures the LLM extractor.
type LLMOptions struct {
	Model         string
	MaxTokens     int64
	MaxInputChars int
}

// LLMExtractor asks an Anthropic model for the listing fields.
type LLMExtractor struct {
	client anthropic.Client
	opts   LLMOptions
}

// NewLLMExtractor creates an LLMExtractor. A nil client makes it unavailable.
func NewLLMExtractor(client anthropic.Client, opts LLMOptions) *LLMExtractor {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = 12000
	}
	return &LLMExtractor{client: client, opts: opts}
}

func (*LLMExtractor) Name() string { return "llm" }

// Available reports whether an API client is configured.
func (e *LLMExtractor) Available(context.Context) bool { return e.client != nil }

// Extract sends the prepared page text to the model and fills the fields
// existing lacks from its reply.
func (e *LLMExtractor) Extract(ctx context.Context, html string, existing *model.Listing) (*model.Listing, error) {
	if e.client == nil {
		return nil, eris.New("extract: no anthropic client configured")
	}
	pageURL := ""
	if existing != nil {
		pageURL = existing.ListingURL
	}
	text := PrepareText(html, pageURL, e.opts.MaxInputChars)
	if strings.TrimSpace(text) == "" {
		return fillFrom(existing, nil), nil
	}

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.opts.Model,
		MaxTokens:   e.opts.MaxTokens,
		System:      llmSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: fmt.Sprintf(llmPrompt, pageURL, text)}},
		Temperature: model.Ptr(0.1),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: llm %s", pageURL)
	}
	resp.Usage.LogCost(e.opts.Model, pageURL)

	data, ok := parseObject(resp.Text())
	if !ok {
		zap.L().Warn("extract: could not parse llm response", zap.String("url", pageURL))
		return nil, eris.Wrapf(ErrUnparsable, "url %s", pageURL)
	}
	return fillFrom(existing, listingFromJSON(data)), nil
}

// parseObject decodes a JSON object from a model reply, tolerating code
// fences and prose around it.
func parseObject(text string) (map[string]any, bool) {
	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err == nil {
		return out, true
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &out); err == nil {
		return out, true
	}
	return nil, false
}

// cleanJSON strips markdown code fences and keeps the outermost braces.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(strings.TrimPrefix(text, "```json"), "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// listingFromJSON maps the model's keys onto a Listing. Numbers may arrive
// as strings ("€ 1.500"); lists of pros and cons are joined.
func listingFromJSON(data map[string]any) *model.Listing {
	l := &model.Listing{
		Title:                 asString(data["title"]),
		PriceEUR:              asFloat(data["price_eur"]),
		Address:               asString(data["address"]),
		City:                  asString(data["city"]),
		Neighborhood:          asString(data["neighborhood"]),
		SurfaceM2:             asFloat(data["surface_m2"]),
		Rooms:                 asInt(data["rooms"]),
		Bedrooms:              asInt(data["bedrooms"]),
		Bathrooms:             asInt(data["bathrooms"]),
		Floor:                 asString(data["floor"]),
		Furnished:             asString(data["furnished"]),
		PropertyType:          asString(data["property_type"]),
		DepositEUR:            asFloat(data["deposit_eur"]),
		AvailableDate:         asString(data["available_date"]),
		MinimumContractMonths: asInt(data["minimum_contract_months"]),
		PetsAllowed:           asString(data["pets_allowed"]),
		SmokingAllowed:        asString(data["smoking_allowed"]),
		BuildingYear:          asInt(data["building_year"]),
		LandlordName:          asString(data["landlord_name"]),
		LandlordPhone:         asString(data["landlord_phone"]),
		Agency:                asString(data["agency"]),
		DescriptionSummary:    asString(data["description_summary"]),
		Pros:                  asString(data["pros"]),
		Cons:                  asString(data["cons"]),
	}
	if pc := asString(data["postal_code"]); pc != nil {
		l.PostalCode = NormalizePostalCode(*pc)
	}
	if el := asString(data["energy_label"]); el != nil {
		l.EnergyLabel = model.Ptr(strings.ToUpper(*el))
	}
	return l
}

func asString(v any) *string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return nil
		}
		return &s
	case float64:
		return model.Ptr(fmt.Sprint(t))
	case []any:
		var parts []string
		for _, item := range t {
			if s := asString(item); s != nil {
				parts = append(parts, *s)
			}
		}
		if len(parts) == 0 {
			return nil
		}
		return model.Ptr(strings.Join(parts, "; "))
	}
	return nil
}

func asFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return &t
		}
	case string:
		if f, ok := scrape.ParseAmount(t); ok {
			return &f
		}
	}
	return nil
}

func asInt(v any) *int {
	f := asFloat(v)
	if f == nil {
		return nil
	}
	return model.Ptr(int(math.Round(*f)))
}
