package importer

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/mapping"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/model"
)

// DefaultOfferSource labels offers whose template does not map a Source field.
const DefaultOfferSource = "feed-import"

var ErrMissingProductName = errors.New("importer: product name missing from record")

// MapRecord converts one feed record into an Offer using schema's source keys.
// A key is first matched literally against the record's top-level keys, then as a
// gjson path, so both "produto.nome" keys and nested "product.title" paths resolve.
func MapRecord(record gjson.Result, schema mapping.Schema, templateID string, receivedAt time.Time) (model.Offer, error) {
	offer := model.Offer{
		TemplateID: templateID,
		ReceivedAt: receivedAt,
		Source:     DefaultOfferSource,
	}

	if value, found := lookup(record, schema, mapping.FieldProductName); found {
		offer.ProductName = strings.TrimSpace(value.String())
	}
	if value, found := lookup(record, schema, mapping.FieldPrice); found {
		offer.Price = parseFloat(value)
	}
	if value, found := lookup(record, schema, mapping.FieldOriginalPrice); found {
		offer.OriginalPrice = parseFloat(value)
	}
	if value, found := lookup(record, schema, mapping.FieldDetails); found {
		offer.Details = value.String()
	}
	if value, found := lookup(record, schema, mapping.FieldCashbackPercentage); found {
		offer.CashbackPercentage = parseInt(value)
	}
	if value, found := lookup(record, schema, mapping.FieldSource); found {
		offer.Source = value.String()
	}

	if offer.ProductName == "" {
		return model.Offer{}, ErrMissingProductName
	}
	return offer, nil
}

func lookup(record gjson.Result, schema mapping.Schema, field mapping.TargetField) (gjson.Result, bool) {
	if !schema.Has(field) {
		return gjson.Result{}, false
	}
	return resolveKey(record, schema[field])
}

func resolveKey(record gjson.Result, key string) (gjson.Result, bool) {
	if literal := record.Get(gjson.Escape(key)); literal.Exists() {
		return literal, true
	}
	value := record.Get(key)
	return value, value.Exists()
}

func parseFloat(value gjson.Result) float64 {
	if value.Type == gjson.Number {
		return value.Float()
	}
	parsed, parseErr := strconv.ParseFloat(strings.TrimSpace(value.String()), 64)
	if parseErr != nil {
		return 0
	}
	return parsed
}

func parseInt(value gjson.Result) int {
	if value.Type == gjson.Number {
		return int(value.Int())
	}
	parsed, parseErr := strconv.Atoi(strings.TrimSpace(value.String()))
	if parseErr != nil {
		return 0
	}
	return parsed
}
