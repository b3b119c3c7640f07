package importer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/importer"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/mapping"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/model"
)

const testTemplateID = "template-1"

var testReceivedAt = time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)

func TestMapRecordConvertsTypes(testingT *testing.T) {
	schema := mapping.Schema{
		mapping.FieldProductName:        "titulo",
		mapping.FieldPrice:              "preco",
		mapping.FieldOriginalPrice:      "oldPrice",
		mapping.FieldDetails:            "info.descricao",
		mapping.FieldCashbackPercentage: "cashback",
		mapping.FieldSource:             "loja",
	}
	record := gjson.Parse(`{
		"titulo": " Tenis Corrida ",
		"preco": "199.90",
		"oldPrice": 299,
		"info": {"descricao": "Tamanho 42"},
		"cashback": "7",
		"loja": "Loja A"
	}`)

	offer, mapErr := importer.MapRecord(record, schema, testTemplateID, testReceivedAt)
	require.NoError(testingT, mapErr)
	require.Equal(testingT, model.Offer{
		TemplateID:         testTemplateID,
		ProductName:        "Tenis Corrida",
		Price:              199.90,
		OriginalPrice:      299,
		Details:            "Tamanho 42",
		CashbackPercentage: 7,
		Source:             "Loja A",
		ReceivedAt:         testReceivedAt,
	}, offer)
}

func TestMapRecordDefaultsAndFallbacks(testingT *testing.T) {
	schema := mapping.Schema{
		mapping.FieldProductName:        "name",
		mapping.FieldPrice:              "price",
		mapping.FieldCashbackPercentage: "cashback",
	}
	record := gjson.Parse(`{"name": "Bola", "price": "gratis", "cashback": 12.9}`)

	offer, mapErr := importer.MapRecord(record, schema, testTemplateID, testReceivedAt)
	require.NoError(testingT, mapErr)
	require.Equal(testingT, importer.DefaultOfferSource, offer.Source)
	require.Zero(testingT, offer.Price)
	require.Equal(testingT, 12, offer.CashbackPercentage)
}

func TestMapRecordRequiresProductName(testingT *testing.T) {
	testCases := []struct {
		name   string
		schema mapping.Schema
		record string
	}{
		{name: "unmapped", schema: mapping.Schema{mapping.FieldPrice: "price"}, record: `{"price": 1}`},
		{name: "absent key", schema: mapping.Schema{mapping.FieldProductName: "title"}, record: `{"name": "x"}`},
		{name: "blank value", schema: mapping.Schema{mapping.FieldProductName: "title"}, record: `{"title": "  "}`},
	}
	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(subTest *testing.T) {
			_, mapErr := importer.MapRecord(gjson.Parse(testCase.record), testCase.schema, testTemplateID, testReceivedAt)
			require.ErrorIs(subTest, mapErr, importer.ErrMissingProductName)
		})
	}
}

func TestMapRecordResolvesLiteralKeysBeforePaths(testingT *testing.T) {
	testCases := []struct {
		name                string
		productNameKey      string
		record              string
		expectedProductName string
	}{
		{name: "dotted key", productNameKey: "produto.nome", record: `{"produto.nome": "Tenis"}`, expectedProductName: "Tenis"},
		{name: "wildcard key", productNameKey: "nome*", record: `{"nome*": "Bola", "nomeX": "Outro"}`, expectedProductName: "Bola"},
		{name: "pipe key", productNameKey: "a|b", record: `{"a|b": "Relogio"}`, expectedProductName: "Relogio"},
		{name: "literal wins over path", productNameKey: "produto.nome", record: `{"produto.nome": "Literal", "produto": {"nome": "Aninhado"}}`, expectedProductName: "Literal"},
		{name: "nested path", productNameKey: "produto.nome", record: `{"produto": {"nome": "Aninhado"}}`, expectedProductName: "Aninhado"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(subTest *testing.T) {
			schema := mapping.Schema{mapping.FieldProductName: testCase.productNameKey}
			offer, mapErr := importer.MapRecord(gjson.Parse(testCase.record), schema, testTemplateID, testReceivedAt)
			require.NoError(subTest, mapErr)
			require.Equal(subTest, testCase.expectedProductName, offer.ProductName)
		})
	}
}

func TestMapRecordResolvesSuggestedDottedKey(testingT *testing.T) {
	sample := map[string]any{"produto.nome": "Tenis", "preco": 10}
	table := mapping.AliasTable{
		{Field: mapping.FieldProductName, Aliases: mapping.AliasList{"produto.nome"}},
		{Field: mapping.FieldPrice, Aliases: mapping.AliasList{"preco"}},
	}
	schema := mapping.NewSuggester(table).Suggest(sample, nil)
	require.Equal(testingT, "produto.nome", schema[mapping.FieldProductName])

	offer, mapErr := importer.MapRecord(gjson.Parse(`{"produto.nome": "Tenis", "preco": 10}`), schema, testTemplateID, testReceivedAt)
	require.NoError(testingT, mapErr)
	require.Equal(testingT, "Tenis", offer.ProductName)
	require.Equal(testingT, float64(10), offer.Price)
}

func TestMapRecordKeepsDefaultSourceWhenSourceKeyAbsent(testingT *testing.T) {
	schema := mapping.Schema{mapping.FieldProductName: "name", mapping.FieldSource: "loja"}
	offer, mapErr := importer.MapRecord(gjson.Parse(`{"name": "Bola"}`), schema, testTemplateID, testReceivedAt)
	require.NoError(testingT, mapErr)
	require.Equal(testingT, importer.DefaultOfferSource, offer.Source)
}
