package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/feed"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/mapping"
)

const (
	errorValueFeedUnreachable = "feed_unreachable"
	errorValueFeedTooLarge    = "feed_too_large"
	errorValueInvalidFeedJSON = "invalid_feed_json"
	errorValueEmptyFeed       = "empty_feed"
)

// FeedFetcher downloads a feed for preview.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) (feed.Document, error)
}

// MappingHandlers serves mapping suggestions for samples and live feeds.
type MappingHandlers struct {
	suggester *mapping.Suggester
	fetcher   FeedFetcher
	logger    *zap.Logger
}

func NewMappingHandlers(suggester *mapping.Suggester, fetcher FeedFetcher, logger *zap.Logger) *MappingHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MappingHandlers{suggester: suggester, fetcher: fetcher, logger: logger}
}

type suggestMappingRequest struct {
	Sample  any            `json:"sample"`
	Mapping mapping.Schema `json:"mapping"`
}

type suggestMappingResponse struct {
	Mapping mapping.Schema `json:"mapping"`
}

type testFeedRequest struct {
	FeedURL string         `json:"feed_url"`
	Mapping mapping.Schema `json:"mapping"`
}

type testFeedResponse struct {
	Sample  any            `json:"sample"`
	Keys    []string       `json:"keys"`
	Mapping mapping.Schema `json:"mapping"`
}

type aliasTableResponse struct {
	Fields mapping.AliasTable `json:"fields"`
}

// SuggestMapping fills unmapped fields of the supplied mapping from the supplied sample record.
func (handlers *MappingHandlers) SuggestMapping(context *gin.Context) {
	var payload suggestMappingRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	context.JSON(http.StatusOK, suggestMappingResponse{
		Mapping: handlers.suggester.Suggest(payload.Sample, payload.Mapping),
	})
}

// TestFeed downloads the feed, returns its sample record and keys, and the suggested mapping.
func (handlers *MappingHandlers) TestFeed(context *gin.Context) {
	var payload testFeedRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}

	document, fetchErr := handlers.fetcher.Fetch(context.Request.Context(), payload.FeedURL)
	if fetchErr != nil {
		handlers.logger.Info("test_feed_fetch_failed", zap.String("feed_url", payload.FeedURL), zap.Error(fetchErr))
		respondFeedError(context, fetchErr)
		return
	}
	sample, sampleErr := document.Sample()
	if sampleErr != nil {
		respondFeedError(context, sampleErr)
		return
	}

	keys := feed.SampleKeys(document)
	if keys == nil {
		keys = []string{}
	}
	context.JSON(http.StatusOK, testFeedResponse{
		Sample:  sample,
		Keys:    keys,
		Mapping: handlers.suggester.Suggest(sample, payload.Mapping),
	})
}

// AliasTable reports the alias table the suggester consults.
func (handlers *MappingHandlers) AliasTable(context *gin.Context) {
	context.JSON(http.StatusOK, aliasTableResponse{Fields: handlers.suggester.AliasTable()})
}

func respondFeedError(context *gin.Context, feedErr error) {
	switch {
	case errors.Is(feedErr, feed.ErrInvalidFeedURL):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidFeedURL})
	case errors.Is(feedErr, feed.ErrFeedTooLarge):
		context.JSON(http.StatusBadGateway, gin.H{jsonKeyError: errorValueFeedTooLarge})
	case errors.Is(feedErr, feed.ErrInvalidFeedJSON):
		context.JSON(http.StatusUnprocessableEntity, gin.H{jsonKeyError: errorValueInvalidFeedJSON})
	case errors.Is(feedErr, mapping.ErrEmptyFeed):
		context.JSON(http.StatusUnprocessableEntity, gin.H{jsonKeyError: errorValueEmptyFeed})
	default:
		context.JSON(http.StatusBadGateway, gin.H{jsonKeyError: errorValueFeedUnreachable})
	}
}
