package deck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"card-czar/internal/game"

	"github.com/go-playground/validator/v10"
)

const maxDeckBytes = 4 << 20

// Source is the raw deck document: call cards as text segments around the
// blanks, response cards as text segments.
type Source struct {
	Calls     [][]string `json:"calls" validate:"min=1,dive,min=1"`
	Responses [][]string `json:"responses" validate:"min=1,dive,min=1,dive,required"`
}

var validate = validator.New()

// Fetch downloads and shape-checks a deck document and derives the immutable
// deck metadata for a session. Card identifiers are indexes into Source.
func Fetch(ctx context.Context, url string) (*Source, game.DeckInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, game.DeckInfo{}, fmt.Errorf("deck request: %w", err)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, game.DeckInfo{}, fmt.Errorf("deck fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, game.DeckInfo{}, fmt.Errorf("deck fetch: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDeckBytes))
	if err != nil {
		return nil, game.DeckInfo{}, fmt.Errorf("deck read: %w", err)
	}
	source, err := Parse(body)
	if err != nil {
		return nil, game.DeckInfo{}, err
	}
	return source, Describe(source, url), nil
}

// Parse decodes and validates a deck document.
func Parse(data []byte) (*Source, error) {
	var source Source
	if err := json.Unmarshal(data, &source); err != nil {
		return nil, fmt.Errorf("deck decode: %w", err)
	}
	if err := validate.Struct(&source); err != nil {
		return nil, fmt.Errorf("deck validate: %w", err)
	}
	return &source, nil
}

// Describe reduces a deck document to the counts the engine needs.
func Describe(source *Source, url string) game.DeckInfo {
	lengths := make([]int, len(source.Calls))
	for i, call := range source.Calls {
		blanks := len(call) - 1
		if blanks < 1 {
			blanks = 1
		}
		lengths[i] = blanks
	}
	return game.DeckInfo{
		Calls:       len(source.Calls),
		Responses:   len(source.Responses),
		CallLengths: lengths,
		URL:         url,
	}
}
