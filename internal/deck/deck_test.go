package deck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"
)

const validDeck = `{
	"calls": [
		["Why? ", "."],
		["First ", " then ", "."],
		["One segment only"]
	],
	"responses": [
		["a response"],
		["another one"],
		["a", "multi-part", "response"]
	]
}`

func TestParseValidDeck(t *testing.T) {
	source, err := Parse([]byte(validDeck))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(source.Calls) != 3 || len(source.Responses) != 3 {
		t.Fatalf("got %d calls, %d responses", len(source.Calls), len(source.Responses))
	}
}

func TestParseRejectsBadDecks(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"calls": [`,
		"wrong shape":     `{"calls": "nope", "responses": []}`,
		"no calls":        `{"calls": [], "responses": [["x"]]}`,
		"no responses":    `{"calls": [["a", "b"]], "responses": []}`,
		"empty call":      `{"calls": [[]], "responses": [["x"]]}`,
		"empty response":  `{"calls": [["a", "b"]], "responses": [[]]}`,
		"blank card text": `{"calls": [["a", "b"]], "responses": [[""]]}`,
	}
	for name, body := range cases {
		if _, err := Parse([]byte(body)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestDescribeCountsBlanks(t *testing.T) {
	source, err := Parse([]byte(validDeck))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	info := Describe(source, "http://decks.test/d.json")
	if info.Calls != 3 || info.Responses != 3 {
		t.Fatalf("info counts = %d/%d, want 3/3", info.Calls, info.Responses)
	}
	// Blanks are segment count minus one, with a floor of one for calls
	// whose blank sits at the end of the text.
	if want := []int{1, 2, 1}; !slices.Equal(info.CallLengths, want) {
		t.Fatalf("callLengths = %v, want %v", info.CallLengths, want)
	}
	if info.URL != "http://decks.test/d.json" {
		t.Fatalf("url = %q", info.URL)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(validDeck))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	source, info, err := Fetch(ctx, srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(source.Calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(source.Calls))
	}
	if info.URL != srv.URL {
		t.Fatalf("info url = %q, want %q", info.URL, srv.URL)
	}
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, _, err := Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected an error for 404")
	}
}

func TestFetchRejectsUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, _, err := Fetch(context.Background(), url); err == nil {
		t.Fatal("expected an error for closed server")
	}
}
