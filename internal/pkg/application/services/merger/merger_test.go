package merger

import (
	"encoding/json"
	"testing"

	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/upstream"
	"github.com/matryer/is"
)

func okOutcome(t *testing.T, body string) upstream.Outcome {
	t.Helper()
	if !json.Valid([]byte(body)) {
		t.Fatalf("invalid test fixture JSON: %s", body)
	}
	return upstream.Outcome{OK: json.RawMessage(body)}
}

func TestMergeTwoDatabasesConcatenatesAndRewritesIDs(t *testing.T) {
	is := is.New(t)

	sources := []Source{
		{DatabaseID: "D1", Outcome: okOutcome(t, `{"data":[{"id":"a","type":"structures"}],"meta":{"data_returned":1,"data_available":10,"more_data_available":true}}`)},
		{DatabaseID: "D2", Outcome: okOutcome(t, `{"data":[{"id":"b","type":"structures"}],"meta":{"data_returned":1,"data_available":5,"more_data_available":false}}`)},
	}

	merged := Merge(Request{Representation: "/structures", RequestURL: "https://gw.example.org/gateways/g1/structures", PageLimit: 10}, sources)

	is.Equal(len(merged.Data), 2)
	is.Equal(merged.Data[0].ID(), "D1/a")
	is.Equal(merged.Data[1].ID(), "D2/b")
	is.Equal(merged.Meta.DataReturned, 2)
	is.Equal(merged.Meta.DataAvailable, 15)
	is.True(merged.Meta.MoreDataAvailable)
	is.Equal(len(merged.Errors), 0)
	is.Equal(merged.Meta.Sources["D1"], "ok")
	is.Equal(merged.Meta.Sources["D2"], "ok")
}

func TestMergeUpstreamErrorSurfacesInErrorsArray(t *testing.T) {
	is := is.New(t)

	sources := []Source{
		{DatabaseID: "D1", Outcome: okOutcome(t, `{"data":[{"id":"a","type":"structures"}],"meta":{"data_returned":1,"data_available":1,"more_data_available":false}}`)},
		{DatabaseID: "D2", Outcome: upstream.Outcome{UpstreamError: &upstream.UpstreamError{Status: 500, Body: json.RawMessage(`{"errors":[{"detail":"boom"}]}`)}}},
	}

	merged := Merge(Request{Representation: "/structures", RequestURL: "https://gw.example.org/gateways/g1/structures"}, sources)

	is.Equal(len(merged.Data), 1)
	is.Equal(merged.Data[0].ID(), "D1/a")
	is.Equal(len(merged.Errors), 1)
	is.Equal(merged.Errors[0].Source, "D2")
	is.Equal(merged.Errors[0].Status, 500)
	is.Equal(merged.Meta.Sources, map[string]string{"D1": "ok", "D2": "error"})
}

func TestMergeTransportErrorReportsTimeout(t *testing.T) {
	is := is.New(t)

	sources := []Source{
		{DatabaseID: "D2", Outcome: upstream.Outcome{TransportErr: &upstream.TransportError{Kind: upstream.KindTimeout, Message: "context deadline exceeded"}}},
	}

	merged := Merge(Request{Representation: "/structures", RequestURL: "https://gw.example.org/gateways/g1/structures"}, sources)

	is.Equal(len(merged.Errors), 1)
	is.Equal(merged.Errors[0].Source, "D2")
	is.Equal(merged.Errors[0].Status, 504)
	is.True(containsSubstring(merged.Errors[0].Detail, "timeout"))
}

func TestMergeNextLinkAdvancesPageOffset(t *testing.T) {
	is := is.New(t)

	sources := []Source{
		{DatabaseID: "D1", Outcome: okOutcome(t, `{"data":[{"id":"a","type":"structures"}],"meta":{"data_returned":1,"data_available":100,"more_data_available":true}}`)},
	}

	merged := Merge(Request{
		Representation: "/structures?page_limit=10",
		RequestURL:     "https://gw.example.org/gateways/g1/structures?page_limit=10&page_offset=0",
		PageLimit:      10,
		PageOffset:     0,
	}, sources)

	is.Equal(merged.Links.Next, "https://gw.example.org/gateways/g1/structures?page_limit=10&page_offset=10")
}

func containsSubstring(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
