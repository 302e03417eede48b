package handlers

import (
	"net/http"
	"strings"
)

// optimadeAPIVersion is the full OPTIMADE API version this gateway
// speaks, both upstream and on its own surface.
const optimadeAPIVersion = "1.1.0"

type infoResponse struct {
	Data infoData `json:"data"`
}

type infoData struct {
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	Attributes infoAttrs    `json:"attributes"`
}

type infoAttrs struct {
	APIVersion            string              `json:"api_version"`
	AvailableAPIVersions  []apiVersionEntry    `json:"available_api_versions"`
	EntryTypesByFormat    map[string][]string `json:"entry_types_by_format"`
	IsIndex               bool                `json:"is_index"`
}

type apiVersionEntry struct {
	URL     string `json:"url"`
	Version string `json:"version"`
}

// NewInfoHandler implements GET /info: the gateway reports itself as
// an entry-listing API whose only entry type is "structures", matching
// the merged response shape the orchestrator produces.
func NewInfoHandler(baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, infoResponse{Data: infoData{
			ID:   "/",
			Type: "info",
			Attributes: infoAttrs{
				APIVersion: optimadeAPIVersion,
				AvailableAPIVersions: []apiVersionEntry{
					{URL: baseURL + "/v1", Version: optimadeAPIVersion},
				},
				EntryTypesByFormat: map[string][]string{
					"json": {"structures"},
				},
				IsIndex: false,
			},
		}})
	}
}

type linksResponse struct {
	Data []linkEntry `json:"data"`
}

type linkEntry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// NewLinksHandler implements GET /links. A gateway has no index-meta-db
// relationships of its own to report; it returns an empty collection
// rather than omitting the endpoint.
func NewLinksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, linksResponse{Data: []linkEntry{}})
	}
}

type versionsResponse struct {
	Version string `json:"version"`
}

// NewVersionsHandler implements GET /versions, the CSV endpoint the
// OPTIMADE protocol defines for negotiating available major versions.
func NewVersionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; header=present")
		w.WriteHeader(http.StatusOK)
		major := strings.SplitN(optimadeAPIVersion, ".", 2)[0]
		_, _ = w.Write([]byte("version\n" + major + "\n"))
	}
}
