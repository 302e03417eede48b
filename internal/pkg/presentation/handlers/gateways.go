package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/registry"
	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
)

// createGatewayRequest is the body of POST /gateways.
type createGatewayRequest struct {
	Databases []domain.DatabaseRef `json:"databases"`
	ID        string                `json:"id,omitempty"`
}

type gatewayResponse struct {
	Data domain.Gateway `json:"data"`
}

type gatewaysListResponse struct {
	Data []domain.Gateway `json:"data"`
	Meta listMeta         `json:"meta"`
}

type listMeta struct {
	DataReturned  int `json:"data_returned"`
	DataAvailable int `json:"data_available"`
}

// NewCreateOrResolveGatewayHandler implements POST /gateways: resolve or
// create a gateway for the given database set, 201 if a new record was
// inserted, 200 if an existing one was matched.
func NewCreateOrResolveGatewayHandler(logger zerolog.Logger, reg registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger

		var body createGatewayRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, log, http.StatusBadRequest, "malformed request body", err.Error())
			return
		}

		if len(body.Databases) == 0 {
			writeError(w, log, http.StatusBadRequest, "missing databases", "a gateway must reference at least one database")
			return
		}

		gateway, created, err := reg.ResolveOrCreate(r.Context(), body.Databases, body.ID)
		if err != nil {
			status, title := statusForDomainError(err)
			writeError(w, log, status, title, err.Error())
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, gatewayResponse{Data: gateway})
	}
}

// NewListGatewaysHandler implements GET /gateways.
func NewListGatewaysHandler(logger zerolog.Logger, reg registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger

		skip, limit := pagination(r)

		gateways, total, err := reg.ListGateways(r.Context(), parseFilter(r), skip, limit)
		if err != nil {
			writeError(w, log, http.StatusInternalServerError, "internal error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, gatewaysListResponse{
			Data: gateways,
			Meta: listMeta{DataReturned: len(gateways), DataAvailable: int(total)},
		})
	}
}

// NewGetGatewayHandler implements GET /gateways/{id}.
func NewGetGatewayHandler(logger zerolog.Logger, reg registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger

		id := chi.URLParam(r, "id")
		gateway, err := reg.GetGateway(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, log, http.StatusNotFound, "gateway not found", "no gateway with id "+id)
				return
			}
			writeError(w, log, http.StatusInternalServerError, "internal error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, gatewayResponse{Data: gateway})
	}
}

// pagination reads page_limit/page_offset, defaulting to an unlimited
// page (0) and no offset.
func pagination(r *http.Request) (skip, limit int64) {
	if v := r.URL.Query().Get("page_offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			skip = n
		}
	}
	if v := r.URL.Query().Get("page_limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	return skip, limit
}

// parseFilter turns the OPTIMADE `filter` query parameter, when it is a
// simple `id="..."` equality, into a store-level equality filter. More
// elaborate filters are out of scope for gateway/query listings; the
// filter grammar is only ever passed through to upstream databases.
func parseFilter(r *http.Request) bson.M {
	filter := strings.TrimSpace(r.URL.Query().Get("filter"))
	const prefix = `id="`
	if strings.HasPrefix(filter, prefix) && strings.HasSuffix(filter, `"`) && len(filter) > len(prefix) {
		if id := filter[len(prefix) : len(filter)-1]; !strings.Contains(id, `"`) {
			return bson.M{"id": id}
		}
	}
	return bson.M{}
}
