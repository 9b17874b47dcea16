// Package v1 implements the NGSI-LD entity query surface and the admin
// server-info CRUD endpoints.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/datumgrid/gis-resource-server/internal/api/common"
	"github.com/datumgrid/gis-resource-server/internal/logger"
	"github.com/datumgrid/gis-resource-server/internal/service"
)

// auditTimeout bounds the asynchronous metering write that follows a
// successful query.
const auditTimeout = 10 * time.Second

// Routes serves the versioned API.
type Routes struct {
	db       service.Database
	metering service.Metering
}

// NewRoutes creates the v1 route handlers.
func NewRoutes(db service.Database, metering service.Metering) *Routes {
	return &Routes{db: db, metering: metering}
}

// Router mounts the handlers on a fresh chi router. Introspection is applied
// by the caller; handlers assume an authorized context is present.
func (routes *Routes) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/ngsi-ld/v1/entities", routes.searchEntities)
	r.Get("/ngsi-ld/v1/entities/{domain}/{userSha}/{resourceServer}/{resourceGroup}/{resourceName}", routes.searchEntities)

	r.Post("/admin/gis/serverInfo", routes.insertServerInfo)
	r.Put("/admin/gis/serverInfo", routes.updateServerInfo)
	r.Delete("/admin/gis/serverInfo", routes.deleteServerInfo)

	return r
}

// searchEntities handles both the query-parameter and path forms of the
// entity lookup.
func (routes *Routes) searchEntities(w http.ResponseWriter, r *http.Request) {
	resourceID := common.ResourceIDFrom(r)
	if resourceID == "" {
		common.WriteErrorResponse(w, http.StatusBadRequest, common.URNBadRequest,
			"missing resource id")
		return
	}

	results, err := routes.db.SearchQuery(r.Context(), resourceID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			common.WriteErrorResponse(w, http.StatusNotFound, common.URNResourceNotFound,
				"no records found for resource")
			return
		}
		logger.Errorf("entity search failed for %s: %v", resourceID, err)
		common.WriteErrorResponse(w, http.StatusInternalServerError, common.URNBackendError,
			"query execution failed")
		return
	}

	routes.audit(r, resourceID)
	common.WriteSuccessResponse(w, results)
}

// audit writes a metering record off the request path. A failed write is
// logged and never affects the response.
func (routes *Routes) audit(r *http.Request, resourceID string) {
	authCtx := common.AuthorizedContextFrom(r.Context())
	if authCtx == nil {
		return
	}
	record := service.AuditRecord{
		UserID:     authCtx.UserID,
		ResourceID: resourceID,
		Endpoint:   r.URL.Path,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := routes.metering.WriteAudit(ctx, record); err != nil {
			logger.Errorf("audit write failed for %s: %v", record.ResourceID, err)
		}
	}()
}

func (routes *Routes) insertServerInfo(w http.ResponseWriter, r *http.Request) {
	info, ok := decodeServerInfo(w, r)
	if !ok {
		return
	}
	if err := routes.db.InsertAdminDetails(r.Context(), info); err != nil {
		logger.Errorf("server info insert failed for %s: %v", info.ResourceID, err)
		common.WriteErrorResponse(w, http.StatusBadRequest, common.URNBadRequest,
			"failed to store server info")
		return
	}
	common.WriteSuccessResponse(w, []service.ServerInfo{info})
}

func (routes *Routes) updateServerInfo(w http.ResponseWriter, r *http.Request) {
	info, ok := decodeServerInfo(w, r)
	if !ok {
		return
	}
	if err := routes.db.UpdateAdminDetails(r.Context(), info); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			common.WriteErrorResponse(w, http.StatusNotFound, common.URNResourceNotFound,
				"no records found for resource")
			return
		}
		logger.Errorf("server info update failed for %s: %v", info.ResourceID, err)
		common.WriteErrorResponse(w, http.StatusInternalServerError, common.URNBackendError,
			"failed to update server info")
		return
	}
	common.WriteSuccessResponse(w, []service.ServerInfo{info})
}

func (routes *Routes) deleteServerInfo(w http.ResponseWriter, r *http.Request) {
	resourceID := r.URL.Query().Get("id")
	if resourceID == "" {
		common.WriteErrorResponse(w, http.StatusBadRequest, common.URNBadRequest,
			"missing resource id")
		return
	}
	if err := routes.db.DeleteAdminDetails(r.Context(), resourceID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			common.WriteErrorResponse(w, http.StatusNotFound, common.URNResourceNotFound,
				"no records found for resource")
			return
		}
		logger.Errorf("server info delete failed for %s: %v", resourceID, err)
		common.WriteErrorResponse(w, http.StatusInternalServerError, common.URNBackendError,
			"failed to delete server info")
		return
	}
	common.WriteSuccessResponse(w, map[string]string{"id": resourceID})
}

// decodeServerInfo parses and validates the admin request body. It writes
// the error response itself when the body is unusable.
func decodeServerInfo(w http.ResponseWriter, r *http.Request) (service.ServerInfo, bool) {
	var info service.ServerInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		common.WriteErrorResponse(w, http.StatusBadRequest, common.URNBadRequest,
			"invalid request body")
		return service.ServerInfo{}, false
	}
	if info.ResourceID == "" || info.ServerURL == "" {
		common.WriteErrorResponse(w, http.StatusBadRequest, common.URNBadRequest,
			"id and server-url are required")
		return service.ServerInfo{}, false
	}
	return info, true
}
