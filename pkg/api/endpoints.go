package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/compliance"
	"github.com/hazyhaar/docudata/pkg/kit"
	"github.com/hazyhaar/docudata/pkg/library"
	"github.com/hazyhaar/docudata/pkg/session"
)

// Shared request/response types used by both HTTP and MCP transports.

var (
	errUnknownTemplate = errors.New("no template for component type")
	errNoPayload       = errors.New("either a dataset id or a file body is required")
)

type loadReq struct {
	SessionID    string
	Dataset      string // library id; wins over Data
	Data         []byte
	Name         string
	Encoding     string
	Jurisdiction string
}

type loadResponse struct {
	Session  session.Session `json:"session"`
	Stats    catalog.Stats   `json:"stats"`
	Warnings []string        `json:"warnings,omitempty"`
}

type searchReq struct {
	SessionID string
	Query     string
	Opts      session.Options
}

type complianceReq struct {
	SessionID string
	Against   string
	Opts      compliance.Options
}

type sessionReq struct {
	SessionID string
}

type templateReq struct {
	Type string
}

type datasetsResponse struct {
	Datasets []library.Info `json:"datasets"`
}

type jurisdictionsResponse struct {
	Jurisdictions []catalog.Jurisdiction `json:"jurisdictions"`
}

type templatesResponse struct {
	Templates []catalog.Template `json:"templates"`
}

// endpoints are the kit.Endpoints backed by the session store and library.
type endpoints struct {
	createSession     kit.Endpoint
	deleteSession     kit.Endpoint
	load              kit.Endpoint
	search            kit.Endpoint
	compliance        kit.Endpoint
	stats             kit.Endpoint
	listDatasets      kit.Endpoint
	listJurisdictions kit.Endpoint
	template          kit.Endpoint
}

func newEndpoints(svc Services) endpoints {
	wrap := func(name string, ep kit.Endpoint) kit.Endpoint {
		return kit.Logging(svc.Logger, name)(ep)
	}
	return endpoints{
		createSession:     wrap("create_session", createSessionEndpoint(svc.Sessions)),
		deleteSession:     wrap("delete_session", deleteSessionEndpoint(svc.Sessions)),
		load:              wrap("load_dataset", loadEndpoint(svc.Sessions)),
		search:            wrap("search", searchEndpoint(svc.Sessions)),
		compliance:        wrap("check_compliance", complianceEndpoint(svc.Sessions)),
		stats:             wrap("stats", statsEndpoint(svc.Sessions)),
		listDatasets:      wrap("list_datasets", listDatasetsEndpoint(svc.Library)),
		listJurisdictions: wrap("list_jurisdictions", listJurisdictionsEndpoint()),
		template:          wrap("template", templateEndpoint()),
	}
}

func createSessionEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return store.Create(), nil
	}
}

func deleteSessionEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*sessionReq)
		if err := store.Delete(req.SessionID); err != nil {
			return nil, err
		}
		return map[string]string{"deleted": req.SessionID}, nil
	}
}

func loadEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*loadReq)
		var (
			stats catalog.Stats
			err   error
		)
		switch {
		case req.Dataset != "":
			stats, err = store.LoadDataset(req.SessionID, req.Dataset)
		case len(req.Data) > 0:
			stats, err = store.Load(req.SessionID, req.Data, catalog.LoadOptions{
				Name:         req.Name,
				Encoding:     req.Encoding,
				Jurisdiction: req.Jurisdiction,
			})
		default:
			return nil, errNoPayload
		}
		if err != nil {
			return nil, err
		}
		resp := loadResponse{Stats: stats}
		resp.Session, err = store.Get(req.SessionID)
		if err != nil {
			return nil, err
		}
		if cat, err := store.Catalog(req.SessionID); err == nil {
			resp.Warnings = cat.Warnings
		}
		return resp, nil
	}
}

func searchEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*searchReq)
		return store.Search(req.SessionID, req.Query, req.Opts)
	}
}

func complianceEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*complianceReq)
		return store.Compliance(req.SessionID, req.Against, req.Opts)
	}
}

func statsEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*sessionReq)
		return store.Stats(req.SessionID)
	}
}

func listDatasetsEndpoint(lib *library.Registry) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		if lib == nil {
			return datasetsResponse{Datasets: []library.Info{}}, nil
		}
		return datasetsResponse{Datasets: lib.List()}, nil
	}
}

func listJurisdictionsEndpoint() kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return jurisdictionsResponse{Jurisdictions: catalog.Jurisdictions()}, nil
	}
}

func templateEndpoint() kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*templateReq)
		if strings.TrimSpace(req.Type) == "" {
			return templatesResponse{Templates: catalog.Templates()}, nil
		}
		t, ok := catalog.TemplateFor(req.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %q", errUnknownTemplate, req.Type)
		}
		return t, nil
	}
}
