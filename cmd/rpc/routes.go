package rpc

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Storage node RPC Paths
const (
	VersionRoutePath    = "/v1/"
	CommitteesRoutePath = "/v1/committees"
	// remote peer protocol
	SyncShardRoutePath     = "/v1/node/sync-shard"
	MetadataRoutePath      = "/v1/node/metadata"
	SliverRoutePath        = "/v1/node/sliver"
	InconsistencyRoutePath = "/v1/node/inconsistency"
	// admin
	TrackerRoutePath       = "/v1/admin/tracker"
	ConfigRoutePath        = "/v1/admin/config"
	ResourceUsageRoutePath = "/v1/admin/resource-usage"
)

const (
	VersionRouteName       = "version"
	CommitteesRouteName    = "committees"
	SyncShardRouteName     = "sync-shard"
	MetadataRouteName      = "metadata"
	SliverRouteName        = "sliver"
	InconsistencyRouteName = "inconsistency"
	TrackerRouteName       = "tracker"
	ConfigRouteName        = "config"
	ResourceUsageRouteName = "resource-usage"
)

// routes contains the method and path for a storage node command
type routes map[string]struct {
	Method string
	Path   string
}

// routePaths is a mapping from route names to their corresponding HTTP methods and paths
var routePaths = routes{
	VersionRouteName:       {Method: http.MethodGet, Path: VersionRoutePath},
	CommitteesRouteName:    {Method: http.MethodGet, Path: CommitteesRoutePath},
	SyncShardRouteName:     {Method: http.MethodPost, Path: SyncShardRoutePath},
	MetadataRouteName:      {Method: http.MethodPost, Path: MetadataRoutePath},
	SliverRouteName:        {Method: http.MethodPost, Path: SliverRoutePath},
	InconsistencyRouteName: {Method: http.MethodPost, Path: InconsistencyRoutePath},
	TrackerRouteName:       {Method: http.MethodGet, Path: TrackerRoutePath},
	ConfigRouteName:        {Method: http.MethodGet, Path: ConfigRoutePath},
	ResourceUsageRouteName: {Method: http.MethodGet, Path: ResourceUsageRoutePath},
}

// httpRouteHandlers is a custom type that maps strings to httprouter handle functions
type httpRouteHandlers map[string]httprouter.Handle

// createRouter initializes and returns a new HTTP router with predefined route handlers
func createRouter(s *Server) *httprouter.Router {
	var r = httpRouteHandlers{
		VersionRouteName:       s.Version,
		CommitteesRouteName:    s.Committees,
		SyncShardRouteName:     s.SyncShard,
		MetadataRouteName:      s.Metadata,
		SliverRouteName:        s.Sliver,
		InconsistencyRouteName: s.Inconsistency,
		TrackerRouteName:       s.Tracker,
		ConfigRouteName:        s.Config,
		ResourceUsageRouteName: s.ResourceUsage,
	}
	router := httprouter.New()
	for name, handler := range r {
		// Retrieve the path configuration for the current route name.
		path := routePaths[name]
		// Add the handler for the specific path and HTTP method to the router.
		router.Handle(path.Method, path.Path, logHandler{path.Path, handler, s.logger}.Handle)
	}
	return router
}
