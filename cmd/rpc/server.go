package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/canopy-network/shardnode/lib"
	"github.com/canopy-network/shardnode/lib/crypto"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

const (
	colon = ":"

	SoftwareVersion = "0.1.0-alpha"
	ContentType     = "Content-Type"
	ApplicationJSON = "application/json; charset=utf-8"
)

// CommitteeI is the view of the committee service the rpc server reads
type CommitteeI interface {
	ActiveCommittees() lib.ActiveCommittees
	Tracker() lib.CommitteeTracker
	IsStorageNode(publicKey []byte) bool
	EncodingConfig() *lib.EncodingConfig
}

// Server serves the storage node peer protocol and the admin queries
type Server struct {
	// the membership state of the node
	committee CommitteeI
	// the slivers and metadata this node stores
	store lib.RSliverStoreI
	// the protocol key signing attestations
	key crypto.PrivateKeyI
	// storage node configuration
	config lib.Config
	// the listening http server, nil until Start()
	server *http.Server

	logger lib.LoggerI
}

// NewServer constructs and returns a new storage node RPC server
func NewServer(committee CommitteeI, store lib.RSliverStoreI, key crypto.PrivateKeyI, config lib.Config, logger lib.LoggerI) *Server {
	return &Server{
		committee: committee,
		store:     store,
		key:       key,
		config:    config,
		logger:    logger,
	}
}

// Handler() returns the router wrapped in the CORS policy and request timeout
func (s *Server) Handler() http.Handler {
	// Create CORS policy
	cor := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS", "POST"},
	})
	// Create a default timeout for HTTP requests
	timeout := time.Duration(s.config.TimeoutS) * time.Second
	return cor.Handler(http.TimeoutHandler(createRouter(s), timeout, lib.ErrServerTimeout().Error()))
}

// Start() begins serving the RPC in the background
func (s *Server) Start() {
	s.server = &http.Server{Addr: colon + s.config.RPCPort, Handler: s.Handler()}
	s.logger.Infof("Starting RPC server at 0.0.0.0:%s", s.config.RPCPort)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Fatal(err.Error())
		}
	}()
}

// Stop() gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// logHandler serves as a middleware that logs incoming RPC calls for debugging purposes.
type logHandler struct {
	path   string
	h      httprouter.Handle
	logger lib.LoggerI
}

// Handle
func (h logHandler) Handle(resp http.ResponseWriter, req *http.Request, p httprouter.Params) {
	h.logger.Debug(h.path)
	// Call the actual handler function with the response, request, and parameters.
	h.h(resp, req, p)
}

// unmarshal reads request body and unmarshals it into ptr
func (s *Server) unmarshal(w http.ResponseWriter, r *http.Request, ptr any) bool {
	defer func() { _ = r.Body.Close() }()
	bz, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestBytes))
	if err != nil {
		write(w, ErrInvalidParams(err), http.StatusBadRequest)
		return false
	}
	if err = json.Unmarshal(bz, ptr); err != nil {
		write(w, ErrInvalidParams(err), http.StatusBadRequest)
		return false
	}
	return true
}

// write marshaled payload to w
func write(w http.ResponseWriter, payload any, code int) {
	w.Header().Set(ContentType, ApplicationJSON)
	w.WriteHeader(code)
	bz, _ := json.MarshalIndent(payload, "", "  ")
	_, _ = w.Write(bz)
}

// writeStoreErr() maps a store error to its http status
func writeStoreErr(w http.ResponseWriter, err lib.ErrorI) {
	if lib.IsCode(err, lib.StorageModule, lib.CodeNotFoundInDB) {
		write(w, err, http.StatusNotFound)
		return
	}
	write(w, err, http.StatusInternalServerError)
}
