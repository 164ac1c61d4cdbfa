package rpc

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Version responds with the software version
func (s *Server) Version(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, SoftwareVersion, http.StatusOK)
}

// Committees responds with the active committee window known to this node
// Another node configured with this node as its root chain reads the window from here
func (s *Server) Committees(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, s.committee.ActiveCommittees(), http.StatusOK)
}
