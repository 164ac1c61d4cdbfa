package rpc

import (
	"bytes"
	"fmt"
	"net/http"
	"slices"

	"github.com/canopy-network/shardnode/lib"
	"github.com/canopy-network/shardnode/lib/crypto"
	"github.com/julienschmidt/httprouter"
)

/* This file contains the handlers of the peer protocol other storage nodes call */

// SyncShard() serves a page of a shard to the member that owns it in the requested epoch
func (s *Server) SyncShard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(lib.SyncShardRequest)
	if ok := s.unmarshal(w, r, req); !ok {
		return
	}
	if !req.CheckSignature() {
		write(w, ErrInvalidSignature(), http.StatusUnauthorized)
		return
	}
	if !req.SliverType.Valid() {
		write(w, ErrInvalidParams(fmt.Errorf("unknown sliver type %d", req.SliverType)), http.StatusBadRequest)
		return
	}
	if !s.committee.IsStorageNode(req.PublicKey) {
		write(w, ErrUnauthorized("the requester is not a storage node"), http.StatusForbidden)
		return
	}
	committee := s.committee.ActiveCommittees().CommitteeForEpoch(req.CurrentEpoch)
	if committee == nil {
		write(w, ErrUnknownEpoch(req.CurrentEpoch), http.StatusBadRequest)
		return
	}
	if !slices.Contains(committee.ShardsFor(req.PublicKey), req.Shard) {
		write(w, ErrUnauthorized(fmt.Sprintf("the requester does not own shard %d in epoch %d", req.Shard, req.CurrentEpoch)), http.StatusForbidden)
		return
	}
	count := req.SliverCount
	if limit := s.config.SyncShardSliverCount; limit > 0 && count > limit {
		count = limit
	}
	slivers, err := s.store.IterateSlivers(req.Shard, req.SliverType, req.StartingBlobID, count)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if slivers == nil {
		slivers = []lib.BlobSliver{}
	}
	write(w, slivers, http.StatusOK)
}

// Metadata() returns the metadata of a blob
func (s *Server) Metadata(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(metadataRequest)
	if ok := s.unmarshal(w, r, req); !ok {
		return
	}
	metadata, err := s.store.GetMetadata(req.BlobID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	write(w, metadata, http.StatusOK)
}

// Sliver() returns the sliver of a blob pair stored by one of this node's shards
func (s *Server) Sliver(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(sliverRequest)
	if ok := s.unmarshal(w, r, req); !ok {
		return
	}
	encoding := s.committee.EncodingConfig()
	if !req.SliverType.Valid() || uint16(req.PairIndex) >= encoding.NShards {
		write(w, ErrInvalidParams(fmt.Errorf("invalid sliver %d of type %d", req.PairIndex, req.SliverType)), http.StatusBadRequest)
		return
	}
	sliver, err := s.store.GetSliver(encoding.ShardForPair(req.PairIndex, req.BlobID), req.BlobID, req.SliverType)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	write(w, sliver, http.StatusOK)
}

// Inconsistency() attests that a blob is invalid when the evidence sliver does not match the committed pair hash
func (s *Server) Inconsistency(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	proof := new(lib.InconsistencyProof)
	if ok := s.unmarshal(w, r, proof); !ok {
		return
	}
	if len(proof.Evidence) == 0 || !proof.SliverType.Valid() {
		write(w, ErrInvalidParams(fmt.Errorf("the proof carries no evidence")), http.StatusBadRequest)
		return
	}
	metadata, err := s.store.GetMetadata(proof.BlobID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if int(proof.PairIndex) >= len(metadata.PairHashes) {
		write(w, ErrInvalidParams(fmt.Errorf("pair %d is out of range", proof.PairIndex)), http.StatusBadRequest)
		return
	}
	if bytes.Equal(crypto.Hash(proof.Evidence), metadata.PairHashes[proof.PairIndex]) {
		write(w, ErrInvalidParams(fmt.Errorf("the evidence is consistent with the blob metadata")), http.StatusBadRequest)
		return
	}
	write(w, lib.NewInvalidBlobAttestation(proof.BlobID, s.committee.ActiveCommittees().Epoch(), s.key), http.StatusOK)
}
