package committee

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/shardnode/lib"
	"github.com/cenkalti/backoff/v4"
)

/*
	The quorum request executors read the membership state once per operation, so each operation sees a stable
	epoch even if a committee change commits while it runs. They only borrow the registry and never modify it.
*/

// readCommittee() returns the committee that serves reads of a blob certified in certifiedEpoch
// A blob certified after the current epoch is served by the next committee once it is known
func readCommittee(committees lib.ActiveCommittees, certifiedEpoch lib.Epoch) *lib.Committee {
	if next := committees.NextCommittee(); next != nil && certifiedEpoch > committees.Epoch() {
		return next
	}
	return committees.CurrentCommittee()
}

// retryPolicy() returns the exponential backoff for the executor retry rounds
func (s *Service) retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = lib.MSToDuration(s.config.RetryInitialMS)
	b.MaxInterval = lib.MSToDuration(s.config.RetryMaxMS)
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, s.config.MaxRetries), ctx)
}

// withTimeout() bounds a single request
func withTimeout(ctx context.Context, ms uint64) (context.Context, context.CancelFunc) {
	if ms == 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, lib.MSToDuration(ms))
}

// GetAndVerifyMetadata() requests the metadata of a blob from the members in random order until one returns
// metadata for the blob; a failed round is retried with exponential backoff, at most MaxRetries times and
// never past the end of the context
func (s *Service) GetAndVerifyMetadata(ctx context.Context, blobID lib.BlobID, certifiedEpoch lib.Epoch) (*lib.BlobMetadata, lib.ErrorI) {
	committee := readCommittee(s.ActiveCommittees(), certifiedEpoch)
	var metadata *lib.BlobMetadata
	round := func() error {
		for _, member := range s.shuffled(committee.Members) {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if s.IsLocal(member.PublicKey) {
				continue
			}
			m, err := s.requestMetadata(ctx, member, blobID)
			if err != nil {
				s.log.Debugf("metadata request for %s to %s failed: %s", blobID, member, err.Error())
				continue
			}
			metadata = m
			return nil
		}
		return ErrNoMetadata(blobID)
	}
	err := backoff.Retry(round, s.retryPolicy(ctx))
	s.metrics.AddQuorumRequest("metadata", err)
	if err != nil {
		return nil, ErrNoMetadata(blobID)
	}
	return metadata, nil
}

// requestMetadata() requests and checks the metadata of a blob from one member
func (s *Service) requestMetadata(ctx context.Context, member *lib.Member, blobID lib.BlobID) (*lib.BlobMetadata, lib.ErrorI) {
	service, err := s.serviceFor(ctx, member)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, s.config.MetadataRequestTimeoutMS)
	defer cancel()
	m, err := service.GetMetadata(ctx, blobID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.BlobID != blobID || len(m.PairHashes) != int(s.encoding.NShards) {
		return nil, lib.ErrNode("metadata does not match the blob")
	}
	return m, nil
}

// RecoverSliver() requests a sliver first from the member owning the shard that stores it, then from the
// remaining members in random order; rounds are retried with exponential backoff until the context ends
func (s *Service) RecoverSliver(ctx context.Context, metadata *lib.BlobMetadata, pair lib.SliverPairIndex,
	sliverType lib.SliverType, certifiedEpoch lib.Epoch) (*lib.Sliver, lib.ErrorI) {
	committee := readCommittee(s.ActiveCommittees(), certifiedEpoch)
	shard := s.encoding.ShardForPair(pair, metadata.BlobID)
	var sliver *lib.Sliver
	round := func() error {
		for _, member := range s.sliverRequestOrder(committee, shard) {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			got, err := s.requestSliver(ctx, member, metadata.BlobID, pair, sliverType)
			if err != nil {
				s.log.Debugf("sliver request for %s to %s failed: %s", metadata.BlobID, member, err.Error())
				continue
			}
			sliver = got
			return nil
		}
		return ErrNoSliver(metadata.BlobID, pair, sliverType)
	}
	err := backoff.Retry(round, s.retryPolicy(ctx))
	s.metrics.AddQuorumRequest("sliver", err)
	if err != nil {
		return nil, ErrNoSliver(metadata.BlobID, pair, sliverType)
	}
	return sliver, nil
}

// sliverRequestOrder() returns the shard owner followed by the other members in random order
func (s *Service) sliverRequestOrder(committee *lib.Committee, shard lib.ShardIndex) []*lib.Member {
	owner, err := committee.MemberForShard(shard)
	if err != nil {
		return s.shuffled(committee.Members)
	}
	order := []*lib.Member{owner}
	for _, m := range s.shuffled(committee.Members) {
		if !bytes.Equal(m.PublicKey, owner.PublicKey) {
			order = append(order, m)
		}
	}
	return order
}

// requestSliver() requests and checks a sliver from one member
func (s *Service) requestSliver(ctx context.Context, member *lib.Member, blobID lib.BlobID,
	pair lib.SliverPairIndex, sliverType lib.SliverType) (*lib.Sliver, lib.ErrorI) {
	service, err := s.serviceFor(ctx, member)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, s.config.SliverRequestTimeoutMS)
	defer cancel()
	sliver, err := service.GetSliver(ctx, blobID, pair, sliverType)
	if err != nil {
		return nil, err
	}
	if sliver == nil || sliver.BlobID != blobID || sliver.PairIndex != pair || sliver.Type != sliverType {
		return nil, lib.ErrNode("sliver does not match the request")
	}
	return sliver, nil
}

// GetInvalidBlobCertificate() submits the inconsistency proof to every member concurrently and aggregates
// their signed attestations until the signers hold a quorum of the shards
func (s *Service) GetInvalidBlobCertificate(ctx context.Context, blobID lib.BlobID, proof *lib.InconsistencyProof) (*lib.InvalidBlobCertificate, lib.ErrorI) {
	committee := s.Committee()
	threshold := s.encoding.QuorumThreshold()
	ctx, cancel := withTimeout(ctx, s.config.InvalidityCertTimeoutMS)
	defer cancel()
	var (
		mu          sync.Mutex
		weight      uint16
		certificate = &lib.InvalidBlobCertificate{BlobID: blobID, Epoch: committee.Epoch}
	)
	pool := pond.NewPool(max(s.config.MaxConcurrentRequests, 1), pond.WithQueueSize(len(committee.Members)))
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, member := range committee.Members {
		member := member
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			attestation, err := s.requestAttestation(groupCtx, member, blobID, committee.Epoch, proof)
			if err != nil {
				s.log.Debugf("invalid blob attestation for %s from %s failed: %s", blobID, member, err.Error())
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if weight >= threshold {
				return
			}
			weight += uint16(len(member.Shards))
			certificate.Signers = append(certificate.Signers, attestation.PublicKey)
			certificate.Signatures = append(certificate.Signatures, attestation.Signature)
			// stop the remaining requests once a quorum is reached
			if weight >= threshold {
				cancel()
			}
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, pond.ErrGroupStopped) {
		s.log.Warnf("invalid blob certificate tasks failed: %s", err.Error())
	}
	mu.Lock()
	defer mu.Unlock()
	if weight < threshold {
		err := ErrNoCertificateQuorum(blobID, weight, threshold)
		s.metrics.AddQuorumRequest("certificate", err)
		return nil, err
	}
	s.metrics.AddQuorumRequest("certificate", nil)
	return certificate, nil
}

// requestAttestation() submits the proof to one member and verifies the returned attestation
func (s *Service) requestAttestation(ctx context.Context, member *lib.Member, blobID lib.BlobID, epoch lib.Epoch,
	proof *lib.InconsistencyProof) (*lib.InvalidBlobAttestation, lib.ErrorI) {
	service, err := s.serviceFor(ctx, member)
	if err != nil {
		return nil, err
	}
	attestation, err := service.SubmitInconsistencyProof(ctx, proof)
	if err != nil {
		return nil, err
	}
	switch {
	case attestation == nil, attestation.BlobID != blobID, attestation.Epoch != epoch:
		return nil, lib.ErrNode("attestation does not match the request")
	case !bytes.Equal(attestation.PublicKey, member.PublicKey), !attestation.CheckSignature():
		return nil, lib.ErrNode("attestation signature is invalid")
	}
	return attestation, nil
}
