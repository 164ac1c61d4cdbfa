package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/canopy-network/shardnode/lib"
	"github.com/mxk/go-flowrate/flowrate"
)

var (
	_ lib.NodeServiceI        = new(Client)
	_ lib.CommitteeLookupI    = new(Client)
	_ lib.NodeServiceFactoryI = NewNodeServiceFactory(lib.DefaultRPCConfig())
)

// Client calls the rpc of a storage node
// It serves as the NodeServiceI of a remote committee member and as the committee lookup of a root chain
type Client struct {
	rpcURL           string
	maxResponseBytes int64 // the largest response body read, 0 is unlimited
	syncBytesPerSec  int64 // the download rate cap of shard sync pages, 0 is unlimited
	client           http.Client
}

// NewClient() creates a client of the rpc hosted at rpcURL
func NewClient(rpcURL string, timeout time.Duration, maxResponseBytes int64) *Client {
	return &Client{
		rpcURL:           strings.TrimSuffix(rpcURL, "/"),
		maxResponseBytes: maxResponseBytes,
		client:           http.Client{Timeout: timeout},
	}
}

// WithSyncShardRate() caps the download rate of shard sync pages
func (c *Client) WithSyncShardRate(bytesPerSec int64) *Client {
	c.syncBytesPerSec = bytesPerSec
	return c
}

// NewNodeServiceFactory() returns a factory that connects to committee members over their rpc
func NewNodeServiceFactory(config lib.RPCConfig) lib.NodeServiceFactoryI {
	return lib.NodeServiceFactoryFunc(func(ctx context.Context, member *lib.Member, _ *lib.EncodingConfig) (lib.NodeServiceI, lib.ErrorI) {
		if err := ctx.Err(); err != nil {
			return nil, ErrNewRequest(err)
		}
		u, err := url.Parse(member.NetAddress)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, ErrInvalidAddress(member.NetAddress)
		}
		timeout := time.Duration(config.TimeoutS) * time.Second
		return NewClient(member.NetAddress, timeout, config.MaxResponseBytes).WithSyncShardRate(config.SyncShardBytesPerSec), nil
	})
}

func (c *Client) Version(ctx context.Context) (version *string, err lib.ErrorI) {
	version = new(string)
	err = c.get(ctx, VersionRouteName, version)
	return
}

// GetActiveCommittees() reads the committee window published by the rpc
func (c *Client) GetActiveCommittees(ctx context.Context) (committees lib.ActiveCommittees, err lib.ErrorI) {
	err = c.get(ctx, CommitteesRouteName, &committees)
	return
}

func (c *Client) Tracker(ctx context.Context) (p *json.RawMessage, err lib.ErrorI) {
	p = new(json.RawMessage)
	err = c.get(ctx, TrackerRouteName, p)
	return
}

func (c *Client) Config(ctx context.Context) (p *lib.Config, err lib.ErrorI) {
	p = new(lib.Config)
	err = c.get(ctx, ConfigRouteName, p)
	return
}

func (c *Client) ResourceUsage(ctx context.Context) (p *resourceUsageResponse, err lib.ErrorI) {
	p = new(resourceUsageResponse)
	err = c.get(ctx, ResourceUsageRouteName, p)
	return
}

// SyncShard() requests a page of slivers from the previous owner of a shard
func (c *Client) SyncShard(ctx context.Context, request *lib.SyncShardRequest) (slivers []lib.BlobSliver, err lib.ErrorI) {
	err = c.post(ctx, SyncShardRouteName, request, &slivers, c.syncBytesPerSec)
	return
}

func (c *Client) GetMetadata(ctx context.Context, blobID lib.BlobID) (p *lib.BlobMetadata, err lib.ErrorI) {
	p = new(lib.BlobMetadata)
	err = c.post(ctx, MetadataRouteName, metadataRequest{BlobID: blobID}, p, 0)
	return
}

func (c *Client) GetSliver(ctx context.Context, blobID lib.BlobID, pair lib.SliverPairIndex, sliverType lib.SliverType) (p *lib.Sliver, err lib.ErrorI) {
	p = new(lib.Sliver)
	err = c.post(ctx, SliverRouteName, sliverRequest{BlobID: blobID, PairIndex: pair, SliverType: sliverType}, p, 0)
	return
}

func (c *Client) SubmitInconsistencyProof(ctx context.Context, proof *lib.InconsistencyProof) (p *lib.InvalidBlobAttestation, err lib.ErrorI) {
	p = new(lib.InvalidBlobAttestation)
	err = c.post(ctx, InconsistencyRouteName, proof, p, 0)
	return
}

func (c *Client) url(routeName string) string {
	return c.rpcURL + routePaths[routeName].Path
}

func (c *Client) post(ctx context.Context, routeName string, payload, ptr any, bytesPerSec int64) lib.ErrorI {
	bz, err := lib.MarshalJSON(payload)
	if err != nil {
		return err
	}
	req, e := http.NewRequestWithContext(ctx, http.MethodPost, c.url(routeName), bytes.NewReader(bz))
	if e != nil {
		return ErrNewRequest(e)
	}
	req.Header.Set(ContentType, ApplicationJSON)
	resp, e := c.client.Do(req)
	if e != nil {
		return ErrPostRequest(e)
	}
	return c.unmarshal(resp, ptr, bytesPerSec)
}

func (c *Client) get(ctx context.Context, routeName string, ptr any) lib.ErrorI {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(routeName), nil)
	if err != nil {
		return ErrNewRequest(err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return ErrGetRequest(err)
	}
	return c.unmarshal(resp, ptr, 0)
}

// unmarshal() reads the response body into ptr
// An error reported by the remote node is returned as lib.ErrNode so callers can tell it apart from transport failures
func (c *Client) unmarshal(resp *http.Response, ptr any, bytesPerSec int64) lib.ErrorI {
	defer func() { _ = resp.Body.Close() }()
	var body io.Reader = resp.Body
	if c.maxResponseBytes > 0 {
		body = io.LimitReader(body, c.maxResponseBytes)
	}
	if bytesPerSec > 0 {
		body = flowrate.NewReader(body, bytesPerSec)
	}
	bz, err := io.ReadAll(body)
	if err != nil {
		return ErrReadBody(err)
	}
	if resp.StatusCode != http.StatusOK {
		nodeErr := new(lib.Error)
		if e := json.Unmarshal(bz, nodeErr); e == nil && nodeErr.Msg != "" {
			return lib.ErrNode(nodeErr.Msg)
		}
		return ErrHttpStatus(resp.Status, resp.StatusCode, bz)
	}
	return lib.UnmarshalJSON(bz, ptr)
}
