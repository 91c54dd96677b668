// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoind

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// dialTimeout bounds establishing the TCP connection to bitcoind.
	dialTimeout = 10 * time.Second

	// maxResponseSize bounds the size of a JSON-RPC reply body.
	maxResponseSize = 32 << 20
)

var (
	// startupTimeout is how long Open keeps polling a node that reports
	// it is still warming up.
	startupTimeout = 30 * time.Second

	// startupRetryInterval is the delay between genesis queries while the
	// node is warming up.
	startupRetryInterval = time.Second

	// errClientShutdown is returned by requests made after Shutdown.
	errClientShutdown = errors.New("rpc client shut down")
)

// rpcClient is the RPC session the gateway drives. Implementations are not
// safe for concurrent requests, so every call is made with the gateway mutex
// held.
type rpcClient interface {
	// RawRequest sends a JSON-RPC request with positional params and
	// returns the raw result. Errors reported by the node are returned as
	// *btcjson.RPCError; any other error is a transport failure.
	RawRequest(method string, params []json.RawMessage) (json.RawMessage,
		error)

	// GetBlockHash returns the hash of the block at the given height.
	GetBlockHash(blockHeight int64) (*chainhash.Hash, error)

	// Shutdown stops the client.
	Shutdown()
}

// credentialSource yields the basic auth pair for the next request.
type credentialSource interface {
	userPass() (string, string, error)
}

// staticCredentials is a fixed rpcuser/rpcpassword pair.
type staticCredentials struct {
	user string
	pass string
}

func (s staticCredentials) userPass() (string, string, error) {
	return s.user, s.pass, nil
}

// cookieCredentials reads the pair from a bitcoind cookie file, reloading it
// whenever the file's modification time changes.
type cookieCredentials struct {
	path    string
	modTime time.Time
	user    string
	pass    string
}

func (c *cookieCredentials) userPass() (string, string, error) {
	st, err := os.Stat(c.path)
	if err != nil {
		return "", "", fmt.Errorf("cookie file: %w", err)
	}
	if c.user != "" && st.ModTime().Equal(c.modTime) {
		return c.user, c.pass, nil
	}

	f, err := os.Open(c.path)
	if err != nil {
		return "", "", fmt.Errorf("cookie file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan()
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("cookie file: %w", err)
	}

	user, pass, ok := strings.Cut(scanner.Text(), ":")
	if !ok || user == "" {
		return "", "", fmt.Errorf("malformed cookie file %s", c.path)
	}
	c.user, c.pass, c.modTime = user, pass, st.ModTime()

	return user, pass, nil
}

// httpClient speaks JSON-RPC 1.0 to bitcoind over HTTP POST. Every request is
// sent exactly once on a fresh connection: a request that fails in transit is
// reported to the caller, never re-sent, since bitcoind may already have
// acted on it.
type httpClient struct {
	url    string
	creds  credentialSource
	client *http.Client
	nextID uint64
	closed bool
}

// A compile-time assertion to ensure *httpClient satisfies rpcClient.
var _ rpcClient = (*httpClient)(nil)

// newRPCClient builds a client for the bitcoind RPC server in cfg. No request
// is sent yet.
func newRPCClient(cfg *Config) *httpClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: dialTimeout,
		}).DialContext,
		DisableKeepAlives: true,
	}

	return &httpClient{
		url:    "http://" + cfg.Host,
		creds:  cfg.Auth.credentials(),
		client: &http.Client{Transport: transport},
	}
}

// RawRequest sends one JSON-RPC request and returns its result.
func (c *httpClient) RawRequest(method string,
	params []json.RawMessage) (json.RawMessage, error) {

	if c.closed {
		return nil, errClientShutdown
	}

	c.nextID++
	args := make([]interface{}, 0, len(params))
	for _, p := range params {
		args = append(args, p)
	}
	req, err := btcjson.NewRequest(btcjson.RpcVersion1, c.nextID, method,
		args)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	user, pass, err := c.creds.userPass()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(
		http.MethodPost, c.url, bytes.NewReader(body),
	)
	if err != nil {
		return nil, err
	}
	httpReq.Close = true
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(user, pass)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	respBytes, err := io.ReadAll(io.LimitReader(httpResp.Body,
		maxResponseSize))
	httpResp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("error reading json reply: %w", err)
	}

	// bitcoind answers RPC errors with a non-2xx status and a JSON body,
	// so the status only matters when the body is not a reply.
	var resp btcjson.Response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("status code: %d, response: %q",
			httpResp.StatusCode, string(respBytes))
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.Result, nil
}

// GetBlockHash returns the hash of the block at blockHeight.
func (c *httpClient) GetBlockHash(blockHeight int64) (*chainhash.Hash,
	error) {

	param, err := json.Marshal(blockHeight)
	if err != nil {
		return nil, err
	}
	raw, err := c.RawRequest("getblockhash", []json.RawMessage{param})
	if err != nil {
		return nil, err
	}

	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return nil, fmt.Errorf("malformed getblockhash result: %w", err)
	}

	return chainhash.NewHashFromStr(hash)
}

// Shutdown makes the client refuse further requests.
func (c *httpClient) Shutdown() {
	c.closed = true
	c.client.CloseIdleConnections()
}

// isWarmingUp reports whether err is bitcoind's reply while it is still
// loading the block index or verifying blocks.
func isWarmingUp(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCInWarmup
}

// genesisHash queries the hash of block 0. While the node is warming up the
// query is repeated every startupRetryInterval until startupTimeout; this is
// the only request the gateway ever repeats, and only after the node
// answered it with a warm-up error.
func genesisHash(client rpcClient) (*chainhash.Hash, error) {
	hash, err := client.GetBlockHash(0)
	if err == nil || !isWarmingUp(err) {
		return hash, err
	}

	log.Infof("Waiting for bitcoind to finish loading: %v", err)

	timeout := time.After(startupTimeout)
	for {
		select {
		case <-timeout:
			return nil, fmt.Errorf("bitcoind start timeout: %w", err)

		case <-time.After(startupRetryInterval):
			hash, err = client.GetBlockHash(0)
			if err == nil || !isWarmingUp(err) {
				return hash, err
			}
		}
	}
}

// verifyNetwork returns an error unless the node's genesis block matches
// params.
func verifyNetwork(client rpcClient, params *chaincfg.Params) error {
	hash, err := genesisHash(client)
	if err != nil {
		return gatewayError(ErrConnection,
			"unable to query genesis block", err)
	}

	if !hash.IsEqual(params.GenesisHash) {
		str := fmt.Sprintf("node genesis block %v does not match "+
			"network %s", hash, params.Name)
		return gatewayError(ErrConnection, str, nil)
	}

	return nil
}

// marshalParams encodes positional RPC params.
func marshalParams(params []interface{}) ([]json.RawMessage, error) {
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}

	return raw, nil
}

// isRPCError reports whether err is a JSON-RPC error produced by bitcoind,
// as opposed to a transport failure.
func isRPCError(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr)
}
