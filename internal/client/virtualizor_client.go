package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tradecopia/vps-service/internal/config"
)

// Scope selects which credential pair and base URL an upstream call uses.
type Scope string

const (
	// ScopeAdmin talks to the admin panel (server and user management).
	ScopeAdmin Scope = "admin"
	// ScopeCloud talks to the tenant-facing panel (end-user signup).
	ScopeCloud Scope = "cloud"
)

var (
	// ErrUserNotFound means a lookup by email matched no panel user.
	ErrUserNotFound = errors.New("no virtualizor user matches that email")
	// ErrServerNotFound means a lookup by email matched no virtual server.
	ErrServerNotFound = errors.New("no virtual server matches that email")
	// ErrRejected means the panel handled the request but reported failure.
	ErrRejected = errors.New("virtualizor rejected the operation")
)

// UpstreamError is a transport-level failure (connection refused, timeout)
// talking to the panel. It carries the target URL for diagnostics; query
// parameters, which hold the API credentials, are never included.
type UpstreamError struct {
	URL string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("virtualizor request to %s failed: %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// VirtualizorClient calls the Virtualizor control panel's admin and cloud
// API surfaces. The panel speaks an index.php?act=<action> convention with
// form-encoded parameters and JSON responses.
type VirtualizorClient struct {
	cfg        config.VirtualizorConfig
	getClient  *http.Client
	postClient *http.Client
}

// NewVirtualizorClient creates a client for both panel scopes. Certificate
// verification is disabled: the panel ships with a self-signed certificate.
func NewVirtualizorClient(cfg config.VirtualizorConfig) *VirtualizorClient {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	return &VirtualizorClient{
		cfg:        cfg,
		getClient:  &http.Client{Transport: transport, Timeout: 30 * time.Second},
		postClient: &http.Client{Transport: transport, Timeout: 60 * time.Second},
	}
}

// call issues one panel request. Scope credentials always travel in the
// query string; for POST the caller's parameters go form-encoded in the
// body, for GET they merge into the query. submit adds do=1, which the panel
// requires to actually execute (rather than preview) a mutation. The JSON
// response body is decoded into out.
func (c *VirtualizorClient) call(ctx context.Context, action string, params url.Values, method string, submit bool, scope Scope, out any) error {
	var baseURL string
	common := url.Values{"api": {"json"}}

	if scope == ScopeAdmin {
		baseURL = c.cfg.AdminBaseURL
		common.Set("adminapikey", c.cfg.AdminAPIKey)
		common.Set("adminapipass", c.cfg.AdminAPIPass)
	} else {
		baseURL = c.cfg.CloudBaseURL
		common.Set("apikey", c.cfg.CloudAPIKey)
		common.Set("apipass", c.cfg.CloudAPIPass)
	}

	if submit {
		common.Set("do", "1")
	}

	target := baseURL + "/index.php?act=" + url.QueryEscape(action)

	var req *http.Request
	var httpClient *http.Client
	var err error

	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target+"&"+common.Encode(), strings.NewReader(params.Encode()))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		httpClient = c.postClient
	} else {
		merged := url.Values{}
		for k, vs := range params {
			merged[k] = vs
		}
		for k, vs := range common {
			merged[k] = vs
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target+"&"+merged.Encode(), nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpClient = c.getClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return &UpstreamError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{URL: target, Err: fmt.Errorf("read response: %w", err)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w (body: %s)", action, err, string(body))
	}

	return nil
}

// AddUser registers a panel user through the cloud scope. The panel reports
// signup problems inconsistently, so the raw response is returned for the
// caller to inspect if needed; the follow-up uid lookup is what actually
// confirms the user exists.
func (c *VirtualizorClient) AddUser(ctx context.Context, email, password string) (json.RawMessage, error) {
	params := url.Values{
		"adduser":       {"1"},
		"user_email":    {email},
		"user_password": {password},
	}

	var raw json.RawMessage
	if err := c.call(ctx, "adduser", params, http.MethodPost, true, ScopeCloud, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

type usersResult struct {
	Users map[string]json.RawMessage `json:"users"`
}

// LookupUserID resolves a panel user id from an email. Returns
// ErrUserNotFound when the filter matches nothing.
func (c *VirtualizorClient) LookupUserID(ctx context.Context, email string) (string, error) {
	params := url.Values{"email": {email}}

	var result usersResult
	if err := c.call(ctx, "users", params, http.MethodPost, true, ScopeAdmin, &result); err != nil {
		return "", err
	}

	id, ok := firstKey(result.Users)
	if !ok {
		return "", fmt.Errorf("lookup user %q: %w", email, ErrUserNotFound)
	}
	return id, nil
}

// CreateServerParams are the variable parts of an addvs call; the
// virtualization type is always kvm and the OS image comes from config.
type CreateServerParams struct {
	UserID       string
	PlanID       string
	Hostname     string
	RootPassword string
}

type newServerResult struct {
	NewVS struct {
		IPs []string `json:"ips"`
	} `json:"newvs"`
	Done looseBool `json:"done"`
}

// CreateServer provisions a KVM server under the given user and returns its
// first assigned IP address. A response without an assigned IP is treated as
// an upstream rejection; the panel signals capacity and validation problems
// that way rather than with an HTTP error.
func (c *VirtualizorClient) CreateServer(ctx context.Context, p CreateServerParams) (string, error) {
	params := url.Values{
		"virt":        {"kvm"},
		"uid":         {p.UserID},
		"plid":        {p.PlanID},
		"osid":        {fmt.Sprintf("%d", c.cfg.OSImageID)},
		"hostname":    {p.Hostname},
		"rootpass":    {p.RootPassword},
		"addvps":      {"1"},
		"node_select": {"1"},
	}

	var result newServerResult
	if err := c.call(ctx, "addvs", params, http.MethodPost, true, ScopeAdmin, &result); err != nil {
		return "", err
	}

	if len(result.NewVS.IPs) == 0 {
		return "", fmt.Errorf("create server for uid %s: no ip assigned (done=%v): %w", p.UserID, bool(result.Done), ErrRejected)
	}

	log.Printf("[VirtClient] Server created for uid=%s ip=%s", p.UserID, result.NewVS.IPs[0])
	return result.NewVS.IPs[0], nil
}

type serversResult struct {
	VS map[string]json.RawMessage `json:"vs"`
}

// LookupServerID resolves a virtual server id from the owner's email.
// Returns ErrServerNotFound when the filter matches nothing.
func (c *VirtualizorClient) LookupServerID(ctx context.Context, email string) (string, error) {
	params := url.Values{"user": {email}}

	var result serversResult
	if err := c.call(ctx, "vs", params, http.MethodPost, true, ScopeAdmin, &result); err != nil {
		return "", err
	}

	id, ok := firstKey(result.VS)
	if !ok {
		return "", fmt.Errorf("lookup server for %q: %w", email, ErrServerNotFound)
	}
	return id, nil
}

type doneResult struct {
	Done looseBool `json:"done"`
}

// DeleteServer removes a virtual server and reports the panel's done flag.
func (c *VirtualizorClient) DeleteServer(ctx context.Context, serverID string) (bool, error) {
	params := url.Values{"delete": {serverID}}

	var result doneResult
	if err := c.call(ctx, "vs", params, http.MethodPost, true, ScopeAdmin, &result); err != nil {
		return false, err
	}

	log.Printf("[VirtClient] Delete server %s: done=%v", serverID, bool(result.Done))
	return bool(result.Done), nil
}

// DeleteUser removes a panel user and reports the panel's done flag.
func (c *VirtualizorClient) DeleteUser(ctx context.Context, userID string) (bool, error) {
	params := url.Values{"delete": {userID}}

	var result doneResult
	if err := c.call(ctx, "users", params, http.MethodPost, true, ScopeAdmin, &result); err != nil {
		return false, err
	}

	log.Printf("[VirtClient] Delete user %s: done=%v", userID, bool(result.Done))
	return bool(result.Done), nil
}

// firstKey picks the smallest key for determinism; lookups are filtered down
// to a single match in practice.
func firstKey(m map[string]json.RawMessage) (string, bool) {
	if len(m) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0], true
}

// looseBool decodes the panel's done flag, which shows up as true/false,
// 0/1, a string, null, or an object depending on the action and panel
// version. Anything empty or zero-valued is false.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	switch s := strings.TrimSpace(string(data)); s {
	case "null", "false", "0", `""`, "[]", "{}":
		*b = false
	default:
		*b = true
	}
	return nil
}
