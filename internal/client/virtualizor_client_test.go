package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecopia/vps-service/internal/config"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
}

// newPanelServer fakes the panel: it records every request and replies with
// the response registered for the act parameter.
func newPanelServer(t *testing.T, responses map[string]string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()

	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("Failed to parse form: %v", err)
		}
		captured = append(captured, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Form:   r.PostForm,
		})

		body, ok := responses[r.URL.Query().Get("act")]
		if !ok {
			body = `{}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	return server, &captured
}

func testConfig(adminURL, cloudURL string) config.VirtualizorConfig {
	return config.VirtualizorConfig{
		AdminBaseURL: adminURL,
		AdminAPIKey:  "admin-key",
		AdminAPIPass: "admin-pass",
		CloudBaseURL: cloudURL,
		CloudAPIKey:  "cloud-key",
		CloudAPIPass: "cloud-pass",
		OSImageID:    1017,
	}
}

func TestAddUser_CloudScopeAndFormEncoding(t *testing.T) {
	server, captured := newPanelServer(t, map[string]string{
		"adduser": `{"done": true}`,
	})
	defer server.Close()

	c := NewVirtualizorClient(testConfig("http://admin.invalid", server.URL))

	raw, err := c.AddUser(context.Background(), "a@x.com", "Secret#1")
	require.NoError(t, err)
	require.NotNil(t, raw)

	require.Len(t, *captured, 1)
	req := (*captured)[0]

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/index.php", req.Path)
	assert.Equal(t, "adduser", req.Query.Get("act"))
	assert.Equal(t, "json", req.Query.Get("api"))
	assert.Equal(t, "1", req.Query.Get("do"))

	// Cloud credentials in the query, never the admin pair.
	assert.Equal(t, "cloud-key", req.Query.Get("apikey"))
	assert.Equal(t, "cloud-pass", req.Query.Get("apipass"))
	assert.Empty(t, req.Query.Get("adminapikey"))

	// Caller parameters travel in the form body.
	assert.Equal(t, "1", req.Form.Get("adduser"))
	assert.Equal(t, "a@x.com", req.Form.Get("user_email"))
	assert.Equal(t, "Secret#1", req.Form.Get("user_password"))
}

func TestLookupUserID(t *testing.T) {
	server, captured := newPanelServer(t, map[string]string{
		"users": `{"users": {"42": {"email": "a@x.com"}}}`,
	})
	defer server.Close()

	c := NewVirtualizorClient(testConfig(server.URL, "http://cloud.invalid"))

	id, err := c.LookupUserID(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	req := (*captured)[0]
	assert.Equal(t, "admin-key", req.Query.Get("adminapikey"))
	assert.Equal(t, "admin-pass", req.Query.Get("adminapipass"))
	assert.Equal(t, "a@x.com", req.Form.Get("email"))
}

func TestLookupUserID_NoMatch(t *testing.T) {
	server, _ := newPanelServer(t, map[string]string{
		"users": `{"users": {}}`,
	})
	defer server.Close()

	c := NewVirtualizorClient(testConfig(server.URL, "http://cloud.invalid"))

	_, err := c.LookupUserID(context.Background(), "missing@x.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLookupUserID_PicksSmallestKey(t *testing.T) {
	server, _ := newPanelServer(t, map[string]string{
		"users": `{"users": {"9": {}, "17": {}, "3": {}}}`,
	})
	defer server.Close()

	c := NewVirtualizorClient(testConfig(server.URL, "http://cloud.invalid"))

	id, err := c.LookupUserID(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "17", id) // lexicographic order, deterministic
}

func TestCreateServer(t *testing.T) {
	server, captured := newPanelServer(t, map[string]string{
		"addvs": `{"done": 1, "newvs": {"ips": ["203.0.113.9", "10.0.0.2"]}}`,
	})
	defer server.Close()

	c := NewVirtualizorClient(testConfig(server.URL, "http://cloud.invalid"))

	ip, err := c.CreateServer(context.Background(), CreateServerParams{
		UserID:       "42",
		PlanID:       "1",
		Hostname:     "abcDEFghiJKLmno.com",
		RootPassword: "Root#Pass1",
	})
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", ip)

	req := (*captured)[0]
	assert.Equal(t, "kvm", req.Form.Get("virt"))
	assert.Equal(t, "42", req.Form.Get("uid"))
	assert.Equal(t, "1", req.Form.Get("plid"))
	assert.Equal(t, "1017", req.Form.Get("osid"))
	assert.Equal(t, "abcDEFghiJKLmno.com", req.Form.Get("hostname"))
	assert.Equal(t, "Root#Pass1", req.Form.Get("rootpass"))
	assert.Equal(t, "1", req.Form.Get("addvps"))
	assert.Equal(t, "1", req.Form.Get("node_select"))
}

func TestCreateServer_NoIPAssigned(t *testing.T) {
	server, _ := newPanelServer(t, map[string]string{
		"addvs": `{"done": false, "error": {"plid": "Invalid plan"}}`,
	})
	defer server.Close()

	c := NewVirtualizorClient(testConfig(server.URL, "http://cloud.invalid"))

	_, err := c.CreateServer(context.Background(), CreateServerParams{UserID: "42", PlanID: "999"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestLookupServerID_NoMatch(t *testing.T) {
	server, _ := newPanelServer(t, map[string]string{
		"vs": `{"vs": {}}`,
	})
	defer server.Close()

	c := NewVirtualizorClient(testConfig(server.URL, "http://cloud.invalid"))

	_, err := c.LookupServerID(context.Background(), "missing@x.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func TestDeleteServer_DoneVariants(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"bool true", `{"done": true}`, true},
		{"bool false", `{"done": false}`, false},
		{"numeric one", `{"done": 1}`, true},
		{"numeric zero", `{"done": 0}`, false},
		{"object", `{"done": {"121": "121"}}`, true},
		{"null", `{"done": null}`, false},
		{"missing", `{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newPanelServer(t, map[string]string{"vs": tt.response})
			defer server.Close()

			c := NewVirtualizorClient(testConfig(server.URL, "http://cloud.invalid"))

			done, err := c.DeleteServer(context.Background(), "121")
			require.NoError(t, err)
			assert.Equal(t, tt.want, done)
		})
	}
}

func TestDeleteUser_SendsDeleteParam(t *testing.T) {
	server, captured := newPanelServer(t, map[string]string{
		"users": `{"done": true}`,
	})
	defer server.Close()

	c := NewVirtualizorClient(testConfig(server.URL, "http://cloud.invalid"))

	done, err := c.DeleteUser(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, done)

	req := (*captured)[0]
	assert.Equal(t, "users", req.Query.Get("act"))
	assert.Equal(t, "42", req.Form.Get("delete"))
}

func TestTransportFailure_ReturnsUpstreamError(t *testing.T) {
	// A server that is immediately closed guarantees a connection error.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewVirtualizorClient(testConfig(server.URL, "http://cloud.invalid"))

	_, err := c.LookupUserID(context.Background(), "a@x.com")
	require.Error(t, err)

	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr), "expected *UpstreamError, got %T", err)
	assert.Contains(t, upstreamErr.URL, server.URL)
	assert.Contains(t, upstreamErr.URL, "act=users")
	// Credentials live in query parameters, which the error must not carry.
	assert.NotContains(t, upstreamErr.URL, "admin-pass")
}

func TestLooseBool(t *testing.T) {
	var doc struct {
		Done looseBool `json:"done"`
	}

	for raw, want := range map[string]bool{
		`{"done": "yes"}`: true,
		`{"done": ""}`:    false,
		`{"done": []}`:    false,
		`{"done": [1]}`:   true,
	} {
		doc.Done = false
		require.NoError(t, json.Unmarshal([]byte(raw), &doc))
		assert.Equal(t, want, bool(doc.Done), raw)
	}
}
