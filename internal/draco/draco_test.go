package draco

import (
	"context"
	"encoding/json"
	"net/http"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/vizeval-cli/internal/config"
	"github.com/KaramelBytes/vizeval-cli/internal/testutil"
)

var sampleFacts = []string{"attribute(number_rows,root,3).", "entity(view,root,v0)."}

func TestHTTPClientComplete(t *testing.T) {
	var got Request
	srv := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/draco/complete-spec" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode([]Completion{
			{Cost: []int{4, 1}, AnswerSet: []string{"entity(view,root,v0)."}},
			{Cost: []int{7}, AnswerSet: []string{"entity(view,root,v0)."}},
		})
	}))

	c := NewHTTPClient(srv.URL+"/draco/", 2*time.Second, 1, 0, 0, nil)
	out, err := c.Complete(context.Background(), sampleFacts, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	cost, err := out[0].PrimaryCost()
	require.NoError(t, err)
	assert.Equal(t, 4, cost)
	assert.Equal(t, Request{Spec: sampleFacts, NumModels: 2}, got)
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "solver busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]Completion{{Cost: []int{1}}})
	}))

	c := NewHTTPClient(srv.URL, 2*time.Second, 3, time.Millisecond, 5*time.Millisecond, nil)
	out, err := c.Complete(context.Background(), sampleFacts, 1)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPClientBadRequestIsFinal(t *testing.T) {
	var calls int32
	srv := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unsatisfiable spec", http.StatusBadRequest)
	}))

	c := NewHTTPClient(srv.URL, 2*time.Second, 3, time.Millisecond, time.Millisecond, nil)
	_, err := c.Complete(context.Background(), sampleFacts, 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "unsatisfiable spec")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPClientRejectsMissingCost(t *testing.T) {
	srv := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"answer_set": []}]`))
	}))
	_, err := NewHTTPClient(srv.URL, time.Second, 1, 0, 0, nil).Complete(context.Background(), sampleFacts, 1)
	assert.Error(t, err)
}

func TestCompleteRejectsNonPositiveN(t *testing.T) {
	_, err := NewHTTPClient("http://127.0.0.1:1", time.Second, 1, 0, 0, nil).Complete(context.Background(), sampleFacts, 0)
	assert.Error(t, err)
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecClientComplete(t *testing.T) {
	requireShell(t)
	script := `cat >/dev/null; echo '[{"cost":[3],"answer_set":["entity(view,root,v0)."]}]'`
	c, err := NewExecClient("sh", []string{"-c", script}, 5*time.Second)
	require.NoError(t, err)
	out, err := c.Complete(context.Background(), sampleFacts, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []int{3}, out[0].Cost)
}

func TestExecClientEchoesRequest(t *testing.T) {
	requireShell(t)
	// the bridge sees the exact request body on stdin
	script := `read -r line; case "$line" in *'"num_models":4'*) echo '[]';; *) exit 3;; esac`
	c, err := NewExecClient("sh", []string{"-c", script}, 5*time.Second)
	require.NoError(t, err)
	out, err := c.Complete(context.Background(), sampleFacts, 4)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExecClientFailureIncludesStderr(t *testing.T) {
	requireShell(t)
	c, err := NewExecClient("sh", []string{"-c", "echo clingo missing >&2; exit 2"}, 5*time.Second)
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), sampleFacts, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clingo missing")
}

func TestExecClientTimeout(t *testing.T) {
	requireShell(t)
	c, err := NewExecClient("sh", []string{"-c", "sleep 5"}, 100*time.Millisecond)
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), sampleFacts, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestNewExecClientNeedsCommand(t *testing.T) {
	_, err := NewExecClient("", nil, 0)
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	c, err := NewFromConfig(&config.Global{DracoMode: "http", DracoURL: "http://x"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPClient{}, c)

	c, err = NewFromConfig(&config.Global{DracoMode: "exec", DracoCommand: "python3", DracoArgs: []string{"bridge.py"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ExecClient{}, c)

	_, err = NewFromConfig(&config.Global{DracoMode: "grpc"}, nil)
	assert.Error(t, err)
}
