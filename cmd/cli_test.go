package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/version"
)

const (
	cqiSource   = "a7b0d0fe-f0ef-4186-a96b-fc89ee61679a"
	cqiDest     = "e3a52e0a-b824-4d4b-9b04-1dad86e54c07"
	nucciSource = "606bef12-cf0b-4c90-9432-13039595d2b3"

	cqiDataAccessScope = "urn:globus:auth:scope:transfer.api.globus.org:all[*https://auth.globus.org/scopes/" + cqiDest + "/data_access]"
)

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", stdout)
}

func TestVersionVerboseShowsConfigFile(t *testing.T) {
	home := t.TempDir()
	stdout, _, err := executeCLI(t, home, "version", "-v")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rcops "+version.Version+"\n")
	assert.Contains(t, stdout, "config: (none)\n")

	configPath := filepath.Join(home, "rcops.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[log]\nlevel = \"warn\"\n"), 0o600))

	stdout, _, err = executeCLI(t, home, "--config", configPath, "version", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, stdout, "config: "+configPath+"\n")
}

func TestLsRequiresProfileFlag(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"profile\" not set")
}

func TestUnknownCredentialsBackend(t *testing.T) {
	t.Setenv("RCOPS_CREDENTIALS_BACKEND", "vault")

	_, _, err := executeCLI(t, t.TempDir(), "task", "list")
	require.ErrorIs(t, err, errUnknownBackend)
}

func TestProfileInitThenListAndShow(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "profile", "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote profile lab396-to-mcl")
	assert.Contains(t, stdout, "Wrote profile cqi-archive")
	assert.Contains(t, stdout, "Wrote profile nucci-share-ls")
	assert.FileExists(t, filepath.Join(home, ".rcops", "profiles.toml"))

	stdout, _, err = executeCLI(t, home, "profile", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "cqi-archive\t{location} {today} archive\n")
	assert.NotContains(t, stdout, "(built-in)")

	stdout, _, err = executeCLI(t, home, "profile", "show", "cqi-archive")
	require.NoError(t, err)
	assert.Contains(t, stdout, "source: "+cqiSource)
	assert.Contains(t, stdout, "arguments: DATA_LOCATION TODAY")
	assert.Contains(t, stdout, "item: ./{location}/{today}/ -> ./{location}/DATA/ (recursive)")
	assert.Contains(t, stdout, "filter: exclude dir MANIFESTS")
}

func TestProfileInitKeepsExistingWithoutForce(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "profile", "init")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "profile", "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Kept existing profile cqi-archive")

	stdout, _, err = executeCLI(t, home, "profile", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote profile cqi-archive")
}

func TestProfileListFallsBackToBuiltins(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "profile", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "lab396-to-mcl\t")
	assert.Contains(t, stdout, "(built-in)")
}

func TestProfileShowUnknown(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "profile", "show", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile nope")
}

func TestAuthLoginPastedCodeStoresCredential(t *testing.T) {
	home := t.TempDir()
	var form atomic.Value

	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/oauth2/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		form.Store(r.PostForm)
		writeTestJSON(w, http.StatusOK, `{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600,"resource_server":"transfer.api.globus.org","scope":"urn:globus:auth:scope:transfer.api.globus.org:all"}`)
	}))
	t.Cleanup(authServer.Close)
	t.Setenv("RCOPS_AUTH_BASE_URL", authServer.URL)

	stdout, _, err := executeCLIWithInput(t, home, "the-code\n", "auth", "login", "--profile", "nucci-share-ls")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Native App Authorization URL:")
	assert.Contains(t, stdout, "Please go to this URL and login:")
	assert.Contains(t, stdout, "Please enter the code here: ")
	assert.Contains(t, stdout, "Authenticated profile nucci-share-ls")

	sent := form.Load().(url.Values)
	assert.Equal(t, "the-code", sent.Get("code"))
	assert.Equal(t, "c3554afe-be59-4196-a9a0-3f5abc29f021", sent.Get("client_id"))
	assert.NotEmpty(t, sent.Get("code_verifier"))
	assert.Equal(t, authServer.URL+"/v2/web/auth-code", sent.Get("redirect_uri"))

	raw, err := os.ReadFile(credentialPath(home, "nucci-share-ls"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"refresh_token": "refresh-1"`)

	stdout, _, err = executeCLI(t, home, "auth", "login", "--profile", "nucci-share-ls")
	require.NoError(t, err)
	assert.Contains(t, stdout, "already authorized")
}

func TestAuthLogoutDeletesCredential(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeCredentialFixture(home, "cqi-archive"))

	stdout, _, err := executeCLI(t, home, "auth", "logout", "--profile", "cqi-archive")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Logged out profile cqi-archive")
	assert.NoFileExists(t, credentialPath(home, "cqi-archive"))
}

func TestLsRendersListing(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeCredentialFixture(home, "nucci-share-ls"))

	api := newFakeTransferAPI(t)
	stdout, _, err := executeCLI(t, home, "ls", "--profile", "nucci-share-ls")
	require.NoError(t, err)
	assert.Contains(t, stdout, "endpoint: "+nucciSource)
	assert.Contains(t, stdout, "runs/")
	assert.Contains(t, stdout, "notes.txt")
	assert.Equal(t, "~/", api.lastListPath())
}

func TestLsJSONOutput(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeCredentialFixture(home, "nucci-share-ls"))

	api := newFakeTransferAPI(t)
	stdout, _, err := executeCLI(t, home, "ls", "--profile", "nucci-share-ls", "--path", "/group/", "--json")
	require.NoError(t, err)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "runs", entries[0]["name"])
	assert.Equal(t, "dir", entries[0]["type"])
	assert.Equal(t, "/group/", api.lastListPath())
}

func TestLsRejectsMissingDestination(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "ls", "--profile", "nucci-share-ls", "--endpoint", "dest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no destination collection")
}

func TestTransferSubmitRequiresBothArguments(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "transfer", "submit", "--profile", "cqi-archive", "site-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected DATA_LOCATION and TODAY together")
}

func TestTransferSubmitTemplatedProfileWithoutArguments(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "transfer", "submit", "--profile", "cqi-archive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires DATA_LOCATION and TODAY")
}

func TestTransferSubmitWaitsAndRecordsHistory(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeCredentialFixture(home, "cqi-archive"))

	api := newFakeTransferAPI(t, "ACTIVE", "ACTIVE", "SUCCEEDED")
	stdout, _, err := executeCLI(t, home,
		"transfer", "submit", "--profile", "cqi-archive", "site-1", "2026-02-13",
		"--wait", "--poll-interval", "1ms",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "submitted transfer, task_id=task-1")
	assert.Contains(t, stdout, "Waiting for transfer to complete with task_id: task-1")
	assert.Equal(t, 2, strings.Count(stdout, "Transfer status: ACTIVE."))
	assert.Contains(t, stdout, "Transfer completed successfully.")
	assert.EqualValues(t, 3, api.taskPolls.Load())

	submitted := api.lastSubmission()
	assert.Equal(t, "site-1 2026-02-13 archive", submitted["label"])
	assert.Equal(t, cqiSource, submitted["source_endpoint"])
	assert.Equal(t, cqiDest, submitted["destination_endpoint"])

	stdout, _, err = executeCLI(t, home, "task", "list", "--json")
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "task-1", records[0]["task_id"])
	assert.Equal(t, "cqi-archive", records[0]["profile"])
	assert.Equal(t, "SUCCEEDED", records[0]["status"])
}

func TestTransferSubmitFailedTaskExitsWithError(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeCredentialFixture(home, "lab396-to-mcl"))

	newFakeTransferAPI(t, "FAILED")
	stdout, _, err := executeCLI(t, home, "transfer", "submit", "--profile", "lab396-to-mcl", "--poll-interval", "1ms")
	require.ErrorIs(t, err, errTransferFailed)
	assert.Contains(t, stdout, "submitted transfer, task_id=task-1")
	assert.Contains(t, stdout, "FAILED")
}

func TestTransferSubmitConsentRequired(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeCredentialFixture(home, "cqi-archive"))

	api := newFakeTransferAPI(t)
	api.consentRequired.Store(true)

	stdout, _, err := executeCLI(t, home, "transfer", "submit", "--profile", "cqi-archive", "site-1", "2026-02-13")
	require.ErrorIs(t, err, errConsentRequired)
	assert.Equal(t, 1, strings.Count(stdout, "Encountered a ConsentRequired error."))
	assert.NotContains(t, stdout, "submitted transfer")
}

// newConsentAuthServer answers token requests with a grant for the data
// access scope. With grantConsent set the transfer API stops asking for it.
func newConsentAuthServer(t *testing.T, api *fakeTransferAPI, grantConsent bool) *atomic.Int32 {
	t.Helper()

	var exchanges atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/oauth2/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "code", r.PostForm.Get("code"))
		exchanges.Add(1)
		if grantConsent {
			api.consentRequired.Store(false)
		}
		writeTestJSON(w, http.StatusOK, `{"access_token":"access-1","refresh_token":"refresh-2","token_type":"Bearer","expires_in":3600,"resource_server":"transfer.api.globus.org","scope":"`+cqiDataAccessScope+`"}`)
	}))
	t.Cleanup(server.Close)
	t.Setenv("RCOPS_AUTH_BASE_URL", server.URL)

	return &exchanges
}

func TestTransferSubmitConsentLoginResubmits(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeCredentialFixture(home, "cqi-archive"))

	api := newFakeTransferAPI(t)
	api.consentRequired.Store(true)
	exchanges := newConsentAuthServer(t, api, true)

	stdout, _, err := executeCLIWithInput(t, home, "code\n",
		"transfer", "submit", "--profile", "cqi-archive", "site-1", "2026-02-13", "--consent-login")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(stdout, "Encountered a ConsentRequired error."))
	assert.Contains(t, stdout, url.Values{"scope": {cqiDataAccessScope}}.Encode())
	assert.Contains(t, stdout, "submitted transfer, task_id=task-1\n")
	assert.EqualValues(t, 1, exchanges.Load())
	assert.EqualValues(t, 2, api.submits.Load())

	raw, err := os.ReadFile(credentialPath(home, "cqi-archive"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"refresh_token": "refresh-2"`)
	assert.Contains(t, string(raw), "/data_access]")
}

func TestTransferSubmitConsentLoginGivesUpAfterOneRetry(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeCredentialFixture(home, "cqi-archive"))

	api := newFakeTransferAPI(t)
	api.consentRequired.Store(true)
	newConsentAuthServer(t, api, false)

	stdout, _, err := executeCLIWithInput(t, home, "code\n",
		"transfer", "submit", "--profile", "cqi-archive", "site-1", "2026-02-13", "--consent-login")
	require.Error(t, err)

	var consent *domain.ConsentRequiredError
	require.ErrorAs(t, err, &consent)
	assert.Equal(t, []string{cqiDataAccessScope}, consent.RequiredScopes)
	assert.EqualValues(t, 2, api.submits.Load())
	assert.NotContains(t, stdout, "submitted transfer")
}

func TestTransferWaitStopsWhenContextEnds(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeCredentialFixture(home, "cqi-archive"))

	api := newFakeTransferAPI(t, "ACTIVE")
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, _, err := executeCLIContext(t, ctx, home, "", "transfer", "wait", "task-1", "--profile", "cqi-archive", "--poll-interval", "1h")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 30*time.Second)
	assert.EqualValues(t, 1, api.taskPolls.Load())
}

func TestTransferSubmitDryRunDoesNotSubmit(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeCredentialFixture(home, "lab396-to-mcl"))

	api := newFakeTransferAPI(t)
	stdout, _, err := executeCLI(t, home, "transfer", "submit", "--profile", "lab396-to-mcl", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "+ /lab396/runs/")
	assert.Contains(t, stdout, "+ /lab396/notes.txt")
	assert.Nil(t, api.lastSubmission())
}

func TestTransferStatusJSON(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeCredentialFixture(home, "cqi-archive"))

	newFakeTransferAPI(t, "SUCCEEDED")
	stdout, _, err := executeCLI(t, home, "transfer", "status", "task-1", "--profile", "cqi-archive", "--json")
	require.NoError(t, err)

	var task map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &task))
	assert.Equal(t, "task-1", task["task_id"])
	assert.Equal(t, "SUCCEEDED", task["status"])
}

func TestTransferWaitHonoursMaxPolls(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeCredentialFixture(home, "cqi-archive"))

	api := newFakeTransferAPI(t, "ACTIVE", "ACTIVE", "ACTIVE", "SUCCEEDED")
	_, _, err := executeCLI(t, home, "transfer", "wait", "task-1", "--profile", "cqi-archive", "--poll-interval", "1ms", "--max-polls", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll limit reached")
	assert.EqualValues(t, 2, api.taskPolls.Load())
}

func TestTaskListEmpty(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "task", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No transfer tasks recorded.")
}

func TestConfigFileOverridesPaths(t *testing.T) {
	home := t.TempDir()
	tasksPath := filepath.Join(home, "elsewhere", "tasks.toml")
	configPath := filepath.Join(home, "rcops.toml")
	config := fmt.Sprintf("[tasks]\npath = %q\n", tasksPath)
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))
	require.NoError(t, writeCredentialFixture(home, "cqi-archive"))

	newFakeTransferAPI(t, "SUCCEEDED")
	_, _, err := executeCLI(t, home, "--config", configPath,
		"transfer", "submit", "--profile", "cqi-archive", "site-1", "2026-02-13")
	require.NoError(t, err)
	assert.FileExists(t, tasksPath)
	assert.NoFileExists(t, filepath.Join(home, ".rcops", "tasks.toml"))
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWithInput(t, home, "", args...)
}

func executeCLIWithInput(t *testing.T, home string, input string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIContext(t, context.Background(), home, input, args...)
}

func executeCLIContext(t *testing.T, ctx context.Context, home string, input string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("RCOPS_AUTH_OPEN_BROWSER", "false")
	t.Setenv("RCOPS_TRANSFER_RETRY_INTERVAL", "1ms")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetIn(strings.NewReader(input))
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func credentialPath(home string, profile string) string {
	return filepath.Join(home, ".rcops", "credentials", "globus", profile)
}

func writeCredentialFixture(home string, profile string) error {
	path := credentialPath(home, profile)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	doc := fmt.Sprintf(`{
  "format_version": "1.0",
  "data": {
    "transfer.api.globus.org": {
      "resource_server": "transfer.api.globus.org",
      "scope": "urn:globus:auth:scope:transfer.api.globus.org:all",
      "access_token": "access-1",
      "refresh_token": "refresh-1",
      "token_type": "Bearer",
      "expires_at_seconds": %d
    }
  }
}`, time.Now().Add(time.Hour).Unix())

	return os.WriteFile(path, []byte(doc), 0o600)
}

type fakeTransferAPI struct {
	statuses        []string
	taskPolls       atomic.Int32
	consentRequired atomic.Bool
	submits         atomic.Int32

	mu         sync.Mutex
	submission map[string]any
	listPath   string
}

// newFakeTransferAPI serves the Transfer API endpoints the CLI calls. Task
// polls walk through statuses and then repeat the last one.
func newFakeTransferAPI(t *testing.T, statuses ...string) *fakeTransferAPI {
	t.Helper()

	api := &fakeTransferAPI{statuses: statuses}
	server := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(server.Close)
	t.Setenv("RCOPS_TRANSFER_BASE_URL", server.URL)

	return api
}

func (a *fakeTransferAPI) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer access-1" {
		writeTestJSON(w, http.StatusUnauthorized, `{"code":"AuthenticationFailed","message":"bad token","request_id":"r0"}`)
		return
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/endpoint/"):
		id := strings.TrimPrefix(r.URL.Path, "/endpoint/")
		writeTestJSON(w, http.StatusOK, `{"DATA_TYPE":"endpoint","id":"`+id+`","display_name":"collection"}`)
	case r.URL.Path == "/submission_id":
		writeTestJSON(w, http.StatusOK, `{"value":"sub-1"}`)
	case r.URL.Path == "/transfer":
		a.submits.Add(1)
		if a.consentRequired.Load() {
			writeTestJSON(w, http.StatusForbidden, `{"code":"ConsentRequired","message":"Missing required data_access consent","request_id":"r1","required_scopes":["`+cqiDataAccessScope+`"]}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var doc map[string]any
		_ = json.Unmarshal(body, &doc)
		a.mu.Lock()
		a.submission = doc
		a.mu.Unlock()
		writeTestJSON(w, http.StatusAccepted, `{"DATA_TYPE":"transfer_result","code":"Accepted","task_id":"task-1","submission_id":"sub-1"}`)
	case r.URL.Path == "/task/task-1":
		n := int(a.taskPolls.Add(1))
		status := "ACTIVE"
		if len(a.statuses) > 0 {
			status = a.statuses[min(n, len(a.statuses))-1]
		}
		writeTestJSON(w, http.StatusOK, `{"DATA_TYPE":"task","task_id":"task-1","status":"`+status+`","label":"site-1 2026-02-13 archive","files":4,"files_transferred":2,"bytes_transferred":2048,"request_time":"2026-02-14T10:00:00+00:00"}`)
	case strings.HasSuffix(r.URL.Path, "/ls"):
		a.mu.Lock()
		a.listPath = r.URL.Query().Get("path")
		a.mu.Unlock()
		writeTestJSON(w, http.StatusOK, `{"DATA_TYPE":"file_list","path":"/","DATA":[
			{"DATA_TYPE":"file","type":"dir","name":"runs","size":4096,"permissions":"0755","user":"rc","group":"rc","last_modified":"2026-02-13 08:00:00+00:00"},
			{"DATA_TYPE":"file","type":"file","name":"notes.txt","size":1500,"permissions":"0644","user":"rc","group":"rc","last_modified":"2026-02-13 08:00:00+00:00"}
		]}`)
	default:
		writeTestJSON(w, http.StatusNotFound, `{"code":"ClientError.NotFound","message":"no route","request_id":"r9"}`)
	}
}

func (a *fakeTransferAPI) lastSubmission() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.submission
}

func (a *fakeTransferAPI) lastListPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listPath
}

func writeTestJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
