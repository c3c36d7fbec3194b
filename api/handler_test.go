package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xraph/intake"
	"github.com/xraph/intake/api"
	"github.com/xraph/intake/endpoint"
	intakestore "github.com/xraph/intake/store"
	"github.com/xraph/intake/store/memory"
)

// testServer creates a Handler backed by a memory store and returns the test server.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	eng, err := intake.New(intake.WithStore(memory.New()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	h := api.NewHandler(eng, nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

// registerContactModel registers the model endpoints in these tests target.
func registerContactModel(t *testing.T, baseURL string) {
	t.Helper()
	resp := doJSON(t, "POST", baseURL+"/models", map[string]any{
		"name": "contact",
		"fields": []map[string]any{
			{"name": "email", "type": "string", "required": true, "unique": true},
			{"name": "full_name", "type": "string"},
			{"name": "source", "type": "string"},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register model: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// createTestEndpoint creates an endpoint and returns its ID and slug.
func createTestEndpoint(t *testing.T, baseURL string, extra map[string]any) (string, string) {
	t.Helper()
	body := map[string]any{
		"name":         "CRM Sync",
		"target_model": "contact",
		"field_mapping": []map[string]string{
			{"external": "email_address", "internal": "email"},
			{"external": "name", "internal": "full_name"},
		},
	}
	for k, v := range extra {
		body[k] = v
	}
	resp := doJSON(t, "POST", baseURL+"/endpoints", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create endpoint: expected 201, got %d", resp.StatusCode)
	}
	var ep map[string]any
	decodeBody(t, resp, &ep)
	epID, _ := ep["id"].(string)
	slug, _ := ep["slug"].(string)
	if epID == "" || slug == "" {
		t.Fatalf("expected id and slug, got %v", ep)
	}
	return epID, slug
}

// ──────────────────────────────────────────────────
// Models
// ──────────────────────────────────────────────────

func TestModels_CRUD(t *testing.T) {
	srv := testServer(t)

	registerContactModel(t, srv.URL)

	// Get by name
	resp := doJSON(t, "GET", srv.URL+"/models/contact", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	var m map[string]any
	decodeBody(t, resp, &m)
	def, _ := m["definition"].(map[string]any)
	if def == nil || def["name"] != "contact" {
		t.Fatalf("expected definition.name contact, got %v", m)
	}

	// List
	resp = doJSON(t, "GET", srv.URL+"/models", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 model, got %d", len(list))
	}

	// Delete
	resp = doJSON(t, "DELETE", srv.URL+"/models/contact", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Get after delete
	resp = doJSON(t, "GET", srv.URL+"/models/contact", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestModels_RegisterMissingName(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/models", map[string]any{
		"description": "no name",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// ──────────────────────────────────────────────────
// Endpoints
// ──────────────────────────────────────────────────

func TestEndpoints_CRUD(t *testing.T) {
	srv := testServer(t)
	registerContactModel(t, srv.URL)

	epID, slug := createTestEndpoint(t, srv.URL, nil)
	if slug != "crm-sync" {
		t.Fatalf("expected slug crm-sync, got %q", slug)
	}

	// Get
	resp := doJSON(t, "GET", srv.URL+"/endpoints/"+epID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	var ep map[string]any
	decodeBody(t, resp, &ep)
	if ep["auth_type"] != "api_key" {
		t.Fatalf("expected default auth_type api_key, got %v", ep["auth_type"])
	}
	if _, leaked := ep["credential"]; leaked {
		t.Fatalf("credential must never appear in responses: %v", ep)
	}

	// Update
	resp = doJSON(t, "PUT", srv.URL+"/endpoints/"+epID, map[string]any{
		"description": "synced from the CRM",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &ep)
	if ep["description"] != "synced from the CRM" {
		t.Fatalf("expected updated description, got %v", ep["description"])
	}

	// List
	resp = doJSON(t, "GET", srv.URL+"/endpoints", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 endpoint, got %d", len(list))
	}

	// Delete
	resp = doJSON(t, "DELETE", srv.URL+"/endpoints/"+epID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/endpoints/"+epID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEndpoints_CreateUnknownModel(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/endpoints", map[string]any{
		"name":         "Nowhere",
		"target_model": "ghost",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEndpoints_RotateCredential(t *testing.T) {
	srv := testServer(t)
	registerContactModel(t, srv.URL)
	epID, _ := createTestEndpoint(t, srv.URL, nil)

	resp := doJSON(t, "POST", srv.URL+"/endpoints/"+epID+"/rotate-credential", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate: expected 200, got %d", resp.StatusCode)
	}
	var out map[string]string
	decodeBody(t, resp, &out)
	if out["credential"] == "" {
		t.Fatal("expected plaintext credential in response")
	}
}

func TestEndpoints_RotateCredentialAuthNone(t *testing.T) {
	srv := testServer(t)
	registerContactModel(t, srv.URL)
	epID, _ := createTestEndpoint(t, srv.URL, map[string]any{"auth_type": "none"})

	resp := doJSON(t, "POST", srv.URL+"/endpoints/"+epID+"/rotate-credential", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// ──────────────────────────────────────────────────
// Receiver
// ──────────────────────────────────────────────────

func TestReceive_CreatesRecord(t *testing.T) {
	srv := testServer(t)
	registerContactModel(t, srv.URL)
	_, slug := createTestEndpoint(t, srv.URL, map[string]any{"auth_type": "none"})

	resp := doJSON(t, "POST", srv.URL+"/in/"+slug, map[string]any{
		"email_address": "ada@example.com",
		"name":          "Ada Lovelace",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res map[string]any
	decodeBody(t, resp, &res)
	if res["status"] != "created" {
		t.Fatalf("expected status created, got %v", res["status"])
	}
	if res["object_id"] == "" || res["object_id"] == nil {
		t.Fatalf("expected object_id, got %v", res)
	}
}

func TestReceive_UnknownSlug(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/in/nope", map[string]any{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// unreachableStore fails endpoint resolution the way a down backend would.
type unreachableStore struct {
	intakestore.Store
}

func (unreachableStore) GetEndpointBySlug(context.Context, string) (*endpoint.Endpoint, error) {
	return nil, errors.New("connection refused")
}

func TestReceive_StoreUnavailable(t *testing.T) {
	eng, err := intake.New(intake.WithStore(unreachableStore{Store: memory.New()}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	srv := httptest.NewServer(api.NewHandler(eng, nil))
	t.Cleanup(srv.Close)

	// A down store is not an unknown slug.
	resp := doJSON(t, "POST", srv.URL+"/in/any-slug", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestReceive_WrongAPIKey(t *testing.T) {
	srv := testServer(t)
	registerContactModel(t, srv.URL)
	_, slug := createTestEndpoint(t, srv.URL, nil)

	req, err := http.NewRequestWithContext(context.Background(), "POST", srv.URL+"/in/"+slug,
		bytes.NewReader([]byte(`{"email_address":"ada@example.com"}`)))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-API-Key", "whk_wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestReceive_InactiveEndpoint(t *testing.T) {
	srv := testServer(t)
	registerContactModel(t, srv.URL)
	epID, slug := createTestEndpoint(t, srv.URL, map[string]any{"auth_type": "none"})

	resp := doJSON(t, "PATCH", srv.URL+"/endpoints/"+epID+"/deactivate", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("deactivate: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/in/"+slug, map[string]any{
		"email_address": "ada@example.com",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestReceive_MappingErrorIsRedacted(t *testing.T) {
	srv := testServer(t)
	registerContactModel(t, srv.URL)
	_, slug := createTestEndpoint(t, srv.URL, map[string]any{"auth_type": "none"})

	// email is required and not provided.
	resp := doJSON(t, "POST", srv.URL+"/in/"+slug, map[string]any{
		"name": "No Email",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	var res map[string]any
	decodeBody(t, resp, &res)
	if res["status"] != "mapping_error" {
		t.Fatalf("expected status mapping_error, got %v", res["status"])
	}
	if _, detailed := res["mapping_errors"]; detailed {
		t.Fatalf("external callers must not see field detail: %v", res)
	}
	if res["message"] != "payload could not be mapped" {
		t.Fatalf("expected generic message, got %v", res["message"])
	}
}

// ──────────────────────────────────────────────────
// Test operation and executions
// ──────────────────────────────────────────────────

func TestEndpointTest_DryRunFullDetail(t *testing.T) {
	srv := testServer(t)
	registerContactModel(t, srv.URL)
	epID, _ := createTestEndpoint(t, srv.URL, nil)

	resp := doJSON(t, "POST", srv.URL+"/endpoints/"+epID+"/test", map[string]any{
		"payload": map[string]any{"name": "No Email"},
		"dry_run": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res map[string]any
	decodeBody(t, resp, &res)
	if res["status"] != "mapping_error" {
		t.Fatalf("expected mapping_error, got %v", res["status"])
	}
	if _, detailed := res["mapping_errors"]; !detailed {
		t.Fatalf("owner-facing test must include field detail: %v", res)
	}
}

func TestExecutions_ListAndStats(t *testing.T) {
	srv := testServer(t)
	registerContactModel(t, srv.URL)
	epID, slug := createTestEndpoint(t, srv.URL, map[string]any{"auth_type": "none"})

	resp := doJSON(t, "POST", srv.URL+"/in/"+slug, map[string]any{
		"email_address": "ada@example.com",
	})
	resp.Body.Close()
	resp = doJSON(t, "POST", srv.URL+"/in/"+slug, map[string]any{
		"name": "missing email",
	})
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/endpoints/"+epID+"/executions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var exes []map[string]any
	decodeBody(t, resp, &exes)
	if len(exes) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(exes))
	}

	resp = doJSON(t, "GET", srv.URL+"/endpoints/"+epID+"/executions?status=created", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("filtered list: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &exes)
	if len(exes) != 1 {
		t.Fatalf("expected 1 created execution, got %d", len(exes))
	}

	resp = doJSON(t, "GET", srv.URL+"/endpoints/"+epID+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.StatusCode)
	}
	var stats struct {
		Total    int64            `json:"total"`
		ByStatus map[string]int64 `json:"by_status"`
	}
	decodeBody(t, resp, &stats)
	if stats.Total != 2 {
		t.Fatalf("expected total 2, got %d", stats.Total)
	}
	if stats.ByStatus["created"] != 1 || stats.ByStatus["mapping_error"] != 1 {
		t.Fatalf("unexpected status counts: %v", stats.ByStatus)
	}
}
