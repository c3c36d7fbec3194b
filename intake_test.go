package intake_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/xraph/intake"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/schema"
	"github.com/xraph/intake/signature"
	intakestore "github.com/xraph/intake/store"
	"github.com/xraph/intake/store/memory"
)

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func ctx() context.Context { return context.Background() }

func setup(t *testing.T) (*intake.Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	eng, err := intake.New(intake.WithStore(s))
	if err != nil {
		t.Fatal(err)
	}
	return eng, s
}

func registerContact(t *testing.T, eng *intake.Engine) {
	t.Helper()
	_, err := eng.RegisterModel(ctx(), schema.Definition{
		Name: "contact",
		Fields: []schema.Field{
			{Name: "email", Type: schema.TypeString, Required: true, Unique: true},
			{Name: "full_name", Type: schema.TypeString},
			{Name: "source", Type: schema.TypeString},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func createEndpoint(t *testing.T, eng *intake.Engine, in endpoint.Input) *endpoint.Endpoint {
	t.Helper()
	ep, err := eng.Endpoints().Create(ctx(), in)
	if err != nil {
		t.Fatal(err)
	}
	return ep
}

func upsertInput() endpoint.Input {
	dedupe := "email"
	return endpoint.Input{
		Name:         "CRM Sync",
		TargetModel:  "contact",
		TargetAction: endpoint.ActionUpsert,
		Mapping: []endpoint.Rule{
			{External: "email_address", Internal: "email"},
			{External: "name", Internal: "full_name"},
		},
		Defaults:    map[string]any{"source": "webhook"},
		DedupeField: &dedupe,
	}
}

// ──────────────────────────────────────────────────
// Happy path
// ──────────────────────────────────────────────────

func TestIngestUpsertCreatesThenUpdates(t *testing.T) {
	eng, s := setup(t)
	registerContact(t, eng)
	ep := createEndpoint(t, eng, upsertInput())

	req := intake.Request{
		Body:   mustJSON(map[string]any{"email_address": "jane@acme.io", "name": "Jane"}),
		APIKey: ep.Credential,
	}

	res, err := eng.Ingest(ctx(), ep.Slug, req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusCreated {
		t.Fatalf("first ingest: got %q (%s)", res.Status, res.Message)
	}
	if res.MappedData["source"] != "webhook" {
		t.Fatalf("default not applied: %v", res.MappedData)
	}

	rec, err := s.GetRecord(ctx(), res.ObjectID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Data["email"] != "jane@acme.io" || rec.Data["full_name"] != "Jane" {
		t.Fatalf("record data %v", rec.Data)
	}

	// Same email again: the dedupe resolver finds the record, upsert updates.
	req.Body = mustJSON(map[string]any{"email_address": "jane@acme.io", "name": "Jane Doe"})
	res, err = eng.Ingest(ctx(), ep.Slug, req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusUpdated {
		t.Fatalf("second ingest: got %q (%s)", res.Status, res.Message)
	}
	if res.ObjectID.String() != rec.ID.String() {
		t.Fatal("update targeted a different record")
	}

	count, _ := s.CountRecords(ctx(), "contact")
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}
	rec, _ = s.GetRecord(ctx(), rec.ID)
	if rec.Data["full_name"] != "Jane Doe" {
		t.Fatalf("update not applied: %v", rec.Data)
	}
}

func TestIngestDefaultDoesNotOverrideMappedEmpty(t *testing.T) {
	eng, _ := setup(t)
	registerContact(t, eng)

	dedupe := "email"
	in := upsertInput()
	in.Mapping = append(in.Mapping, endpoint.Rule{External: "src", Internal: "source"})
	in.DedupeField = &dedupe
	ep := createEndpoint(t, eng, in)

	// A mapped empty string is a real value; the default must not replace it.
	res, err := eng.Ingest(ctx(), ep.Slug, intake.Request{
		Body:   mustJSON(map[string]any{"email_address": "x@y.io", "src": ""}),
		APIKey: ep.Credential,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusCreated {
		t.Fatalf("got %q (%s)", res.Status, res.Message)
	}
	if v, ok := res.MappedData["source"]; !ok || v != "" {
		t.Fatalf("default overrode mapped empty string: %v", res.MappedData["source"])
	}
}

// ──────────────────────────────────────────────────
// Rejections
// ──────────────────────────────────────────────────

func TestIngestUnknownSlug(t *testing.T) {
	eng, _ := setup(t)

	_, err := eng.Ingest(ctx(), "no-such-slug", intake.Request{Body: []byte(`{}`)})
	if !errors.Is(err, intake.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

// downStore simulates an unreachable backend during endpoint resolution.
type downStore struct {
	intakestore.Store
}

var errStoreDown = errors.New("connection refused")

func (downStore) GetEndpointBySlug(context.Context, string) (*endpoint.Endpoint, error) {
	return nil, errStoreDown
}

func TestIngestStoreFailureIsNotUnknownSlug(t *testing.T) {
	eng, err := intake.New(intake.WithStore(downStore{Store: memory.New()}))
	if err != nil {
		t.Fatal(err)
	}

	_, err = eng.Ingest(ctx(), "any-slug", intake.Request{Body: []byte(`{}`)})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error to surface, got %v", err)
	}
	if errors.Is(err, intake.ErrEndpointNotFound) {
		t.Fatal("store failure reported as unknown slug")
	}
}

func TestIngestInactiveAlwaysWins(t *testing.T) {
	eng, s := setup(t)
	registerContact(t, eng)
	ep := createEndpoint(t, eng, upsertInput())

	if err := eng.Endpoints().SetActive(ctx(), ep.ID, false); err != nil {
		t.Fatal(err)
	}

	// Valid credentials, valid payload: still rejected_inactive, before auth
	// even gets a look.
	for _, key := range []string{ep.Credential, "wrong", ""} {
		res, err := eng.Ingest(ctx(), ep.Slug, intake.Request{
			Body:   mustJSON(map[string]any{"email_address": "a@b.co"}),
			APIKey: key,
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != intake.StatusRejectedInactive {
			t.Fatalf("key %q: got %q", key, res.Status)
		}
	}

	count, _ := s.CountRecords(ctx(), "contact")
	if count != 0 {
		t.Fatalf("inactive endpoint wrote %d records", count)
	}
}

func TestIngestRejectsBadAPIKey(t *testing.T) {
	eng, _ := setup(t)
	registerContact(t, eng)
	ep := createEndpoint(t, eng, upsertInput())

	body := mustJSON(map[string]any{"email_address": "a@b.co"})
	for _, key := range []string{"", "wrong", ep.Credential + "x"} {
		res, err := eng.Ingest(ctx(), ep.Slug, intake.Request{Body: body, APIKey: key})
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != intake.StatusRejectedAuth {
			t.Fatalf("key %q: got %q", key, res.Status)
		}
	}
}

func TestIngestHMAC(t *testing.T) {
	eng, _ := setup(t)
	registerContact(t, eng)

	in := upsertInput()
	in.AuthType = endpoint.AuthHMAC
	ep := createEndpoint(t, eng, in)

	body := mustJSON(map[string]any{"email_address": "sig@x.io"})

	res, err := eng.Ingest(ctx(), ep.Slug, intake.Request{
		Body:      body,
		Signature: signature.Sign(body, ep.Credential),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusCreated {
		t.Fatalf("valid signature: got %q (%s)", res.Status, res.Message)
	}

	// Signature over different bytes fails.
	res, _ = eng.Ingest(ctx(), ep.Slug, intake.Request{
		Body:      mustJSON(map[string]any{"email_address": "tampered@x.io"}),
		Signature: signature.Sign(body, ep.Credential),
	})
	if res.Status != intake.StatusRejectedAuth {
		t.Fatalf("tampered body: got %q", res.Status)
	}

	// Missing signature fails.
	res, _ = eng.Ingest(ctx(), ep.Slug, intake.Request{Body: body})
	if res.Status != intake.StatusRejectedAuth {
		t.Fatalf("missing signature: got %q", res.Status)
	}
}

func TestIngestRateLimit(t *testing.T) {
	eng, _ := setup(t)
	registerContact(t, eng)

	limit := 2
	in := upsertInput()
	in.RateLimitPerMinute = &limit
	ep := createEndpoint(t, eng, in)

	body := mustJSON(map[string]any{"email_address": "rl@x.io"})
	req := intake.Request{Body: body, APIKey: ep.Credential}

	for i := 0; i < limit; i++ {
		res, err := eng.Ingest(ctx(), ep.Slug, req)
		if err != nil {
			t.Fatal(err)
		}
		if res.Status.Rejected() {
			t.Fatalf("request %d rejected: %q", i+1, res.Status)
		}
	}

	res, err := eng.Ingest(ctx(), ep.Slug, req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusRejectedRateLimit {
		t.Fatalf("over limit: got %q", res.Status)
	}
}

func TestIngestAuthRejectionsDoNotConsumeRateLimit(t *testing.T) {
	eng, _ := setup(t)
	registerContact(t, eng)

	limit := 1
	in := upsertInput()
	in.RateLimitPerMinute = &limit
	ep := createEndpoint(t, eng, in)

	body := mustJSON(map[string]any{"email_address": "quota@x.io"})

	// Hammer with bad credentials; none of these consume the window.
	for i := 0; i < 5; i++ {
		res, _ := eng.Ingest(ctx(), ep.Slug, intake.Request{Body: body, APIKey: "wrong"})
		if res.Status != intake.StatusRejectedAuth {
			t.Fatalf("got %q", res.Status)
		}
	}

	res, err := eng.Ingest(ctx(), ep.Slug, intake.Request{Body: body, APIKey: ep.Credential})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusCreated {
		t.Fatalf("authenticated request blocked: %q (%s)", res.Status, res.Message)
	}
}

// ──────────────────────────────────────────────────
// Mapping and write failures
// ──────────────────────────────────────────────────

func TestIngestInvalidJSON(t *testing.T) {
	eng, _ := setup(t)
	registerContact(t, eng)
	ep := createEndpoint(t, eng, upsertInput())

	res, err := eng.Ingest(ctx(), ep.Slug, intake.Request{
		Body:   []byte(`{"email_address": `),
		APIKey: ep.Credential,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusMappingError {
		t.Fatalf("got %q", res.Status)
	}
}

func TestIngestNullBody(t *testing.T) {
	eng, _ := setup(t)
	registerContact(t, eng)
	ep := createEndpoint(t, eng, upsertInput())

	// json.Unmarshal accepts a literal null into a map without error; it
	// must still be rejected as a non-object body.
	res, err := eng.Ingest(ctx(), ep.Slug, intake.Request{
		Body:   []byte(`null`),
		APIKey: ep.Credential,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusMappingError {
		t.Fatalf("got %q", res.Status)
	}
}

func TestIngestMissingRequiredField(t *testing.T) {
	eng, s := setup(t)
	registerContact(t, eng)
	ep := createEndpoint(t, eng, upsertInput())

	res, err := eng.Ingest(ctx(), ep.Slug, intake.Request{
		Body:   mustJSON(map[string]any{"name": "No Email"}),
		APIKey: ep.Credential,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusMappingError {
		t.Fatalf("got %q (%s)", res.Status, res.Message)
	}
	if len(res.MappingErrors) == 0 {
		t.Fatal("no field errors reported")
	}

	count, _ := s.CountRecords(ctx(), "contact")
	if count != 0 {
		t.Fatalf("mapping error still wrote %d records", count)
	}
}

func TestIngestUpdateWithoutMatch(t *testing.T) {
	eng, s := setup(t)
	registerContact(t, eng)

	dedupe := "email"
	in := upsertInput()
	in.TargetAction = endpoint.ActionUpdate
	in.DedupeField = &dedupe
	ep := createEndpoint(t, eng, in)

	res, err := eng.Ingest(ctx(), ep.Slug, intake.Request{
		Body:   mustJSON(map[string]any{"email_address": "ghost@x.io"}),
		APIKey: ep.Credential,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusWriteError {
		t.Fatalf("got %q (%s)", res.Status, res.Message)
	}

	count, _ := s.CountRecords(ctx(), "contact")
	if count != 0 {
		t.Fatalf("update without match created %d records", count)
	}
}

func TestIngestModelDrift(t *testing.T) {
	eng, _ := setup(t)
	registerContact(t, eng)
	ep := createEndpoint(t, eng, upsertInput())

	// The model vanishes after the endpoint was validated.
	if err := eng.Models().Delete(ctx(), "contact"); err != nil {
		t.Fatal(err)
	}

	res, err := eng.Ingest(ctx(), ep.Slug, intake.Request{
		Body:   mustJSON(map[string]any{"email_address": "drift@x.io"}),
		APIKey: ep.Credential,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusWriteError {
		t.Fatalf("got %q (%s)", res.Status, res.Message)
	}
}

// ──────────────────────────────────────────────────
// Test runs and dry-run
// ──────────────────────────────────────────────────

func TestTestRunDryRunPersistsNothing(t *testing.T) {
	eng, s := setup(t)
	registerContact(t, eng)
	ep := createEndpoint(t, eng, upsertInput())

	res, err := eng.Test(ctx(), ep.ID, map[string]any{"email_address": "dry@x.io"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusValid {
		t.Fatalf("got %q (%s)", res.Status, res.Message)
	}

	count, _ := s.CountRecords(ctx(), "contact")
	if count != 0 {
		t.Fatalf("dry run wrote %d records", count)
	}

	// The run itself is still logged.
	execs, err := s.ListExecutions(ctx(), ep.ID, execution.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(execs) != 1 || !execs[0].DryRun {
		t.Fatalf("dry run not logged: %+v", execs)
	}
}

func TestTestRunDryRunUpsertConflictPersistsNothing(t *testing.T) {
	eng, s := setup(t)
	_, err := eng.RegisterModel(ctx(), schema.Definition{
		Name: "account",
		Fields: []schema.Field{
			{Name: "email", Type: schema.TypeString, Required: true, Unique: true},
			{Name: "username", Type: schema.TypeString, Unique: true},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	dedupe := "email"
	ep := createEndpoint(t, eng, endpoint.Input{
		Name:         "Account Sync",
		TargetModel:  "account",
		TargetAction: endpoint.ActionUpsert,
		Mapping: []endpoint.Rule{
			{External: "email", Internal: "email"},
			{External: "username", Internal: "username"},
		},
		DedupeField: &dedupe,
	})

	res, err := eng.Test(ctx(), ep.ID, map[string]any{"email": "a@x.io", "username": "bob"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusCreated {
		t.Fatalf("seed run got %q (%s)", res.Status, res.Message)
	}
	seededID := res.ObjectID

	// New email, colliding username: the dedupe lookup matches nothing, the
	// secondary unique field conflicts. The dry run must report the conflict
	// without writing anything.
	res, err = eng.Test(ctx(), ep.ID, map[string]any{"email": "b@x.io", "username": "bob"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusWriteError {
		t.Fatalf("got %q (%s)", res.Status, res.Message)
	}
	if !res.ObjectID.IsNil() {
		t.Fatalf("dry run reported object id %s", res.ObjectID)
	}

	count, _ := s.CountRecords(ctx(), "account")
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}
	rec, err := s.GetRecord(ctx(), seededID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Data["email"] != "a@x.io" || rec.Data["username"] != "bob" {
		t.Fatalf("dry run mutated the record: %v", rec.Data)
	}
}

func TestTestRunSkipsAuthAndActive(t *testing.T) {
	eng, _ := setup(t)
	registerContact(t, eng)
	ep := createEndpoint(t, eng, upsertInput())

	if err := eng.Endpoints().SetActive(ctx(), ep.ID, false); err != nil {
		t.Fatal(err)
	}

	// Owner-invoked test runs ignore the active flag and need no credential.
	res, err := eng.Test(ctx(), ep.ID, map[string]any{"email_address": "owner@x.io"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusCreated {
		t.Fatalf("got %q (%s)", res.Status, res.Message)
	}
}

func TestTestRunReportsMappingErrors(t *testing.T) {
	eng, _ := setup(t)
	registerContact(t, eng)
	ep := createEndpoint(t, eng, upsertInput())

	res, err := eng.Test(ctx(), ep.ID, map[string]any{"name": "No Email"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != intake.StatusMappingError {
		t.Fatalf("got %q", res.Status)
	}
	if len(res.MappingErrors) == 0 {
		t.Fatal("no field errors reported")
	}
}

// ──────────────────────────────────────────────────
// Execution log
// ──────────────────────────────────────────────────

func TestIngestRecordsExecutions(t *testing.T) {
	eng, s := setup(t)
	registerContact(t, eng)
	ep := createEndpoint(t, eng, upsertInput())

	if _, err := eng.Ingest(ctx(), ep.Slug, intake.Request{
		Body:   mustJSON(map[string]any{"email_address": "log@x.io"}),
		APIKey: ep.Credential,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Ingest(ctx(), ep.Slug, intake.Request{
		Body:   mustJSON(map[string]any{"email_address": "log@x.io"}),
		APIKey: "wrong",
	}); err != nil {
		t.Fatal(err)
	}

	execs, err := eng.Executions().List(ctx(), ep.ID, execution.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(execs) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(execs))
	}
	// Newest first: the auth rejection.
	if execs[0].Status != string(intake.StatusRejectedAuth) {
		t.Fatalf("got %q", execs[0].Status)
	}
	if execs[1].Status != string(intake.StatusCreated) {
		t.Fatalf("got %q", execs[1].Status)
	}
	if execs[1].ObjectID.IsNil() {
		t.Fatal("created execution missing object ID")
	}
	if execs[1].DurationMs < 0 {
		t.Fatalf("bad duration %d", execs[1].DurationMs)
	}

	count, err := s.CountExecutions(ctx(), ep.ID, string(intake.StatusCreated))
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("got count %d", count)
	}
}

func TestExecutionLogDisabled(t *testing.T) {
	s := memory.New()
	eng, err := intake.New(intake.WithStore(s), intake.WithExecutionLog(false))
	if err != nil {
		t.Fatal(err)
	}
	registerContact(t, eng)
	ep := createEndpoint(t, eng, upsertInput())

	if _, err := eng.Ingest(ctx(), ep.Slug, intake.Request{
		Body:   mustJSON(map[string]any{"email_address": "quiet@x.io"}),
		APIKey: ep.Credential,
	}); err != nil {
		t.Fatal(err)
	}

	execs, _ := s.ListExecutions(ctx(), ep.ID, execution.ListOpts{})
	if len(execs) != 0 {
		t.Fatalf("execution logged despite being disabled: %d", len(execs))
	}
}
