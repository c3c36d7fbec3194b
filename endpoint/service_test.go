package endpoint_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/intake"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/schema"
	"github.com/xraph/intake/store/memory"
)

func ctx() context.Context { return context.Background() }

func setup(t *testing.T) *endpoint.Service {
	t.Helper()
	s := memory.New()
	catalog := schema.NewCatalog(s, schema.Config{CacheTTL: 30 * time.Second}, slog.Default())

	_, err := catalog.Register(ctx(), schema.Definition{
		Name: "contact",
		Fields: []schema.Field{
			{Name: "email", Type: schema.TypeString, Required: true, Unique: true},
			{Name: "full_name", Type: schema.TypeString},
			{Name: "nickname", Type: schema.TypeString},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	return endpoint.NewService(s, catalog, slog.Default())
}

func validInput() endpoint.Input {
	return endpoint.Input{
		Name:        "CRM Sync",
		TargetModel: "contact",
		Mapping:     []endpoint.Rule{{External: "email_address", Internal: "email"}},
	}
}

func wantValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *endpoint.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != field {
		t.Fatalf("expected field %q, got %q (%s)", field, verr.Field, verr.Message)
	}
}

// ──────────────────────────────────────────────────
// Create
// ──────────────────────────────────────────────────

func TestCreateDefaults(t *testing.T) {
	svc := setup(t)

	ep, err := svc.Create(ctx(), validInput())
	if err != nil {
		t.Fatal(err)
	}

	if ep.Slug != "crm-sync" {
		t.Fatalf("got slug %q", ep.Slug)
	}
	if ep.AuthType != endpoint.AuthAPIKey {
		t.Fatalf("got auth type %q", ep.AuthType)
	}
	if ep.TargetAction != endpoint.ActionCreate {
		t.Fatalf("got action %q", ep.TargetAction)
	}
	if ep.RateLimitPerMinute != 60 {
		t.Fatalf("got rate limit %d", ep.RateLimitPerMinute)
	}
	if !ep.Active {
		t.Fatal("new endpoint not active")
	}
	if !strings.HasPrefix(ep.Credential, "whk_") {
		t.Fatalf("api_key endpoint issued credential %q", ep.Credential)
	}
}

func TestCreateHMACIssuesSecret(t *testing.T) {
	svc := setup(t)

	in := validInput()
	in.AuthType = endpoint.AuthHMAC
	ep, err := svc.Create(ctx(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ep.Credential, "whsec_") {
		t.Fatalf("hmac endpoint issued credential %q", ep.Credential)
	}
}

func TestCreateAuthNoneHasNoCredential(t *testing.T) {
	svc := setup(t)

	in := validInput()
	in.AuthType = endpoint.AuthNone
	ep, err := svc.Create(ctx(), in)
	if err != nil {
		t.Fatal(err)
	}
	if ep.Credential != "" {
		t.Fatalf("auth none endpoint issued credential %q", ep.Credential)
	}
}

func TestCreateValidationMatrix(t *testing.T) {
	svc := setup(t)
	dedupe := func(f string) *string { return &f }
	zero := 0

	tests := []struct {
		name  string
		mut   func(*endpoint.Input)
		field string
	}{
		{"missing name", func(in *endpoint.Input) { in.Name = "" }, "name"},
		{"bad slug", func(in *endpoint.Input) { in.Slug = "Not A Slug!" }, "slug"},
		{"unknown auth type", func(in *endpoint.Input) { in.AuthType = "bearer" }, "auth_type"},
		{"unknown action", func(in *endpoint.Input) { in.TargetAction = "merge" }, "target_action"},
		{"unknown model", func(in *endpoint.Input) { in.TargetModel = "ghost" }, "target_model"},
		{"missing model", func(in *endpoint.Input) { in.TargetModel = "" }, "target_model"},
		{"zero rate limit", func(in *endpoint.Input) { in.RateLimitPerMinute = &zero }, "rate_limit_per_minute"},
		{"unknown mapped field", func(in *endpoint.Input) {
			in.Mapping = []endpoint.Rule{{External: "x", Internal: "ghost"}}
		}, "field_mapping"},
		{"duplicate external key", func(in *endpoint.Input) {
			in.Mapping = append(in.Mapping, endpoint.Rule{External: "email_address", Internal: "full_name"})
		}, "field_mapping"},
		{"required field uncovered", func(in *endpoint.Input) {
			in.Mapping = []endpoint.Rule{{External: "n", Internal: "full_name"}}
		}, "field_mapping"},
		{"upsert without dedupe field", func(in *endpoint.Input) {
			in.TargetAction = endpoint.ActionUpsert
		}, "dedupe_field"},
		{"dedupe field not in model", func(in *endpoint.Input) {
			in.TargetAction = endpoint.ActionUpsert
			in.DedupeField = dedupe("ghost")
		}, "dedupe_field"},
		{"dedupe field not unique", func(in *endpoint.Input) {
			in.TargetAction = endpoint.ActionUpdate
			in.DedupeField = dedupe("full_name")
		}, "dedupe_field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mut(&in)
			_, err := svc.Create(ctx(), in)
			wantValidation(t, err, tt.field)
		})
	}
}

func TestCreateRequiredCoveredByDefault(t *testing.T) {
	svc := setup(t)

	in := validInput()
	in.Mapping = []endpoint.Rule{{External: "n", Internal: "full_name"}}
	in.Defaults = map[string]any{"email": "fallback@x.io"}
	if _, err := svc.Create(ctx(), in); err != nil {
		t.Fatal(err)
	}
}

func TestCreateSlugConflict(t *testing.T) {
	svc := setup(t)

	if _, err := svc.Create(ctx(), validInput()); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Create(ctx(), validInput())
	if !errors.Is(err, intake.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Update
// ──────────────────────────────────────────────────

func TestUpdatePartial(t *testing.T) {
	svc := setup(t)

	ep, err := svc.Create(ctx(), validInput())
	if err != nil {
		t.Fatal(err)
	}
	origCredential := ep.Credential

	limit := 10
	got, err := svc.Update(ctx(), ep.ID, endpoint.Input{RateLimitPerMinute: &limit})
	if err != nil {
		t.Fatal(err)
	}

	if got.RateLimitPerMinute != 10 {
		t.Fatalf("got rate limit %d", got.RateLimitPerMinute)
	}
	if got.Name != "CRM Sync" || got.Slug != "crm-sync" {
		t.Fatalf("untouched fields changed: %q %q", got.Name, got.Slug)
	}
	if got.Credential != origCredential {
		t.Fatal("credential changed without an auth type change")
	}
}

func TestUpdateRenameKeepsSlug(t *testing.T) {
	svc := setup(t)

	ep, _ := svc.Create(ctx(), validInput())
	got, err := svc.Update(ctx(), ep.ID, endpoint.Input{Name: "Renamed Integration"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Slug != "crm-sync" {
		t.Fatalf("rename re-derived slug: %q", got.Slug)
	}
}

func TestUpdateAuthTypeReissuesCredential(t *testing.T) {
	svc := setup(t)

	ep, _ := svc.Create(ctx(), validInput())

	got, err := svc.Update(ctx(), ep.ID, endpoint.Input{AuthType: endpoint.AuthHMAC})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got.Credential, "whsec_") {
		t.Fatalf("auth switch issued credential %q", got.Credential)
	}
}

func TestUpdateValidatesResult(t *testing.T) {
	svc := setup(t)

	ep, _ := svc.Create(ctx(), validInput())

	// Switching to upsert without a dedupe field must fail.
	_, err := svc.Update(ctx(), ep.ID, endpoint.Input{TargetAction: endpoint.ActionUpsert})
	wantValidation(t, err, "dedupe_field")

	// And the stored endpoint is untouched.
	got, _ := svc.Get(ctx(), ep.ID)
	if got.TargetAction != endpoint.ActionCreate {
		t.Fatalf("failed update persisted: %q", got.TargetAction)
	}
}

// ──────────────────────────────────────────────────
// Rotation, deletion
// ──────────────────────────────────────────────────

func TestRotateCredential(t *testing.T) {
	svc := setup(t)

	ep, _ := svc.Create(ctx(), validInput())
	old := ep.Credential

	fresh, err := svc.RotateCredential(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh == old {
		t.Fatal("rotation returned the old credential")
	}
	if !strings.HasPrefix(fresh, "whk_") {
		t.Fatalf("rotated credential %q", fresh)
	}

	got, _ := svc.Get(ctx(), ep.ID)
	if got.Credential != fresh {
		t.Fatal("rotated credential not persisted")
	}
}

func TestRotateCredentialAuthNone(t *testing.T) {
	svc := setup(t)

	in := validInput()
	in.AuthType = endpoint.AuthNone
	ep, _ := svc.Create(ctx(), in)

	_, err := svc.RotateCredential(ctx(), ep.ID)
	wantValidation(t, err, "auth_type")
}

func TestDeleteFreesSlug(t *testing.T) {
	svc := setup(t)

	ep, _ := svc.Create(ctx(), validInput())
	if err := svc.Delete(ctx(), ep.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetBySlug(ctx(), "crm-sync"); !errors.Is(err, intake.ErrEndpointNotFound) {
		t.Fatalf("slug still resolves after delete: %v", err)
	}
	if _, err := svc.Create(ctx(), validInput()); err != nil {
		t.Fatalf("slug not reusable: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Slug derivation
// ──────────────────────────────────────────────────

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"CRM Sync", "crm-sync"},
		{"  Already----dashed  ", "already-dashed"},
		{"Üñïcode & Symbols!", "code-symbols"},
		{"simple", "simple"},
	}
	for _, tt := range tests {
		if got := endpoint.Slugify(tt.in); got != tt.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidSlug(t *testing.T) {
	for _, ok := range []string{"crm-sync", "a", "x-1-y"} {
		if !endpoint.ValidSlug(ok) {
			t.Fatalf("%q rejected", ok)
		}
	}
	for _, bad := range []string{"", "Has Caps", "trailing-", "-leading", "under_score", "sp ace"} {
		if endpoint.ValidSlug(bad) {
			t.Fatalf("%q accepted", bad)
		}
	}
}
