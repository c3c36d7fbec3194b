// Package intake provides a composable inbound webhook ingestion engine for Go.
//
// Intake is a library — not a service. Import it into your application to get
// per-tenant inbound endpoints that accept webhook payloads from external
// systems, authenticate them, map their fields onto your own data models, and
// write typed records with deduplication.
//
// Key features:
//   - Slug-addressed endpoints with per-endpoint auth (none, API key, HMAC-SHA256)
//   - Rolling per-minute rate limiting
//   - Declarative field mapping with typed coercion and defaults
//   - Dedupe-aware create, update, and upsert writes
//   - Dry-run test mode that validates everything and persists nothing
//   - Composable store pattern with multiple backends (Postgres, Bun, Mongo, Redis, Memory)
//   - Forge-native with standalone fallback
//
// Quick start:
//
//	eng, err := intake.New(
//	    intake.WithStore(memoryStore),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng.RegisterModel(ctx, schema.Definition{
//	    Name: "contact",
//	    Fields: []schema.Field{
//	        {Name: "email", Type: schema.TypeString, Required: true, Unique: true},
//	        {Name: "full_name", Type: schema.TypeString},
//	    },
//	})
//
//	dedupe := "email"
//	ep, _ := eng.Endpoints().Create(ctx, endpoint.Input{
//	    Name:         "CRM Sync",
//	    TargetModel:  "contact",
//	    TargetAction: endpoint.ActionUpsert,
//	    Mapping: []endpoint.Rule{
//	        {External: "email_address", Internal: "email"},
//	        {External: "name", Internal: "full_name"},
//	    },
//	    DedupeField: &dedupe,
//	})
//
//	res, _ := eng.Ingest(ctx, ep.Slug, intake.Request{Body: body, APIKey: key})
package intake
