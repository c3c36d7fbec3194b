// Package extension provides the Forge extension for mounting intake.
//
// The extension integrates intake into the Forge application framework by:
//   - Initializing the intake engine with a configured store
//   - Running database migrations on registration
//   - Mounting the receiver and admin API routes under a configurable prefix
//   - Registering the admin routes with OpenAPI metadata
//   - Providing health checks via store.Ping
//
// Usage:
//
//	app := forge.New(
//	    forge.WithExtensions(
//	        extension.New(
//	            extension.WithStore(postgresStore),
//	            extension.WithPrefix("/api/v1/webhooks"),
//	        ),
//	    ),
//	)
//	app.Run()
package extension
