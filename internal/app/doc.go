// Package app composes the ordering service into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── user/           # Registered users
//	│   ├── verification/   # Phone verification codes
//	│   ├── invite/         # Invite codes and invitation records
//	│   ├── order/          # Orders and form data
//	│   ├── reward/         # Referral reward stats and claims
//	│   └── preference/     # Saved user preferences
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces per domain
//	│   ├── memory/         # In-memory implementation for tests and dev
//	│   ├── postgres/       # PostgreSQL implementation with migrations
//	│   └── redis/          # Redis-backed verification code store
//	├── services/           # Business logic per domain
//	├── httpapi/            # HTTP API handlers and routing
//	├── system/             # Service lifecycle management
//	└── metrics/            # Prometheus metrics
//
// The app package wires services from internal/app/services/ to the
// storage backends selected by the caller, seeds startup data, and
// manages background services through internal/app/system. Business
// rules live in the service packages; request and response handling
// lives in httpapi.
//
// # Dependency Direction
//
//	cmd/apiserver/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/services/ (business logic)
//	      │           │
//	      │           └──► internal/app/storage/ (interfaces)
//	      │
//	      └──► internal/app/storage/{memory,postgres,redis}/ (backends)
//
// # Example: Adding a New Domain
//
//  1. Create domain models in internal/app/domain/<name>/
//  2. Add a storage interface to internal/app/storage/interfaces.go
//  3. Implement storage in internal/app/storage/postgres/ and memory/
//  4. Create a service in internal/app/services/<name>/service.go
//  5. Wire the service in internal/app/application.go
//  6. Add HTTP handlers and routes in internal/app/httpapi/handler.go
package app
