package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/mapping"
	"github.com/xraph/intake/record"
	"github.com/xraph/intake/schema"
)

// --- Endpoint models ---

type endpointModel struct {
	grove.BaseModel `grove:"table:intake_endpoints"`

	ID                 string            `grove:"id,pk"                 bson:"_id"`
	Slug               string            `grove:"slug,unique"           bson:"slug"`
	Name               string            `grove:"name"                  bson:"name"`
	Description        string            `grove:"description"           bson:"description"`
	AuthType           string            `grove:"auth_type"             bson:"auth_type"`
	Credential         string            `grove:"credential"            bson:"credential"`
	TargetModel        string            `grove:"target_model"          bson:"target_model"`
	TargetAction       string            `grove:"target_action"         bson:"target_action"`
	FieldMapping       []endpoint.Rule   `grove:"field_mapping"         bson:"field_mapping,omitempty"`
	DefaultValues      map[string]any    `grove:"default_values"        bson:"default_values,omitempty"`
	DedupeField        string            `grove:"dedupe_field"          bson:"dedupe_field"`
	IsActive           bool              `grove:"is_active"             bson:"is_active"`
	RateLimitPerMinute int               `grove:"rate_limit_per_minute" bson:"rate_limit_per_minute"`
	ScopeAppID         string            `grove:"scope_app_id"          bson:"scope_app_id"`
	ScopeOrgID         string            `grove:"scope_org_id"          bson:"scope_org_id"`
	Metadata           map[string]string `grove:"metadata"              bson:"metadata,omitempty"`
	CreatedAt          time.Time         `grove:"created_at"            bson:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"            bson:"updated_at"`
}

func toEndpointModel(ep *endpoint.Endpoint) *endpointModel {
	return &endpointModel{
		ID:                 ep.ID.String(),
		Slug:               ep.Slug,
		Name:               ep.Name,
		Description:        ep.Description,
		AuthType:           string(ep.AuthType),
		Credential:         ep.Credential,
		TargetModel:        ep.TargetModel,
		TargetAction:       string(ep.TargetAction),
		FieldMapping:       ep.Mapping,
		DefaultValues:      ep.Defaults,
		DedupeField:        ep.DedupeField,
		IsActive:           ep.Active,
		RateLimitPerMinute: ep.RateLimitPerMinute,
		ScopeAppID:         ep.ScopeAppID,
		ScopeOrgID:         ep.ScopeOrgID,
		Metadata:           ep.Metadata,
		CreatedAt:          ep.CreatedAt,
		UpdatedAt:          ep.UpdatedAt,
	}
}

func fromEndpointModel(m *endpointModel) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.ID, err)
	}

	return &endpoint.Endpoint{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 epID,
		Slug:               m.Slug,
		Name:               m.Name,
		Description:        m.Description,
		AuthType:           endpoint.AuthType(m.AuthType),
		Credential:         m.Credential,
		TargetModel:        m.TargetModel,
		TargetAction:       endpoint.Action(m.TargetAction),
		Mapping:            m.FieldMapping,
		Defaults:           m.DefaultValues,
		DedupeField:        m.DedupeField,
		Active:             m.IsActive,
		RateLimitPerMinute: m.RateLimitPerMinute,
		ScopeAppID:         m.ScopeAppID,
		ScopeOrgID:         m.ScopeOrgID,
		Metadata:           m.Metadata,
	}, nil
}

// --- Target model models ---

type modelModel struct {
	grove.BaseModel `grove:"table:intake_models"`

	ID         string            `grove:"id,pk"        bson:"_id"`
	Name       string            `grove:"name,unique"  bson:"name"`
	Definition schema.Definition `grove:"definition"   bson:"definition"`
	ScopeAppID string            `grove:"scope_app_id" bson:"scope_app_id"`
	Metadata   map[string]string `grove:"metadata"     bson:"metadata,omitempty"`
	CreatedAt  time.Time         `grove:"created_at"   bson:"created_at"`
	UpdatedAt  time.Time         `grove:"updated_at"   bson:"updated_at"`
}

func toModelModel(m *schema.Model) *modelModel {
	return &modelModel{
		ID:         m.ID.String(),
		Name:       m.Definition.Name,
		Definition: m.Definition,
		ScopeAppID: m.ScopeAppID,
		Metadata:   m.Metadata,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func fromModelModel(m *modelModel) (*schema.Model, error) {
	mID, err := id.ParseModelID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse model ID %q: %w", m.ID, err)
	}

	return &schema.Model{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         mID,
		Definition: m.Definition,
		ScopeAppID: m.ScopeAppID,
		Metadata:   m.Metadata,
	}, nil
}

// --- Record models ---

type recordModel struct {
	grove.BaseModel `grove:"table:intake_records"`

	ID        string         `grove:"id,pk"      bson:"_id"`
	Model     string         `grove:"model"      bson:"model"`
	Data      map[string]any `grove:"data"       bson:"data,omitempty"`
	CreatedAt time.Time      `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time      `grove:"updated_at" bson:"updated_at"`
}

func toRecordModel(rec *record.Record) *recordModel {
	return &recordModel{
		ID:        rec.ID.String(),
		Model:     rec.Model,
		Data:      rec.Data,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func fromRecordModel(m *recordModel) (*record.Record, error) {
	recID, err := id.ParseRecordID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse record ID %q: %w", m.ID, err)
	}

	return &record.Record{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:    recID,
		Model: m.Model,
		Data:  m.Data,
	}, nil
}

// recordFieldModel mirrors one record field value in KeyString form. The
// compound _id keeps claim inserts idempotent per (record, field, key); the
// partial unique index on (model, field, key) enforces uniqueness for
// is_unique documents.
type recordFieldModel struct {
	grove.BaseModel `grove:"table:intake_record_fields"`

	ID       string `grove:"id,pk"     bson:"_id"`
	RecordID string `grove:"record_id" bson:"record_id"`
	Field    string `grove:"field"     bson:"field"`
	Key      string `grove:"key"       bson:"key"`
	Model    string `grove:"model"     bson:"model"`
	IsUnique bool   `grove:"is_unique" bson:"is_unique"`
}

func fieldDocID(recordID, field, key string) string {
	return recordID + "\x00" + field + "\x00" + key
}

// --- Execution models ---

type executionModel struct {
	grove.BaseModel `grove:"table:intake_executions"`

	ID            string               `grove:"id,pk"          bson:"_id"`
	EndpointID    string               `grove:"endpoint_id"    bson:"endpoint_id"`
	Status        string               `grove:"status"         bson:"status"`
	Message       string               `grove:"message"        bson:"message"`
	ObjectID      string               `grove:"object_id"      bson:"object_id,omitempty"`
	MappingErrors []mapping.FieldError `grove:"mapping_errors" bson:"mapping_errors,omitempty"`
	MappedData    map[string]any       `grove:"mapped_data"    bson:"mapped_data,omitempty"`
	DryRun        bool                 `grove:"dry_run"        bson:"dry_run"`
	DurationMs    int64                `grove:"duration_ms"    bson:"duration_ms"`
	ScopeAppID    string               `grove:"scope_app_id"   bson:"scope_app_id"`
	ScopeOrgID    string               `grove:"scope_org_id"   bson:"scope_org_id"`
	CreatedAt     time.Time            `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time            `grove:"updated_at"     bson:"updated_at"`
}

func toExecutionModel(exe *execution.Execution) *executionModel {
	return &executionModel{
		ID:            exe.ID.String(),
		EndpointID:    exe.EndpointID.String(),
		Status:        exe.Status,
		Message:       exe.Message,
		ObjectID:      exe.ObjectID.String(),
		MappingErrors: exe.MappingErrors,
		MappedData:    exe.MappedData,
		DryRun:        exe.DryRun,
		DurationMs:    exe.DurationMs,
		ScopeAppID:    exe.ScopeAppID,
		ScopeOrgID:    exe.ScopeOrgID,
		CreatedAt:     exe.CreatedAt,
		UpdatedAt:     exe.UpdatedAt,
	}
}

func fromExecutionModel(m *executionModel) (*execution.Execution, error) {
	exeID, err := id.ParseExecutionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse execution ID %q: %w", m.ID, err)
	}
	epID, err := id.ParseEndpointID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}
	var objID id.ID
	if m.ObjectID != "" {
		objID, err = id.ParseRecordID(m.ObjectID)
		if err != nil {
			return nil, fmt.Errorf("parse object ID %q: %w", m.ObjectID, err)
		}
	}

	return &execution.Execution{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            exeID,
		EndpointID:    epID,
		Status:        m.Status,
		Message:       m.Message,
		ObjectID:      objID,
		MappingErrors: m.MappingErrors,
		MappedData:    m.MappedData,
		DryRun:        m.DryRun,
		DurationMs:    m.DurationMs,
		ScopeAppID:    m.ScopeAppID,
		ScopeOrgID:    m.ScopeOrgID,
	}, nil
}
