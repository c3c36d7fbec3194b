package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/mapping"
	"github.com/xraph/intake/record"
	"github.com/xraph/intake/schema"
)

// JSON columns are kept as raw bytes so the same models work on every Bun
// dialect, Postgres and SQLite included.

// --- Endpoint models ---

type endpointModel struct {
	bun.BaseModel `bun:"table:intake_endpoints"`

	ID                 string          `bun:"id,pk"`
	Slug               string          `bun:"slug,unique,notnull"`
	Name               string          `bun:"name,notnull,default:''"`
	Description        string          `bun:"description,notnull,default:''"`
	AuthType           string          `bun:"auth_type,notnull,default:'none'"`
	Credential         string          `bun:"credential,notnull,default:''"`
	TargetModel        string          `bun:"target_model,notnull,default:''"`
	TargetAction       string          `bun:"target_action,notnull,default:'create'"`
	FieldMapping       json.RawMessage `bun:"field_mapping"`
	DefaultValues      json.RawMessage `bun:"default_values"`
	DedupeField        string          `bun:"dedupe_field,notnull,default:''"`
	IsActive           bool            `bun:"is_active,notnull,default:true"`
	RateLimitPerMinute int             `bun:"rate_limit_per_minute,notnull,default:0"`
	ScopeAppID         string          `bun:"scope_app_id,notnull,default:''"`
	ScopeOrgID         string          `bun:"scope_org_id,notnull,default:''"`
	Metadata           json.RawMessage `bun:"metadata"`
	CreatedAt          time.Time       `bun:"created_at,notnull"`
	UpdatedAt          time.Time       `bun:"updated_at,notnull"`
}

func toEndpointModel(ep *endpoint.Endpoint) *endpointModel {
	fm, _ := json.Marshal(ep.Mapping)  //nolint:errcheck // plain structs
	dv, _ := json.Marshal(ep.Defaults) //nolint:errcheck // decoded JSON values
	md, _ := json.Marshal(ep.Metadata) //nolint:errcheck // string map
	return &endpointModel{
		ID:                 ep.ID.String(),
		Slug:               ep.Slug,
		Name:               ep.Name,
		Description:        ep.Description,
		AuthType:           string(ep.AuthType),
		Credential:         ep.Credential,
		TargetModel:        ep.TargetModel,
		TargetAction:       string(ep.TargetAction),
		FieldMapping:       fm,
		DefaultValues:      dv,
		DedupeField:        ep.DedupeField,
		IsActive:           ep.Active,
		RateLimitPerMinute: ep.RateLimitPerMinute,
		ScopeAppID:         ep.ScopeAppID,
		ScopeOrgID:         ep.ScopeOrgID,
		Metadata:           md,
		CreatedAt:          ep.CreatedAt,
		UpdatedAt:          ep.UpdatedAt,
	}
}

func fromEndpointModel(m *endpointModel) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.ID, err)
	}
	var rules []endpoint.Rule
	if len(m.FieldMapping) > 0 {
		if err := json.Unmarshal(m.FieldMapping, &rules); err != nil {
			return nil, fmt.Errorf("decode field mapping for %q: %w", m.ID, err)
		}
	}
	var defaults map[string]any
	if len(m.DefaultValues) > 0 {
		if err := json.Unmarshal(m.DefaultValues, &defaults); err != nil {
			return nil, fmt.Errorf("decode defaults for %q: %w", m.ID, err)
		}
	}
	var metadata map[string]string
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %q: %w", m.ID, err)
		}
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
		Mapping:            rules,
		Defaults:           defaults,
		DedupeField:        m.DedupeField,
		Active:             m.IsActive,
		RateLimitPerMinute: m.RateLimitPerMinute,
		ScopeAppID:         m.ScopeAppID,
		ScopeOrgID:         m.ScopeOrgID,
		Metadata:           metadata,
	}, nil
}

// --- Target model models ---

type modelModel struct {
	bun.BaseModel `bun:"table:intake_models"`

	ID         string          `bun:"id,pk"`
	Name       string          `bun:"name,unique,notnull"`
	Definition json.RawMessage `bun:"definition"`
	ScopeAppID string          `bun:"scope_app_id,notnull,default:''"`
	Metadata   json.RawMessage `bun:"metadata"`
	CreatedAt  time.Time       `bun:"created_at,notnull"`
	UpdatedAt  time.Time       `bun:"updated_at,notnull"`
}

func toModelModel(m *schema.Model) *modelModel {
	def, _ := json.Marshal(m.Definition) //nolint:errcheck // plain structs
	md, _ := json.Marshal(m.Metadata)    //nolint:errcheck // string map
	return &modelModel{
		ID:         m.ID.String(),
		Name:       m.Definition.Name,
		Definition: def,
		ScopeAppID: m.ScopeAppID,
		Metadata:   md,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func fromModelModel(m *modelModel) (*schema.Model, error) {
	mID, err := id.ParseModelID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse model ID %q: %w", m.ID, err)
	}
	var def schema.Definition
	if err := json.Unmarshal(m.Definition, &def); err != nil {
		return nil, fmt.Errorf("decode definition for %q: %w", m.Name, err)
	}
	var metadata map[string]string
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %q: %w", m.Name, err)
		}
	}
	return &schema.Model{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         mID,
		Definition: def,
		ScopeAppID: m.ScopeAppID,
		Metadata:   metadata,
	}, nil
}

// --- Record models ---

type recordModel struct {
	bun.BaseModel `bun:"table:intake_records"`

	ID        string          `bun:"id,pk"`
	Model     string          `bun:"model,notnull,default:''"`
	Data      json.RawMessage `bun:"data"`
	CreatedAt time.Time       `bun:"created_at,notnull"`
	UpdatedAt time.Time       `bun:"updated_at,notnull"`
}

func toRecordModel(rec *record.Record) *recordModel {
	data, _ := json.Marshal(rec.Data) //nolint:errcheck // decoded JSON values
	return &recordModel{
		ID:        rec.ID.String(),
		Model:     rec.Model,
		Data:      data,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func fromRecordModel(m *recordModel) (*record.Record, error) {
	recID, err := id.ParseRecordID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse record ID %q: %w", m.ID, err)
	}
	var data map[string]any
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &data); err != nil {
			return nil, fmt.Errorf("decode record data for %q: %w", m.ID, err)
		}
	}
	return &record.Record{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:    recID,
		Model: m.Model,
		Data:  data,
	}, nil
}

// recordFieldModel mirrors one record field value in KeyString form. It
// doubles as the exact-match lookup index and, where is_unique is set, the
// uniqueness constraint on (model, field, key).
type recordFieldModel struct {
	bun.BaseModel `bun:"table:intake_record_fields"`

	RecordID string `bun:"record_id,pk"`
	Field    string `bun:"field,pk"`
	Key      string `bun:"key,pk"`
	Model    string `bun:"model,notnull"`
	IsUnique bool   `bun:"is_unique,notnull,default:false"`
}

// --- Execution models ---

type executionModel struct {
	bun.BaseModel `bun:"table:intake_executions"`

	ID            string          `bun:"id,pk"`
	EndpointID    string          `bun:"endpoint_id,notnull,default:''"`
	Status        string          `bun:"status,notnull,default:''"`
	Message       string          `bun:"message,notnull,default:''"`
	ObjectID      string          `bun:"object_id,notnull,default:''"`
	MappingErrors json.RawMessage `bun:"mapping_errors"`
	MappedData    json.RawMessage `bun:"mapped_data"`
	DryRun        bool            `bun:"dry_run,notnull,default:false"`
	DurationMs    int64           `bun:"duration_ms,notnull,default:0"`
	ScopeAppID    string          `bun:"scope_app_id,notnull,default:''"`
	ScopeOrgID    string          `bun:"scope_org_id,notnull,default:''"`
	CreatedAt     time.Time       `bun:"created_at,notnull"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull"`
}

func toExecutionModel(exe *execution.Execution) *executionModel {
	var me json.RawMessage
	if len(exe.MappingErrors) > 0 {
		me, _ = json.Marshal(exe.MappingErrors) //nolint:errcheck // plain structs
	}
	var md json.RawMessage
	if len(exe.MappedData) > 0 {
		md, _ = json.Marshal(exe.MappedData) //nolint:errcheck // decoded JSON values
	}
	return &executionModel{
		ID:            exe.ID.String(),
		EndpointID:    exe.EndpointID.String(),
		Status:        exe.Status,
		Message:       exe.Message,
		ObjectID:      exe.ObjectID.String(),
		MappingErrors: me,
		MappedData:    md,
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
	var fieldErrs []mapping.FieldError
	if len(m.MappingErrors) > 0 {
		if err := json.Unmarshal(m.MappingErrors, &fieldErrs); err != nil {
			return nil, fmt.Errorf("decode mapping errors for %q: %w", m.ID, err)
		}
	}
	var mapped map[string]any
	if len(m.MappedData) > 0 {
		if err := json.Unmarshal(m.MappedData, &mapped); err != nil {
			return nil, fmt.Errorf("decode mapped data for %q: %w", m.ID, err)
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
		MappingErrors: fieldErrs,
		MappedData:    mapped,
		DryRun:        m.DryRun,
		DurationMs:    m.DurationMs,
		ScopeAppID:    m.ScopeAppID,
		ScopeOrgID:    m.ScopeOrgID,
	}, nil
}
