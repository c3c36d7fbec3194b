package postgres

import (
	"encoding/json"
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

	ID                 string            `grove:"id,pk"`
	Slug               string            `grove:"slug,unique"`
	Name               string            `grove:"name"`
	Description        string            `grove:"description"`
	AuthType           string            `grove:"auth_type"`
	Credential         string            `grove:"credential"`
	TargetModel        string            `grove:"target_model"`
	TargetAction       string            `grove:"target_action"`
	FieldMapping       json.RawMessage   `grove:"field_mapping,type:jsonb"`
	DefaultValues      json.RawMessage   `grove:"default_values,type:jsonb"`
	DedupeField        string            `grove:"dedupe_field"`
	IsActive           bool              `grove:"is_active"`
	RateLimitPerMinute int               `grove:"rate_limit_per_minute"`
	ScopeAppID         string            `grove:"scope_app_id"`
	ScopeOrgID         string            `grove:"scope_org_id"`
	Metadata           map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt          time.Time         `grove:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"`
}

func toEndpointModel(ep *endpoint.Endpoint) *endpointModel {
	fm, _ := json.Marshal(ep.Mapping)   //nolint:errcheck // plain structs
	dv, _ := json.Marshal(ep.Defaults)  //nolint:errcheck // decoded JSON values
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
		Metadata:           m.Metadata,
	}, nil
}

// --- Target model models ---

type modelModel struct {
	grove.BaseModel `grove:"table:intake_models"`

	ID         string            `grove:"id,pk"`
	Name       string            `grove:"name,unique"`
	Definition json.RawMessage   `grove:"definition,type:jsonb"`
	ScopeAppID string            `grove:"scope_app_id"`
	Metadata   map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt  time.Time         `grove:"created_at"`
	UpdatedAt  time.Time         `grove:"updated_at"`
}

func toModelModel(m *schema.Model) *modelModel {
	def, _ := json.Marshal(m.Definition) //nolint:errcheck // plain structs
	return &modelModel{
		ID:         m.ID.String(),
		Name:       m.Definition.Name,
		Definition: def,
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
	var def schema.Definition
	if err := json.Unmarshal(m.Definition, &def); err != nil {
		return nil, fmt.Errorf("decode definition for %q: %w", m.Name, err)
	}
	return &schema.Model{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         mID,
		Definition: def,
		ScopeAppID: m.ScopeAppID,
		Metadata:   m.Metadata,
	}, nil
}

// --- Record models ---

type recordModel struct {
	grove.BaseModel `grove:"table:intake_records"`

	ID        string          `grove:"id,pk"`
	Model     string          `grove:"model"`
	Data      json.RawMessage `grove:"data,type:jsonb"`
	CreatedAt time.Time       `grove:"created_at"`
	UpdatedAt time.Time       `grove:"updated_at"`
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
	grove.BaseModel `grove:"table:intake_record_fields"`

	RecordID string `grove:"record_id,pk"`
	Field    string `grove:"field,pk"`
	Key      string `grove:"key,pk"`
	Model    string `grove:"model"`
	IsUnique bool   `grove:"is_unique"`
}

// --- Execution models ---

type executionModel struct {
	grove.BaseModel `grove:"table:intake_executions"`

	ID            string          `grove:"id,pk"`
	EndpointID    string          `grove:"endpoint_id"`
	Status        string          `grove:"status"`
	Message       string          `grove:"message"`
	ObjectID      string          `grove:"object_id"`
	MappingErrors json.RawMessage `grove:"mapping_errors,type:jsonb"`
	MappedData    json.RawMessage `grove:"mapped_data,type:jsonb"`
	DryRun        bool            `grove:"dry_run"`
	DurationMs    int64           `grove:"duration_ms"`
	ScopeAppID    string          `grove:"scope_app_id"`
	ScopeOrgID    string          `grove:"scope_org_id"`
	CreatedAt     time.Time       `grove:"created_at"`
	UpdatedAt     time.Time       `grove:"updated_at"`
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
