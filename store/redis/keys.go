package redis

// Key prefixes for primary entity storage.
const (
	prefixEndpoint  = "intake:ep:"
	prefixModel     = "intake:model:"
	prefixRecord    = "intake:rec:"
	prefixExecution = "intake:exe:"
)

// Key prefixes for unique indexes. Unique claims are taken with SETNX so
// two concurrent writers cannot both hold the same value.
const (
	uniqueEndpointSlug = "intake:u:ep:slug:"  // + slug → endpoint ID
	uniqueModelID      = "intake:u:model:id:" // + model ID → name
	uniqueRecordField  = "intake:u:rec:"      // + model:field:key → record ID
)

// Key prefixes for sorted set and set indexes.
const (
	zEndpointAll = "intake:z:ep:all"
	zModelAll    = "intake:z:model:all"
	zRecordModel = "intake:z:rec:model:" // + model
	zExecutionEP = "intake:z:exe:ep:"    // + endpoint ID [+ ":" + status]
	sRecordField = "intake:s:rec:"       // + model:field:key
	rateLimitKey = "intake:rl:"          // + endpoint ID
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// recordFieldKey returns the per-value member set key for a record field.
func recordFieldKey(model, field, key string) string {
	return sRecordField + model + ":" + field + ":" + key
}

// recordUniqueKey returns the unique claim key for a record field value.
func recordUniqueKey(model, field, key string) string {
	return uniqueRecordField + model + ":" + field + ":" + key
}

// executionSetKey returns the execution index key for an endpoint, optionally
// narrowed to one status.
func executionSetKey(endpointID, status string) string {
	if status == "" {
		return zExecutionEP + endpointID
	}
	return zExecutionEP + endpointID + ":" + status
}
