package outbox

const activityImportedSchema = `{
  "type": "object",
  "title": "ActivityImported",
  "properties": {
    "activity_id": {"type": "integer"},
    "athlete_id": {"type": "integer"},
    "name": {"type": "string"},
    "type": {"type": "string"},
    "started_at": {"type": "string", "format": "date-time"},
    "elapsed_sec": {"type": "integer"}
  },
  "required": ["activity_id", "athlete_id", "type", "started_at", "elapsed_sec"],
  "additionalProperties": false
}`

const refreshCompletedSchema = `{
  "type": "object",
  "title": "RefreshCompleted",
  "properties": {
    "run_id": {"type": "string"},
    "athlete_id": {"type": "integer"},
    "completed_at": {"type": "string", "format": "date-time"},
    "weight_status": {"type": "string"},
    "strength_status": {"type": "string"},
    "recovery_status": {"type": "string"},
    "activity_status": {"type": "string"},
    "process": {"type": "string"}
  },
  "required": ["run_id", "athlete_id", "completed_at", "weight_status", "strength_status", "recovery_status", "activity_status", "process"],
  "additionalProperties": false
}`
