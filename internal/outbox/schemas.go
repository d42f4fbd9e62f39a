package outbox

const participationRegisteredSchema = `{
  "type": "object",
  "title": "ParticipationRegistered",
  "properties": {
    "participation_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity_id": {"type": "string"},
    "registered_at": {"type": "string", "format": "date-time"}
  },
  "required": ["participation_id", "user_id", "activity_id", "registered_at"],
  "additionalProperties": false
}`

const participationCancelledSchema = `{
  "type": "object",
  "title": "ParticipationCancelled",
  "properties": {
    "participation_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity_id": {"type": "string"},
    "cancelled_at": {"type": "string", "format": "date-time"}
  },
  "required": ["participation_id", "user_id", "activity_id", "cancelled_at"],
  "additionalProperties": false
}`

const participationCompletedSchema = `{
  "type": "object",
  "title": "ParticipationCompleted",
  "properties": {
    "participation_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity_id": {"type": "string"},
    "hours_earned": {"type": "number"},
    "points_earned": {"type": "integer"},
    "total_hours": {"type": "number"},
    "grade": {"type": "string"},
    "completed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["participation_id", "user_id", "activity_id", "hours_earned", "points_earned", "total_hours", "grade", "completed_at"],
  "additionalProperties": false
}`

const recommendationGeneratedSchema = `{
  "type": "object",
  "title": "RecommendationGenerated",
  "properties": {
    "user_id": {"type": "string"},
    "activity_ids": {"type": "array", "items": {"type": "string"}},
    "batch_size": {"type": "integer"},
    "recommended_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "activity_ids", "batch_size", "recommended_at"],
  "additionalProperties": false
}`
