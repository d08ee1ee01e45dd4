package outbox

const candidateCreatedSchema = `{
  "type": "object",
  "title": "CandidateCreated",
  "properties": {
    "candidate_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "requisition_id": {"type": "string"},
    "full_name": {"type": "string"},
    "email": {"type": "string"},
    "source": {"type": "string"},
    "status": {"type": "string"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["candidate_id", "tenant_id", "full_name", "status", "created_at"],
  "additionalProperties": false
}`

const candidateStatusChangedSchema = `{
  "type": "object",
  "title": "CandidateStatusChanged",
  "properties": {
    "candidate_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "from_status": {"type": "string"},
    "to_status": {"type": "string"},
    "changed_by": {"type": "string"},
    "note": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["candidate_id", "tenant_id", "from_status", "to_status", "occurred_at"],
  "additionalProperties": false
}`

const feedbackSubmittedSchema = `{
  "type": "object",
  "title": "FeedbackSubmitted",
  "properties": {
    "feedback_id": {"type": "string"},
    "candidate_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "requisition_id": {"type": "string"},
    "interviewer": {"type": "string"},
    "stage": {"type": "string"},
    "rating": {"type": "integer", "minimum": 1, "maximum": 5},
    "recommendation": {"type": "string", "enum": ["strong_yes", "yes", "no", "strong_no"]},
    "submitted_at": {"type": "string", "format": "date-time"}
  },
  "required": ["feedback_id", "candidate_id", "tenant_id", "interviewer", "stage", "rating", "recommendation", "submitted_at"],
  "additionalProperties": false
}`
