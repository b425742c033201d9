package factory

// snapshotSchema is the JSON schema of a snapshot document. Money accepts
// both JSON numbers and decimal strings.
const snapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "definitions": {
    "id":    {"type": "string", "minLength": 1},
    "money": {"type": ["string", "number"], "pattern": "^-?[0-9]+(\\.[0-9]+)?$"},
    "date":  {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
    "instant": {"type": "string", "format": "date-time"},
    "score": {"type": "number", "minimum": 0, "maximum": 10}
  },
  "properties": {
    "clients": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {
          "id": {"$ref": "#/definitions/id"},
          "name": {"type": "string", "minLength": 1},
          "status": {"enum": ["active", "onboarding", "churned", "inactive"]},
          "monthly_value": {"$ref": "#/definitions/money"},
          "operational_cost": {"$ref": "#/definitions/money"},
          "min_contract_months": {"type": "integer", "minimum": 0},
          "start_date": {"$ref": "#/definitions/date"},
          "end_date": {"$ref": "#/definitions/date"},
          "health_score": {"$ref": "#/definitions/score"},
          "created_at": {"$ref": "#/definitions/instant"}
        }
      }
    },
    "squads": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {"id": {"$ref": "#/definitions/id"}, "name": {"type": "string"}}
      }
    },
    "members": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {
          "id": {"$ref": "#/definitions/id"},
          "name": {"type": "string", "minLength": 1},
          "status": {"enum": ["active", "inactive", "vacation"]},
          "squad_ids": {"type": "array", "items": {"$ref": "#/definitions/id"}}
        }
      }
    },
    "allocations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "member_id", "client_id", "monthly_value", "start_date"],
        "properties": {
          "id": {"$ref": "#/definitions/id"},
          "member_id": {"$ref": "#/definitions/id"},
          "client_id": {"$ref": "#/definitions/id"},
          "monthly_value": {"$ref": "#/definitions/money"},
          "start_date": {"$ref": "#/definitions/date"},
          "end_date": {"$ref": "#/definitions/date"}
        }
      }
    },
    "demands": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title", "created_at"],
        "properties": {
          "id": {"$ref": "#/definitions/id"},
          "title": {"type": "string", "minLength": 1},
          "priority": {"enum": ["low", "medium", "high", "urgent"]},
          "status": {"enum": ["backlog", "todo", "in_progress", "in_review", "done"]},
          "created_at": {"$ref": "#/definitions/instant"},
          "due_date": {"$ref": "#/definitions/instant"},
          "completed_at": {"$ref": "#/definitions/instant"},
          "sla_hours": {"type": "integer", "minimum": 1},
          "design_type": {"enum": ["arte", "video"]}
        }
      }
    },
    "meetings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "meeting_type", "client_id", "created_at"],
        "properties": {
          "meeting_type": {"enum": ["daily", "one_a_one"]},
          "health_score": {"$ref": "#/definitions/score"},
          "created_at": {"$ref": "#/definitions/instant"}
        }
      }
    },
    "financials": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["year", "month"],
        "properties": {
          "year": {"type": "integer", "minimum": 2000},
          "month": {"type": "integer", "minimum": 1, "maximum": 12}
        }
      }
    },
    "expenses": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "year", "month", "description", "amount"],
        "properties": {
          "month": {"type": "integer", "minimum": 1, "maximum": 12},
          "amount": {"$ref": "#/definitions/money"},
          "payment_date": {"$ref": "#/definitions/date"}
        }
      }
    },
    "rates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["member_id", "arte_value", "video_value"],
        "properties": {
          "member_id": {"$ref": "#/definitions/id"},
          "arte_value": {"$ref": "#/definitions/money"},
          "video_value": {"$ref": "#/definitions/money"}
        }
      }
    },
    "payments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "demand_id", "member_id", "design_type", "value", "year", "month", "created_at"],
        "properties": {
          "id": {"$ref": "#/definitions/id"},
          "demand_id": {"$ref": "#/definitions/id"},
          "member_id": {"$ref": "#/definitions/id"},
          "client_id": {"$ref": "#/definitions/id"},
          "design_type": {"enum": ["arte", "video"]},
          "value": {"$ref": "#/definitions/money"},
          "year": {"type": "integer", "minimum": 2000},
          "month": {"type": "integer", "minimum": 1, "maximum": 12},
          "created_at": {"$ref": "#/definitions/instant"}
        }
      }
    }
  }
}`
