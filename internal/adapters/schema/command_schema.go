package schema

// commandSchema accepts {"name", "params"} envelopes and whole commands
// sent as a tagged dict.
const commandSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "envelope": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "params": {"type": ["object", "null"]}
      }
    },
    "tagged": {
      "type": "object",
      "required": ["type", "data"],
      "properties": {
        "type": {"enum": ["dict", "container"]},
        "data": {
          "type": "object",
          "required": ["name"],
          "properties": {
            "name": {
              "type": "object",
              "required": ["type", "data"],
              "properties": {"data": {"type": "string", "minLength": 1}}
            }
          }
        }
      }
    }
  },
  "anyOf": [
    {"$ref": "#/definitions/envelope"},
    {"$ref": "#/definitions/tagged"}
  ]
}`
