package entity

import "github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/schema"

var ProgressiveSaveSchema = schema.MustCompile("progressive-save", `{
  "type": "object",
  "required": ["currentStep", "stepData", "tripType"],
  "properties": {
    "tripId": {"type": "string"},
    "currentStep": {"type": "integer", "minimum": 1, "maximum": 5},
    "stepData": {"type": "object"},
    "completionPercentage": {"type": "integer", "minimum": 0, "maximum": 100},
    "tripType": {"enum": ["convention", "in_land", "none"]},
    "accessCode": {"type": "string", "maxLength": 20},
    "clientTempId": {"type": "string", "maxLength": 128}
  }
}`)
