package validators

import "go.mongodb.org/mongo-driver/bson"

var StationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"address",
			"total_slots",
			"available_slots",
			"rates",
			"operating_hours",
			"status",
			"created_by",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"address": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 200,
			},

			"latitude": bson.M{
				"bsonType": "double",
				"minimum":  -90,
				"maximum":  90,
			},

			"longitude": bson.M{
				"bsonType": "double",
				"minimum":  -180,
				"maximum":  180,
			},

			"total_slots": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  500,
			},

			"available_slots": bson.M{
				"bsonType": "int",
				"minimum":  0,
			},

			"rates": bson.M{
				"bsonType": "object",
				"required": []string{"per_hour", "currency"},
				"properties": bson.M{
					"per_hour": bson.M{
						"bsonType": "double",
						"minimum":  0,
					},
					"currency": bson.M{
						"bsonType":  "string",
						"minLength": 3,
						"maxLength": 3,
					},
				},
			},

			"operating_hours": bson.M{
				"bsonType": "object",
				"required": []string{"open", "close"},
				"properties": bson.M{
					"open": bson.M{
						"bsonType": "string",
					},
					"close": bson.M{
						"bsonType": "string",
					},
				},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"operational",
					"maintenance",
					"offline",
				},
			},

			"created_by": bson.M{
				"bsonType": "string",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
