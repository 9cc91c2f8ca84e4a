package validators

import "go.mongodb.org/mongo-driver/bson"

// integer accepts both widths, since the driver writes Go ints as int64 and
// $inc with a literal 1 can leave an int32.
var integer = []string{"int", "long"}

var BookValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"title",
			"author",
			"price",
			"copies_total",
			"copies_available",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"author": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"isbn": bson.M{
				"bsonType": "string",
				"pattern":  "^(?:[0-9]{9}[0-9X]|[0-9]{13})$",
			},

			"genre": bson.M{
				"bsonType":  "string",
				"maxLength": 50,
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 2000,
			},

			"language": bson.M{
				"bsonType":  "string",
				"maxLength": 30,
			},

			"price": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},

			"copies_total": bson.M{
				"bsonType": integer,
				"minimum":  1,
				"maximum":  10000,
			},

			"copies_available": bson.M{
				"bsonType": integer,
				"minimum":  0,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
	// copies_available never exceeds copies_total.
	"$expr": bson.M{
		"$lte": []string{"$copies_available", "$copies_total"},
	},
}
