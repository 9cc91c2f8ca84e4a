package validators

import "go.mongodb.org/mongo-driver/bson"

var objectIDHex = bson.M{
	"bsonType": "string",
	"pattern":  "^[0-9a-f]{24}$",
}

var BorrowRecordValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"book_id",
			"issued_at",
			"due_at",
			"returned",
			"late",
			"fine_amount",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"user_id":        objectIDHex,
			"book_id":        objectIDHex,
			"reservation_id": objectIDHex,

			"issued_at": bson.M{
				"bsonType": "date",
			},

			"due_at": bson.M{
				"bsonType": "date",
			},

			"returned_at": bson.M{
				"bsonType": "date",
			},

			"returned": bson.M{
				"bsonType": "bool",
			},

			"late": bson.M{
				"bsonType": "bool",
			},

			"fine_amount": bson.M{
				"bsonType": integer,
				"minimum":  0,
			},
		},
	},
}

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"book_id",
			"reserved_at",
			"expires_at",
			"status",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"user_id":          objectIDHex,
			"book_id":          objectIDHex,
			"borrow_record_id": objectIDHex,

			"reserved_at": bson.M{
				"bsonType": "date",
			},

			"expires_at": bson.M{
				"bsonType": "date",
			},

			"resolved_at": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"accepted",
					"rejected",
					"expired",
				},
			},
		},
	},
}

var FineRecordValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"borrow_record_id",
			"user_id",
			"book_id",
			"amount",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"borrow_record_id": objectIDHex,
			"user_id":          objectIDHex,
			"book_id":          objectIDHex,

			"amount": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "paid"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"paid_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
