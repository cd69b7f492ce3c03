package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"createRule": null,
			"deleteRule": null,
			"fields": [
				{
					"autogeneratePattern": "[a-z0-9]{15}",
					"hidden": false,
					"id": "text3208210256",
					"max": 15,
					"min": 15,
					"name": "id",
					"pattern": "^[a-z0-9]+$",
					"presentable": false,
					"primaryKey": true,
					"required": true,
					"system": true,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "select3137288",
					"maxSelect": 1,
					"name": "winner",
					"presentable": true,
					"required": true,
					"system": false,
					"type": "select",
					"values": [
						"CT",
						"T"
					]
				},
				{
					"hidden": false,
					"id": "number2071712151",
					"max": null,
					"min": 0,
					"name": "ct_score",
					"onlyInt": true,
					"presentable": false,
					"required": false,
					"system": false,
					"type": "number"
				},
				{
					"hidden": false,
					"id": "number2594810413",
					"max": null,
					"min": 0,
					"name": "t_score",
					"onlyInt": true,
					"presentable": false,
					"required": false,
					"system": false,
					"type": "number"
				},
				{
					"hidden": false,
					"id": "number1116486011",
					"max": null,
					"min": 0,
					"name": "delta",
					"onlyInt": true,
					"presentable": false,
					"required": false,
					"system": false,
					"type": "number"
				},
				{
					"hidden": false,
					"id": "number1923157823",
					"max": null,
					"min": null,
					"name": "winner_avg",
					"onlyInt": false,
					"presentable": false,
					"required": false,
					"system": false,
					"type": "number"
				},
				{
					"hidden": false,
					"id": "number3402113753",
					"max": null,
					"min": null,
					"name": "loser_avg",
					"onlyInt": false,
					"presentable": false,
					"required": false,
					"system": false,
					"type": "number"
				},
				{
					"hidden": false,
					"id": "json1426312185",
					"maxSize": 0,
					"name": "winners",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "json"
				},
				{
					"hidden": false,
					"id": "json2290150632",
					"maxSize": 0,
					"name": "losers",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "json"
				},
				{
					"hidden": false,
					"id": "date1096160257",
					"max": "",
					"min": "",
					"name": "ended_at",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "date"
				},
				{
					"hidden": false,
					"id": "autodate2990389176",
					"name": "created",
					"onCreate": true,
					"onUpdate": false,
					"presentable": false,
					"system": false,
					"type": "autodate"
				},
				{
					"hidden": false,
					"id": "autodate3332085495",
					"name": "updated",
					"onCreate": true,
					"onUpdate": true,
					"presentable": false,
					"system": false,
					"type": "autodate"
				}
			],
			"id": "pbc_2764112873",
			"indexes": [
				"CREATE INDEX IF NOT EXISTS ` + "`" + `idx_scrim_matches_ended_at` + "`" + ` ON ` + "`" + `scrim_matches` + "`" + ` (` + "`" + `ended_at` + "`" + `)"
			],
			"listRule": "",
			"name": "scrim_matches",
			"system": false,
			"type": "base",
			"updateRule": null,
			"viewRule": ""
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("pbc_2764112873")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
