package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/vgarrido/rutasur/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services. The read-only
// surface mirrors the REST endpoints booking frontends use.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	destinationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Destination",
		Fields: graphql.Fields{
			"name":                    &graphql.Field{Type: graphql.String},
			"base_price":              &graphql.Field{Type: graphql.Float},
			"travel_duration_minutes": &graphql.Field{Type: graphql.Int},
			"return_duration_minutes": &graphql.Field{Type: graphql.Int},
		},
	})

	vehicleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Vehicle",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.Int},
			"plate":    &graphql.Field{Type: graphql.String},
			"class":    &graphql.Field{Type: graphql.String},
			"capacity": &graphql.Field{Type: graphql.Int},
			"state":    &graphql.Field{Type: graphql.String},
		},
	})

	opportunityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Opportunity",
		Fields: graphql.Fields{
			"code":         &graphql.Field{Type: graphql.String},
			"kind":         &graphql.Field{Type: graphql.String},
			"origin":       &graphql.Field{Type: graphql.String},
			"destination":  &graphql.Field{Type: graphql.String},
			"date":         &graphql.Field{Type: graphql.String},
			"approx_time":  &graphql.Field{Type: graphql.String},
			"discount_pct": &graphql.Field{Type: graphql.Float},
			"base_price":   &graphql.Field{Type: graphql.Float},
			"final_price":  &graphql.Field{Type: graphql.Float},
			"reason":       &graphql.Field{Type: graphql.String},
			"state":        &graphql.Field{Type: graphql.String},
			"valid_until":  &graphql.Field{Type: graphql.String},
		},
	})

	adjustmentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AppliedAdjustment",
		Fields: graphql.Fields{
			"name":   &graphql.Field{Type: graphql.String},
			"kind":   &graphql.Field{Type: graphql.String},
			"pct":    &graphql.Field{Type: graphql.Float},
			"detail": &graphql.Field{Type: graphql.String},
		},
	})

	quoteType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FareQuote",
		Fields: graphql.Fields{
			"origin":         &graphql.Field{Type: graphql.String},
			"destination":    &graphql.Field{Type: graphql.String},
			"base_price":     &graphql.Field{Type: graphql.Float},
			"adjustment_pct": &graphql.Field{Type: graphql.Float},
			"final_price":    &graphql.Field{Type: graphql.Float},
			"advance_days":   &graphql.Field{Type: graphql.Int},
			"applied":        &graphql.Field{Type: graphql.NewList(adjustmentType)},
		},
	})

	// Opportunities carry TimeOfDay fields, so resolvers flatten them to maps.
	opportunityMap := func(o domain.Opportunity) map[string]interface{} {
		return map[string]interface{}{
			"code":         o.Code,
			"kind":         string(o.Kind),
			"origin":       o.Route.Origin,
			"destination":  o.Route.Destination,
			"date":         o.Date.Format("2006-01-02"),
			"approx_time":  o.ApproxTime.String(),
			"discount_pct": o.DiscountPct,
			"base_price":   o.BasePrice,
			"final_price":  o.FinalPrice,
			"reason":       o.Reason,
			"state":        string(o.State),
			"valid_until":  o.ValidUntil.Format(time.RFC3339),
		}
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"destinations": &graphql.Field{
				Type:        graphql.NewList(destinationType),
				Description: "Priced destination catalogue",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Destinations.List(p.Context)
				},
			},
			"fleet": &graphql.Field{
				Type:        graphql.NewList(vehicleType),
				Description: "Vehicle fleet with states",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Fleet.List(p.Context)
				},
			},
			"opportunities": &graphql.Field{
				Type:        graphql.NewList(opportunityType),
				Description: "Bookable repositioning offers",
				Args: graphql.FieldConfigArgument{
					"origin":      &graphql.ArgumentConfig{Type: graphql.String},
					"destination": &graphql.ArgumentConfig{Type: graphql.String},
					"date":        &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					filter := domain.Route{}
					if v, ok := p.Args["origin"].(string); ok {
						filter.Origin = v
					}
					if v, ok := p.Args["destination"].(string); ok {
						filter.Destination = v
					}
					var date *time.Time
					if v, ok := p.Args["date"].(string); ok && v != "" {
						d, err := time.Parse("2006-01-02", v)
						if err != nil {
							return nil, err
						}
						date = &d
					}
					opps, err := deps.Opportunities.List(p.Context, filter, date)
					if err != nil {
						return nil, err
					}
					result := make([]map[string]interface{}, 0, len(opps))
					for _, o := range opps {
						result = append(result, opportunityMap(o))
					}
					return result, nil
				},
			},
			"opportunity": &graphql.Field{
				Type:        opportunityType,
				Description: "Get an offer by code",
				Args: graphql.FieldConfigArgument{
					"code": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					o, err := deps.Opportunities.Get(p.Context, p.Args["code"].(string))
					if err != nil {
						return nil, err
					}
					return opportunityMap(*o), nil
				},
			},
			"quote": &graphql.Field{
				Type:        quoteType,
				Description: "Price a route for a date and start time",
				Args: graphql.FieldConfigArgument{
					"origin":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"destination": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"date":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"time":        &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: "12:00"},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					date, err := time.Parse("2006-01-02", p.Args["date"].(string))
					if err != nil {
						return nil, err
					}
					start, err := domain.ParseTimeOfDay(p.Args["time"].(string))
					if err != nil {
						return nil, err
					}
					route := domain.Route{
						Origin:      p.Args["origin"].(string),
						Destination: p.Args["destination"].(string),
					}
					q, err := deps.Fares.Quote(p.Context, route, date, start)
					if err != nil {
						return nil, err
					}
					applied := make([]map[string]interface{}, 0, len(q.Applied))
					for _, a := range q.Applied {
						applied = append(applied, map[string]interface{}{
							"name": a.Name, "kind": a.Kind, "pct": a.Pct, "detail": a.Detail,
						})
					}
					return map[string]interface{}{
						"origin":         q.Route.Origin,
						"destination":    q.Route.Destination,
						"base_price":     q.BasePrice,
						"adjustment_pct": q.AdjustmentPct,
						"final_price":    q.FinalPrice,
						"advance_days":   q.AdvanceDays,
						"applied":        applied,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
