package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/miniguide/internal/core/domain"
)

func placeToMap(p domain.PlaceCandidate) map[string]interface{} {
	return map[string]interface{}{
		"name":         p.Name,
		"region":       p.Region,
		"displayLabel": p.DisplayLabel,
		"lat":          p.Coordinate.Lat,
		"lng":          p.Coordinate.Lng,
		"type":         p.Type,
		"source":       string(p.Source),
	}
}

func placesToMaps(ps []domain.PlaceCandidate) []map[string]interface{} {
	out := make([]map[string]interface{}, len(ps))
	for i, p := range ps {
		out[i] = placeToMap(p)
	}
	return out
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	placeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Place",
		Fields: graphql.Fields{
			"name":         &graphql.Field{Type: graphql.String},
			"region":       &graphql.Field{Type: graphql.String},
			"displayLabel": &graphql.Field{Type: graphql.String},
			"lat":          &graphql.Field{Type: graphql.Float},
			"lng":          &graphql.Field{Type: graphql.Float},
			"type":         &graphql.Field{Type: graphql.String},
			"source":       &graphql.Field{Type: graphql.String},
		},
	})

	summaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteSummary",
		Fields: graphql.Fields{
			"distanceKm":          &graphql.Field{Type: graphql.Float},
			"durationMin":         &graphql.Field{Type: graphql.Int},
			"distanceLabel":       &graphql.Field{Type: graphql.String},
			"durationLabel":       &graphql.Field{Type: graphql.String},
			"trafficLabel":        &graphql.Field{Type: graphql.String},
			"adjustedDurationMin": &graphql.Field{Type: graphql.Int},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"distanceMeters":  &graphql.Field{Type: graphql.Float},
			"durationSeconds": &graphql.Field{Type: graphql.Float},
			"path":            &graphql.Field{Type: graphql.NewList(geoPointType)},
			"summary":         &graphql.Field{Type: summaryType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"searchPlaces": &graphql.Field{
				Type:        graphql.NewList(placeType),
				Description: "Ranked place suggestions for a query",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: defaultPlaceLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := p.Args["query"].(string)
					limit := p.Args["limit"].(int)
					found, err := deps.Places.Search(p.Context, q, limit)
					if err != nil {
						return nil, err
					}
					return placesToMaps(found), nil
				},
			},
			"popularPlaces": &graphql.Field{
				Type:        graphql.NewList(placeType),
				Description: "Curated popular destinations",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return placesToMaps(deps.Places.Popular()), nil
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Driving route between two points, null when none exists",
				Args: graphql.FieldConfigArgument{
					"fromLat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"fromLng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLng":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					from := domain.GeoPoint{Lat: p.Args["fromLat"].(float64), Lng: p.Args["fromLng"].(float64)}
					to := domain.GeoPoint{Lat: p.Args["toLat"].(float64), Lng: p.Args["toLng"].(float64)}
					route, summary, err := deps.Routes.Plan(p.Context, from, to)
					if errors.Is(err, domain.ErrNoRoute) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					path := make([]map[string]interface{}, len(route.Path))
					for i, pt := range route.Path {
						path[i] = map[string]interface{}{"lat": pt.Lat, "lng": pt.Lng}
					}
					return map[string]interface{}{
						"distanceMeters":  route.DistanceMeters,
						"durationSeconds": route.DurationSeconds,
						"path":            path,
						"summary": map[string]interface{}{
							"distanceKm":          summary.DistanceKm,
							"durationMin":         summary.DurationMin,
							"distanceLabel":       summary.DistanceLabel,
							"durationLabel":       summary.DurationLabel,
							"trafficLabel":        summary.TrafficLabel,
							"adjustedDurationMin": summary.AdjustedDurationMin,
						},
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
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
