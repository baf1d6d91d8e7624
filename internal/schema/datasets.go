package schema

import (
	"fmt"
	"sort"
)

// Built-in registry names.
const (
	YellowName = "yellow"
	GreenName  = "green"
	ZonesName  = "zones"
)

var yellowTrips = MustRegistry(YellowName, map[string]SemanticType{
	"VendorID":              NullableInteger,
	"passenger_count":       NullableInteger,
	"trip_distance":         Float64,
	"RatecodeID":            NullableInteger,
	"store_and_fwd_flag":    Text,
	"PULocationID":          NullableInteger,
	"DOLocationID":          NullableInteger,
	"payment_type":          NullableInteger,
	"fare_amount":           Float64,
	"extra":                 Float64,
	"mta_tax":               Float64,
	"tip_amount":            Float64,
	"tolls_amount":          Float64,
	"improvement_surcharge": Float64,
	"total_amount":          Float64,
	"congestion_surcharge":  Float64,
}, []string{
	"tpep_pickup_datetime",
	"tpep_dropoff_datetime",
})

var greenTrips = MustRegistry(GreenName, map[string]SemanticType{
	"VendorID":              NullableInteger,
	"store_and_fwd_flag":    Text,
	"RatecodeID":            NullableInteger,
	"PULocationID":          NullableInteger,
	"DOLocationID":          NullableInteger,
	"passenger_count":       NullableInteger,
	"trip_distance":         Float64,
	"fare_amount":           Float64,
	"extra":                 Float64,
	"mta_tax":               Float64,
	"tip_amount":            Float64,
	"tolls_amount":          Float64,
	"ehail_fee":             Float64,
	"improvement_surcharge": Float64,
	"total_amount":          Float64,
	"payment_type":          NullableInteger,
	"trip_type":             NullableInteger,
	"congestion_surcharge":  Float64,
	"cbd_congestion_fee":    Float64,
}, []string{
	"lpep_pickup_datetime",
	"lpep_dropoff_datetime",
})

var taxiZones = MustRegistry(ZonesName, map[string]SemanticType{
	"LocationID":   NullableInteger,
	"Borough":      Text,
	"Zone":         Text,
	"service_zone": Text,
}, nil)

// YellowTrips is the registry for yellow taxi trip records.
func YellowTrips() Registry { return yellowTrips }

// GreenTrips is the registry for green taxi trip records.
func GreenTrips() Registry { return greenTrips }

// Zones is the registry for the taxi zone lookup file.
func Zones() Registry { return taxiZones }

var builtins = map[string]Registry{
	YellowName: yellowTrips,
	GreenName:  greenTrips,
	ZonesName:  taxiZones,
}

// ByName returns a built-in registry.
func ByName(name string) (Registry, error) {
	r, ok := builtins[name]
	if !ok {
		return Registry{}, fmt.Errorf("schema: unknown dataset %q (known: %v)", name, Names())
	}
	return r, nil
}

// Names lists the built-in registry names, sorted.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for n := range builtins {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
