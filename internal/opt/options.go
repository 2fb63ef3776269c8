package opt

import (
	"fmt"
	"time"
)

// Options holds the tunables of every strategy. It is embedded in the
// service configuration and decoded from YAML.
type Options struct {
	Seed         int64 `yaml:"seed"`
	VehicleLimit bool  `yaml:"vehicle_limit"`

	Grasp struct {
		Iterations int           `yaml:"iterations" validate:"gte=1"`
		MaxRCLSize int           `yaml:"max_rcl_size" validate:"gte=0,lte=64"`
		Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
	} `yaml:"grasp"`

	Tabu struct {
		Tenure int `yaml:"tenure" validate:"gte=0"`
	} `yaml:"tabu"`

	Annealing struct {
		InitialTemperature float64 `yaml:"initial_temperature" validate:"gt=0"`
		Cooling            float64 `yaml:"cooling" validate:"gt=0,lt=1"`
	} `yaml:"annealing"`

	LNS struct {
		SplitAfter time.Duration `yaml:"split_after" validate:"gt=0"`
	} `yaml:"lns"`
}

func DefaultOptions() Options {
	var o Options
	g := NewGrasp()
	o.Grasp.Iterations, o.Grasp.MaxRCLSize, o.Grasp.Timeout = g.Iterations, g.MaxRCLSize, g.Timeout
	o.Tabu.Tenure = NewTabu().Tenure
	a := NewAnnealing()
	o.Annealing.InitialTemperature, o.Annealing.Cooling = a.InitialTemperature, a.Cooling
	o.LNS.SplitAfter = NewLNS().SplitAfter
	return o
}

// Names lists the strategies ByName knows.
var Names = []string{"greedy", "grasp", "tabu", "sa", "lns", "random"}

// ByName builds the named strategy from o. Improvement strategies start from
// a greedy construction that honours o.VehicleLimit.
func ByName(name string, o Options) (Strategy, error) {
	initial := Greedy{VehicleLimit: o.VehicleLimit}
	switch name {
	case "greedy":
		return initial, nil
	case "grasp":
		return &Grasp{
			Iterations:   o.Grasp.Iterations,
			MaxRCLSize:   o.Grasp.MaxRCLSize,
			Timeout:      o.Grasp.Timeout,
			Seed:         o.Seed,
			VehicleLimit: o.VehicleLimit,
		}, nil
	case "tabu":
		return &Tabu{Tenure: o.Tabu.Tenure, Initial: initial}, nil
	case "sa":
		return &Annealing{
			InitialTemperature: o.Annealing.InitialTemperature,
			Cooling:            o.Annealing.Cooling,
			Seed:               o.Seed,
			Initial:            initial,
		}, nil
	case "lns":
		return &LNS{SplitAfter: o.LNS.SplitAfter, Seed: o.Seed, Initial: initial}, nil
	case "random":
		return &RandomMove{Seed: o.Seed, Initial: initial}, nil
	}
	return nil, fmt.Errorf("opt: unknown strategy %q", name)
}
