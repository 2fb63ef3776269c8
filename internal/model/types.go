package model

// Wire types for the run API.

type RunRequest struct {
	Name           string `json:"name,omitempty"`
	Instance       string `json:"instance"` // instance file contents
	Strategy       string `json:"strategy,omitempty"`
	Seed           int64  `json:"seed,omitempty"`
	TimeoutMs      int    `json:"timeoutMs,omitempty"`
	VehicleLimit   bool   `json:"vehicleLimit,omitempty"`
	CallbackURL    string `json:"callbackUrl,omitempty"`
	CallbackSecret string `json:"callbackSecret,omitempty"`
}

type RouteView struct {
	Stops    []StopView `json:"stops"`
	Distance float64    `json:"distance"`
	Demand   int        `json:"demand"`
}

type StopView struct {
	CustomerID int `json:"customerId"`
	StartedAt  int `json:"startedAt"`
}

type SolutionView struct {
	Routes   int         `json:"routes"`
	Distance float64     `json:"distance"`
	Detail   []RouteView `json:"detail,omitempty"`
	Text     string      `json:"text"`
}

// View renders s for JSON responses.
func View(s *Solution) SolutionView {
	v := SolutionView{Routes: s.RouteCount(), Distance: s.Distance(), Text: s.String()}
	for _, r := range s.routes {
		rv := RouteView{Distance: r.Distance(), Demand: r.Demand()}
		for _, st := range r.stops {
			rv.Stops = append(rv.Stops, StopView{CustomerID: st.Customer.ID, StartedAt: st.ServiceStartedAt})
		}
		v.Detail = append(v.Detail, rv)
	}
	return v
}
