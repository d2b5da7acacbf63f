package simulator

// State is the persisted condition of one simulated sensor. It drifts a
// little every tick and survives process restarts via the state store.
type State struct {
	Moisture float64 `json:"moisture"`
	Battery  float64 `json:"battery"`
}

// Seed values for a sensor observed for the first time.
const (
	DefaultMoisture = 50.0
	DefaultBattery  = 90.0
)

func defaultState() State {
	return State{Moisture: DefaultMoisture, Battery: DefaultBattery}
}

// Reconcile aligns persisted state with the active sensor set: new IDs
// get the default seed, IDs no longer active are dropped. The input map
// is not mutated. Running it twice with the same active set is a no-op
// on the second pass.
func Reconcile(persisted map[string]State, active []string) map[string]State {
	out := make(map[string]State, len(active))
	for _, id := range active {
		if st, ok := persisted[id]; ok {
			out[id] = st
		} else {
			out[id] = defaultState()
		}
	}
	return out
}
