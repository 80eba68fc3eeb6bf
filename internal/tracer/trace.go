package tracer

import (
	"encoding/json"
	"math"
)

// BranchDistance holds the best distances seen for one branch. Smaller is
// closer to covering the corresponding outcome; +Inf means never observed.
type BranchDistance struct {
	ToTrue  float64
	ToFalse float64
}

func unobserved() BranchDistance {
	return BranchDistance{ToTrue: math.Inf(1), ToFalse: math.Inf(1)}
}

func (d BranchDistance) CoveredTrue() bool  { return d.ToTrue == 0 }
func (d BranchDistance) CoveredFalse() bool { return d.ToFalse == 0 }

type branchDistanceJSON struct {
	ToTrue  *float64 `json:"to_true"`
	ToFalse *float64 `json:"to_false"`
}

func (d BranchDistance) MarshalJSON() ([]byte, error) {
	return json.Marshal(branchDistanceJSON{ToTrue: finite(d.ToTrue), ToFalse: finite(d.ToFalse)})
}

func (d *BranchDistance) UnmarshalJSON(b []byte) error {
	var raw branchDistanceJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = unobserved()
	if raw.ToTrue != nil {
		d.ToTrue = *raw.ToTrue
	}
	if raw.ToFalse != nil {
		d.ToFalse = *raw.ToFalse
	}
	return nil
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

type HostnameInfo struct {
	Host     string `json:"host"`
	Resolved bool   `json:"resolved"`
}

type ExternalServiceInfo struct {
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

// Snapshot is a detached copy of a trace. Later recordings on the tracer
// it came from do not affect it.
type Snapshot struct {
	ExecutionID      string                    `json:"execution_id,omitempty"`
	Distances        map[string]BranchDistance `json:"distances"`
	Hostnames        []HostnameInfo            `json:"hostnames"`
	ExternalServices []ExternalServiceInfo     `json:"external_services"`
}

func (s Snapshot) Empty() bool {
	return len(s.Distances) == 0 && len(s.Hostnames) == 0 && len(s.ExternalServices) == 0
}

func (s Snapshot) Distance(branch string) (BranchDistance, bool) {
	d, ok := s.Distances[branch]
	return d, ok
}

func (s Snapshot) HostLookup(host string) (HostnameInfo, bool) {
	host = normalizeHost(host)
	for _, h := range s.Hostnames {
		if h.Host == host {
			return h, true
		}
	}
	return HostnameInfo{}, false
}
