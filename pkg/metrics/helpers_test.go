package metrics

import (
	"fmt"
	"slices"

	dto "github.com/prometheus/client_model/go"
)

// series returns the first sample of family name carrying every label in want.
func series(mfs []*dto.MetricFamily, name string, want map[string]string) (*dto.Metric, error) {
	i := slices.IndexFunc(mfs, func(mf *dto.MetricFamily) bool { return mf.GetName() == name })
	if i < 0 {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, m := range mfs[i].GetMetric() {
		have := make(map[string]string, len(m.GetLabel()))
		for _, lp := range m.GetLabel() {
			have[lp.GetName()] = lp.GetValue()
		}
		ok := true
		for k, v := range want {
			if have[k] != v {
				ok = false
				break
			}
		}
		if ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("metric %q has no series with %v", name, want)
}

func fetchCounterWithLabels(mfs []*dto.MetricFamily, name string, want map[string]string) (float64, error) {
	m, err := series(mfs, name, want)
	return m.GetCounter().GetValue(), err
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	return fetchCounterWithLabels(mfs, name, map[string]string{label: value})
}
