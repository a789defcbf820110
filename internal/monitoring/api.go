package monitoring

import (
	"encoding/json"
	"net/http"
)

// APIHandler assembles the monitoring HTTP surface: the metrics endpoint and
// the RF parameter change endpoint. collector may be nil when metrics are
// disabled.
func APIHandler(collector *Collector, params *ParamStore) http.Handler {
	mux := http.NewServeMux()

	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}

	mux.HandleFunc("/params", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			w.Header().Set("Allow", "POST, PUT")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		var p RFParams
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if p.Frequency == 0 {
			http.Error(w, "frequency is required", http.StatusBadRequest)
			return
		}

		params.Request(p)
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}
