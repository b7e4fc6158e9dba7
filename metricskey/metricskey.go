package metricskey

import "github.com/effective-security/metrics"

// Perf
var (
	// PerfModuleOperation is perf metric
	PerfModuleOperation = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_pkcs11_module",
		Help:         "perf_pkcs11_module provides the sample metrics of PKCS#11 module operations",
		RequiredTags: []string{"action"},
	}

	// PerfURIMatch is perf metric
	PerfURIMatch = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_pkcs11_uri_match",
		Help:         "perf_pkcs11_uri_match provides the sample metrics of slot and object lookups by URI",
		RequiredTags: []string{"target"},
	}
)

// Metrics returns slice of metrics from this repo
var Metrics = []*metrics.Describe{
	&PerfModuleOperation,
	&PerfURIMatch,
}
