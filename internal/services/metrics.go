package services

import "github.com/prometheus/client_golang/prometheus"

// outcomeSuccess is the outcome label for successful operations. Failures are
// labelled with their result.Kind name instead.
const outcomeSuccess = "success"

// todoOps counts service operations by name and outcome, so a burst of
// not_found can be told apart from a store outage.
var todoOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "todo_operations_total",
		Help: "Total number of todo service operations.",
	},
	[]string{"operation", "outcome"},
)

func init() {
	prometheus.MustRegister(todoOps)
}
