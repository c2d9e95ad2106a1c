package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingredientsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stockpot",
			Subsystem: "recipes",
			Name:      "ingredients_created_total",
			Help:      "Ingredients created because no existing name matched.",
		},
	)

	recipeMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockpot",
			Subsystem: "recipes",
			Name:      "mutations_total",
			Help:      "Recipe create/update/delete operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

// IngredientCreated counts a newly inserted ingredient row.
func IngredientCreated() {
	ingredientsCreatedTotal.Inc()
}

// RecipeMutation counts a recipe operation. outcome is "ok" or an error class.
func RecipeMutation(operation, outcome string) {
	recipeMutationsTotal.WithLabelValues(operation, outcome).Inc()
}
