package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salonbook"

var (
	once sync.Once

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by result.",
		},
		[]string{"result"},
	)

	reschedules = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reschedules_total",
			Help:      "Reschedule attempts by outcome.",
		},
		[]string{"outcome"},
	)

	swapsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_accepted_total",
			Help:      "Swap requests accepted by the target client.",
		},
	)

	swapOverlaps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_overlaps_total",
			Help:      "Accepted swaps that left an appointment overlapping a third one.",
		},
	)

	changeApprovals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_approvals_total",
			Help:      "Admin change proposals approved by clients.",
		},
	)

	statusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_changes_total",
			Help:      "Admin status decisions over appointments.",
		},
		[]string{"status"},
	)

	syncPulls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_pulls_total",
			Help:      "Remote document pulls by result.",
		},
		[]string{"result"},
	)

	syncPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_pushes_total",
			Help:      "Remote document pushes by result.",
		},
		[]string{"result"},
	)

	persistConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_conflicts_total",
			Help:      "Version conflicts hit while saving the document.",
		},
	)

	droppedBookings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_dropped_bookings_total",
			Help:      "Local bookings dropped on conflict replay because the slot was taken.",
		},
	)

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "HTTP API requests by route and status code.",
		},
		[]string{"route", "code"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookings, reschedules, swapsAccepted, swapOverlaps, changeApprovals, statusChanges,
			syncPulls, syncPushes, persistConflicts, droppedBookings, apiRequests,
		)
	})
}

func IncBooking(result string) {
	bookings.WithLabelValues(result).Inc()
}

func IncReschedule(outcome string) {
	reschedules.WithLabelValues(outcome).Inc()
}

func IncSwapAccepted() {
	swapsAccepted.Inc()
}

func IncSwapOverlap() {
	swapOverlaps.Inc()
}

func IncChangeApproval() {
	changeApprovals.Inc()
}

func IncStatusChange(status string) {
	statusChanges.WithLabelValues(status).Inc()
}

func IncSyncPull(result string) {
	syncPulls.WithLabelValues(result).Inc()
}

func IncSyncPush(result string) {
	syncPushes.WithLabelValues(result).Inc()
}

func IncPersistConflict() {
	persistConflicts.Inc()
}

func IncDroppedBooking() {
	droppedBookings.Inc()
}

func IncAPIRequest(route, code string) {
	apiRequests.WithLabelValues(route, code).Inc()
}
