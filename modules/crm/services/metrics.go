package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "exchange",
		Name:      "imports_total",
		Help:      "Finished import jobs by outcome.",
	}, []string{"entity", "outcome"})

	importRoundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "exchange",
		Name:      "import_submissions_total",
		Help:      "File submissions to the remote import endpoint, including mapping rounds.",
	}, []string{"entity"})

	deleteBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "exchange",
		Name:      "delete_batches_total",
		Help:      "Finished delete batches by outcome.",
	}, []string{"entity", "outcome"})

	recordsDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "exchange",
		Name:      "records_deleted_total",
		Help:      "Records removed through bulk delete.",
	}, []string{"entity"})
)
