// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TorrentsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdt_torrents_added_total",
		Help: "Torrents added across all users",
	})
	ActiveTorrents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gdt_torrents_active",
		Help: "Torrents currently registered across all users",
	})
	UploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdt_drive_uploads_total",
		Help: "Files uploaded to drive storage",
	})
	UploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdt_drive_upload_failures_total",
		Help: "Failed drive uploads",
	})
	SyncCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdt_sync_completed_total",
		Help: "Torrents fully mirrored to drive storage",
	})
	SyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdt_sync_failures_total",
		Help: "Folder creation failures after torrent completion",
	})
	PushConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gdt_push_connections",
		Help: "Open websocket push channels",
	})
)

// Handler serves the default registry, for mounting at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
