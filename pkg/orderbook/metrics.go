package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "orderbook_resolve_total",
	Help: "Total order book resolutions by result",
}, []string{"result"}) // "hit", "miss", "refresh", "stale", "error"
