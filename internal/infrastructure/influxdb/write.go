package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	// MeasurementPoints holds points readings of nodes.
	MeasurementPoints = "luke_points"

	// MeasurementNodes holds the number of discovered nodes per kind.
	MeasurementNodes = "luke_nodes"
)

// WritePoints records a node's points reading.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
//	client.WritePoints("coap://[fe80::2]", "display", 32, 0.5)
func (c *Client) WritePoints(anchor, kind string, points int, ratio float64) {
	c.WritePoint(MeasurementPoints,
		map[string]string{
			"anchor": anchor,
			"kind":   kind,
		},
		map[string]interface{}{
			"points": points,
			"ratio":  ratio,
		},
	)
}

// WriteNodeCounts records how many nodes of each kind are known.
func (c *Client) WriteNodeCounts(byKind map[string]int) {
	for kind, n := range byKind {
		c.WritePoint(MeasurementNodes,
			map[string]string{"kind": kind},
			map[string]interface{}{"count": n},
		)
	}
}

// WritePoint writes a point with the current time. Nothing is written while
// disconnected.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
