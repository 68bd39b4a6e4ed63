// Package influxdb stores points readings as time series in InfluxDB v2.
//
// Every points update of a node becomes one luke_points point tagged with
// the node's anchor and kind:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoints("coap://[fe80::2]", "display", 32, 0.5)
//
// Writes are batched and non-blocking; failures are reported through
// SetOnError.
package influxdb
