// Package influxdb mirrors Climate Core samples and alerts into InfluxDB.
//
// SQLite stays the system of record (temperature_log). InfluxDB is an
// optional, non-blocking copy for Grafana-style dashboards:
//
//	unit_climate,unit_id=3,unit_name=North temperature=21.5,humidity=40,actuator_on=false
//	unit_alert,unit_id=3 temperature=45
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without the mirror
//	}
//	defer client.Close()
//
//	client.WriteSample(3, "North", &t, &h, false, time.Now())
package influxdb
