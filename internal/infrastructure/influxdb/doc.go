// Package influxdb writes measurements to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library and is selected with
// store.driver "influxdb2". Use it for InfluxDB 2.x servers (or 3.x servers
// exposing the v2 compatibility API) where org/bucket addressing is needed.
//
// # Usage
//
//	cfg := config.StoreConfig{
//	    Driver: config.StoreDriverInfluxDB,
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "soilsense",
//	    Bucket: "soil",
//	}
//
//	client, err := influxdb.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	ok, err := client.Write(ctx, m, "soil_moisture_readings")
//
// # Error Handling
//
// Each Write is a single blocking request. Failures wrap ErrWriteFailed and
// are retried by persistence.Retrier, not here.
package influxdb
