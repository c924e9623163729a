// Package tsdb writes measurements to a line-protocol HTTP endpoint.
//
// It targets InfluxDB 3's write_lp API but works with any server that
// accepts line protocol in a POST body with bearer-token authentication.
// Zero external dependencies: uses only net/http.
//
// # Usage
//
//	cfg := config.StoreConfig{
//	    Driver: config.StoreDriverHTTP,
//	    URL:    "http://localhost:8181/api/v3/write_lp?db=soil",
//	    Token:  os.Getenv("SOILSENSE_STORE_TOKEN"),
//	}
//
//	client, err := tsdb.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	ok, err := client.Write(ctx, m, "soil_moisture_readings")
//
// # Error Handling
//
// Write performs exactly one attempt. Every failure wraps ErrWriteFailed;
// wrap the client in persistence.Retrier for backoff.
package tsdb
