// Package config loads and validates the classroom controller configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with CLASSROOM_* environment variables
//   - Validation of required fields and timing values
//   - Default values matching the classroom board deployment
//
// Durations in the automation, clock and serial sections are written as Go
// duration strings ("5s", "100ms", "10m").
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.ID)
package config
