// Package hardware implements the actuator and sensor gateways used by the
// automation controller.
//
// Board drives the classroom board: the four light channels are LEDs exposed
// through sysfs (one file per channel, "1" on and "0" off) and the sensor
// readings come from a JSON document refreshed by the board's sampler. The
// board has no driver for the air conditioner or the multimedia relay, so
// Board accepts those requests and only logs them.
//
// Simulator keeps everything in memory for development machines and tests.
package hardware
